// Package wsanalyzer adapts analyzer.Analyzer to a real SDR analyzer
// reached over a websocket, using the same JSON envelope and
// send/receive idiom as the teacher's SDRconnect client: one
// connection, synchronous websocket.JSON.Send for every outbound
// call, and a receive loop that a caller drives to turn inbound
// frames into analyzer.InboundMessage values.
package wsanalyzer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fventuri/inspfwd/internal/analyzer"
	"github.com/fventuri/inspfwd/internal/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"
)

// Client is a websocket-backed analyzer.Analyzer. It is not safe for
// concurrent use, matching the forwarder's own single-goroutine
// contract - outbound calls and the Receive loop are expected to run
// from the same driving goroutine.
type Client struct {
	conn        *websocket.Conn
	nextReqID   int64
	getInfoWait time.Duration
	sessionID   uuid.UUID
	log         zerolog.Logger
}

// Dial opens a websocket connection to addr (host:port), mirroring
// the teacher's origin/url derivation from a single "ip:port" flag
// value.
func Dial(addr string, getInfoWait time.Duration) (*Client, error) {
	ip := strings.Split(addr, ":")[0]
	origin := fmt.Sprintf("http://%s/", ip)
	url := fmt.Sprintf("ws://%s/", addr)
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, fmt.Errorf("wsanalyzer: dial %s: %w", addr, err)
	}
	if getInfoWait <= 0 {
		getInfoWait = 2 * time.Second
	}
	sessionID := uuid.New()
	log := logging.New("wsanalyzer").With().Str("session", sessionID.String()).Logger()
	return &Client{conn: conn, getInfoWait: getInfoWait, sessionID: sessionID, log: log}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(eventType, property string, payload any) error {
	var value string
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("wsanalyzer: encode %s: %w", eventType, err)
		}
		value = string(b)
	}
	return websocket.JSON.Send(c.conn, message{EventType: eventType, Property: property, Value: value})
}

// AllocateRequestID hands out a monotonically increasing id, unique
// for the lifetime of this connection.
func (c *Client) AllocateRequestID() analyzer.RequestID {
	return analyzer.RequestID(atomic.AddInt64(&c.nextReqID, 1))
}

func (c *Client) Open(class string, ch analyzer.ChannelSpec, reqID analyzer.RequestID) error {
	return c.send(eventOpen, strconv.FormatInt(int64(reqID), 10), openPayload{
		Class: class, Fc: ch.Fc, FLow: ch.FLow, FHigh: ch.FHigh, Bw: ch.Bw,
	})
}

func (c *Client) OpenEx(class string, ch analyzer.OpenExSpec, precise bool, parent analyzer.Handle, reqID analyzer.RequestID) error {
	return c.send(eventOpenEx, strconv.FormatInt(int64(reqID), 10), openExPayload{
		Class: class, Fc: ch.Fc, FLow: ch.FLow, FHigh: ch.FHigh, Bw: ch.Bw, Ft: ch.Ft,
		Precise: precise, Parent: int64(parent),
	})
}

func (c *Client) CloseInspector(h analyzer.Handle) error {
	return c.send(eventCloseInspector, strconv.FormatInt(int64(h), 10), nil)
}

func (c *Client) SetInspectorID(h analyzer.Handle, id analyzer.Handle) error {
	return c.send(eventSetInspectorID, strconv.FormatInt(int64(h), 10), setInspectorIDPayload{ID: int64(id)})
}

func (c *Client) SetInspectorBandwidth(h analyzer.Handle, bw float64) error {
	return c.send(eventSetInspectorBandwidth, strconv.FormatInt(int64(h), 10), bw)
}

func (c *Client) SetInspectorFreq(h analyzer.Handle, f float64) error {
	return c.send(eventSetInspectorFreq, strconv.FormatInt(int64(h), 10), f)
}

func (c *Client) SetInspectorConfig(h analyzer.Handle, cfg analyzer.Config) error {
	return c.send(eventSetInspectorConfig, strconv.FormatInt(int64(h), 10), cfg)
}

func (c *Client) SetFrequency(hz float64) error {
	return c.send(eventSetFrequency, "", hz)
}

// SourceInfo is a synchronous request/response exchange, the same
// pattern as the teacher's getSdrconnectProperty: send, then block on
// Receive (with a deadline) until the matching response arrives.
// Unlike the outbound calls above, which are fire-and-forget, this
// one is answered synchronously: the forwarder calls it on every open
// pass and admission check to learn the tuner's current center
// frequency and sample rate.
func (c *Client) SourceInfo() (analyzer.SourceInfo, error) {
	if err := c.send(eventGetSourceInfo, "", nil); err != nil {
		return analyzer.SourceInfo{}, err
	}

	c.conn.SetReadDeadline(time.Now().Add(c.getInfoWait))
	defer c.conn.SetReadDeadline(time.Time{})
	for {
		var msg message
		if err := websocket.JSON.Receive(c.conn, &msg); err != nil {
			return analyzer.SourceInfo{}, fmt.Errorf("wsanalyzer: source info: %w", err)
		}
		if msg.EventType != eventSourceInfoReply {
			continue
		}
		var p sourceInfoPayload
		if err := json.Unmarshal([]byte(msg.Value), &p); err != nil {
			return analyzer.SourceInfo{}, fmt.Errorf("wsanalyzer: decode source info: %w", err)
		}
		return analyzer.SourceInfo{
			Frequency:    p.Frequency,
			SampleRate:   p.SampleRate,
			LNBFrequency: p.LNBFrequency,
		}, nil
	}
}

// Receive blocks for one inbound frame and translates it into an
// analyzer.InboundMessage. A nil, nil return means the frame's event
// type is not one the forwarder acts on (e.g. a source-info push
// outside the SourceInfo request/response above, or any unknown
// event type); callers should loop rather than treat it as an error.
func (c *Client) Receive() (analyzer.InboundMessage, error) {
	var msg message
	if err := websocket.JSON.Receive(c.conn, &msg); err != nil {
		return nil, err
	}
	m, err := decodeFrame(msg)
	if m == nil && err == nil {
		c.log.Debug().Str("event_type", msg.EventType).Msg("ignoring unrecognized frame")
	}
	return m, err
}

// decodeFrame is Receive's translation step pulled out as a pure
// function so it can be tested without a live websocket connection.
func decodeFrame(msg message) (analyzer.InboundMessage, error) {
	switch msg.EventType {
	case eventOpenResponse:
		var p openResponsePayload
		if err := json.Unmarshal([]byte(msg.Value), &p); err != nil {
			return nil, fmt.Errorf("wsanalyzer: decode open_response: %w", err)
		}
		return analyzer.OpenMessage{
			ReqID:           analyzer.RequestID(p.ReqID),
			Handle:          analyzer.Handle(p.Handle),
			Config:          analyzer.Config(p.Config),
			EquivSampleRate: p.EquivSampleRate,
		}, nil
	case eventWrongHandle:
		reqID, err := decodeReqID(msg)
		if err != nil {
			return nil, err
		}
		return analyzer.WrongHandleMessage{ReqID: reqID}, nil
	case eventInvalidChannel:
		reqID, err := decodeReqID(msg)
		if err != nil {
			return nil, err
		}
		return analyzer.InvalidChannelMessage{ReqID: reqID}, nil
	case eventSamples:
		var p samplesPayload
		if err := json.Unmarshal([]byte(msg.Value), &p); err != nil {
			return nil, fmt.Errorf("wsanalyzer: decode samples: %w", err)
		}
		n := len(p.Real)
		if len(p.Imag) < n {
			n = len(p.Imag)
		}
		buf := make([]complex64, n)
		for i := 0; i < n; i++ {
			buf[i] = complex(p.Real[i], p.Imag[i])
		}
		return analyzer.SamplesMessage{
			InspectorID: analyzer.Handle(p.InspectorID),
			Samples:     buf,
			Count:       n,
		}, nil
	default:
		return nil, nil
	}
}

func decodeReqID(msg message) (analyzer.RequestID, error) {
	if msg.Value != "" {
		var p reqIDPayload
		if err := json.Unmarshal([]byte(msg.Value), &p); err == nil {
			return analyzer.RequestID(p.ReqID), nil
		}
	}
	id, err := strconv.ParseInt(msg.Property, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("wsanalyzer: decode %s: no request id in %q/%q", msg.EventType, msg.Property, msg.Value)
	}
	return analyzer.RequestID(id), nil
}
