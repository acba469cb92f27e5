// Package analyzer defines the contract the remote SDR analyzer must
// satisfy: the outbound Analyzer interface the forwarder drives, and
// the InboundMessage sum type the analyzer delivers asynchronously in
// response.
package analyzer

// Handle is the opaque 64-bit id the analyzer assigns to a
// successfully opened inspector. InvalidHandle marks "closed" or "not
// yet assigned".
type Handle int64

const InvalidHandle Handle = -1

// RequestID correlates an outbound open call with its eventual
// OPEN/WRONG_HANDLE/INVALID_CHANNEL response. Allocated by the
// analyzer, assumed globally unique within a session.
type RequestID int64

// Config is an opaque bag of analyzer-side inspector settings (demod
// parameters, squelch, gain...). The core only stores and forwards
// it; it never interprets individual keys.
type Config map[string]any

// Clone returns an independent copy so callers can mutate it without
// aliasing the stored config.
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ChannelSpec describes a top-level (master/multicarrier) inspector
// open request, frequencies relative to the tuner center.
type ChannelSpec struct {
	Fc    float64 // center frequency offset from the tuner, Hz
	FLow  float64 // low edge offset from Fc, Hz (negative)
	FHigh float64 // high edge offset from Fc, Hz (positive)
	Bw    float64 // bandwidth, Hz
}

// OpenExSpec describes a child inspector open request nested inside a
// parent (master) inspector.
type OpenExSpec struct {
	Fc    float64
	FLow  float64
	FHigh float64
	Bw    float64
	Ft    float64 // pass-through filter threshold; 0 means "use default"
}

// SourceInfo is the tuner's current front-end state.
type SourceInfo struct {
	Frequency    float64 // tuner center frequency, Hz
	SampleRate   float64 // tuner sample rate, Hz
	LNBFrequency float64 // LNB (down-converter) offset, Hz
}

// Analyzer is the set of outbound calls the forwarder issues against
// the remote SDR analyzer. Every call except SourceInfo is
// fire-and-forget: the result, if any, arrives later as an
// InboundMessage delivered to Forwarder.ProcessMessage or
// Forwarder.FeedSamplesMessage, and the call does not wait for it.
// SourceInfo returns the tuner's current state directly.
type Analyzer interface {
	AllocateRequestID() RequestID

	// Open requests a new top-level (multicarrier) inspector.
	Open(class string, ch ChannelSpec, reqID RequestID) error

	// OpenEx requests a new child inspector nested inside parent.
	OpenEx(class string, ch OpenExSpec, precise bool, parent Handle, reqID RequestID) error

	CloseInspector(h Handle) error
	SetInspectorID(h Handle, id Handle) error
	SetInspectorBandwidth(h Handle, bw float64) error
	SetInspectorFreq(h Handle, f float64) error
	SetInspectorConfig(h Handle, cfg Config) error
	SetFrequency(hz float64) error

	SourceInfo() (SourceInfo, error)
}

// InboundMessage is the sum type of asynchronous messages the
// analyzer delivers. Each concrete type below is the only way to
// construct one, keeping the set closed for the forwarder's type
// switch in ProcessMessage.
type InboundMessage interface {
	isInboundMessage()
}

// OpenMessage reports a successful inspector open.
type OpenMessage struct {
	ReqID           RequestID
	Handle          Handle
	Config          Config
	EquivSampleRate float64
}

func (OpenMessage) isInboundMessage() {}

// WrongHandleMessage reports that the analyzer rejected a request
// because of a handle mismatch, typically a failed child-inspector
// open.
type WrongHandleMessage struct {
	ReqID RequestID
}

func (WrongHandleMessage) isInboundMessage() {}

// InvalidChannelMessage reports that the requested channel limits
// could not be satisfied by the analyzer.
type InvalidChannelMessage struct {
	ReqID RequestID
}

func (InvalidChannelMessage) isInboundMessage() {}

// SamplesMessage carries a burst of demodulated complex samples for
// the inspector identified by InspectorID. Fed to the forwarder via
// FeedSamplesMessage, not ProcessMessage.
type SamplesMessage struct {
	InspectorID Handle
	Samples     []complex64
	Count       int
}

func (SamplesMessage) isInboundMessage() {}
