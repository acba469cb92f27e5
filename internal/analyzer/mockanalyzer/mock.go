// Package mockanalyzer is an in-memory analyzer.Analyzer double for
// tests: it records every outbound call and lets the test inject
// InboundMessages synchronously, with no actual network or process
// involved.
package mockanalyzer

import (
	"github.com/fventuri/inspfwd/internal/analyzer"
)

// OpenCall records one Open invocation.
type OpenCall struct {
	Class string
	Spec  analyzer.ChannelSpec
	ReqID analyzer.RequestID
}

// OpenExCall records one OpenEx invocation.
type OpenExCall struct {
	Class   string
	Spec    analyzer.OpenExSpec
	Precise bool
	Parent  analyzer.Handle
	ReqID   analyzer.RequestID
}

// Mock is a deterministic, single-threaded Analyzer double.
type Mock struct {
	Source analyzer.SourceInfo

	nextReqID int64
	nextHandle int64

	Opens    []OpenCall
	OpenExes []OpenExCall
	Closed   []analyzer.Handle

	InspectorIDs     map[analyzer.Handle]analyzer.Handle
	InspectorBW      map[analyzer.Handle]float64
	InspectorFreq    map[analyzer.Handle]float64
	InspectorConfigs map[analyzer.Handle]analyzer.Config

	SourceInfoErr error
}

func New() *Mock {
	return &Mock{
		Source: analyzer.SourceInfo{
			Frequency:  100_000_000,
			SampleRate: 2_000_000,
		},
		InspectorIDs:     make(map[analyzer.Handle]analyzer.Handle),
		InspectorBW:      make(map[analyzer.Handle]float64),
		InspectorFreq:    make(map[analyzer.Handle]float64),
		InspectorConfigs: make(map[analyzer.Handle]analyzer.Config),
	}
}

func (m *Mock) AllocateRequestID() analyzer.RequestID {
	m.nextReqID++
	return analyzer.RequestID(m.nextReqID)
}

// NextHandle hands out the handle a test will use for the next
// OPEN message it synthesizes, mirroring how the real analyzer
// assigns a fresh handle per successful open.
func (m *Mock) NextHandle() analyzer.Handle {
	m.nextHandle++
	return analyzer.Handle(m.nextHandle)
}

func (m *Mock) Open(class string, ch analyzer.ChannelSpec, reqID analyzer.RequestID) error {
	m.Opens = append(m.Opens, OpenCall{Class: class, Spec: ch, ReqID: reqID})
	return nil
}

func (m *Mock) OpenEx(class string, ch analyzer.OpenExSpec, precise bool, parent analyzer.Handle, reqID analyzer.RequestID) error {
	m.OpenExes = append(m.OpenExes, OpenExCall{Class: class, Spec: ch, Precise: precise, Parent: parent, ReqID: reqID})
	return nil
}

func (m *Mock) CloseInspector(h analyzer.Handle) error {
	m.Closed = append(m.Closed, h)
	return nil
}

func (m *Mock) SetInspectorID(h analyzer.Handle, id analyzer.Handle) error {
	m.InspectorIDs[h] = id
	return nil
}

func (m *Mock) SetInspectorBandwidth(h analyzer.Handle, bw float64) error {
	m.InspectorBW[h] = bw
	return nil
}

func (m *Mock) SetInspectorFreq(h analyzer.Handle, f float64) error {
	m.InspectorFreq[h] = f
	return nil
}

func (m *Mock) SetInspectorConfig(h analyzer.Handle, cfg analyzer.Config) error {
	m.InspectorConfigs[h] = cfg
	return nil
}

func (m *Mock) SetFrequency(hz float64) error {
	m.Source.Frequency = hz
	return nil
}

func (m *Mock) SourceInfo() (analyzer.SourceInfo, error) {
	if m.SourceInfoErr != nil {
		return analyzer.SourceInfo{}, m.SourceInfoErr
	}
	return m.Source, nil
}

// LastOpenReqID returns the request id of the most recent Open call.
func (m *Mock) LastOpenReqID() analyzer.RequestID {
	return m.Opens[len(m.Opens)-1].ReqID
}

// LastOpenExReqID returns the request id of the most recent OpenEx call.
func (m *Mock) LastOpenExReqID() analyzer.RequestID {
	return m.OpenExes[len(m.OpenExes)-1].ReqID
}

// WasClosed reports whether CloseInspector was ever called with h.
func (m *Mock) WasClosed(h analyzer.Handle) bool {
	for _, c := range m.Closed {
		if c == h {
			return true
		}
	}
	return false
}
