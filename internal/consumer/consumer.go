// Package consumer defines the per-channel sample sink contract: the
// only collaborator the forwarder core delivers demodulated sample
// bursts and open/close lifecycle events to.
package consumer

import (
	"github.com/fventuri/inspfwd/internal/analyzer"
)

// ChannelInfo is the read-only slice of a channel's description
// handed to Opened, decoupled from the forwarder package to avoid an
// import cycle (forwarder imports consumer, not the reverse).
type ChannelInfo struct {
	Name      string
	Offset    float64
	Bandwidth float64
	InspClass string
	SampRate  float64
}

// Consumer is owned by exactly one channel. Opened is called once per
// successful open; Samples zero or more times strictly after Opened
// and strictly before Closed; Closed at most once, and only when
// Opened already fired (the tombstone path skips Closed entirely).
type Consumer interface {
	// Opened is invoked once the channel's inspector has been
	// acknowledged by the analyzer. It may call back into analyzer to
	// refine the inspector's configuration.
	Opened(an analyzer.Analyzer, handle analyzer.Handle, ch ChannelInfo, cfg analyzer.Config)

	// Samples delivers one burst. The buffer's lifetime ends when
	// Samples returns; implementations that need to retain data must
	// copy it. Must not block indefinitely.
	Samples(buf []complex64, count int)

	// Closed fires exactly once per successful Opened.
	Closed()

	// EnableStateChanged notifies the sink that its enabled flag
	// toggled. Firing is edge-triggered: only on transitions.
	EnableStateChanged(enabled bool)
}

// EnabledReporter is implemented by a Consumer that exposes its
// current enabled state, typically by embedding EnableState. Callers
// that need to display a channel's enabled flag (the view-model) type
// assert against this rather than widening the Consumer interface
// itself.
type EnabledReporter interface {
	Enabled() bool
}

// Toggleable is implemented by a Consumer that accepts an external
// enabled/disabled toggle, typically by embedding EnableState and
// forwarding the transition to EnableStateChanged.
type Toggleable interface {
	SetEnabled(enabled bool)
}

// EnableState tracks a consumer's enabled flag and only invokes the
// callback on an actual transition, per the "only transitions fire
// the callback" rule.
type EnableState struct {
	enabled bool
}

func NewEnableState(initial bool) *EnableState {
	return &EnableState{enabled: initial}
}

func (s *EnableState) Enabled() bool {
	return s.enabled
}

// SetEnabled updates the flag and invokes onChange iff the value
// actually changed.
func (s *EnableState) SetEnabled(enabled bool, onChange func(bool)) {
	if enabled == s.enabled {
		return
	}
	s.enabled = enabled
	if onChange != nil {
		onChange(enabled)
	}
}
