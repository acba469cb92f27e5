// Package forwarder implements the tree of master/channel inspectors
// and the open/close state machine that drives them across a noisy,
// asynchronous analyzer protocol. Forwarder is the single mutable
// root described by the package; it is not safe for concurrent use —
// like the analyzer message loop it is designed for, callers must
// serialize MakeMaster/MakeChannel/RemoveMaster/RemoveChannel/OpenAll/
// CloseAll/ProcessMessage/FeedSamplesMessage themselves.
package forwarder

import (
	"math"

	"github.com/fventuri/inspfwd/internal/analyzer"
	"github.com/fventuri/inspfwd/internal/consumer"
	"github.com/fventuri/inspfwd/internal/logging"
	"github.com/rs/zerolog"
)

// MasterID and ChannelID are opaque handles into the forwarder's
// internal slab maps — stable across the entity's lifetime, never
// reused, and independent of the analyzer's own Handle/RequestID
// value space.
type MasterID int64
type ChannelID int64

// ChannelClass determines how the analyzer demodulates a channel's
// samples.
type ChannelClass string

const (
	ChannelClassRaw   ChannelClass = "raw"
	ChannelClassAudio ChannelClass = "audio"
)

// MasterChannel is a contiguous band of spectrum opened as a single
// multicarrier inspector.
type MasterChannel struct {
	ID        MasterID
	Name      string
	Frequency float64
	Bandwidth float64
	Enabled   bool
	Channels  []ChannelID // insertion order, visible to the view-model

	Handle    analyzer.Handle
	ReqID     analyzer.RequestID
	Opening   bool
	OpenCount int
	Deleted   bool
	Config    analyzer.Config
}

// IsOpen reports whether the master currently has a live analyzer
// handle.
func (m *MasterChannel) IsOpen() bool {
	return m.Handle != analyzer.InvalidHandle
}

// ChannelDescription is a sub-band within exactly one master, opened
// as a child inspector of that master's multicarrier inspector.
type ChannelDescription struct {
	ID        ChannelID
	Name      string
	Parent    MasterID // weak back-reference; lifetime is the master's
	Offset    float64  // relative to parent.Frequency
	Bandwidth float64
	InspClass ChannelClass
	Consumer  consumer.Consumer
	SampRate  float64

	Handle  analyzer.Handle
	ReqID   analyzer.RequestID
	Opening bool
	Deleted bool
}

func (c *ChannelDescription) IsOpen() bool {
	return c.Handle != analyzer.InvalidHandle
}

// Forwarder owns the tree of masters and channels and drives their
// open/close lifecycle against an Analyzer.
type Forwarder struct {
	an           analyzer.Analyzer
	maxBandwidth float64

	masters     map[MasterID]*MasterChannel
	masterOrder []MasterID
	masterByName map[string]MasterID

	channels      map[ChannelID]*ChannelDescription
	channelByName map[string]ChannelID

	openMasters     map[analyzer.Handle]MasterID
	pendingMasters  map[analyzer.RequestID]MasterID
	openChannels    map[analyzer.Handle]ChannelID
	pendingChannels map[analyzer.RequestID]ChannelID

	opened  bool
	opening bool

	freqMin float64
	freqMax float64

	errs   []error
	failed bool

	nextMasterID  int64
	nextChannelID int64

	onChange func()

	log zerolog.Logger
}

// New creates an empty Forwarder with no analyzer attached. Channels
// wider than maxBandwidth are rejected by MakeChannel.
func New(maxBandwidth float64) *Forwarder {
	return &Forwarder{
		maxBandwidth:    maxBandwidth,
		masters:         make(map[MasterID]*MasterChannel),
		masterByName:    make(map[string]MasterID),
		channels:        make(map[ChannelID]*ChannelDescription),
		channelByName:   make(map[string]ChannelID),
		openMasters:     make(map[analyzer.Handle]MasterID),
		pendingMasters:  make(map[analyzer.RequestID]MasterID),
		openChannels:    make(map[analyzer.Handle]ChannelID),
		pendingChannels: make(map[analyzer.RequestID]ChannelID),
		freqMin:         math.Inf(1),
		freqMax:         math.Inf(-1),
		log:             logging.New("forwarder"),
	}
}

func (f *Forwarder) nextMID() MasterID {
	f.nextMasterID++
	return MasterID(f.nextMasterID)
}

func (f *Forwarder) nextCID() ChannelID {
	f.nextChannelID++
	return ChannelID(f.nextChannelID)
}

// SetChangeObserver registers the single hook invoked after every
// structural mutation of the tree (the view-model's rebuild trigger).
// A nil fn detaches any previously registered observer.
func (f *Forwarder) SetChangeObserver(fn func()) {
	f.onChange = fn
}

func (f *Forwarder) notifyChange() {
	if f.onChange != nil {
		f.onChange()
	}
}

// SetMaxBandwidth configures the admission ceiling used by MakeChannel.
func (f *Forwarder) SetMaxBandwidth(max float64) {
	f.maxBandwidth = max
}

// IsOpen, IsOpening and IsIdle report the forwarder's derived global
// state (spec invariant 4): exactly one holds at any time.
func (f *Forwarder) IsOpen() bool    { return f.opened }
func (f *Forwarder) IsOpening() bool { return f.opening }
func (f *Forwarder) IsIdle() bool    { return !f.opened && !f.opening }

// Empty reports whether the tree has no masters at all.
func (f *Forwarder) Empty() bool {
	return len(f.masters) == 0
}

// MasterOrder returns every master id in insertion order, including
// tombstoned masters whose deferred removal has not completed yet.
func (f *Forwarder) MasterOrder() []MasterID {
	out := make([]MasterID, len(f.masterOrder))
	copy(out, f.masterOrder)
	return out
}

// Master returns a value copy of a master's current state.
func (f *Forwarder) Master(id MasterID) (MasterChannel, bool) {
	m, ok := f.masters[id]
	if !ok {
		return MasterChannel{}, false
	}
	return *m, true
}

// Channel returns a value copy of a channel's current state.
func (f *Forwarder) Channel(id ChannelID) (ChannelDescription, bool) {
	c, ok := f.channels[id]
	if !ok {
		return ChannelDescription{}, false
	}
	return *c, true
}

