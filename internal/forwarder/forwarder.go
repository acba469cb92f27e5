package forwarder

import (
	"fmt"
	"math"

	"github.com/fventuri/inspfwd/internal/analyzer"
	"github.com/fventuri/inspfwd/internal/consumer"
	"github.com/fventuri/inspfwd/internal/forwarder/ferrors"
	"github.com/fventuri/inspfwd/internal/metrics"
)

// SetAnalyzer attaches a new analyzer backend. Swapping away from a
// live (non-nil) analyzer runs CloseAll first so every open inspector
// is torn down cleanly; swapping in from a nil analyzer just resets
// bookkeeping, since nothing was ever opened.
func (f *Forwarder) SetAnalyzer(an analyzer.Analyzer) {
	if f.an != nil {
		f.CloseAll()
	} else {
		f.reset()
	}
	f.an = an
	f.notifyChange()
}

func (f *Forwarder) recordError(err error) {
	f.errs = append(f.errs, err)
	f.failed = true
}

func (f *Forwarder) errorf(kind ferrors.Kind, format string, args ...any) {
	f.recordError(ferrors.New(kind, format, args...))
}

// Failed reports whether any error has been recorded since the last
// ClearErrors.
func (f *Forwarder) Failed() bool { return f.failed }

// GetErrors returns a copy of the accumulated error log.
func (f *Forwarder) GetErrors() []error {
	out := make([]error, len(f.errs))
	copy(out, f.errs)
	return out
}

// ClearErrors drops the accumulated error log.
func (f *Forwarder) ClearErrors() {
	f.errs = nil
	f.failed = false
}

// FindMaster looks up a live (non-tombstoned) master by name.
func (f *Forwarder) FindMaster(name string) (MasterID, bool) {
	id, ok := f.masterByName[name]
	if !ok {
		return 0, false
	}
	if f.masters[id].Deleted {
		return 0, false
	}
	return id, true
}

// FindChannel looks up a live (non-tombstoned) channel by name.
func (f *Forwarder) FindChannel(name string) (ChannelID, bool) {
	id, ok := f.channelByName[name]
	if !ok {
		return 0, false
	}
	if f.channels[id].Deleted {
		return 0, false
	}
	return id, true
}

// FindMasterByBand returns the first live master, in insertion order,
// whose band fully contains [freq-bw/2, freq+bw/2].
func (f *Forwarder) FindMasterByBand(freq, bw float64) (MasterID, bool) {
	lo := freq - bw/2
	hi := freq + bw/2
	for _, mid := range f.masterOrder {
		m := f.masters[mid]
		if m.Deleted {
			continue
		}
		mlo := m.Frequency - m.Bandwidth/2
		mhi := m.Frequency + m.Bandwidth/2
		if mlo <= lo && hi <= mhi {
			return mid, true
		}
	}
	return 0, false
}

// MakeMaster creates a new top-level band. Rejected with
// ferrors.KindDuplicateName if a live master already has this name.
func (f *Forwarder) MakeMaster(name string, freq, bw float64) (MasterID, error) {
	if _, ok := f.FindMaster(name); ok {
		err := ferrors.New(ferrors.KindDuplicateName, "master %q already exists", name)
		f.recordError(err)
		return 0, err
	}

	id := f.nextMID()
	m := &MasterChannel{
		ID:        id,
		Name:      name,
		Frequency: freq,
		Bandwidth: bw,
		Enabled:   true,
		Handle:    analyzer.InvalidHandle,
	}
	f.masters[id] = m
	f.masterByName[name] = id
	f.masterOrder = append(f.masterOrder, id)
	f.log.Debug().Str("master", name).Float64("frequency", freq).Float64("bandwidth", bw).Msg("master created")

	lo, hi := freq-bw/2, freq+bw/2
	if lo < f.freqMin {
		f.freqMin = lo
	}
	if hi > f.freqMax {
		f.freqMax = hi
	}
	metrics.SpanHz.Set(f.freqMax - f.freqMin)

	if f.opened {
		f.opened = false
		f.opening = true
	}
	if f.opening {
		f.keepOpening()
	}
	f.notifyChange()
	return id, nil
}

// MakeChannel creates a new sub-band under whichever live master
// covers [freq-bw/2, freq+bw/2]. Rejected with
// ferrors.KindBandwidthExceedsMax if bw exceeds the configured
// ceiling, ferrors.KindNoCoveringMaster if no live master contains
// the band, or ferrors.KindDuplicateName if a live channel already
// has this name.
func (f *Forwarder) MakeChannel(name string, freq, bw float64, class ChannelClass, c consumer.Consumer) (ChannelID, error) {
	if class != ChannelClassRaw && class != ChannelClassAudio {
		err := ferrors.New(ferrors.KindFormatError, "channel %q: invalid class %q", name, class)
		f.recordError(err)
		return 0, err
	}

	if bw > f.maxBandwidth {
		err := ferrors.New(ferrors.KindBandwidthExceedsMax, "channel %q bandwidth %.0f exceeds max %.0f", name, bw, f.maxBandwidth)
		f.recordError(err)
		return 0, err
	}

	mid, ok := f.FindMasterByBand(freq, bw)
	if !ok {
		err := ferrors.New(ferrors.KindNoCoveringMaster, "channel %q (%.0f Hz, bw %.0f) is not covered by any master", name, freq, bw)
		f.recordError(err)
		return 0, err
	}

	if _, ok := f.FindChannel(name); ok {
		err := ferrors.New(ferrors.KindDuplicateName, "channel %q already exists", name)
		f.recordError(err)
		return 0, err
	}

	master := f.masters[mid]
	id := f.nextCID()
	ch := &ChannelDescription{
		ID:        id,
		Name:      name,
		Parent:    mid,
		Offset:    freq - master.Frequency,
		Bandwidth: bw,
		InspClass: class,
		Consumer:  c,
		Handle:    analyzer.InvalidHandle,
	}
	f.channels[id] = ch
	f.channelByName[name] = id
	master.Channels = append(master.Channels, id)
	f.log.Debug().Str("channel", name).Str("master", master.Name).Float64("offset", ch.Offset).Msg("channel created")

	if f.opened {
		f.opened = false
		f.opening = true
	}
	if f.opening {
		f.keepOpening()
	}
	f.notifyChange()
	return id, nil
}

// RemoveMaster removes a master. If it is mid-open (Opening), removal
// is deferred: the master is tombstoned and true deletion happens
// when the pending OPEN eventually arrives. Returns true if the
// master was removed synchronously, false if deferred.
func (f *Forwarder) RemoveMaster(id MasterID) bool {
	master, ok := f.masters[id]
	if !ok {
		return true
	}

	// A master already dispatched, or one that will be imminently
	// dispatched by the next keepOpening pass because the forwarder
	// itself is mid-open, cannot be reaped synchronously: tombstone it
	// and let promoteMaster tear it down once its OPEN arrives.
	if master.Opening || (f.opening && !master.IsOpen()) {
		master.Deleted = true
		f.recomputeSpan()
		f.notifyChange()
		f.log.Debug().Str("master", master.Name).Msg("master removal deferred (tombstoned)")
		return false
	}

	if master.IsOpen() {
		if f.an != nil {
			f.an.CloseInspector(master.Handle)
			metrics.ClosesTotal.WithLabelValues("removed").Inc()
		}
		master.Handle = analyzer.InvalidHandle
		// The analyzer cascades the close to every child inspector; the
		// forwarder mirrors that by firing each open child's Closed.
		for _, cid := range master.Channels {
			if channel := f.channels[cid]; channel != nil && channel.IsOpen() && channel.Consumer != nil {
				channel.Consumer.Closed()
			}
		}
	}

	f.deleteMasterDirect(id)
	f.notifyChange()
	f.log.Debug().Str("master", master.Name).Msg("master removed")
	return true
}

// RemoveChannel removes a channel. If it is mid-open (Opening),
// removal is deferred the same way as RemoveMaster.
func (f *Forwarder) RemoveChannel(id ChannelID) bool {
	channel, ok := f.channels[id]
	if !ok {
		return true
	}

	if channel.Opening || (f.opening && !channel.IsOpen()) {
		channel.Deleted = true
		f.notifyChange()
		return false
	}

	if channel.IsOpen() {
		if f.an != nil {
			f.an.CloseInspector(channel.Handle)
			metrics.ClosesTotal.WithLabelValues("removed").Inc()
		}
		if channel.Consumer != nil {
			channel.Consumer.Closed()
		}
		channel.Handle = analyzer.InvalidHandle
	}

	f.deleteChannelDirect(id)
	f.notifyChange()
	return true
}

// RemoveAll removes every master (and transitively every channel).
// Returns true only if every removal happened synchronously.
func (f *Forwarder) RemoveAll() bool {
	all := true
	for _, mid := range append([]MasterID{}, f.masterOrder...) {
		if !f.RemoveMaster(mid) {
			all = false
		}
	}
	return all
}

// deleteChannelDirect unconditionally removes a channel's bookkeeping
// and detaches it from its parent, without touching any live analyzer
// handle — callers are responsible for closing it first if needed.
func (f *Forwarder) deleteChannelDirect(id ChannelID) {
	channel, ok := f.channels[id]
	if !ok {
		return
	}
	if f.channelByName[channel.Name] == id {
		delete(f.channelByName, channel.Name)
	}
	if channel.IsOpen() {
		delete(f.openChannels, channel.Handle)
		if master := f.masters[channel.Parent]; master != nil && master.OpenCount > 0 {
			master.OpenCount--
		}
	} else if channel.Opening {
		delete(f.pendingChannels, channel.ReqID)
	}
	if master := f.masters[channel.Parent]; master != nil {
		master.Channels = removeChannelID(master.Channels, id)
	}
	delete(f.channels, id)
}

// deleteMasterDirect unconditionally removes a master and all of its
// children's bookkeeping.
func (f *Forwarder) deleteMasterDirect(id MasterID) {
	master, ok := f.masters[id]
	if !ok {
		return
	}
	if f.masterByName[master.Name] == id {
		delete(f.masterByName, master.Name)
	}
	for _, cid := range append([]ChannelID{}, master.Channels...) {
		f.deleteChannelDirect(cid)
	}
	if master.IsOpen() {
		delete(f.openMasters, master.Handle)
	} else if master.Opening {
		delete(f.pendingMasters, master.ReqID)
	}
	delete(f.masters, id)
	f.masterOrder = removeMasterID(f.masterOrder, id)
	f.recomputeSpan()
}

func (f *Forwarder) recomputeSpan() {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, mid := range f.masterOrder {
		m := f.masters[mid]
		if m.Deleted {
			continue
		}
		l, h := m.Frequency-m.Bandwidth/2, m.Frequency+m.Bandwidth/2
		if l < lo {
			lo = l
		}
		if h > hi {
			hi = h
		}
	}
	f.freqMin, f.freqMax = lo, hi
	if !math.IsInf(f.freqMax, 0) && !math.IsInf(f.freqMin, 0) {
		metrics.SpanHz.Set(f.freqMax - f.freqMin)
	} else {
		metrics.SpanHz.Set(0)
	}
}

// UpdateMasterConfig pushes a master's currently stored config to the
// analyzer again. A no-op if the master is not open.
func (f *Forwarder) UpdateMasterConfig(id MasterID) error {
	master, ok := f.masters[id]
	if !ok {
		return fmt.Errorf("forwarder: no such master %d", id)
	}
	if !master.IsOpen() || f.an == nil {
		return nil
	}
	return f.an.SetInspectorConfig(master.Handle, master.Config)
}

// SetMasterEnabled toggles a master's enabled flag. The change is a
// no-op unless it is an actual transition, in which case it is pushed
// to the analyzer immediately if the master is open.
func (f *Forwarder) SetMasterEnabled(id MasterID, enabled bool) error {
	master, ok := f.masters[id]
	if !ok {
		return fmt.Errorf("forwarder: no such master %d", id)
	}
	if master.Enabled == enabled {
		return nil
	}
	master.Enabled = enabled
	f.notifyChange()
	if !master.IsOpen() || f.an == nil {
		return nil
	}
	cfg := master.Config.Clone()
	if cfg == nil {
		cfg = analyzer.Config{}
	}
	cfg["enabled"] = enabled
	master.Config = cfg
	return f.an.SetInspectorConfig(master.Handle, cfg)
}

func removeChannelID(s []ChannelID, id ChannelID) []ChannelID {
	for i, v := range s {
		if v == id {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func removeMasterID(s []MasterID, id MasterID) []MasterID {
	for i, v := range s {
		if v == id {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
