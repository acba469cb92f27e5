package forwarder

import (
	"math"

	"github.com/fventuri/inspfwd/internal/analyzer"
	"github.com/fventuri/inspfwd/internal/consumer"
	"github.com/fventuri/inspfwd/internal/forwarder/ferrors"
	"github.com/fventuri/inspfwd/internal/metrics"
)

// OpenAll transitions the tree from Idle to Opening and starts driving
// it towards Open. A no-op if there is no analyzer attached or the
// forwarder is already Opening or Open.
func (f *Forwarder) OpenAll() {
	if f.an == nil || f.opening || f.opened {
		return
	}
	f.opening = true
	f.log.Debug().Int("masters", len(f.masters)).Msg("opening all")
	f.keepOpening()
	f.notifyChange()
}

// CloseAll is the only path back to Idle from any other state. It
// closes every open master (the analyzer cascades to children),
// fires Closed on every open channel's consumer, drops every
// pending/open bookkeeping entry, reaps any tombstoned entities, and
// clears the accumulated error log.
func (f *Forwarder) CloseAll() {
	for _, mid := range f.masterOrder {
		master := f.masters[mid]
		if master.IsOpen() && f.an != nil {
			f.an.CloseInspector(master.Handle)
			metrics.ClosesTotal.WithLabelValues("close_all").Inc()
		}
		for _, cid := range master.Channels {
			channel := f.channels[cid]
			if channel.IsOpen() && channel.Consumer != nil {
				channel.Consumer.Closed()
			}
		}
	}
	f.reset()
	f.notifyChange()
	f.log.Debug().Msg("closed all")
}

// reset clears all open/pending bookkeeping, reaps tombstoned
// entities from the tree, and returns the forwarder to Idle. It does
// not touch the analyzer — callers that need handles closed must do
// so first (CloseAll).
func (f *Forwarder) reset() {
	for _, mid := range append([]MasterID{}, f.masterOrder...) {
		master := f.masters[mid]
		if master.Deleted {
			f.deleteMasterDirect(mid)
			continue
		}
		master.Handle = analyzer.InvalidHandle
		master.Opening = false
		master.OpenCount = 0
		for _, cid := range append([]ChannelID{}, master.Channels...) {
			channel := f.channels[cid]
			channel.Handle = analyzer.InvalidHandle
			channel.Opening = false
			if channel.Deleted {
				f.deleteChannelDirect(cid)
			}
		}
	}
	f.openMasters = make(map[analyzer.Handle]MasterID)
	f.pendingMasters = make(map[analyzer.RequestID]MasterID)
	f.openChannels = make(map[analyzer.Handle]ChannelID)
	f.pendingChannels = make(map[analyzer.RequestID]ChannelID)
	f.opened = false
	f.opening = false
	f.ClearErrors()
}

// keepOpening dispatches the next wave of open requests: any master
// not yet open and not already opening, and, for every open master,
// any child not yet open and not already opening. A tombstoned entity
// is dispatched exactly like a live one — promoteMaster/promoteChannel
// tear it down the moment its OPEN response arrives.
func (f *Forwarder) keepOpening() {
	if f.opened {
		return
	}
	if len(f.masters) == 0 {
		f.opened = true
		f.opening = false
		return
	}

	info, err := f.an.SourceInfo()
	if err != nil {
		return
	}

	for _, mid := range f.masterOrder {
		master := f.masters[mid]

		// A tombstoned master still gets dispatched normally if it
		// hasn't been yet — promoteMaster tears it down the moment
		// its OPEN arrives. Only skip it for the fan-out-to-children
		// step, since a tombstoned master never legitimately opens.
		if !master.IsOpen() && !master.Opening {
			reqID := f.an.AllocateRequestID()
			spec := analyzer.ChannelSpec{
				Fc:    master.Frequency - info.Frequency,
				FLow:  -master.Bandwidth / 2,
				FHigh: master.Bandwidth / 2,
				Bw:    master.Bandwidth,
			}
			f.an.Open("multicarrier", spec, reqID)
			f.pendingMasters[reqID] = mid
			master.ReqID = reqID
			master.Opening = true
			metrics.OpensTotal.WithLabelValues("master").Inc()
			f.log.Debug().Str("master", master.Name).Int64("reqId", int64(reqID)).Msg("master open dispatched")
			continue
		}

		if master.IsOpen() && !master.Deleted {
			for _, cid := range master.Channels {
				channel := f.channels[cid]
				if channel.IsOpen() || channel.Opening {
					continue
				}
				extraRoom := math.Min(f.maxBandwidth, master.Bandwidth)
				reqID := f.an.AllocateRequestID()
				spec := analyzer.OpenExSpec{
					Fc:    channel.Offset,
					FLow:  -extraRoom / 2,
					FHigh: extraRoom / 2,
					Bw:    extraRoom,
				}
				f.an.OpenEx(string(channel.InspClass), spec, true, master.Handle, reqID)
				f.pendingChannels[reqID] = cid
				channel.ReqID = reqID
				channel.Opening = true
				metrics.OpensTotal.WithLabelValues("channel").Inc()
				f.log.Debug().Str("channel", channel.Name).Str("master", master.Name).Int64("reqId", int64(reqID)).Msg("channel open dispatched")
			}
		}
	}
}

// promoteMaster resolves a pending master open. If the master was
// tombstoned while opening, the new handle is closed immediately and
// the master fully reaped; otherwise the handle is recorded and, if
// the master is configured disabled, that setting is pushed right
// away. Returns false in the tombstone case, true otherwise.
func (f *Forwarder) promoteMaster(id MasterID, handle analyzer.Handle, cfg analyzer.Config) bool {
	master := f.masters[id]
	delete(f.pendingMasters, master.ReqID)

	if master.Deleted {
		if f.an != nil {
			f.an.CloseInspector(handle)
		}
		master.Deleted = false
		master.Handle = analyzer.InvalidHandle
		master.Opening = false
		f.deleteMasterDirect(id)
		f.log.Debug().Str("master", master.Name).Int64("handle", int64(handle)).Msg("tombstoned master closed on late open")
		return false
	}

	master.Handle = handle
	master.Opening = false
	master.Config = cfg
	f.log.Debug().Str("master", master.Name).Int64("handle", int64(handle)).Msg("master opened")
	if !master.Enabled && f.an != nil {
		disableCfg := analyzer.Config{"enabled": false}
		f.an.SetInspectorConfig(handle, disableCfg)
	}
	f.openMasters[handle] = id
	return true
}

// promoteChannel resolves a pending channel open, symmetric to
// promoteMaster but additionally tightening the inspector's bandwidth
// down from the extra-room spec used to open it and notifying the
// channel's consumer.
func (f *Forwarder) promoteChannel(id ChannelID, msg analyzer.OpenMessage) bool {
	channel := f.channels[id]
	delete(f.pendingChannels, channel.ReqID)

	if channel.Deleted {
		if f.an != nil {
			f.an.CloseInspector(msg.Handle)
		}
		channel.Deleted = false
		channel.Handle = analyzer.InvalidHandle
		channel.Opening = false
		f.deleteChannelDirect(id)
		f.log.Debug().Str("channel", channel.Name).Int64("handle", int64(msg.Handle)).Msg("tombstoned channel closed on late open")
		return false
	}

	channel.Handle = msg.Handle
	channel.Opening = false
	channel.SampRate = msg.EquivSampleRate
	f.log.Debug().Str("channel", channel.Name).Int64("handle", int64(msg.Handle)).Msg("channel opened")

	if master := f.masters[channel.Parent]; master != nil {
		master.OpenCount++
	}
	f.openChannels[msg.Handle] = id

	if f.an != nil {
		f.an.SetInspectorID(msg.Handle, msg.Handle)
		f.an.SetInspectorBandwidth(msg.Handle, channel.Bandwidth)
	}

	if channel.Consumer != nil {
		channel.Consumer.Opened(f.an, msg.Handle, consumer.ChannelInfo{
			Name:      channel.Name,
			Offset:    channel.Offset,
			Bandwidth: channel.Bandwidth,
			InspClass: string(channel.InspClass),
			SampRate:  channel.SampRate,
		}, msg.Config)
	}
	return true
}

// ProcessMessage routes one asynchronous analyzer response to its
// pending request, if any. It returns true if the message was
// recognized as belonging to this forwarder (a tombstoned entity's
// late arrival counts as recognized). Messages for unknown request
// ids are ignored — a stale response from a request this forwarder no
// longer remembers, or one destined for some other consumer of the
// same analyzer.
func (f *Forwarder) ProcessMessage(msg analyzer.InboundMessage) bool {
	if !f.opening {
		return false
	}

	switch m := msg.(type) {
	case analyzer.OpenMessage:
		matched := false
		if mid, ok := f.pendingMasters[m.ReqID]; ok {
			matched = true
			f.promoteMaster(mid, m.Handle, m.Config)
		} else if cid, ok := f.pendingChannels[m.ReqID]; ok {
			matched = true
			f.promoteChannel(cid, m)
		}
		if matched {
			f.keepOpening()
		}
		f.opened = len(f.pendingMasters) == 0 && len(f.pendingChannels) == 0
		f.opening = !f.opened
		if matched {
			f.notifyChange()
		}
		return matched

	case analyzer.WrongHandleMessage:
		if _, ok := f.pendingChannels[m.ReqID]; ok {
			f.CloseAll()
			f.errorf(ferrors.KindProtocolFailure, "analyzer rejected request %d: wrong handle", m.ReqID)
			metrics.ProtocolFailuresTotal.WithLabelValues("wrong_handle").Inc()
			f.log.Warn().Int64("reqId", int64(m.ReqID)).Msg("analyzer reported wrong handle, closing all")
			return true
		}
		return false

	case analyzer.InvalidChannelMessage:
		_, inChan := f.pendingChannels[m.ReqID]
		_, inMaster := f.pendingMasters[m.ReqID]
		if inChan || inMaster {
			f.CloseAll()
			f.errorf(ferrors.KindProtocolFailure, "analyzer rejected request %d: invalid channel limits", m.ReqID)
			metrics.ProtocolFailuresTotal.WithLabelValues("invalid_channel").Inc()
			f.log.Warn().Int64("reqId", int64(m.ReqID)).Msg("analyzer reported invalid channel limits, closing all")
			return true
		}
		return false

	default:
		return false
	}
}

// FeedSamplesMessage routes a sample burst to the channel currently
// holding the given inspector handle, if any. Returns false if no
// open channel owns that handle (e.g. it raced a close).
func (f *Forwarder) FeedSamplesMessage(msg analyzer.SamplesMessage) bool {
	cid, ok := f.openChannels[msg.InspectorID]
	if !ok {
		return false
	}
	channel := f.channels[cid]
	if channel.Consumer != nil {
		channel.Consumer.Samples(msg.Samples, msg.Count)
	}
	return true
}
