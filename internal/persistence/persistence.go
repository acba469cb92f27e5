// Package persistence loads and saves a forwarder's tree to an
// ini-formatted settings file. The on-disk shape mirrors a QSettings
// document written by the original SigDigger-family tooling this
// system replaces: a flat key space plus two integer-indexed arrays,
// "main_vfos" (masters) and "vfos" (channels). gopkg.in/ini.v1 has no
// native equivalent of QSettings::beginReadArray/endArray, so the
// array convention is emulated with numbered sections:
// [main_vfos.0], [main_vfos.1], ... and [vfos.0], [vfos.1], ...,
// terminated by the first missing index.
package persistence

import (
	"fmt"
	"io"

	"github.com/fventuri/inspfwd/internal/consumer"
	"github.com/fventuri/inspfwd/internal/forwarder"
	"github.com/fventuri/inspfwd/internal/forwarder/ferrors"
	"gopkg.in/ini.v1"
)

// extraBWFactor is the filter-skirt allowance applied to a master's
// out_rate to obtain its actual admitted bandwidth. Part of the
// on-disk contract: encode and decode must use the same factor.
const extraBWFactor = 1.1

// FrontEnd captures the tuner-level settings stored alongside the
// channel tree — dropped by the channel-tree distillation but present
// on disk, and needed to re-home the analyzer's tuner before replaying
// a saved tree.
type FrontEnd struct {
	ZMQAddress      string
	CenterFrequency float64
	MixOffset       float64
	CorrectDCBias   bool
}

// ChannelSpec is a channel as read from or destined for disk. Demod
// and OutRate are consumer-level concerns the forwarder core itself
// doesn't track; callers thread them into whatever Consumer they
// construct for the channel.
type ChannelSpec struct {
	Name            string
	Frequency       float64
	FilterBandwidth float64
	OutRate         float64
	Demod           string // "", "fm", "am", "usb", "lsb"
	InspClass       forwarder.ChannelClass
	Enabled         bool
}

// MasterSpec is a master and its channels as read from or destined
// for disk.
type MasterSpec struct {
	Name      string
	Frequency float64
	Bandwidth float64
	Enabled   bool
	Channels  []ChannelSpec
}

// Snapshot is a complete decoded settings file.
type Snapshot struct {
	FrontEnd FrontEnd
	Masters  []MasterSpec
}

func demodToInspClass(demod string) forwarder.ChannelClass {
	if demod == "raw" || demod == "" {
		return forwarder.ChannelClassRaw
	}
	return forwarder.ChannelClassAudio
}

// splitDemod separates a "SigDigger.demod" value like "audio:usb"
// into its class prefix and submode. A bare "raw" has no submode.
func splitDemod(v string) (class, submode string) {
	for i := 0; i < len(v); i++ {
		if v[i] == ':' {
			return v[:i], v[i+1:]
		}
	}
	return v, ""
}

func joinDemod(class forwarder.ChannelClass, submode string) string {
	if submode == "" {
		return string(class)
	}
	return fmt.Sprintf("%s:%s", class, submode)
}

// Load decodes an ini-formatted settings file into a Snapshot. It
// aborts on the first malformed entry, per the on-disk format's
// all-or-nothing loading contract; the caller is expected to follow a
// failed Load with forwarder.RemoveAll to restore a clean tree if it
// had partially populated one from a previous Load.
func Load(r io.Reader) (*Snapshot, error) {
	cfg, err := ini.Load(r)
	if err != nil {
		return nil, ferrors.New(ferrors.KindFormatError, "malformed settings file: %v", err)
	}

	def := cfg.Section("")
	snap := &Snapshot{
		FrontEnd: FrontEnd{
			ZMQAddress:      def.Key("zmq_address").String(),
			CenterFrequency: def.Key("center_frequency").MustFloat64(0),
			MixOffset:       def.Key("mix_offset").MustFloat64(0),
			CorrectDCBias:   def.Key("correct_dc_bias").MustBool(false),
		},
	}

	for i := 0; ; i++ {
		name := fmt.Sprintf("main_vfos.%d", i)
		if !cfg.HasSection(name) {
			break
		}
		sec := cfg.Section(name)

		outRate := sec.Key("out_rate").MustFloat64(0)
		freq := sec.Key("frequency").MustFloat64(0)
		topic := sec.Key("zmq_topic").String()
		if topic == "" {
			topic = fmt.Sprintf("MASTER_%d", i+1)
		}

		if outRate == 0 {
			return nil, ferrors.New(ferrors.KindMissingBandwidth, "master %q: out_rate is undefined or zero", topic)
		}
		if freq == 0 {
			return nil, ferrors.New(ferrors.KindMissingFrequency, "master %q: frequency is undefined or zero", topic)
		}

		snap.Masters = append(snap.Masters, MasterSpec{
			Name:      topic,
			Frequency: freq,
			Bandwidth: outRate * extraBWFactor,
			Enabled:   !sec.Key("SigDigger.disabled").MustBool(false),
		})
	}

	for i := 0; ; i++ {
		name := fmt.Sprintf("vfos.%d", i)
		if !cfg.HasSection(name) {
			break
		}
		sec := cfg.Section(name)

		filterBW := sec.Key("filter_bandwidth").MustFloat64(0)
		if filterBW == 0 {
			filterBW = sec.Key("fiter_bandwidth").MustFloat64(0)
		}
		freq := sec.Key("frequency").MustFloat64(0)
		topic := sec.Key("topic").String()
		demod := sec.Key("SigDigger.demod").String()
		if demod == "" {
			demod = "audio:usb"
		}
		outRate := sec.Key("out_rate").MustFloat64(0)
		dataRate := sec.Key("data_rate").MustFloat64(0)

		if topic == "" {
			return nil, ferrors.New(ferrors.KindAnonymousChannel, "channel at index %d has no topic", i)
		}

		if outRate == 0 {
			switch dataRate {
			case 600:
				outRate = 12000
			case 1200:
				outRate = 24000
			default:
				outRate = 48000
			}
		}

		if filterBW == 0 {
			filterBW = outRate
		}

		class, submode := splitDemod(demod)
		switch submode {
		case "usb":
			freq += filterBW / 2
		case "lsb":
			freq -= filterBW / 2
		}

		snap.mergeChannel(ChannelSpec{
			Name:            topic,
			Frequency:       freq,
			FilterBandwidth: filterBW,
			OutRate:         outRate,
			Demod:           submode,
			InspClass:       demodToInspClass(class),
			Enabled:         !sec.Key("SigDigger.disabled").MustBool(false),
		})
	}

	return snap, nil
}

// mergeChannel attaches ch to whichever decoded master covers its
// band, mirroring FindMasterByBand's containment rule at decode time
// (the forwarder itself hasn't been built yet).
func (s *Snapshot) mergeChannel(ch ChannelSpec) {
	lo, hi := ch.Frequency-ch.FilterBandwidth/2, ch.Frequency+ch.FilterBandwidth/2
	for i := range s.Masters {
		m := &s.Masters[i]
		mlo, mhi := m.Frequency-m.Bandwidth/2, m.Frequency+m.Bandwidth/2
		if mlo <= lo && hi <= mhi {
			m.Channels = append(m.Channels, ch)
			return
		}
	}
	// No covering master on disk: keep the channel orphaned under a
	// synthetic zero-width entry rather than silently dropping it, so
	// Apply can surface a NoCoveringMaster error the same way
	// makeChannel would.
	s.Masters = append(s.Masters, MasterSpec{Name: "", Channels: []ChannelSpec{ch}})
}

// Apply populates an empty forwarder from a decoded Snapshot.
// channelSink constructs the Consumer to own each channel (it
// receives the fully resolved ChannelSpec so it can configure
// demod/out_rate once its channel opens); if channelSink is nil,
// every channel is created without a consumer. Apply aborts and
// returns the first error, mirroring Load's all-or-nothing contract —
// on error the caller should follow with forwarder.RemoveAll.
func Apply(f *forwarder.Forwarder, snap *Snapshot, channelSink func(m MasterSpec, c ChannelSpec) consumer.Consumer) error {
	for _, m := range snap.Masters {
		if m.Name == "" {
			return ferrors.New(ferrors.KindNoCoveringMaster, "channel %q has no covering master on disk", m.Channels[0].Name)
		}
		mid, err := f.MakeMaster(m.Name, m.Frequency, m.Bandwidth)
		if err != nil {
			return err
		}
		if !m.Enabled {
			if err := f.SetMasterEnabled(mid, false); err != nil {
				return err
			}
		}
		for _, c := range m.Channels {
			var sink consumer.Consumer
			if channelSink != nil {
				sink = channelSink(m, c)
			}
			if _, err := f.MakeChannel(c.Name, c.Frequency, c.FilterBandwidth, c.InspClass, sink); err != nil {
				return err
			}
		}
	}
	return nil
}
