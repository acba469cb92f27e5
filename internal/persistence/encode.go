package persistence

import (
	"fmt"
	"io"

	"github.com/fventuri/inspfwd/internal/forwarder"
	"gopkg.in/ini.v1"
)

// ChannelMeta supplies the consumer-level fields encode needs but the
// forwarder core doesn't track (demod submode, output sample rate,
// enabled flag).
type ChannelMeta struct {
	Demod   string // "", "fm", "am", "usb", "lsb"
	OutRate float64
	Enabled bool
}

// Save serializes f's current tree, in its present insertion order,
// back into the ini format Load reads. metaOf supplies each channel's
// demod/out_rate/enabled flag. With a nil metaOf or a zero
// ChannelMeta, the channel is written with its bare class and no
// submode, out_rate=filter_bandwidth, and SigDigger.disabled=true
// (Enabled is false in the zero value).
func Save(w io.Writer, f *forwarder.Forwarder, fe FrontEnd, metaOf func(forwarder.ChannelID) ChannelMeta) error {
	cfg := ini.Empty()
	def := cfg.Section("")
	if fe.ZMQAddress != "" {
		def.Key("zmq_address").SetValue(fe.ZMQAddress)
	}
	def.Key("center_frequency").SetValue(fmt.Sprintf("%d", int64(fe.CenterFrequency)))
	def.Key("mix_offset").SetValue(fmt.Sprintf("%d", int64(fe.MixOffset)))
	def.Key("correct_dc_bias").SetValue(fmt.Sprintf("%t", fe.CorrectDCBias))

	channelIndex := 0
	for mi, mid := range f.MasterOrder() {
		m, ok := f.Master(mid)
		if !ok {
			continue
		}
		msec, err := cfg.NewSection(fmt.Sprintf("main_vfos.%d", mi))
		if err != nil {
			return err
		}
		msec.Key("zmq_topic").SetValue(m.Name)
		msec.Key("frequency").SetValue(fmt.Sprintf("%d", int64(m.Frequency)))
		msec.Key("out_rate").SetValue(fmt.Sprintf("%d", int64(m.Bandwidth/extraBWFactor)))
		msec.Key("SigDigger.disabled").SetValue(fmt.Sprintf("%t", !m.Enabled))

		for _, cid := range m.Channels {
			c, ok := f.Channel(cid)
			if !ok {
				continue
			}
			meta := ChannelMeta{}
			if metaOf != nil {
				meta = metaOf(cid)
			}
			filterBW := c.Bandwidth
			outRate := meta.OutRate
			if outRate == 0 {
				outRate = filterBW
			}

			freq := m.Frequency + c.Offset
			switch meta.Demod {
			case "usb":
				freq -= filterBW / 2
			case "lsb":
				freq += filterBW / 2
			}

			csec, err := cfg.NewSection(fmt.Sprintf("vfos.%d", channelIndex))
			if err != nil {
				return err
			}
			csec.Key("topic").SetValue(c.Name)
			csec.Key("frequency").SetValue(fmt.Sprintf("%d", int64(freq)))
			csec.Key("filter_bandwidth").SetValue(fmt.Sprintf("%d", int64(filterBW)))
			csec.Key("SigDigger.demod").SetValue(joinDemod(c.InspClass, meta.Demod))
			csec.Key("out_rate").SetValue(fmt.Sprintf("%d", int64(outRate)))
			csec.Key("SigDigger.disabled").SetValue(fmt.Sprintf("%t", !meta.Enabled))
			channelIndex++
		}
	}

	_, err := cfg.WriteTo(w)
	return err
}
