package persistence_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/fventuri/inspfwd/internal/consumer"
	"github.com/fventuri/inspfwd/internal/forwarder"
	"github.com/fventuri/inspfwd/internal/forwarder/ferrors"
	"github.com/fventuri/inspfwd/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSaveLoadRoundTrip covers scenario S6: build a master and an
// LSB channel, save, then load into an empty forwarder; the reloaded
// channel's absolute frequency and demod must survive the round trip.
func TestSaveLoadRoundTrip(t *testing.T) {
	f := forwarder.New(1_000_000)
	_, err := f.MakeMaster("M", 100_000_000, 220_000)
	require.NoError(t, err)
	cid, err := f.MakeChannel("c", 100_005_000, 10_000, forwarder.ChannelClassAudio, nil)
	require.NoError(t, err)

	meta := map[forwarder.ChannelID]persistence.ChannelMeta{
		cid: {Demod: "lsb", OutRate: 10_000, Enabled: true},
	}

	var buf bytes.Buffer
	err = persistence.Save(&buf, f, persistence.FrontEnd{CenterFrequency: 100_000_000}, func(id forwarder.ChannelID) persistence.ChannelMeta {
		return meta[id]
	})
	require.NoError(t, err)

	snap, err := persistence.Load(&buf)
	require.NoError(t, err)
	require.Len(t, snap.Masters, 1)
	require.Len(t, snap.Masters[0].Channels, 1)

	c := snap.Masters[0].Channels[0]
	assert.Equal(t, "c", c.Name)
	assert.InDelta(t, 100_005_000, c.Frequency, 1)
	assert.Equal(t, "lsb", c.Demod)
	assert.True(t, c.Enabled)

	reloaded := forwarder.New(1_000_000)
	err = persistence.Apply(reloaded, snap, func(m persistence.MasterSpec, c persistence.ChannelSpec) consumer.Consumer {
		return nil
	})
	require.NoError(t, err)

	rcid, ok := reloaded.FindChannel("c")
	require.True(t, ok)
	rm, ok := reloaded.FindMaster("M")
	require.True(t, ok)
	master, _ := reloaded.Master(rm)
	rc, _ := reloaded.Channel(rcid)
	assert.InDelta(t, 100_005_000, master.Frequency+rc.Offset, 1)
}

// TestSaveLoadDisabledChannelRoundTrip is invariant 7 (load(save(T))=T)
// for a channel saved with Enabled=false: SigDigger.disabled must come
// back out the other side as true, not unconditionally false.
func TestSaveLoadDisabledChannelRoundTrip(t *testing.T) {
	f := forwarder.New(1_000_000)
	_, err := f.MakeMaster("M", 100_000_000, 220_000)
	require.NoError(t, err)
	cid, err := f.MakeChannel("c", 100_005_000, 10_000, forwarder.ChannelClassAudio, nil)
	require.NoError(t, err)

	meta := map[forwarder.ChannelID]persistence.ChannelMeta{
		cid: {OutRate: 10_000, Enabled: false},
	}

	var buf bytes.Buffer
	err = persistence.Save(&buf, f, persistence.FrontEnd{}, func(id forwarder.ChannelID) persistence.ChannelMeta {
		return meta[id]
	})
	require.NoError(t, err)
	require.True(t, strings.Contains(buf.String(), "SigDigger.disabled = true"))

	snap, err := persistence.Load(&buf)
	require.NoError(t, err)
	require.Len(t, snap.Masters[0].Channels, 1)
	assert.False(t, snap.Masters[0].Channels[0].Enabled)
}

// TestSSBRoundTrip is invariant 8: for usb/lsb channels, encode then
// decode must recover the pre-encode absolute frequency to within 1Hz.
func TestSSBRoundTrip(t *testing.T) {
	for _, demod := range []string{"usb", "lsb"} {
		demod := demod
		t.Run(demod, func(t *testing.T) {
			f := forwarder.New(1_000_000)
			_, err := f.MakeMaster("M", 100_000_000, 220_000)
			require.NoError(t, err)
			cid, err := f.MakeChannel("c", 100_005_000, 10_000, forwarder.ChannelClassAudio, nil)
			require.NoError(t, err)

			var buf bytes.Buffer
			err = persistence.Save(&buf, f, persistence.FrontEnd{}, func(id forwarder.ChannelID) persistence.ChannelMeta {
				if id == cid {
					return persistence.ChannelMeta{Demod: demod, OutRate: 10_000}
				}
				return persistence.ChannelMeta{}
			})
			require.NoError(t, err)

			snap, err := persistence.Load(&buf)
			require.NoError(t, err)
			require.Len(t, snap.Masters[0].Channels, 1)
			assert.InDelta(t, 100_005_000, snap.Masters[0].Channels[0].Frequency, 1)
			assert.Equal(t, demod, snap.Masters[0].Channels[0].Demod)
		})
	}
}

func TestLoadLegacyFiterBandwidthTypo(t *testing.T) {
	src := strings.Join([]string{
		"[main_vfos.0]",
		"zmq_topic = M",
		"frequency = 100000000",
		"out_rate = 200000",
		"",
		"[vfos.0]",
		"topic = c",
		"frequency = 100005000",
		"fiter_bandwidth = 10000",
		"SigDigger.demod = audio:usb",
	}, "\n")

	snap, err := persistence.Load(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, snap.Masters[0].Channels, 1)
	assert.Equal(t, float64(10_000), snap.Masters[0].Channels[0].FilterBandwidth)
}

func TestLoadDataRateFallbackTable(t *testing.T) {
	cases := []struct {
		dataRate float64
		outRate  float64
	}{
		{600, 12_000},
		{1200, 24_000},
		{9600, 48_000},
		{0, 48_000},
	}
	for _, tc := range cases {
		src := strings.Join([]string{
			"[main_vfos.0]",
			"zmq_topic = M",
			"frequency = 100000000",
			"out_rate = 200000",
			"",
			"[vfos.0]",
			"topic = c",
			"frequency = 100000000",
			fmt.Sprintf("data_rate = %d", int64(tc.dataRate)),
		}, "\n")

		snap, err := persistence.Load(strings.NewReader(src))
		require.NoError(t, err)
		require.Len(t, snap.Masters[0].Channels, 1)
		assert.Equal(t, tc.outRate, snap.Masters[0].Channels[0].OutRate)
	}
}

func TestLoadMissingBandwidth(t *testing.T) {
	src := "[main_vfos.0]\nzmq_topic = M\nfrequency = 100000000\n"
	_, err := persistence.Load(strings.NewReader(src))
	require.Error(t, err)
	assert.ErrorIs(t, err, ferrors.KindMissingBandwidth)
}

func TestLoadMissingFrequency(t *testing.T) {
	src := "[main_vfos.0]\nzmq_topic = M\nout_rate = 200000\n"
	_, err := persistence.Load(strings.NewReader(src))
	require.Error(t, err)
	assert.ErrorIs(t, err, ferrors.KindMissingFrequency)
}

func TestLoadAnonymousChannel(t *testing.T) {
	src := strings.Join([]string{
		"[main_vfos.0]",
		"zmq_topic = M",
		"frequency = 100000000",
		"out_rate = 200000",
		"",
		"[vfos.0]",
		"frequency = 100000000",
		"filter_bandwidth = 10000",
	}, "\n")
	_, err := persistence.Load(strings.NewReader(src))
	require.Error(t, err)
	assert.ErrorIs(t, err, ferrors.KindAnonymousChannel)
}

func TestLoadNoCoveringMasterSurfacedByApply(t *testing.T) {
	src := strings.Join([]string{
		"[vfos.0]",
		"topic = orphan",
		"frequency = 50000000",
		"filter_bandwidth = 10000",
	}, "\n")
	snap, err := persistence.Load(strings.NewReader(src))
	require.NoError(t, err)

	f := forwarder.New(1_000_000)
	err = persistence.Apply(f, snap, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ferrors.KindNoCoveringMaster)
}

func TestArrayTerminatesOnFirstMissingIndex(t *testing.T) {
	src := strings.Join([]string{
		"[main_vfos.0]",
		"zmq_topic = M0",
		"frequency = 100000000",
		"out_rate = 200000",
		"",
		"[main_vfos.2]",
		"zmq_topic = M2",
		"frequency = 200000000",
		"out_rate = 200000",
	}, "\n")
	snap, err := persistence.Load(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, snap.Masters, 1)
	assert.Equal(t, "M0", snap.Masters[0].Name)
}
