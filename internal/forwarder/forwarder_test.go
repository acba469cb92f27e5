package forwarder_test

import (
	"testing"

	"github.com/fventuri/inspfwd/internal/analyzer"
	"github.com/fventuri/inspfwd/internal/analyzer/mockanalyzer"
	"github.com/fventuri/inspfwd/internal/consumer"
	"github.com/fventuri/inspfwd/internal/forwarder"
	"github.com/fventuri/inspfwd/internal/forwarder/ferrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink is a consumer.Consumer double that records every callback
// it receives.
type fakeSink struct {
	openedHandle analyzer.Handle
	openedInfo   consumer.ChannelInfo
	openCount    int
	closedCount  int
	samples      int
}

func (s *fakeSink) Opened(an analyzer.Analyzer, h analyzer.Handle, ch consumer.ChannelInfo, cfg analyzer.Config) {
	s.openedHandle = h
	s.openedInfo = ch
	s.openCount++
}

func (s *fakeSink) Samples(buf []complex64, count int) { s.samples += count }
func (s *fakeSink) Closed()                            { s.closedCount++ }
func (s *fakeSink) EnableStateChanged(enabled bool)     {}

func TestHappyOpen(t *testing.T) {
	an := mockanalyzer.New()
	f := forwarder.New(20_000)
	f.SetAnalyzer(an)

	_, err := f.MakeMaster("M", 100_000_000, 200_000)
	require.NoError(t, err)
	sink := &fakeSink{}
	_, err = f.MakeChannel("c", 100_050_000, 12_500, forwarder.ChannelClassAudio, sink)
	require.NoError(t, err)

	f.OpenAll()
	require.True(t, f.IsOpening())
	require.Len(t, an.Opens, 1)

	reqM := an.LastOpenReqID()
	h1 := an.NextHandle()
	changed := f.ProcessMessage(analyzer.OpenMessage{ReqID: reqM, Handle: h1, Config: analyzer.Config{"x": 1}})
	require.True(t, changed)
	require.Len(t, an.OpenExes, 1)

	reqC := an.LastOpenExReqID()
	h2 := an.NextHandle()
	changed = f.ProcessMessage(analyzer.OpenMessage{ReqID: reqC, Handle: h2, Config: analyzer.Config{}, EquivSampleRate: 48000})
	require.True(t, changed)

	assert.True(t, f.IsOpen())
	assert.Equal(t, 1, sink.openCount)
	assert.Equal(t, h2, sink.openedHandle)
	assert.Equal(t, float64(48000), sink.openedInfo.SampRate)

	mid, _ := f.FindMaster("M")
	m, _ := f.Master(mid)
	assert.Equal(t, 1, m.OpenCount)
}

func TestDeletedWhilePending(t *testing.T) {
	an := mockanalyzer.New()
	f := forwarder.New(20_000)
	f.SetAnalyzer(an)

	_, err := f.MakeMaster("M", 100_000_000, 200_000)
	require.NoError(t, err)
	sink := &fakeSink{}
	_, err = f.MakeChannel("c", 100_050_000, 12_500, forwarder.ChannelClassAudio, sink)
	require.NoError(t, err)

	f.OpenAll()

	cid, ok := f.FindChannel("c")
	require.True(t, ok)
	removed := f.RemoveChannel(cid)
	require.False(t, removed, "removal of a not-yet-open channel must be deferred")

	reqM := an.LastOpenReqID()
	h1 := an.NextHandle()
	f.ProcessMessage(analyzer.OpenMessage{ReqID: reqM, Handle: h1})

	reqC := an.LastOpenExReqID()
	h2 := an.NextHandle()
	f.ProcessMessage(analyzer.OpenMessage{ReqID: reqC, Handle: h2})

	assert.True(t, an.WasClosed(h2))
	_, stillThere := f.FindChannel("c")
	assert.False(t, stillThere)
	assert.Equal(t, 0, sink.openCount)
	assert.Equal(t, 0, sink.closedCount)
	assert.True(t, f.IsOpen())

	mid, _ := f.FindMaster("M")
	m, _ := f.Master(mid)
	assert.Equal(t, 0, m.OpenCount)
	assert.Len(t, m.Channels, 0)
}

func TestAdmissionRejection(t *testing.T) {
	an := mockanalyzer.New()
	f := forwarder.New(200_000)
	f.SetAnalyzer(an)

	_, err := f.MakeMaster("M", 100_000_000, 1_000_000)
	require.NoError(t, err)

	sink := &fakeSink{}
	_, err = f.MakeChannel("c", 100_000_000, 300_000, forwarder.ChannelClassAudio, sink)
	require.Error(t, err)
	assert.True(t, errorsIsKind(err, ferrors.KindBandwidthExceedsMax))

	assert.True(t, f.Failed())
	_, stillThere := f.FindChannel("c")
	assert.False(t, stillThere)
}

func TestCanOpenBoundary(t *testing.T) {
	an := mockanalyzer.New()
	an.Source.Frequency = 100_000_000
	an.Source.SampleRate = 500_000
	f := forwarder.New(20_000)
	f.SetAnalyzer(an)

	_, err := f.MakeMaster("lo", 99_950_000, 100_000)
	require.NoError(t, err)
	_, err = f.MakeMaster("hi", 100_050_000, 100_000)
	require.NoError(t, err)

	assert.True(t, f.CanCenter())
	assert.True(t, f.CanOpen())

	an.Source.Frequency = 100_200_000
	assert.False(t, f.CanOpen())

	ok := f.Center()
	require.True(t, ok)
	assert.InDelta(t, 100_000_000, an.Source.Frequency, 1)
}

func TestProtocolFailure(t *testing.T) {
	an := mockanalyzer.New()
	f := forwarder.New(20_000)
	f.SetAnalyzer(an)

	_, err := f.MakeMaster("M", 100_000_000, 200_000)
	require.NoError(t, err)
	sinkA := &fakeSink{}
	_, err = f.MakeChannel("a", 100_050_000, 12_500, forwarder.ChannelClassAudio, sinkA)
	require.NoError(t, err)

	f.OpenAll()
	reqM := an.LastOpenReqID()
	h1 := an.NextHandle()
	f.ProcessMessage(analyzer.OpenMessage{ReqID: reqM, Handle: h1})

	reqC := an.LastOpenExReqID()
	h2 := an.NextHandle()
	f.ProcessMessage(analyzer.OpenMessage{ReqID: reqC, Handle: h2})
	require.Equal(t, 1, sinkA.openCount)

	// Open a second channel so there's a live pending request to fail.
	sinkB := &fakeSink{}
	_, err = f.MakeChannel("b", 100_055_000, 5_000, forwarder.ChannelClassAudio, sinkB)
	require.NoError(t, err)
	reqB := an.LastOpenExReqID()

	f.ProcessMessage(analyzer.InvalidChannelMessage{ReqID: reqB})

	assert.True(t, f.Failed())
	assert.True(t, an.WasClosed(h1))
	assert.Equal(t, 1, sinkA.closedCount)
	assert.True(t, f.IsIdle())

	_, ok := f.FindMaster("M")
	assert.True(t, ok, "tree stays structurally intact across a protocol failure")
	_, ok = f.FindChannel("a")
	assert.True(t, ok)
}

func TestRemoveAllAndReopen(t *testing.T) {
	an := mockanalyzer.New()
	f := forwarder.New(20_000)
	f.SetAnalyzer(an)

	_, err := f.MakeMaster("M", 100_000_000, 200_000)
	require.NoError(t, err)
	assert.True(t, f.RemoveAll())
	assert.True(t, f.Empty())

	f.OpenAll()
	assert.True(t, f.IsOpen(), "opening an empty tree settles immediately")
}

func TestDuplicateMasterName(t *testing.T) {
	f := forwarder.New(20_000)
	an := mockanalyzer.New()
	f.SetAnalyzer(an)

	_, err := f.MakeMaster("M", 100_000_000, 200_000)
	require.NoError(t, err)
	_, err = f.MakeMaster("M", 101_000_000, 200_000)
	require.Error(t, err)
	assert.True(t, errorsIsKind(err, ferrors.KindDuplicateName))
}

func TestNoCoveringMaster(t *testing.T) {
	f := forwarder.New(20_000)
	an := mockanalyzer.New()
	f.SetAnalyzer(an)
	sink := &fakeSink{}

	_, err := f.MakeChannel("c", 100_000_000, 10_000, forwarder.ChannelClassAudio, sink)
	require.Error(t, err)
	assert.True(t, errorsIsKind(err, ferrors.KindNoCoveringMaster))
}

func TestMakeChannelRejectsInvalidClass(t *testing.T) {
	f := forwarder.New(20_000)
	an := mockanalyzer.New()
	f.SetAnalyzer(an)
	sink := &fakeSink{}

	_, err := f.MakeMaster("M", 100_000_000, 200_000)
	require.NoError(t, err)
	_, err = f.MakeChannel("c", 100_050_000, 12_500, forwarder.ChannelClass("video"), sink)
	require.Error(t, err)
	assert.True(t, errorsIsKind(err, ferrors.KindFormatError))
}

func errorsIsKind(err error, kind ferrors.Kind) bool {
	fe, ok := err.(*ferrors.Error)
	return ok && fe.Kind == kind
}
