package viewmodel_test

import (
	"testing"

	"github.com/fventuri/inspfwd/internal/analyzer"
	"github.com/fventuri/inspfwd/internal/analyzer/mockanalyzer"
	"github.com/fventuri/inspfwd/internal/consumer"
	"github.com/fventuri/inspfwd/internal/forwarder"
	"github.com/fventuri/inspfwd/internal/viewmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toggleableSink is a minimal consumer.Consumer that also satisfies
// consumer.EnabledReporter and consumer.Toggleable, for exercising the
// view-model's channel-enabled write-through.
type toggleableSink struct {
	enable *consumer.EnableState
}

func (s *toggleableSink) Opened(analyzer.Analyzer, analyzer.Handle, consumer.ChannelInfo, analyzer.Config) {}
func (s *toggleableSink) Samples([]complex64, int)                                                        {}
func (s *toggleableSink) Closed()                                                                         {}
func (s *toggleableSink) EnableStateChanged(bool)                                                          {}
func (s *toggleableSink) Enabled() bool                                                                   { return s.enable.Enabled() }
func (s *toggleableSink) SetEnabled(enabled bool) {
	s.enable.SetEnabled(enabled, s.EnableStateChanged)
}

func TestRebuildReflectsTree(t *testing.T) {
	an := mockanalyzer.New()
	f := forwarder.New(20_000)
	f.SetAnalyzer(an)

	mid, err := f.MakeMaster("M", 100_000_000, 200_000)
	require.NoError(t, err)
	_, err = f.MakeChannel("c", 100_050_000, 12_500, forwarder.ChannelClassAudio, nil)
	require.NoError(t, err)

	tree := viewmodel.Rebuild(f)
	require.Len(t, tree.Root.Children, 1)
	masterNode := tree.Root.Children[0]
	assert.Equal(t, viewmodel.NodeMaster, masterNode.Type)
	assert.Equal(t, mid, masterNode.MasterID)
	assert.Equal(t, "M", masterNode.Name)
	require.Len(t, masterNode.Children, 1)

	channelNode := masterNode.Children[0]
	assert.Equal(t, viewmodel.NodeChannel, channelNode.Type)
	assert.Equal(t, "c", channelNode.Name)
	assert.InDelta(t, 100_050_000, channelNode.Frequency, 1)
	assert.Same(t, masterNode, channelNode.Parent)
}

func TestSetChannelEnabledWritesThroughToConsumer(t *testing.T) {
	an := mockanalyzer.New()
	f := forwarder.New(20_000)
	f.SetAnalyzer(an)

	_, err := f.MakeMaster("M", 100_000_000, 200_000)
	require.NoError(t, err)
	sink := &toggleableSink{enable: consumer.NewEnableState(true)}
	cid, err := f.MakeChannel("c", 100_050_000, 12_500, forwarder.ChannelClassAudio, sink)
	require.NoError(t, err)

	mdl := viewmodel.Attach(f, nil)
	channelNode := mdl.Tree().Root.Children[0].Children[0]
	assert.True(t, channelNode.Enabled)

	require.NoError(t, mdl.SetChannelEnabled(cid, false))
	assert.False(t, sink.Enabled())
	channelNode = mdl.Tree().Root.Children[0].Children[0]
	assert.False(t, channelNode.Enabled)
}

func TestSetChannelEnabledRejectsNonToggleableConsumer(t *testing.T) {
	an := mockanalyzer.New()
	f := forwarder.New(20_000)
	f.SetAnalyzer(an)

	_, err := f.MakeMaster("M", 100_000_000, 200_000)
	require.NoError(t, err)
	cid, err := f.MakeChannel("c", 100_050_000, 12_500, forwarder.ChannelClassAudio, nil)
	require.NoError(t, err)

	mdl := viewmodel.Attach(f, nil)
	assert.Error(t, mdl.SetChannelEnabled(cid, false))
}

func TestAttachRebuildsOnChange(t *testing.T) {
	an := mockanalyzer.New()
	f := forwarder.New(20_000)
	f.SetAnalyzer(an)

	var seen int
	mdl := viewmodel.Attach(f, func(t *viewmodel.Tree) { seen++ })
	require.NotNil(t, mdl.Tree())
	base := seen

	_, err := f.MakeMaster("M", 100_000_000, 200_000)
	require.NoError(t, err)
	assert.Greater(t, seen, base)
	assert.Len(t, mdl.Tree().Root.Children, 1)
}
