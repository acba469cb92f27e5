package wsanalyzer

import (
	"encoding/json"
	"testing"

	"github.com/fventuri/inspfwd/internal/analyzer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrameOpenResponse(t *testing.T) {
	value, err := json.Marshal(openResponsePayload{
		ReqID:           7,
		Handle:          42,
		Config:          map[string]any{"enabled": true},
		EquivSampleRate: 48_000,
	})
	require.NoError(t, err)

	m, err := decodeFrame(message{EventType: eventOpenResponse, Value: string(value)})
	require.NoError(t, err)
	open, ok := m.(analyzer.OpenMessage)
	require.True(t, ok)
	assert.Equal(t, analyzer.RequestID(7), open.ReqID)
	assert.Equal(t, analyzer.Handle(42), open.Handle)
	assert.Equal(t, 48_000.0, open.EquivSampleRate)
	assert.Equal(t, true, open.Config["enabled"])
}

func TestDecodeFrameWrongHandleFromProperty(t *testing.T) {
	m, err := decodeFrame(message{EventType: eventWrongHandle, Property: "9"})
	require.NoError(t, err)
	wh, ok := m.(analyzer.WrongHandleMessage)
	require.True(t, ok)
	assert.Equal(t, analyzer.RequestID(9), wh.ReqID)
}

func TestDecodeFrameInvalidChannelFromValue(t *testing.T) {
	value, err := json.Marshal(reqIDPayload{ReqID: 13})
	require.NoError(t, err)
	m, err := decodeFrame(message{EventType: eventInvalidChannel, Value: string(value)})
	require.NoError(t, err)
	ic, ok := m.(analyzer.InvalidChannelMessage)
	require.True(t, ok)
	assert.Equal(t, analyzer.RequestID(13), ic.ReqID)
}

func TestDecodeFrameSamples(t *testing.T) {
	value, err := json.Marshal(samplesPayload{
		InspectorID: 5,
		Real:        []float32{1, 2, 3},
		Imag:        []float32{4, 5, 6},
	})
	require.NoError(t, err)

	m, err := decodeFrame(message{EventType: eventSamples, Value: string(value)})
	require.NoError(t, err)
	sm, ok := m.(analyzer.SamplesMessage)
	require.True(t, ok)
	assert.Equal(t, analyzer.Handle(5), sm.InspectorID)
	require.Equal(t, 3, sm.Count)
	assert.Equal(t, complex64(complex(1, 4)), sm.Samples[0])
}

func TestDecodeFrameUnrecognizedIsIgnored(t *testing.T) {
	m, err := decodeFrame(message{EventType: "some_future_event"})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestDecodeReqIDMissingFails(t *testing.T) {
	_, err := decodeReqID(message{EventType: eventWrongHandle})
	assert.Error(t, err)
}
