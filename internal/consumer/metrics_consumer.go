package consumer

import (
	"github.com/fventuri/inspfwd/internal/analyzer"
	"github.com/fventuri/inspfwd/internal/metrics"
)

// MetricsConsumer decorates an inner Consumer, adding each burst's
// sample count to metrics.SamplesTotal without changing delivery
// semantics. Opened, Closed and EnableStateChanged are forwarded
// without touching any metric.
type MetricsConsumer struct {
	Inner Consumer
}

func NewMetricsConsumer(inner Consumer) *MetricsConsumer {
	return &MetricsConsumer{Inner: inner}
}

func (m *MetricsConsumer) Opened(an analyzer.Analyzer, handle analyzer.Handle, ch ChannelInfo, cfg analyzer.Config) {
	m.Inner.Opened(an, handle, ch, cfg)
}

func (m *MetricsConsumer) Samples(buf []complex64, count int) {
	metrics.SamplesTotal.Add(float64(count))
	m.Inner.Samples(buf, count)
}

func (m *MetricsConsumer) Closed() {
	m.Inner.Closed()
}

func (m *MetricsConsumer) EnableStateChanged(enabled bool) {
	m.Inner.EnableStateChanged(enabled)
}

// Enabled forwards to Inner if it implements EnabledReporter, so a
// MetricsConsumer-wrapped sink's enabled flag stays visible to the
// view-model through the decorator.
func (m *MetricsConsumer) Enabled() bool {
	if r, ok := m.Inner.(EnabledReporter); ok {
		return r.Enabled()
	}
	return true
}

// SetEnabled forwards to Inner if it implements Toggleable.
func (m *MetricsConsumer) SetEnabled(enabled bool) {
	if t, ok := m.Inner.(Toggleable); ok {
		t.SetEnabled(enabled)
	}
}
