package forwarder

// Span returns the current frequency span of the live master set, in
// Hz. Zero when the tree is empty.
func (f *Forwarder) Span() float64 {
	if f.Empty() {
		return 0
	}
	return f.freqMax - f.freqMin
}

// GetCenter returns the midpoint of the live master set's span.
func (f *Forwarder) GetCenter() float64 {
	return 0.5 * (f.freqMax + f.freqMin)
}

// CanCenter reports whether the tree's span fits within the
// analyzer's current sample rate, i.e. a single tuner retune could
// make it all visible at once.
func (f *Forwarder) CanCenter() bool {
	if f.an == nil {
		return false
	}
	info, err := f.an.SourceInfo()
	if err != nil {
		return false
	}
	return f.Span() <= info.SampleRate
}

// CanOpen reports whether the tree both fits the tuner's bandwidth
// and is already strictly inside its current passband, i.e. OpenAll
// can proceed without first retuning.
func (f *Forwarder) CanOpen() bool {
	if !f.CanCenter() {
		return false
	}
	info, _ := f.an.SourceInfo()
	lo := info.Frequency - info.SampleRate/2
	hi := info.Frequency + info.SampleRate/2
	return lo < f.freqMin && f.freqMax < hi
}

// Center retunes the analyzer to the midpoint of the live master set's
// span. Returns false without effect if CanCenter is false.
func (f *Forwarder) Center() bool {
	if !f.CanCenter() {
		return false
	}
	return f.an.SetFrequency(f.GetCenter()) == nil
}

// AdjustLO re-issues each open master's local-oscillator offset
// relative to the analyzer's current tuner frequency. Called after
// the tuner has been retuned out from under an already-open tree.
func (f *Forwarder) AdjustLO() {
	if f.an == nil {
		return
	}
	info, err := f.an.SourceInfo()
	if err != nil {
		return
	}
	for _, mid := range f.masterOrder {
		m := f.masters[mid]
		if m.IsOpen() {
			f.an.SetInspectorFreq(m.Handle, m.Frequency-info.Frequency)
		}
	}
}
