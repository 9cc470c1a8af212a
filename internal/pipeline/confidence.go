package pipeline

// ConfidenceSignal is a discrete event that moves an invoice's confidence
// score during decision making.
type ConfidenceSignal string

const (
	SignalHumanApproved ConfidenceSignal = "human_approved"
	SignalAutoCorrect   ConfidenceSignal = "auto_correct"
	SignalAutoAccept    ConfidenceSignal = "auto_accept"
	SignalHumanRejected ConfidenceSignal = "human_rejected"
	SignalDuplicate     ConfidenceSignal = "duplicate"
	SignalNoChange      ConfidenceSignal = "no_change"
)

// signalDeltas maps each signal to its additive confidence adjustment.
var signalDeltas = map[ConfidenceSignal]float64{
	SignalHumanApproved: 0.15,
	SignalAutoCorrect:   0.10,
	SignalAutoAccept:    0.05,
	SignalHumanRejected: -0.25,
	SignalDuplicate:     -0.30,
	SignalNoChange:      -0.05,
}

// ConfidenceTracker advances a confidence value in [0,1] by discrete
// signals. It is reset between invoices.
type ConfidenceTracker struct {
	base    float64
	current float64
}

// NewConfidenceTracker starts tracking from the given base value.
func NewConfidenceTracker(base float64) *ConfidenceTracker {
	return &ConfidenceTracker{base: base, current: base}
}

// Apply adjusts the current value by the signal's delta, clamped to [0,1].
func (t *ConfidenceTracker) Apply(signal ConfidenceSignal) {
	t.current = clamp01(t.current + signalDeltas[signal])
}

// Value returns the current confidence.
func (t *ConfidenceTracker) Value() float64 {
	return t.current
}

// Reset restores the tracker to its base value.
func (t *ConfidenceTracker) Reset() {
	t.current = t.base
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
