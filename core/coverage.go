package core

// DefaultCoverageWindow is the trailing window, in seconds, over which
// network coverage is aggregated.
const DefaultCoverageWindow = 30.0

// ContactSample is one tick's worth of coverage history.
type ContactSample struct {
	Dt      float64 // frame seconds covered by the sample
	Contact bool    // network reachable during the tick
}

// CoverageWindow keeps a rolling history of contact samples and reports
// the fraction of time the network was reachable.
//
// Samples are only ever appended at the tail and dropped from the head. The
// retained history covers at least Window seconds once that much has been
// recorded: the oldest sample is dropped only when the remaining samples
// alone still exceed the window, so the retained total overshoots the
// window by less than one sample.
type CoverageWindow struct {
	Window float64

	samples []ContactSample
	head    int

	total        float64
	contactTotal float64
}

// NewCoverageWindow constructs an empty window of the given length in
// seconds. Non-positive lengths fall back to DefaultCoverageWindow.
func NewCoverageWindow(window float64) *CoverageWindow {
	if window <= 0 {
		window = DefaultCoverageWindow
	}
	return &CoverageWindow{Window: window}
}

// Record appends a sample and trims the head.
func (w *CoverageWindow) Record(dt float64, contact bool) {
	if dt < 0 {
		dt = 0
	}
	w.samples = append(w.samples, ContactSample{Dt: dt, Contact: contact})
	w.total += dt
	if contact {
		w.contactTotal += dt
	}

	for w.Len() > 1 && w.total-w.samples[w.head].Dt > w.Window {
		w.dropHead()
	}
	w.compact()
}

// Percentage returns 100 * contact time / total time over the retained
// samples, or 0 when nothing has been recorded.
func (w *CoverageWindow) Percentage() float64 {
	if w.total <= 0 {
		return 0
	}
	return 100 * w.contactTotal / w.total
}

// Duration returns the total seconds currently retained.
func (w *CoverageWindow) Duration() float64 {
	return w.total
}

// Len returns the number of retained samples.
func (w *CoverageWindow) Len() int {
	return len(w.samples) - w.head
}

// Samples returns a copy of the retained samples, oldest first.
func (w *CoverageWindow) Samples() []ContactSample {
	out := make([]ContactSample, w.Len())
	copy(out, w.samples[w.head:])
	return out
}

// Reset drops all history.
func (w *CoverageWindow) Reset() {
	w.samples = nil
	w.head = 0
	w.total = 0
	w.contactTotal = 0
}

func (w *CoverageWindow) dropHead() {
	s := w.samples[w.head]
	w.samples[w.head] = ContactSample{}
	w.head++
	w.total -= s.Dt
	if s.Contact {
		w.contactTotal -= s.Dt
	}
}

// compact reclaims the dropped prefix once it dominates the backing array,
// and re-derives the running sums from the retained samples so rounding
// error from repeated subtraction does not accumulate.
func (w *CoverageWindow) compact() {
	if w.head == 0 || w.head < len(w.samples)/2 {
		return
	}
	kept := make([]ContactSample, w.Len(), w.Len()+w.head)
	copy(kept, w.samples[w.head:])
	w.samples = kept
	w.head = 0

	w.total, w.contactTotal = 0, 0
	for _, s := range w.samples {
		w.total += s.Dt
		if s.Contact {
			w.contactTotal += s.Dt
		}
	}
}
