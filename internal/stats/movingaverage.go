// Package stats holds the small numeric helpers behind the memory manager's
// resize heuristics.
package stats

// MovingAverage is a fixed-window rolling average of utilization samples.
// It is not safe for concurrent use; the memory manager only touches it from
// the single-threaded maintenance cycle.
type MovingAverage struct {
	samples []float64
	next    int
	count   int
	sum     float64
}

// NewMovingAverage creates an average over a window of the given size.
func NewMovingAverage(window int) *MovingAverage {
	if window < 1 {
		window = 1
	}

	return &MovingAverage{samples: make([]float64, window)}
}

// Add records one sample, evicting the oldest once the window is full.
func (m *MovingAverage) Add(sample float64) {
	if m.count == len(m.samples) {
		m.sum -= m.samples[m.next]
	} else {
		m.count++
	}

	m.samples[m.next] = sample
	m.sum += sample
	m.next = (m.next + 1) % len(m.samples)
}

// Average returns the mean of the recorded samples, zero when empty.
func (m *MovingAverage) Average() float64 {
	if m.count == 0 {
		return 0
	}

	return m.sum / float64(m.count)
}

// Full reports whether a complete window of samples has been recorded.
func (m *MovingAverage) Full() bool {
	return m.count == len(m.samples)
}

// Window returns the configured window size.
func (m *MovingAverage) Window() int {
	return len(m.samples)
}

// Flush discards all recorded history. Called when a resize starts so the
// next decision is not biased by pre-resize samples.
func (m *MovingAverage) Flush() {
	for i := range m.samples {
		m.samples[i] = 0
	}

	m.next = 0
	m.count = 0
	m.sum = 0
}
