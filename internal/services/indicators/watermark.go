package indicators

import "time"

// Watermark tracks the event-time frontier of a stream: the largest event
// time seen minus the allowed lateness. It never moves backwards.
type Watermark struct {
	latenessMs int64
	value      int64
	valid      bool
}

func NewWatermark(lateness time.Duration) Watermark {
	return Watermark{latenessMs: lateness.Milliseconds()}
}

// Observe reports whether eventTimeMs is behind the current watermark and
// then advances the watermark with it.
func (w *Watermark) Observe(eventTimeMs int64) (late bool) {
	late = w.valid && eventTimeMs < w.value
	if next := eventTimeMs - w.latenessMs; !w.valid || next > w.value {
		w.value = next
		w.valid = true
	}
	return late
}

// Value returns the watermark; ok is false until the first observation.
func (w Watermark) Value() (ms int64, ok bool) { return w.value, w.valid }
