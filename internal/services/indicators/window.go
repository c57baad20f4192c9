package indicators

import (
	"math"
	"sort"
	"time"
)

// Sample is one trade as seen by the window.
type Sample struct {
	Price  float64
	Volume int64
	Ts     int64
}

// Window keeps samples in ascending event-time order and bounded to
// retention before the latest sample. Samples with equal timestamps keep
// their arrival order.
//
// Pruning advances a head index; the backing array is compacted once the
// dead prefix outgrows the live part.
type Window struct {
	retentionMs int64
	samples     []Sample
	head        int
}

func NewWindow(retention time.Duration) *Window {
	return &Window{retentionMs: retention.Milliseconds()}
}

func (w *Window) live() []Sample { return w.samples[w.head:] }

func (w *Window) Len() int { return len(w.samples) - w.head }

// Latest returns the sample with the greatest event time.
func (w *Window) Latest() (Sample, bool) {
	if w.Len() == 0 {
		return Sample{}, false
	}
	return w.samples[len(w.samples)-1], true
}

// First returns the oldest retained sample.
func (w *Window) First() (Sample, bool) {
	if w.Len() == 0 {
		return Sample{}, false
	}
	return w.samples[w.head], true
}

// Add inserts s at its event-time position. It returns false, leaving the
// window unchanged, when s is already older than the retention horizon.
func (w *Window) Add(s Sample) bool {
	latest, ok := w.Latest()
	if !ok || s.Ts >= latest.Ts {
		w.samples = append(w.samples, s)
		w.prune()
		return true
	}
	if s.Ts < latest.Ts-w.retentionMs {
		return false
	}

	live := w.live()
	i := sort.Search(len(live), func(i int) bool { return live[i].Ts > s.Ts }) + w.head
	w.samples = append(w.samples, Sample{})
	copy(w.samples[i+1:], w.samples[i:])
	w.samples[i] = s
	return true
}

func (w *Window) prune() {
	latest := w.samples[len(w.samples)-1]
	cutoff := latest.Ts - w.retentionMs
	live := w.live()
	n := sort.Search(len(live), func(i int) bool { return live[i].Ts >= cutoff })
	w.head += n

	if w.head > 0 && w.head >= w.Len() {
		kept := copy(w.samples, w.samples[w.head:])
		clear(w.samples[kept:])
		w.samples = w.samples[:kept]
		w.head = 0
	}
}

// since returns live samples with Ts >= fromMs.
func (w *Window) since(fromMs int64) []Sample {
	live := w.live()
	i := sort.Search(len(live), func(i int) bool { return live[i].Ts >= fromMs })
	return live[i:]
}

// VWAP is the volume-weighted average price over samples no older than
// span before the latest sample. With no traded volume it falls back to
// the latest price.
func (w *Window) VWAP(span time.Duration) float64 {
	latest, ok := w.Latest()
	if !ok {
		return 0
	}
	var pv, vol float64
	for _, s := range w.since(latest.Ts - span.Milliseconds()) {
		pv += s.Price * float64(s.Volume)
		vol += float64(s.Volume)
	}
	if vol <= 0 {
		return latest.Price
	}
	return pv / vol
}

// Volatility is the sample standard deviation of prices with
// Ts >= anchorMs-span. Fewer than two samples give 0.
func (w *Window) Volatility(span time.Duration, anchorMs int64) float64 {
	var (
		n    int
		mean float64
		m2   float64
	)
	for _, s := range w.since(anchorMs - span.Milliseconds()) {
		if s.Ts > anchorMs {
			break
		}
		n++
		d := s.Price - mean
		mean += d / float64(n)
		m2 += d * (s.Price - mean)
	}
	if n < 2 {
		return 0
	}
	v := m2 / float64(n-1)
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v)
}

// VolumeBetween sums volume over fromMs <= Ts < toMs.
func (w *Window) VolumeBetween(fromMs, toMs int64) int64 {
	var total int64
	for _, s := range w.since(fromMs) {
		if s.Ts >= toMs {
			break
		}
		total += s.Volume
	}
	return total
}
