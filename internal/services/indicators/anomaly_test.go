package indicators

import (
	"math"
	"testing"
	"time"
)

// fillBaseline writes one sample of volume vol at the start of each of the
// ten minutes before bucket b.
func fillBaseline(w *Window, b, vol int64) {
	for m := int64(10); m >= 1; m-- {
		w.Add(Sample{Price: 100, Volume: vol, Ts: b - m*minute})
	}
}

func TestVolumeSpikeThresholdIsStrict(t *testing.T) {
	b := 100 * minute
	cases := []struct {
		name      string
		current   int64
		wantFired bool
	}{
		{name: "exactly twice", current: 2000, wantFired: false},
		{name: "just above twice", current: 2010, wantFired: true},
		{name: "below", current: 1500, wantFired: false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := NewWindow(15 * time.Minute)
			fillBaseline(w, b, 1000)
			w.Add(Sample{Price: 100, Volume: c.current, Ts: b + minute - 1})

			spike, ok := NewVolumeSpikeDetector(DefaultVolumeSpikeConfig()).Evaluate(w)
			if !ok {
				t.Fatalf("expected evaluation")
			}
			if spike.Baseline != 1000 {
				t.Fatalf("baseline = %v, want 1000", spike.Baseline)
			}
			if spike.Current != float64(c.current) {
				t.Fatalf("current = %v, want %d", spike.Current, c.current)
			}
			if spike.Fired != c.wantFired {
				t.Fatalf("fired = %v, want %v (ratio %v)", spike.Fired, c.wantFired, spike.Ratio)
			}
			if spike.BucketStart != b {
				t.Fatalf("bucket = %d, want %d", spike.BucketStart, b)
			}
		})
	}
}

func TestVolumeSpikePartialBucketIsRawSum(t *testing.T) {
	b := 100 * minute
	w := NewWindow(15 * time.Minute)
	fillBaseline(w, b, 1000)
	// 20s into the bucket with 500 traded: compared as 500, not scaled up
	w.Add(Sample{Price: 100, Volume: 500, Ts: b + 20_000 - 1})

	spike, ok := NewVolumeSpikeDetector(DefaultVolumeSpikeConfig()).Evaluate(w)
	if !ok {
		t.Fatalf("expected evaluation")
	}
	if spike.Current != 500 || spike.Ratio != 0.5 || spike.Fired {
		t.Fatalf("spike = %+v, want current 500 ratio 0.5", spike)
	}
}

// Three trades of 100 per minute for ten minutes, then the first trade of a
// new minute: the bucket has barely started and must not look like a spike.
func TestVolumeSpikeSteadySparseFlow(t *testing.T) {
	b := 100 * minute
	w := NewWindow(15 * time.Minute)
	det := NewVolumeSpikeDetector(DefaultVolumeSpikeConfig())
	for ts := b - 10*minute; ts < b; ts += 20_000 {
		w.Add(Sample{Price: 100, Volume: 100, Ts: ts})
	}

	for _, ts := range []int64{b, b + 20_000, b + 40_000} {
		w.Add(Sample{Price: 100, Volume: 100, Ts: ts})
		spike, ok := det.Evaluate(w)
		if !ok {
			t.Fatalf("ts %d: expected evaluation", ts)
		}
		if spike.Baseline != 300 {
			t.Fatalf("ts %d: baseline = %v, want 300", ts, spike.Baseline)
		}
		if spike.Fired {
			t.Fatalf("ts %d: steady sparse flow fired %+v", ts, spike)
		}
	}
}

// A steady flow that starts halfway through a minute: the half-observed
// first minute must be scaled by the time it covers, not counted whole.
func TestVolumeSpikeSteadyFlowStartingMidMinute(t *testing.T) {
	b0 := 100 * minute
	w := NewWindow(15 * time.Minute)
	det := NewVolumeSpikeDetector(DefaultVolumeSpikeConfig())

	for ts := b0 + 30_000; ts < b0+3*minute; ts += 10 {
		w.Add(Sample{Price: 100, Volume: 10, Ts: ts})
		if (ts-b0)%5_000 != 0 {
			continue
		}
		spike, ok := det.Evaluate(w)
		if spike.Fired {
			t.Fatalf("ts %d: steady flow fired %+v", ts, spike)
		}
		if ok && math.Abs(spike.Baseline-60_000) > 1e-6 {
			t.Fatalf("ts %d: baseline = %v, want 60000 per minute", ts, spike.Baseline)
		}
	}

	// the full second minute compares one to one
	spike, _ := det.Evaluate(w)
	if math.Abs(spike.Ratio-1) > 0.01 {
		t.Fatalf("ratio at end of flow = %v, want ~1", spike.Ratio)
	}
}

func TestVolumeSpikeShortHistory(t *testing.T) {
	b := 100 * minute
	w := NewWindow(15 * time.Minute)
	// only two minutes of history before b
	w.Add(Sample{Price: 100, Volume: 300, Ts: b - 2*minute})
	w.Add(Sample{Price: 100, Volume: 100, Ts: b - minute})
	w.Add(Sample{Price: 100, Volume: 1000, Ts: b + minute - 1})

	spike, ok := NewVolumeSpikeDetector(DefaultVolumeSpikeConfig()).Evaluate(w)
	if !ok {
		t.Fatalf("expected evaluation")
	}
	if spike.Baseline != 200 {
		t.Fatalf("baseline = %v, want 200 averaged over covered minutes", spike.Baseline)
	}
	if !spike.Fired || spike.Ratio != 5 {
		t.Fatalf("spike = %+v, want fired with ratio 5", spike)
	}
}

func TestVolumeSpikeNoHistory(t *testing.T) {
	w := NewWindow(15 * time.Minute)
	w.Add(Sample{Price: 100, Volume: 1000, Ts: 5 * minute})
	if _, ok := NewVolumeSpikeDetector(DefaultVolumeSpikeConfig()).Evaluate(w); ok {
		t.Fatalf("no prior bucket: nothing to compare")
	}
	if _, ok := NewVolumeSpikeDetector(DefaultVolumeSpikeConfig()).Evaluate(NewWindow(time.Minute)); ok {
		t.Fatalf("empty window must not evaluate")
	}
}

func TestVolumeSpikeZeroBaseline(t *testing.T) {
	b := 100 * minute
	w := NewWindow(15 * time.Minute)
	w.Add(Sample{Price: 100, Volume: 0, Ts: b - minute})
	w.Add(Sample{Price: 100, Volume: 1000, Ts: b + 1})
	spike, ok := NewVolumeSpikeDetector(DefaultVolumeSpikeConfig()).Evaluate(w)
	if !ok || spike.Fired {
		t.Fatalf("zero baseline must not fire: %+v", spike)
	}
}
