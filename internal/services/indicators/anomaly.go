package indicators

import (
	"time"

	"TradePulse/pkg/util"
)

type VolumeSpikeConfig struct {
	// Threshold is the ratio current/baseline that must be exceeded.
	Threshold float64
	// Bucket is the width of the current volume bucket.
	Bucket time.Duration
	// Baseline is how far back, before the current bucket, the average
	// per-bucket volume is taken from.
	Baseline time.Duration
}

func DefaultVolumeSpikeConfig() VolumeSpikeConfig {
	return VolumeSpikeConfig{
		Threshold: 2.0,
		Bucket:    time.Minute,
		Baseline:  10 * time.Minute,
	}
}

// VolumeSpike is the outcome of one evaluation.
type VolumeSpike struct {
	BucketStart int64
	Current     float64 // volume traded so far in the current bucket
	Baseline    float64 // volume per bucket width before it
	Ratio       float64
	Fired       bool
}

// VolumeSpikeDetector compares the volume of the bucket holding the
// latest sample against the average bucket volume preceding it.
type VolumeSpikeDetector struct {
	cfg VolumeSpikeConfig
}

func NewVolumeSpikeDetector(cfg VolumeSpikeConfig) VolumeSpikeDetector {
	def := DefaultVolumeSpikeConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Bucket <= 0 {
		cfg.Bucket = def.Bucket
	}
	if cfg.Baseline < cfg.Bucket {
		cfg.Baseline = def.Baseline
	}
	return VolumeSpikeDetector{cfg: cfg}
}

// Evaluate inspects w. ok is false when there is nothing to compare with:
// an empty window or no history before the current bucket.
//
// The baseline is the volume in [b-Baseline, b) scaled to one bucket width
// by the time that range is actually covered, which starts at the oldest
// retained sample when history is shorter than Baseline.
func (d VolumeSpikeDetector) Evaluate(w *Window) (spike VolumeSpike, ok bool) {
	latest, has := w.Latest()
	if !has {
		return VolumeSpike{}, false
	}
	first, _ := w.First()

	width := d.cfg.Bucket.Milliseconds()
	b := util.FloorMs(latest.Ts, width)

	from := b - d.cfg.Baseline.Milliseconds()
	if first.Ts > from {
		from = first.Ts
	}
	if from >= b {
		return VolumeSpike{BucketStart: b}, false
	}

	baseline := float64(w.VolumeBetween(from, b)) * float64(width) / float64(b-from)
	current := float64(w.VolumeBetween(b, latest.Ts+1))

	spike = VolumeSpike{BucketStart: b, Current: current, Baseline: baseline}
	if baseline <= 0 {
		return spike, true
	}
	spike.Ratio = current / baseline
	spike.Fired = current > d.cfg.Threshold*baseline
	return spike, true
}
