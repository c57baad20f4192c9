package indicators

// EMA is an exponential moving average updated one price at a time.
// The first price seeds the average.
type EMA struct {
	period int
	k      float64
	value  float64
	seeded bool
}

// NewEMA uses the smoothing factor k = 2/(period+1).
func NewEMA(period int) EMA {
	if period < 1 {
		period = 1
	}
	return EMA{period: period, k: 2.0 / float64(period+1)}
}

// Update folds price into the average and returns the new value.
func (e *EMA) Update(price float64) float64 {
	if !e.seeded {
		e.value = price
		e.seeded = true
		return e.value
	}
	e.value = price*e.k + e.value*(1-e.k)
	return e.value
}

func (e EMA) Value() float64 { return e.value }

func (e EMA) Seeded() bool { return e.seeded }

func (e EMA) Period() int { return e.period }
