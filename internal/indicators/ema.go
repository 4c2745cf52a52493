package indicators

// EMA is an incrementally updated Exponential Moving Average.
type EMA struct {
	period      int
	alpha       float64
	lastValue   float64
	initialized bool
}

// NewEMA creates a new EMA indicator
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

// Update feeds one value and returns the new EMA.
func (e *EMA) Update(value float64) float64 {
	if !e.initialized {
		e.lastValue = value
		e.initialized = true
	} else {
		e.lastValue = value*e.alpha + e.lastValue*(1-e.alpha)
	}
	return e.lastValue
}

// Value returns the last computed EMA.
func (e *EMA) Value() float64 { return e.lastValue }

// Initialized reports whether the EMA has absorbed at least one value.
func (e *EMA) Initialized() bool { return e.initialized }

// Period returns the configured lookback.
func (e *EMA) Period() int { return e.period }

// Reset clears the internal state for a new data period.
func (e *EMA) Reset() {
	e.lastValue = 0
	e.initialized = false
}
