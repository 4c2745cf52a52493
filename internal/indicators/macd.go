package indicators

// MACD is an incrementally updated Moving Average Convergence
// Divergence indicator: fast EMA minus slow EMA, with an EMA of the
// MACD line as the signal line.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
	count  int
}

// MACDValue is one observation of the indicator.
type MACDValue struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// NewMACD creates a new MACD instance with the specified fast, slow and
// signal periods.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

// Update feeds one closing price and returns the new MACD observation.
func (m *MACD) Update(price float64) MACDValue {
	line := m.fast.Update(price) - m.slow.Update(price)
	sig := m.signal.Update(line)
	m.count++
	return MACDValue{
		Line:      line,
		Signal:    sig,
		Histogram: line - sig,
	}
}

// Ready reports whether the slow EMA window has filled.
func (m *MACD) Ready() bool { return m.count >= m.slow.Period() }

// Reset clears the internal state for a new data period.
func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.count = 0
}
