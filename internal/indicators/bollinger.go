package indicators

import (
	"errors"
	"math"
)

// BollingerBands represents the Bollinger Bands indicator
type BollingerBands struct {
	period         int
	stdDevMultiple float64
}

// Bands holds one Bollinger observation. PercentB is the price's
// position inside the bands on a 0-100 scale.
type Bands struct {
	Upper    float64
	Middle   float64
	Lower    float64
	PercentB float64
}

// NewBollingerBands creates a new BollingerBands instance with the
// given period and standard deviation multiplier.
func NewBollingerBands(period int, stdDev float64) *BollingerBands {
	return &BollingerBands{
		period:         period,
		stdDevMultiple: stdDev,
	}
}

// Calculate computes the bands over the trailing window of prices.
func (bb *BollingerBands) Calculate(prices []float64) (Bands, error) {
	if len(prices) < bb.period {
		return Bands{}, errors.New("insufficient data for Bollinger Bands calculation")
	}

	recent := prices[len(prices)-bb.period:]
	middle := mean(recent)
	stdDev := standardDeviation(recent, middle)

	bands := Bands{
		Middle: middle,
		Upper:  middle + bb.stdDevMultiple*stdDev,
		Lower:  middle - bb.stdDevMultiple*stdDev,
	}

	current := prices[len(prices)-1]
	if bands.Upper == bands.Lower {
		bands.PercentB = 50
	} else {
		bands.PercentB = (current - bands.Lower) / (bands.Upper - bands.Lower) * 100
	}

	return bands, nil
}

// RequiredPeriods returns the minimum number of prices Calculate needs.
func (bb *BollingerBands) RequiredPeriods() int { return bb.period }

func standardDeviation(values []float64, mean float64) float64 {
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
