package safety

import (
	"fmt"
	"math"

	"tradecore/pkg/types"
)

// maxReasonablePrice catches obviously corrupt venue data before it
// reaches the strategies.
const maxReasonablePrice = 1e10

// ValidateBar rejects bars the venue should never produce: zero or
// non-finite prices, inverted ranges, closes outside the bar's range.
// Live feeds occasionally deliver such bars during venue incidents and
// feeding them to strategies corrupts indicator state.
func ValidateBar(bar types.Bar) error {
	if bar.Symbol == "" {
		return fmt.Errorf("bar has no symbol")
	}
	if bar.Timestamp.IsZero() {
		return fmt.Errorf("bar for %s has no timestamp", bar.Symbol)
	}

	for _, p := range []struct {
		name  string
		value float64
	}{
		{"open", bar.Open},
		{"high", bar.High},
		{"low", bar.Low},
		{"close", bar.Close},
	} {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			return fmt.Errorf("bar for %s has non-finite %s", bar.Symbol, p.name)
		}
		if p.value <= 0 {
			return fmt.Errorf("bar for %s has non-positive %s: %v", bar.Symbol, p.name, p.value)
		}
		if p.value > maxReasonablePrice {
			return fmt.Errorf("bar for %s has suspicious %s: %v", bar.Symbol, p.name, p.value)
		}
	}

	if bar.High < bar.Low {
		return fmt.Errorf("bar for %s has high %v below low %v", bar.Symbol, bar.High, bar.Low)
	}
	if bar.Open < bar.Low || bar.Open > bar.High {
		return fmt.Errorf("bar for %s has open %v outside range [%v, %v]", bar.Symbol, bar.Open, bar.Low, bar.High)
	}
	if bar.Close < bar.Low || bar.Close > bar.High {
		return fmt.Errorf("bar for %s has close %v outside range [%v, %v]", bar.Symbol, bar.Close, bar.Low, bar.High)
	}
	if bar.Volume < 0 || math.IsNaN(bar.Volume) {
		return fmt.Errorf("bar for %s has invalid volume: %v", bar.Symbol, bar.Volume)
	}

	return nil
}
