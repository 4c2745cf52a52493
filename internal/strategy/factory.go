package strategy

import "fmt"

// Build constructs a strategy by its config name with default
// parameters.
func Build(name string) (Strategy, error) {
	switch name {
	case "ema_cross":
		return NewEMACross(0, 0), nil
	case "bollinger_reversion":
		return NewBollingerReversion(0, 0), nil
	case "rsi_macd":
		return NewRSIMACD(), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// Names lists the strategy names Build accepts.
func Names() []string {
	return []string{"ema_cross", "bollinger_reversion", "rsi_macd"}
}
