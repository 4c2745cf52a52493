package notifications

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TelegramNotifier pushes the events worth waking somebody up for:
// circuit breaker trips and resets, rejected orders and filled trades.
// It satisfies the engine's event logger interface so it can sit next
// to the file logger.
type TelegramNotifier struct {
	token  string
	chatID string
	client *http.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// LogDecision only surfaces rejections; routine allows would flood the
// chat.
func (t *TelegramNotifier) LogDecision(strategy, symbol, outcome, reason string, originalQty, finalQty float64) {
	if outcome != "REJECT" {
		return
	}
	t.send(fmt.Sprintf("🚫 *Order rejected*\n%s %s: %s (qty %.6f)", strategy, symbol, reason, originalQty))
}

func (t *TelegramNotifier) LogBreakerTrip(scope, reason string, value float64, cooldownUntil time.Time) {
	t.send(fmt.Sprintf("🚨 *Circuit breaker tripped*\nScope: %s\nReason: %s (%.4f)\nCooldown until %s",
		scope, reason, value, cooldownUntil.Format(time.RFC3339)))
}

func (t *TelegramNotifier) LogBreakerReset(scope string) {
	t.send(fmt.Sprintf("✅ *Circuit breaker reset*\nScope: %s", scope))
}

func (t *TelegramNotifier) LogFill(symbol, side, status string, qty, price, pnl float64) {
	if status != "FILLED" {
		return
	}
	emoji := "💰"
	if pnl < 0 {
		emoji = "📉"
	}
	t.send(fmt.Sprintf("%s *%s %s*\nQty: %.6f @ %.2f\nPnL: %.2f", emoji, side, symbol, qty, price, pnl))
}

// send is fire-and-forget; a notification failure must never stall the
// trading loop.
func (t *TelegramNotifier) send(text string) {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	go func() {
		resp, err := t.client.Post(apiURL, "application/x-www-form-urlencoded",
			strings.NewReader(data.Encode()))
		if err != nil {
			log.Printf("⚠️ Telegram notification failed: %v", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			log.Printf("⚠️ Telegram API returned status %d", resp.StatusCode)
		}
	}()
}
