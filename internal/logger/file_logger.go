package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger represents a file logger for trading activities
type Logger struct {
	name    string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logDir  string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelRisk    LogLevel = "RISK"
	LogLevelBreaker LogLevel = "BREAKER"
	LogLevelStatus  LogLevel = "STATUS"
)

// NewLogger creates a new file logger for the named trading session
func NewLogger(name string) (*Logger, error) {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", name, timestamp)
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		name:    name,
		logFile: file,
		logger:  log.New(file, "", 0),
		logDir:  logDir,
	}

	l.writeSessionHeader()

	return l, nil
}

// writeSessionHeader writes a session start header to the log
func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
🚀 TRADING SESSION STARTED
================================================================================
Session: %s
Started: %s
================================================================================
`, l.name, time.Now().Format("2006-01-02 15:04:05"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Println(fmt.Sprintf("[%s] [%s] %s", timestamp, level, message))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs market status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogDecision logs one risk admission outcome. Modified orders show the
// original and adjusted quantities side by side.
func (l *Logger) LogDecision(strategy, symbol, outcome, reason string, originalQty, finalQty float64) {
	if originalQty != finalQty {
		l.Log(LogLevelRisk, "%s %s: %s (%s) qty %.6f -> %.6f",
			strategy, symbol, outcome, reason, originalQty, finalQty)
		return
	}
	if reason != "" {
		l.Log(LogLevelRisk, "%s %s: %s (%s) qty %.6f", strategy, symbol, outcome, reason, finalQty)
		return
	}
	l.Log(LogLevelRisk, "%s %s: %s qty %.6f", strategy, symbol, outcome, finalQty)
}

// LogBreakerTrip logs a circuit breaker trip with its cooldown horizon.
func (l *Logger) LogBreakerTrip(scope, reason string, value float64, cooldownUntil time.Time) {
	l.Log(LogLevelBreaker, "⛔ %s tripped: %s (%.4f), trading paused until %s",
		scope, reason, value, cooldownUntil.Format("2006-01-02 15:04:05"))
}

// LogBreakerReset logs a breaker returning to service after cooldown.
func (l *Logger) LogBreakerReset(scope string) {
	l.Log(LogLevelBreaker, "✅ %s reset, trading resumed", scope)
}

// LogFill logs an executed or rejected fill.
func (l *Logger) LogFill(symbol, side, status string, qty, price, pnl float64) {
	if pnl != 0 {
		l.Trade("%s %s %s qty %.6f @ $%.2f, realized PnL $%.2f", status, side, symbol, qty, price, pnl)
		return
	}
	l.Trade("%s %s %s qty %.6f @ $%.2f", status, side, symbol, qty, price)
}

// LogEquity logs the current portfolio snapshot.
func (l *Logger) LogEquity(equity, cash, dailyPnL float64, openPositions int) {
	l.Status("💼 Equity: $%.2f | Cash: $%.2f | Daily PnL: $%.2f | Open: %d",
		equity, cash, dailyPnL, openPositions)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		footer := fmt.Sprintf(`
================================================================================
🛑 TRADING SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, time.Now().Format("2006-01-02 15:04:05"))
		l.logger.Print(footer)

		return l.logFile.Close()
	}
	return nil
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", l.name, timestamp)
	return filepath.Join(l.logDir, filename)
}
