package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tradecore/internal/config"
	"tradecore/internal/engine"
	"tradecore/internal/exchange/bybit"
	"tradecore/internal/logger"
	"tradecore/internal/monitoring"
	"tradecore/internal/notifications"
	"tradecore/internal/portfolio"
	"tradecore/internal/risk"
	"tradecore/internal/safety"
	"tradecore/internal/sizing"
	"tradecore/internal/strategy"
	"tradecore/pkg/types"
)

// warmupBars is how much history each strategy sees before live bars
// start flowing, enough for the slowest indicator to initialize.
const warmupBars = 200

func main() {
	configPath := flag.String("config", "", "JSON config file (optional)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
		log.Fatalf("❌ Missing credentials: set BYBIT_API_KEY and BYBIT_API_SECRET")
	}

	client := bybit.NewClient(bybit.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Demo:      cfg.Exchange.Demo,
	})
	log.Printf("🔗 Bybit client ready (%s, category %s)", client.Environment(), cfg.Exchange.Category)

	fileLog, err := logger.NewLogger(fmt.Sprintf("live_%s_%s", cfg.Trading.Symbol, cfg.Trading.Interval))
	if err != nil {
		log.Fatalf("❌ Logger error: %v", err)
	}
	defer fileLog.Close()

	session, err := cfg.Session.ToSessionConfig()
	if err != nil {
		log.Fatalf("❌ Session config error: %v", err)
	}

	pm := portfolio.NewManager(portfolio.Config{
		InitialCash:    cfg.Trading.InitialBalance,
		MaxDrawdownPct: cfg.GlobalBreaker.MaxDrawdownPct,
		MaxDailyLoss:   cfg.Risk.MaxDailyLoss,
		MaxPositionPct: cfg.Risk.MaxPositionPct,
	})
	executor := bybit.NewLiveExecutor(client, cfg.Exchange.Category, pm, cfg.Trading.Commission)

	metrics := monitoring.NewMetrics(nil)
	health := monitoring.NewHealthChecker()

	var events engine.EventLogger = fileLog
	if cfg.Notifications.TelegramToken != "" && cfg.Notifications.TelegramChatID != "" {
		notifier := notifications.NewTelegramNotifier(
			cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID)
		events = engine.MultiLogger{fileLog, notifier}
		log.Printf("📣 Telegram notifications enabled")
	}

	eng, err := engine.New(engine.Config{
		Executor:        executor,
		Risk:            risk.NewEngine(cfg.Risk, session),
		Sizer:           sizing.NewPositionSizer(cfg.Sizing.EquityFraction, cfg.Sizing.RiskPerTrade),
		Global:          safety.NewGlobalCircuitBreaker(cfg.GlobalBreaker),
		StrategyBreaker: cfg.StrategyBreaker,
		Logger:          events,
		Metrics:         metrics,
	})
	if err != nil {
		log.Fatalf("❌ Engine error: %v", err)
	}
	for _, name := range cfg.Trading.Strategies {
		s, err := strategy.Build(name)
		if err != nil {
			log.Fatalf("❌ Strategy error: %v (available: %s)", err, strings.Join(strategy.Names(), ", "))
		}
		if err := eng.RegisterStrategy(s); err != nil {
			log.Fatalf("❌ Strategy error: %v", err)
		}
	}

	startMonitoringServers(cfg, health)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, client, eng, health); err != nil {
		log.Fatalf("❌ Bot stopped: %v", err)
	}
	log.Printf("👋 Shutdown complete")
}

// run warms the strategies with recent history, then polls for closed
// bars until the context is cancelled.
func run(ctx context.Context, cfg *config.Config, client *bybit.Client, eng *engine.TradingEngine, health *monitoring.HealthChecker) error {
	symbol := cfg.Trading.Symbol
	interval := cfg.Trading.Interval
	category := cfg.Exchange.Category

	barLen, err := bybit.IntervalDuration(interval)
	if err != nil {
		return err
	}

	bars, err := client.GetKlines(ctx, category, symbol, interval, warmupBars)
	if err != nil {
		health.SetConnected(false)
		return fmt.Errorf("warmup klines: %w", err)
	}
	health.SetConnected(true)

	// The final kline is the still-forming candle; everything before it
	// is history used only to initialize the strategy indicators.
	var lastClosed time.Time
	historyLen := 0
	if len(bars) > 1 {
		history := bars[:len(bars)-1]
		eng.Warmup(history)
		lastClosed = history[len(history)-1].Timestamp
		historyLen = len(history)
	}
	log.Printf("🔥 Warmed up with %d bars of %s %s history", historyLen, symbol, interval)
	log.Printf("🚀 Live loop started: strategies [%s]", strings.Join(eng.Strategies(), ", "))

	// Poll faster than the bar length so a new close is picked up
	// promptly regardless of clock alignment.
	poll := barLen / 6
	if poll < 5*time.Second {
		poll = 5 * time.Second
	}
	if poll > time.Minute {
		poll = time.Minute
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		recent, err := client.GetKlines(ctx, category, symbol, interval, 3)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			health.SetConnected(false)
			health.RecordError(err.Error())
			log.Printf("⚠️ Kline fetch failed: %v", err)
			continue
		}
		health.SetConnected(true)

		for _, bar := range closedBars(recent, lastClosed) {
			// Advance past the bar either way; a corrupt bar must not be
			// refetched forever.
			lastClosed = bar.Timestamp
			if err := safety.ValidateBar(bar); err != nil {
				health.RecordError(err.Error())
				log.Printf("⚠️ Dropping bad bar: %v", err)
				continue
			}
			fills := eng.OnBar(bar)
			health.RecordBar(bar.Close, bar.Timestamp)
			for _, f := range fills {
				log.Printf("💰 %s %s %s qty=%.6f price=%.2f pnl=%.2f",
					f.Order.Symbol, f.Order.Side, f.Status, f.FilledQuantity, f.FillPrice, f.PnL)
			}
		}
	}
}

// closedBars drops the still-forming candle and anything already
// processed.
func closedBars(bars []types.Bar, after time.Time) []types.Bar {
	if len(bars) < 2 {
		return nil
	}
	closed := bars[:len(bars)-1]
	var out []types.Bar
	for _, bar := range closed {
		if bar.Timestamp.After(after) {
			out = append(out, bar)
		}
	}
	return out
}

// startMonitoringServers exposes Prometheus metrics and the health
// endpoint on their configured ports.
func startMonitoringServers(cfg *config.Config, health *monitoring.HealthChecker) {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.Handler())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
		log.Printf("📈 Prometheus metrics on %s/metrics", addr)
		if err := http.ListenAndServe(addr, metricsMux); err != nil {
			log.Printf("⚠️ Metrics server stopped: %v", err)
		}
	}()

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.HealthPort)
		log.Printf("❤️ Health endpoint on %s/health", addr)
		if err := http.ListenAndServe(addr, healthMux); err != nil {
			log.Printf("⚠️ Health server stopped: %v", err)
		}
	}()
}
