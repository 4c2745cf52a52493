package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradecore/internal/config"
	"tradecore/internal/engine"
	"tradecore/internal/execution"
	"tradecore/internal/logger"
	"tradecore/internal/portfolio"
	"tradecore/internal/risk"
	"tradecore/internal/safety"
	"tradecore/internal/sizing"
	"tradecore/internal/strategy"
	"tradecore/pkg/data"
	"tradecore/pkg/reporting"
	"tradecore/pkg/types"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		configPath = flag.String("config", "", "JSON config file (optional)")
		dataFile   = flag.String("data", "", "CSV file with OHLCV bars")
		symbol     = flag.String("symbol", "", "trading symbol (overrides config)")
		strategies = flag.String("strategies", "", "comma-separated strategy names (overrides config)")
		fromDate   = flag.String("from", "", "start date YYYY-MM-DD (inclusive)")
		toDate     = flag.String("to", "", "end date YYYY-MM-DD (exclusive)")
		xlsxOut    = flag.String("xlsx", "", "write results to this Excel file")
		showFills  = flag.Bool("fills", false, "print every fill")
	)
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	if *symbol != "" {
		cfg.Trading.Symbol = *symbol
	}
	if *dataFile != "" {
		cfg.Trading.DataFile = *dataFile
	}
	if *strategies != "" {
		cfg.Trading.Strategies = strings.Split(*strategies, ",")
	}
	if cfg.Trading.DataFile == "" {
		log.Fatalf("❌ No data file: pass -data or set trading.data_file in the config")
	}

	bars, err := loadBars(cfg.Trading.DataFile, cfg.Trading.Symbol, *fromDate, *toDate)
	if err != nil {
		log.Fatalf("❌ Data error: %v", err)
	}
	log.Printf("📊 Loaded %d bars for %s from %s", len(bars), cfg.Trading.Symbol, cfg.Trading.DataFile)

	fileLog, err := logger.NewLogger(fmt.Sprintf("backtest_%s_%s", cfg.Trading.Symbol, cfg.Trading.Interval))
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

	eng, err := engine.New(engine.Config{
		Executor:        execution.NewPaperEngine(pm, cfg.Trading.Commission),
		Risk:            risk.NewEngine(cfg.Risk, session),
		Sizer:           sizing.NewPositionSizer(cfg.Sizing.EquityFraction, cfg.Sizing.RiskPerTrade),
		Global:          safety.NewGlobalCircuitBreaker(cfg.GlobalBreaker),
		StrategyBreaker: cfg.StrategyBreaker,
		Logger:          fileLog,
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

	log.Printf("🚀 Running backtest: %s, strategies [%s], balance %.2f",
		cfg.Trading.Symbol, strings.Join(eng.Strategies(), ", "), cfg.Trading.InitialBalance)

	start := time.Now()
	var fills []types.Fill
	for _, bar := range bars {
		fills = append(fills, eng.OnBar(bar)...)
	}
	log.Printf("✅ Backtest finished in %s (%d fills)", time.Since(start).Round(time.Millisecond), len(fills))

	results := reporting.BuildResults(cfg.Trading.Symbol,
		strings.Join(eng.Strategies(), "+"), fills, eng.EquityCurve())

	console := reporting.NewConsoleReporter()
	console.PrintResults(results)
	if *showFills {
		console.PrintFills(results)
	}
	console.PrintRejections(results)

	if *xlsxOut != "" {
		if err := reporting.NewExcelReporter().WriteResults(results, *xlsxOut); err != nil {
			log.Fatalf("❌ Excel export error: %v", err)
		}
		log.Printf("📄 Results written to %s", *xlsxOut)
	}
}

// loadBars reads, validates and date-filters the CSV data.
func loadBars(file, symbol, from, to string) ([]types.Bar, error) {
	provider := data.NewCachedProvider(data.NewCSVProvider())

	bars, err := provider.LoadBars(file, symbol)
	if err != nil {
		return nil, err
	}
	if err := provider.ValidateBars(bars); err != nil {
		return nil, err
	}

	var start, end time.Time
	if from != "" {
		if start, err = time.Parse(dateLayout, from); err != nil {
			return nil, fmt.Errorf("invalid -from date: %w", err)
		}
	}
	if to != "" {
		if end, err = time.Parse(dateLayout, to); err != nil {
			return nil, fmt.Errorf("invalid -to date: %w", err)
		}
	}
	bars = data.FilterByDateRange(bars, start, end)
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars in the requested date range")
	}
	return bars, nil
}
