package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/amirphl/rsicalc"
	"github.com/amirphl/rsicalc/internal/cache"
	"github.com/amirphl/rsicalc/internal/calculator"
	"github.com/amirphl/rsicalc/internal/config"
	"github.com/amirphl/rsicalc/internal/db"
	"github.com/amirphl/rsicalc/internal/metrics"
	"github.com/amirphl/rsicalc/internal/notifier"
	"github.com/amirphl/rsicalc/internal/quote"
	"github.com/amirphl/rsicalc/internal/report"
	"github.com/amirphl/rsicalc/internal/utils"
	"github.com/amirphl/rsicalc/internal/watch"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		utils.GetLogger().Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, stderr)
	if errors.Is(err, config.ErrHelp) {
		return exitOK
	}
	var fileErr *config.FileError
	if errors.As(err, &fileErr) {
		fmt.Fprintf(stderr, "rsicalc: %v\n", err)
		return exitUsage
	}
	if err != nil {
		return exitUsage
	}
	if cfg.ShowVersion {
		fmt.Fprintln(stdout, rsicalc.String())
		return exitOK
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "rsicalc: %v\nUsage: rsicalc [flags] SYMBOL [SYMBOL...]\n", err)
		return exitUsage
	}

	utils.SetLogFile(cfg.LogFile)
	logger := utils.GetLogger()
	logger.Printf("Starting %s: symbols=%v source=%s timeframe=%s period=%d", rsicalc.String(), cfg.Symbols, cfg.Source, cfg.Timeframe, cfg.Period)

	// Run migrations if enabled
	if cfg.RunMigration {
		if cfg.Store != db.KindPostgres {
			fmt.Fprintln(stderr, "rsicalc: -migrate needs -store postgres")
			return exitUsage
		}
		if err := db.Migrate(ctx, cfg.DBConnStr, cfg.SchemaPath); err != nil {
			fmt.Fprintf(stderr, "rsicalc: failed to run migrations: %v\n", err)
			return exitError
		}
	}

	store, err := db.Open(db.Options{Kind: cfg.Store, DSN: cfg.DBConnStr, MaxOpen: cfg.DBMaxOpen, MaxIdle: cfg.DBMaxIdle})
	if err != nil {
		fmt.Fprintf(stderr, "rsicalc: failed to open %s store: %v\n", cfg.Store, err)
		return exitError
	}
	defer store.Close()

	fetchCache, err := cache.Open(ctx, cache.Options{RedisAddr: cfg.RedisAddr, RedisPassword: cfg.RedisPassword})
	if err != nil {
		fmt.Fprintf(stderr, "rsicalc: failed to open cache: %v\n", err)
		return exitError
	}
	defer fetchCache.Close()

	calc := calculator.New(store, newRegistry(cfg), fetchCache, cfg.FreshFor)
	writer, err := report.NewWriter(stdout, cfg.Format, cfg.Series)
	if err != nil {
		fmt.Fprintf(stderr, "rsicalc: %v\n", err)
		return exitUsage
	}

	if cfg.Watch.Enabled {
		return runWatch(ctx, cfg, calc, writer, stderr)
	}

	results, errs := calc.CalculateAll(ctx, requests(cfg))
	if err := writer.Write(results); err != nil {
		fmt.Fprintf(stderr, "rsicalc: failed to write output: %v\n", err)
		return exitError
	}
	for _, err := range errs {
		fmt.Fprintf(stderr, "rsicalc: %v\n", err)
	}
	if len(errs) > 0 {
		return exitError
	}
	return exitOK
}

func runWatch(ctx context.Context, cfg config.Config, calc *calculator.Calculator, writer *report.Writer, stderr io.Writer) int {
	m := metrics.NewMetrics()
	calc.SetObserver(m)

	if cfg.Watch.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Watch.MetricsAddr); err != nil {
				utils.GetLogger().Printf("Metrics | Server error: %v", err)
			}
		}()
	}

	var n notifier.Notifier = notifier.NewLogNotifier()
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		n = notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.ProxyURL, cfg.NotificationRetries, cfg.NotificationDelay)
	}

	w := watch.New(calc, n, m, watch.Options{
		Interval:      cfg.Watch.Interval,
		NotifyInitial: cfg.Watch.NotifyInitial,
		OnResult:      resultPrinter(writer, stderr),
	})
	w.Run(ctx, requests(cfg))
	utils.GetLogger().Println("Shutdown complete")
	return exitOK
}

// resultPrinter writes each result as one block. The watcher calls it from
// one goroutine per symbol.
func resultPrinter(writer *report.Writer, stderr io.Writer) func(calculator.Result) {
	var mu sync.Mutex
	return func(res calculator.Result) {
		mu.Lock()
		defer mu.Unlock()
		if err := writer.Write([]calculator.Result{res}); err != nil {
			fmt.Fprintf(stderr, "rsicalc: failed to write output: %v\n", err)
		}
	}
}

func newRegistry(cfg config.Config) *quote.Registry {
	reg := quote.NewRegistry(
		quote.NewYahoo(cfg.YahooBaseURL),
		quote.NewAlphaVantage(cfg.AlphaVantageAPIKey, ""),
		quote.NewWallex(cfg.WallexAPIKey),
	)
	if cfg.CSVFile != "" {
		reg.Register(quote.NewCSVFile(cfg.CSVFile))
	}
	return reg
}

// requests builds one calculator request per symbol. -to names the last
// day included in the window.
func requests(cfg config.Config) []calculator.Request {
	to := cfg.To.Time
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	reqs := make([]calculator.Request, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		reqs = append(reqs, calculator.Request{
			Symbol:     s,
			Source:     cfg.Source,
			Timeframe:  cfg.Timeframe,
			Period:     cfg.Period,
			Thresholds: cfg.Thresholds,
			From:       cfg.From.Time,
			To:         to,
			Refresh:    cfg.Refresh,
		})
	}
	return reqs
}
