// Package config
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/rsicalc/internal/indicator"
	"github.com/amirphl/rsicalc/internal/tfutils"
	"gopkg.in/yaml.v3"
)

/*
YAML config example:
symbols: ["AAPL", "MSFT"]
source: "yahoo"
timeframe: "1d"
period: 14
thresholds: { oversold: 30, overbought: 70 }
format: "table"
store: "sqlite"
db: "rsicalc.db"
fresh_for: "15m"
watch:
  enabled: true
  interval: "5m"
  metrics_addr: ":9090"
telegram_token: "..."
telegram_chat_id: "..."
*/

// ErrHelp is returned by Load when -h or -help was requested.
var ErrHelp = flag.ErrHelp

// FileError reports an unreadable or invalid config file. Flag parse errors
// are printed by Load itself and are never a FileError.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Err.Error() }
func (e *FileError) Unwrap() error { return e.Err }

var (
	sources = []string{"yahoo", "alphavantage", "wallex", "csv"}
	stores  = []string{"memory", "sqlite", "postgres"}
	formats = []string{"table", "csv", "json"}
)

type Config struct {
	Symbols    []string             `yaml:"symbols"`
	Source     string               `yaml:"source"`
	Timeframe  string               `yaml:"timeframe"`
	Period     int                  `yaml:"period"`
	From       Date                 `yaml:"from"`
	To         Date                 `yaml:"to"`
	Thresholds indicator.Thresholds `yaml:"thresholds"`

	Series bool   `yaml:"series"`
	Format string `yaml:"format"`

	Store        string `yaml:"store"`
	DBConnStr    string `yaml:"db"`
	DBMaxOpen    int    `yaml:"db_max_open"`
	DBMaxIdle    int    `yaml:"db_max_idle"`
	RunMigration bool   `yaml:"run_migration"`
	SchemaPath   string `yaml:"schema"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	FreshFor      time.Duration `yaml:"fresh_for"`
	Refresh       bool          `yaml:"refresh"`

	AlphaVantageAPIKey string `yaml:"alphavantage_api_key"`
	WallexAPIKey       string `yaml:"wallex_api_key"`
	YahooBaseURL       string `yaml:"yahoo_base_url"`
	CSVFile            string `yaml:"csv_file"`

	Watch WatchConfig `yaml:"watch"`

	TelegramToken       string        `yaml:"telegram_token"`
	TelegramChatID      string        `yaml:"telegram_chat_id"`
	NotificationRetries int           `yaml:"notification_retries"`
	NotificationDelay   time.Duration `yaml:"notification_delay"`
	ProxyURL            string        `yaml:"proxy_url"`

	LogFile     string `yaml:"log_file"`
	ShowVersion bool   `yaml:"-"`
}

type WatchConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	NotifyInitial bool          `yaml:"notify_initial"`
}

// Date is a calendar day given as YYYY-MM-DD on the command line or in YAML.
type Date struct {
	time.Time
}

func (d *Date) String() string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (d *Date) Set(s string) error {
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	return d.Set(value.Value)
}

// Default returns the built-in configuration with secrets taken from the environment.
func Default() Config {
	return Config{
		Source:              "yahoo",
		Timeframe:           "1d",
		Period:              14,
		Thresholds:          indicator.DefaultThresholds(),
		Format:              "table",
		Store:               "memory",
		DBMaxOpen:           10,
		DBMaxIdle:           5,
		SchemaPath:          "scripts/schema.sql",
		FreshFor:            15 * time.Minute,
		Watch:               WatchConfig{Interval: 5 * time.Minute},
		NotificationRetries: 3,
		NotificationDelay:   5 * time.Second,
		LogFile:             "rsicalc.log",

		AlphaVantageAPIKey: os.Getenv("ALPHAVANTAGE_API_KEY"),
		WallexAPIKey:       os.Getenv("WALLEX_API_KEY"),
		DBConnStr:          os.Getenv("DB_CONN_STR"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		TelegramToken:      os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:     os.Getenv("TELEGRAM_CHAT_ID"),
	}
}

// Load builds the configuration from defaults, the environment, an optional
// YAML file (-config) and finally the command line flags that were set
// explicitly. Positional arguments are symbols and replace configured ones.
func Load(args []string, output io.Writer) (Config, error) {
	cfg := Default()

	if path := configPath(args); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	fs := flag.NewFlagSet("rsicalc", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: rsicalc [flags] SYMBOL [SYMBOL...]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	symbols := strings.Join(cfg.Symbols, ",")
	fs.String("config", "", "Path to YAML config file")
	fs.StringVar(&symbols, "symbols", symbols, "Comma-separated list of symbols")
	fs.StringVar(&cfg.Source, "source", cfg.Source, "Quote source: yahoo, alphavantage, wallex or csv")
	fs.StringVar(&cfg.CSVFile, "csv-file", cfg.CSVFile, "CSV file for -source csv; {symbol} is replaced by the symbol")
	fs.StringVar(&cfg.Timeframe, "timeframe", cfg.Timeframe, "Bar timeframe: "+strings.Join(tfutils.GetSupportedTimeframes(), ", "))
	fs.IntVar(&cfg.Period, "period", cfg.Period, "RSI look-back period")
	fs.Var(&cfg.From, "from", "Start date (YYYY-MM-DD); default derives from -period")
	fs.Var(&cfg.To, "to", "End date (YYYY-MM-DD); default now")
	fs.Float64Var(&cfg.Thresholds.Overbought, "overbought", cfg.Thresholds.Overbought, "Overbought RSI level")
	fs.Float64Var(&cfg.Thresholds.Oversold, "oversold", cfg.Thresholds.Oversold, "Oversold RSI level")
	fs.BoolVar(&cfg.Series, "series", cfg.Series, "Print every RSI point instead of the latest value")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "Output format: table, csv or json")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Candle store: memory, sqlite or postgres")
	fs.StringVar(&cfg.DBConnStr, "db", cfg.DBConnStr, "SQLite path or Postgres connection string")
	fs.BoolVar(&cfg.RunMigration, "migrate", cfg.RunMigration, "Create the Postgres database and apply the schema")
	fs.StringVar(&cfg.SchemaPath, "schema", cfg.SchemaPath, "Path to the Postgres schema file")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for the fetch cache (empty for in-process)")
	fs.DurationVar(&cfg.FreshFor, "fresh-for", cfg.FreshFor, "How long fetched quotes are served from the store")
	fs.BoolVar(&cfg.Refresh, "refresh", cfg.Refresh, "Always fetch from the quote source")
	fs.BoolVar(&cfg.Watch.Enabled, "watch", cfg.Watch.Enabled, "Keep polling and notify on overbought/oversold transitions")
	fs.DurationVar(&cfg.Watch.Interval, "interval", cfg.Watch.Interval, "Polling interval in watch mode")
	fs.StringVar(&cfg.Watch.MetricsAddr, "metrics-addr", cfg.Watch.MetricsAddr, "Serve Prometheus metrics on this address in watch mode")
	fs.BoolVar(&cfg.Watch.NotifyInitial, "notify-initial", cfg.Watch.NotifyInitial, "Notify the first observed zone in watch mode")
	fs.StringVar(&cfg.TelegramToken, "telegram-token", cfg.TelegramToken, "Telegram bot token for notifications")
	fs.StringVar(&cfg.TelegramChatID, "telegram-chat", cfg.TelegramChatID, "Telegram chat ID for notifications")
	fs.IntVar(&cfg.NotificationRetries, "notification-retries", cfg.NotificationRetries, "Number of notification send attempts")
	fs.DurationVar(&cfg.NotificationDelay, "notification-delay", cfg.NotificationDelay, "Delay between notification retries")
	fs.StringVar(&cfg.ProxyURL, "proxy", cfg.ProxyURL, "HTTP proxy for Telegram notifications")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path, - for stderr")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.Symbols = splitSymbols(symbols)
	if fs.NArg() > 0 {
		cfg.Symbols = splitSymbols(strings.Join(fs.Args(), ","))
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &FileError{Path: path, Err: fmt.Errorf("failed to read config file: %w", err)}
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return &FileError{Path: path, Err: fmt.Errorf("failed to parse config file %s: %w", path, err)}
	}
	return nil
}

// configPath finds the value of -config/--config without parsing other flags.
func configPath(args []string) string {
	for i, a := range args {
		if a == "--" {
			return ""
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func splitSymbols(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for values the calculator cannot run with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("no symbols given"))
	}
	if c.Period < 1 {
		errs = append(errs, fmt.Errorf("period must be at least 1, got %d", c.Period))
	}
	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !tfutils.IsValidTimeframe(c.Timeframe) {
		errs = append(errs, fmt.Errorf("unsupported timeframe %q", c.Timeframe))
	}
	if !slices.Contains(sources, c.Source) {
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}
	if c.Source == "csv" && c.CSVFile == "" {
		errs = append(errs, errors.New("-source csv needs -csv-file"))
	}
	if !slices.Contains(stores, c.Store) {
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.Store != "memory" && c.DBConnStr == "" {
		errs = append(errs, fmt.Errorf("store %s needs -db", c.Store))
	}
	if !slices.Contains(formats, c.Format) {
		errs = append(errs, fmt.Errorf("unknown format %q", c.Format))
	}
	// -to names the last day included.
	if !c.From.IsZero() && !c.To.IsZero() && !c.From.Before(c.To.AddDate(0, 0, 1)) {
		errs = append(errs, errors.New("-from must not be after -to"))
	}
	if c.Watch.Enabled && c.Watch.Interval <= 0 {
		errs = append(errs, errors.New("watch interval must be positive"))
	}
	return errors.Join(errs...)
}
