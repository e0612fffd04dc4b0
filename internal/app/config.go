package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"fxgym/internal/bars"
	"fxgym/internal/env"
	"fxgym/internal/model"
	"fxgym/internal/provider/truefx"
)

// Config holds application configuration from env
type Config struct {
	Symbol     string `validate:"required,min=6,max=12"`
	From       string `validate:"required,datetime=2006-01"`
	To         string `validate:"required,datetime=2006-01"` // exclusive
	Bucket     string `validate:"required"`
	PriceField string `validate:"oneof=mid ask bid"`

	DataDir         string        `validate:"required"`
	CacheBackend    string        `validate:"oneof=parquet csv json sqlite postgres redis"`
	Source          string        `validate:"oneof=truefx local"`
	TrueFXBaseURL   string        `validate:"required,url"`
	DownloadTimeout time.Duration `validate:"gt=0"`
	DownloadRate    time.Duration `validate:"gte=0"`
	DatabaseURL     string        `validate:"required_if=CacheBackend postgres"`
	RedisAddr       string        `validate:"required_if=CacheBackend redis"`
	LogLevel        string        `validate:"oneof=debug info warn warning error"`

	Spread        float64 `validate:"gte=0"`
	Window        int     `validate:"gte=0"`
	EpisodeLength int     `validate:"gte=0"`
	TestSplit     float64 `validate:"gt=0,lt=1"`
	Seed          int64
	Workers       int `validate:"gte=1,lte=64"`
}

// LoadConfig reads config from environment, after loading .env when present.
// Malformed numbers and durations are reported rather than ignored.
func LoadConfig() (*Config, error) {
	loadDotenv()
	var errs []error
	cfg := &Config{
		Symbol:        model.NormalizeSymbol(getEnv("SYMBOL", "EURUSD")),
		From:          getEnv("FROM", "2017-01"),
		To:            getEnv("TO", "2017-03"),
		Bucket:        getEnv("BUCKET", "15m"),
		PriceField:    strings.ToLower(getEnv("PRICE_FIELD", "mid")),
		DataDir:       getEnv("DATA_DIR", "fx_data"),
		CacheBackend:  strings.ToLower(getEnv("CACHE_BACKEND", "parquet")),
		Source:        strings.ToLower(getEnv("SOURCE", "truefx")),
		TrueFXBaseURL: getEnv("TRUEFX_BASE_URL", truefx.DefaultBaseURL),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
	cfg.DownloadTimeout = getEnvDuration("DOWNLOAD_TIMEOUT", truefx.DefaultDownloadTimeout, &errs)
	cfg.DownloadRate = getEnvDuration("DOWNLOAD_RATE", time.Second, &errs)
	cfg.Spread = getEnvFloat("SPREAD", 0, &errs)
	cfg.Window = getEnvInt("WINDOW", 0, &errs)
	cfg.EpisodeLength = getEnvInt("EPISODE_LENGTH", 0, &errs)
	cfg.TestSplit = getEnvFloat("TEST_SPLIT", 0.2, &errs)
	cfg.Seed = int64(getEnvInt("SEED", 1, &errs))
	cfg.Workers = getEnvInt("WORKERS", 2, &errs)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotenv loads ENV_FILE or ./.env without overriding variables already
// set. NO_DOTENV=1 disables it.
func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	if f := os.Getenv("ENV_FILE"); f != "" {
		_ = godotenv.Load(f)
		return
	}
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int, errs *[]error) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func getEnvFloat(key string, def float64, errs *[]error) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a number", key, v))
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

var validate = validator.New()

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := bars.ParseBucket(c.Bucket); err != nil {
		return fmt.Errorf("invalid config: BUCKET: %w", err)
	}
	from, to, err := c.Range()
	if err != nil {
		return err
	}
	if !from.Before(to) {
		return fmt.Errorf("invalid config: FROM %s must be before TO %s", from, to)
	}
	return nil
}

// Range returns the configured months [From, To).
func (c *Config) Range() (from, to model.Period, err error) {
	if from, err = model.ParsePeriod(c.From); err != nil {
		return from, to, fmt.Errorf("invalid config: FROM: %w", err)
	}
	if to, err = model.ParsePeriod(c.To); err != nil {
		return from, to, fmt.Errorf("invalid config: TO: %w", err)
	}
	return from, to, nil
}

// BucketDuration returns the parsed bucket; Validate guarantees it parses.
func (c *Config) BucketDuration() time.Duration {
	d, _ := bars.ParseBucket(c.Bucket)
	return d
}

// EnvConfig returns the simulator settings.
func (c *Config) EnvConfig() env.Config {
	return env.Config{
		Spread:        c.Spread,
		Window:        c.Window,
		EpisodeLength: c.EpisodeLength,
		Seed:          c.Seed,
	}
}

// ArchiveDir returns data/archives
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.DataDir, "archives")
}

// CacheDir returns data/cache
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

// SQLitePath returns data/cache/bars.db
func (c *Config) SQLitePath() string {
	return filepath.Join(c.CacheDir(), "bars.db")
}

// ProgressScope separates prepared months per bucket and cache backend,
// e.g. "15m/parquet".
func (c *Config) ProgressScope() string {
	return model.BucketLabel(c.BucketDuration()) + "/" + c.CacheBackend
}

// ProgressPath returns path to .progress.json
func (c *Config) ProgressPath() string {
	return filepath.Join(c.CacheDir(), ".progress.json")
}
