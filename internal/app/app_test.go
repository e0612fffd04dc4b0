package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxgym/internal/env"
	"fxgym/internal/model"
	"fxgym/internal/provider"
	"fxgym/internal/provider/truefx"
	"fxgym/internal/store"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	t.Setenv("NO_DOTENV", "1")
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	setEnv(t, nil)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", cfg.Symbol)
	assert.Equal(t, 15*time.Minute, cfg.BucketDuration())
	assert.Equal(t, "parquet", cfg.CacheBackend)
	assert.Equal(t, truefx.DefaultBaseURL, cfg.TrueFXBaseURL)
	assert.Equal(t, 0.2, cfg.TestSplit)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, filepath.Join("fx_data", "cache", ".progress.json"), cfg.ProgressPath())

	from, to, err := cfg.Range()
	require.NoError(t, err)
	assert.Equal(t, "2017-01", from.String())
	assert.Equal(t, "2017-03", to.String())
}

func TestLoadConfig_Overrides(t *testing.T) {
	setEnv(t, map[string]string{
		"SYMBOL":         "gbp/usd",
		"BUCKET":         "1h",
		"CACHE_BACKEND":  "SQLite",
		"SPREAD":         "0.0001",
		"WINDOW":         "5",
		"EPISODE_LENGTH": "100",
		"SEED":           "42",
	})
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "GBPUSD", cfg.Symbol)
	assert.Equal(t, time.Hour, cfg.BucketDuration())
	assert.Equal(t, "sqlite", cfg.CacheBackend)
	assert.Equal(t, env.Config{Spread: 0.0001, Window: 5, EpisodeLength: 100, Seed: 42}, cfg.EnvConfig())
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"bad int":         {"WINDOW": "five"},
		"bad duration":    {"DOWNLOAD_TIMEOUT": "soon"},
		"bad backend":     {"CACHE_BACKEND": "mongo"},
		"bad bucket":      {"BUCKET": "7m"},
		"bad month":       {"FROM": "2017-13"},
		"empty range":     {"FROM": "2017-03", "TO": "2017-03"},
		"postgres no dsn": {"CACHE_BACKEND": "postgres"},
		"redis no addr":   {"CACHE_BACKEND": "redis"},
		"split too big":   {"TEST_SPLIT": "1"},
		"negative spread": {"SPREAD": "-0.1"},
	}
	for name, kv := range cases {
		kv := kv
		t.Run(name, func(t *testing.T) {
			setEnv(t, kv)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_DotenvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SYMBOL=USDJPY\nWORKERS=4\n"), 0644))
	t.Setenv("ENV_FILE", path)
	t.Setenv("WORKERS", "3")
	t.Setenv("SYMBOL", "")
	os.Unsetenv("SYMBOL")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "USDJPY", cfg.Symbol)
	assert.Equal(t, 3, cfg.Workers)
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	setEnv(t, map[string]string{
		"DATA_DIR": t.TempDir(),
		"SOURCE":   "local",
		"FROM":     "2017-01",
		"TO":       "2017-03",
		"BUCKET":   "1h",
	})
	cfg, err := LoadConfig()
	require.NoError(t, err)
	return cfg
}

// writeArchive stores a day of 10-minute ticks for p under the archive dir.
func writeArchive(t *testing.T, cfg *Config, p model.Period) {
	t.Helper()
	var sb strings.Builder
	for i := 0; i < 24*6; i++ {
		ts := p.Start().Add(time.Duration(i) * 10 * time.Minute)
		bid := 1.05 + 0.0001*float64(i%7)
		fmt.Fprintf(&sb, "EUR/USD,%s,%.5f,%.5f\n", ts.Format("20060102 15:04:05.000"), bid, bid+0.0002)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("ticks.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte(sb.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, provider.WriteArchive(provider.ArchivePath(cfg.ArchiveDir(), cfg.Symbol, p), buf.Bytes()))
}

func TestCreateStore_FileAndSQLite(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	for _, backend := range []string{"parquet", "csv", "json", "sqlite"} {
		cfg.CacheBackend = backend
		st, cleanup, err := ProvideStore(ctx, cfg)
		require.NoError(t, err, backend)
		assert.Equal(t, backend, st.Name())
		cleanup()
	}
	cfg.CacheBackend = "mongo"
	_, err := CreateStore(ctx, cfg)
	assert.Error(t, err)
}

func TestCreateSource(t *testing.T) {
	cfg := testConfig(t)
	src, err := CreateSource(cfg)
	require.NoError(t, err)
	assert.Equal(t, "archive-dir", src.GetName())

	cfg.Source = "truefx"
	src, err = CreateSource(cfg)
	require.NoError(t, err)
	assert.Equal(t, "truefx", src.GetName())
	require.NoError(t, src.Close())

	cfg.Source = "ftp"
	_, err = CreateSource(cfg)
	assert.Error(t, err)
}

func TestPrepareThenMakeEnv(t *testing.T) {
	cfg := testConfig(t)
	jan := model.Period{Year: 2017, Month: time.January}
	feb := model.Period{Year: 2017, Month: time.February}
	writeArchive(t, cfg, jan)
	writeArchive(t, cfg, feb)

	ctx := context.Background()
	src, closeSrc, err := ProvideSource(cfg)
	require.NoError(t, err)
	defer closeSrc()
	st, closeStore, err := ProvideStore(ctx, cfg)
	require.NoError(t, err)
	defer closeStore()
	b, err := ProvideBuilder(cfg, src, st)
	require.NoError(t, err)

	sum, err := Prepare(ctx, cfg, b, false)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Success)
	assert.Equal(t, 48, sum.Bars)

	ok, err := st.Exists(ctx, model.NewCacheKey(cfg.Symbol, feb, time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	sum, err = Prepare(ctx, cfg, b, false)
	require.NoError(t, err)
	assert.Zero(t, sum.Success+sum.Failed, "progress file skips prepared months")

	// Archives gone: the cache alone must serve the series.
	require.NoError(t, os.RemoveAll(cfg.ArchiveDir()))
	reg := ProvideRegistry()
	e, err := MakeEnv(ctx, cfg, b, reg, env.FXTradingV0, "train")
	require.NoError(t, err)
	sim := e.(*env.Simulator)
	assert.Equal(t, 38, sim.Series().Len(), "leading 80% of 48 bars")

	_, err = MakeEnv(ctx, cfg, b, reg, env.FXTradingV0, "validation")
	assert.Error(t, err)
}

func TestPrepare_MissingArchiveIsReported(t *testing.T) {
	cfg := testConfig(t)
	writeArchive(t, cfg, model.Period{Year: 2017, Month: time.January})
	st, err := store.NewFileStore(cfg.CacheDir(), "parquet")
	require.NoError(t, err)
	src, err := CreateSource(cfg)
	require.NoError(t, err)
	b, err := ProvideBuilder(cfg, src, st)
	require.NoError(t, err)

	sum, err := Prepare(context.Background(), cfg, b, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Success)
	require.Len(t, sum.FailedList, 1)
	assert.Equal(t, "2017-02", sum.FailedList[0].Period)
	assert.FileExists(t, filepath.Join(cfg.CacheDir(), ".lastrun.failed.json"))
}

func TestPrepare_NewBucketIsNotUpToDate(t *testing.T) {
	cfg := testConfig(t)
	jan := model.Period{Year: 2017, Month: time.January}
	writeArchive(t, cfg, jan)
	writeArchive(t, cfg, model.Period{Year: 2017, Month: time.February})
	ctx := context.Background()
	st, err := store.NewFileStore(cfg.CacheDir(), "parquet")
	require.NoError(t, err)
	src, err := CreateSource(cfg)
	require.NoError(t, err)

	for _, bucket := range []string{"15m", "1h"} {
		cfg.Bucket = bucket
		b, err := ProvideBuilder(cfg, src, st)
		require.NoError(t, err)
		sum, err := Prepare(ctx, cfg, b, false)
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Success, bucket)

		ok, err := st.Exists(ctx, model.NewCacheKey(cfg.Symbol, jan, cfg.BucketDuration()))
		require.NoError(t, err)
		assert.True(t, ok, bucket)
	}
	assert.Equal(t, "1h/parquet", cfg.ProgressScope())

	cfg.CacheBackend = "sqlite"
	sq, err := store.NewSQLiteStore(cfg.SQLitePath())
	require.NoError(t, err)
	defer sq.Close()
	b, err := ProvideBuilder(cfg, src, sq)
	require.NoError(t, err)
	sum, err := Prepare(ctx, cfg, b, false)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Success, "a new backend starts from scratch")
}
