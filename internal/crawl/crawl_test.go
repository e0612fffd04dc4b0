package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxgym/internal/model"
)

type fakeBuilder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeBuilder) BuildPeriod(ctx context.Context, symbol string, p model.Period) ([]model.Bar, error) {
	key := Job{Symbol: symbol, Period: p}.String()
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()
	if f.fail[key] {
		return nil, errors.New("source unavailable")
	}
	return make([]model.Bar, 10), nil
}

func period(y int, m time.Month) model.Period { return model.Period{Year: y, Month: m} }

func TestPlanJobs(t *testing.T) {
	jobs := PlanJobs([]string{"eur/usd", "", "GBPUSD"}, period(2016, time.November), period(2017, time.February))
	require.Len(t, jobs, 6)
	assert.Equal(t, "EURUSD-2016-11", jobs[0].String())
	assert.Equal(t, "EURUSD-2017-01", jobs[2].String())
	assert.Equal(t, "GBPUSD-2016-11", jobs[3].String())
}

func TestRunPrepare_ReportsAndProgress(t *testing.T) {
	dir := t.TempDir()
	progressPath := filepath.Join(dir, ".progress.json")
	b := &fakeBuilder{fail: map[string]bool{"EURUSD-2017-02": true}}
	jobs := PlanJobs([]string{"EURUSD"}, period(2017, time.January), period(2017, time.April))

	var logs bytes.Buffer
	sum, err := RunPrepare(context.Background(), b, jobs, Options{
		Workers:      2,
		ProgressPath: progressPath,
		ReportDir:    dir,
		LogOutput:    &logs,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Success)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 20, sum.Bars)
	assert.Len(t, b.calls, 3)
	assert.Contains(t, logs.String(), "summary")

	var failed []FailedEntry
	data, err := os.ReadFile(filepath.Join(dir, failedReportName))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &failed))
	require.Len(t, failed, 1)
	assert.Equal(t, "2017-02", failed[0].Period)

	var success []string
	data, err = os.ReadFile(filepath.Join(dir, successReportName))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &success))
	assert.ElementsMatch(t, []string{"EURUSD-2017-01", "EURUSD-2017-03"}, success)

	// Second run only retries the failed month.
	left := FilterJobs(jobs, progressPath, "")
	require.Len(t, left, 1)
	assert.Equal(t, "EURUSD-2017-02", left[0].String())
}

func TestRunPrepare_NoJobs(t *testing.T) {
	sum, err := RunPrepare(context.Background(), &fakeBuilder{}, nil, Options{})
	require.NoError(t, err)
	assert.Zero(t, sum.Success)
}

func TestRunPrepare_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &fakeBuilder{}
	jobs := PlanJobs([]string{"EURUSD"}, period(2017, time.January), period(2018, time.January))
	_, err := RunPrepare(ctx, b, jobs, Options{Workers: 1, LogOutput: &bytes.Buffer{}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, b.calls)
}

func TestFilterJobs_MissingOrBadProgress(t *testing.T) {
	jobs := PlanJobs([]string{"EURUSD"}, period(2017, time.January), period(2017, time.March))
	assert.Len(t, FilterJobs(jobs, filepath.Join(t.TempDir(), "nope.json"), ""), 2)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	assert.Len(t, FilterJobs(jobs, path, ""), 2)
	assert.Len(t, FilterJobs(jobs, "", ""), 2)
}

func TestJoinFailedReasons(t *testing.T) {
	var list []FailedEntry
	for i := 0; i < 8; i++ {
		list = append(list, FailedEntry{Symbol: "EURUSD", Period: "2017-01", Reason: "x"})
	}
	assert.Contains(t, joinFailedReasons(list), "(+3 more)")
	assert.Equal(t, "", joinFailedReasons(nil))
}

func TestFilterJobs_ScopesAreIndependent(t *testing.T) {
	progressPath := filepath.Join(t.TempDir(), ".progress.json")
	jobs := PlanJobs([]string{"EURUSD"}, period(2017, time.January), period(2017, time.March))

	_, err := RunPrepare(context.Background(), &fakeBuilder{}, jobs, Options{
		ProgressPath:  progressPath,
		ProgressScope: "15m/parquet",
		LogOutput:     &bytes.Buffer{},
	})
	require.NoError(t, err)

	assert.Empty(t, FilterJobs(jobs, progressPath, "15m/parquet"))
	assert.Len(t, FilterJobs(jobs, progressPath, "1h/parquet"), 2)
	assert.Len(t, FilterJobs(jobs, progressPath, "15m/sqlite"), 2)

	data, err := os.ReadFile(progressPath)
	require.NoError(t, err)
	var m map[string][]string
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, []string{"2017-01", "2017-02"}, m["EURUSD@15m/parquet"])
}
