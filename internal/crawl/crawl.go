package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fxgym/internal/model"
	"fxgym/internal/slogx"
)

const defaultHeartbeat = 30 * time.Second

// Job is one prepare unit: a symbol and one calendar month.
type Job struct {
	Symbol string
	Period model.Period
}

func (j Job) String() string { return j.Symbol + "-" + j.Period.String() }

// JobResult is sent by workers for fan-in
type JobResult struct {
	Ok     bool
	Symbol string
	Period string
	Reason string
	Bars   int
}

// PeriodBuilder builds and caches one month of bars.
type PeriodBuilder interface {
	BuildPeriod(ctx context.Context, symbol string, p model.Period) ([]model.Bar, error)
}

// Options configure RunPrepare. Zero values fall back to defaults.
// ProgressScope separates progress entries of different cache flavours
// (bucket, backend) of the same symbol.
type Options struct {
	Workers       int
	ProgressPath  string
	ProgressScope string
	ReportDir     string
	Heartbeat     time.Duration
	LogOutput     io.Writer
}

// Summary is the outcome of one prepare run.
type Summary struct {
	Success     int
	Failed      int
	Bars        int
	SuccessList []string
	FailedList  []FailedEntry
}

// PlanJobs returns one job per symbol and month in [from, to).
func PlanJobs(symbols []string, from, to model.Period) []Job {
	var jobs []Job
	for _, s := range symbols {
		sym := model.NormalizeSymbol(s)
		if sym == "" {
			continue
		}
		for p := from; p.Before(to); p = p.Next() {
			jobs = append(jobs, Job{Symbol: sym, Period: p})
		}
	}
	return jobs
}

// FilterJobs drops jobs whose month is already recorded in the progress file
// under scope.
func FilterJobs(jobs []Job, progressPath, scope string) []Job {
	m := loadProgress(progressPath)
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if m.has(ProgressKey(j.Symbol, scope), j.Period.String()) {
			continue
		}
		out = append(out, j)
	}
	return out
}

// RunPrepare builds every job with a bounded worker group. A failed job does
// not stop the others; failures end up in the run report. The returned error
// is non-nil only when ctx was cancelled.
func RunPrepare(ctx context.Context, b PeriodBuilder, jobs []Job, opts Options) (Summary, error) {
	if len(jobs) == 0 {
		slog.Info("no jobs to prepare, skip")
		return Summary{}, nil
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	slog.Info("jobs to prepare", "jobs", len(jobs), "workers", workers)

	logs := make(chan string, 2048)
	logger := slogx.NewChanLogger(logs, slog.LevelInfo)
	var logWg sync.WaitGroup
	logWg.Add(1)
	go func() {
		defer logWg.Done()
		runLogWriter(out, logs)
	}()

	progress := make(chan ProgressUpdate, len(jobs))
	var progWg sync.WaitGroup
	progWg.Add(1)
	go func() {
		defer progWg.Done()
		RunProgressWriter(opts.ProgressPath, progress)
	}()

	results := make(chan JobResult, len(jobs))
	var mu sync.Mutex
	var sum Summary
	barsPerSymbol := make(map[string]int)
	var resWg sync.WaitGroup
	resWg.Add(1)
	go func() {
		defer resWg.Done()
		runJobResultCollector(results, &mu, &sum, barsPerSymbol)
	}()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbWg sync.WaitGroup
	hbWg.Add(1)
	go func() {
		defer hbWg.Done()
		runHeartbeat(hbCtx, heartbeat, len(jobs), &mu, &sum, logger)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		job := job
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bars, err := b.BuildPeriod(gctx, job.Symbol, job.Period)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				logger.Error("prepare fail", "job", job.String(), "reason", err.Error())
				results <- JobResult{Symbol: job.Symbol, Period: job.Period.String(), Reason: err.Error()}
				return nil
			}
			logger.Info("prepare ok", "job", job.String(), "bars", len(bars))
			results <- JobResult{Ok: true, Symbol: job.Symbol, Period: job.Period.String(), Bars: len(bars)}
			progress <- ProgressUpdate{Key: ProgressKey(job.Symbol, opts.ProgressScope), Period: job.Period.String()}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	close(results)
	resWg.Wait()
	close(progress)
	progWg.Wait()
	stopHeartbeat()
	hbWg.Wait()

	logger.Info("summary", "total_bars", sum.Bars, "success", sum.Success, "failed", sum.Failed)
	symbols := make([]string, 0, len(barsPerSymbol))
	for s := range barsPerSymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		logger.Info("summary symbol", "symbol", s, "bars", barsPerSymbol[s])
	}
	if len(sum.FailedList) > 0 {
		logger.Info("summary failed", "count", len(sum.FailedList), "reasons", joinFailedReasons(sum.FailedList))
	}
	close(logs)
	logWg.Wait()

	if len(sum.SuccessList) > 0 || len(sum.FailedList) > 0 {
		if err := writeRunReport(opts.ReportDir, sum.SuccessList, sum.FailedList); err != nil {
			slog.Warn("could not write run report", "error", err)
		} else {
			slog.Info("run report saved", "success", len(sum.SuccessList), "failed", len(sum.FailedList))
		}
	}
	if runErr != nil {
		return sum, fmt.Errorf("prepare interrupted: %w", runErr)
	}
	return sum, nil
}

func runJobResultCollector(results <-chan JobResult, mu *sync.Mutex, sum *Summary, barsPerSymbol map[string]int) {
	for r := range results {
		mu.Lock()
		if r.Ok {
			sum.Success++
			sum.Bars += r.Bars
			sum.SuccessList = append(sum.SuccessList, r.Symbol+"-"+r.Period)
			barsPerSymbol[r.Symbol] += r.Bars
		} else {
			sum.Failed++
			sum.FailedList = append(sum.FailedList, FailedEntry{Symbol: r.Symbol, Period: r.Period, Reason: r.Reason})
		}
		mu.Unlock()
	}
}
