package downloader

import (
	"context"
	"fmt"
	"time"

	"rolesync/pkg/logger"
	"rolesync/pkg/ratelimit"
	"rolesync/pkg/retry"
)

// Job is one file to fetch and store
type Job struct {
	// Name is the file name inside the store
	Name string
	URL  string
}

// Result is the outcome of one job
type Result struct {
	Job      Job
	Success  bool
	Error    error
	Duration time.Duration
	Size     int
}

// Summary aggregates the results of a Run
type Summary struct {
	Succeeded int
	Failed    int
	Results   []Result
}

// Getter fetches a URL with a per-call timeout
type Getter interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error)
}

// Store persists downloaded bytes
type Store interface {
	Save(name string, data []byte) error
}

// Transform rewrites downloaded bytes before they are stored
type Transform func(data []byte) ([]byte, error)

// Observer is told about each job as the queue works through it. index is
// zero-based, total is the queue length.
type Observer interface {
	JobStarted(source string, job Job, index, total int)
	JobFinished(source string, result Result, index, total int)
}

// Options configures a Queue
type Options struct {
	// Source labels log lines (e.g. "primary", "fallback")
	Source  string
	Timeout time.Duration
	// Transform is applied to every download; nil stores bytes as fetched
	Transform Transform
	// Retry wraps fetch+transform; nil means a single attempt
	Retry *retry.Config
	// Pause is taken after each successful job
	Pause    ratelimit.ThresholdPause
	Observer Observer
	Logger   logger.Logger
}

// Queue downloads jobs one after another. A failed job is recorded and the
// queue moves on.
type Queue struct {
	client Getter
	store  Store
	opts   Options
	logger logger.Logger
}

// New creates a Queue
func New(client Getter, store Store, opts Options) *Queue {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Source == "" {
		opts.Source = "download"
	}
	return &Queue{
		client: client,
		store:  store,
		opts:   opts,
		logger: log.WithField("source", opts.Source),
	}
}

// Run processes jobs in order. It stops early only when ctx is done, in
// which case the summary covers the jobs processed so far.
func (q *Queue) Run(ctx context.Context, jobs []Job) (Summary, error) {
	var summary Summary

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if q.opts.Observer != nil {
			q.opts.Observer.JobStarted(q.opts.Source, job, i, len(jobs))
		}
		result := q.process(ctx, job)
		summary.Results = append(summary.Results, result)
		logger.LogDownload(q.logger, q.opts.Source, job.Name, int64(result.Size), result.Error)
		if q.opts.Observer != nil {
			q.opts.Observer.JobFinished(q.opts.Source, result, i, len(jobs))
		}

		if !result.Success {
			summary.Failed++
			continue
		}
		summary.Succeeded++

		if err := q.opts.Pause.After(ctx, len(jobs)); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func (q *Queue) process(ctx context.Context, job Job) Result {
	start := time.Now()
	result := Result{Job: job}

	fetch := func(ctx context.Context, attempt int) ([]byte, error) {
		data, err := q.client.Get(ctx, job.URL, q.opts.Timeout)
		if err != nil {
			return nil, err
		}
		if q.opts.Transform != nil {
			return q.opts.Transform(data)
		}
		return data, nil
	}

	var data []byte
	var err error
	if q.opts.Retry != nil {
		data, err = retry.DoWithResult(ctx, q.opts.Retry, fetch)
	} else {
		data, err = fetch(ctx, 1)
	}
	if err != nil {
		result.Error = fmt.Errorf("download %s: %w", job.Name, err)
		result.Duration = time.Since(start)
		return result
	}

	result.Size = len(data)
	if err := q.store.Save(job.Name, data); err != nil {
		result.Error = fmt.Errorf("save %s: %w", job.Name, err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}
