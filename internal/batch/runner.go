// Package batch runs lists of case queries under one deadline, either on a
// schedule or on demand.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/cache"
	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/internal/scraper"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Searcher runs one query on its own page.
type Searcher interface {
	Search(ctx context.Context, q scraper.SearchQuery) (scraper.ExtractionOutcome, error)
}

// Sink receives every outcome the runner produced, cached ones excepted.
type Sink interface {
	Save(ctx context.Context, q scraper.SearchQuery, out scraper.ExtractionOutcome) error
}

type ItemStatus string

const (
	ItemSucceeded ItemStatus = "succeeded"
	ItemFailed    ItemStatus = "failed"
	ItemSkipped   ItemStatus = "skipped"
)

type Item struct {
	Query     scraper.SearchQuery        `json:"query"`
	Status    ItemStatus                 `json:"status"`
	FromCache bool                       `json:"from_cache"`
	Outcome   *scraper.ExtractionOutcome `json:"outcome,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

type BatchReport struct {
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	DeadlineHit bool      `json:"deadline_hit"`
	Items       []Item    `json:"items"`
}

type Options struct {
	QueryDelay  time.Duration
	Deadline    time.Duration
	Parallelism int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		QueryDelay:  cfg.QueryDelay,
		Deadline:    cfg.RunDeadline,
		Parallelism: cfg.BatchParallelism,
	}
}

type Runner struct {
	searcher Searcher
	sink     Sink
	cache    cache.Cache
	opts     Options
	logger   *logger.Logger
	now      func() time.Time
}

// NewRunner builds a runner. sink and results may be nil.
func NewRunner(searcher Searcher, sink Sink, results cache.Cache, opts Options, log *logger.Logger) *Runner {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Runner{
		searcher: searcher,
		sink:     sink,
		cache:    results,
		opts:     opts,
		logger:   log,
		now:      time.Now,
	}
}

// Run executes every query. A failed query never stops the batch; queries
// not started before the deadline are reported as skipped.
func (r *Runner) Run(ctx context.Context, queries []scraper.SearchQuery) BatchReport {
	report := BatchReport{StartedAt: r.now(), Items: make([]Item, len(queries))}

	if r.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Deadline)
		defer cancel()
	}

	limit := rate.Inf
	if r.opts.QueryDelay > 0 {
		limit = rate.Every(r.opts.QueryDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	r.logger.Info("Batch started", "queries", len(queries), "parallelism", r.opts.Parallelism)

	g := new(errgroup.Group)
	g.SetLimit(r.opts.Parallelism)
	for i, q := range queries {
		if ctx.Err() != nil {
			report.Items[i] = skipped(q, ctx.Err())
			continue
		}
		i, q := i, q
		g.Go(func() error {
			report.Items[i] = r.runOne(ctx, limiter, q)
			return nil
		})
	}
	g.Wait()

	for _, item := range report.Items {
		switch item.Status {
		case ItemSucceeded:
			report.Succeeded++
		case ItemFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}
	report.DeadlineHit = errors.Is(ctx.Err(), context.DeadlineExceeded)
	report.FinishedAt = r.now()

	r.logger.Info("Batch finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"deadline_hit", report.DeadlineHit,
		"elapsed", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	return report
}

func (r *Runner) runOne(ctx context.Context, limiter *rate.Limiter, q scraper.SearchQuery) Item {
	log := r.logger.With("query", q.String())

	key := cache.Key(q, r.now())
	if r.cache != nil {
		if out, ok := r.cache.Get(key); ok {
			log.Debug("Served from cache", "key", key)
			return Item{Query: q, Status: ItemSkipped, FromCache: true, Outcome: &out}
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return skipped(q, err)
	}
	if ctx.Err() != nil {
		return skipped(q, ctx.Err())
	}

	out, err := r.searcher.Search(ctx, q)
	item := Item{Query: q, Outcome: &out}
	switch {
	case err != nil:
		item.Status = ItemFailed
		item.Error = err.Error()
		log.Warn("Query failed", "error", err)
	case out.Success:
		item.Status = ItemSucceeded
	default:
		item.Status = ItemFailed
		item.Error = fmt.Sprintf("%s: %s", out.ErrorKind, out.Message)
	}

	if r.sink != nil {
		// Detached: the batch deadline may already have passed.
		if serr := r.sink.Save(context.WithoutCancel(ctx), q, out); serr != nil {
			log.Error("Failed to persist outcome", "error", serr)
		}
	}

	if r.cache != nil && err == nil && Cacheable(out) {
		r.cache.Set(key, out)
	}
	return item
}

// Cacheable reports whether an outcome is a settled answer worth caching.
func Cacheable(out scraper.ExtractionOutcome) bool {
	switch out.ErrorKind {
	case scraper.ErrorKindNone, scraper.ErrorKindNoCaseFound, scraper.ErrorKindNoResults:
		return true
	}
	return false
}

func skipped(q scraper.SearchQuery, err error) Item {
	out := scraper.ExtractionOutcome{
		ErrorKind: scraper.ErrorKindDeadline,
		Message:   err.Error(),
		Records:   []scraper.CaseRecord{},
	}
	return Item{Query: q, Status: ItemSkipped, Outcome: &out, Error: err.Error()}
}
