package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/internal/metrics"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
)

// PipelineOptions are the tunables of one query run.
type PipelineOptions struct {
	NavigationTimeout  time.Duration
	CaptchaMaxAttempts int
	FormMinFilled      int
	DetailRowDelay     time.Duration
	MinWalkBudget      time.Duration
}

// OptionsFromConfig copies the pipeline settings out of cfg.
func OptionsFromConfig(cfg *config.Config) PipelineOptions {
	return PipelineOptions{
		NavigationTimeout:  cfg.NavigationTimeout,
		CaptchaMaxAttempts: cfg.CaptchaMaxAttempts,
		FormMinFilled:      cfg.FormMinFilled,
		DetailRowDelay:     cfg.DetailRowDelay,
		MinWalkBudget:      cfg.MinWalkBudget,
	}
}

// Pipeline runs one search query through a page: open, fill, captcha,
// submit, verify, extract, walk details, aggregate.
type Pipeline struct {
	profile   *config.SiteProfile
	opts      PipelineOptions
	nav       *Navigator
	filler    *FormFiller
	captcha   *CaptchaHandler
	submitter *Submitter
	verifier  *Verifier
	extractor *TableExtractor
	walker    *DetailWalker
	logger    *logger.Logger
}

// NewPipeline wires the pipeline components. fallback may be nil.
func NewPipeline(profile *config.SiteProfile, opts PipelineOptions, solver, fallback Solver, log *logger.Logger) *Pipeline {
	if opts.FormMinFilled <= 0 {
		opts.FormMinFilled = 3
	}
	if opts.CaptchaMaxAttempts <= 0 {
		opts.CaptchaMaxAttempts = 4
	}

	nav := NewNavigator(opts.NavigationTimeout, log)
	filler := NewFormFiller(profile, log)
	submitter := NewSubmitter(profile, nav, filler, log)

	return &Pipeline{
		profile:   profile,
		opts:      opts,
		nav:       nav,
		filler:    filler,
		captcha:   NewCaptchaHandler(profile, solver, fallback, nav, filler, submitter, log),
		submitter: submitter,
		verifier:  NewVerifier(profile, log),
		extractor: NewTableExtractor(log),
		walker:    NewDetailWalker(profile, nav, NewParser(log), opts.DetailRowDelay, opts.MinWalkBudget, log),
		logger:    log,
	}
}

// Run executes q on page. Content outcomes (not found, empty, partial) are
// reported on the returned ExtractionOutcome; an error is returned only when
// the site could not be reached or the page stopped answering.
func (p *Pipeline) Run(ctx context.Context, page Page, q SearchQuery) (ExtractionOutcome, error) {
	start := time.Now()
	log := p.logger.With("query", q.String())
	var diag Diagnostics

	finish := func(out ExtractionOutcome, err error) (ExtractionOutcome, error) {
		out.Diagnostics.ElapsedMillis = time.Since(start).Milliseconds()
		if out.Records == nil {
			out.Records = []CaseRecord{}
		}
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
		metrics.QueriesTotal.WithLabelValues(outcomeLabel(out, err)).Inc()
		log.Info("Query finished",
			"success", out.Success,
			"error_kind", out.ErrorKind,
			"records", len(out.Records),
			"elapsed_ms", out.Diagnostics.ElapsedMillis)
		return out, err
	}
	fail := func(kind ErrorKind, err error) (ExtractionOutcome, error) {
		return finish(ExtractionOutcome{ErrorKind: kind, Message: err.Error(), Diagnostics: diag}, err)
	}

	if err := q.Validate(); err != nil {
		return finish(ExtractionOutcome{ErrorKind: ErrorKindInvalidQuery, Message: err.Error(), Diagnostics: diag}, nil)
	}

	// one retry, then surface
	if err := p.nav.Open(ctx, page, p.profile.SearchURL); err != nil {
		log.Warn("Search page unreachable, retrying once", "error", err)
		if err := p.nav.Open(ctx, page, p.profile.SearchURL); err != nil {
			return fail(ErrorKindNavigation, err)
		}
	}

	report := p.filler.Fill(ctx, page, q)
	diag.FieldsFilled = report.Filled()
	if !report.Satisfied(p.opts.FormMinFilled) {
		diag.FormFillPartial = true
		return finish(ExtractionOutcome{
			ErrorKind:   ErrorKindFormFill,
			Message:     fmt.Sprintf("only %d search fields could be filled", report.Filled()),
			Diagnostics: diag,
		}, nil)
	}
	for _, f := range report.Fields {
		if !f.Filled && !f.Absent {
			diag.FormFillPartial = true
			log.Warn("Continuing with partially filled form", "field", f.Field, "reason", f.Reason)
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(ErrorKindDeadline, err)
	}

	co := p.captcha.Resolve(ctx, page, q, p.opts.CaptchaMaxAttempts)
	diag.CaptchaAttempts = co.Attempts
	diag.CaptchaSolved = co.Solved && co.Present
	diag.CaptchaExhausted = co.Final == CaptchaExhausted
	if err := ctx.Err(); err != nil {
		return fail(ErrorKindDeadline, err)
	}

	sub := p.submitter.Submit(ctx, page, q, co.Submitted)
	diag.SubmissionMethod = sub.Method
	diag.ReachedResults = sub.ReachedResultsContext
	if !sub.ReachedResultsContext {
		log.Warn("Results page not confirmed, verifying content anyway", "url", sub.URL)
	}

	verdict, err := p.verifier.Verify(ctx, page)
	if err != nil {
		if ctx.Err() != nil {
			return fail(ErrorKindDeadline, ctx.Err())
		}
		return fail(ErrorKindNavigation, err)
	}
	diag.Verification = verdict.Status

	if verdict.Status == StatusNoCaseFound || verdict.Status == StatusNoResults {
		return finish(BuildOutcome(verdict, nil, diag), nil)
	}

	rows, stats := p.extractor.Extract(ctx, page)
	diag.RowsScanned = stats.Scanned
	diag.RowsSkipped = stats.Skipped
	diag.Strategy = stats.Strategy

	resultsURL := page.URL()
	details, walk := p.walker.Walk(ctx, page, rows, resultsURL)
	diag.DetailWalks = walk.Walked
	diag.DetailFailures = walk.Failures
	diag.DetailSkipped = walk.Skipped
	diag.BudgetExhausted = walk.BudgetExhausted

	records := Aggregate(q.Bench, rows, details)
	return finish(BuildOutcome(verdict, records, diag), nil)
}

func outcomeLabel(out ExtractionOutcome, err error) string {
	switch {
	case err != nil:
		var navErr *NavigationError
		if errors.As(err, &navErr) {
			return "navigation_error"
		}
		return "error"
	case out.ErrorKind != ErrorKindNone:
		return string(out.ErrorKind)
	case out.Success:
		return "success"
	}
	return "failed"
}

// PageSource hands out fresh pages, one per query.
type PageSource interface {
	NewPage(ctx context.Context) (Page, error)
}

// Scraper runs queries on pages from a PageSource.
type Scraper struct {
	pages    PageSource
	pipeline *Pipeline
	logger   *logger.Logger
}

func NewScraper(pages PageSource, pipeline *Pipeline, log *logger.Logger) *Scraper {
	return &Scraper{pages: pages, pipeline: pipeline, logger: log}
}

// Search opens a page, runs q on it and closes it.
func (s *Scraper) Search(ctx context.Context, q SearchQuery) (ExtractionOutcome, error) {
	page, err := s.pages.NewPage(ctx)
	if err != nil {
		return ExtractionOutcome{Records: []CaseRecord{}, ErrorKind: ErrorKindNavigation, Message: err.Error()}, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Warn("Failed to close page", "error", err)
		}
	}()

	return s.pipeline.Run(ctx, page, q)
}
