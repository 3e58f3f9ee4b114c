package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/internal/metrics"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
)

// WalkStats summarises one pass over the detail pages.
type WalkStats struct {
	Walked          int
	Failures        int
	Skipped         int
	BudgetExhausted bool
}

// DetailWalker visits the detail page of each actionable row, one at a time.
type DetailWalker struct {
	profile   *config.SiteProfile
	nav       *Navigator
	parser    *Parser
	rowDelay  time.Duration
	minBudget time.Duration
	logger    *logger.Logger
}

func NewDetailWalker(profile *config.SiteProfile, nav *Navigator, parser *Parser, rowDelay, minBudget time.Duration, log *logger.Logger) *DetailWalker {
	return &DetailWalker{
		profile:   profile,
		nav:       nav,
		parser:    parser,
		rowDelay:  rowDelay,
		minBudget: minBudget,
		logger:    log,
	}
}

// ShouldFollow reports whether a row's detail page is worth a request: it
// needs a link and a status that is still open. Rows without a status are
// followed.
func (w *DetailWalker) ShouldFollow(row ResultRow) bool {
	if row.DetailLink == "" {
		return false
	}
	status := strings.ToLower(strings.TrimSpace(row.StatusText))
	if status == "" {
		return true
	}
	return matchAny(status, w.profile.FollowStatuses) != ""
}

// Walk returns the detail records it could read, tagged with their row
// index. Per-row failures are logged and skipped. The walk stops early when
// the context's deadline leaves less than the minimum budget.
func (w *DetailWalker) Walk(ctx context.Context, page Page, rows []ResultRow, resultsURL string) ([]DetailRecord, WalkStats) {
	var (
		records []DetailRecord
		stats   WalkStats
	)

	for i, row := range rows {
		if !w.ShouldFollow(row) {
			if row.DetailLink != "" {
				stats.Skipped++
			}
			continue
		}
		if !w.hasBudget(ctx) {
			w.logger.Warn("Run budget exhausted, returning partial details", "walked", stats.Walked, "remaining_rows", len(rows)-i)
			stats.BudgetExhausted = true
			break
		}
		if stats.Walked > 0 && !w.pause(ctx) {
			stats.BudgetExhausted = true
			break
		}

		stats.Walked++
		rec, err := w.visit(ctx, page, row)
		if err != nil {
			stats.Failures++
			metrics.DetailWalks.WithLabelValues("failed").Inc()
			w.logger.Warn("Detail page failed", "row", i, "url", row.DetailLink, "error", err)
		} else if rec.Empty() {
			stats.Failures++
			metrics.DetailWalks.WithLabelValues("empty").Inc()
			w.logger.Warn("Detail page empty", "row", i, "url", row.DetailLink)
		} else {
			rec.RowIndex = i
			records = append(records, rec)
			metrics.DetailWalks.WithLabelValues("ok").Inc()
		}

		if resultsURL != "" {
			if err := w.nav.Return(ctx, page, resultsURL); err != nil {
				w.logger.Warn("Could not return to results", "error", err)
			}
		}
	}

	return records, stats
}

func (w *DetailWalker) visit(ctx context.Context, page Page, row ResultRow) (DetailRecord, error) {
	if err := w.nav.Open(ctx, page, row.DetailLink); err != nil {
		return DetailRecord{}, err
	}
	return w.parser.ParseDetail(ctx, page)
}

func (w *DetailWalker) hasBudget(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return true
	}
	return time.Until(deadline) >= w.minBudget
}

// pause waits the inter-row delay unless ctx ends first.
func (w *DetailWalker) pause(ctx context.Context) bool {
	if w.rowDelay <= 0 {
		return true
	}
	t := time.NewTimer(w.rowDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
