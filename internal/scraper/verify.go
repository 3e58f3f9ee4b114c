package scraper

import (
	"context"
	"fmt"

	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/PuerkitoBio/goquery"
)

// VerificationStatus classifies the page reached after submission.
type VerificationStatus string

const (
	StatusNoCaseFound      VerificationStatus = "NO_CASE_FOUND"
	StatusNoResults        VerificationStatus = "NO_RESULTS"
	StatusHasResults       VerificationStatus = "HAS_RESULTS"
	StatusAmbiguousContent VerificationStatus = "AMBIGUOUS_CONTENT"
)

type VerificationOutcome struct {
	Status   VerificationStatus `json:"status"`
	Message  string             `json:"message"`
	Score    int                `json:"score"`
	DataRows int                `json:"data_rows"`
}

// Verifier scores a results page instead of trusting one selector, because
// error pages and menus share vocabulary with real results.
type Verifier struct {
	profile *config.SiteProfile
	logger  *logger.Logger
}

func NewVerifier(profile *config.SiteProfile, log *logger.Logger) *Verifier {
	return &Verifier{profile: profile, logger: log}
}

// Verify snapshots page and classifies it.
func (v *Verifier) Verify(ctx context.Context, page Page) (VerificationOutcome, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return VerificationOutcome{}, fmt.Errorf("failed to read results page: %w", err)
	}
	doc, err := parseHTML(html)
	if err != nil {
		return VerificationOutcome{}, fmt.Errorf("failed to parse results page: %w", err)
	}
	out := v.Classify(doc)
	v.logger.Info("Results page classified", "status", out.Status, "score", out.Score, "rows", out.DataRows)
	return out, nil
}

// Classify applies the scoring rules to a parsed page.
func (v *Verifier) Classify(doc *goquery.Document) VerificationOutcome {
	text := visibleText(doc)

	if p := matchAny(text, v.profile.NegativePatterns); p != "" {
		return VerificationOutcome{Status: StatusNoCaseFound, Message: fmt.Sprintf("site reported %q", p)}
	}

	score := 0
	tables := doc.Find("table")
	if tables.Length() > 0 {
		score++
	}
	if matchAny(text, v.profile.DomainKeywords) != "" {
		score++
	}
	rows := countDataRows(tables)
	if rows > 0 {
		score++
	}

	out := VerificationOutcome{Score: score, DataRows: rows}
	switch {
	case score >= 2 && rows > 0:
		out.Status = StatusHasResults
		out.Message = fmt.Sprintf("%d data rows", rows)
	case score >= 2:
		out.Status = StatusAmbiguousContent
		out.Message = "results vocabulary without data rows"
	default:
		out.Status = StatusNoResults
		out.Message = "no results content"
	}
	return out
}

// countDataRows counts table rows that are neither header-shaped nor noise.
func countDataRows(tables *goquery.Selection) int {
	n := 0
	tables.Each(func(_ int, table *goquery.Selection) {
		tableRows(table).Each(func(_ int, row *goquery.Selection) {
			cells := rowCells(row)
			if isHeaderRow(row, cells) {
				return
			}
			if AcceptRowCells(cells) {
				n++
			}
		})
	})
	return n
}
