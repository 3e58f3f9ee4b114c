package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/PuerkitoBio/goquery"
)

// Canonical detail field names.
const (
	DetailFilingNumber     = "filing_number"
	DetailCaseNumber       = "case_number"
	DetailFilingDate       = "filing_date"
	DetailParties          = "parties"
	DetailStatus           = "status"
	DetailAdvocates        = "advocates"
	DetailRegistrationDate = "registration_date"
	DetailNextListingDate  = "next_listing_date"
)

// Parser reads case detail pages.
type Parser struct {
	history HistoryParser
	logger  *logger.Logger
}

func NewParser(log *logger.Logger) *Parser {
	return &Parser{logger: log}
}

// ParseDetail snapshots the current page and parses it.
func (p *Parser) ParseDetail(ctx context.Context, page Page) (DetailRecord, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return DetailRecord{}, fmt.Errorf("failed to read detail page: %w", err)
	}
	doc, err := parseHTML(html)
	if err != nil {
		return DetailRecord{}, fmt.Errorf("failed to parse detail page: %w", err)
	}
	return p.ParseDocument(doc, page.URL()), nil
}

// ParseDocument runs the key/value scan and the history parser over doc.
func (p *Parser) ParseDocument(doc *goquery.Document, pageURL string) DetailRecord {
	rec := DetailRecord{URL: pageURL, Fields: make(map[string]string)}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		tableRows(table).Each(func(_ int, tr *goquery.Selection) {
			cells := rowCells(tr)
			// label/value pairs, sometimes two pairs to a row
			if len(cells) < 2 || len(cells)%2 != 0 {
				return
			}
			for i := 0; i+1 < len(cells); i += 2 {
				if key := DetailLabel(cells[i]); key != "" && cells[i+1] != "" {
					if _, dup := rec.Fields[key]; !dup {
						rec.Fields[key] = cells[i+1]
					}
				}
			}
		})
	})

	rec.FilingNumber = rec.Fields[DetailFilingNumber]
	rec.CaseNumber = rec.Fields[DetailCaseNumber]
	rec.FilingDate = rec.Fields[DetailFilingDate]
	rec.PartiesText = rec.Fields[DetailParties]
	rec.StatusText = rec.Fields[DetailStatus]
	rec.Advocates = rec.Fields[DetailAdvocates]
	rec.RegistrationDate = rec.Fields[DetailRegistrationDate]
	rec.NextListingDate = rec.Fields[DetailNextListingDate]

	rec.History = p.history.Parse(doc, parseBase(pageURL))
	if len(rec.Fields) == 0 {
		rec.Fields = nil
	}

	p.logger.Debug("Detail page parsed", "url", pageURL, "fields", len(rec.Fields), "history", len(rec.History))
	return rec
}

// DetailLabel maps a detail page label to its canonical field, or "".
func DetailLabel(label string) string {
	l := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(label), ":"))
	if l == "" || len(l) > 60 {
		return ""
	}

	switch {
	case strings.Contains(l, "filing") && strings.Contains(l, "date"):
		return DetailFilingDate
	case strings.Contains(l, "filing") && containsAny(l, "no", "number"), strings.Contains(l, "diary"):
		return DetailFilingNumber
	case strings.Contains(l, "registration") && strings.Contains(l, "date"):
		return DetailRegistrationDate
	case strings.Contains(l, "next") && containsAny(l, "listing", "date", "hearing"):
		return DetailNextListingDate
	case containsAny(l, "case no", "case number", "registration no", "cp no"):
		return DetailCaseNumber
	case containsAny(l, "party", "parties", "cause title", "petitioner vs"):
		return DetailParties
	case containsAny(l, "advocate", "counsel"):
		return DetailAdvocates
	case strings.Contains(l, "status") || strings.Contains(l, "stage"):
		return DetailStatus
	}
	return ""
}

var dayName = regexp.MustCompile(`(?i)(monday|tuesday|wednesday|thursday|friday|saturday|sunday),?\s*`)

var dateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"02-Jan-2006",
	"02-January-2006",
	"02 Jan 2006",
	"02 January 2006",
	"2006-01-02",
	"Jan 02, 2006",
	"January 02, 2006",
}

// ParseDate parses the date formats used by Indian tribunal portals.
func ParseDate(s string) (time.Time, error) {
	s = cleanText(s)
	if m := dateShape.FindString(s); m != "" && m != s {
		s = m
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	s = dayName.ReplaceAllString(s, "")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}
