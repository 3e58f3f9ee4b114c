package scraper

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/PuerkitoBio/goquery"
)

const (
	SubmitByCaptchaForm = "captcha-form"
	SubmitByDirectLink  = "direct-link"
	SubmitByForm        = "form"
)

// SubmissionOutcome reports whether a results page was reached. Not reaching
// it is not fatal; verification still runs on whatever page is loaded.
type SubmissionOutcome struct {
	ReachedResultsContext bool   `json:"reached_results_context"`
	URL                   string `json:"url"`
	Method                string `json:"method,omitempty"`
}

// Submitter gets from a filled search form to a results page.
type Submitter struct {
	profile *config.SiteProfile
	nav     *Navigator
	filler  *FormFiller
	logger  *logger.Logger
}

func NewSubmitter(profile *config.SiteProfile, nav *Navigator, filler *FormFiller, log *logger.Logger) *Submitter {
	return &Submitter{profile: profile, nav: nav, filler: filler, logger: log}
}

// Submit reaches the results page. A form already submitted by captcha
// verification is kept when it landed on results; otherwise the shareable
// results link is tried before clicking through the form again.
func (s *Submitter) Submit(ctx context.Context, page Page, q SearchQuery, alreadySubmitted bool) SubmissionOutcome {
	if alreadySubmitted && s.InResultsContext(ctx, page) {
		return SubmissionOutcome{ReachedResultsContext: true, URL: page.URL(), Method: SubmitByCaptchaForm}
	}

	if link, ok := s.ResultsLink(q); ok {
		s.logger.Debug("Submitting through results link", "url", link)
		if err := s.nav.Open(ctx, page, link); err == nil {
			if s.InResultsContext(ctx, page) {
				return SubmissionOutcome{ReachedResultsContext: true, URL: page.URL(), Method: SubmitByDirectLink}
			}
		} else {
			s.logger.Warn("Results link navigation failed", "error", err)
		}

		// back to a filled form for the fallback
		if err := s.nav.Open(ctx, page, s.profile.SearchURL); err != nil {
			return SubmissionOutcome{URL: page.URL(), Method: SubmitByDirectLink}
		}
		s.filler.Fill(ctx, page, q)
	}

	if err := s.SubmitForm(ctx, page); err != nil {
		s.logger.Warn("Form submission failed", "error", err)
		return SubmissionOutcome{URL: page.URL(), Method: SubmitByForm}
	}
	return SubmissionOutcome{
		ReachedResultsContext: s.InResultsContext(ctx, page),
		URL:                   page.URL(),
		Method:                SubmitByForm,
	}
}

// ResultsLink builds the site's shareable results URL: each parameter value
// base64 encoded under its configured name.
func (s *Submitter) ResultsLink(q SearchQuery) (string, bool) {
	if s.profile.ResultsURL == "" {
		return "", false
	}
	base, err := url.Parse(s.profile.ResultsURL)
	if err != nil {
		return "", false
	}

	values := base.Query()
	add := func(name, value string) {
		if name == "" || value == "" {
			return
		}
		values.Set(name, base64.StdEncoding.EncodeToString([]byte(value)))
	}
	add(s.profile.LinkParams.Bench, MapValue(s.profile.Benches, q.Bench))
	add(s.profile.LinkParams.CaseType, MapValue(s.profile.CaseTypes, q.CaseType))
	add(s.profile.LinkParams.CaseNumber, strings.TrimSpace(q.CaseNumber))
	add(s.profile.LinkParams.Year, strings.TrimSpace(q.Year))

	if len(values) == 0 {
		return "", false
	}
	base.RawQuery = values.Encode()
	return base.String(), true
}

// SubmitForm submits the form holding all four search fields. Other forms on
// the page (menus, site search, login) are ignored.
func (s *Submitter) SubmitForm(ctx context.Context, page Page) error {
	html, err := page.HTML(ctx)
	if err != nil {
		return err
	}
	doc, err := parseHTML(html)
	if err != nil {
		return err
	}

	idx := s.searchFormIndex(doc)
	if idx < 0 {
		return ErrNoSearchForm
	}
	s.logger.Debug("Submitting search form", "form_index", idx)
	return page.SubmitForm(ctx, idx, s.profile.SubmitSelector)
}

func (s *Submitter) searchFormIndex(doc *goquery.Document) int {
	fields := []string{
		s.profile.Fields.Bench.Selector,
		s.profile.Fields.CaseType.Selector,
		s.profile.Fields.CaseNumber.Selector,
		s.profile.Fields.Year.Selector,
	}

	found := -1
	doc.Find("form").EachWithBreak(func(i int, form *goquery.Selection) bool {
		for _, sel := range fields {
			if form.Find(sel).Length() == 0 {
				return true
			}
		}
		found = i
		return false
	})
	return found
}

// InResultsContext reports whether page shows results rather than the form.
func (s *Submitter) InResultsContext(ctx context.Context, page Page) bool {
	if hint := s.profile.ResultsURLHint; hint != "" && strings.Contains(strings.ToLower(page.URL()), strings.ToLower(hint)) {
		return true
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return false
	}
	doc, err := parseHTML(html)
	if err != nil {
		return false
	}
	return s.searchFormIndex(doc) < 0 && doc.Find("table").Length() > 0
}
