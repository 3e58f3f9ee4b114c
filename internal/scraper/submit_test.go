package scraper

import (
	"context"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubmitter(profileEdit func(p *config.SiteProfile)) *Submitter {
	profile := testProfile()
	if profileEdit != nil {
		profileEdit(profile)
	}
	nav := NewNavigator(0, nopLog)
	return NewSubmitter(profile, nav, NewFormFiller(profile, nopLog), nopLog)
}

func TestResultsLinkEncodesParameters(t *testing.T) {
	s := newTestSubmitter(func(p *config.SiteProfile) {
		p.ResultsURL = "https://tribunal.test/results?mode=share"
	})

	link, ok := s.ResultsLink(SearchQuery{Bench: "delhi", CaseType: "cp", CaseNumber: " 123 ", Year: "2022"})
	require.True(t, ok)

	u, err := url.Parse(link)
	require.NoError(t, err)
	decode := func(name string) string {
		b, err := base64.StdEncoding.DecodeString(u.Query().Get(name))
		require.NoError(t, err)
		return string(b)
	}
	assert.Equal(t, "share", u.Query().Get("mode"))
	assert.Equal(t, "New Delhi", decode("bench"))
	assert.Equal(t, "Company Petition", decode("case_type"))
	assert.Equal(t, "123", decode("cp_no"))
	assert.Equal(t, "2022", decode("case_year"))
}

func TestResultsLinkDisabledWithoutURL(t *testing.T) {
	_, ok := newTestSubmitter(nil).ResultsLink(testQuery)
	assert.False(t, ok)
}

func TestSubmitFormSkipsUnrelatedForms(t *testing.T) {
	page := openPage(t, map[string]string{
		testSearchURL:  searchPageHTML,
		testResultsURL: resultsPageHTML,
	}, testSearchURL)
	var submittedFrom string
	page.onSubmit = func(p *fakePage) string {
		submittedFrom = p.current
		return testResultsURL
	}

	require.NoError(t, newTestSubmitter(nil).SubmitForm(context.Background(), page))
	assert.Equal(t, testSearchURL, submittedFrom)
	assert.Equal(t, 1, page.submits)
}

func TestSubmitFormWithoutSearchForm(t *testing.T) {
	page := openPage(t, map[string]string{testResultsURL: resultsPageHTML}, testResultsURL)
	err := newTestSubmitter(nil).SubmitForm(context.Background(), page)
	assert.ErrorIs(t, err, ErrNoSearchForm)
}

func TestSubmitPrefersDirectLink(t *testing.T) {
	s := newTestSubmitter(func(p *config.SiteProfile) {
		p.ResultsURL = "https://tribunal.test/results"
	})
	link, ok := s.ResultsLink(testQuery)
	require.True(t, ok)

	page := openPage(t, map[string]string{
		testSearchURL: searchPageHTML,
		link:          resultsPageHTML,
	}, testSearchURL)

	out := s.Submit(context.Background(), page, testQuery, false)

	assert.True(t, out.ReachedResultsContext)
	assert.Equal(t, SubmitByDirectLink, out.Method)
	assert.Equal(t, 0, page.submits)
}

func TestSubmitFallsBackToForm(t *testing.T) {
	s := newTestSubmitter(func(p *config.SiteProfile) {
		p.ResultsURL = "https://tribunal.test/results/share"
	})
	page := openPage(t, map[string]string{
		testSearchURL:  searchPageHTML,
		testResultsURL: resultsPageHTML,
	}, testSearchURL)
	page.onSubmit = func(*fakePage) string { return testResultsURL }

	out := s.Submit(context.Background(), page, testQuery, false)

	assert.True(t, out.ReachedResultsContext)
	assert.Equal(t, SubmitByForm, out.Method)
	assert.Equal(t, 1, page.submits)
	assert.Equal(t, "10", page.value("#bench"))
}

func TestSubmitKeepsCaptchaSubmission(t *testing.T) {
	page := openPage(t, map[string]string{testResultsURL: resultsPageHTML}, testResultsURL)

	out := newTestSubmitter(nil).Submit(context.Background(), page, testQuery, true)

	assert.True(t, out.ReachedResultsContext)
	assert.Equal(t, SubmitByCaptchaForm, out.Method)
}

func TestInResultsContextByContent(t *testing.T) {
	s := newTestSubmitter(func(p *config.SiteProfile) { p.ResultsURLHint = "" })

	results := openPage(t, map[string]string{"https://tribunal.test/x": resultsPageHTML}, "https://tribunal.test/x")
	form := openPage(t, map[string]string{testSearchURL: searchPageHTML}, testSearchURL)

	assert.True(t, s.InResultsContext(context.Background(), results))
	assert.False(t, s.InResultsContext(context.Background(), form))
}
