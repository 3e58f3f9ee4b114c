package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWalker(minBudget time.Duration) *DetailWalker {
	return NewDetailWalker(testProfile(), NewNavigator(time.Second, nopLog), NewParser(nopLog), 0, minBudget, nopLog)
}

func TestShouldFollow(t *testing.T) {
	w := newTestWalker(0)

	tests := []struct {
		name string
		row  ResultRow
		want bool
	}{
		{"pending with link", ResultRow{DetailLink: "x", StatusText: "Pending"}, true},
		{"listed with link", ResultRow{DetailLink: "x", StatusText: "LISTED for hearing"}, true},
		{"disposed", ResultRow{DetailLink: "x", StatusText: "Disposed"}, false},
		{"no link", ResultRow{StatusText: "Pending"}, false},
		{"unknown status", ResultRow{DetailLink: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.ShouldFollow(tt.row))
		})
	}
}

func TestWalkIsolatesRowFailures(t *testing.T) {
	brokenURL := "https://tribunal.test/case/broken"
	emptyURL := "https://tribunal.test/case/empty"
	page := openPage(t, map[string]string{
		testResultsURL: resultsPageHTML,
		testDetailURL:  detailPageHTML,
		emptyURL:       `<html><body><p>Session expired</p></body></html>`,
	}, testResultsURL)

	rows := []ResultRow{
		{DetailLink: brokenURL, StatusText: "Pending"},
		{DetailLink: emptyURL, StatusText: "Pending"},
		{DetailLink: "https://tribunal.test/case/2", StatusText: "Disposed"},
		{DetailLink: testDetailURL, StatusText: "Pending"},
		{StatusText: "Pending"},
	}

	records, stats := newTestWalker(0).Walk(context.Background(), page, rows, testResultsURL)

	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].RowIndex)
	assert.Equal(t, "2709138/00123/2022", records[0].FilingNumber)
	assert.Equal(t, 3, stats.Walked)
	assert.Equal(t, 2, stats.Failures)
	assert.Equal(t, 1, stats.Skipped)
	assert.False(t, stats.BudgetExhausted)
	assert.Equal(t, testResultsURL, page.URL())
}

func TestWalkStopsWhenBudgetLow(t *testing.T) {
	page := openPage(t, map[string]string{
		testResultsURL: resultsPageHTML,
		testDetailURL:  detailPageHTML,
	}, testResultsURL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows := []ResultRow{{DetailLink: testDetailURL, StatusText: "Pending"}}
	records, stats := newTestWalker(time.Minute).Walk(ctx, page, rows, testResultsURL)

	assert.Empty(t, records)
	assert.True(t, stats.BudgetExhausted)
	assert.Equal(t, 0, stats.Walked)
	assert.Equal(t, []string{testResultsURL}, page.navigations)
}
