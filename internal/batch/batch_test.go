package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/cache"
	"github.com/JustJay7/court-case-pipeline/internal/scraper"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nopLog = logger.NewNop()

type fakeSearcher struct {
	mu       sync.Mutex
	calls    []string
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	respond  func(q scraper.SearchQuery) (scraper.ExtractionOutcome, error)
}

func (f *fakeSearcher) Search(ctx context.Context, q scraper.SearchQuery) (scraper.ExtractionOutcome, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, q.CaseNumber)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return scraper.ExtractionOutcome{}, ctx.Err()
		}
	}
	return f.respond(q)
}

type recordingSink struct {
	mu    sync.Mutex
	saved []string
}

func (s *recordingSink) Save(_ context.Context, q scraper.SearchQuery, _ scraper.ExtractionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, q.CaseNumber)
	return nil
}

func queries(numbers ...string) []scraper.SearchQuery {
	out := make([]scraper.SearchQuery, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, scraper.SearchQuery{Bench: "delhi", CaseType: "cp", CaseNumber: n, Year: "2022"})
	}
	return out
}

func scripted(q scraper.SearchQuery) (scraper.ExtractionOutcome, error) {
	switch q.CaseNumber {
	case "boom":
		return scraper.ExtractionOutcome{}, errors.New("browser crashed")
	case "none":
		return scraper.ExtractionOutcome{ErrorKind: scraper.ErrorKindNoCaseFound, Records: []scraper.CaseRecord{}}, nil
	}
	return scraper.ExtractionOutcome{Success: true, Records: []scraper.CaseRecord{{Bench: q.Bench, CaseNumber: q.CaseNumber}}}, nil
}

func TestRunnerContinuesPastFailures(t *testing.T) {
	searcher := &fakeSearcher{respond: scripted}
	sink := &recordingSink{}
	r := NewRunner(searcher, sink, nil, Options{}, nopLog)

	report := r.Run(context.Background(), queries("1", "boom", "none", "2"))

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	assert.False(t, report.DeadlineHit)
	assert.Equal(t, []string{"1", "boom", "none", "2"}, searcher.calls)
	assert.Equal(t, []string{"1", "boom", "none", "2"}, sink.saved)

	assert.Equal(t, ItemFailed, report.Items[1].Status)
	assert.Equal(t, "browser crashed", report.Items[1].Error)
	assert.Equal(t, scraper.ErrorKindNoCaseFound, report.Items[2].Outcome.ErrorKind)
}

func TestRunnerServesCachedResults(t *testing.T) {
	results := cache.NewCache(10, time.Hour)
	searcher := &fakeSearcher{respond: scripted}
	r := NewRunner(searcher, nil, results, Options{}, nopLog)

	first := r.Run(context.Background(), queries("1", "boom"))
	assert.Equal(t, 1, first.Succeeded)

	second := r.Run(context.Background(), queries("1", "boom"))

	assert.Equal(t, []string{"1", "boom", "boom"}, searcher.calls)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 1, second.Failed)
	assert.True(t, second.Items[0].FromCache)
	require.NotNil(t, second.Items[0].Outcome)
	assert.True(t, second.Items[0].Outcome.Success)
}

func TestRunnerSkipsQueriesAfterDeadline(t *testing.T) {
	searcher := &fakeSearcher{respond: scripted, delay: 30 * time.Millisecond}
	r := NewRunner(searcher, nil, nil, Options{Deadline: 50 * time.Millisecond}, nopLog)

	report := r.Run(context.Background(), queries("1", "2", "3", "4"))

	assert.True(t, report.DeadlineHit)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 4, report.Succeeded+report.Failed+report.Skipped)
	assert.GreaterOrEqual(t, report.Skipped, 2)
	last := report.Items[3]
	assert.Equal(t, ItemSkipped, last.Status)
	assert.Equal(t, scraper.ErrorKindDeadline, last.Outcome.ErrorKind)
}

func TestRunnerAppliesQueryDelay(t *testing.T) {
	searcher := &fakeSearcher{respond: scripted}
	r := NewRunner(searcher, nil, nil, Options{QueryDelay: 40 * time.Millisecond}, nopLog)

	start := time.Now()
	report := r.Run(context.Background(), queries("1", "2", "3"))

	assert.Equal(t, 3, report.Succeeded)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRunnerParallelism(t *testing.T) {
	searcher := &fakeSearcher{respond: scripted, delay: 20 * time.Millisecond}
	r := NewRunner(searcher, nil, nil, Options{Parallelism: 3}, nopLog)

	report := r.Run(context.Background(), queries("1", "2", "3", "4", "5", "6"))

	assert.Equal(t, 6, report.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt32(&searcher.maxSeen), int32(3))
	assert.Greater(t, atomic.LoadInt32(&searcher.maxSeen), int32(1))
	for i, item := range report.Items {
		assert.Equal(t, queries("1", "2", "3", "4", "5", "6")[i], item.Query)
	}
}

func writeBatchFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadQueries(t *testing.T) {
	path := writeBatchFile(t, `
queries:
  - bench: delhi
    case_type: cp
    year: "2023"
  - bench: mumbai
    case_number: "123"
`)

	qs, err := LoadQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []scraper.SearchQuery{
		{Bench: "delhi", CaseType: "cp", Year: "2023"},
		{Bench: "mumbai", CaseNumber: "123"},
	}, qs)
}

func TestLoadQueriesRejectsInvalidEntries(t *testing.T) {
	path := writeBatchFile(t, "queries:\n  - bench: delhi\n")

	_, err := LoadQueries(path)
	assert.ErrorIs(t, err, scraper.ErrInvalidQuery)
	assert.Contains(t, err.Error(), "entry 1")

	_, err = LoadQueries(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSchedulerRunOnce(t *testing.T) {
	path := writeBatchFile(t, "queries:\n  - bench: delhi\n    case_number: \"1\"\n")
	r := NewRunner(&fakeSearcher{respond: scripted}, nil, nil, Options{}, nopLog)
	s := NewScheduler(r, path, nopLog)

	_, ok := s.LastReport()
	assert.False(t, ok)

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	last, ok := s.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.Succeeded, last.Succeeded)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(NewRunner(&fakeSearcher{respond: scripted}, nil, nil, Options{}, nopLog), "unused", nopLog)
	assert.Error(t, s.Start("not a cron spec"))
}
