package batch

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/JustJay7/court-case-pipeline/internal/scraper"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// QueryFile is the BATCH_FILE layout.
type QueryFile struct {
	Queries []scraper.SearchQuery `yaml:"queries"`
}

// LoadQueries reads and validates the query list at path.
func LoadQueries(path string) ([]scraper.SearchQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var file QueryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}

	for i, q := range file.Queries {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("batch file %s entry %d: %w", path, i+1, err)
		}
	}
	return file.Queries, nil
}

// cronLogger routes robfig/cron's logging through our logger.
type cronLogger struct{ log *logger.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs the batch file on a cron schedule. A run still in progress
// when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	file   string
	logger *logger.Logger

	mu   sync.Mutex
	last *BatchReport
}

func NewScheduler(runner *Runner, file string, log *logger.Logger) *Scheduler {
	cl := cronLogger{log: log}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner: runner,
		file:   file,
		logger: log,
	}
}

// Start registers the batch on spec and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("Scheduled batch failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid BATCH_SCHEDULE %q: %w", spec, err)
	}

	s.cron.Start()
	s.logger.Info("Batch scheduler started", "schedule", spec, "file", s.file)
	return nil
}

// Stop waits for a running batch to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Batch scheduler stopped")
}

// RunOnce loads the batch file and runs it now.
func (s *Scheduler) RunOnce(ctx context.Context) (BatchReport, error) {
	queries, err := LoadQueries(s.file)
	if err != nil {
		return BatchReport{}, err
	}

	report := s.runner.Run(ctx, queries)

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()
	return report, nil
}

// LastReport is the report of the most recent run, if any.
func (s *Scheduler) LastReport() (BatchReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return BatchReport{}, false
	}
	return *s.last, true
}
