package captcha

import (
	"context"
	"errors"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/internal/scraper"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
)

// Chain asks each solver in turn and returns the first non-empty answer.
type Chain struct {
	solvers []scraper.Solver
	logger  *logger.Logger
}

func NewChain(log *logger.Logger, solvers ...scraper.Solver) *Chain {
	return &Chain{solvers: solvers, logger: log}
}

// Len is the number of solvers in the chain.
func (c *Chain) Len() int { return len(c.solvers) }

func (c *Chain) Solve(ctx context.Context, image []byte) (string, error) {
	if len(c.solvers) == 0 {
		return "", scraper.ErrSolverUnavailable
	}

	var errs []error
	for _, s := range c.solvers {
		answer, err := s.Solve(ctx, image)
		if err == nil && answer != "" {
			return answer, nil
		}
		if err != nil {
			c.logger.Debug("Solver in chain failed", "error", err)
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", nil
	}
	return "", errors.Join(errs...)
}

// FromConfig builds the primary solver chain from the configured service
// keys, and a manual fallback when a drop directory is set. Either may be nil.
func FromConfig(cfg *config.Config, log *logger.Logger) (primary, fallback scraper.Solver) {
	var services []scraper.Solver
	if cfg.TwoCaptchaKey != "" {
		services = append(services, NewTwoCaptcha(cfg.TwoCaptchaKey, log))
	}
	if cfg.AntiCaptchaKey != "" {
		services = append(services, NewAntiCaptcha(cfg.AntiCaptchaKey, log))
	}
	if len(services) > 0 {
		primary = NewChain(log, services...)
	}
	if cfg.CaptchaDir != "" {
		fallback = NewFileSolver(cfg.CaptchaDir, 60*time.Second, log)
	}
	if primary == nil && fallback == nil {
		log.Warn("No CAPTCHA solver configured; only text captchas can be answered")
	}
	return primary, fallback
}
