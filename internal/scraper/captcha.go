package scraper

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/internal/metrics"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
)

// Solver turns a captcha image into its text.
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// SolverFunc adapts a function to Solver.
type SolverFunc func(ctx context.Context, image []byte) (string, error)

func (f SolverFunc) Solve(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

// CaptchaState is a state of the captcha resolution machine.
type CaptchaState int

const (
	CaptchaIdle CaptchaState = iota
	CaptchaDetecting
	CaptchaCapturing
	CaptchaSolving
	CaptchaVerifying
	CaptchaSolved
	CaptchaExhausted
)

func (s CaptchaState) String() string {
	switch s {
	case CaptchaIdle:
		return "idle"
	case CaptchaDetecting:
		return "detecting"
	case CaptchaCapturing:
		return "capturing"
	case CaptchaSolving:
		return "solving"
	case CaptchaVerifying:
		return "verifying"
	case CaptchaSolved:
		return "solved"
	case CaptchaExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the machine stops in s.
func (s CaptchaState) Terminal() bool {
	return s == CaptchaSolved || s == CaptchaExhausted
}

// CaptchaOutcome is the result of Resolve. Exhaustion is not an error.
type CaptchaOutcome struct {
	Solved   bool         `json:"solved"`
	Present  bool         `json:"present"`
	Attempts int          `json:"attempts"`
	Final    CaptchaState `json:"-"`
	// Submitted is true when verification submitted the search form.
	Submitted bool `json:"submitted"`
}

var captchaAnswerPattern = regexp.MustCompile(`^[A-Za-z0-9]{3,6}$`)

// NormalizeCaptchaAnswer strips whitespace and punctuation from a solver
// answer and reports whether the rest looks like a captcha.
func NormalizeCaptchaAnswer(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	return out, captchaAnswerPattern.MatchString(out)
}

// CaptchaHandler detects, captures, solves and verifies the search form
// captcha, reloading and refilling between attempts.
type CaptchaHandler struct {
	profile   *config.SiteProfile
	solver    Solver
	fallback  Solver
	nav       *Navigator
	filler    *FormFiller
	submitter *Submitter
	logger    *logger.Logger
}

func NewCaptchaHandler(profile *config.SiteProfile, solver, fallback Solver, nav *Navigator, filler *FormFiller, submitter *Submitter, log *logger.Logger) *CaptchaHandler {
	return &CaptchaHandler{
		profile:   profile,
		solver:    solver,
		fallback:  fallback,
		nav:       nav,
		filler:    filler,
		submitter: submitter,
		logger:    log,
	}
}

// captchaRun is the mutable state of one Resolve call.
type captchaRun struct {
	state     CaptchaState
	attempt   int
	max       int
	query     SearchQuery
	challenge CaptchaChallenge
	answer    string
	present   bool
	submitted bool
}

// Resolve drives the machine to a terminal state. The primary solver is
// invoked at most maxAttempts times.
func (h *CaptchaHandler) Resolve(ctx context.Context, page Page, q SearchQuery, maxAttempts int) CaptchaOutcome {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	run := &captchaRun{state: CaptchaIdle, max: maxAttempts, query: q}

	for !run.state.Terminal() {
		if ctx.Err() != nil {
			h.logger.Warn("Captcha resolution cancelled", "attempt", run.attempt, "error", ctx.Err())
			run.state = CaptchaExhausted
			break
		}
		next := h.step(ctx, page, run)
		h.logger.Debug("Captcha transition", "from", run.state, "to", next, "attempt", run.attempt)
		run.state = next
	}

	if run.present {
		if run.state == CaptchaSolved {
			metrics.CaptchaAttempts.WithLabelValues("solved").Inc()
		} else {
			h.logger.Warn("Captcha attempts exhausted, continuing", "attempts", run.attempt)
			metrics.CaptchaAttempts.WithLabelValues("exhausted").Inc()
		}
	}

	return CaptchaOutcome{
		Solved:    run.state == CaptchaSolved,
		Present:   run.present,
		Attempts:  run.attempt,
		Final:     run.state,
		Submitted: run.submitted,
	}
}

// step performs the work of the current state and returns the next one.
func (h *CaptchaHandler) step(ctx context.Context, page Page, run *captchaRun) CaptchaState {
	switch run.state {
	case CaptchaIdle:
		return CaptchaDetecting

	case CaptchaDetecting:
		if !h.detect(ctx, page) {
			if run.present {
				// seen before and gone after a retry
				h.logger.Warn("CAPTCHA form not available for another attempt", "url", page.URL())
				return CaptchaExhausted
			}
			h.logger.Debug("No CAPTCHA detected")
			return CaptchaSolved
		}
		run.present = true
		if run.attempt >= run.max {
			return CaptchaExhausted
		}
		return CaptchaCapturing

	case CaptchaCapturing:
		run.attempt++
		challenge, err := h.capture(ctx, page)
		if err != nil {
			h.logger.Warn("Failed to capture CAPTCHA", "attempt", run.attempt, "error", err)
			return h.retry(ctx, page, run)
		}
		challenge.Attempt = run.attempt
		run.challenge = challenge
		return CaptchaSolving

	case CaptchaSolving:
		answer, ok := h.solve(ctx, run.challenge)
		if !ok {
			metrics.CaptchaAttempts.WithLabelValues("unsolved").Inc()
			return h.retry(ctx, page, run)
		}
		run.answer = answer
		return CaptchaVerifying

	case CaptchaVerifying:
		if h.verify(ctx, page, run) {
			return CaptchaSolved
		}
		metrics.CaptchaAttempts.WithLabelValues("rejected").Inc()
		return h.retry(ctx, page, run)
	}

	return CaptchaExhausted
}

// retry reloads the form for another attempt, or gives up.
func (h *CaptchaHandler) retry(ctx context.Context, page Page, run *captchaRun) CaptchaState {
	if run.attempt >= run.max {
		return CaptchaExhausted
	}
	if err := h.nav.Reload(ctx, page); err != nil {
		h.logger.Warn("Reload between CAPTCHA attempts failed", "error", err)
		return CaptchaExhausted
	}
	if !h.detect(ctx, page) {
		h.logger.Info("Search form missing after reload, reopening", "url", page.URL())
		if err := h.nav.Open(ctx, page, h.profile.SearchURL); err != nil {
			h.logger.Warn("Reopening search page failed", "error", err)
			return CaptchaExhausted
		}
	}
	h.filler.Fill(ctx, page, run.query)
	run.answer = ""
	run.challenge = CaptchaChallenge{}
	return CaptchaDetecting
}

func (h *CaptchaHandler) detect(ctx context.Context, page Page) bool {
	c := h.profile.Captcha
	if c.Input == "" || !page.Exists(ctx, c.Input) {
		return false
	}
	return (c.Image != "" && page.Exists(ctx, c.Image)) || (c.Text != "" && page.Exists(ctx, c.Text))
}

// capture prefers a literal code printed next to the input, then the
// captcha image, then a box around the input.
func (h *CaptchaHandler) capture(ctx context.Context, page Page) (CaptchaChallenge, error) {
	c := h.profile.Captcha

	if c.Text != "" && page.Exists(ctx, c.Text) {
		if text, err := page.Text(ctx, c.Text); err == nil {
			if code, ok := NormalizeCaptchaAnswer(text); ok {
				return CaptchaChallenge{Text: code}, nil
			}
		}
	}

	if c.Image != "" && page.Exists(ctx, c.Image) {
		if img := inlineImage(ctx, page, c.Image); len(img) > 0 {
			return CaptchaChallenge{ImageBytes: img}, nil
		}
		img, err := page.Screenshot(ctx, c.Image)
		if err == nil && len(img) > 0 {
			return CaptchaChallenge{ImageBytes: img}, nil
		}
		h.logger.Debug("CAPTCHA image screenshot failed", "error", err)
	}

	img, err := page.ScreenshotAround(ctx, c.Input, 80)
	if err != nil {
		return CaptchaChallenge{}, fmt.Errorf("failed to screenshot CAPTCHA region: %w", err)
	}
	return CaptchaChallenge{ImageBytes: img}, nil
}

// inlineImage decodes a captcha served as a base64 data URI.
func inlineImage(ctx context.Context, page Page, selector string) []byte {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil
	}
	doc, err := parseHTML(html)
	if err != nil {
		return nil
	}

	src, _ := doc.Find(selector).First().Attr("src")
	if !strings.HasPrefix(src, "data:image") {
		return nil
	}
	i := strings.Index(src, ";base64,")
	if i < 0 {
		return nil
	}
	img, err := base64.StdEncoding.DecodeString(src[i+len(";base64,"):])
	if err != nil {
		return nil
	}
	return img
}

// solve asks the primary solver once and, when its answer is unusable, the
// fallback solver once. Solver errors and malformed answers are both soft.
func (h *CaptchaHandler) solve(ctx context.Context, ch CaptchaChallenge) (string, bool) {
	if ch.Text != "" {
		return ch.Text, true
	}

	if h.solver != nil {
		if answer, ok := h.ask(ctx, h.solver, ch, "primary"); ok {
			return answer, true
		}
	}
	if h.fallback != nil {
		if answer, ok := h.ask(ctx, h.fallback, ch, "fallback"); ok {
			return answer, true
		}
	}
	return "", false
}

func (h *CaptchaHandler) ask(ctx context.Context, s Solver, ch CaptchaChallenge, which string) (string, bool) {
	raw, err := s.Solve(ctx, ch.ImageBytes)
	if err != nil {
		if errors.Is(err, ErrSolverUnavailable) {
			h.logger.Warn("CAPTCHA solver unavailable", "solver", which, "attempt", ch.Attempt, "error", err)
		} else {
			h.logger.Warn("CAPTCHA solver failed", "solver", which, "attempt", ch.Attempt, "error", err)
		}
		return "", false
	}
	answer, ok := NormalizeCaptchaAnswer(raw)
	if !ok {
		h.logger.Warn("CAPTCHA answer malformed", "solver", which, "attempt", ch.Attempt, "length", len(answer))
		return "", false
	}
	return answer, true
}

// verify types the answer, submits, and checks for a rejection message.
func (h *CaptchaHandler) verify(ctx context.Context, page Page, run *captchaRun) bool {
	if err := page.Input(ctx, h.profile.Captcha.Input, run.answer); err != nil {
		h.logger.Warn("CAPTCHA input field not usable", "error", err)
		return false
	}

	if err := h.submitter.SubmitForm(ctx, page); err != nil {
		h.logger.Warn("Submitting CAPTCHA form failed", "error", err)
		return false
	}
	run.submitted = true

	html, err := page.HTML(ctx)
	if err != nil {
		return false
	}
	doc, err := parseHTML(html)
	if err != nil {
		return false
	}
	if msg := matchAny(visibleText(doc), h.profile.Captcha.ErrorPatterns); msg != "" {
		h.logger.Warn("CAPTCHA rejected", "attempt", run.attempt, "message", msg)
		return false
	}
	h.logger.Info("CAPTCHA accepted", "attempt", run.attempt)
	return true
}

// matchAny returns the first pattern contained in lowerText.
func matchAny(lowerText string, patterns []string) string {
	for _, p := range patterns {
		if p != "" && strings.Contains(lowerText, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}
