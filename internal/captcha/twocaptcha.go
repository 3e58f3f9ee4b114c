// Package captcha holds the external captcha solving services the pipeline
// can call. Every failure is reported as scraper.ErrSolverUnavailable so the
// pipeline treats it as a soft failure.
package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/scraper"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
)

const twoCaptchaBaseURL = "http://2captcha.com"

type twoCaptchaResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// TwoCaptcha solves image captchas through the 2Captcha in.php/res.php API.
type TwoCaptcha struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int
	client       *http.Client
	logger       *logger.Logger
}

func NewTwoCaptcha(apiKey string, log *logger.Logger) *TwoCaptcha {
	return &TwoCaptcha{
		APIKey:       apiKey,
		BaseURL:      twoCaptchaBaseURL,
		PollInterval: 3 * time.Second,
		MaxPolls:     30,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       log,
	}
}

func (s *TwoCaptcha) Solve(ctx context.Context, image []byte) (string, error) {
	form := url.Values{
		"key":    {s.APIKey},
		"method": {"base64"},
		"body":   {base64.StdEncoding.EncodeToString(image)},
		"json":   {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/in.php", strings.NewReader(form.Encode()))
	if err != nil {
		return "", unavailable("2captcha", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var submit twoCaptchaResponse
	if err := s.do(req, &submit); err != nil {
		return "", unavailable("2captcha submit", err)
	}
	if submit.Status != 1 {
		return "", unavailable("2captcha submit", fmt.Errorf("%s", submit.Request))
	}
	id := submit.Request
	s.logger.Debug("CAPTCHA submitted to 2Captcha", "id", id)

	result := fmt.Sprintf("%s/res.php?key=%s&action=get&id=%s&json=1",
		s.BaseURL, url.QueryEscape(s.APIKey), url.QueryEscape(id))

	for i := 0; i < s.MaxPolls; i++ {
		if err := sleep(ctx, s.PollInterval); err != nil {
			return "", unavailable("2captcha", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, result, nil)
		if err != nil {
			return "", unavailable("2captcha", err)
		}
		var res twoCaptchaResponse
		if err := s.do(req, &res); err != nil {
			s.logger.Debug("2Captcha poll failed", "error", err)
			continue
		}
		if res.Status == 1 {
			return res.Request, nil
		}
		if res.Request != "CAPCHA_NOT_READY" {
			return "", unavailable("2captcha", fmt.Errorf("%s", res.Request))
		}
	}

	return "", unavailable("2captcha", fmt.Errorf("timed out after %d polls", s.MaxPolls))
}

func (s *TwoCaptcha) do(req *http.Request, out interface{}) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func unavailable(service string, err error) error {
	return fmt.Errorf("%s: %w: %v", service, scraper.ErrSolverUnavailable, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
