package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JustJay7/court-case-pipeline/pkg/logger"
)

const antiCaptchaBaseURL = "https://api.anti-captcha.com"

type antiCaptchaTask struct {
	Type string `json:"type"`
	Body string `json:"body"`
}

type createTaskRequest struct {
	ClientKey string          `json:"clientKey"`
	Task      antiCaptchaTask `json:"task"`
}

type createTaskResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           int    `json:"taskId"`
}

type taskResultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int    `json:"taskId"`
}

type taskResultResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorDescription string `json:"errorDescription"`
	Status           string `json:"status"`
	Solution         struct {
		Text string `json:"text"`
	} `json:"solution"`
}

// AntiCaptcha solves image captchas through Anti-Captcha's ImageToTextTask.
type AntiCaptcha struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int
	client       *http.Client
	logger       *logger.Logger
}

func NewAntiCaptcha(apiKey string, log *logger.Logger) *AntiCaptcha {
	return &AntiCaptcha{
		APIKey:       apiKey,
		BaseURL:      antiCaptchaBaseURL,
		PollInterval: 3 * time.Second,
		MaxPolls:     30,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       log,
	}
}

func (s *AntiCaptcha) Solve(ctx context.Context, image []byte) (string, error) {
	var created createTaskResponse
	err := s.post(ctx, "/createTask", createTaskRequest{
		ClientKey: s.APIKey,
		Task: antiCaptchaTask{
			Type: "ImageToTextTask",
			Body: base64.StdEncoding.EncodeToString(image),
		},
	}, &created)
	if err != nil {
		return "", unavailable("anti-captcha createTask", err)
	}
	if created.ErrorID != 0 {
		return "", unavailable("anti-captcha createTask", fmt.Errorf("error %d: %s", created.ErrorID, created.ErrorDescription))
	}
	s.logger.Debug("CAPTCHA submitted to Anti-Captcha", "task", created.TaskID)

	for i := 0; i < s.MaxPolls; i++ {
		if err := sleep(ctx, s.PollInterval); err != nil {
			return "", unavailable("anti-captcha", err)
		}

		var result taskResultResponse
		if err := s.post(ctx, "/getTaskResult", taskResultRequest{ClientKey: s.APIKey, TaskID: created.TaskID}, &result); err != nil {
			s.logger.Debug("Anti-Captcha poll failed", "error", err)
			continue
		}
		if result.ErrorID != 0 {
			return "", unavailable("anti-captcha", fmt.Errorf("error %d: %s", result.ErrorID, result.ErrorDescription))
		}
		if result.Status == "ready" {
			return result.Solution.Text, nil
		}
	}

	return "", unavailable("anti-captcha", fmt.Errorf("timed out after %d polls", s.MaxPolls))
}

func (s *AntiCaptcha) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

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
