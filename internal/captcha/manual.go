package captcha

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/google/uuid"
)

var manualID = regexp.MustCompile(`^captcha_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// NewManualID names one captcha dropped for an operator.
func NewManualID() string {
	return "captcha_" + uuid.New().String()
}

// ValidManualID reports whether id has the NewManualID shape.
func ValidManualID(id string) bool {
	return manualID.MatchString(id)
}

// FileSolver drops the captcha image into Dir as <id>.png and waits for an
// operator to write the answer to <id>.txt next to it.
type FileSolver struct {
	Dir          string
	Timeout      time.Duration
	PollInterval time.Duration
	logger       *logger.Logger
}

func NewFileSolver(dir string, timeout time.Duration, log *logger.Logger) *FileSolver {
	return &FileSolver{Dir: dir, Timeout: timeout, PollInterval: 2 * time.Second, logger: log}
}

func (s *FileSolver) Solve(ctx context.Context, image []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", unavailable("manual", err)
	}

	id := NewManualID()
	imagePath := filepath.Join(s.Dir, id+".png")
	answerPath := filepath.Join(s.Dir, id+".txt")
	if err := os.WriteFile(imagePath, image, 0644); err != nil {
		return "", unavailable("manual", err)
	}
	defer os.Remove(imagePath)
	s.logger.Info("CAPTCHA saved for manual solving", "image", imagePath, "answer_file", answerPath)

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	for {
		if data, err := os.ReadFile(answerPath); err == nil {
			if answer := strings.TrimSpace(string(data)); answer != "" {
				os.Remove(answerPath)
				return answer, nil
			}
		}
		if err := sleep(ctx, s.PollInterval); err != nil {
			return "", unavailable("manual", fmt.Errorf("no answer for %s: %w", id, err))
		}
	}
}
