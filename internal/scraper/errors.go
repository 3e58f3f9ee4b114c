package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrSolverUnavailable is returned by captcha solvers that could not produce an answer.
	ErrSolverUnavailable = errors.New("captcha solver unavailable")
	ErrNoSearchForm      = errors.New("search form not found")
	ErrInvalidQuery      = errors.New("invalid search query")
	ErrBrowserClosed     = errors.New("browser closed")
	ErrElementNotFound   = errors.New("element not found")
)

// NavigationError reports a page that could not be reached.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}
