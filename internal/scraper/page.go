package scraper

import "context"

// SelectOption is one <option> of a dropdown.
type SelectOption struct {
	Value string
	Text  string
}

// Page is the single browser tab a query runs in. Every call blocks until
// the browser answers or ctx expires.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Back(ctx context.Context) error
	URL() string
	HTML(ctx context.Context) (string, error)

	Exists(ctx context.Context, selector string) bool
	Text(ctx context.Context, selector string) (string, error)
	Options(ctx context.Context, selector string) ([]SelectOption, error)
	Select(ctx context.Context, selector, value string) error
	Input(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	// SubmitForm clicks the first element matching buttonSelector inside the
	// formIndex-th form, or calls the form's submit() when there is none.
	SubmitForm(ctx context.Context, formIndex int, buttonSelector string) error

	Screenshot(ctx context.Context, selector string) ([]byte, error)
	// ScreenshotAround captures the element's bounding box grown by padding pixels.
	ScreenshotAround(ctx context.Context, selector string, padding float64) ([]byte, error)

	Close() error
}
