package scraper

import (
	"fmt"
	"strings"
)

// SearchQuery is one case lookup against one bench.
type SearchQuery struct {
	Bench      string `json:"bench" yaml:"bench" binding:"required"`
	CaseType   string `json:"case_type,omitempty" yaml:"case_type"`
	CaseNumber string `json:"case_number,omitempty" yaml:"case_number"`
	Year       string `json:"year,omitempty" yaml:"year"`
}

// Validate requires a bench plus at least one of case number, case type or year.
func (q SearchQuery) Validate() error {
	if strings.TrimSpace(q.Bench) == "" {
		return fmt.Errorf("%w: bench is required", ErrInvalidQuery)
	}
	if strings.TrimSpace(q.CaseNumber) == "" && strings.TrimSpace(q.CaseType) == "" && strings.TrimSpace(q.Year) == "" {
		return fmt.Errorf("%w: one of case number, case type or year is required", ErrInvalidQuery)
	}
	return nil
}

func (q SearchQuery) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", q.Bench, q.CaseType, q.CaseNumber, q.Year)
}

// CaptchaChallenge is a captured captcha image. It is never persisted.
type CaptchaChallenge struct {
	ImageBytes []byte
	Text       string
	Attempt    int
}

// Strategy names the extraction strategy that produced a row.
type Strategy string

const (
	StrategyTable    Strategy = "table"
	StrategyBlock    Strategy = "block"
	StrategyTextScan Strategy = "text-scan"
)

// ResultRow is one candidate case row from the results page.
type ResultRow struct {
	SerialNumber    string   `json:"serial_number,omitempty"`
	FilingNumber    string   `json:"filing_number,omitempty"`
	CaseNumber      string   `json:"case_number,omitempty"`
	PartiesText     string   `json:"parties,omitempty"`
	LastListingDate string   `json:"last_listing_date,omitempty"`
	StatusText      string   `json:"status,omitempty"`
	DetailLink      string   `json:"detail_link,omitempty"`
	RawCells        []string `json:"raw_cells"`
	SourceStrategy  Strategy `json:"source_strategy"`
}

// DocumentLink is an order or judgment document. Identity is URL.
type DocumentLink struct {
	URL         string `json:"url"`
	DisplayText string `json:"display_text,omitempty"`
}

// HistoryEntry is one listing of a case, in page order.
type HistoryEntry struct {
	SerialNo      string         `json:"serial_no,omitempty"`
	DateOfListing string         `json:"date_of_listing,omitempty"`
	DateOfUpload  string         `json:"date_of_upload,omitempty"`
	OrderLabel    string         `json:"order_label,omitempty"`
	DocumentLinks []DocumentLink `json:"document_links,omitempty"`
	// PrimaryDocument is the first document link, kept for single-link consumers.
	PrimaryDocument *DocumentLink `json:"primary_document,omitempty"`
}

// DetailRecord is what a case detail page yielded.
type DetailRecord struct {
	RowIndex         int               `json:"-"`
	URL              string            `json:"url"`
	FilingNumber     string            `json:"filing_number,omitempty"`
	CaseNumber       string            `json:"case_number,omitempty"`
	FilingDate       string            `json:"filing_date,omitempty"`
	PartiesText      string            `json:"parties,omitempty"`
	StatusText       string            `json:"status,omitempty"`
	Advocates        string            `json:"advocates,omitempty"`
	RegistrationDate string            `json:"registration_date,omitempty"`
	NextListingDate  string            `json:"next_listing_date,omitempty"`
	History          []HistoryEntry    `json:"history,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`
}

// Empty reports whether the detail page produced nothing usable.
func (d DetailRecord) Empty() bool {
	return len(d.Fields) == 0 && len(d.History) == 0
}

// CaseRecord is the final per-case result handed to persistence.
type CaseRecord struct {
	Bench            string         `json:"bench"`
	SerialNumber     string         `json:"serial_number,omitempty"`
	FilingNumber     string         `json:"filing_number,omitempty"`
	CaseNumber       string         `json:"case_number,omitempty"`
	PartiesText      string         `json:"parties,omitempty"`
	LastListingDate  string         `json:"last_listing_date,omitempty"`
	StatusText       string         `json:"status,omitempty"`
	DetailLink       string         `json:"detail_link,omitempty"`
	FilingDate       string         `json:"filing_date,omitempty"`
	RegistrationDate string         `json:"registration_date,omitempty"`
	NextListingDate  string         `json:"next_listing_date,omitempty"`
	Advocates        string         `json:"advocates,omitempty"`
	History          []HistoryEntry `json:"history,omitempty"`
	DocumentLinks    []DocumentLink `json:"document_links,omitempty"`
	HasDetailedInfo  bool           `json:"has_detailed_info"`
	SourceStrategy   Strategy       `json:"source_strategy"`
}

// ErrorKind classifies a non-exceptional unsuccessful or empty outcome.
type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindNoCaseFound     ErrorKind = "NO_CASE_FOUND"
	ErrorKindNoResults       ErrorKind = "NO_RESULTS"
	ErrorKindExtractionEmpty ErrorKind = "EXTRACTION_EMPTY"
	ErrorKindInvalidQuery    ErrorKind = "INVALID_QUERY"
	ErrorKindFormFill        ErrorKind = "FORM_FILL_FAILED"
	ErrorKindNavigation      ErrorKind = "NAVIGATION_ERROR"
	ErrorKindDeadline        ErrorKind = "DEADLINE_EXCEEDED"
)

// Diagnostics are counters describing how a query went.
type Diagnostics struct {
	RowsScanned      int                `json:"rows_scanned"`
	RowsSkipped      int                `json:"rows_skipped"`
	Strategy         Strategy           `json:"strategy,omitempty"`
	FieldsFilled     int                `json:"fields_filled"`
	FormFillPartial  bool               `json:"form_fill_partial"`
	CaptchaAttempts  int                `json:"captcha_attempts"`
	CaptchaSolved    bool               `json:"captcha_solved"`
	CaptchaExhausted bool               `json:"captcha_exhausted"`
	SubmissionMethod string             `json:"submission_method,omitempty"`
	ReachedResults   bool               `json:"reached_results"`
	Verification     VerificationStatus `json:"verification,omitempty"`
	DetailWalks      int                `json:"detail_walks"`
	DetailFailures   int                `json:"detail_failures"`
	DetailSkipped    int                `json:"detail_skipped"`
	BudgetExhausted  bool               `json:"budget_exhausted"`
	ExtractionEmpty  bool               `json:"extraction_empty"`
	ElapsedMillis    int64              `json:"elapsed_ms"`
}

// ExtractionOutcome is the pipeline's result for one query.
type ExtractionOutcome struct {
	Success     bool         `json:"success"`
	ErrorKind   ErrorKind    `json:"error_kind,omitempty"`
	Message     string       `json:"message,omitempty"`
	Records     []CaseRecord `json:"records"`
	Diagnostics Diagnostics  `json:"diagnostics"`
}
