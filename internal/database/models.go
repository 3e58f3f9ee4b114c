package database

import (
	"time"

	"gorm.io/gorm"
)

// QueryLog records one pipeline run, successful or not.
type QueryLog struct {
	gorm.Model
	Bench         string    `json:"bench"`
	CaseType      string    `json:"case_type"`
	CaseNumber    string    `json:"case_number"`
	Year          string    `json:"year"`
	Success       bool      `json:"success"`
	ErrorKind     string    `json:"error_kind"`
	ErrorMessage  string    `json:"error_message"`
	RecordCount   int       `json:"record_count"`
	ElapsedMillis int64     `json:"elapsed_ms"`
	Diagnostics   string    `json:"diagnostics" gorm:"type:text"`
	QueryTime     time.Time `json:"query_time"`
}

// CaseInfo is a persisted case record. Identity is (bench, filing number, case number).
type CaseInfo struct {
	gorm.Model
	QueryLogID       uint           `json:"query_log_id"`
	Bench            string         `json:"bench" gorm:"index:idx_case_identity"`
	FilingNumber     string         `json:"filing_number" gorm:"index:idx_case_identity"`
	CaseNumber       string         `json:"case_number" gorm:"index:idx_case_identity"`
	SerialNumber     string         `json:"serial_number"`
	Parties          string         `json:"parties"`
	Status           string         `json:"status"`
	Advocates        string         `json:"advocates"`
	DetailLink       string         `json:"detail_link"`
	LastListingDate  string         `json:"last_listing_date"`
	FilingDate       *time.Time     `json:"filing_date"`
	RegistrationDate *time.Time     `json:"registration_date"`
	NextListingDate  *time.Time     `json:"next_listing_date"`
	HasDetailedInfo  bool           `json:"has_detailed_info"`
	SourceStrategy   string         `json:"source_strategy"`
	History          []HistoryEntry `json:"history" gorm:"foreignKey:CaseInfoID"`
	Documents        []Document     `json:"documents" gorm:"foreignKey:CaseInfoID"`
}

type HistoryEntry struct {
	gorm.Model
	CaseInfoID    uint       `json:"case_info_id" gorm:"index"`
	Position      int        `json:"position"`
	SerialNo      string     `json:"serial_no"`
	ListingDate   *time.Time `json:"listing_date"`
	ListingText   string     `json:"listing_text"`
	UploadText    string     `json:"upload_text"`
	OrderLabel    string     `json:"order_label"`
	DocumentCount int        `json:"document_count"`
}

// Document is an order or judgment link and its download state.
type Document struct {
	gorm.Model
	CaseInfoID  uint       `json:"case_info_id" gorm:"index"`
	URL         string     `json:"url"`
	DisplayText string     `json:"display_text"`
	Fetched     bool       `json:"fetched"`
	Attempts    int        `json:"attempts"`
	LocalPath   string     `json:"local_path"`
	PageCount   int        `json:"page_count"`
	LastError   string     `json:"last_error"`
	FetchedAt   *time.Time `json:"fetched_at"`
}

func (QueryLog) TableName() string {
	return "query_logs"
}

func (CaseInfo) TableName() string {
	return "case_infos"
}

func (HistoryEntry) TableName() string {
	return "history_entries"
}

func (Document) TableName() string {
	return "documents"
}
