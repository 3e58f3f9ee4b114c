package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/scraper"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists pipeline outcomes and tracks document downloads.
type Store struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewStore(db *gorm.DB, log *logger.Logger) *Store {
	return &Store{db: db, logger: log}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

// SaveOutcome writes a query log and upserts every record of the outcome.
func (s *Store) SaveOutcome(ctx context.Context, q scraper.SearchQuery, out scraper.ExtractionOutcome) (*QueryLog, error) {
	diag, err := json.Marshal(out.Diagnostics)
	if err != nil {
		return nil, fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	queryLog := &QueryLog{
		Bench:         q.Bench,
		CaseType:      q.CaseType,
		CaseNumber:    q.CaseNumber,
		Year:          q.Year,
		Success:       out.Success,
		ErrorKind:     string(out.ErrorKind),
		ErrorMessage:  out.Message,
		RecordCount:   len(out.Records),
		ElapsedMillis: out.Diagnostics.ElapsedMillis,
		Diagnostics:   string(diag),
		QueryTime:     time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(queryLog).Error; err != nil {
			return fmt.Errorf("failed to save query log: %w", err)
		}
		for i := range out.Records {
			if err := s.upsertCase(tx, queryLog.ID, out.Records[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Outcome persisted", "query", q.String(), "records", len(out.Records), "query_log_id", queryLog.ID)
	return queryLog, nil
}

// Save discards the query log; it lets the store act as a batch sink.
func (s *Store) Save(ctx context.Context, q scraper.SearchQuery, out scraper.ExtractionOutcome) error {
	_, err := s.SaveOutcome(ctx, q, out)
	return err
}

func (s *Store) upsertCase(tx *gorm.DB, queryLogID uint, rec scraper.CaseRecord) error {
	info := caseFromRecord(rec)
	info.QueryLogID = queryLogID

	var existing CaseInfo
	found := false
	if rec.FilingNumber != "" || rec.CaseNumber != "" {
		err := tx.Where("bench = ? AND filing_number = ? AND case_number = ?",
			rec.Bench, rec.FilingNumber, rec.CaseNumber).First(&existing).Error
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to look up case: %w", err)
		}
	}

	if found {
		info.ID = existing.ID
		info.CreatedAt = existing.CreatedAt
		// A run that did not reach the detail page keeps what an earlier one found.
		if !rec.HasDetailedInfo && existing.HasDetailedInfo {
			info.FilingDate = existing.FilingDate
			info.RegistrationDate = existing.RegistrationDate
			info.NextListingDate = existing.NextListingDate
			info.Advocates = existing.Advocates
			info.HasDetailedInfo = true
		}
	}

	if err := tx.Omit(clause.Associations).Save(&info).Error; err != nil {
		return fmt.Errorf("failed to save case: %w", err)
	}

	if found && !rec.HasDetailedInfo && len(rec.History) == 0 {
		return nil
	}
	if err := replaceHistory(tx, info.ID, rec.History); err != nil {
		return err
	}
	return replaceDocuments(tx, info.ID, rec.DocumentLinks)
}

func replaceHistory(tx *gorm.DB, caseID uint, history []scraper.HistoryEntry) error {
	if err := tx.Unscoped().Where("case_info_id = ?", caseID).Delete(&HistoryEntry{}).Error; err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	if len(history) == 0 {
		return nil
	}

	entries := make([]HistoryEntry, 0, len(history))
	for i, h := range history {
		entries = append(entries, HistoryEntry{
			CaseInfoID:    caseID,
			Position:      i,
			SerialNo:      h.SerialNo,
			ListingDate:   optionalDate(h.DateOfListing),
			ListingText:   h.DateOfListing,
			UploadText:    h.DateOfUpload,
			OrderLabel:    h.OrderLabel,
			DocumentCount: len(h.DocumentLinks),
		})
	}
	if err := tx.Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// replaceDocuments keeps rows whose URL is still linked, so download state survives re-runs.
func replaceDocuments(tx *gorm.DB, caseID uint, links []scraper.DocumentLink) error {
	var current []Document
	if err := tx.Where("case_info_id = ?", caseID).Find(&current).Error; err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}

	wanted := make(map[string]scraper.DocumentLink, len(links))
	for _, l := range links {
		wanted[l.URL] = l
	}

	kept := make(map[string]bool, len(current))
	for _, d := range current {
		if _, ok := wanted[d.URL]; ok && !kept[d.URL] {
			kept[d.URL] = true
			continue
		}
		if err := tx.Unscoped().Delete(&Document{}, d.ID).Error; err != nil {
			return fmt.Errorf("failed to remove document: %w", err)
		}
	}

	for _, l := range links {
		if kept[l.URL] {
			continue
		}
		kept[l.URL] = true
		doc := Document{CaseInfoID: caseID, URL: l.URL, DisplayText: l.DisplayText}
		if err := tx.Create(&doc).Error; err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
	}
	return nil
}

func caseFromRecord(rec scraper.CaseRecord) CaseInfo {
	return CaseInfo{
		Bench:            rec.Bench,
		FilingNumber:     rec.FilingNumber,
		CaseNumber:       rec.CaseNumber,
		SerialNumber:     rec.SerialNumber,
		Parties:          rec.PartiesText,
		Status:           rec.StatusText,
		Advocates:        rec.Advocates,
		DetailLink:       rec.DetailLink,
		LastListingDate:  rec.LastListingDate,
		FilingDate:       optionalDate(rec.FilingDate),
		RegistrationDate: optionalDate(rec.RegistrationDate),
		NextListingDate:  optionalDate(rec.NextListingDate),
		HasDetailedInfo:  rec.HasDetailedInfo,
		SourceStrategy:   string(rec.SourceStrategy),
	}
}

func optionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := scraper.ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

// ListCases returns one page of persisted cases, newest first, with history and documents.
func (s *Store) ListCases(ctx context.Context, page, limit int) ([]CaseInfo, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&CaseInfo{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	var cases []CaseInfo
	err := s.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Documents").
		Order("updated_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&cases).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, total, nil
}

// PendingDocuments returns documents not yet fetched with fewer than maxAttempts tries.
func (s *Store) PendingDocuments(ctx context.Context, limit, maxAttempts int) ([]Document, error) {
	var docs []Document
	q := s.db.WithContext(ctx).
		Where("fetched = ? AND attempts < ? AND url != ?", false, maxAttempts, "").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pending documents: %w", err)
	}
	return docs, nil
}

// DocumentResult is what one download attempt produced.
type DocumentResult struct {
	LocalPath string
	PageCount int
	Err       error
}

// MarkDocument records a download attempt. A nil Err marks the document fetched.
func (s *Store) MarkDocument(ctx context.Context, id uint, res DocumentResult) error {
	updates := map[string]interface{}{
		"attempts": gorm.Expr("attempts + 1"),
	}
	if res.Err != nil {
		updates["last_error"] = res.Err.Error()
	} else {
		now := time.Now()
		updates["fetched"] = true
		updates["local_path"] = res.LocalPath
		updates["page_count"] = res.PageCount
		updates["last_error"] = ""
		updates["fetched_at"] = &now
	}

	if err := s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark document %d: %w", id, err)
	}
	return nil
}

// RecentQueries returns the latest query logs.
func (s *Store) RecentQueries(ctx context.Context, limit int) ([]QueryLog, error) {
	var logs []QueryLog
	if err := s.db.WithContext(ctx).Order("query_time DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	return logs, nil
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) bool {
	var count int64
	return s.db.WithContext(ctx).Model(&QueryLog{}).Count(&count).Error == nil
}
