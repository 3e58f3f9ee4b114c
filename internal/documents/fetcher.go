// Package documents downloads the order and judgment PDFs linked from
// persisted case records.
package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/database"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const maxDocumentSize = 50 << 20

// Store is the part of the database the fetcher needs.
type Store interface {
	PendingDocuments(ctx context.Context, limit, maxAttempts int) ([]database.Document, error)
	MarkDocument(ctx context.Context, id uint, res database.DocumentResult) error
}

// Report counts one FetchPending pass.
type Report struct {
	Attempted int `json:"attempted"`
	Fetched   int `json:"fetched"`
	Failed    int `json:"failed"`
}

type Fetcher struct {
	store       Store
	dir         string
	userAgent   string
	client      *http.Client
	Delay       time.Duration
	MaxAttempts int
	logger      *logger.Logger
	now         func() time.Time
}

func NewFetcher(store Store, dir, userAgent string, log *logger.Logger) *Fetcher {
	return &Fetcher{
		store:     store,
		dir:       dir,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		Delay:       2 * time.Second,
		MaxAttempts: 3,
		logger:      log,
		now:         time.Now,
	}
}

// FetchPending downloads up to limit pending documents. A failed download is
// recorded on the document and does not stop the pass.
func (f *Fetcher) FetchPending(ctx context.Context, limit int) (Report, error) {
	var report Report

	docs, err := f.store.PendingDocuments(ctx, limit, f.MaxAttempts)
	if err != nil {
		return report, err
	}
	f.logger.Info("Found documents to download", "count", len(docs))

	for i, doc := range docs {
		if i > 0 && f.Delay > 0 {
			t := time.NewTimer(f.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return report, ctx.Err()
			case <-t.C:
			}
		}

		report.Attempted++
		res := f.download(ctx, doc)
		if res.Err != nil {
			report.Failed++
			f.logger.Warn("Failed to download document", "document_id", doc.ID, "url", doc.URL, "error", res.Err)
		} else {
			report.Fetched++
			f.logger.Info("Document downloaded", "document_id", doc.ID, "path", res.LocalPath, "pages", res.PageCount)
		}

		if err := f.store.MarkDocument(ctx, doc.ID, res); err != nil {
			return report, err
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	return report, nil
}

func (f *Fetcher) download(ctx context.Context, doc database.Document) database.DocumentResult {
	data, err := f.get(ctx, doc.URL)
	if err != nil {
		return database.DocumentResult{Err: err}
	}

	pages, err := pageCount(data)
	if err != nil {
		return database.DocumentResult{Err: err}
	}

	now := f.now()
	dirPath := filepath.Join(f.dir, fmt.Sprintf("%d", now.Year()), fmt.Sprintf("%02d", now.Month()))
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return database.DocumentResult{Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	fullPath := filepath.Join(dirPath, fileName(doc))
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		os.Remove(fullPath)
		return database.DocumentResult{Err: fmt.Errorf("failed to save file: %w", err)}
	}

	return database.DocumentResult{LocalPath: fullPath, PageCount: pages}
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentSize)
	}
	return data, nil
}

// pageCount validates data as a PDF and returns its page count.
func pageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \r\n\t"), []byte("%PDF")) {
		return 0, fmt.Errorf("not a PDF document")
	}

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu validate: %w", err)
	}
	return ctx.PageCount, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func fileName(doc database.Document) string {
	base := ""
	if u, err := url.Parse(doc.URL); err == nil {
		base = path.Base(u.Path)
	}
	base = strings.TrimSuffix(unsafeName.ReplaceAllString(base, "_"), ".pdf")
	if base == "" || base == "." || base == "_" {
		base = "document"
	}
	return fmt.Sprintf("doc_%d_%s.pdf", doc.ID, base)
}
