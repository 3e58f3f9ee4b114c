package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/JustJay7/court-case-pipeline/internal/metrics"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/PuerkitoBio/goquery"
)

// ExtractionStrategy pulls candidate rows out of a results page snapshot.
type ExtractionStrategy interface {
	Name() Strategy
	Extract(doc *goquery.Document, base *url.URL, stats *ExtractionStats) []ResultRow
}

// ExtractionStats counts the rows a strategy looked at.
type ExtractionStats struct {
	Scanned  int      `json:"scanned"`
	Skipped  int      `json:"skipped"`
	Strategy Strategy `json:"strategy,omitempty"`
}

// TableExtractor runs its strategies in order and keeps the first non-empty
// result.
type TableExtractor struct {
	strategies []ExtractionStrategy
	logger     *logger.Logger
}

func NewTableExtractor(log *logger.Logger) *TableExtractor {
	return &TableExtractor{
		strategies: []ExtractionStrategy{tableStrategy{}, blockStrategy{}, textScanStrategy{}},
		logger:     log,
	}
}

// Extract never fails. An empty slice means nothing extractable was found.
func (e *TableExtractor) Extract(ctx context.Context, page Page) ([]ResultRow, ExtractionStats) {
	var stats ExtractionStats

	html, err := page.HTML(ctx)
	if err != nil {
		e.logger.Warn("Could not snapshot results page", "error", err)
		return nil, stats
	}
	doc, err := parseHTML(html)
	if err != nil {
		e.logger.Warn("Could not parse results page", "error", err)
		return nil, stats
	}
	return e.ExtractDocument(doc, parseBase(page.URL()))
}

// ExtractDocument runs the strategy chain over a parsed snapshot.
func (e *TableExtractor) ExtractDocument(doc *goquery.Document, base *url.URL) ([]ResultRow, ExtractionStats) {
	var stats ExtractionStats
	for _, s := range e.strategies {
		rows := s.Extract(doc, base, &stats)
		if len(rows) == 0 {
			e.logger.Debug("Extraction strategy found nothing", "strategy", s.Name())
			continue
		}
		stats.Strategy = s.Name()
		metrics.RowsExtracted.WithLabelValues(string(s.Name())).Add(float64(len(rows)))
		e.logger.Info("Rows extracted", "strategy", s.Name(), "rows", len(rows), "skipped", stats.Skipped)
		return rows, stats
	}
	return nil, stats
}

var statusWords = []string{"pending", "disposed", "status"}

// column roles read from a header row
const (
	colSerial = iota
	colFiling
	colCase
	colParties
	colListing
	colStatus
)

type tableStrategy struct{}

func (tableStrategy) Name() Strategy { return StrategyTable }

func (tableStrategy) Extract(doc *goquery.Document, base *url.URL, stats *ExtractionStats) []ResultRow {
	var rows []ResultRow
	seen := make(map[string]bool)

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var columns map[int]int

		tableRows(table).Each(func(_ int, tr *goquery.Selection) {
			cells := rowCells(tr)
			if len(cells) == 0 {
				return
			}
			stats.Scanned++

			if isHeaderRow(tr, cells) {
				columns = headerColumns(cells)
				stats.Skipped++
				return
			}
			// layout rows wrapping another table
			if tr.Find("table").Length() > 0 || !AcceptRowCells(cells) {
				stats.Skipped++
				return
			}

			key := strings.Join(cells, "\x1f")
			if seen[key] {
				stats.Skipped++
				return
			}
			seen[key] = true

			row := rowFromCells(cells, columns)
			row.DetailLink = detailLink(tr, len(cells), base)
			row.SourceStrategy = StrategyTable
			rows = append(rows, row)
		})
	})
	return rows
}

// headerColumns maps header labels to column roles. When two columns carry
// the same role the leftmost one keeps it.
func headerColumns(cells []string) map[int]int {
	cols := make(map[int]int)
	taken := make(map[int]bool)
	for i, c := range cells {
		l := strings.ToLower(c)
		role := -1
		switch {
		case containsAny(l, "s.no", "s. no", "sr.", "serial"):
			role = colSerial
		case strings.Contains(l, "date") && strings.Contains(l, "filing"):
			// filing date is a detail page field
		case strings.Contains(l, "filing") || strings.Contains(l, "diary"):
			role = colFiling
		case containsAny(l, "case no", "case number", "cp no", "registration no"):
			role = colCase
		case containsAny(l, "part", "petitioner", "title", " vs"):
			role = colParties
		case strings.Contains(l, "listing") || strings.Contains(l, "hearing") || strings.Contains(l, "date"):
			role = colListing
		case strings.Contains(l, "status") || strings.Contains(l, "stage"):
			role = colStatus
		}
		if role >= 0 && !taken[role] {
			cols[i] = role
			taken[role] = true
		}
	}
	return cols
}

// rowFromCells fills row fields from the header map when there is one and
// from cell shapes for anything still missing.
func rowFromCells(cells []string, columns map[int]int) ResultRow {
	row := ResultRow{RawCells: append([]string(nil), cells...)}

	for i, role := range columns {
		if i >= len(cells) {
			continue
		}
		v := cells[i]
		switch role {
		case colSerial:
			row.SerialNumber = v
		case colFiling:
			row.FilingNumber = v
		case colCase:
			row.CaseNumber = v
		case colParties:
			row.PartiesText = v
		case colListing:
			row.LastListingDate = v
		case colStatus:
			row.StatusText = v
		}
	}

	for i, c := range cells {
		if _, mapped := columns[i]; mapped || c == "" {
			continue
		}
		l := strings.ToLower(c)
		switch {
		case i == 0 && isSerial(c) && row.SerialNumber == "":
			row.SerialNumber = c
		case row.FilingNumber == "" && (filingNumber.MatchString(c) || longNumericID.MatchString(c)):
			row.FilingNumber = c
		case row.PartiesText == "" && partySeparator.MatchString(c):
			row.PartiesText = c
		case row.LastListingDate == "" && dateShape.MatchString(c):
			row.LastListingDate = c
		case row.CaseNumber == "" && caseNumberShape.MatchString(c):
			row.CaseNumber = c
		case row.StatusText == "" && containsAny(l, "pending", "disposed", "listed", "closed", "dismissed", "withdrawn"):
			row.StatusText = c
		}
	}
	return row
}

func isSerial(s string) bool {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" || len(s) > 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// detailLink returns the first link whose text is status vocabulary or that
// sits in one of the last two cells.
func detailLink(container *goquery.Selection, ncells int, base *url.URL) string {
	cellsSel := container.ChildrenFiltered("td, th")
	link := ""
	container.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		u := resolveURL(base, href)
		if u == "" {
			u = onclickURL(a, base)
		}
		if u == "" {
			return true
		}
		text := strings.ToLower(cleanText(a.Text()))
		if containsAny(text, statusWords...) {
			link = u
			return false
		}
		if ncells > 0 {
			idx := cellsSel.IndexOfSelection(a.Closest("td, th"))
			if idx >= ncells-2 {
				link = u
				return false
			}
		}
		return true
	})
	return link
}

// onclickURL recovers a target from handlers like onclick="window.open('x')".
func onclickURL(a *goquery.Selection, base *url.URL) string {
	js, ok := a.Attr("onclick")
	if !ok {
		return ""
	}
	start := strings.IndexAny(js, `'"`)
	if start < 0 {
		return ""
	}
	quote := js[start]
	end := strings.IndexByte(js[start+1:], quote)
	if end < 0 {
		return ""
	}
	return resolveURL(base, js[start+1:start+1+end])
}

const blockSelector = "div, li, section, article"

const landmarkSelector = "nav, header, footer, [role='navigation'], [role='banner'], [role='contentinfo'], .menu, .navbar, #menu, .nav"

type blockStrategy struct{}

func (blockStrategy) Name() Strategy { return StrategyBlock }

func (blockStrategy) Extract(doc *goquery.Document, base *url.URL, stats *ExtractionStats) []ResultRow {
	var rows []ResultRow
	seen := make(map[string]bool)

	doc.Find(blockSelector).Each(func(_ int, block *goquery.Selection) {
		if block.Closest(landmarkSelector).Length() > 0 || block.Closest("table").Length() > 0 {
			return
		}
		cells := blockCells(block)
		if len(cells) == 0 {
			return
		}
		stats.Scanned++
		if !AcceptRowCells(cells) || isHeaderCells(cells) {
			stats.Skipped++
			return
		}
		// only the innermost accepted block counts
		inner := block.Find(blockSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return AcceptRowCells(blockCells(s))
		})
		if inner.Length() > 0 {
			return
		}

		key := strings.Join(cells, "\x1f")
		if seen[key] {
			stats.Skipped++
			return
		}
		seen[key] = true

		row := rowFromCells(cells, nil)
		row.DetailLink = blockLink(block, base)
		row.SourceStrategy = StrategyBlock
		rows = append(rows, row)
	})
	return rows
}

// blockCells treats the non-empty children of a block as its cells.
func blockCells(block *goquery.Selection) []string {
	var cells []string
	block.Children().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "script" || goquery.NodeName(c) == "style" {
			return
		}
		if t := cleanText(c.Text()); t != "" {
			cells = append(cells, t)
		}
	})
	return cells
}

func blockLink(block *goquery.Selection, base *url.URL) string {
	children := block.Children()
	n := children.Length()
	link := ""
	block.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		u := resolveURL(base, href)
		if u == "" {
			return true
		}
		if containsAny(strings.ToLower(cleanText(a.Text())), statusWords...) {
			link = u
			return false
		}
		child := a
		if up := a.ParentsUntilSelection(block); up.Length() > 0 {
			child = up.Last()
		}
		idx := children.IndexOfSelection(child)
		if idx >= n-2 {
			link = u
			return false
		}
		return true
	})
	return link
}

type textScanStrategy struct{}

func (textScanStrategy) Name() Strategy { return StrategyTextScan }

func (textScanStrategy) Extract(doc *goquery.Document, _ *url.URL, stats *ExtractionStats) []ResultRow {
	body := doc.Find("body").Clone()
	if body.Length() == 0 {
		body = doc.Selection.Clone()
	}
	body.Find("script, style, noscript").Remove()

	var parts []string
	spacedText(body, &parts)

	var rows []ResultRow
	seen := make(map[string]bool)
	for _, m := range filingNumber.FindAllString(strings.Join(parts, " "), -1) {
		stats.Scanned++
		if seen[m] {
			stats.Skipped++
			continue
		}
		seen[m] = true
		rows = append(rows, ResultRow{
			FilingNumber:   m,
			RawCells:       []string{m},
			SourceStrategy: StrategyTextScan,
		})
	}
	return rows
}

// spacedText collects text nodes in document order so adjacent cells do not
// run together.
func spacedText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				*parts = append(*parts, t)
			}
			return
		}
		spacedText(c, parts)
	})
}
