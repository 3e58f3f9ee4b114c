package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var documentWords = []string{"view", "pdf", "download", "order", "judg"}

// history column roles
const (
	histSerial = iota
	histListing
	histUpload
	histOrder
)

// HistoryParser finds listing history tables on a detail page.
type HistoryParser struct{}

// IsHistoryHeader reports whether a header row introduces a listing history:
// a date column next to listing or upload words, or order/judgment words.
// Date-valued cells are not header vocabulary.
func IsHistoryHeader(cells []string) bool {
	labels := make([]string, 0, len(cells))
	for _, c := range cells {
		if !dateShape.MatchString(c) {
			labels = append(labels, c)
		}
	}
	h := strings.ToLower(strings.Join(labels, " "))
	if strings.Contains(h, "date") && containsAny(h, "listing", "upload", "hearing") {
		return true
	}
	return containsAny(h, "order", "judgment", "judgement")
}

// headerShaped reports whether a row can be a history header: th cells, or a
// leading row of at least three labels.
func headerShaped(tr *goquery.Selection, i int, cells []string) bool {
	if tr.ChildrenFiltered("th").Length() > 0 {
		return true
	}
	if i != 0 {
		return false
	}
	n := 0
	for _, c := range cells {
		if c != "" {
			n++
		}
	}
	return n >= 3
}

// Parse returns the entries of every history table in page order.
func (HistoryParser) Parse(doc *goquery.Document, base *url.URL) []HistoryEntry {
	var entries []HistoryEntry

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var columns map[int]int

		tableRows(table).Each(func(i int, tr *goquery.Selection) {
			cells := rowCells(tr)
			if columns == nil {
				if headerShaped(tr, i, cells) && IsHistoryHeader(cells) {
					columns = historyColumns(cells)
				}
				return
			}
			if isHeaderRow(tr, cells) || !anyNonEmpty(cells) {
				return
			}
			entries = append(entries, historyEntry(tr, cells, columns, base))
		})
	})
	return entries
}

// historyColumns maps header labels to history roles, leftmost column first.
func historyColumns(cells []string) map[int]int {
	cols := make(map[int]int)
	taken := make(map[int]bool)
	for i, c := range cells {
		l := strings.ToLower(c)
		role := -1
		switch {
		case containsAny(l, "s.no", "s. no", "sr.", "serial"):
			role = histSerial
		case strings.Contains(l, "upload"):
			role = histUpload
		case containsAny(l, "listing", "hearing") || l == "date":
			role = histListing
		case containsAny(l, "order", "judg", "remark", "purpose", "view"):
			role = histOrder
		}
		if role >= 0 && !taken[role] {
			cols[i] = role
			taken[role] = true
		}
	}
	return cols
}

func historyEntry(tr *goquery.Selection, cells []string, columns map[int]int, base *url.URL) HistoryEntry {
	var e HistoryEntry
	for i, role := range columns {
		if i >= len(cells) {
			continue
		}
		switch role {
		case histSerial:
			e.SerialNo = cells[i]
		case histListing:
			e.DateOfListing = cells[i]
		case histUpload:
			e.DateOfUpload = cells[i]
		case histOrder:
			e.OrderLabel = cells[i]
		}
	}
	if e.DateOfListing == "" {
		for _, c := range cells {
			if dateShape.MatchString(c) {
				e.DateOfListing = c
				break
			}
		}
	}

	seen := make(map[string]bool)
	tr.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u := resolveURL(base, href)
		if u == "" {
			u = onclickURL(a, base)
		}
		if u == "" || seen[u] {
			return
		}
		text := cleanText(a.Text())
		if !containsAny(strings.ToLower(text+" "+href), documentWords...) {
			return
		}
		seen[u] = true
		e.DocumentLinks = append(e.DocumentLinks, DocumentLink{URL: u, DisplayText: text})
	})
	if len(e.DocumentLinks) > 0 {
		first := e.DocumentLinks[0]
		e.PrimaryDocument = &first
	}
	return e
}

func anyNonEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return true
		}
	}
	return false
}
