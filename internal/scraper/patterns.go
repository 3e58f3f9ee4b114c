package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	longNumericID   = regexp.MustCompile(`\b\d{6,}\b`)
	caseNumberShape = regexp.MustCompile(`\b\d{1,6}/\d{4}\b`)
	dateShape       = regexp.MustCompile(`\b\d{2}[-/.]\d{2}[-/.]\d{4}\b`)
	partySeparator  = regexp.MustCompile(`(?i)\S\s+(vs\.?|v/s|versus)\s+\S`)
	filingNumber    = regexp.MustCompile(`\b\d{2,}/\d{4}/\d+\b`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// IsCaseShaped reports whether text looks like case data: a long numeric
// id, an NN/YYYY number, a DD-MM-YYYY date or an "X VS Y" title.
func IsCaseShaped(text string) bool {
	return longNumericID.MatchString(text) ||
		caseNumberShape.MatchString(text) ||
		dateShape.MatchString(text) ||
		partySeparator.MatchString(text)
}

// AcceptRowCells is the shape and substance check shared by the structured
// strategies: at least three cells, one of them case-shaped.
func AcceptRowCells(cells []string) bool {
	if len(cells) < 3 {
		return false
	}
	for _, c := range cells {
		if IsCaseShaped(c) {
			return true
		}
	}
	return false
}

var headerWords = []string{"s.no", "s. no", "sr.no", "sr. no", "serial", "filing"}

// isHeaderCells reports whether a row's first cell reads like a column header.
func isHeaderCells(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	first := strings.ToLower(cells[0])
	for _, w := range headerWords {
		if strings.Contains(first, w) {
			return true
		}
	}
	return false
}

// isHeaderRow reports whether a table row is header-shaped: built from th
// cells or starting with header vocabulary.
func isHeaderRow(row *goquery.Selection, cells []string) bool {
	if row.Find("th").Length() > 0 && row.Find("td").Length() == 0 {
		return true
	}
	return isHeaderCells(cells)
}

// cleanText collapses whitespace.
func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// rowCells returns the cleaned text of a row's direct th/td cells.
func rowCells(row *goquery.Selection) []string {
	var cells []string
	row.ChildrenFiltered("td, th").Each(func(_ int, c *goquery.Selection) {
		cells = append(cells, cleanText(c.Text()))
	})
	return cells
}

// tableRows returns the rows that belong to table itself, not to nested tables.
func tableRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
}

// parseHTML builds a goquery document from a page snapshot.
func parseHTML(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// visibleText returns the lowercased body text without scripts and styles.
func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	if body.Length() == 0 {
		body = doc.Selection.Clone()
	}
	body.Find("script, style, noscript").Remove()
	return strings.ToLower(cleanText(body.Text()))
}

// resolveURL resolves href against base. Script pseudo-links are dropped.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() || base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

func parseBase(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil || raw == "" {
		return nil
	}
	return u
}

func containsAny(lowerText string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(lowerText, w) {
			return true
		}
	}
	return false
}
