package scraper

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectPrefersLinkListOverPrimary(t *testing.T) {
	history := []HistoryEntry{{
		DocumentLinks:   []DocumentLink{{URL: "a.pdf"}, {URL: "b.pdf"}},
		PrimaryDocument: &DocumentLink{URL: "a.pdf"},
	}}

	links := CollectDocumentLinks(history)

	assert.Equal(t, []DocumentLink{{URL: "a.pdf"}, {URL: "b.pdf"}}, links)
}

func TestCollectUsesPrimaryWhenListEmpty(t *testing.T) {
	history := []HistoryEntry{
		{PrimaryDocument: &DocumentLink{URL: "old.pdf", DisplayText: "Order"}},
		{DocumentLinks: []DocumentLink{{URL: "new.pdf"}, {URL: "old.pdf"}}},
		{},
	}

	links := CollectDocumentLinks(history)

	assert.Equal(t, []DocumentLink{{URL: "old.pdf", DisplayText: "Order"}, {URL: "new.pdf"}}, links)
}

func TestCollectHasNoDuplicates(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		var history []HistoryEntry
		total := 0
		entries := r.Intn(6)
		for e := 0; e < entries; e++ {
			var entry HistoryEntry
			n := r.Intn(4)
			for l := 0; l < n; l++ {
				entry.DocumentLinks = append(entry.DocumentLinks, DocumentLink{URL: fmt.Sprintf("doc%d.pdf", r.Intn(5))})
			}
			if r.Intn(2) == 0 {
				entry.PrimaryDocument = &DocumentLink{URL: fmt.Sprintf("doc%d.pdf", r.Intn(5))}
			}
			total += len(entry.DocumentLinks)
			if len(entry.DocumentLinks) == 0 && entry.PrimaryDocument != nil {
				total++
			}
			history = append(history, entry)
		}

		links := CollectDocumentLinks(history)

		seen := make(map[string]bool)
		for _, l := range links {
			assert.False(t, seen[l.URL], "duplicate %s", l.URL)
			seen[l.URL] = true
		}
		assert.LessOrEqual(t, len(links), total)
	}
}
