package scraper

// CollectDocumentLinks flattens history document links into one ordered list
// without duplicate URLs. An entry's link list is preferred over its primary
// document so the same link is never counted twice.
func CollectDocumentLinks(history []HistoryEntry) []DocumentLink {
	var out []DocumentLink
	seen := make(map[string]bool)

	add := func(l DocumentLink) {
		if l.URL == "" || seen[l.URL] {
			return
		}
		seen[l.URL] = true
		out = append(out, l)
	}

	for _, e := range history {
		if len(e.DocumentLinks) > 0 {
			for _, l := range e.DocumentLinks {
				add(l)
			}
			continue
		}
		if e.PrimaryDocument != nil {
			add(*e.PrimaryDocument)
		}
	}
	return out
}
