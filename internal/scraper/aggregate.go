package scraper

import "fmt"

// MergeRecord builds a CaseRecord from a result row, overlaid with detail
// page data when detail is non-nil. Detail values win where both are set.
func MergeRecord(bench string, row ResultRow, detail *DetailRecord) CaseRecord {
	rec := CaseRecord{
		Bench:           bench,
		SerialNumber:    row.SerialNumber,
		FilingNumber:    row.FilingNumber,
		CaseNumber:      row.CaseNumber,
		PartiesText:     row.PartiesText,
		LastListingDate: row.LastListingDate,
		StatusText:      row.StatusText,
		DetailLink:      row.DetailLink,
		SourceStrategy:  row.SourceStrategy,
	}
	if detail == nil {
		return rec
	}

	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&rec.FilingNumber, detail.FilingNumber)
	overlay(&rec.CaseNumber, detail.CaseNumber)
	overlay(&rec.PartiesText, detail.PartiesText)
	overlay(&rec.StatusText, detail.StatusText)
	overlay(&rec.FilingDate, detail.FilingDate)
	overlay(&rec.RegistrationDate, detail.RegistrationDate)
	overlay(&rec.NextListingDate, detail.NextListingDate)
	overlay(&rec.Advocates, detail.Advocates)

	rec.History = detail.History
	rec.DocumentLinks = CollectDocumentLinks(detail.History)
	rec.HasDetailedInfo = true
	return rec
}

// Aggregate merges rows with their detail records, matched by row index.
func Aggregate(bench string, rows []ResultRow, details []DetailRecord) []CaseRecord {
	byRow := make(map[int]*DetailRecord, len(details))
	for i := range details {
		byRow[details[i].RowIndex] = &details[i]
	}

	records := make([]CaseRecord, 0, len(rows))
	for i, row := range rows {
		records = append(records, MergeRecord(bench, row, byRow[i]))
	}
	return records
}

// BuildOutcome turns the verification status and merged records into the
// query's outcome.
func BuildOutcome(status VerificationOutcome, records []CaseRecord, diag Diagnostics) ExtractionOutcome {
	out := ExtractionOutcome{Records: []CaseRecord{}, Diagnostics: diag}

	switch status.Status {
	case StatusNoCaseFound:
		out.Success = false
		out.ErrorKind = ErrorKindNoCaseFound
		out.Message = status.Message
		return out
	case StatusNoResults:
		if len(records) == 0 {
			out.Success = true
			out.ErrorKind = ErrorKindNoResults
			out.Message = status.Message
			return out
		}
	}

	out.Success = true
	if len(records) == 0 {
		out.ErrorKind = ErrorKindExtractionEmpty
		out.Diagnostics.ExtractionEmpty = true
		out.Message = fmt.Sprintf("page classified %s but nothing was extracted", status.Status)
		return out
	}
	out.Records = records
	out.Message = fmt.Sprintf("%d records", len(records))
	return out
}
