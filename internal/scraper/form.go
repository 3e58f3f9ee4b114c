package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
)

// Logical search field names.
const (
	FieldBench      = "bench"
	FieldCaseType   = "case_type"
	FieldCaseNumber = "case_number"
	FieldYear       = "year"
)

// FieldResult records what happened to one logical field.
type FieldResult struct {
	Field     string `json:"field"`
	Requested string `json:"requested,omitempty"`
	Applied   string `json:"applied,omitempty"`
	Filled    bool   `json:"filled"`
	// Absent means the query carried no value for the field.
	Absent bool   `json:"absent,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// FillReport is never an error: the caller decides whether enough fields
// were filled to continue.
type FillReport struct {
	Fields []FieldResult `json:"fields"`
}

// Filled counts fields that took a value.
func (r FillReport) Filled() int {
	n := 0
	for _, f := range r.Fields {
		if f.Filled {
			n++
		}
	}
	return n
}

// Satisfied reports whether the bench was filled and at least minFilled
// fields are filled or had nothing to fill.
func (r FillReport) Satisfied(minFilled int) bool {
	n := 0
	for _, f := range r.Fields {
		if f.Field == FieldBench && !f.Filled {
			return false
		}
		if f.Filled || f.Absent {
			n++
		}
	}
	return n >= minFilled
}

// FormFiller maps a SearchQuery onto the live search form.
type FormFiller struct {
	profile *config.SiteProfile
	logger  *logger.Logger
}

func NewFormFiller(profile *config.SiteProfile, log *logger.Logger) *FormFiller {
	return &FormFiller{profile: profile, logger: log}
}

type fieldPlan struct {
	name  string
	spec  config.FieldSpec
	value string
}

func (f *FormFiller) plan(q SearchQuery) []fieldPlan {
	return []fieldPlan{
		{FieldBench, f.profile.Fields.Bench, MapValue(f.profile.Benches, q.Bench)},
		{FieldCaseType, f.profile.Fields.CaseType, MapValue(f.profile.CaseTypes, q.CaseType)},
		{FieldCaseNumber, f.profile.Fields.CaseNumber, strings.TrimSpace(q.CaseNumber)},
		{FieldYear, f.profile.Fields.Year, strings.TrimSpace(q.Year)},
	}
}

// Fill fills every field it can and reports per-field results.
func (f *FormFiller) Fill(ctx context.Context, page Page, q SearchQuery) FillReport {
	var report FillReport

	for _, p := range f.plan(q) {
		res := FieldResult{Field: p.name, Requested: p.value}
		switch {
		case p.value == "":
			res.Absent = true
			res.Reason = "no value"
		case p.spec.Kind == config.KindSelect:
			f.fillSelect(ctx, page, p, &res)
		default:
			if err := page.Input(ctx, p.spec.Selector, p.value); err != nil {
				res.Reason = err.Error()
			} else {
				res.Filled = true
				res.Applied = p.value
			}
		}

		if !res.Filled && !res.Absent {
			f.logger.Warn("Form field not filled", "field", p.name, "value", p.value, "reason", res.Reason)
		} else {
			f.logger.Debug("Form field handled", "field", p.name, "applied", res.Applied, "absent", res.Absent)
		}
		report.Fields = append(report.Fields, res)
	}

	return report
}

func (f *FormFiller) fillSelect(ctx context.Context, page Page, p fieldPlan, res *FieldResult) {
	opts, err := page.Options(ctx, p.spec.Selector)
	if err != nil {
		res.Reason = err.Error()
		return
	}

	opt, ok := MatchOption(opts, p.value)
	if !ok && p.name == FieldYear {
		// sites drop historical years from the dropdown
		opt, ok = firstNonEmpty(opts)
		if ok {
			f.logger.Warn("Year not offered, using first available", "requested", p.value, "using", opt.Text)
		}
	}
	if !ok {
		res.Reason = fmt.Sprintf("no option matches %q among %d", p.value, len(opts))
		return
	}

	if err := page.Select(ctx, p.spec.Selector, opt.Value); err != nil {
		res.Reason = err.Error()
		return
	}
	res.Filled = true
	res.Applied = opt.Value
}

// MapValue translates caller vocabulary through a profile mapping, falling
// back to the value itself.
func MapValue(mapping map[string]string, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if v, ok := mapping[strings.ToLower(value)]; ok {
		return v
	}
	return value
}

// MatchOption picks the option best matching want: exact value or label
// first, then case-insensitive containment in either direction. Placeholder
// options with an empty value never match.
func MatchOption(opts []SelectOption, want string) (SelectOption, bool) {
	want = normalizeLabel(want)
	if want == "" {
		return SelectOption{}, false
	}

	for _, o := range opts {
		if strings.TrimSpace(o.Value) == "" {
			continue
		}
		if normalizeLabel(o.Value) == want || normalizeLabel(o.Text) == want {
			return o, true
		}
	}

	for _, o := range opts {
		if strings.TrimSpace(o.Value) == "" {
			continue
		}
		text := normalizeLabel(o.Text)
		if text == "" {
			continue
		}
		if strings.Contains(text, want) || strings.Contains(want, text) {
			return o, true
		}
	}

	return SelectOption{}, false
}

func firstNonEmpty(opts []SelectOption) (SelectOption, bool) {
	for _, o := range opts {
		if strings.TrimSpace(o.Value) != "" {
			return o, true
		}
	}
	return SelectOption{}, false
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
