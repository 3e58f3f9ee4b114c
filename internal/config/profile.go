package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SiteProfile describes one target case-status portal: where its search form
// lives, how its fields are addressed and which labels it uses.
type SiteProfile struct {
	Name       string `yaml:"name"`
	SearchURL  string `yaml:"search_url"`
	ResultsURL string `yaml:"results_url"`
	// ResultsURLHint is a substring present in the URL of a results page.
	ResultsURLHint string     `yaml:"results_url_hint"`
	LinkParams     LinkParams `yaml:"link_params"`
	Fields         FormFields `yaml:"fields"`
	SubmitSelector string     `yaml:"submit_selector"`

	// Benches and CaseTypes map caller vocabulary to the site's option labels.
	Benches   map[string]string `yaml:"benches"`
	CaseTypes map[string]string `yaml:"case_types"`

	Captcha          CaptchaSelectors `yaml:"captcha"`
	NegativePatterns []string         `yaml:"negative_patterns"`
	DomainKeywords   []string         `yaml:"domain_keywords"`
	FollowStatuses   []string         `yaml:"follow_statuses"`
	ListType         string           `yaml:"list_type"`
}

// FieldSpec addresses a single form control.
type FieldSpec struct {
	Selector string `yaml:"selector"`
	// Kind is "select" or "input".
	Kind string `yaml:"kind"`
}

// FormFields lists the four logical search fields.
type FormFields struct {
	Bench      FieldSpec `yaml:"bench"`
	CaseType   FieldSpec `yaml:"case_type"`
	CaseNumber FieldSpec `yaml:"case_number"`
	Year       FieldSpec `yaml:"year"`
}

// LinkParams names the query parameters of the site's shareable results link.
type LinkParams struct {
	Bench      string `yaml:"bench"`
	CaseType   string `yaml:"case_type"`
	CaseNumber string `yaml:"case_number"`
	Year       string `yaml:"year"`
}

type CaptchaSelectors struct {
	Input         string   `yaml:"input"`
	Image         string   `yaml:"image"`
	Text          string   `yaml:"text"`
	ErrorPatterns []string `yaml:"error_patterns"`
}

const (
	KindSelect = "select"
	KindInput  = "input"
)

// DefaultProfile returns the built-in profile for the tribunal e-filing portal.
func DefaultProfile() *SiteProfile {
	return &SiteProfile{
		Name:           "nclt",
		SearchURL:      "https://efiling.nclt.gov.in/casehistorybeforelogin.drt",
		ResultsURL:     "https://efiling.nclt.gov.in/caseHistoryoptional1.drt",
		ResultsURLHint: "caseHistoryoptional",
		LinkParams: LinkParams{
			Bench:      "bench",
			CaseType:   "case_type",
			CaseNumber: "cp_no",
			Year:       "case_year",
		},
		Fields: FormFields{
			Bench:      FieldSpec{Selector: "#bench", Kind: KindSelect},
			CaseType:   FieldSpec{Selector: "#case_type", Kind: KindSelect},
			CaseNumber: FieldSpec{Selector: "#cp_no", Kind: KindInput},
			Year:       FieldSpec{Selector: "#case_year", Kind: KindSelect},
		},
		SubmitSelector: "button[type='submit'], input[type='submit'], button#search",
		Benches: map[string]string{
			"delhi":      "New Delhi",
			"mumbai":     "Mumbai",
			"chennai":    "Chennai",
			"kolkata":    "Kolkata",
			"ahmedabad":  "Ahmedabad",
			"hyderabad":  "Hyderabad",
			"bengaluru":  "Bengaluru",
			"chandigarh": "Chandigarh",
			"guwahati":   "Guwahati",
			"allahabad":  "Allahabad",
			"jaipur":     "Jaipur",
			"kochi":      "Kochi",
			"cuttack":    "Cuttack",
			"amaravati":  "Amaravati",
			"indore":     "Indore",
		},
		CaseTypes: map[string]string{
			"cp":  "Company Petition",
			"ia":  "Interlocutory Application",
			"ca":  "Company Application",
			"tp":  "Transfer Petition",
			"cpi": "Company Petition IB",
		},
		Captcha: CaptchaSelectors{
			Input: "input[name='captcha'], input[id*='captcha'], input[name*='txtInput']",
			Image: "img#captcha_image, img[id*='captcha'], img[src*='captcha'], canvas#captcha",
			Text:  "#captcha-code, #mainCaptcha, span[id*='captcha']",
			ErrorPatterns: []string{
				"invalid captcha",
				"wrong captcha",
				"captcha mismatch",
				"incorrect captcha",
				"enter valid captcha",
			},
		},
		NegativePatterns: []string{
			"no records found",
			"no record found",
			"no data found",
			"case not found",
			"data prior to",
		},
		DomainKeywords: []string{"filing", "petitioner", "respondent", "pending", "disposed", "case no", "listing"},
		FollowStatuses: []string{"pending", "listed", "open", "registered", "under"},
		ListType:       "case-status",
	}
}

// LoadProfile reads a YAML profile over the defaults. An empty path returns
// DefaultProfile.
func LoadProfile(path string) (*SiteProfile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site profile: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse site profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("site profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the profile has what the pipeline needs to run.
func (p *SiteProfile) Validate() error {
	if p.SearchURL == "" {
		return fmt.Errorf("search_url is required")
	}
	for name, f := range map[string]FieldSpec{
		"bench":       p.Fields.Bench,
		"case_type":   p.Fields.CaseType,
		"case_number": p.Fields.CaseNumber,
		"year":        p.Fields.Year,
	} {
		if f.Selector == "" {
			return fmt.Errorf("fields.%s.selector is required", name)
		}
		if f.Kind != KindSelect && f.Kind != KindInput {
			return fmt.Errorf("fields.%s.kind must be %q or %q", name, KindSelect, KindInput)
		}
	}
	return nil
}
