package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CAPTCHA_MAX_ATTEMPTS", "")
	t.Setenv("QUERY_DELAY", "")
	t.Setenv("CAPTCHA_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.CaptchaMaxAttempts)
	assert.Equal(t, 3, cfg.FormMinFilled)
	assert.Equal(t, 2*time.Second, cfg.QueryDelay)
	assert.Equal(t, 9*time.Minute, cfg.RunDeadline)
	assert.Equal(t, 60*time.Second, cfg.NavigationTimeout)
	assert.Empty(t, cfg.CaptchaDir)
	require.NotNil(t, cfg.Profile)
	assert.Equal(t, "nclt", cfg.Profile.Name)
}

func TestLoadInvalidValues(t *testing.T) {
	t.Setenv("CAPTCHA_MAX_ATTEMPTS", "many")
	_, err := Load()
	assert.ErrorContains(t, err, "CAPTCHA_MAX_ATTEMPTS")

	t.Setenv("CAPTCHA_MAX_ATTEMPTS", "0")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("CAPTCHA_MAX_ATTEMPTS", "3")
	t.Setenv("NAVIGATION_TIMEOUT", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "NAVIGATION_TIMEOUT")
}

func TestLoadProfileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	yml := `
name: district
search_url: https://example.test/search
fields:
  bench:
    selector: "#court"
    kind: select
  case_number:
    selector: "#number"
    kind: input
benches:
  north: North District
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "district", p.Name)
	assert.Equal(t, "#court", p.Fields.Bench.Selector)
	assert.Equal(t, "#number", p.Fields.CaseNumber.Selector)
	// untouched fields keep their defaults
	assert.Equal(t, "#case_year", p.Fields.Year.Selector)
	assert.Equal(t, "North District", p.Benches["north"])
}

func TestLoadProfileValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields:\n  year:\n    selector: '#y'\n    kind: radio\n"), 0o644))

	_, err := LoadProfile(path)
	assert.ErrorContains(t, err, "fields.year.kind")

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
