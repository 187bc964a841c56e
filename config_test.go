package ocrmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
pdf_file: book.pdf
`))
	require.NoError(t, err)
	assert.Equal(t, "eng", cfg.Lang)
	assert.Equal(t, 400, cfg.DPI)
	assert.Equal(t, PreprocessGray, cfg.Preprocess)
	assert.Equal(t, 6, cfg.TessPSM)
	assert.Equal(t, "auto", cfg.EmbedImages)
	assert.Equal(t, 50.0, cfg.LowConf)
	assert.Equal(t, 100, cfg.MinChars)
}

func TestLoadConfig_FullFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
book_title: A History of Things
pdf_file: scans/history.pdf
lang: ron
dpi: 300
preprocess: binary
tess_psm: 4
embed_images: all
low_conf: 65
min_chars: 180
split_strategy:
  - page: 1
    type: single
  - page: 2-5
    type: double
`))
	require.NoError(t, err)
	assert.Equal(t, "A History of Things", cfg.BookTitle)
	assert.Equal(t, "ron", cfg.Lang)
	assert.Equal(t, PreprocessBinary, cfg.Preprocess)
	assert.Equal(t, 4, cfg.TessPSM)
	assert.Equal(t, 65.0, cfg.LowConf)
	require.Len(t, cfg.SplitRules, 2)
}

func TestLoadConfig_PageAcceptsIntAndString(t *testing.T) {
	// YAML authors write bare integers for single pages and quoted strings
	// for ranges; both must parse.
	cfg, err := LoadConfig(writeConfig(t, `
pdf_file: book.pdf
split_strategy:
  - page: 7
    type: double
  - page: "10-12"
    type: quadruple
`))
	require.NoError(t, err)

	overrides := cfg.SplitOverrides()
	assert.Equal(t, SplitDouble, overrides[7])
	assert.Equal(t, SplitQuad, overrides[10])
	assert.Equal(t, SplitQuad, overrides[12])
	_, ok := overrides[8]
	assert.False(t, ok)
}

func TestConfigValidate(t *testing.T) {
	base := DefaultConfig()
	base.PDFFile = "book.pdf"
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing pdf_file", func(c *Config) { c.PDFFile = "" }},
		{"unknown preprocess", func(c *Config) { c.Preprocess = "sepia" }},
		{"invalid embed_images", func(c *Config) { c.EmbedImages = "maybe" }},
		{"psm out of range", func(c *Config) { c.TessPSM = 14 }},
		{"negative psm", func(c *Config) { c.TessPSM = -1 }},
		{"crop too large", func(c *Config) { c.CropPct = 0.5 }},
		{"bad split page", func(c *Config) { c.SplitRules = []SplitRule{{Page: "abc", Type: "double"}} }},
		{"reversed split range", func(c *Config) { c.SplitRules = []SplitRule{{Page: "9-3", Type: "double"}} }},
		{"bad split type", func(c *Config) { c.SplitRules = []SplitRule{{Page: "1", Type: "triple"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigSlug(t *testing.T) {
	tests := []struct {
		title string
		pdf   string
		want  string
	}{
		{"My Book Title!", "x.pdf", "my_book_title"},
		{"  Spaced   Out  ", "x.pdf", "spaced_out"},
		{"", "scans/Old Atlas.pdf", "old_atlas"},
		{"???", "x.pdf", "document"},
		{"Ține-mă minte", "x.pdf", "ine_m_minte"},
	}
	for _, tt := range tests {
		cfg := Config{BookTitle: tt.title, PDFFile: tt.pdf}
		assert.Equal(t, tt.want, cfg.Slug(), "title=%q pdf=%q", tt.title, tt.pdf)
	}
}

func TestSplitOverrides_LaterRulesWin(t *testing.T) {
	cfg := Config{SplitRules: []SplitRule{
		{Page: "1-10", Type: "double"},
		{Page: "5", Type: "single"},
	}}
	overrides := cfg.SplitOverrides()
	assert.Equal(t, SplitDouble, overrides[4])
	assert.Equal(t, SplitSingle, overrides[5])
	assert.Equal(t, SplitDouble, overrides[6])
}

func TestParsePageRange(t *testing.T) {
	pages, err := parsePageRange("7")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, pages)

	pages, err = parsePageRange("2-5")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4, 5}, pages)

	for _, bad := range []string{"", "abc", "0", "-3", "5-2", "1-2-3"} {
		_, err := parsePageRange(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
