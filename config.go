package ocrmd

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Preprocess profiles. Gray is the default and works well on printed books;
// Binary adds a histogram-median threshold for pages with clean backgrounds.
const (
	PreprocessGray   = "gray"
	PreprocessBinary = "binary"
)

// PageSpec is a page selector: a single 1-based number or an inclusive
// "start-end" range. It accepts both YAML integers and strings.
type PageSpec string

func (p *PageSpec) UnmarshalYAML(value *yaml.Node) error {
	*p = PageSpec(value.Value)
	return nil
}

// SplitRule forces a split type for the selected pages, overriding automatic
// gutter detection.
type SplitRule struct {
	Page PageSpec `yaml:"page"`
	Type string   `yaml:"type"` // single | double | quadruple
}

// Config is the YAML configuration surface for one book.
type Config struct {
	BookTitle   string      `yaml:"book_title"`
	PDFFile     string      `yaml:"pdf_file"`
	Lang        string      `yaml:"lang"`
	DPI         int         `yaml:"dpi"`
	Preprocess  string      `yaml:"preprocess"`
	TessPSM     int         `yaml:"tess_psm"`
	EmbedImages string      `yaml:"embed_images"` // auto | all | none
	CropPct     float64     `yaml:"crop_pct"`     // reserved; always applied as 0
	LowConf     float64     `yaml:"low_conf"`
	MinChars    int         `yaml:"min_chars"`
	SplitRules  []SplitRule `yaml:"split_strategy"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Lang:        "eng",
		DPI:         400,
		Preprocess:  PreprocessGray,
		TessPSM:     6,
		EmbedImages: "auto",
		CropPct:     0,
		LowConf:     50,
		MinChars:    100,
	}
}

// LoadConfig reads a YAML configuration file, filling omitted fields with
// defaults and validating the result.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config file")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config YAML")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c Config) Validate() error {
	if c.PDFFile == "" {
		return errors.New("pdf_file is required")
	}
	switch c.Preprocess {
	case PreprocessGray, PreprocessBinary:
	default:
		return errors.Errorf("unknown preprocess profile: %q", c.Preprocess)
	}
	switch c.EmbedImages {
	case "auto", "all", "none":
	default:
		return errors.Errorf("invalid embed_images: %q", c.EmbedImages)
	}
	if c.TessPSM < 0 || c.TessPSM > 13 {
		return errors.Errorf("tess_psm must be between 0 and 13, got %d", c.TessPSM)
	}
	if c.CropPct < 0 || c.CropPct >= 0.5 {
		return errors.Errorf("crop_pct must be in [0, 0.5), got %v", c.CropPct)
	}
	for _, rule := range c.SplitRules {
		if _, err := parsePageRange(string(rule.Page)); err != nil {
			return errors.Wrapf(err, "invalid split rule page %q", rule.Page)
		}
		switch rule.Type {
		case "single", "double", "quadruple":
		default:
			return errors.Errorf("invalid split type: %q", rule.Type)
		}
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug returns the directory/file-safe name for the book, derived from the
// title or, failing that, the PDF file name. Runs of anything that is not a
// lowercase letter or digit collapse into a single underscore.
func (c Config) Slug() string {
	name := c.BookTitle
	if name == "" {
		base := c.PDFFile
		if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
			base = base[i+1:]
		}
		name = strings.TrimSuffix(base, ".pdf")
	}
	slug := nonSlug.ReplaceAllString(strings.ToLower(name), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "document"
	}
	return slug
}

// SplitOverrides expands the configured split rules into a map from 1-based
// scan number to forced SplitKind. Later rules win on overlap.
func (c Config) SplitOverrides() map[int]SplitKind {
	overrides := make(map[int]SplitKind)
	for _, rule := range c.SplitRules {
		pages, err := parsePageRange(string(rule.Page))
		if err != nil {
			continue // rejected by Validate already
		}
		kind := SplitSingle
		switch rule.Type {
		case "double":
			kind = SplitDouble
		case "quadruple":
			kind = SplitQuad
		}
		for _, p := range pages {
			overrides[p] = kind
		}
	}
	return overrides
}

var pageRange = regexp.MustCompile(`^(\d+)-(\d+)$`)

// parsePageRange expands "7" or "2-300" into 1-based page numbers.
func parsePageRange(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if m := pageRange.FindStringSubmatch(spec); m != nil {
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		if start < 1 || end < start {
			return nil, errors.Errorf("invalid page range %q", spec)
		}
		pages := make([]int, 0, end-start+1)
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
		return pages, nil
	}
	p, err := strconv.Atoi(spec)
	if err != nil || p < 1 {
		return nil, errors.Errorf("invalid page number %q", spec)
	}
	return []int{p}, nil
}
