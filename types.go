package ocrmd

import "image"

// SplitKind classifies how many logical pages one raw scan contains.
type SplitKind int

const (
	SplitSingle SplitKind = iota
	SplitDouble
	SplitQuad
)

// Tag returns the deterministic naming label for the split classification.
// The tag is assigned once per scan and never recomputed afterwards.
func (k SplitKind) Tag() SplitTag {
	switch k {
	case SplitDouble:
		return Tag1x2
	case SplitQuad:
		return Tag2x2
	default:
		return Tag1x1
	}
}

// PageCount returns the number of logical pages the classification implies.
func (k SplitKind) PageCount() int {
	switch k {
	case SplitDouble:
		return 2
	case SplitQuad:
		return 4
	default:
		return 1
	}
}

// SplitTag is the naming label derived from a SplitKind.
type SplitTag string

const (
	Tag1x1 SplitTag = "1x1"
	Tag1x2 SplitTag = "1x2"
	Tag2x2 SplitTag = "2x2"
)

// RawPage is one scanned image extracted from the source document.
type RawPage struct {
	Index int // 1-based scan index
	Image image.Image
	DPI   int
}

// SubPage is one normalized logical page produced by splitting a RawPage.
type SubPage struct {
	Index int // 1-based logical page number, sequential across the book
	Tag   SplitTag
	Image image.Image
	// JPEG holds the encoded bytes persisted to split_pages/. The content
	// hash used for cache keys is computed over these bytes, so they must
	// be encoded exactly once per sub-page.
	JPEG []byte
}

// SplitResult is the outcome of analyzing one RawPage.
type SplitResult struct {
	Kind  SplitKind
	Pages []SubPage
}

// OcrLine is one recognized text line with its layout box. Coordinates are
// pixels with the origin in the upper-left corner of the page image.
type OcrLine struct {
	Text   string  `json:"text"`
	Left   int     `json:"left"`
	Top    int     `json:"top"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Conf   float64 `json:"conf"`
}

// OcrResult is the winning output of one or more OCR attempts over a page.
// Immutable once produced; it may come from the cache instead of the engine.
type OcrResult struct {
	Text    string
	AvgConf float64 // 0-100
	Chars   int
	Mode    int // page segmentation mode that produced this result
	Lines   []OcrLine
}

// BlockType tags a segmented unit of page text.
type BlockType int

const (
	BlockBody BlockType = iota
	BlockHeading
	// Reserved for future layout analysis; never produced by the base pipeline.
	BlockFigure
	BlockCaption
)

// Block is a segmented unit of text in reading order.
type Block struct {
	Type BlockType
	Text string
	// HeadingConf is the layout-derived confidence that this block is a
	// heading, in [0, 1]. Zero for body blocks.
	HeadingConf float64
}

// PageContext is the per-logical-page aggregate handed to the renderer.
// It is assembled once per rendering pass and not mutated afterwards; the
// images pass builds fresh contexts reusing the cached OcrResult and tag.
type PageContext struct {
	Index  int
	Tag    SplitTag
	Image  image.Image // present only when the image will be embedded
	JPEG   []byte      // encoded bytes of Image, when already available
	Result *OcrResult  // nil when OCR was skipped
	Blocks []Block
	Embed  bool
}

// RenderProfile governs one rendering pass.
type RenderProfile struct {
	Preprocess  string
	Mode        int
	EmbedImages string // none | all | auto
	CropPct     float64
	LowConf     float64
	MinChars    int
}

// TextProfile returns the profile for the text-only pass.
func TextProfile(cfg Config) RenderProfile {
	return RenderProfile{
		Preprocess:  cfg.Preprocess,
		Mode:        cfg.TessPSM,
		EmbedImages: "none",
		CropPct:     cfg.CropPct,
		LowConf:     cfg.LowConf,
		MinChars:    cfg.MinChars,
	}
}

// ImagesProfile returns the profile for the images-only pass. Gating is
// disabled by thresholds no OCR result can reach: the pass must embed every
// page image regardless of text quality, and never binarize.
func ImagesProfile(cfg Config) RenderProfile {
	return RenderProfile{
		Preprocess:  PreprocessGray,
		Mode:        cfg.TessPSM,
		EmbedImages: "all",
		CropPct:     0,
		LowConf:     101,
		MinChars:    1 << 30,
	}
}
