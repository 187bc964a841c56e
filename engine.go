package ocrmd

import (
	"context"
	"strings"
)

// Attempt is the raw outcome of a single engine invocation with one page
// segmentation mode.
type Attempt struct {
	Text    string
	AvgConf float64 // 0-100
	Chars   int
	Lines   []OcrLine
}

// Engine is the OCR capability contract: one image and one page segmentation
// mode in, recognized text with confidence out. Implementations are treated
// as opaque and may be swapped; tests substitute a scripted fake.
//
// Invocations must be serialized by the caller. Tesseract in particular is
// not safe to drive concurrently through a single installation.
type Engine interface {
	Name() string
	Attempt(ctx context.Context, imageData []byte, mode int) (Attempt, error)
}

// countChars counts the characters OCR produced, ignoring line breaks and
// surrounding whitespace, matching what the gating thresholds are tuned for.
func countChars(text string) int {
	return len([]rune(strings.TrimSpace(strings.ReplaceAll(text, "\n", ""))))
}
