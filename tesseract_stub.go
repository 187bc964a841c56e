//go:build !ocr

package ocrmd

import (
	"context"

	"github.com/pkg/errors"
)

// ErrOCRNotEnabled is returned when the Tesseract engine is requested but
// OCR support was not compiled in. Rebuild with -tags ocr (and a system
// Tesseract installation) to enable it.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; install tesseract-ocr and rebuild with -tags ocr")

// TesseractEngine is the stub used when the ocr build tag is not set.
type TesseractEngine struct{}

// NewTesseractEngine returns ErrOCRNotEnabled in stub builds.
func NewTesseractEngine(lang string, dpi int) (*TesseractEngine, error) {
	return nil, ErrOCRNotEnabled
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Attempt returns ErrOCRNotEnabled in stub builds.
func (e *TesseractEngine) Attempt(ctx context.Context, imageData []byte, mode int) (Attempt, error) {
	return Attempt{}, ErrOCRNotEnabled
}
