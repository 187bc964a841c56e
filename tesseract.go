//go:build ocr

package ocrmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"
)

// TesseractEngine drives the system Tesseract installation via gosseract.
// A fresh client is created per attempt; gosseract clients are cheap and a
// shared one is not safe across segmentation mode changes.
type TesseractEngine struct {
	lang          string
	dpi           int
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs the Tesseract-backed engine. Requires the
// tesseract binary and the trained data for lang to be installed; build with
// -tags ocr to enable.
func NewTesseractEngine(lang string, dpi int) (*TesseractEngine, error) {
	if lang == "" {
		lang = "eng"
	}
	return &TesseractEngine{
		lang:          lang,
		dpi:           dpi,
		clientFactory: gosseract.NewClient,
	}, nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Attempt performs OCR on an encoded image with the given page segmentation
// mode, returning the text, word-level average confidence and line layout.
func (e *TesseractEngine) Attempt(ctx context.Context, imageData []byte, mode int) (Attempt, error) {
	select {
	case <-ctx.Done():
		return Attempt{}, ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(imageData); err != nil {
		return Attempt{}, errors.Wrap(err, "failed to set image")
	}
	if err := c.SetLanguage(e.lang); err != nil {
		return Attempt{}, errors.Wrapf(err, "failed to set language %q", e.lang)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(mode)); err != nil {
		return Attempt{}, errors.Wrapf(err, "failed to set page segmentation mode %d", mode)
	}
	if e.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(e.dpi)); err != nil {
			return Attempt{}, errors.Wrap(err, "failed to set dpi")
		}
	}

	text, err := c.Text()
	if err != nil {
		return Attempt{}, errors.Wrapf(err, "recognition failed for mode %d", mode)
	}
	text = strings.TrimSpace(text)

	avgConf := wordConfidence(c)
	lines := lineBoxes(c)

	return Attempt{
		Text:    text,
		AvgConf: avgConf,
		Chars:   countChars(text),
		Lines:   lines,
	}, nil
}

// wordConfidence averages Tesseract's word-level confidences (0-100).
func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}

// lineBoxes collects line-level text and bounding boxes for the structure
// segmenter.
func lineBoxes(c *gosseract.Client) []OcrLine {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil
	}
	lines := make([]OcrLine, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, OcrLine{
			Text:   text,
			Left:   b.Box.Min.X,
			Top:    b.Box.Min.Y,
			Width:  b.Box.Dx(),
			Height: b.Box.Dy(),
			Conf:   b.Confidence,
		})
	}
	return lines
}
