package ocrmd

import (
	"math"
	"strings"
)

// Heading detection thresholds. A line is a heading candidate when its
// rendered height reaches the 85th percentile of line heights on the page
// and it sits either horizontally centered or in the upper third.
const (
	headingHeightPercentile = 85
	centeredTolerance       = 0.08 // fraction of page width
	upperThirdFrac          = 1.0 / 3.0
)

// Segment groups OCR text lines into typed blocks using layout heuristics.
// Block order follows the top-to-bottom reading order of the input lines;
// content is never reordered. Consecutive body lines merge into one body
// block, headings always stand alone. Figure and caption blocks are reserved
// for future layout analysis.
func Segment(result *OcrResult, pageWidth, pageHeight int) []Block {
	if result == nil {
		return nil
	}
	if len(result.Lines) == 0 {
		// No layout metadata (e.g. an engine that only returns plain text):
		// everything becomes a single body block.
		text := CleanText(result.Text)
		if text == "" {
			return nil
		}
		return []Block{{Type: BlockBody, Text: text}}
	}

	heights := make([]float64, 0, len(result.Lines))
	for _, line := range result.Lines {
		heights = append(heights, float64(line.Height))
	}
	threshold := percentile(heights, headingHeightPercentile)

	var blocks []Block
	var body []string
	flushBody := func() {
		if len(body) == 0 {
			return
		}
		text := CleanText(strings.Join(body, "\n"))
		if text != "" {
			blocks = append(blocks, Block{Type: BlockBody, Text: text})
		}
		body = body[:0]
	}

	for _, line := range result.Lines {
		conf := headingConfidence(line, threshold, pageWidth, pageHeight)
		if conf > 0 {
			flushBody()
			blocks = append(blocks, Block{
				Type:        BlockHeading,
				Text:        CleanText(line.Text),
				HeadingConf: conf,
			})
			continue
		}
		body = append(body, line.Text)
	}
	flushBody()
	return blocks
}

// headingConfidence scores how heading-like a line is, in [0, 1]. Zero means
// body text. The height criterion is mandatory; position evidence (centered,
// upper third) sets the score.
func headingConfidence(line OcrLine, heightThreshold float64, pageWidth, pageHeight int) float64 {
	if heightThreshold <= 0 || float64(line.Height) < heightThreshold {
		return 0
	}

	centered := false
	if pageWidth > 0 {
		lineCenter := float64(line.Left) + float64(line.Width)/2
		pageCenter := float64(pageWidth) / 2
		centered = math.Abs(lineCenter-pageCenter) <= centeredTolerance*float64(pageWidth)
	}
	upperThird := pageHeight > 0 && float64(line.Top) < upperThirdFrac*float64(pageHeight)

	switch {
	case centered && upperThird:
		return 1.0
	case centered:
		return 0.8
	case upperThird:
		return 0.6
	default:
		return 0
	}
}
