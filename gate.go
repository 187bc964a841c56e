package ocrmd

// AllowText reports whether an OCR result is trustworthy enough to publish
// as text. Pure and deterministic: a result passes when its average
// confidence meets lowConf AND its character count meets minChars.
//
// In the text-only pass a failing page is rendered as an empty page marker.
// The images-only pass disables gating entirely by running with thresholds
// above any attainable score (see ImagesProfile).
func AllowText(result *OcrResult, lowConf float64, minChars int) bool {
	if result == nil {
		return false
	}
	return result.AvgConf >= lowConf && result.Chars >= minChars
}
