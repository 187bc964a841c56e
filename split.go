package ocrmd

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const (
	// gutterThresholdFrac marks projection-profile valleys darker than this
	// fraction of the median column brightness as gutter candidates.
	gutterThresholdFrac = 0.6
	// gutterClusterGap is the maximum column distance within one valley cluster.
	gutterClusterGap = 5
	// maxSkewDegrees bounds the deskew search; book scans rarely exceed it.
	maxSkewDegrees = 3.0
	skewStep       = 0.5

	jpegQuality = 90
)

// SplitDetector classifies raw scans as single pages, double spreads or quad
// spreads, and normalizes each resulting sub-page. Overrides maps 1-based
// scan numbers to a forced classification from the configuration.
type SplitDetector struct {
	Overrides map[int]SplitKind
}

// Detect analyzes one raw scan. Ambiguous gutter evidence resolves to a
// single page: a wrong split would duplicate or lose content, a missed one
// only degrades OCR.
func (d *SplitDetector) Detect(page RawPage) (SplitResult, error) {
	kind, forced := d.Overrides[page.Index]
	if !forced {
		kind = classifySplit(toGray(page.Image))
	}

	var parts []image.Image
	b := page.Image.Bounds()
	w, h := b.Dx(), b.Dy()
	switch kind {
	case SplitDouble:
		parts = []image.Image{
			cropImage(page.Image, image.Rect(b.Min.X, b.Min.Y, b.Min.X+w/2, b.Max.Y)),
			cropImage(page.Image, image.Rect(b.Min.X+w/2, b.Min.Y, b.Max.X, b.Max.Y)),
		}
	case SplitQuad:
		midX, midY := b.Min.X+w/2, b.Min.Y+h/2
		parts = []image.Image{
			cropImage(page.Image, image.Rect(b.Min.X, b.Min.Y, midX, midY)),
			cropImage(page.Image, image.Rect(midX, b.Min.Y, b.Max.X, midY)),
			cropImage(page.Image, image.Rect(b.Min.X, midY, midX, b.Max.Y)),
			cropImage(page.Image, image.Rect(midX, midY, b.Max.X, b.Max.Y)),
		}
	default:
		parts = []image.Image{page.Image}
	}

	result := SplitResult{Kind: kind, Pages: make([]SubPage, 0, len(parts))}
	tag := kind.Tag()
	for _, part := range parts {
		normalized := deskew(part)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, normalized, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return SplitResult{}, errors.Wrapf(err, "failed to encode sub-page of scan %d", page.Index)
		}
		result.Pages = append(result.Pages, SubPage{
			Tag:   tag,
			Image: normalized,
			JPEG:  buf.Bytes(),
		})
	}
	return result, nil
}

// classifySplit looks for dark vertical valleys in the column brightness
// profile, the signature of the gutter between photographed pages. Two or
// more distinct valleys suggest a quad scan, one a double spread, none a
// single page.
func classifySplit(gray *image.Gray) SplitKind {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 4 || h < 4 {
		return SplitSingle
	}

	profile := make([]float64, w)
	for x := 0; x < w; x++ {
		var sum float64
		for y := 0; y < h; y++ {
			sum += float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		}
		profile[x] = sum / float64(h)
	}

	smoothed := movingAverage(profile, w/20+1)
	threshold := median(smoothed) * gutterThresholdFrac

	// Cluster below-threshold columns into distinct valleys. Valleys touching
	// the outer margins are scan borders, not gutters.
	margin := w / 10
	valleys := 0
	inValley := false
	lastBelow := -gutterClusterGap * 2
	for x := margin; x < w-margin; x++ {
		if smoothed[x] < threshold {
			if !inValley && x-lastBelow > gutterClusterGap {
				valleys++
			}
			inValley = true
			lastBelow = x
		} else if inValley && x-lastBelow > gutterClusterGap {
			inValley = false
		}
	}

	switch {
	case valleys >= 2:
		return SplitQuad
	case valleys == 1:
		return SplitDouble
	default:
		return SplitSingle
	}
}

// deskew estimates the page skew by maximizing row-profile variance over a
// small angle sweep and rotates the image to correct it. Straight text rows
// give the sharpest alternation of dark and light rows, so the variance
// peaks at the true skew angle.
func deskew(img image.Image) image.Image {
	gray := downsampleGray(img, 400)
	best, bestVar := 0.0, rowVariance(gray, 0)
	for angle := -maxSkewDegrees; angle <= maxSkewDegrees; angle += skewStep {
		if angle == 0 {
			continue
		}
		if v := rowVariance(gray, angle); v > bestVar {
			best, bestVar = angle, v
		}
	}
	if math.Abs(best) < skewStep/2 {
		return img
	}
	return rotate(img, -best)
}

// downsampleGray scales the image down to at most maxWidth columns for the
// skew sweep; full resolution adds nothing to the estimate.
func downsampleGray(img image.Image, maxWidth int) *image.Gray {
	b := img.Bounds()
	if b.Dx() <= maxWidth {
		return toGray(img)
	}
	scale := float64(maxWidth) / float64(b.Dx())
	dst := image.NewGray(image.Rect(0, 0, maxWidth, int(float64(b.Dy())*scale)))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// rowVariance shears each row by the candidate angle and measures the
// variance of mean row brightness.
func rowVariance(gray *image.Gray, angle float64) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	tan := math.Tan(angle * math.Pi / 180)
	rows := make([]float64, 0, h)
	for y := 0; y < h; y++ {
		var sum float64
		var n int
		for x := 0; x < w; x++ {
			yy := y + int(float64(x-w/2)*tan)
			if yy < 0 || yy >= h {
				continue
			}
			sum += float64(gray.GrayAt(b.Min.X+x, b.Min.Y+yy).Y)
			n++
		}
		if n > 0 {
			rows = append(rows, sum/float64(n))
		}
	}
	sd := stdDev(rows)
	return sd * sd
}

// rotate rotates the image around its center by angle degrees, filling the
// exposed corners with white.
func rotate(img image.Image, angle float64) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	rad := angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	cx, cy := float64(w)/2, float64(h)/2
	// Affine map from src to dst: rotate about the image center.
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	xdraw.BiLinear.Transform(dst, m, img, b, xdraw.Over, nil)
	return dst
}
