package ocrmd

import (
	"image"
	"image/color"
)

// Preprocess prepares a page image for OCR using the named profile. The gray
// profile converts to grayscale, sharpens and stretches contrast; the binary
// profile additionally thresholds at the histogram median. cropPct removes a
// fractional margin from all sides first (reserved; the base pipeline always
// passes 0).
func Preprocess(img image.Image, profile string, cropPct float64) image.Image {
	if cropPct > 0 {
		img = cropMargins(img, cropPct)
	}
	gray := toGray(img)
	gray = sharpen(gray)
	gray = autocontrast(gray, 2)
	if profile == PreprocessBinary {
		gray = binarize(gray)
	}
	return gray
}

// cropMargins removes a percentage of all four sides of the image.
func cropMargins(img image.Image, pct float64) image.Image {
	b := img.Bounds()
	dx := int(float64(b.Dx()) * pct)
	dy := int(float64(b.Dy()) * pct)
	rect := image.Rect(b.Min.X+dx, b.Min.Y+dy, b.Max.X-dx, b.Max.Y-dy)
	if rect.Empty() {
		return img
	}
	return cropImage(img, rect)
}

// cropImage returns a copy of the given region.
func cropImage(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out
}

// toGray converts any image to 8-bit grayscale.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return gray
}

// sharpen applies a mild 3x3 unsharp kernel. Interior pixels only; the
// one-pixel border is copied unchanged.
func sharpen(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	copy(dst.Pix, src.Pix)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := int(src.GrayAt(x, y).Y)
			sum := 5*c -
				int(src.GrayAt(x-1, y).Y) - int(src.GrayAt(x+1, y).Y) -
				int(src.GrayAt(x, y-1).Y) - int(src.GrayAt(x, y+1).Y)
			if sum < 0 {
				sum = 0
			}
			if sum > 255 {
				sum = 255
			}
			dst.SetGray(x, y, color.Gray{Y: uint8(sum)})
		}
	}
	return dst
}

// autocontrast stretches the histogram so the darkest and brightest cutoff
// percent of pixels saturate, normalizing faded scans.
func autocontrast(src *image.Gray, cutoff float64) *image.Gray {
	var hist [256]int
	for _, p := range src.Pix {
		hist[p]++
	}
	total := len(src.Pix)
	if total == 0 {
		return src
	}
	drop := int(float64(total) * cutoff / 100)

	lo, hi := 0, 255
	for cum := 0; lo < 255; lo++ {
		cum += hist[lo]
		if cum > drop {
			break
		}
	}
	for cum := 0; hi > 0; hi-- {
		cum += hist[hi]
		if cum > drop {
			break
		}
	}
	if hi <= lo {
		return src
	}

	scale := 255.0 / float64(hi-lo)
	dst := image.NewGray(src.Bounds())
	for i, p := range src.Pix {
		v := (float64(p) - float64(lo)) * scale
		dst.Pix[i] = uint8(clamp(v, 0, 255))
	}
	return dst
}

// binarize thresholds at the histogram median, clamped to [100, 200] so
// near-empty or very dark pages do not produce a degenerate threshold.
func binarize(src *image.Gray) *image.Gray {
	var hist [256]int
	for _, p := range src.Pix {
		hist[p]++
	}
	total := len(src.Pix)
	thresh := 170
	for i, cum := 0, 0; i < 256; i++ {
		cum += hist[i]
		if cum >= total/2 {
			thresh = i
			break
		}
	}
	if thresh < 100 {
		thresh = 100
	}
	if thresh > 200 {
		thresh = 200
	}

	dst := image.NewGray(src.Bounds())
	for i, p := range src.Pix {
		if int(p) > thresh {
			dst.Pix[i] = 255
		} else {
			dst.Pix[i] = 0
		}
	}
	return dst
}
