package ocrmd

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
)

// Extractor rasterizes the source PDF into per-scan page images using
// pdfium. It is the only component that touches the source document; the
// rest of the pipeline works on RawPage images.
type Extractor struct {
	Instance pdfium.Pdfium
}

// ExtractPages renders every page of the configured PDF at the configured
// DPI, persists each scan to rawDir as scan_%03d.jpg, and returns the pages
// in order. A missing source document is fatal and reported with a
// remediation hint before any pipeline state is produced.
func (e *Extractor) ExtractPages(cfg Config, rawDir string) ([]RawPage, error) {
	if _, err := os.Stat(cfg.PDFFile); err != nil {
		return nil, errors.Wrapf(err, "source PDF not readable: %s (check pdf_file in the config)", cfg.PDFFile)
	}
	if err := os.MkdirAll(rawDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create raw pages directory")
	}

	doc, err := e.Instance.OpenDocument(&requests.OpenDocument{
		FilePath: &cfg.PDFFile,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open PDF document")
	}
	defer e.Instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: doc.Document,
	})

	pageCount, err := e.Instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page count")
	}

	pages := make([]RawPage, 0, pageCount.PageCount)
	for i := 0; i < pageCount.PageCount; i++ {
		render, err := e.Instance.RenderPageInDPI(&requests.RenderPageInDPI{
			DPI: cfg.DPI,
			Page: requests.Page{
				ByIndex: &requests.PageByIndex{
					Document: doc.Document,
					Index:    i,
				},
			},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to render page %d", i+1)
		}

		// Copy out of the render buffer; pdfium may reuse it.
		img := copyImage(render.Result.Image)

		page := RawPage{Index: i + 1, Image: img, DPI: cfg.DPI}
		if err := persistScan(rawDir, page); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func copyImage(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func persistScan(rawDir string, page RawPage) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, page.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return errors.Wrapf(err, "failed to encode scan %d", page.Index)
	}
	path := filepath.Join(rawDir, fmt.Sprintf("scan_%03d.jpg", page.Index))
	return errors.Wrapf(os.WriteFile(path, buf.Bytes(), 0644), "failed to write scan %d", page.Index)
}
