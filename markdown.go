package ocrmd

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/ivanvanderbyl/markdown"
	"github.com/pkg/errors"
)

// Renderer emits the two mutually exclusive markdown artifacts for a book:
// the clean transcript (<slug>_TEXT.md) and the page-faithful image document
// (<slug>_IMAGES.md plus an image folder). Emission is deterministic:
// identical inputs produce identical files, so re-runs overwrite predictably.
type Renderer struct {
	OutputDir string
	Slug      string
	Title     string
	Lang      string
}

// ImageFileName returns the deterministic file name for a page image:
// page_{index:03d}_{splitTag}.jpg.
func ImageFileName(index int, tag SplitTag) string {
	return fmt.Sprintf("page_%03d_%s.jpg", index, tag)
}

// ImagesDirName returns the name of the image subfolder for the slug.
func (r *Renderer) ImagesDirName() string {
	return r.Slug + "_images"
}

// RenderText writes the text-only artifact. Every page gets a page heading;
// pages whose OCR failed gating contribute the bare heading as an empty page
// marker and nothing else, never an image. Returns the artifact path.
func (r *Renderer) RenderText(pages []PageContext) (string, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	r.writeFrontMatter(md, "text")

	for _, page := range pages {
		md.H2(fmt.Sprintf("Page %d", page.Index))
		for _, block := range page.Blocks {
			switch block.Type {
			case BlockHeading:
				md.H3(block.Text)
			default:
				md.PlainText(block.Text)
			}
			md.LF()
		}
	}

	if err := md.Build(); err != nil {
		return "", errors.Wrap(err, "failed to build text markdown")
	}

	path := filepath.Join(r.OutputDir, r.Slug+"_TEXT.md")
	if err := writeArtifact(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

// RenderImages writes the images-only artifact: one image file per page into
// the image subfolder and a document with one image reference per page, in
// page order. Images are embedded for every page regardless of OCR quality.
// Returns the artifact path.
func (r *Renderer) RenderImages(pages []PageContext) (string, error) {
	imagesDir := filepath.Join(r.OutputDir, r.ImagesDirName())
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create image folder")
	}

	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	r.writeFrontMatter(md, "images")

	for _, page := range pages {
		name := ImageFileName(page.Index, page.Tag)
		if err := r.writePageImage(filepath.Join(imagesDir, name), page); err != nil {
			return "", err
		}
		md.H2(fmt.Sprintf("Page %d", page.Index))
		md.PlainText(fmt.Sprintf("![Page %d](%s/%s)", page.Index, r.ImagesDirName(), name))
		md.LF()
	}

	if err := md.Build(); err != nil {
		return "", errors.Wrap(err, "failed to build images markdown")
	}

	path := filepath.Join(r.OutputDir, r.Slug+"_IMAGES.md")
	if err := writeArtifact(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Renderer) writeFrontMatter(md *markdown.Markdown, mode string) {
	title := r.Title
	if title == "" {
		title = r.Slug
	}
	md.H1(title)
	md.PlainText(fmt.Sprintf("**Language:** `%s` | **Mode:** `%s`", r.Lang, mode))
	md.LF()
	md.HorizontalRule()
	md.LF()
}

func (r *Renderer) writePageImage(path string, page PageContext) error {
	data := page.JPEG
	if data == nil {
		if page.Image == nil {
			return errors.Errorf("page %d has no image to embed", page.Index)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, page.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return errors.Wrapf(err, "failed to encode image for page %d", page.Index)
		}
		data = buf.Bytes()
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "failed to write image for page %d", page.Index)
}

func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "failed to write %s", filepath.Base(path))
}
