package ocrmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	return &Renderer{
		OutputDir: t.TempDir(),
		Slug:      "old_atlas",
		Title:     "Old Atlas",
		Lang:      "eng",
	}
}

// parseArtifact parses a rendered artifact and counts headings by level and
// embedded images.
func parseArtifact(t *testing.T, source []byte) (headings map[int][]string, images []string) {
	t.Helper()
	headings = make(map[int][]string)
	doc := goldmark.New().Parser().Parse(gtext.NewReader(source))
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			var sb strings.Builder
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if txt, ok := c.(*ast.Text); ok {
					sb.Write(txt.Segment.Value(source))
				}
			}
			headings[node.Level] = append(headings[node.Level], sb.String())
		case *ast.Image:
			images = append(images, string(node.Destination))
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)
	return headings, images
}

func TestImageFileName(t *testing.T) {
	assert.Equal(t, "page_002_1x1.jpg", ImageFileName(2, Tag1x1))
	assert.Equal(t, "page_017_1x2.jpg", ImageFileName(17, Tag1x2))
	assert.Equal(t, "page_120_2x2.jpg", ImageFileName(120, Tag2x2))
}

func TestRenderText(t *testing.T) {
	r := testRenderer(t)
	pages := []PageContext{
		{Index: 1, Tag: Tag1x1, Blocks: []Block{
			{Type: BlockHeading, Text: "CHAPTER ONE", HeadingConf: 1},
			{Type: BlockBody, Text: "It was the best of times."},
		}},
		// Gated-out page: bare page marker, no content.
		{Index: 2, Tag: Tag1x1},
		{Index: 3, Tag: Tag1x2, Blocks: []Block{
			{Type: BlockBody, Text: "More body text."},
		}},
	}

	path, err := r.RenderText(pages)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.OutputDir, "old_atlas_TEXT.md"), path)

	source, err := os.ReadFile(path)
	require.NoError(t, err)
	headings, images := parseArtifact(t, source)

	assert.Equal(t, []string{"Old Atlas"}, headings[1])
	assert.Equal(t, []string{"Page 1", "Page 2", "Page 3"}, headings[2])
	assert.Equal(t, []string{"CHAPTER ONE"}, headings[3])
	assert.Empty(t, images, "the text artifact never embeds images")
	assert.Contains(t, string(source), "It was the best of times.")
}

func TestRenderText_Deterministic(t *testing.T) {
	pages := []PageContext{
		{Index: 1, Tag: Tag1x1, Blocks: []Block{{Type: BlockBody, Text: "stable"}}},
	}
	r := testRenderer(t)
	path, err := r.RenderText(pages)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	path, err = r.RenderText(pages)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-rendering identical input must be byte identical")
}

func TestRenderImages(t *testing.T) {
	r := testRenderer(t)
	jpegBytes := encodeTestJPEG(t)
	pages := []PageContext{
		{Index: 1, Tag: Tag1x1, JPEG: jpegBytes, Embed: true},
		{Index: 2, Tag: Tag1x2, JPEG: jpegBytes, Embed: true},
		{Index: 3, Tag: Tag1x2, JPEG: jpegBytes, Embed: true},
	}

	path, err := r.RenderImages(pages)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.OutputDir, "old_atlas_IMAGES.md"), path)

	source, err := os.ReadFile(path)
	require.NoError(t, err)
	headings, images := parseArtifact(t, source)

	assert.Equal(t, []string{"Page 1", "Page 2", "Page 3"}, headings[2])
	assert.Equal(t, []string{
		"old_atlas_images/page_001_1x1.jpg",
		"old_atlas_images/page_002_1x2.jpg",
		"old_atlas_images/page_003_1x2.jpg",
	}, images, "every page embeds exactly one image, in page order")

	for _, name := range []string{"page_001_1x1.jpg", "page_002_1x2.jpg", "page_003_1x2.jpg"} {
		data, err := os.ReadFile(filepath.Join(r.OutputDir, "old_atlas_images", name))
		require.NoError(t, err)
		assert.Equal(t, jpegBytes, data, "pre-encoded bytes must be written verbatim")
	}
}

func TestRenderImages_MissingImageFails(t *testing.T) {
	r := testRenderer(t)
	_, err := r.RenderImages([]PageContext{{Index: 1, Tag: Tag1x1, Embed: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image to embed")
}

func encodeTestJPEG(t *testing.T) []byte {
	t.Helper()
	detector := &SplitDetector{}
	result, err := detector.Detect(RawPage{Index: 1, Image: scanImage(64, 64)})
	require.NoError(t, err)
	return result.Pages[0].JPEG
}
