package ocrmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// State is the orchestrator's position in the two-phase workflow.
type State int

const (
	StateExtracted State = iota
	StateSplit
	StateTranscribed
	StateTextRendered
	StateAwaitingConfirmation
	StateImagesRendered
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateExtracted:
		return "Extracted"
	case StateSplit:
		return "Split"
	case StateTranscribed:
		return "Transcribed"
	case StateTextRendered:
		return "TextRendered"
	case StateAwaitingConfirmation:
		return "AwaitingConfirmation"
	case StateImagesRendered:
		return "ImagesRendered"
	default:
		return "Stopped"
	}
}

// PageStat is the per-page quality record aggregated into the QA report.
type PageStat struct {
	Page       int
	Tag        SplitTag
	Conf       float64
	Chars      int
	PSM        int
	Gated      bool // true when the page failed gating and contributed no text
	ImageHeavy bool
}

// RunReport summarizes one end-to-end invocation.
type RunReport struct {
	State      State
	TextPath   string
	ImagesPath string
	Stats      []PageStat
	TotalPages int
	UsableText int
}

// UsablePct returns the percentage of pages whose text passed gating.
func (r *RunReport) UsablePct() float64 {
	if r.TotalPages == 0 {
		return 0
	}
	return 100 * float64(r.UsableText) / float64(r.TotalPages)
}

// Pipeline sequences split detection, OCR, gating and rendering across all
// pages, and implements the two-phase text-first workflow with the human
// confirmation gate before the images pass.
//
// Execution is sequential per page: the OCR engine is the dominant blocking
// operation and is not safe to invoke concurrently, so the pipeline
// deliberately serializes all attempts.
type Pipeline struct {
	Config  Config
	Engine  Engine
	Cache   *Cache
	Confirm Confirmer
	Verbose bool
}

// Run drives one invocation over the extracted raw pages. workDir is the
// per-book working directory (already containing raw_pages/); artifacts go
// to workDir/markdown. The returned report is valid even when the run stops
// after the text artifact.
func (p *Pipeline) Run(ctx context.Context, rawPages []RawPage, workDir string) (*RunReport, error) {
	report := &RunReport{State: StateExtracted}

	// Extracted -> Split
	subPages, err := p.splitAll(rawPages, filepath.Join(workDir, "split_pages"))
	if err != nil {
		return report, err
	}
	report.State = StateSplit
	report.TotalPages = len(subPages)

	// Split -> Transcribed
	profile := TextProfile(p.Config)
	results, err := p.transcribe(ctx, subPages, profile)
	if err != nil {
		return report, err
	}
	report.State = StateTranscribed

	// Transcribed -> TextRendered
	outputDir := filepath.Join(workDir, "markdown")
	renderer := &Renderer{
		OutputDir: outputDir,
		Slug:      p.Config.Slug(),
		Title:     p.Config.BookTitle,
		Lang:      p.Config.Lang,
	}
	pages := p.assembleText(subPages, results, profile, report)
	report.TextPath, err = renderer.RenderText(pages)
	if err != nil {
		return report, err
	}
	report.State = StateTextRendered

	if err := writeQAReport(filepath.Join(outputDir, "qa_report.csv"), report.Stats, profile); err != nil {
		return report, err
	}
	p.logSummary(report)

	// TextRendered -> AwaitingConfirmation
	report.State = StateAwaitingConfirmation
	if !p.confirmImages(ctx) {
		report.State = StateStopped
		return report, nil
	}

	// AwaitingConfirmation -> ImagesRendered. Fresh PageContexts with the
	// images profile; OCR results come from the cache, never a new engine run.
	imagesProfile := ImagesProfile(p.Config)
	imagePages := make([]PageContext, 0, len(subPages))
	for _, sub := range subPages {
		result, err := p.transcribeOne(ctx, sub, imagesProfile)
		if err != nil {
			return report, err
		}
		imagePages = append(imagePages, PageContext{
			Index:  sub.Index,
			Tag:    sub.Tag,
			Image:  sub.Image,
			JPEG:   sub.JPEG,
			Result: result,
			Embed:  true,
		})
	}
	report.ImagesPath, err = renderer.RenderImages(imagePages)
	if err != nil {
		return report, err
	}
	report.State = StateImagesRendered
	return report, nil
}

// splitAll runs split detection over every raw scan, numbers the resulting
// logical pages sequentially and persists them to splitDir.
func (p *Pipeline) splitAll(rawPages []RawPage, splitDir string) ([]SubPage, error) {
	if err := os.MkdirAll(splitDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create split pages directory")
	}

	detector := &SplitDetector{Overrides: p.Config.SplitOverrides()}
	var subPages []SubPage
	counter := 1
	for _, raw := range rawPages {
		result, err := detector.Detect(raw)
		if err != nil {
			return nil, err
		}
		if p.Verbose {
			log.Printf("scan %d split as %s (%d pages)", raw.Index, result.Kind.Tag(), len(result.Pages))
		}
		for _, sub := range result.Pages {
			sub.Index = counter
			counter++
			name := fmt.Sprintf("page_%03d_%s.jpg", sub.Index, sub.Tag)
			if err := os.WriteFile(filepath.Join(splitDir, name), sub.JPEG, 0644); err != nil {
				return nil, errors.Wrapf(err, "failed to persist page %d", sub.Index)
			}
			subPages = append(subPages, sub)
		}
	}
	return subPages, nil
}

// transcribe OCRs every sub-page sequentially with the given profile.
func (p *Pipeline) transcribe(ctx context.Context, subPages []SubPage, profile RenderProfile) (map[int]*OcrResult, error) {
	results := make(map[int]*OcrResult, len(subPages))
	for _, sub := range subPages {
		result, err := p.transcribeOne(ctx, sub, profile)
		if err != nil {
			return nil, err
		}
		results[sub.Index] = result
		if p.Verbose {
			log.Printf("page %d/%d: conf %.1f, %d chars (psm %d)",
				sub.Index, len(subPages), result.AvgConf, result.Chars, result.Mode)
		}
	}
	return results, nil
}

// transcribeOne runs the attempt runner for one sub-page. The cache key is
// the hash of the raw sub-page bytes; the engine sees the preprocessed image.
func (p *Pipeline) transcribeOne(ctx context.Context, sub SubPage, profile RenderProfile) (*OcrResult, error) {
	runner := &AttemptRunner{Engine: p.Engine, Cache: p.Cache, Verbose: p.Verbose}

	hash := ContentHash(sub.JPEG)
	if p.Cache != nil {
		if cached, ok := p.Cache.Get(hash, profile.Mode); ok {
			return cached, nil
		}
	}

	prepared := Preprocess(sub.Image, profile.Preprocess, profile.CropPct)
	var buf bytes.Buffer
	if err := png.Encode(&buf, prepared); err != nil {
		return nil, errors.Wrapf(err, "failed to encode page %d for OCR", sub.Index)
	}
	result, err := runner.Run(ctx, hash, buf.Bytes(), profile.Mode)
	return result, errors.Wrapf(err, "OCR failed for page %d", sub.Index)
}

// assembleText builds the text-pass PageContexts and fills the per-page
// statistics. Pages failing gating contribute no blocks; that is an expected
// condition, not an error.
func (p *Pipeline) assembleText(subPages []SubPage, results map[int]*OcrResult, profile RenderProfile, report *RunReport) []PageContext {
	pages := make([]PageContext, 0, len(subPages))
	for _, sub := range subPages {
		result := results[sub.Index]
		allowed := AllowText(result, profile.LowConf, profile.MinChars)

		var blocks []Block
		if allowed {
			b := sub.Image.Bounds()
			blocks = Segment(result, b.Dx(), b.Dy())
			report.UsableText++
		}
		pages = append(pages, PageContext{
			Index:  sub.Index,
			Tag:    sub.Tag,
			Result: result,
			Blocks: blocks,
		})

		stat := PageStat{
			Page:  sub.Index,
			Tag:   sub.Tag,
			Gated: !allowed,
		}
		if result != nil {
			stat.Conf = result.AvgConf
			stat.Chars = result.Chars
			stat.PSM = result.Mode
			stat.ImageHeavy = isImageHeavy(sub, result)
		}
		report.Stats = append(report.Stats, stat)
	}
	return pages
}

// confirmImages resolves the human confirmation gate. The embed_images
// policy supplies the unattended answer: "all" proceeds, "none" stops, and
// "auto" asks the injected confirmer (whose default resolves to no).
func (p *Pipeline) confirmImages(ctx context.Context) bool {
	switch p.Config.EmbedImages {
	case "all":
		return true
	case "none":
		return false
	}
	if p.Confirm == nil {
		return false
	}
	return p.Confirm.Confirm(ctx, "Text artifact written. Render the images artifact as well?")
}

// isImageHeavy flags pages with very little text relative to their pixel
// area, typically covers and photo plates.
func isImageHeavy(sub SubPage, result *OcrResult) bool {
	b := sub.Image.Bounds()
	pixels := b.Dx() * b.Dy()
	min := pixels / 36000
	if min < 400 {
		min = 400
	}
	return result.Chars < min
}

func (p *Pipeline) logSummary(report *RunReport) {
	gated := report.TotalPages - report.UsableText
	log.Printf("text artifact: %d/%d pages with usable text (%.1f%%), %d gated out",
		report.UsableText, report.TotalPages, report.UsablePct(), gated)
}

// writeQAReport writes the per-page CSV quality report next to the
// artifacts.
func writeQAReport(path string, stats []PageStat, profile RenderProfile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create qa report")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"page", "split", "conf", "chars", "psm", "gated", "image_heavy", "preprocess", "crop_pct"}); err != nil {
		return errors.Wrap(err, "failed to write qa header")
	}
	for _, s := range stats {
		record := []string{
			strconv.Itoa(s.Page),
			string(s.Tag),
			strconv.FormatFloat(s.Conf, 'f', 1, 64),
			strconv.Itoa(s.Chars),
			strconv.Itoa(s.PSM),
			strconv.FormatBool(s.Gated),
			strconv.FormatBool(s.ImageHeavy),
			profile.Preprocess,
			strconv.FormatFloat(profile.CropPct, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "failed to write qa row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "failed to flush qa report")
}
