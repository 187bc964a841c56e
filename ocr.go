package ocrmd

import (
	"context"
	"log"

	"github.com/pkg/errors"
)

// fallbackModes is the fixed page-segmentation fallback sequence tried after
// the configured mode. 6 (single block), 3 (fully automatic) and 4 (single
// column) cover the layouts that occur in practice on book scans.
var fallbackModes = []int{6, 3, 4}

// AttemptRunner drives one or more OCR passes over a page image with
// different segmentation modes and keeps the best result. A cache lookup by
// content hash happens before any engine call; a fresh winning result is
// written back afterwards.
type AttemptRunner struct {
	Engine Engine
	Cache  *Cache
	// Modes overrides the fallback sequence; nil means [6, 3, 4].
	Modes []int
	// Verbose enables per-attempt logging.
	Verbose bool
}

// Run performs OCR for one page image. contentHash is the cache key, always
// computed over the raw pre-preprocessing sub-page bytes; imageData is the
// (possibly preprocessed) image actually submitted to the engine. The attempt
// order is the configured mode followed by the fallback sequence, duplicates
// removed. Attempts are strictly sequential; the underlying engine is not
// safe to invoke concurrently.
func (r *AttemptRunner) Run(ctx context.Context, contentHash string, imageData []byte, configuredMode int) (*OcrResult, error) {
	hash := contentHash
	if r.Cache != nil {
		if cached, ok := r.Cache.Get(hash, configuredMode); ok {
			return cached, nil
		}
	}

	var candidates []*OcrResult
	var lastErr error
	for _, mode := range attemptOrder(configuredMode, r.Modes) {
		attempt, err := r.Engine.Attempt(ctx, imageData, mode)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if r.Verbose {
				log.Printf("OCR attempt failed for mode %d: %v", mode, err)
			}
			lastErr = err
			continue
		}
		candidates = append(candidates, &OcrResult{
			Text:    attempt.Text,
			AvgConf: attempt.AvgConf,
			Chars:   attempt.Chars,
			Mode:    mode,
			Lines:   attempt.Lines,
		})
	}
	if len(candidates) == 0 {
		if lastErr != nil {
			return nil, errors.Wrap(lastErr, "all OCR attempts failed")
		}
		return nil, errors.New("no OCR attempts were made")
	}

	best := pickBest(candidates)
	if r.Cache != nil {
		if err := r.Cache.Put(hash, configuredMode, r.Engine.Name(), best); err != nil {
			// A failed write only costs a recomputation on the next run.
			log.Printf("cache write failed: %v", err)
		}
	}
	return best, nil
}

// attemptOrder returns the configured mode followed by the fallback sequence
// with duplicates removed, preserving order.
func attemptOrder(configured int, fallback []int) []int {
	if fallback == nil {
		fallback = fallbackModes
	}
	order := make([]int, 0, len(fallback)+1)
	seen := make(map[int]bool)
	for _, mode := range append([]int{configured}, fallback...) {
		if !seen[mode] {
			order = append(order, mode)
			seen[mode] = true
		}
	}
	return order
}

// pickBest selects the winning candidate: highest average confidence, ties
// broken by higher character count, then by earliest position in the attempt
// order.
func pickBest(candidates []*OcrResult) *OcrResult {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.AvgConf > best.AvgConf || (c.AvgConf == best.AvgConf && c.Chars > best.Chars) {
			best = c
		}
	}
	return best
}
