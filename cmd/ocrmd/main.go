package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/alexandrafofel/ocrmd"
)

func main() {
	cmd := &cli.Command{
		Name:  "ocrmd",
		Usage: "Convert scanned book PDFs to markdown via OCR",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Book configuration YAML file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Working directory for artifacts",
				Value:   "output",
			},
			&cli.IntFlag{
				Name:  "from-page",
				Usage: "First scan to process (1-based)",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "to-page",
				Usage: "Last scan to process (1-based, 0 = last)",
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Answer yes to the images confirmation",
			},
			&cli.BoolFlag{
				Name:  "no",
				Usage: "Answer no to the images confirmation",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable per-page progress logging",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := ocrmd.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.Bool("yes") && cmd.Bool("no") {
		return errors.New("--yes and --no are mutually exclusive")
	}

	// Initialise pdfium
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialise pdfium")
	}
	defer pool.Close()

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		return errors.Wrap(err, "failed to get pdfium instance")
	}

	workDir := filepath.Join(cmd.String("output-dir"), cfg.Slug())

	extractor := &ocrmd.Extractor{Instance: instance}
	pages, err := extractor.ExtractPages(cfg, filepath.Join(workDir, "raw_pages"))
	if err != nil {
		return err
	}
	pages = selectPages(pages, cmd.Int("from-page"), cmd.Int("to-page"))
	if len(pages) == 0 {
		return errors.New("page selection matches no pages")
	}
	fmt.Fprintf(os.Stderr, "Processing %d scans...\n", len(pages))

	engine, err := ocrmd.NewTesseractEngine(cfg.Lang, cfg.DPI)
	if err != nil {
		return err
	}

	cache, err := ocrmd.OpenCache(filepath.Join(workDir, "ocr_cache.db"))
	if err != nil {
		return err
	}
	defer cache.Close()

	pipeline := &ocrmd.Pipeline{
		Config:  cfg,
		Engine:  engine,
		Cache:   cache,
		Confirm: confirmer(cmd),
		Verbose: cmd.Bool("verbose"),
	}
	report, err := pipeline.Run(ctx, pages, workDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Text artifact written to %s\n", report.TextPath)
	if report.ImagesPath != "" {
		fmt.Fprintf(os.Stderr, "Images artifact written to %s\n", report.ImagesPath)
	}
	return nil
}

// confirmer picks the confirmation strategy from the flags: --yes/--no force
// an unattended answer, otherwise the operator is asked on the terminal with
// a no-on-timeout default.
func confirmer(cmd *cli.Command) ocrmd.Confirmer {
	if cmd.Bool("yes") {
		return ocrmd.StaticConfirmer{Answer: true}
	}
	if cmd.Bool("no") {
		return ocrmd.StaticConfirmer{Answer: false}
	}
	return ocrmd.TerminalConfirmer{
		In:      os.Stdin,
		Out:     os.Stderr,
		Timeout: 5 * time.Minute,
		Default: false,
	}
}

func selectPages(pages []ocrmd.RawPage, from, to int) []ocrmd.RawPage {
	if from < 1 {
		from = 1
	}
	if to <= 0 || to > len(pages) {
		to = len(pages)
	}
	if from > to {
		return nil
	}
	return pages[from-1 : to]
}
