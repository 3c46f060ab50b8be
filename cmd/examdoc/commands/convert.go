package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/1323216010/exam/cmd/examdoc/ui"
	"github.com/1323216010/exam/internal/assemble"
	"github.com/1323216010/exam/internal/domain"
	"github.com/1323216010/exam/internal/ledger"
	"github.com/1323216010/exam/internal/llm"
	"github.com/1323216010/exam/internal/raster"
	"github.com/1323216010/exam/internal/transcribe"
)

var (
	convertOutputPath string
	convertWorkers    int
	convertSingle     bool
	convertKeepImages bool
	convertDPI        float64
)

var convertCmd = &cobra.Command{
	Use:   "convert <document>...",
	Short: "Transcribe DOC, DOCX or PDF exam papers to Markdown page by page",
	Long: `Render each document to page images and transcribe every page separately.
A page that fails is marked in the output and the run continues; the Markdown is
written next to the source as <name>.md unless --output is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutputPath, "output", "o", "", "output Markdown path (single document only)")
	convertCmd.Flags().IntVar(&convertWorkers, "workers", 0, "pages transcribed concurrently (default from config)")
	convertCmd.Flags().BoolVar(&convertSingle, "single", false, "send all pages in one request instead of page by page")
	convertCmd.Flags().BoolVar(&convertKeepImages, "keep-images", true, "keep the rendered page images")
	convertCmd.Flags().Float64Var(&convertDPI, "dpi", 0, "render resolution (default from config)")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if convertOutputPath != "" && len(args) > 1 {
		return fmt.Errorf("--output can only be used with a single document")
	}

	opts := assemble.Options{
		OutputPath:    convertOutputPath,
		Workers:       cfg.Convert.Workers,
		SingleRequest: convertSingle,
		KeepImages:    cfg.Convert.KeepImages,
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers = convertWorkers
	}
	if cmd.Flags().Changed("keep-images") {
		opts.KeepImages = convertKeepImages
	}
	dpi := cfg.Render.DPI
	if cmd.Flags().Changed("dpi") {
		dpi = convertDPI
	}

	streamer, err := llm.New(ctx, cfg.Transcribe)
	if err != nil {
		return err
	}

	rasterizer := raster.NewConverter(
		raster.WithDPI(dpi),
		raster.WithOffice(raster.NewOfficeConverter(cfg.Render.SofficePath)),
		raster.WithLogger(logger),
	)
	assembler := assemble.NewAssembler(rasterizer, transcribe.NewService(streamer, logger), logger)

	store, err := openLedger()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ui.Section("Exam Conversion")
	ui.Info("Model: %s (%s)", cfg.Transcribe.Model, cfg.Transcribe.Provider)

	failed := 0
	for _, docPath := range args {
		if err := convertOne(ctx, assembler, store, docPath, opts); err != nil {
			ui.Error("%s: %v", docPath, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents could not be converted", failed, len(args))
	}
	return nil
}

func convertOne(ctx context.Context, assembler *assemble.Assembler, store *ledger.Store, docPath string, opts assemble.Options) error {
	ctx, runID := withRunID(ctx)
	started := time.Now()

	ui.Newline()
	ui.Step("%s", docPath)

	eventCh := make(chan domain.StreamEvent, 100)
	done := make(chan struct{})
	go func() {
		defer close(done)
		renderEvents(eventCh, opts.SingleRequest)
	}()

	doc, err := assembler.Assemble(ctx, docPath, opts, eventCh)
	close(eventCh)
	<-done
	if err != nil {
		return err
	}

	s := doc.Summary
	ui.Newline()
	ui.Table([]string{"Metric", "Value"}, [][]string{
		{"Total pages", strconv.Itoa(s.TotalPages)},
		{"Succeeded", strconv.Itoa(s.Succeeded)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Failed pages", ui.FormatPages(s.FailedPages)},
		{"Characters", strconv.Itoa(s.Characters)},
		{"Duration", ui.FormatDuration(time.Since(started))},
	})
	ui.Newline()
	if s.Failed > 0 {
		ui.Warning("%d page(s) failed and are marked in the output", s.Failed)
	}
	ui.Success("Markdown saved to: %s", doc.OutputPath)

	if store != nil {
		mode := ledger.ModePages
		if opts.SingleRequest {
			mode = ledger.ModeSingle
		}
		if _, err := store.Record(ctx, ledger.RunRecord{
			ID:         runID,
			SourcePath: docPath,
			OutputPath: doc.OutputPath,
			Mode:       mode,
			Summary:    s,
			StartedAt:  started,
			Duration:   time.Since(started),
		}); err != nil {
			logger.Warn().Err(err).Msg("could not record run")
		}
	}

	return nil
}

// renderEvents drives the progress display until eventCh is closed.
func renderEvents(eventCh <-chan domain.StreamEvent, single bool) {
	var bar *ui.ProgressBar
	var spin *ui.Spinner

	for ev := range eventCh {
		switch ev.Type {
		case domain.EventRasterized:
			pages, _ := ev.Payload.(int)
			if single {
				spin = ui.NewSpinner(fmt.Sprintf("Transcribing %d pages in one request...", pages))
				spin.Start()
				continue
			}
			bar = ui.NewProgressBar(int64(pages), "Transcribing")
		case domain.EventPageProcessing:
			if bar != nil {
				bar.Describe(fmt.Sprintf("Page %d", ev.PageNumber))
			}
		case domain.EventPageComplete:
			if bar != nil {
				bar.Add(1)
			}
		case domain.EventPageFailed:
			if bar != nil {
				bar.Add(1)
			}
			logger.Warn().Str("reason", fmt.Sprint(ev.Payload)).Int("page", ev.PageNumber).Msg("page failed")
		case domain.EventComplete, domain.EventError:
			if bar != nil {
				bar.Finish()
				bar = nil
			}
			if spin != nil {
				spin.Stop()
				spin = nil
			}
		}
	}

	if spin != nil {
		spin.Stop()
	}
}
