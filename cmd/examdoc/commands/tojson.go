package commands

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/1323216010/exam/cmd/examdoc/ui"
	"github.com/1323216010/exam/internal/examjson"
	"github.com/1323216010/exam/internal/llm"
)

var (
	tojsonDir        string
	tojsonPattern    string
	tojsonOutputPath string
)

var tojsonCmd = &cobra.Command{
	Use:   "tojson [markdown]...",
	Short: "Structure transcribed Markdown exams into JSON",
	Long: `Send each Markdown file to the structuring model and save the JSON next to it.
When the model returns something that is not valid JSON the raw text is saved
for manual inspection.`,
	RunE: runToJSON,
}

func init() {
	tojsonCmd.Flags().StringVar(&tojsonDir, "dir", "", "convert every matching file in this directory")
	tojsonCmd.Flags().StringVar(&tojsonPattern, "pattern", "*.md", "file pattern used with --dir")
	tojsonCmd.Flags().StringVarP(&tojsonOutputPath, "output", "o", "", "output JSON path (single file only)")
	rootCmd.AddCommand(tojsonCmd)
}

func runToJSON(cmd *cobra.Command, args []string) error {
	ctx, _ := withRunID(cmd.Context())

	files := append([]string{}, args...)
	if tojsonDir != "" {
		matches, err := examjson.Glob(tojsonDir, tojsonPattern)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			ui.Warning("No files matching %s in %s", tojsonPattern, tojsonDir)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no input files; pass Markdown paths or --dir")
	}
	if tojsonOutputPath != "" && len(files) > 1 {
		return fmt.Errorf("--output can only be used with a single file")
	}

	streamer, err := llm.New(ctx, cfg.Structure)
	if err != nil {
		return err
	}
	converter := examjson.NewConverter(streamer, logger)

	ui.Section("Markdown to JSON")
	ui.Info("Model: %s (%s)", cfg.Structure.Model, cfg.Structure.Provider)

	if len(files) == 1 {
		spin := ui.NewSpinner("Structuring " + filepath.Base(files[0]) + "...")
		spin.Start()
		res, err := converter.Convert(ctx, files[0], tojsonOutputPath)
		spin.Stop()
		if err != nil {
			return err
		}
		printJSONResult(res)
		return nil
	}

	progress := func(i int) string {
		return fmt.Sprintf("[%d/%d] %s", i+1, len(files), filepath.Base(files[i]))
	}
	spin := ui.NewSpinner(progress(0))
	spin.Start()
	done := 0
	batch := converter.ConvertBatch(ctx, files, func(path string, res *examjson.Result, err error) {
		spin.Stop()
		if err != nil {
			ui.Error("%s: %v", filepath.Base(path), err)
		} else {
			printJSONResult(res)
		}
		done++
		if done < len(files) {
			spin.UpdateMessage(progress(done))
			spin.Start()
		}
	})

	ui.Section("Batch Summary")
	ui.Table([]string{"Metric", "Value"}, [][]string{
		{"Files", strconv.Itoa(batch.Total)},
		{"Converted", strconv.Itoa(batch.Succeeded)},
		{"Failed", strconv.Itoa(len(batch.Failed))},
	})
	for _, name := range batch.Failed {
		ui.KeyValue("failed", name)
	}

	if len(batch.Failed) > 0 {
		return fmt.Errorf("%d of %d files could not be converted", len(batch.Failed), batch.Total)
	}
	return nil
}

func printJSONResult(res *examjson.Result) {
	if !res.Valid {
		ui.Warning("%s: model output is not valid JSON (%v); raw text saved to %s", filepath.Base(res.InputPath), res.ParseError, res.OutputPath)
		return
	}
	ui.Success("%s -> %s (%d questions, %d bytes)", filepath.Base(res.InputPath), res.OutputPath, res.Questions, res.Bytes)
	for _, tc := range res.Types {
		ui.KeyValue(tc.Type, strconv.Itoa(tc.Count))
	}
}
