package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/1323216010/exam/cmd/examdoc/ui"
	"github.com/1323216010/exam/internal/manifest"
)

const defaultManifestRoot = "exam/json"

var (
	manifestPrefix     string
	manifestOutputName string
)

var manifestCmd = &cobra.Command{
	Use:   "manifest [root]",
	Short: "Index exam JSON files into a manifest",
	Long: `Scan the immediate subdirectories of root (default exam/json) for *.json files
and write <root>/exam-list.json listing each file with its subject.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runManifest,
}

func init() {
	manifestCmd.Flags().StringVar(&manifestPrefix, "prefix", "", "path prefix for manifest entries (default from config)")
	manifestCmd.Flags().StringVar(&manifestOutputName, "output-name", "", "manifest file name (default from config)")
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, args []string) error {
	root := defaultManifestRoot
	if len(args) == 1 {
		root = args[0]
	}
	prefix := cfg.Manifest.PathPrefix
	if manifestPrefix != "" {
		prefix = manifestPrefix
	}
	outputName := cfg.Manifest.OutputName
	if manifestOutputName != "" {
		outputName = manifestOutputName
	}

	log := logger.WithOperation("manifest")

	entries, err := manifest.Build(root, prefix)
	if err != nil {
		return err
	}
	outPath, err := manifest.Write(root, outputName, entries)
	if err != nil {
		return err
	}
	log.Info().Int("entries", len(entries)).Str("output", outPath).Msg("manifest written")

	ui.Section("Exam List")
	ui.Success("Wrote %d entries to %s", len(entries), outPath)

	counts := manifest.Summarize(entries)
	if len(counts) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Subject, strconv.Itoa(c.Count)})
	}
	ui.Newline()
	ui.Table([]string{"Subject", "Files"}, rows)
	return nil
}
