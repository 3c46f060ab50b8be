package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/1323216010/exam/cmd/examdoc/ui"
	"github.com/1323216010/exam/internal/config"
	"github.com/1323216010/exam/internal/ledger"
	"github.com/1323216010/exam/internal/observability"
)

// Version is set at build time.
var Version = "dev"

var (
	cfgFile string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "examdoc",
	Short: "Convert exam documents to Markdown and JSON with a multimodal model",
	Long: `examdoc renders DOC, DOCX and PDF exam papers to page images, transcribes every
page to Markdown through a streaming AI model, structures the Markdown into JSON,
and indexes a tree of exam JSON files into a manifest.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor)

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:  level,
			Format: cfg.Log.Format,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// withRunID tags ctx with a fresh run ID for log correlation.
func withRunID(ctx context.Context) (context.Context, string) {
	id := ledger.NewRunID()
	return observability.ContextWithRunID(ctx, id), id
}

// openLedger returns nil when no ledger path is configured.
func openLedger() (*ledger.Store, error) {
	if cfg.Ledger.Path == "" {
		return nil, nil
	}
	return ledger.Open(cfg.Ledger.Path)
}
