package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docproc/internal/common"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	jsonLogs   bool

	cfg    *common.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "docproc",
		Short:         "Extract text from PDFs and images",
		Long:          "docproc classifies documents, renders their pages and extracts text with a PDF text layer, a vision model or tesseract OCR.",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file; environment variables still override it")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.PersistentFlags().BoolVar(&a.jsonLogs, "log-json", false, "emit JSON logs")

	cmd.AddCommand(
		newProcessCmd(a),
		newClassifyCmd(a),
		newBatchCmd(a),
		newWatchCmd(a),
		newMCPCmd(a),
		newDBHealthCmd(a),
	)
	return cmd
}

func (a *app) init(w io.Writer) error {
	// Logs go to stderr so stdout stays clean for results and MCP stdio.
	a.logger = newLogger(w, a.logLevel, a.jsonLogs)
	slog.SetDefault(a.logger)

	var err error
	if a.configPath != "" {
		a.cfg, err = common.LoadConfigFile(a.configPath)
	} else {
		a.cfg = common.LoadConfig()
	}
	if err != nil {
		return err
	}
	return a.cfg.Validate()
}

func newLogger(w io.Writer, level string, asJSON bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	// Keep message and attributes; time and level are noise on a terminal.
	opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey) {
			return slog.Attr{}
		}
		return a
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
