package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docproc/internal/bootstrap"
	"github.com/joseph-ayodele/docproc/internal/repository"
	"github.com/joseph-ayodele/docproc/internal/server"
)

func newProcessCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Extract text from one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			proc, err := bootstrap.NewProcessor(a.cfg, a.logger)
			if err != nil {
				return err
			}

			var repo repository.DocumentRepository
			if save {
				db, r, err := bootstrap.OpenRepository(ctx, a.cfg.Database, a.logger)
				if err != nil {
					return err
				}
				defer db.Close()
				repo = r
			}

			res, err := server.NewDocumentService(proc, repo, a.logger).ProcessPath(ctx, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "store the result in the configured database")
	return cmd
}

func printResult(w io.Writer, res *server.Result) {
	head := color.New(color.FgCyan)
	for _, p := range res.Pages {
		head.Fprintf(w, "--- page %d/%d  %s  confidence %.2f ---\n", p.PageNumber, res.TotalPages, p.ExtractionMethod, p.Confidence)
		fmt.Fprintln(w, p.ExtractedText)
	}
	for _, n := range res.ProcessingNotes {
		color.New(color.FgYellow).Fprintf(w, "note: %s\n", n)
	}
	if res.ID != "" {
		fmt.Fprintf(w, "stored as %s\n", res.ID)
	}
}

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>...",
		Short: "Report the document type of each file without extracting text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := server.NewDocumentService(nil, nil, a.logger)
			for _, path := range args {
				t, err := svc.Classify(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t, path)
			}
			return nil
		},
	}
}
