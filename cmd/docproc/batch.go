package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/async"
	"github.com/joseph-ayodele/docproc/internal/bootstrap"
	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/export"
	"github.com/joseph-ayodele/docproc/internal/ingest"
	"github.com/joseph-ayodele/docproc/internal/repository"
)

type batchOptions struct {
	dir           string
	out           string
	force         bool
	inMemory      bool
	includeHidden bool
	workers       int
	timeout       time.Duration
}

func newBatchCmd(a *app) *cobra.Command {
	var o batchOptions
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process every supported document under a directory and export an XLSX report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd.Context(), a, o)
		},
	}
	cmd.Flags().StringVar(&o.dir, "dir", "", "directory to scan (required)")
	cmd.Flags().StringVar(&o.out, "out", "", "XLSX output path (default: <dir>-docproc.xlsx next to the directory)")
	cmd.Flags().BoolVar(&o.force, "force", false, "reprocess documents whose content was already processed")
	cmd.Flags().BoolVar(&o.inMemory, "inmem", false, "use a throwaway in-memory database")
	cmd.Flags().BoolVar(&o.includeHidden, "include-hidden", false, "descend into dot files and dot directories")
	cmd.Flags().IntVar(&o.workers, "workers", 2, "documents processed concurrently")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 3*time.Minute, "per-document processing timeout")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

type batchSummary struct {
	mu        sync.Mutex
	processed int
	skipped   int
	failed    []async.Outcome
	done      []async.Job
}

func (s *batchSummary) add(o async.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch o.Status {
	case constants.JobStatusProcessed:
		s.processed++
		s.done = append(s.done, o.Job)
	case constants.JobStatusSkipped:
		s.skipped++
		s.done = append(s.done, o.Job)
	default:
		s.failed = append(s.failed, o)
	}
}

func runBatch(ctx context.Context, a *app, o batchOptions) error {
	root, err := filepath.Abs(o.dir)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", common.ErrInvalidInput, o.dir, err)
	}
	if o.out == "" {
		o.out = filepath.Join(filepath.Dir(root), filepath.Base(root)+"-docproc.xlsx")
	}

	dbCfg := a.cfg.Database
	if o.inMemory {
		dbCfg.Driver, dbCfg.DSN = "sqlite", ":memory:"
	}
	db, repo, err := bootstrap.OpenRepository(ctx, dbCfg, a.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	proc, err := bootstrap.NewProcessor(a.cfg, a.logger)
	if err != nil {
		return err
	}

	results, stats, err := ingest.NewFSIngestor(repo, a.logger).IngestDirectory(ctx, root, !o.includeHidden)
	if err != nil {
		return err
	}

	var jobs []async.Job
	for _, r := range results {
		if r.Err != "" {
			continue
		}
		jobs = append(jobs, async.Job{
			Path:         r.SourcePath,
			HashHex:      r.HashHex,
			Deduplicated: r.Deduplicated,
			Force:        o.force,
			SubmittedAt:  time.Now(),
		})
	}
	if len(jobs) == 0 {
		color.Yellow("no supported documents under %s (scanned %d files)\n", root, stats.Scanned)
		return nil
	}

	bar := newProgressBar(len(jobs), "processing")
	summary := &batchSummary{}
	queue := async.NewProcessorQueue(proc, a.logger,
		async.WithWorkers(o.workers),
		async.WithQueueSize(len(jobs)),
		async.WithProcessTimeout(o.timeout),
		async.WithResultHandler(bootstrap.Persist(repo, a.logger, func(_ context.Context, out async.Outcome) {
			summary.add(out)
			_ = bar.Add(1)
		})),
	)
	for _, j := range jobs {
		if err := queue.Enqueue(ctx, j); err != nil {
			queue.Shutdown(context.Background())
			return err
		}
	}
	queue.Shutdown(ctx)
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	entries, err := batchEntries(ctx, repo, summary.done)
	if err != nil {
		return err
	}
	b, err := export.WriteXLSX(entries)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.out, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", o.out, err)
	}

	color.Green("processed %d, skipped %d, failed %d of %d documents\n", summary.processed, summary.skipped, len(summary.failed), len(jobs))
	for _, f := range summary.failed {
		color.Red("  %s: %v\n", f.Job.Path, f.Err)
	}
	color.Cyan("report written to %s\n", o.out)
	a.logger.Info("batch complete",
		"dir", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"processed", summary.processed,
		"skipped", summary.skipped,
		"failed", len(summary.failed),
		"out", o.out,
	)
	return nil
}

// batchEntries loads the stored version of every finished job, in path order.
func batchEntries(ctx context.Context, repo repository.DocumentRepository, jobs []async.Job) ([]export.Entry, error) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Path < jobs[j].Path })
	entries := make([]export.Entry, 0, len(jobs))
	for _, j := range jobs {
		rec, err := repo.GetByHash(ctx, j.HashHex)
		if errors.Is(err, common.ErrNotFound) {
			// a duplicate of a document that failed
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", j.Path, err)
		}
		e := export.FromRecord(rec)
		e.SourcePath = j.Path
		entries = append(entries, e)
	}
	return entries, nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
