package main

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/async"
	"github.com/joseph-ayodele/docproc/internal/bootstrap"
	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/ingest"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		cfg     ingest.WatchConfig
		hidden  bool
		force   bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Process documents as they appear under one or more directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg.Roots = args
			cfg.SkipHidden = !hidden

			db, repo, err := bootstrap.OpenRepository(ctx, a.cfg.Database, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			proc, err := bootstrap.NewProcessor(a.cfg, a.logger)
			if err != nil {
				return err
			}
			ingestor := ingest.NewFSIngestor(repo, a.logger)
			queue := async.NewProcessorQueue(proc, a.logger,
				async.WithWorkers(workers),
				async.WithResultHandler(bootstrap.Persist(repo, a.logger, printOutcome)),
			)
			defer queue.Shutdown(context.Background())

			paths, errs, err := ingest.Watch(ctx, cfg, a.logger)
			if err != nil {
				return err
			}
			color.Cyan("watching %v (ctrl-c to stop)\n", args)
			for {
				select {
				case <-ctx.Done():
					return nil
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					a.logger.Warn("watcher error", "error", err)
				case path, ok := <-paths:
					if !ok {
						return nil
					}
					if err := enqueuePath(ctx, ingestor, queue, path, force); err != nil {
						a.logger.Warn("skip file", "path", path, "error", err)
					}
				}
			}
		},
	}
	cmd.Flags().BoolVar(&cfg.InitialScan, "initial-scan", true, "process documents already present at start")
	cmd.Flags().DurationVar(&cfg.Debounce, "debounce", 500*time.Millisecond, "wait for writes to settle before processing")
	cmd.Flags().BoolVar(&hidden, "include-hidden", false, "watch dot files and dot directories")
	cmd.Flags().BoolVar(&force, "force", false, "reprocess documents whose content was already processed")
	cmd.Flags().IntVar(&workers, "workers", 2, "documents processed concurrently")
	return cmd
}

func enqueuePath(ctx context.Context, ingestor ingest.Ingestor, queue async.Queue, path string, force bool) error {
	r, err := ingestor.IngestPath(ctx, path)
	if err != nil {
		return err
	}
	ctx, traceID := common.EnsureRequestID(ctx)
	return queue.Enqueue(ctx, async.Job{
		Path:         r.SourcePath,
		HashHex:      r.HashHex,
		Deduplicated: r.Deduplicated,
		Force:        force,
		SubmittedAt:  time.Now(),
		TraceID:      traceID,
	})
}

func printOutcome(_ context.Context, o async.Outcome) {
	switch o.Status {
	case constants.JobStatusProcessed:
		color.Green("processed %s (%d pages, confidence %.2f) in %s\n",
			o.Job.Path, o.Document.TotalPages, o.Document.AverageConfidence, o.Elapsed.Round(time.Millisecond))
	case constants.JobStatusSkipped:
		color.Yellow("skipped %s (already processed)\n", o.Job.Path)
	default:
		color.Red("failed %s: %v\n", o.Job.Path, o.Err)
	}
}
