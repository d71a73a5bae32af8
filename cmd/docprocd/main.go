// Command docprocd serves the document pipeline over gRPC and HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/joseph-ayodele/docproc/internal/async"
	"github.com/joseph-ayodele/docproc/internal/bootstrap"
	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/export"
	"github.com/joseph-ayodele/docproc/internal/ingest"
	"github.com/joseph-ayodele/docproc/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("DOCPROC_CONFIG"), "YAML config file")
	watchDirs := flag.String("watch", os.Getenv("WATCH_DIRS"), "comma-separated directories to process as files arrive")
	flag.Parse()

	// Setup structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *configPath != "" {
		var err error
		if cfg, err = common.LoadConfigFile(*configPath); err != nil {
			logger.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(2)
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, repo, err := bootstrap.OpenRepository(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	proc, err := bootstrap.NewProcessor(cfg, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}
	docs := server.NewDocumentService(proc, repo, logger)

	// gRPC server
	lis, err := net.Listen("tcp", listenAddr(cfg.Server.GRPCAddr))
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(server.LoggingInterceptor(logger)),
		grpc.MaxRecvMsgSize(int(cfg.Server.MaxUploadBytes)+1<<20),
	)
	healthServer := server.RegisterGRPC(grpcServer, server.NewGRPCServer(docs, logger))

	// HTTP server
	httpServer := &http.Server{
		Addr: listenAddr(cfg.Server.HTTPAddr),
		Handler: server.NewHTTPHandler(docs, logger,
			server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
			server.WithExporter(export.NewService(repo, logger)),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var queue *async.ProcessorQueue
	if roots := splitList(*watchDirs); len(roots) > 0 {
		queue = async.NewProcessorQueue(proc, logger,
			async.WithWorkers(cfg.Pipeline.Workers),
			async.WithResultHandler(bootstrap.Persist(repo, logger, nil)),
		)
		if err := watch(ctx, roots, ingest.NewFSIngestor(repo, logger), queue, logger); err != nil {
			logger.Error("failed to start watcher", "roots", roots, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("docprocd listening", "grpc_addr", lis.Addr().String(), "http_addr", httpServer.Addr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", "error", err)
	}
	grpcServer.GracefulStop()
}

// watch feeds files appearing under roots into the queue until ctx ends.
func watch(ctx context.Context, roots []string, ingestor ingest.Ingestor, queue async.Queue, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	paths, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    time.Second,
	}, logger)
	if err != nil {
		return err
	}
	go func() {
		for err := range errs {
			logger.Warn("watcher error", "error", err)
		}
	}()
	go func() {
		for path := range paths {
			r, err := ingestor.IngestPath(ctx, path)
			if err != nil {
				logger.Warn("ingest failed", "path", path, "error", err)
				continue
			}
			_, traceID := common.EnsureRequestID(context.Background())
			err = queue.Enqueue(ctx, async.Job{
				Path:         r.SourcePath,
				HashHex:      r.HashHex,
				Deduplicated: r.Deduplicated,
				SubmittedAt:  time.Now(),
				TraceID:      traceID,
			})
			if err != nil {
				logger.Warn("enqueue failed", "path", path, "trace_id", traceID, "error", err)
			}
		}
	}()
	return nil
}

func listenAddr(addr string) string {
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
