package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacc-ai/jacc-core/internal/ingest"
)

func newIngestCmd() *cobra.Command {
	var (
		namespace string
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Ingest text and markdown documents into the index",
		Long: `Ingest walks a directory, splits every .txt/.md file into
sentence-aligned chunks and indexes them for keyword and vector search.

With --watch it keeps running and re-ingests files as they change.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args[0], namespace, watch)
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "default", "Vector index namespace for the ingested documents")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep watching the directory and re-ingest on changes")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, dir, namespace string, watch bool) error {
	a, err := newApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	lock := ingest.NewIndexLock(a.cfg.Paths.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another jacc process is ingesting into %s", a.cfg.Paths.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	out := newPrinter(cmd.OutOrStdout())
	start := time.Now()

	files, chunks, err := a.ingestor.IngestDir(ctx, dir, namespace)
	if err != nil {
		return err
	}
	if err := a.saveVectors(); err != nil {
		return fmt.Errorf("persist vector index: %w", err)
	}

	out.Successf("Ingested %d files (%d chunks) in %s", files, chunks, time.Since(start).Round(time.Millisecond))

	if !watch {
		return nil
	}

	debounce, _ := time.ParseDuration(a.cfg.Ingest.WatchDebounce)
	watcher := ingest.NewWatcher(a.ingestor, namespace, debounce, a.logger)

	watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out.Infof("Watching %s for changes (Ctrl+C to stop)", dir)
	if err := watcher.Run(watchCtx, dir); err != nil && watchCtx.Err() == nil {
		return err
	}

	// Persist whatever the watcher ingested before shutdown.
	return a.saveVectors()
}
