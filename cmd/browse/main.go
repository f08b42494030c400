package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/photogrid/internal/config"
	"github.com/timmy/photogrid/internal/feed"
	"github.com/timmy/photogrid/internal/grid"
	"github.com/timmy/photogrid/internal/logger"
	"github.com/timmy/photogrid/internal/source"
	"github.com/timmy/photogrid/internal/source/unsplash"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "photogrid-browse",
	})
	logger.SetDefaultLogger(appLogger)

	configPath := flag.String("config", "", "Path to config file")
	pages := flag.Int("pages", 3, "Number of pages to load")
	retries := flag.Int("retries", 2, "Retries per failed page, transient failures only")
	policyName := flag.String("empty-page", "", "Empty page policy override: continue or end")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *policyName != "" {
		cfg.Feed.EmptyPagePolicy = *policyName
	}
	policy, err := feed.ParseEmptyPagePolicy(cfg.Feed.EmptyPagePolicy)
	if err != nil {
		appLogger.WithError(err).Fatal("Invalid empty page policy")
	}

	ctx, cancel := context.WithCancel(appLogger.WithContext(context.Background()))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	fetcher := unsplash.NewAdapter(&unsplash.Config{
		BaseURL:   cfg.Unsplash.BaseURL,
		AccessKey: cfg.Unsplash.AccessKey,
		PerPage:   cfg.Unsplash.PerPage,
		Timeout:   cfg.Unsplash.Timeout,
	})
	state := grid.New(grid.WithDedupe(cfg.Feed.Dedupe))
	loader := feed.NewLoader(ctx, fetcher, state, &feed.Options{EmptyPagePolicy: policy})
	defer loader.Close()

	appLogger.WithFields(logger.Fields{
		"pages":    *pages,
		"per_page": fetcher.PerPage(),
		"policy":   string(policy),
		"source":   fetcher.GetSourceID(),
	}).Info("Starting browse")

	if err := browse(ctx, loader, *pages, *retries); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.WithError(err).Fatal("Browse failed")
	}

	printRows(state.Snapshot())
}

// browse loads up to pages pages, retrying transient failures in place.
func browse(ctx context.Context, loader *feed.Loader, pages, retries int) error {
	for loaded := 0; loaded < pages; {
		var u feed.Update
		var err error
		for attempt := 0; ; attempt++ {
			u, err = loader.LoadNextWait(ctx)
			if err != nil {
				if errors.Is(err, feed.ErrExhausted) {
					logger.CtxInfo(ctx, "Feed exhausted after %d pages", loaded)
					return nil
				}
				return err
			}
			if !u.Failed() || !source.IsTransient(u.Err) || attempt >= retries {
				break
			}
			backoff := time.Duration(attempt+1) * 500 * time.Millisecond
			logger.CtxWarn(ctx, "Page %d failed, retrying in %v: %v", u.PageNumber, backoff, u.Err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if u.Failed() {
			return fmt.Errorf("page %d: %w", u.PageNumber, u.Err)
		}

		logger.With(logger.Fields{
			logger.FieldPage:       u.PageNumber,
			logger.FieldCount:      u.Added,
			logger.FieldDurationMs: u.Duration.Milliseconds(),
		}).Info(ctx, "Loaded page, %d photos total", u.Total)
		loaded++
	}
	return nil
}

func printRows(snap grid.Snapshot) {
	for i, row := range snap.Rows() {
		fmt.Printf("row %3d  h=%-5.0f", i, row.Height)
		for _, cell := range row.Cells {
			label := cell.Photo.Label
			if label == "" {
				label = "-"
			}
			fmt.Printf("  [%s %dx%d w=%.4f %s]", cell.Photo.ID, cell.Photo.Width, cell.Photo.Height, cell.Weight, label)
		}
		fmt.Println()
	}
}
