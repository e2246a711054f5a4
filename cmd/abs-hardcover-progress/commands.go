package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/drallgood/abs-hardcover-progress/internal/api/hardcover"
	"github.com/drallgood/abs-hardcover-progress/internal/cache"
	"github.com/drallgood/abs-hardcover-progress/internal/server"
	"github.com/drallgood/abs-hardcover-progress/internal/sync"
)

func runSync(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.service()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	printSummary(c.App.Writer, summary)
	if summary.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d book(s) failed to sync", summary.Failed), 2)
	}
	return nil
}

func printSummary(w io.Writer, s *sync.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tTITLE\tIDENTIFIER\tREASON")
	for _, o := range s.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Status, o.Title, o.Identifier, o.Reason)
	}
	_ = tw.Flush()

	prefix := ""
	if s.DryRun {
		prefix = "[dry run] "
	}
	fmt.Fprintf(w, "\n%s%s (took %s)\n", prefix, s.String(), s.Duration().Round(time.Millisecond))
}

func runServe(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.service()
	if err != nil {
		return err
	}

	srv := server.New(":"+a.cfg.Server.Port, server.Deps{
		Syncer:  svc,
		Stats:   a.cache,
		History: a.history,
		Health:  a.health,
	}, a.log)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		schedule(gctx, a.cfg.Sync.Interval, srv, a)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("Shutdown completed")
	return nil
}

// schedule runs a sync immediately and then once per interval until ctx is
// done. A non-positive interval disables the periodic runs.
func schedule(ctx context.Context, interval time.Duration, srv *server.Server, a *app) {
	if interval <= 0 {
		a.log.Info("Periodic sync disabled")
		return
	}

	trigger := func() {
		summary, err := srv.TriggerSync(ctx)
		switch {
		case errors.Is(err, server.ErrSyncInProgress):
			a.log.Info("Skipping scheduled sync, another run is active")
		case err != nil:
			a.log.Error("Scheduled sync failed", map[string]interface{}{
				"error": err.Error(),
			})
		default:
			a.log.Info("Scheduled sync finished", map[string]interface{}{
				"summary": summary.String(),
			})
		}
	}

	a.log.Info("Starting periodic sync", map[string]interface{}{
		"interval": interval.String(),
	})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	trigger()
	for {
		select {
		case <-ticker.C:
			trigger()
		case <-ctx.Done():
			return
		}
	}
}

func cacheStats(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.cache.Stats(c.Context)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total books:\t%d\n", stats.TotalBooks)
	fmt.Fprintf(tw, "With variant:\t%d\n", stats.BooksWithVariants)
	fmt.Fprintf(tw, "With progress:\t%d\n", stats.BooksWithProgress)
	fmt.Fprintf(tw, "Storage bytes:\t%d\n", stats.StorageBytes)
	return tw.Flush()
}

func cacheClear(c *cli.Context) error {
	if !c.Bool("yes") {
		return cli.Exit("refusing to clear the cache without --yes", 1)
	}

	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cache.Clear(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Cache cleared")
	return nil
}

func cacheExport(c *cli.Context) error {
	format, err := cache.ParseExportFormat(c.String("format"))
	if err != nil {
		return err
	}

	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	w := c.App.Writer
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return a.cache.Export(c.Context, w, format)
}

func cacheAuthor(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	userID := c.String("user")
	if userID == "" {
		userID = a.cfg.Sync.UserID
	}
	if userID == "" {
		hc := hardcover.NewClient(a.cfg.HardcoverConfig(), a.cfg.Hardcover.Token, a.log)
		id, err := hc.CurrentUserID(c.Context)
		if err != nil {
			return fmt.Errorf("failed to resolve user id: %w", err)
		}
		userID = strconv.Itoa(id)
	}

	recs, err := a.cache.BooksByAuthor(c.Context, userID, c.String("name"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tIDENTIFIER\tVARIANT\tPROGRESS\tUPDATED")
	for _, r := range recs {
		variant := "-"
		if r.VariantID != nil {
			variant = fmt.Sprint(*r.VariantID)
		}
		fmt.Fprintf(tw, "%s\t%s:%s\t%s\t%.1f%%\t%s\n",
			r.Title, r.IdentifierKind, r.Identifier, variant, r.ProgressPercent, r.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func listHistory(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	if d := c.Duration("prune-older-than"); d > 0 {
		n, err := a.history.Prune(c.Context, time.Now().Add(-d))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Pruned %d run(s)\n", n)
	}

	runs, err := a.history.Recent(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDURATION\tTOTAL\tSYNCED\tCOMPLETED\tADDED\tSKIPPED\tFAILED\tDRY RUN")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%t\n",
			r.StartedAt.Format(time.RFC3339), r.Duration().Round(time.Millisecond),
			r.Total, r.Synced, r.Completed, r.AutoAdded, r.Skipped, r.Failed, r.DryRun)
	}
	return tw.Flush()
}
