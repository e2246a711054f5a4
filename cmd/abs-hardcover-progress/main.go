// Command abs-hardcover-progress mirrors Audiobookshelf listening progress
// into a Hardcover reading library.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/drallgood/abs-hardcover-progress/internal/history"
	"github.com/drallgood/abs-hardcover-progress/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func init() {
	logger.Setup(logger.Config{
		Level:      "info",
		Format:     logger.FormatJSON,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	})
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Get().Error("Error running application", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "abs-hardcover-progress",
		Usage:   "Sync Audiobookshelf listening progress to Hardcover",
		Version: fmt.Sprintf("%s (%s) %s", version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (json, console)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Resolve editions and statuses without writing anything",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of books reconciled concurrently",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Run one reconciliation pass and print the summary",
				Action: runSync,
			},
			{
				Name:   "serve",
				Usage:  "Sync periodically and expose the HTTP API",
				Action: runServe,
			},
			{
				Name:  "cache",
				Usage: "Inspect or reset the progress cache",
				Subcommands: []*cli.Command{
					{
						Name:   "stats",
						Usage:  "Show cache statistics",
						Action: cacheStats,
					},
					{
						Name:  "clear",
						Usage: "Delete every cached book",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "yes", Usage: "Confirm deletion"},
						},
						Action: cacheClear,
					},
					{
						Name:  "export",
						Usage: "Write the cache contents as a document",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "json or yaml"},
							&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output `FILE` (default stdout)"},
						},
						Action: cacheExport,
					},
					{
						Name:  "author",
						Usage: "List cached books by author",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Required: true, Usage: "Author name"},
							&cli.StringFlag{Name: "user", Usage: "Cache user id (default: sync.user_id)"},
						},
						Action: cacheAuthor,
					},
				},
			},
			{
				Name:  "history",
				Usage: "List recent sync runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: history.DefaultLimit},
					&cli.DurationFlag{Name: "prune-older-than", Usage: "Delete runs older than `DURATION` first"},
				},
				Action: listHistory,
			},
		},
	}
}
