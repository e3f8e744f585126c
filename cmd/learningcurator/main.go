package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"LearningCurator/internal/app"
	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
	"LearningCurator/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "learningcurator",
		Short:        "Curates weekly learning picks per technology into the status document",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newRunCommand(), newFetchCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the trigger endpoints and the optional in-process schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("application setup failed", "error", err)
				return err
			}
			defer application.Close()

			if err := application.Serve(cmd.Context()); err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the selection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("application setup failed", "error", err)
				return err
			}
			defer application.Close()

			summary, err := application.RunOnce(cmd.Context(), dryRun)
			if err != nil {
				logger.Error("run failed", "error", err)
				return err
			}

			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the selection without writing the status document")
	return cmd
}

func newFetchCommand() *cobra.Command {
	var board string

	cmd := &cobra.Command{
		Use:   "fetch <source> <keyword> [keyword...]",
		Short: "Query one source and print its raw items without curating",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("application setup failed", "error", err)
				return err
			}
			defer application.Close()

			topic := domain.Topic{Name: args[1], Keywords: args[1:], Board: board}
			result, err := application.FetchSource(cmd.Context(), args[0], topic)
			if err != nil {
				return fmt.Errorf("%w (registered: %s)", err, strings.Join(application.SourceNames(), ", "))
			}

			printFetch(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&board, "board", "", "discussion board override for the reddit source")
	return cmd
}

func printFetch(w io.Writer, result domain.FetchResult) {
	items := table.NewWriter()
	items.SetOutputMirror(w)
	items.SetTitle(fmt.Sprintf("%s: %s", result.Source, result.Status))
	items.AppendHeader(table.Row{"#", "Published", "Score", "Title", "URL"})
	for i, item := range result.Items {
		score := ""
		if item.Score != nil {
			score = fmt.Sprintf("%.0f", *item.Score)
		}
		items.AppendRow(table.Row{i + 1, item.PublishedAt.Format(time.DateOnly), score, item.Title, item.URL})
	}
	if result.Err != nil {
		items.AppendFooter(table.Row{"", "", "", "error", result.Err.Error()})
	}
	items.SetStyle(table.StyleLight)
	items.Render()
}

func printSummary(w io.Writer, summary domain.RunSummary) {
	topics := table.NewWriter()
	topics.SetOutputMirror(w)
	topics.SetTitle("Topics")
	topics.AppendHeader(table.Row{"Topic", "Raw", "Curated", "Strategy", "Reason"})
	for _, t := range summary.Topics {
		topics.AppendRow(table.Row{t.Topic, t.Raw, t.Curated, t.Strategy, t.Reason})
	}
	topics.SetStyle(table.StyleLight)
	topics.Render()

	picks := table.NewWriter()
	picks.SetOutputMirror(w)
	picks.SetTitle("Selection")
	picks.AppendHeader(table.Row{"#", "Topic", "Title", "URL"})
	for i, item := range summary.Items {
		picks.AppendRow(table.Row{i + 1, item.Topic, item.Title, item.URL})
	}
	picks.AppendFooter(table.Row{"", "", "written", summary.Written})
	picks.SetStyle(table.StyleLight)
	picks.Render()
}
