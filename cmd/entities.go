package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/libratom/libratom/internal/config"
	"github.com/libratom/libratom/internal/pipeline"
	"github.com/libratom/libratom/internal/tui"
)

var (
	outPath         string
	jobs            int
	modelName       string
	showProgress    bool
	includeContents bool
)

var entitiesCmd = &cobra.Command{
	Use:   "entities [flags] PATH",
	Short: "Extract named entities from a mail container or a tree of them",
	Long: `Enumerates PST/OST and mbox files under PATH, parses every message,
runs named-entity recognition over message bodies and records file reports,
messages, attachments and entities in the output database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, args[0], true)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report [flags] PATH",
	Short: "Record file, message and attachment facts without entity extraction",
	Long: `Runs the same pipeline as 'entities' with the recognition step elided:
file reports, messages and attachments are recorded, entity tables stay
empty.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, args[0], false)
	},
}

func runPipeline(cmd *cobra.Command, src string, extract bool) error {
	logger := getLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg.Source = src
	cfg.ExtractEntities = extract
	if cmd.Flags().Changed("out") || cfg.OutputPath == "" {
		cfg.OutputPath = outPath
	}
	if cmd.Flags().Changed("jobs") {
		cfg.Jobs = jobs
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = modelName
	}
	if cmd.Flags().Changed("progress") {
		cfg.Progress = showProgress
	}
	cfg.IncludeMessageContents = includeContents

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracker := &pipeline.Tracker{}
	done := make(chan struct{})

	var result *pipeline.Result
	var runErr error
	go func() {
		defer close(done)
		result, runErr = pipeline.Run(runCtx, cfg, pipeline.DefaultDeps(), logger, tracker)
	}()

	if cfg.Progress {
		if err := tui.Run(tracker, done, cancel); err != nil {
			logger.Warn("progress monitor failed, run continues", "error", err)
		}
	} else {
		go logProgress(tracker, done, logger)
	}
	<-done

	if runErr != nil {
		return runErr
	}
	printSummary(result)
	return nil
}

// logProgress emits a periodic one-line status while the run is active.
func logProgress(tracker *pipeline.Tracker, done <-chan struct{}, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s := tracker.Snapshot()
			logger.Info("progress",
				slog.Int64("files_done", s.FilesDone()),
				slog.Int64("files_total", s.FilesTotal),
				slog.Int64("messages", s.Messages),
				slog.Int64("entities", s.Entities),
			)
		}
	}
}

func printSummary(result *pipeline.Result) {
	c := result.Counters
	fmt.Fprintf(os.Stdout, "%s: %d files / %d messages / %d entities processed\n",
		result.State, c.FilesDone(), c.Messages, c.Entities)
	if len(result.Failed) > 0 {
		fmt.Fprintf(os.Stdout, "%d file(s) failed:\n", len(result.Failed))
		for _, f := range result.Failed {
			fmt.Fprintf(os.Stdout, "  %s: %s\n", f.Path, f.Reason)
		}
	}
}

func init() {
	for _, c := range []*cobra.Command{entitiesCmd, reportCmd} {
		c.Flags().StringVarP(&outPath, "out", "o", "ratom.sqlite3", "output database path")
		c.Flags().IntVarP(&jobs, "jobs", "j", config.DefaultJobs, "number of concurrent workers")
		c.Flags().BoolVarP(&showProgress, "progress", "p", false, "show interactive progress")
		c.Flags().BoolVar(&includeContents, "include-message-contents", false, "store message bodies and headers")
	}
	entitiesCmd.Flags().StringVarP(&modelName, "model", "m", config.DefaultModel, "recognizer model name")
}
