package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/course-builder/internal/config"
	"github.com/jonathan/course-builder/internal/observability"
	"github.com/jonathan/course-builder/internal/pipeline"
	"github.com/jonathan/course-builder/internal/store"
	"github.com/jonathan/course-builder/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a full course from a completed survey",
	Long: `Runs the course pipeline end-to-end in the foreground: curriculum -> lesson plans -> lesson content.

Artifacts are written to the configured store; --out switches to a file store rooted at the given directory.`,
	RunE: runCourse,
}

var (
	runSubject    string
	runSurveyPath string
	runUserID     string
	runOutDir     string
)

func init() {
	runCmd.Flags().StringVarP(&runSubject, "subject", "s", "", "Course subject (required)")
	runCmd.Flags().StringVar(&runSurveyPath, "survey-result", "", "Path to survey result JSON (required)")
	runCmd.Flags().StringVarP(&runUserID, "user-id", "u", "local", "User the artifacts are stored under")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "Directory for artifacts (overrides store settings)")

	if err := runCmd.MarkFlagRequired("subject"); err != nil {
		panic(fmt.Sprintf("failed to mark subject flag as required: %v", err))
	}
	if err := runCmd.MarkFlagRequired("survey-result"); err != nil {
		panic(fmt.Sprintf("failed to mark survey-result flag as required: %v", err))
	}

	rootCmd.AddCommand(runCmd)
}

func runCourse(_ *cobra.Command, _ []string) error {
	survey, err := readSurveyResult(runSurveyPath)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if runOutDir != "" {
		cfg.Store = config.StoreConfig{Backend: config.StoreFile, Dir: runOutDir}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	orch := pipeline.New(a.executor, a.artifacts, a.guidance, pipeline.Options{
		MaxConcurrentRuns: 1,
		Logger:            logger.With("component", "pipeline"),
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = orch.Shutdown(shutdownCtx)
	}()

	id, err := orch.Start(ctx, runUserID, runSubject, survey)
	if err != nil {
		return err
	}
	printer := observability.NewPrinter(os.Stdout)
	unsubscribe, err := orch.Subscribe(id, func(run pipeline.Run) error {
		printer.PrintProgress(run)
		return nil
	})
	if err == nil {
		defer unsubscribe()
	}

	run, err := orch.Wait(ctx, id)
	if err != nil {
		// interrupted: stop the worker before reporting
		orch.Cancel(id)
		return fmt.Errorf("run %s interrupted: %w", id, err)
	}
	printer.PrintRunSummary(run)
	if run.Status != pipeline.StatusCompleted {
		return fmt.Errorf("run %s %s: %s", id, run.Status, run.Error)
	}

	if verbose {
		printArtifacts(ctx, printer, a.artifacts, run)
	}
	return nil
}

// readSurveyResult loads and validates a survey result file.
func readSurveyResult(path string) (*types.SurveyResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read survey result: %w", err)
	}
	var survey types.SurveyResult
	if err := json.Unmarshal(data, &survey); err != nil {
		return nil, fmt.Errorf("failed to parse survey result %s: %w", path, err)
	}
	if err := survey.Validate(); err != nil {
		return nil, fmt.Errorf("invalid survey result %s: %w", path, err)
	}
	return &survey, nil
}

func printArtifacts(ctx context.Context, printer *observability.Printer, artifacts store.Store, run pipeline.Run) {
	base := store.Key{UserID: run.UserID, Subject: run.Subject}

	var curriculum types.CurriculumScheme
	key := base
	key.Kind = store.KindCurriculum
	if err := artifacts.Load(ctx, key, &curriculum); err == nil {
		printer.PrintCurriculum(&curriculum)
	}

	var plans types.LessonPlanSet
	key.Kind = store.KindLessonPlans
	if err := artifacts.Load(ctx, key, &plans); err != nil {
		return
	}
	printer.PrintLessonPlans(&plans)
	for _, plan := range plans.Plans {
		var content types.LessonContent
		key := base
		key.Kind, key.LessonID = store.KindLessonContent, plan.LessonID
		if err := artifacts.Load(ctx, key, &content); err == nil {
			printer.PrintLessonContent(&content)
		}
	}
}
