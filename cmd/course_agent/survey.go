package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/course-builder/internal/observability"
	"github.com/jonathan/course-builder/internal/store"
)

var surveyCmd = &cobra.Command{
	Use:   "survey",
	Short: "Generate an assessment survey for a subject",
	Long:  "Generates placement questions across difficulty bands for a subject and stores the survey for the user.",
	RunE:  runSurvey,
}

var (
	surveySubject string
	surveyUserID  string
	surveyOut     string
)

func init() {
	surveyCmd.Flags().StringVarP(&surveySubject, "subject", "s", "", "Survey subject (required)")
	surveyCmd.Flags().StringVarP(&surveyUserID, "user-id", "u", "local", "User the survey is stored under")
	surveyCmd.Flags().StringVarP(&surveyOut, "out", "o", "", "Also write the survey JSON to this file")

	if err := surveyCmd.MarkFlagRequired("subject"); err != nil {
		panic(fmt.Sprintf("failed to mark subject flag as required: %v", err))
	}

	rootCmd.AddCommand(surveyCmd)
}

func runSurvey(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	fragments, err := a.guidance.LoadGuidance(ctx, "survey", surveySubject)
	if err != nil {
		logger.Warn("guidance lookup failed, using defaults", "error", err.Error())
		fragments = nil
	}
	survey, err := a.executor.Survey(ctx, surveySubject, fragments)
	if err != nil {
		return err
	}

	key := store.Key{Kind: store.KindSurvey, UserID: surveyUserID, Subject: surveySubject}
	if err := a.artifacts.Save(ctx, key, survey); err != nil {
		return err
	}

	if surveyOut != "" {
		data, err := json.MarshalIndent(survey, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal survey: %w", err)
		}
		if err := os.WriteFile(surveyOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write survey: %w", err)
		}
	}

	observability.NewPrinter(os.Stdout).PrintSurvey(survey)
	return nil
}
