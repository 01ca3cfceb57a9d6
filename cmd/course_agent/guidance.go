package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/course-builder/internal/db"
	"github.com/jonathan/course-builder/internal/guidance"
)

var guidanceCmd = &cobra.Command{
	Use:   "guidance",
	Short: "Manage stage guidance stored in PostgreSQL",
}

var guidanceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append guidance fragments from a markdown file",
	Long:  "Splits a markdown file on \"---\" lines and appends each fragment to the guidance for a stage. Without --subject the guidance applies to every subject.",
	RunE:  runGuidanceAdd,
}

var (
	guidanceStage   string
	guidanceSubject string
	guidanceFile    string
)

func init() {
	guidanceAddCmd.Flags().StringVar(&guidanceStage, "stage", "", "Stage name: survey, curriculum, lesson_plans or lesson_content (required)")
	guidanceAddCmd.Flags().StringVar(&guidanceSubject, "subject", db.DefaultSubject, "Subject the guidance applies to (default: all subjects)")
	guidanceAddCmd.Flags().StringVarP(&guidanceFile, "file", "f", "", "Markdown file with guidance (required)")

	for _, name := range []string{"stage", "file"} {
		if err := guidanceAddCmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}

	guidanceCmd.AddCommand(guidanceAddCmd)
	rootCmd.AddCommand(guidanceCmd)
}

var guidanceStages = map[string]bool{
	"survey":         true,
	"curriculum":     true,
	"lesson_plans":   true,
	"lesson_content": true,
}

func runGuidanceAdd(cmd *cobra.Command, _ []string) error {
	if !guidanceStages[guidanceStage] {
		return fmt.Errorf("unknown stage %q", guidanceStage)
	}
	doc, err := os.ReadFile(guidanceFile)
	if err != nil {
		return fmt.Errorf("failed to read guidance file: %w", err)
	}
	fragments := guidance.Split(string(doc))
	if len(fragments) == 0 {
		return errors.New("guidance file has no content")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("database URL is required (set DATABASE_URL)")
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}

	gs := db.NewGuidanceStore(database)
	for _, fragment := range fragments {
		if err := gs.AddGuidance(ctx, guidanceStage, guidanceSubject, fragment); err != nil {
			return err
		}
	}
	scope := guidanceSubject
	if scope == db.DefaultSubject {
		scope = "all subjects"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %d fragments to %s (%s)\n", len(fragments), guidanceStage, scope)
	return err
}
