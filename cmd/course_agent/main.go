// Package main provides the course_agent CLI: the HTTP API server plus
// one-shot commands for generating surveys and courses from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "course_agent",
	Short: "Personalized course generation service",
	Long: `course_agent builds personalized courses with a generative model: an assessment survey,
then a curriculum, lesson plans and lesson content tailored to the learner's results.

Settings come from course_agent.yaml (or --config) and COURSE_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default ./course_agent.{yaml,json,toml})")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed progress information")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
