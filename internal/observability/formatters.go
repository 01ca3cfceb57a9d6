// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/course-builder/internal/pipeline"
	"github.com/jonathan/course-builder/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// progressBarWidth is the number of cells in a progress bar
	progressBarWidth = 30
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintSurvey outputs the generated assessment questions grouped by difficulty.
func (p *Printer) PrintSurvey(survey *types.Survey) {
	if survey == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Subject:    %s\n", survey.Subject))
	sb.WriteString(fmt.Sprintf("Questions:  %d (%d difficulty bands)\n", len(survey.Questions), survey.DifficultyBands()))
	sb.WriteString("\n")

	count := min(len(survey.Questions), maxItemsToShow)
	for i := 0; i < count; i++ {
		q := survey.Questions[i]
		sb.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, q.Difficulty, truncate(q.Prompt, 40)))
	}
	if len(survey.Questions) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more questions\n", len(survey.Questions)-maxItemsToShow))
	}

	p.printBox("ASSESSMENT SURVEY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCurriculum outputs the course outline.
func (p *Printer) PrintCurriculum(c *types.CurriculumScheme) {
	if c == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Subject:  %s\n", c.Subject))
	if c.SkillLevel != "" {
		sb.WriteString(fmt.Sprintf("Level:    %s\n", c.SkillLevel))
	}
	sb.WriteString("\n")

	if len(c.LearningObjectives) > 0 {
		sb.WriteString("Objectives:\n")
		count := min(len(c.LearningObjectives), 3)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", c.LearningObjectives[i]))
		}
		if len(c.LearningObjectives) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(c.LearningObjectives)-3))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Lessons (%d):\n", len(c.Lessons)))
	count := min(len(c.Lessons), maxItemsToShow)
	for i := 0; i < count; i++ {
		l := c.Lessons[i]
		sb.WriteString(fmt.Sprintf("  %d. %s", i+1, l.Title))
		if l.EstimatedMinutes > 0 {
			sb.WriteString(fmt.Sprintf(" (%d min)", l.EstimatedMinutes))
		}
		sb.WriteString("\n")
	}
	if len(c.Lessons) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(c.Lessons)-maxItemsToShow))
	}

	p.printBox("CURRICULUM", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintLessonPlans outputs one line per plan with its duration and assessment.
func (p *Printer) PrintLessonPlans(set *types.LessonPlanSet) {
	if set == nil || len(set.Plans) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Planned %d lessons:\n\n", len(set.Plans)))

	count := min(len(set.Plans), maxItemsToShow)
	for i := 0; i < count; i++ {
		plan := set.Plans[i]
		sb.WriteString(fmt.Sprintf("• %s\n", plan.Title))
		details := []string{fmt.Sprintf("%d min", plan.TotalMinutes())}
		if n := len(plan.Activities); n > 0 {
			details = append(details, fmt.Sprintf("%d activities", n))
		}
		if plan.Assessment.Type != "" {
			details = append(details, plan.Assessment.Type)
		}
		sb.WriteString(fmt.Sprintf("  [%s]\n", strings.Join(details, ", ")))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(set.Plans) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more plans", len(set.Plans)-maxItemsToShow))
	}

	p.printBox("LESSON PLANS", sb.String())
}

// PrintLessonContent outputs a short summary of a written lesson.
func (p *Printer) PrintLessonContent(content *types.LessonContent) {
	if content == nil {
		return
	}

	words := content.WordCount
	if words == 0 {
		words = types.CountWords(content.Body)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Lesson:  %s\n", content.LessonID))
	sb.WriteString(fmt.Sprintf("Words:   %d\n", words))
	if content.Provenance != nil {
		sb.WriteString(fmt.Sprintf("Model:   %s (%d attempts)\n", content.Provenance.Model, content.Provenance.Attempts))
	}

	p.printBox(strings.ToUpper(content.Title), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProgress outputs a one-line progress bar for a run snapshot.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(run pipeline.Run) {
	filled := int(run.Percent / 100 * progressBarWidth)
	filled = max(0, min(filled, progressBarWidth))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)

	line := fmt.Sprintf("[%s] %5.1f%%  %s", bar, run.Percent, run.Step)
	if run.LessonsTotal > 0 && run.Stage == pipeline.StageContentGeneration {
		line += fmt.Sprintf(" (%d/%d)", run.LessonsDone, run.LessonsTotal)
	}
	if run.EstimatedCompletion != nil && !run.Status.Terminal() {
		line += fmt.Sprintf("  eta %s", run.EstimatedCompletion.Format("15:04:05"))
	}
	fmt.Fprintln(p.out, line)
}

// PrintRunSummary outputs the final state of a run.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintRunSummary(run pipeline.Run) {
	if run.Status == pipeline.StatusCompleted {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, fmt.Sprintf("✅ COURSE READY: %d lessons", run.LessonsTotal))
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:     %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Status:  %s\n", run.Status))
	if run.FailedStage != "" {
		sb.WriteString(fmt.Sprintf("Stage:   %s\n", run.FailedStage))
	}
	if run.Error != "" {
		sb.WriteString(fmt.Sprintf("⚠ %s\n", run.Error))
	}
	if run.RetryCount > 0 {
		sb.WriteString(fmt.Sprintf("Retries: %d\n", run.RetryCount))
	}

	p.printBox("RUN "+strings.ToUpper(string(run.Status)), strings.TrimSuffix(sb.String(), "\n"))
}
