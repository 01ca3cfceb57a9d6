package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/course-builder/internal/pipeline"
	"github.com/jonathan/course-builder/internal/types"
)

func TestPrintSurvey(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSurvey(&types.Survey{
		Subject: "Go",
		Questions: []types.Question{
			{ID: "q1", Prompt: "What does defer do?", Difficulty: types.DifficultyEasy},
			{ID: "q2", Prompt: "When does a channel send block?", Difficulty: types.DifficultyHard},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "ASSESSMENT SURVEY")
	assert.Contains(t, output, "Questions:  2 (2 difficulty bands)")
	assert.Contains(t, output, "[easy] What does defer do?")
}

func TestPrintCurriculum(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	c := &types.CurriculumScheme{
		Subject:            "Go",
		SkillLevel:         types.SkillBeginner,
		LearningObjectives: []string{"write programs", "use goroutines", "test code", "ship binaries"},
	}
	for i := range 7 {
		c.Lessons = append(c.Lessons, types.LessonSummary{ID: "l", Title: "Lesson " + string(rune('A'+i)), EstimatedMinutes: 30})
	}

	p.PrintCurriculum(c)
	output := buf.String()

	assert.Contains(t, output, "CURRICULUM")
	assert.Contains(t, output, "Level:    beginner")
	assert.Contains(t, output, "... and 1 more")
	assert.Contains(t, output, "Lessons (7):")
	assert.Contains(t, output, "1. Lesson A (30 min)")
	assert.Contains(t, output, "... and 2 more")
	assert.NotContains(t, output, "Lesson F")
}

func TestPrintLessonPlans(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintLessonPlans(&types.LessonPlanSet{Plans: []types.LessonPlan{{
		LessonID:   "l1",
		Title:      "Slices",
		Structure:  []types.Segment{{Title: "intro", Minutes: 10}, {Title: "practice", Minutes: 25}},
		Activities: []types.Activity{{Name: "append drill"}},
		Assessment: types.Assessment{Type: "quiz"},
	}}})
	output := buf.String()

	assert.Contains(t, output, "LESSON PLANS")
	assert.Contains(t, output, "• Slices")
	assert.Contains(t, output, "[35 min, 1 activities, quiz]")
}

func TestPrintLessonContent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintLessonContent(&types.LessonContent{
		LessonID:   "l1",
		Title:      "Slices",
		Body:       "Slices are views over arrays.",
		Provenance: &types.Provenance{Model: "gemini-2.5-flash", Attempts: 2},
	})
	output := buf.String()

	assert.Contains(t, output, "SLICES")
	assert.Contains(t, output, "Words:   5")
	assert.Contains(t, output, "gemini-2.5-flash (2 attempts)")
}

func TestPrint_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSurvey(nil)
	p.PrintCurriculum(nil)
	p.PrintLessonPlans(nil)
	p.PrintLessonPlans(&types.LessonPlanSet{})
	p.PrintLessonContent(nil)

	assert.Empty(t, buf.String())
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	eta := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	p.PrintProgress(pipeline.Run{
		Status:              pipeline.StatusInProgress,
		Stage:               pipeline.StageContentGeneration,
		Percent:             50,
		Step:                "Writing lesson 2 of 4: Maps",
		LessonsTotal:        4,
		LessonsDone:         1,
		EstimatedCompletion: &eta,
	})
	output := buf.String()

	assert.Equal(t, 15, strings.Count(output, "█"))
	assert.Contains(t, output, " 50.0%")
	assert.Contains(t, output, "(1/4)")
	assert.Contains(t, output, "eta 15:04:05")
}

func TestPrintRunSummary(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf).PrintRunSummary(pipeline.Run{Status: pipeline.StatusCompleted, LessonsTotal: 6})
		assert.Contains(t, buf.String(), "COURSE READY: 6 lessons")
	})

	t.Run("failed", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf).PrintRunSummary(pipeline.Run{
			ID:          uuid.New(),
			Status:      pipeline.StatusFailed,
			FailedStage: pipeline.StageLessonPlanning,
			Error:       "quota exceeded",
			RetryCount:  1,
		})
		output := buf.String()
		assert.Contains(t, output, "RUN FAILED")
		assert.Contains(t, output, "lesson_planning")
		assert.Contains(t, output, "quota exceeded")
		assert.Contains(t, output, "Retries: 1")
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
