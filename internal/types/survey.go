// Package types provides type definitions for the artifacts exchanged between pipeline stages.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "github.com/go-playground/validator/v10"

// SkillLevel is the learner level reported by an assessment.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
)

// Difficulty is the difficulty band of a question or lesson.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TopicPerformance is how a learner did on one topic of an assessment.
type TopicPerformance struct {
	Topic   string  `json:"topic" validate:"required"`
	Score   float64 `json:"score" validate:"gte=0,lte=100"` // percent correct
	Correct int     `json:"correct,omitempty" validate:"gte=0"`
	Total   int     `json:"total,omitempty" validate:"gte=0"`
}

// SurveyResult is the completed assessment a pipeline run starts from.
// It is passed unmodified into the curriculum prompt.
type SurveyResult struct {
	SkillLevel SkillLevel         `json:"skill_level" validate:"required,oneof=beginner intermediate advanced"`
	Topics     []TopicPerformance `json:"topics" validate:"dive"`
	Notes      string             `json:"notes,omitempty"`
}

// Validate validates the SurveyResult using the validator.
func (s *SurveyResult) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// Question is a single assessment question.
type Question struct {
	ID         string     `json:"id"`
	Prompt     string     `json:"prompt"`
	Options    []string   `json:"options,omitempty"`
	Answer     string     `json:"answer,omitempty"`
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
}

// Survey is a generated assessment used to place a learner before a course is built.
type Survey struct {
	Subject    string      `json:"subject"`
	SkillLevel SkillLevel  `json:"skill_level,omitempty"`
	Questions  []Question  `json:"questions"`
	Provenance *Provenance `json:"provenance,omitempty"`
}

// DifficultyBands returns how many distinct difficulty bands the questions span.
func (s *Survey) DifficultyBands() int {
	seen := make(map[Difficulty]struct{})
	for _, q := range s.Questions {
		if q.Difficulty != "" {
			seen[q.Difficulty] = struct{}{}
		}
	}
	return len(seen)
}
