package stage

import (
	"fmt"
	"unicode/utf8"

	"github.com/jonathan/course-builder/internal/types"
)

func gateSurvey(cfg Config, s *types.Survey) error {
	var reasons []string
	if n := len(s.Questions); n < cfg.MinQuestions || n > cfg.MaxQuestions {
		reasons = append(reasons, fmt.Sprintf("%d questions, want %d to %d", n, cfg.MinQuestions, cfg.MaxQuestions))
	}
	if bands := s.DifficultyBands(); bands < 2 {
		reasons = append(reasons, fmt.Sprintf("questions span %d difficulty band(s), want at least 2", bands))
	}
	return gateResult(KindSurvey, reasons)
}

func gateCurriculum(cfg Config, c *types.CurriculumScheme) error {
	var reasons []string
	if len(c.Lessons) != cfg.LessonCount {
		reasons = append(reasons, fmt.Sprintf("%d lessons, want exactly %d", len(c.Lessons), cfg.LessonCount))
	}
	if len(c.LearningObjectives) == 0 {
		reasons = append(reasons, "no learning objectives")
	}
	seen := make(map[string]bool, len(c.Lessons))
	for i, l := range c.Lessons {
		switch {
		case l.ID == "":
			reasons = append(reasons, fmt.Sprintf("lesson %d has no id", i+1))
		case seen[l.ID]:
			reasons = append(reasons, fmt.Sprintf("duplicate lesson id %q", l.ID))
		}
		seen[l.ID] = true
		if l.Title == "" {
			reasons = append(reasons, fmt.Sprintf("lesson %d has no title", i+1))
		}
		if len(l.Topics) == 0 {
			reasons = append(reasons, fmt.Sprintf("lesson %d has no topics", i+1))
		}
	}
	return gateResult(KindCurriculum, reasons)
}

func gateLessonPlans(c *types.CurriculumScheme, set *types.LessonPlanSet) error {
	var reasons []string
	if len(set.Plans) != len(c.Lessons) {
		reasons = append(reasons, fmt.Sprintf("%d plans for %d lessons", len(set.Plans), len(c.Lessons)))
	}
	for _, id := range c.LessonIDs() {
		if _, ok := set.Plan(id); !ok {
			reasons = append(reasons, fmt.Sprintf("no plan for lesson %q", id))
		}
	}
	for _, p := range set.Plans {
		if len(p.Objectives) == 0 {
			reasons = append(reasons, fmt.Sprintf("plan %q has no objectives", p.LessonID))
		}
		if len(p.Structure) == 0 {
			reasons = append(reasons, fmt.Sprintf("plan %q has no structure", p.LessonID))
		}
		for _, seg := range p.Structure {
			if seg.Minutes <= 0 {
				reasons = append(reasons, fmt.Sprintf("plan %q segment %q has no duration", p.LessonID, seg.Title))
				break
			}
		}
	}
	return gateResult(KindLessonPlans, reasons)
}

func gateLessonContent(cfg Config, c *types.LessonContent) error {
	if n := utf8.RuneCountInString(c.Body); n < cfg.MinContentChars {
		return &QualityGateError{
			Kind:    KindLessonContent,
			Reasons: []string{fmt.Sprintf("body is %d characters, want at least %d", n, cfg.MinContentChars)},
		}
	}
	return nil
}

func gateResult(kind Kind, reasons []string) error {
	if len(reasons) == 0 {
		return nil
	}
	return &QualityGateError{Kind: kind, Reasons: reasons}
}
