package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/course-builder/internal/llm"
	"github.com/jonathan/course-builder/internal/prompts"
	"github.com/jonathan/course-builder/internal/schemas"
	"github.com/jonathan/course-builder/internal/structured"
	"github.com/jonathan/course-builder/internal/types"
)

type kindSpec struct {
	promptFile string
	tier       llm.ModelTier
	json       bool
	maxTokens  int32
	check      func(in Input) error
	data       func(cfg Config, in Input) (map[string]string, error)
	// accept turns raw model text into a gated artifact
	accept func(cfg Config, in Input, text string) (*Artifact, error)
}

func (k kindSpec) prompt(cfg Config, in Input) (string, error) {
	data, err := k.data(cfg, in)
	if err != nil {
		return "", err
	}
	return prompts.Render(k.promptFile, in.Guidance, data)
}

var kindSpecs = map[Kind]kindSpec{
	KindSurvey: {
		promptFile: "survey.json",
		tier:       llm.TierLite,
		json:       true,
		maxTokens:  4096,
		check:      requireSubject,
		data: func(cfg Config, in Input) (map[string]string, error) {
			return map[string]string{
				"Subject":      in.Subject,
				"MinQuestions": strconv.Itoa(cfg.MinQuestions),
				"MaxQuestions": strconv.Itoa(cfg.MaxQuestions),
			}, nil
		},
		accept: func(cfg Config, in Input, text string) (*Artifact, error) {
			var survey types.Survey
			raw, err := decodeJSON(text, schemas.KindSurvey, KindSurvey, &survey)
			if err != nil {
				return nil, err
			}
			if survey.Subject == "" {
				survey.Subject = in.Subject
			}
			if err := gateSurvey(cfg, &survey); err != nil {
				return nil, err
			}
			return &Artifact{Raw: raw, Value: &survey}, nil
		},
	},
	KindCurriculum: {
		promptFile: "curriculum.json",
		tier:       llm.TierStandard,
		json:       true,
		maxTokens:  8192,
		check: func(in Input) error {
			if err := requireSubject(in); err != nil {
				return err
			}
			if in.Survey == nil {
				return fmt.Errorf("%w: curriculum needs a survey result", ErrMissingInput)
			}
			return nil
		},
		data: func(cfg Config, in Input) (map[string]string, error) {
			survey, err := json.MarshalIndent(in.Survey, "", "  ")
			if err != nil {
				return nil, err
			}
			return map[string]string{
				"Subject":     in.Subject,
				"SkillLevel":  string(in.Survey.SkillLevel),
				"Survey":      string(survey),
				"LessonCount": strconv.Itoa(cfg.LessonCount),
			}, nil
		},
		accept: func(cfg Config, in Input, text string) (*Artifact, error) {
			var curriculum types.CurriculumScheme
			raw, err := decodeJSON(text, schemas.KindCurriculum, KindCurriculum, &curriculum)
			if err != nil {
				return nil, err
			}
			if curriculum.Subject == "" {
				curriculum.Subject = in.Subject
			}
			if curriculum.SkillLevel == "" {
				curriculum.SkillLevel = in.Survey.SkillLevel
			}
			if err := gateCurriculum(cfg, &curriculum); err != nil {
				return nil, err
			}
			return &Artifact{Raw: raw, Value: &curriculum}, nil
		},
	},
	KindLessonPlans: {
		promptFile: "lesson_plans.json",
		tier:       llm.TierStandard,
		json:       true,
		maxTokens:  16384,
		check: func(in Input) error {
			if in.Curriculum == nil || len(in.Curriculum.Lessons) == 0 {
				return fmt.Errorf("%w: lesson planning needs a curriculum with lessons", ErrMissingInput)
			}
			return nil
		},
		data: func(_ Config, in Input) (map[string]string, error) {
			outline := *in.Curriculum
			outline.Provenance = nil
			curriculum, err := json.MarshalIndent(outline, "", "  ")
			if err != nil {
				return nil, err
			}
			return map[string]string{
				"Subject":    subjectOf(in),
				"Curriculum": string(curriculum),
			}, nil
		},
		accept: func(_ Config, in Input, text string) (*Artifact, error) {
			var plans types.LessonPlanSet
			raw, err := decodeJSON(text, schemas.KindLessonPlans, KindLessonPlans, &plans)
			if err != nil {
				return nil, err
			}
			if plans.Subject == "" {
				plans.Subject = subjectOf(in)
			}
			if err := gateLessonPlans(in.Curriculum, &plans); err != nil {
				return nil, err
			}
			return &Artifact{Raw: raw, Value: &plans}, nil
		},
	},
	KindLessonContent: {
		promptFile: "lesson_content.json",
		tier:       llm.TierAdvanced,
		json:       false,
		maxTokens:  16384,
		check: func(in Input) error {
			if in.Plan == nil || in.Plan.LessonID == "" {
				return fmt.Errorf("%w: lesson content needs a lesson plan", ErrMissingInput)
			}
			return nil
		},
		data: func(cfg Config, in Input) (map[string]string, error) {
			plan, err := json.MarshalIndent(in.Plan, "", "  ")
			if err != nil {
				return nil, err
			}
			return map[string]string{
				"Subject":    in.Subject,
				"LessonPlan": string(plan),
				"MinChars":   strconv.Itoa(cfg.MinContentChars),
			}, nil
		},
		accept: func(cfg Config, in Input, text string) (*Artifact, error) {
			body := strings.TrimSpace(text)
			content := &types.LessonContent{
				LessonID:  in.Plan.LessonID,
				Title:     in.Plan.Title,
				Body:      body,
				WordCount: types.CountWords(body),
			}
			if err := gateLessonContent(cfg, content); err != nil {
				return nil, err
			}
			return &Artifact{Raw: body, Value: content}, nil
		},
	},
}

// decodeJSON extracts the payload, checks it against the schema and decodes it into v.
// Schema violations are reported as quality gate rejections so they are retried.
func decodeJSON(text string, schema schemas.Kind, kind Kind, v any) (string, error) {
	raw, err := structured.Raw(text)
	if err != nil {
		return "", err
	}
	if err := schemas.Validate(schema, raw); err != nil {
		var ve *schemas.ValidationError
		if errors.As(err, &ve) {
			return "", &QualityGateError{Kind: kind, Reasons: []string{"schema: " + ve.Summary()}}
		}
		return "", err
	}
	if err := structured.Decode(string(raw), v); err != nil {
		return "", err
	}
	return string(raw), nil
}

func requireSubject(in Input) error {
	if strings.TrimSpace(in.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrMissingInput)
	}
	return nil
}

func subjectOf(in Input) string {
	if in.Subject != "" {
		return in.Subject
	}
	if in.Curriculum != nil {
		return in.Curriculum.Subject
	}
	return ""
}
