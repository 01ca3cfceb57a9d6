package stage

import (
	"context"

	"github.com/jonathan/course-builder/internal/types"
)

// Survey generates a placement assessment for subject.
func (e *Executor) Survey(ctx context.Context, subject string, guidance []string) (*types.Survey, error) {
	a, err := e.RunStage(ctx, Input{Kind: KindSurvey, Subject: subject, Guidance: guidance})
	if err != nil {
		return nil, err
	}
	return a.Value.(*types.Survey), nil
}

// Curriculum generates the course outline from an assessment result.
func (e *Executor) Curriculum(ctx context.Context, subject string, survey *types.SurveyResult, guidance []string) (*types.CurriculumScheme, error) {
	a, err := e.RunStage(ctx, Input{Kind: KindCurriculum, Subject: subject, Survey: survey, Guidance: guidance})
	if err != nil {
		return nil, err
	}
	return a.Value.(*types.CurriculumScheme), nil
}

// LessonPlans generates one plan per curriculum lesson.
func (e *Executor) LessonPlans(ctx context.Context, subject string, curriculum *types.CurriculumScheme, guidance []string) (*types.LessonPlanSet, error) {
	a, err := e.RunStage(ctx, Input{Kind: KindLessonPlans, Subject: subject, Curriculum: curriculum, Guidance: guidance})
	if err != nil {
		return nil, err
	}
	return a.Value.(*types.LessonPlanSet), nil
}

// LessonContent writes the lesson body for one plan.
func (e *Executor) LessonContent(ctx context.Context, subject string, plan *types.LessonPlan, guidance []string) (*types.LessonContent, error) {
	a, err := e.RunStage(ctx, Input{Kind: KindLessonContent, Subject: subject, Plan: plan, Guidance: guidance})
	if err != nil {
		return nil, err
	}
	return a.Value.(*types.LessonContent), nil
}
