package pipeline

// stageDef describes one stage of a run: where it sits in the progress bar
// and which guidance set it reads.
type stageDef struct {
	Stage    Stage
	Guidance string
	Step     string
	Start    float64
	End      float64
}

// Progress allocation per stage. Content generation is split evenly across lessons.
const (
	progressCurriculumEnd = 33.3
	progressPlanningEnd   = 66.6
	progressComplete      = 100.0
)

var stageOrder = []stageDef{
	{
		Stage:    StageCurriculumGeneration,
		Guidance: "curriculum",
		Step:     "Generating curriculum",
		Start:    0,
		End:      progressCurriculumEnd,
	},
	{
		Stage:    StageLessonPlanning,
		Guidance: "lesson_plans",
		Step:     "Planning lessons",
		Start:    progressCurriculumEnd,
		End:      progressPlanningEnd,
	},
	{
		Stage:    StageContentGeneration,
		Guidance: "lesson_content",
		Step:     "Writing lessons",
		Start:    progressPlanningEnd,
		End:      progressComplete,
	},
}

// stageIndex returns the position of s in the run order, or 0 for unknown stages.
func stageIndex(s Stage) int {
	for i, def := range stageOrder {
		if def.Stage == s {
			return i
		}
	}
	return 0
}

// lessonProgress is the percentage after done of total lessons are written.
func lessonProgress(done, total int) float64 {
	if total <= 0 {
		return progressPlanningEnd
	}
	span := progressComplete - progressPlanningEnd
	return progressPlanningEnd + span*float64(done)/float64(total)
}
