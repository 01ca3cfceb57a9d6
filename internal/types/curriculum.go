package types

// LessonSummary is one entry of a curriculum outline
type LessonSummary struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Topics           []string   `json:"topics"`
	Difficulty       Difficulty `json:"difficulty,omitempty"`
	Prerequisites    []string   `json:"prerequisites,omitempty"`
	EstimatedMinutes int        `json:"estimated_minutes,omitempty"`
}

// CurriculumScheme is the course outline produced by the first stage
type CurriculumScheme struct {
	Subject            string          `json:"subject"`
	SkillLevel         SkillLevel      `json:"skill_level"`
	LearningObjectives []string        `json:"learning_objectives"`
	Lessons            []LessonSummary `json:"lessons"`
	Provenance         *Provenance     `json:"provenance,omitempty"`
}

// LessonIDs returns the lesson ids in curriculum order
func (c *CurriculumScheme) LessonIDs() []string {
	ids := make([]string, 0, len(c.Lessons))
	for _, l := range c.Lessons {
		ids = append(ids, l.ID)
	}
	return ids
}
