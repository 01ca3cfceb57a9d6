package types

import (
	"strings"
	"time"
)

// Segment is a time-boxed block of a lesson
type Segment struct {
	Title       string `json:"title"`
	Minutes     int    `json:"minutes"`
	Description string `json:"description,omitempty"`
}

// Activity is a hands-on exercise within a lesson
type Activity struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Assessment describes how a lesson checks understanding
type Assessment struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Questions   []string `json:"questions,omitempty"`
}

// LessonPlan is the teaching plan for one curriculum lesson
type LessonPlan struct {
	LessonID    string     `json:"lesson_id"`
	Title       string     `json:"title"`
	Objectives  []string   `json:"objectives"`
	Structure   []Segment  `json:"structure"`
	Activities  []Activity `json:"activities,omitempty"`
	Assessment  Assessment `json:"assessment"`
	KeyConcepts []string   `json:"key_concepts,omitempty"`
}

// TotalMinutes sums the segment durations
func (p *LessonPlan) TotalMinutes() int {
	total := 0
	for _, s := range p.Structure {
		total += s.Minutes
	}
	return total
}

// LessonPlanSet is the output of the planning stage, one plan per lesson
type LessonPlanSet struct {
	Subject    string       `json:"subject,omitempty"`
	Plans      []LessonPlan `json:"plans"`
	Provenance *Provenance  `json:"provenance,omitempty"`
}

// Plan returns the plan for a lesson id
func (s *LessonPlanSet) Plan(lessonID string) (*LessonPlan, bool) {
	for i := range s.Plans {
		if s.Plans[i].LessonID == lessonID {
			return &s.Plans[i], true
		}
	}
	return nil, false
}

// LessonContent is the prose body generated for one lesson
type LessonContent struct {
	LessonID   string      `json:"lesson_id"`
	Title      string      `json:"title"`
	Body       string      `json:"body"`
	WordCount  int         `json:"word_count"`
	Provenance *Provenance `json:"provenance,omitempty"`
}

// CountWords counts whitespace-separated words
func CountWords(body string) int {
	return len(strings.Fields(body))
}

// Provenance records how an artifact was generated
type Provenance struct {
	GeneratedAt time.Time `json:"generated_at"`
	Method      string    `json:"method"`
	Model       string    `json:"model,omitempty"`
	Attempts    int       `json:"attempts"`
	Temperature float32   `json:"temperature"`
}
