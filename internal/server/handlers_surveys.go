package server

import (
	"net/http"
	"strings"

	"github.com/jonathan/course-builder/internal/store"
)

// surveyGuidanceStage is the guidance set read for survey generation.
const surveyGuidanceStage = "survey"

// GenerateSurveyRequest is the body of POST /surveys.
type GenerateSurveyRequest struct {
	UserID  string `json:"user_id,omitempty"`
	Subject string `json:"subject"`
}

// handleGenerateSurvey runs the survey stage synchronously and returns the survey.
func (s *Server) handleGenerateSurvey(w http.ResponseWriter, r *http.Request) {
	if s.deps.Surveys == nil {
		s.errorResponse(w, &ErrNotFound{Resource: "feature", ID: "survey generation"})
		return
	}
	var req GenerateSurveyRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}
	userID, err := s.resolveUser(r, req.UserID)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		s.errorResponse(w, &ErrValidation{Field: "subject", Message: "is required"})
		return
	}

	fragments, err := s.deps.Guidance.LoadGuidance(r.Context(), surveyGuidanceStage, subject)
	if err != nil {
		s.logger.Warn("guidance lookup failed, using defaults", "stage", surveyGuidanceStage, "error", err.Error())
		fragments = nil
	}

	survey, err := s.deps.Surveys.Survey(r.Context(), subject, fragments)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	if s.deps.Artifacts != nil {
		key := store.Key{Kind: store.KindSurvey, UserID: userID, Subject: subject}
		if err := s.deps.Artifacts.Save(r.Context(), key, survey); err != nil {
			s.logger.Warn("failed to persist survey", "user_id", userID, "subject", subject, "error", err.Error())
		}
	}
	s.jsonResponse(w, http.StatusOK, survey)
}
