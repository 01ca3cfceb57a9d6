package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/course-builder/internal/pipeline"
	"github.com/jonathan/course-builder/internal/server/middleware"
	"github.com/jonathan/course-builder/internal/store"
	"github.com/jonathan/course-builder/internal/types"
)

// StartPipelineRequest is the body of POST /pipelines.
// UserID is ignored when token auth is enabled.
type StartPipelineRequest struct {
	UserID       string              `json:"user_id,omitempty"`
	Subject      string              `json:"subject"`
	SurveyResult *types.SurveyResult `json:"survey_result"`
}

// StartPipelineResponse is returned with 202 Accepted.
type StartPipelineResponse struct {
	RunID  string          `json:"run_id"`
	Status pipeline.Status `json:"status"`
}

const defaultHistoryLimit = 50

func (s *Server) handleStartPipeline(w http.ResponseWriter, r *http.Request) {
	var req StartPipelineRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}
	userID, err := s.resolveUser(r, req.UserID)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		s.errorResponse(w, &ErrValidation{Field: "subject", Message: "is required"})
		return
	}
	if req.SurveyResult == nil {
		s.errorResponse(w, &ErrValidation{Field: "survey_result", Message: "is required"})
		return
	}
	if err := req.SurveyResult.Validate(); err != nil {
		s.errorResponse(w, &ErrValidation{Field: "survey_result", Message: err.Error()})
		return
	}

	id, err := s.deps.Pipelines.Start(r.Context(), userID, req.Subject, req.SurveyResult)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, StartPipelineResponse{RunID: id.String(), Status: pipeline.StatusInProgress})
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	userID, err := s.resolveUser(r, r.URL.Query().Get("user_id"))
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": s.deps.Pipelines.List(userID)})
}

func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

func (s *Server) handleCancelPipeline(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if !s.deps.Pipelines.Cancel(run.ID) {
		s.errorResponse(w, &ErrConflict{Message: "run is not in progress: " + string(run.Status)})
		return
	}
	run, _ = s.deps.Pipelines.GetProgress(run.ID)
	s.jsonResponse(w, http.StatusOK, run)
}

func (s *Server) handleRetryPipeline(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if !s.deps.Pipelines.Retry(run.ID) {
		s.errorResponse(w, &ErrConflict{Message: "only failed runs can be retried: " + string(run.Status)})
		return
	}
	run, _ = s.deps.Pipelines.GetProgress(run.ID)
	s.jsonResponse(w, http.StatusAccepted, run)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.deps.Pipelines.Stats())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.errorResponse(w, &ErrNotFound{Resource: "feature", ID: "run history"})
		return
	}
	userID, err := s.resolveUser(r, r.URL.Query().Get("user_id"))
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 {
			s.errorResponse(w, &ErrValidation{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = n
	}
	records, err := s.deps.History.ListRuns(r.Context(), userID, limit)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": records})
}

// handleRunHistory serves the persisted record of one run. Records outlive
// registry eviction, so the run is looked up in history only.
func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.errorResponse(w, &ErrNotFound{Resource: "feature", ID: "run history"})
		return
	}
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.errorResponse(w, &ErrValidation{Field: "id", Message: "invalid run ID format"})
		return
	}
	record, err := s.deps.History.GetRun(r.Context(), id)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if record == nil || !s.visibleTo(r, record.UserID) {
		s.errorResponse(w, &ErrNotFound{Resource: "run", ID: raw})
		return
	}
	s.jsonResponse(w, http.StatusOK, record)
}

// handlePipelineEvents streams progress snapshots until the run is terminal
// or the client goes away.
func (s *Server) handlePipelineEvents(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	// observers must not block the worker; notify coalesces updates
	notify := make(chan struct{}, 1)
	unsubscribe, err := s.deps.Pipelines.Subscribe(run.ID, func(pipeline.Run) error {
		select {
		case notify <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	defer unsubscribe()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		current, ok := s.deps.Pipelines.GetProgress(run.ID)
		if !ok {
			sse.WriteError("run was evicted")
			return
		}
		if current.Status.Terminal() {
			sse.WriteComplete(current)
			return
		}
		if err := sse.WriteEvent("progress", current); err != nil {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-notify:
		case <-heartbeat.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		}
	}
}

// artifactKinds are the run-level artifacts exposed by GET /pipelines/{id}/artifacts/{kind}.
var artifactKinds = map[string]store.Kind{
	"survey_result": store.KindSurveyResult,
	"curriculum":    store.KindCurriculum,
	"lesson_plans":  store.KindLessonPlans,
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	kind, ok := artifactKinds[r.PathValue("kind")]
	if !ok {
		s.errorResponse(w, &ErrNotFound{Resource: "artifact kind", ID: r.PathValue("kind")})
		return
	}
	s.serveArtifact(w, r, kind, "")
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lessonID := strings.TrimSpace(r.PathValue("lesson_id"))
	if lessonID == "" {
		s.errorResponse(w, &ErrValidation{Field: "lesson_id", Message: "is required"})
		return
	}
	s.serveArtifact(w, r, store.KindLessonContent, lessonID)
}

// handleListLessons lists the lessons with stored content for the run's user
// and subject. Stores that cannot enumerate lessons are answered from the
// run's lesson plans.
func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	if s.deps.Artifacts == nil {
		s.errorResponse(w, &ErrNotFound{Resource: "feature", ID: "artifact store"})
		return
	}
	run, err := s.lookupRun(r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	ids, err := s.lessonIDs(r, run)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"run_id": run.ID, "lessons": ids})
}

func (s *Server) lessonIDs(r *http.Request, run pipeline.Run) ([]string, error) {
	if lister, ok := s.deps.Artifacts.(store.LessonLister); ok {
		return lister.ListLessonIDs(r.Context(), run.UserID, run.Subject)
	}

	var plans types.LessonPlanSet
	key := store.Key{Kind: store.KindLessonPlans, UserID: run.UserID, Subject: run.Subject}
	if err := s.deps.Artifacts.Load(r.Context(), key, &plans); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	ids := []string{}
	for _, plan := range plans.Plans {
		key := store.Key{Kind: store.KindLessonContent, UserID: run.UserID, Subject: run.Subject, LessonID: plan.LessonID}
		var raw json.RawMessage
		err := s.deps.Artifacts.Load(r.Context(), key, &raw)
		switch {
		case err == nil:
			ids = append(ids, plan.LessonID)
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	return ids, nil
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, kind store.Kind, lessonID string) {
	if s.deps.Artifacts == nil {
		s.errorResponse(w, &ErrNotFound{Resource: "feature", ID: "artifact store"})
		return
	}
	run, err := s.lookupRun(r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	key := store.Key{Kind: kind, UserID: run.UserID, Subject: run.Subject, LessonID: lessonID}
	var raw json.RawMessage
	if err := s.deps.Artifacts.Load(r.Context(), key, &raw); err != nil {
		s.errorResponse(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// lookupRun resolves {id} to a run visible to the caller. With auth enabled,
// runs of other users are reported as missing.
func (s *Server) lookupRun(r *http.Request) (pipeline.Run, error) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return pipeline.Run{}, &ErrValidation{Field: "id", Message: "invalid run ID format"}
	}
	run, ok := s.deps.Pipelines.GetProgress(id)
	if !ok {
		return pipeline.Run{}, &ErrNotFound{Resource: "run", ID: raw}
	}
	if !s.visibleTo(r, run.UserID) {
		return pipeline.Run{}, &ErrNotFound{Resource: "run", ID: raw}
	}
	return run, nil
}

// visibleTo reports whether the caller may see a run owned by owner.
func (s *Server) visibleTo(r *http.Request, owner string) bool {
	if s.jwtService == nil {
		return true
	}
	userID, err := middleware.GetUserID(r)
	return err == nil && userID == owner
}

// resolveUser returns the authenticated user, or the supplied one when auth is off.
func (s *Server) resolveUser(r *http.Request, supplied string) (string, error) {
	if s.jwtService != nil {
		return middleware.GetUserID(r)
	}
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return "", &ErrValidation{Field: "user_id", Message: "is required"}
	}
	return supplied, nil
}

// decodeBody reads a JSON request body of at most 1 MiB.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &ErrValidation{Field: "body", Message: "request body too large"}
		}
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}
