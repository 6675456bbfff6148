package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/application/command"
	"github.com/brightpath-labs/brightpath-engine/internal/application/query"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/planner"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/policy"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ANSWER
// ══════════════════════════════════════════════════════════════════════════════

type submitAnswerRequest struct {
	UserID        string `json:"user_id"`
	SkillID       string `json:"skill_id"`
	Difficulty    string `json:"difficulty"`
	Result        string `json:"result"`
	VariantID     string `json:"variant_id,omitempty"`
	TemplateID    string `json:"template_id,omitempty"`
	QuestionID    string `json:"question_id,omitempty"`
	DurationMs    int64  `json:"duration_ms,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type submitAnswerResponse struct {
	UserID        string     `json:"user_id"`
	SkillID       string     `json:"skill_id"`
	MasteryAfter  float64    `json:"mastery_after"`
	Delta         float64    `json:"delta"`
	StreakCorrect int        `json:"streak_correct"`
	StreakWrong   int        `json:"streak_wrong"`
	NextReviewAt  *time.Time `json:"next_review_at,omitempty"`
	RecordedAt    time.Time  `json:"recorded_at"`
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.deps.SubmitAnswer.Handle(r.Context(), command.SubmitAnswerCommand{
		UserID:        shared.UserID(req.UserID),
		SkillID:       shared.SkillID(req.SkillID),
		Difficulty:    shared.Difficulty(req.Difficulty),
		Result:        shared.AnswerResult(req.Result),
		VariantID:     req.VariantID,
		TemplateID:    shared.TemplateID(req.TemplateID),
		QuestionID:    shared.QuestionID(req.QuestionID),
		DurationMs:    req.DurationMs,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitAnswerResponse{
		UserID:        string(result.UserID),
		SkillID:       string(result.SkillID),
		MasteryAfter:  result.MasteryAfter,
		Delta:         result.Delta,
		StreakCorrect: result.StreakCorrect,
		StreakWrong:   result.StreakWrong,
		NextReviewAt:  result.NextReviewAt,
		RecordedAt:    result.RecordedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY INGEST
// ══════════════════════════════════════════════════════════════════════════════

type startSessionRequest struct {
	UserID    string     `json:"user_id"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

type startSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cmd := command.StartSessionCommand{UserID: shared.UserID(req.UserID)}
	if req.StartedAt != nil {
		cmd.StartedAt = *req.StartedAt
	}

	id, err := s.deps.RecordActivity.HandleStartSession(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, startSessionResponse{SessionID: id})
}

type endSessionRequest struct {
	EndedAt  *time.Time `json:"ended_at,omitempty"`
	XPEarned int        `json:"xp_earned"`
	Answers  int        `json:"answers"`
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cmd := command.EndSessionCommand{
		SessionID: r.PathValue("id"),
		XPEarned:  req.XPEarned,
		Answers:   req.Answers,
	}
	if req.EndedAt != nil {
		cmd.EndedAt = *req.EndedAt
	}

	if err := s.deps.RecordActivity.HandleEndSession(r.Context(), cmd); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type taskOutcomeRequest struct {
	UserID     string     `json:"user_id"`
	Approved   bool       `json:"approved"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

func (s *Server) handleTaskOutcome(w http.ResponseWriter, r *http.Request) {
	var req taskOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cmd := command.RecordTaskOutcomeCommand{
		UserID:   shared.UserID(req.UserID),
		Approved: req.Approved,
	}
	if req.OccurredAt != nil {
		cmd.OccurredAt = *req.OccurredAt
	}

	if err := s.deps.RecordActivity.HandleTaskOutcome(r.Context(), cmd); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAN QUESTIONS
// ══════════════════════════════════════════════════════════════════════════════

type planQuestionsRequest struct {
	UserID             string `json:"user_id"`
	Scope              string `json:"scope"` // skill, lesson, subject, global
	SkillID            string `json:"skill_id,omitempty"`
	LessonID           string `json:"lesson_id,omitempty"`
	SubjectID          string `json:"subject_id,omitempty"`
	Count              int    `json:"count"`
	DifficultyCeiling  string `json:"difficulty_ceiling,omitempty"`
	DifficultyOverride string `json:"difficulty_override,omitempty"`
	CorrelationID      string `json:"correlation_id,omitempty"`
}

type planItemResponse struct {
	Slot         int      `json:"slot"`
	SkillID      string   `json:"skill_id"`
	Difficulty   string   `json:"difficulty"`
	Source       string   `json:"source"`
	VariantID    string   `json:"variant_id,omitempty"`
	QuestionID   string   `json:"question_id,omitempty"`
	Prompt       string   `json:"prompt"`
	Explanation  string   `json:"explanation,omitempty"`
	Choices      []string `json:"choices,omitempty"`
	CorrectIndex int      `json:"correct_index"`
}

type planQuestionsResponse struct {
	UserID      string             `json:"user_id"`
	Items       []planItemResponse `json:"items"`
	FocusSkills []string           `json:"focus_skills"`
	GeneratedAt time.Time          `json:"generated_at"`
}

func (s *Server) handlePlanQuestions(w http.ResponseWriter, r *http.Request) {
	var req planQuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.deps.PlanQuestions.Handle(r.Context(), query.PlanQuestionsQuery{
		UserID: shared.UserID(req.UserID),
		Scope: shared.PlanScope{
			Kind:    shared.ScopeKind(req.Scope),
			Skill:   shared.SkillID(req.SkillID),
			Lesson:  shared.LessonID(req.LessonID),
			Subject: shared.SubjectID(req.SubjectID),
		},
		Count:              req.Count,
		DifficultyCeiling:  shared.Difficulty(req.DifficultyCeiling),
		DifficultyOverride: shared.Difficulty(req.DifficultyOverride),
		CorrelationID:      req.CorrelationID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	plan := result.Plan
	resp := planQuestionsResponse{
		UserID:      string(plan.UserID),
		Items:       make([]planItemResponse, 0, len(plan.Items)),
		GeneratedAt: plan.GeneratedAt,
	}
	for _, skill := range plan.FocusSkillIDs() {
		resp.FocusSkills = append(resp.FocusSkills, string(skill))
	}
	for _, item := range plan.Items {
		resp.Items = append(resp.Items, toPlanItemResponse(item))
	}

	writeJSON(w, http.StatusOK, resp)
}

func toPlanItemResponse(item planner.PlanItem) planItemResponse {
	out := planItemResponse{
		Slot:       item.Slot,
		SkillID:    string(item.SkillID),
		Difficulty: string(item.Difficulty),
		Source:     string(item.Source),
	}
	switch item.Source {
	case planner.SourceGenerated:
		out.VariantID = item.Variant.ID
		out.Prompt = item.Variant.Prompt
		out.Explanation = item.Variant.Explanation
		out.Choices = item.Variant.Choices
		out.CorrectIndex = item.Variant.CorrectIndex
	case planner.SourceBank:
		out.QuestionID = string(item.Question.ID)
		out.Prompt = item.Question.Prompt
		out.Explanation = item.Question.Explanation
		out.Choices = item.Question.Choices
		out.CorrectIndex = item.Question.CorrectIndex
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// DUE REVIEWS
// ══════════════════════════════════════════════════════════════════════════════

type dueReviewsResponse struct {
	UserID    string    `json:"user_id"`
	SkillIDs  []string  `json:"skill_ids"`
	CheckedAt time.Time `json:"checked_at"`
}

func (s *Server) handleDueReviews(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.DueReviews.Handle(r.Context(), query.DueReviewsQuery{
		UserID:        shared.UserID(r.URL.Query().Get("user_id")),
		CorrelationID: r.URL.Query().Get("correlation_id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := dueReviewsResponse{
		UserID:    string(result.UserID),
		SkillIDs:  make([]string, 0, len(result.SkillIDs)),
		CheckedAt: result.CheckedAt,
	}
	for _, skill := range result.SkillIDs {
		resp.SkillIDs = append(resp.SkillIDs, string(skill))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// DECIDE ACTIONS
// ══════════════════════════════════════════════════════════════════════════════

type decideActionsRequest struct {
	UserID        string         `json:"user_id"`
	Context       string         `json:"context"`
	ExtraFacts    map[string]any `json:"extra_facts,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

type actionResponse struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

type decideActionsResponse struct {
	Actions    []actionResponse   `json:"actions"`
	Suppressed []string           `json:"suppressed,omitempty"`
	Persona    string             `json:"persona"`
	Scores     map[string]float64 `json:"scores"`
	AtRisk     bool               `json:"at_risk"`
	DecidedAt  time.Time          `json:"decided_at"`
}

func (s *Server) handleDecideActions(w http.ResponseWriter, r *http.Request) {
	var req decideActionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.deps.DecideActions.Handle(r.Context(), query.DecideActionsQuery{
		UserID:        shared.UserID(req.UserID),
		Context:       policy.EvaluationContext(req.Context),
		ExtraFacts:    req.ExtraFacts,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := decideActionsResponse{
		Actions: make([]actionResponse, 0, len(result.Actions)),
		Persona: string(result.Persona.Key),
		Scores: map[string]float64{
			"rhythm":       result.State.Rhythm,
			"frustration":  result.State.Frustration,
			"confidence":   result.State.Confidence,
			"dropout_risk": result.State.DropoutRisk,
			"momentum":     result.State.Momentum,
		},
		AtRisk:    result.State.AtRiskNow,
		DecidedAt: result.DecidedAt,
	}
	for _, a := range result.Actions {
		resp.Actions = append(resp.Actions, actionResponse{Type: string(a.Type), Params: a.Params})
	}
	for _, t := range result.Suppressed {
		resp.Suppressed = append(resp.Suppressed, string(t))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Error: message})
}

// writeDomainError maps domain error kinds to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case shared.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case shared.IsInvalidContent(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
