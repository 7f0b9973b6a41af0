package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/accentor-app/accentor/internal/assess"
	"github.com/accentor-app/accentor/internal/attempt"
	"github.com/accentor-app/accentor/internal/coaching"
	"github.com/accentor-app/accentor/internal/phoneme"
)

// errorResponse is the body of every non-2xx API response. Code is a stable
// machine-readable label; RawResponse carries the coach's unparseable text
// for diagnosis when applicable.
type errorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code"`
	RawResponse string `json:"raw_response,omitempty"`
}

// alignmentResponse mirrors phoneme.Alignment for the wire.
type alignmentResponse struct {
	Cells      []cellResponse `json:"cells"`
	MatchRatio float64        `json:"match_ratio"`
	IsPerfect  bool           `json:"is_perfect"`
}

type cellResponse struct {
	Target string `json:"target,omitempty"`
	Spoken string `json:"spoken,omitempty"`
	Match  bool   `json:"match"`
	Tip    string `json:"tip,omitempty"`
}

// attemptResponse is the submission response: the recorded attempt plus the
// ephemeral phoneme alignment when transliteration was available.
type attemptResponse struct {
	Attempt   *attempt.PracticeAttempt `json:"attempt"`
	Alignment *alignmentResponse       `json:"alignment,omitempty"`
}

// coachingResponse is the coaching response. Cached is true when the stored
// result was served without a collaborator call.
type coachingResponse struct {
	Attempt *attempt.PracticeAttempt `json:"attempt"`
	Cached  bool                     `json:"cached"`
}

// drillResponse flattens a drill search hit for the wire.
type drillResponse struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	Language   string    `json:"language"`
	TargetText string    `json:"target_text"`
	Text       string    `json:"text"`
	Distance   float64   `json:"distance"`
}

func toAlignmentResponse(a *phoneme.Alignment) *alignmentResponse {
	if a == nil {
		return nil
	}
	cells := make([]cellResponse, len(a.Cells))
	for i, c := range a.Cells {
		cells[i] = cellResponse{Target: c.Target, Spoken: c.Spoken, Match: c.Match, Tip: c.Tip}
	}
	return &alignmentResponse{Cells: cells, MatchRatio: a.MatchRatio, IsPerfect: a.IsPerfect()}
}

// ─── Attempt submission ───────────────────────────────────────────────────────

// handleSubmitAttempt accepts a multipart form with an "audio" file plus
// target_text, language, user_id, and item_id fields.
func (s *Server) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "expected a multipart form with an audio file")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", `missing "audio" file field`)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unreadable audio upload")
		return
	}

	sub := assess.Submission{
		Audio:    audio,
		Format:   formatFromFilename(header.Filename),
		Target:   r.FormValue("target_text"),
		Language: r.FormValue("language"),
		UserID:   r.FormValue("user_id"),
		ItemID:   r.FormValue("item_id"),
	}

	res, err := s.svc.SubmitAttempt(r.Context(), sub)
	if err != nil {
		s.writeSubmitError(w, r.Context(), err)
		return
	}

	writeJSON(w, http.StatusCreated, attemptResponse{
		Attempt:   res.Attempt,
		Alignment: toAlignmentResponse(res.Alignment),
	})
}

// writeSubmitError maps submission errors to their user-facing signals. The
// "no audio" and "no speech" conditions get their own codes so the UI never
// renders them as a zero score.
func (s *Server) writeSubmitError(w http.ResponseWriter, ctx context.Context, err error) {
	switch {
	case errors.Is(err, assess.ErrInvalidSubmission):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, assess.ErrNoAudio):
		writeError(w, http.StatusUnprocessableEntity, "no_audio",
			"the recording is too short to contain audio")
	case errors.Is(err, assess.ErrNoSpeech):
		writeError(w, http.StatusUnprocessableEntity, "no_speech",
			"no speech detected, try speaking closer to the microphone")
	case errors.Is(err, assess.ErrSTTUnavailable):
		writeError(w, http.StatusServiceUnavailable, "stt_unavailable",
			"speech recognition is temporarily unavailable, try again")
	default:
		s.logger.ErrorContext(ctx, "submit attempt failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// ─── Coaching ─────────────────────────────────────────────────────────────────

func (s *Server) handleRequestCoaching(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}

	out, err := s.svc.RequestCoaching(r.Context(), id)
	if err != nil {
		s.writeCoachingError(w, r.Context(), err)
		return
	}
	writeJSON(w, http.StatusOK, coachingResponse{Attempt: out.Attempt, Cached: out.Cached})
}

// writeCoachingError maps the coaching stage's soft failures. The attempt
// itself stays valid as stt_only in every one of these cases.
func (s *Server) writeCoachingError(w http.ResponseWriter, ctx context.Context, err error) {
	var parseErr *coaching.ParseError
	switch {
	case errors.Is(err, attempt.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no such attempt")
	case errors.Is(err, assess.ErrCoachingUnavailable):
		writeError(w, http.StatusServiceUnavailable, "coaching_unavailable",
			"no coaching backend is configured")
	case errors.As(err, &parseErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:       "the coach returned an unusable response",
			Code:        "coach_parse_error",
			RawResponse: parseErr.Raw,
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "coach_timeout",
			"coaching timed out, the attempt keeps its score")
	default:
		s.logger.ErrorContext(ctx, "coaching request failed", "err", err)
		writeError(w, http.StatusBadGateway, "coach_error",
			"coaching failed, the attempt keeps its score")
	}
}

// ─── Reads ────────────────────────────────────────────────────────────────────

func (s *Server) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}

	att, err := s.svc.GetAttempt(r.Context(), id)
	if errors.Is(err, attempt.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "no such attempt")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "get attempt failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	attempts, err := s.svc.GetHistory(r.Context(), itemID, limit, offset)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "history failed", "item_id", itemID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}
	itemID := r.URL.Query().Get("item_id")

	entries, err := s.svc.GetProgress(r.Context(), userID, itemID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "progress failed", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSimilarDrills(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}

	results, err := s.svc.SimilarDrills(r.Context(), id)
	switch {
	case errors.Is(err, assess.ErrDrillsUnavailable):
		writeError(w, http.StatusServiceUnavailable, "drills_unavailable",
			"the drill library is not configured")
		return
	case errors.Is(err, attempt.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no such attempt")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "drill lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	out := make([]drillResponse, len(results))
	for i, res := range results {
		out[i] = drillResponse{
			AttemptID:  res.Entry.AttemptID,
			Language:   res.Entry.Language,
			TargetText: res.Entry.TargetText,
			Text:       res.Entry.Text,
			Distance:   res.Distance,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ─── Feedback ─────────────────────────────────────────────────────────────────

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	err := s.svc.SubmitFeedback(r.Context(), attempt.Feedback{
		AttemptID: id,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	switch {
	case errors.Is(err, attempt.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no such attempt")
		return
	case errors.Is(err, attempt.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, "bad_request", "rating must be between 1 and 5")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "feedback failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// attemptID parses the {id} path parameter, writing a 400 on failure.
func attemptID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "attempt id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// formatFromFilename derives the audio container name from the uploaded file
// name, defaulting to wav.
func formatFromFilename(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i < len(name)-1 {
		return strings.ToLower(name[i+1:])
	}
	return "wav"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure","code":"internal"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
