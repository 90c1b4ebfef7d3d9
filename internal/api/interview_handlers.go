// Package api provides HTTP handlers for the onboarding interview endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/symposic/symposic/internal/interview"
	"github.com/symposic/symposic/internal/models"
	"github.com/symposic/symposic/internal/store"
)

type interviewStartRequest struct {
	Name string `json:"name"`
}

type interviewMessageRequest struct {
	Message string `json:"message"`
}

type interviewResult struct {
	Interview  models.Interview `json:"interview"`
	IsComplete bool             `json:"isComplete"`
}

// interviewStartHandler creates the profile's interview if none exists and
// returns it. Starting twice returns the stored interview unchanged.
func (s *Server) interviewStartHandler(w http.ResponseWriter, r *http.Request, phone string) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.interviewStartHandler: processing start request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req interviewStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.interviewStartHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Name == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Name is required"))
		return
	}

	profile, err := s.accountService.GetProfileByPhone(r.Context(), phone)
	if err != nil {
		s.writeAccountError(w, err, "Failed to fetch profile")
		return
	}

	if existing, err := s.store.GetInterview(profile.ProfileID); err == nil {
		slog.Debug("Server.interviewStartHandler: interview already exists", "profileID", profile.ProfileID)
		writeJSONResponse(w, http.StatusOK, models.Success(interviewResult{
			Interview:  *existing,
			IsComplete: existing.IsFinished(),
		}))
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		slog.Error("Server.interviewStartHandler: failed to load interview", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load interview"))
		return
	}

	iv, err := s.orchestrator.Start(r.Context(), req.Name)
	if err != nil {
		slog.Error("Server.interviewStartHandler: failed to start interview", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start interview"))
		return
	}

	if err := s.store.CreateInterview(profile.ProfileID, *iv); err != nil {
		slog.Error("Server.interviewStartHandler: failed to persist interview", "error", err, "profileID", profile.ProfileID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save interview"))
		return
	}

	slog.Info("Server.interviewStartHandler: interview started", "profileID", profile.ProfileID)
	writeJSONResponse(w, http.StatusOK, models.Success(interviewResult{Interview: *iv}))
}

// interviewMessageHandler advances the interview by one turn and persists
// the result. The conditional save in the store keeps concurrent advances
// for one profile from interleaving.
func (s *Server) interviewMessageHandler(w http.ResponseWriter, r *http.Request, phone string) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.interviewMessageHandler: processing message request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req interviewMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.interviewMessageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Message == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Message is required"))
		return
	}

	profile, err := s.accountService.GetProfileByPhone(r.Context(), phone)
	if err != nil {
		s.writeAccountError(w, err, "Failed to fetch profile")
		return
	}

	stored, err := s.store.GetInterview(profile.ProfileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Interview not started"))
			return
		}
		slog.Error("Server.interviewMessageHandler: failed to load interview", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load interview"))
		return
	}

	expectedCount := len(stored.Messages)
	next, isComplete, err := s.orchestrator.Advance(r.Context(), *stored, req.Message)
	if err != nil {
		s.writeInterviewError(w, err)
		return
	}

	if isComplete && next.FinishedAt == nil {
		now := time.Now().UTC()
		next.FinishedAt = &now
	}

	// The model has already answered; a failed save loses that reply and the
	// client retries the whole turn.
	if err := s.store.SaveInterview(profile.ProfileID, next, expectedCount); err != nil {
		if errors.Is(err, store.ErrConflict) {
			slog.Warn("Server.interviewMessageHandler: concurrent advance detected", "profileID", profile.ProfileID)
			writeJSONResponse(w, http.StatusConflict, models.Error("Interview was updated by another request"))
			return
		}
		slog.Error("Server.interviewMessageHandler: failed to persist interview", "error", err, "profileID", profile.ProfileID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save interview"))
		return
	}

	slog.Info("Server.interviewMessageHandler: interview advanced",
		"profileID", profile.ProfileID, "isComplete", isComplete, "messages", len(next.Messages))
	writeJSONResponse(w, http.StatusOK, models.Success(interviewResult{
		Interview:  next,
		IsComplete: isComplete,
	}))
}

// writeInterviewError maps orchestrator errors to HTTP responses.
func (s *Server) writeInterviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interview.ErrInterviewComplete):
		writeJSONResponse(w, http.StatusConflict, models.Error("Interview already complete"))
	case errors.Is(err, models.ErrEmptyMessage),
		errors.Is(err, models.ErrMessageTooLong),
		errors.Is(err, models.ErrInvalidMessageRole):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	case errors.Is(err, interview.ErrUpstream):
		slog.Error("Server: interview model call failed", "error", err)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Interview service temporarily unavailable"))
	case errors.Is(err, interview.ErrMalformedResponse):
		slog.Error("Server: interview model returned malformed response", "error", err)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Interview service returned an invalid response"))
	default:
		slog.Error("Server: interview advance failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to advance interview"))
	}
}
