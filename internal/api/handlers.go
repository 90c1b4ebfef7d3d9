// Package api provides HTTP handlers for auth and account endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/symposic/symposic/internal/account"
	"github.com/symposic/symposic/internal/auth"
	"github.com/symposic/symposic/internal/models"
	"github.com/symposic/symposic/internal/sms"
)

type sendCodeRequest struct {
	Phone string `json:"phone"`
}

type verifyCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type verifyCodeResult struct {
	Token string `json:"token"`
}

func (s *Server) sendCodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.sendCodeHandler: processing send-code request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req sendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sendCodeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Phone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Phone number required"))
		return
	}

	if err := s.authService.SendCode(r.Context(), req.Phone); err != nil {
		if errors.Is(err, auth.ErrRateLimited) {
			writeJSONResponse(w, http.StatusTooManyRequests, models.Error(err.Error()))
			return
		}
		slog.Error("Server.sendCodeHandler: failed to send code", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send code"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Code sent", nil))
}

func (s *Server) verifyCodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.verifyCodeHandler: processing verify-code request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.verifyCodeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Phone == "" || req.Code == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Phone and code required"))
		return
	}

	token, err := s.authService.VerifyCode(r.Context(), req.Phone, req.Code)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCode) {
			writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error("Invalid or expired code"))
			return
		}
		slog.Error("Server.verifyCodeHandler: failed to verify code", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to verify code"))
		return
	}

	// First successful verification creates the profile row.
	canonical, err := sms.CanonicalizePhone(req.Phone)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if _, err := s.accountService.EnsureProfile(r.Context(), canonical); err != nil {
		slog.Error("Server.verifyCodeHandler: failed to ensure profile", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create profile"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(verifyCodeResult{Token: token}))
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request, phone string) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		profile, err := s.accountService.GetProfileByPhone(r.Context(), phone)
		if err != nil {
			s.writeAccountError(w, err, "Failed to fetch profile")
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(profile))
	case http.MethodPut:
		s.updateProfileDataHandler(w, r, phone)
	default:
		w.Header().Set("Allow", "GET, PUT")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) updateProfileDataHandler(w http.ResponseWriter, r *http.Request, phone string) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		w.Header().Set("Allow", "POST, PUT")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var data models.ProfileData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		slog.Warn("Server.updateProfileDataHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if err := s.accountService.UpdateProfileData(r.Context(), phone, data); err != nil {
		if errors.Is(err, models.ErrMissingProfileField) || errors.Is(err, models.ErrProfileFieldTooLong) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		s.writeAccountError(w, err, "Failed to update profile data")
		return
	}

	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Profile updated successfully", nil))
}

func (s *Server) onboardingStateHandler(w http.ResponseWriter, r *http.Request, phone string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	state, err := s.accountService.GetOnboardingState(r.Context(), phone)
	if err != nil {
		s.writeAccountError(w, err, "Failed to fetch onboarding state")
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// writeAccountError maps account service errors to HTTP responses.
func (s *Server) writeAccountError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, account.ErrProfileNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Profile not found"))
		return
	}
	slog.Error("Server: account operation failed", "error", err)
	writeJSONResponse(w, http.StatusInternalServerError, models.Error(fallback))
}
