// Package auth implements phone-based OTP authentication and session
// tokens for Symposic.
//
// Codes and sessions live in the store; send rate limiting is in-memory and
// per process.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/symposic/symposic/internal/sms"
	"github.com/symposic/symposic/internal/store"
	"github.com/symposic/symposic/internal/util"
)

// Lifetime constants for codes and sessions.
const (
	// OTPLifetime is how long a one-time code stays valid.
	OTPLifetime = 10 * time.Minute
	// SessionLifetime is how long an issued session token stays valid.
	SessionLifetime = 30 * 24 * time.Hour
)

// Rate limiting constants for code sends.
const (
	// MaxSendAttempts is the number of codes one phone may request per window.
	MaxSendAttempts = 3
	// SendAttemptWindow is the sliding window for send rate limiting.
	SendAttemptWindow = 10 * time.Minute
)

// Error variables for authentication failures.
var (
	// ErrRateLimited indicates the phone requested too many codes recently.
	ErrRateLimited = errors.New("too many code requests, try again later")
	// ErrInvalidCode indicates the code is wrong, expired, or already used.
	ErrInvalidCode = errors.New("invalid or expired code")
	// ErrInvalidSession indicates the session token is unknown or expired.
	ErrInvalidSession = errors.New("invalid session token")
)

// Service issues and verifies one-time codes and session tokens.
type Service struct {
	store  store.Store
	sender sms.Sender

	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewService creates an auth service with its collaborators injected.
func NewService(st store.Store, sender sms.Sender) *Service {
	slog.Debug("Service.NewService: creating auth service",
		"hasStore", st != nil, "hasSender", sender != nil)
	return &Service{
		store:    st,
		sender:   sender,
		attempts: make(map[string][]time.Time),
	}
}

// SendCode generates a one-time code for the phone, stores it, and sends it
// over SMS. Re-sending replaces any previous code for the phone.
func (s *Service) SendCode(ctx context.Context, phone string) error {
	canonical, err := sms.CanonicalizePhone(phone)
	if err != nil {
		return err
	}

	if !s.allowSend(canonical) {
		slog.Warn("Service.SendCode: rate limited", "phone", canonical)
		return ErrRateLimited
	}

	code, err := util.GenerateOTPCode()
	if err != nil {
		slog.Error("Service.SendCode: failed to generate code", "error", err)
		return err
	}

	if err := s.store.SaveOTP(store.OTPCode{
		Phone:     canonical,
		Code:      code,
		ExpiresAt: time.Now().UTC().Add(OTPLifetime),
	}); err != nil {
		slog.Error("Service.SendCode: failed to store code", "error", err, "phone", canonical)
		return fmt.Errorf("failed to store code: %w", err)
	}

	if err := sms.SendOTPCode(ctx, s.sender, canonical, code); err != nil {
		slog.Error("Service.SendCode: failed to send SMS", "error", err, "phone", canonical)
		return fmt.Errorf("failed to send code: %w", err)
	}

	slog.Info("Service.SendCode: code sent", "phone", canonical)
	return nil
}

// VerifyCode checks a one-time code and, on success, issues a session
// token. The code is consumed and cannot be reused.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) (string, error) {
	canonical, err := sms.CanonicalizePhone(phone)
	if err != nil {
		return "", err
	}

	ok, err := s.store.ConsumeOTP(canonical, code, time.Now().UTC())
	if err != nil {
		slog.Error("Service.VerifyCode: OTP lookup failed", "error", err, "phone", canonical)
		return "", fmt.Errorf("failed to verify code: %w", err)
	}
	if !ok {
		slog.Warn("Service.VerifyCode: invalid or expired code", "phone", canonical)
		return "", ErrInvalidCode
	}

	token, err := util.GenerateSessionToken()
	if err != nil {
		slog.Error("Service.VerifyCode: failed to generate session token", "error", err)
		return "", err
	}

	now := time.Now().UTC()
	if err := s.store.CreateSession(store.Session{
		Token:     token,
		Phone:     canonical,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionLifetime),
	}); err != nil {
		slog.Error("Service.VerifyCode: failed to store session", "error", err, "phone", canonical)
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("Service.VerifyCode: session created", "phone", canonical)
	return token, nil
}

// VerifySession resolves a session token to a phone number.
func (s *Service) VerifySession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidSession
	}
	phone, err := s.store.GetSessionPhone(token, time.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidSession
	}
	if err != nil {
		slog.Error("Service.VerifySession: session lookup failed", "error", err)
		return "", fmt.Errorf("failed to verify session: %w", err)
	}
	return phone, nil
}

// CleanupExpiredOTPs removes expired codes. Called periodically by main.
func (s *Service) CleanupExpiredOTPs(ctx context.Context) error {
	return s.store.DeleteExpiredOTPs(time.Now().UTC())
}

// allowSend records a send attempt and reports whether the phone is within
// its rate limit window.
func (s *Service) allowSend(phone string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-SendAttemptWindow)

	recent := s.attempts[phone][:0]
	for _, t := range s.attempts[phone] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= MaxSendAttempts {
		s.attempts[phone] = recent
		return false
	}

	s.attempts[phone] = append(recent, now)
	return true
}
