// Package account implements profile CRUD and the onboarding-state
// aggregate, keyed by an authenticated phone number.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/symposic/symposic/internal/models"
	"github.com/symposic/symposic/internal/store"
)

// ErrProfileNotFound indicates no profile exists for the phone number.
var ErrProfileNotFound = errors.New("profile not found")

// Service provides profile operations backed by the store.
type Service struct {
	store store.Store
}

// NewService creates an account service.
func NewService(st store.Store) *Service {
	slog.Debug("Service.NewService: creating account service", "hasStore", st != nil)
	return &Service{store: st}
}

// EnsureProfile returns the profile for a phone number, creating it on
// first sight. Called after a successful OTP verification.
func (s *Service) EnsureProfile(ctx context.Context, phone string) (*models.Profile, error) {
	p, err := s.store.GetProfileByPhone(phone)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}

	now := time.Now().UTC()
	profile := models.Profile{
		ProfileID: uuid.NewString(),
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateProfile(profile); err != nil {
		slog.Error("Service.EnsureProfile: failed to create profile", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	slog.Info("Service.EnsureProfile: profile created", "profileID", profile.ProfileID)
	return &profile, nil
}

// GetProfileByPhone returns the profile row for a phone number.
func (s *Service) GetProfileByPhone(ctx context.Context, phone string) (*models.Profile, error) {
	p, err := s.store.GetProfileByPhone(phone)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}
	return p, nil
}

// UpdateProfileData upserts the user-entered profile fields. Idempotent:
// repeated submissions with the same data succeed.
func (s *Service) UpdateProfileData(ctx context.Context, phone string, data models.ProfileData) error {
	if err := data.Validate(); err != nil {
		return err
	}

	profile, err := s.GetProfileByPhone(ctx, phone)
	if err != nil {
		return err
	}

	if err := s.store.UpsertProfileData(profile.ProfileID, data); err != nil {
		slog.Error("Service.UpdateProfileData: upsert failed", "error", err, "profileID", profile.ProfileID)
		return fmt.Errorf("failed to update profile data: %w", err)
	}
	slog.Debug("Service.UpdateProfileData: succeeded", "profileID", profile.ProfileID)
	return nil
}

// GetOnboardingState aggregates everything the client needs to resume
// onboarding: profile identity, entered profile data, and interview status.
func (s *Service) GetOnboardingState(ctx context.Context, phone string) (*models.OnboardingState, error) {
	profile, err := s.GetProfileByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	state := &models.OnboardingState{
		ProfileID: profile.ProfileID,
		Phone:     profile.Phone,
	}

	data, err := s.store.GetProfileData(profile.ProfileID)
	if err == nil {
		state.HasProfileData = true
		state.ProfileData = data
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load profile data: %w", err)
	}

	iv, err := s.store.GetInterview(profile.ProfileID)
	if err == nil {
		state.HasFinishedInterview = iv.IsFinished()
		state.Interview = iv
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load interview: %w", err)
	}

	return state, nil
}
