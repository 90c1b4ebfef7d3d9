// Package models defines the core data structures for Symposic.
//
// It includes types for profiles, onboarding interviews, and the API
// response envelope, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// MessageRole identifies the author of an interview message.
type MessageRole string

const (
	// RoleUser marks a message authored by the participant.
	RoleUser MessageRole = "user"
	// RoleAssistant marks a message authored by the interviewer bot.
	RoleAssistant MessageRole = "assistant"
)

// Validation constants for input validation
const (
	// MaxMessageContentLength defines the maximum allowed length for a single interview message
	MaxMessageContentLength = 4096
	// MaxProfileFieldLength defines the maximum allowed length for profile data fields
	MaxProfileFieldLength = 100
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage        = errors.New("message content cannot be empty")
	ErrMessageTooLong      = errors.New("message content exceeds maximum length")
	ErrInvalidMessageRole  = errors.New("message role must be user or assistant")
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrEmptyPhone          = errors.New("phone cannot be empty")
	ErrMissingProfileField = errors.New("all profile data fields are required")
	ErrProfileFieldTooLong = errors.New("profile data field exceeds maximum length")
)

// IsValidMessageRole checks if the given role is supported.
func IsValidMessageRole(r MessageRole) bool {
	return r == RoleUser || r == RoleAssistant
}

// InterviewMessage is a single turn in an onboarding interview.
// Messages are immutable once created; slice order is conversation order.
type InterviewMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Validate checks a single interview message.
func (m *InterviewMessage) Validate() error {
	if !IsValidMessageRole(m.Role) {
		return ErrInvalidMessageRole
	}
	if m.Content == "" {
		return ErrEmptyMessage
	}
	if len(m.Content) > MaxMessageContentLength {
		return ErrMessageTooLong
	}
	return nil
}

// Interview is the transcript of an onboarding conversation for one profile.
type Interview struct {
	CreatedAt     time.Time          `json:"created_at"`
	FinishedAt    *time.Time         `json:"finished_at,omitempty"`
	Messages      []InterviewMessage `json:"messages"`
	PromptVersion string             `json:"prompt_version"`
}

// AssistantMessageCount returns the number of assistant-authored messages,
// including the initial greeting. Used to enforce the turn ceiling.
func (iv *Interview) AssistantMessageCount() int {
	count := 0
	for _, m := range iv.Messages {
		if m.Role == RoleAssistant {
			count++
		}
	}
	return count
}

// IsFinished reports whether the interview has been marked complete.
func (iv *Interview) IsFinished() bool {
	return iv.FinishedAt != nil
}

// Clone returns a deep copy of the interview. Advance works on a copy so a
// failed LLM call never leaves a partially mutated transcript behind.
func (iv *Interview) Clone() Interview {
	out := *iv
	out.Messages = make([]InterviewMessage, len(iv.Messages))
	copy(out.Messages, iv.Messages)
	if iv.FinishedAt != nil {
		t := *iv.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// ValidateMessages checks a full transcript for role and content problems.
func ValidateMessages(messages []InterviewMessage) error {
	for i := range messages {
		if err := messages[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Profile is the account row keyed by an authenticated phone number.
type Profile struct {
	ProfileID string    `json:"profile_id"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileData holds the user-entered profile fields collected during onboarding.
type ProfileData struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	City      string `json:"city"`
	State     string `json:"state"`
}

// Validate ensures all profile data fields are present and within limits.
func (pd *ProfileData) Validate() error {
	fields := []string{pd.FirstName, pd.LastName, pd.City, pd.State}
	for _, f := range fields {
		if f == "" {
			return ErrMissingProfileField
		}
		if len(f) > MaxProfileFieldLength {
			return ErrProfileFieldTooLong
		}
	}
	return nil
}

// OnboardingState aggregates everything the client needs to resume onboarding.
type OnboardingState struct {
	ProfileID            string       `json:"profileId"`
	Phone                string       `json:"phone"`
	HasProfileData       bool         `json:"hasProfileData"`
	HasFinishedInterview bool         `json:"hasFinishedInterview"`
	ProfileData          *ProfileData `json:"profileData,omitempty"`
	Interview            *Interview   `json:"interview,omitempty"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Convenience functions for common response patterns

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
