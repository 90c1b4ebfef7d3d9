// Package store provides storage backends for Symposic.
//
// It includes SQLite and PostgreSQL stores selected by DSN, plus an
// in-memory store used in tests. All backends persist profiles, profile
// data, OTP codes, sessions, and interview transcripts.
package store

import (
	"errors"
	"strings"
	"time"

	"github.com/symposic/symposic/internal/models"
)

// Error variables shared by all backends.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a conditional interview update lost a race: the
	// stored transcript no longer matches the expected message count.
	ErrConflict = errors.New("interview was modified concurrently")
)

// OTPCode is a pending one-time code for a phone number. At most one row
// per phone; re-sending replaces the previous code.
type OTPCode struct {
	Phone     string
	Code      string
	ExpiresAt time.Time
}

// Session is an issued session token resolved back to a phone number.
type Session struct {
	Token     string
	Phone     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store defines the persistence operations used across modules.
//
// SaveInterview is the per-profile serialization point: it only applies
// when the stored transcript still has expectedMessageCount messages, so
// two concurrent advances for the same profile cannot interleave.
type Store interface {
	// Profiles
	CreateProfile(p models.Profile) error
	GetProfileByPhone(phone string) (*models.Profile, error)

	// Profile data
	UpsertProfileData(profileID string, data models.ProfileData) error
	GetProfileData(profileID string) (*models.ProfileData, error)

	// OTP codes
	SaveOTP(code OTPCode) error
	ConsumeOTP(phone, code string, now time.Time) (bool, error)
	DeleteExpiredOTPs(now time.Time) error

	// Sessions
	CreateSession(s Session) error
	GetSessionPhone(token string, now time.Time) (string, error)

	// Interviews
	CreateInterview(profileID string, iv models.Interview) error
	GetInterview(profileID string) (*models.Interview, error)
	SaveInterview(profileID string, iv models.Interview, expectedMessageCount int) error

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else, which is treated as a file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
