// Package store provides storage backends for Symposic.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/symposic/symposic/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateProfile(p models.Profile) error {
	_, err := s.db.Exec(`INSERT INTO profiles (profile_id, phone, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		p.ProfileID, p.Phone, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateProfile failed", "error", err, "profileID", p.ProfileID)
		return fmt.Errorf("failed to insert profile %s: %w", p.ProfileID, err)
	}
	slog.Debug("PostgresStore CreateProfile succeeded", "profileID", p.ProfileID)
	return nil
}

func (s *PostgresStore) GetProfileByPhone(phone string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRow(`SELECT profile_id, phone, created_at, updated_at FROM profiles WHERE phone = $1`, phone).
		Scan(&p.ProfileID, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetProfileByPhone not found", "phone", phone)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetProfileByPhone failed", "error", err)
		return nil, fmt.Errorf("failed to query profile by phone: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) UpsertProfileData(profileID string, data models.ProfileData) error {
	_, err := s.db.Exec(`
		INSERT INTO profile_data (profile_id, first_name, last_name, city, state)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (profile_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name  = EXCLUDED.last_name,
			city       = EXCLUDED.city,
			state      = EXCLUDED.state`,
		profileID, data.FirstName, data.LastName, data.City, data.State)
	if err != nil {
		slog.Error("PostgresStore UpsertProfileData failed", "error", err, "profileID", profileID)
		return fmt.Errorf("failed to upsert profile data for %s: %w", profileID, err)
	}
	slog.Debug("PostgresStore UpsertProfileData succeeded", "profileID", profileID)
	return nil
}

func (s *PostgresStore) GetProfileData(profileID string) (*models.ProfileData, error) {
	var d models.ProfileData
	err := s.db.QueryRow(`SELECT first_name, last_name, city, state FROM profile_data WHERE profile_id = $1`, profileID).
		Scan(&d.FirstName, &d.LastName, &d.City, &d.State)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetProfileData failed", "error", err, "profileID", profileID)
		return nil, fmt.Errorf("failed to query profile data: %w", err)
	}
	return &d, nil
}

func (s *PostgresStore) SaveOTP(code OTPCode) error {
	_, err := s.db.Exec(`
		INSERT INTO otp_codes (phone, code, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at`,
		code.Phone, code.Code, code.ExpiresAt)
	if err != nil {
		slog.Error("PostgresStore SaveOTP failed", "error", err, "phone", code.Phone)
		return fmt.Errorf("failed to save OTP for %s: %w", code.Phone, err)
	}
	slog.Debug("PostgresStore SaveOTP succeeded", "phone", code.Phone)
	return nil
}

func (s *PostgresStore) ConsumeOTP(phone, code string, now time.Time) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM otp_codes WHERE phone = $1 AND code = $2 AND expires_at > $3`,
		phone, code, now)
	if err != nil {
		slog.Error("PostgresStore ConsumeOTP failed", "error", err, "phone", phone)
		return false, fmt.Errorf("failed to consume OTP for %s: %w", phone, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	slog.Debug("PostgresStore ConsumeOTP succeeded", "phone", phone)
	return true, nil
}

func (s *PostgresStore) DeleteExpiredOTPs(now time.Time) error {
	_, err := s.db.Exec(`DELETE FROM otp_codes WHERE expires_at <= $1`, now)
	if err != nil {
		slog.Error("PostgresStore DeleteExpiredOTPs failed", "error", err)
		return fmt.Errorf("failed to delete expired OTPs: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSession(sess Session) error {
	_, err := s.db.Exec(`INSERT INTO sessions (session_token, phone, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		sess.Token, sess.Phone, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		slog.Error("PostgresStore CreateSession failed", "error", err, "phone", sess.Phone)
		return fmt.Errorf("failed to insert session: %w", err)
	}
	slog.Debug("PostgresStore CreateSession succeeded", "phone", sess.Phone)
	return nil
}

func (s *PostgresStore) GetSessionPhone(token string, now time.Time) (string, error) {
	var phone string
	err := s.db.QueryRow(`SELECT phone FROM sessions WHERE session_token = $1 AND expires_at > $2`, token, now).
		Scan(&phone)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetSessionPhone failed", "error", err)
		return "", fmt.Errorf("failed to query session: %w", err)
	}
	return phone, nil
}

func (s *PostgresStore) CreateInterview(profileID string, iv models.Interview) error {
	document, err := marshalInterview(iv)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO interviews (profile_id, document, message_count, finished_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		profileID, document, len(iv.Messages), nullableTime(iv.FinishedAt), now, now)
	if err != nil {
		slog.Error("PostgresStore CreateInterview failed", "error", err, "profileID", profileID)
		return fmt.Errorf("failed to insert interview for %s: %w", profileID, err)
	}
	slog.Debug("PostgresStore CreateInterview succeeded", "profileID", profileID, "messages", len(iv.Messages))
	return nil
}

func (s *PostgresStore) GetInterview(profileID string) (*models.Interview, error) {
	var document string
	var finishedAt sql.NullTime
	err := s.db.QueryRow(`SELECT document, finished_at FROM interviews WHERE profile_id = $1`, profileID).
		Scan(&document, &finishedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetInterview not found", "profileID", profileID)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetInterview failed", "error", err, "profileID", profileID)
		return nil, fmt.Errorf("failed to query interview: %w", err)
	}
	return unmarshalInterview(document, finishedAt)
}

// SaveInterview applies the same conditional single-row update as the SQLite
// backend; see Store for the serialization contract.
func (s *PostgresStore) SaveInterview(profileID string, iv models.Interview, expectedMessageCount int) error {
	document, err := marshalInterview(iv)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE interviews
		SET document = $1, message_count = $2, finished_at = $3, updated_at = $4
		WHERE profile_id = $5 AND message_count = $6`,
		document, len(iv.Messages), nullableTime(iv.FinishedAt), time.Now().UTC(),
		profileID, expectedMessageCount)
	if err != nil {
		slog.Error("PostgresStore SaveInterview failed", "error", err, "profileID", profileID)
		return fmt.Errorf("failed to update interview for %s: %w", profileID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := s.db.QueryRow(`SELECT 1 FROM interviews WHERE profile_id = $1`, profileID).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		}
		slog.Warn("PostgresStore SaveInterview lost conditional update", "profileID", profileID, "expected", expectedMessageCount)
		return ErrConflict
	}
	slog.Debug("PostgresStore SaveInterview succeeded", "profileID", profileID, "messages", len(iv.Messages))
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
