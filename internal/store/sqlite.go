// Package store provides storage backends for Symposic.
//
// This file implements an SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/symposic/symposic/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateProfile(p models.Profile) error {
	_, err := s.db.Exec(`INSERT INTO profiles (profile_id, phone, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		p.ProfileID, p.Phone, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateProfile failed", "error", err, "profileID", p.ProfileID)
		return fmt.Errorf("failed to insert profile %s: %w", p.ProfileID, err)
	}
	slog.Debug("SQLiteStore CreateProfile succeeded", "profileID", p.ProfileID)
	return nil
}

func (s *SQLiteStore) GetProfileByPhone(phone string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRow(`SELECT profile_id, phone, created_at, updated_at FROM profiles WHERE phone = ?`, phone).
		Scan(&p.ProfileID, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetProfileByPhone not found", "phone", phone)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetProfileByPhone failed", "error", err)
		return nil, fmt.Errorf("failed to query profile by phone: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertProfileData(profileID string, data models.ProfileData) error {
	_, err := s.db.Exec(`
		INSERT INTO profile_data (profile_id, first_name, last_name, city, state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (profile_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name  = excluded.last_name,
			city       = excluded.city,
			state      = excluded.state`,
		profileID, data.FirstName, data.LastName, data.City, data.State)
	if err != nil {
		slog.Error("SQLiteStore UpsertProfileData failed", "error", err, "profileID", profileID)
		return fmt.Errorf("failed to upsert profile data for %s: %w", profileID, err)
	}
	slog.Debug("SQLiteStore UpsertProfileData succeeded", "profileID", profileID)
	return nil
}

func (s *SQLiteStore) GetProfileData(profileID string) (*models.ProfileData, error) {
	var d models.ProfileData
	err := s.db.QueryRow(`SELECT first_name, last_name, city, state FROM profile_data WHERE profile_id = ?`, profileID).
		Scan(&d.FirstName, &d.LastName, &d.City, &d.State)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetProfileData failed", "error", err, "profileID", profileID)
		return nil, fmt.Errorf("failed to query profile data: %w", err)
	}
	return &d, nil
}

func (s *SQLiteStore) SaveOTP(code OTPCode) error {
	_, err := s.db.Exec(`
		INSERT INTO otp_codes (phone, code, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (phone) DO UPDATE SET code = excluded.code, expires_at = excluded.expires_at`,
		code.Phone, code.Code, code.ExpiresAt)
	if err != nil {
		slog.Error("SQLiteStore SaveOTP failed", "error", err, "phone", code.Phone)
		return fmt.Errorf("failed to save OTP for %s: %w", code.Phone, err)
	}
	slog.Debug("SQLiteStore SaveOTP succeeded", "phone", code.Phone)
	return nil
}

func (s *SQLiteStore) ConsumeOTP(phone, code string, now time.Time) (bool, error) {
	var stored string
	var expiresAt time.Time
	err := s.db.QueryRow(`SELECT code, expires_at FROM otp_codes WHERE phone = ?`, phone).Scan(&stored, &expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore ConsumeOTP query failed", "error", err, "phone", phone)
		return false, fmt.Errorf("failed to query OTP for %s: %w", phone, err)
	}
	if stored != code || !expiresAt.After(now) {
		return false, nil
	}
	if _, err := s.db.Exec(`DELETE FROM otp_codes WHERE phone = ?`, phone); err != nil {
		slog.Error("SQLiteStore ConsumeOTP delete failed", "error", err, "phone", phone)
		return false, fmt.Errorf("failed to consume OTP for %s: %w", phone, err)
	}
	slog.Debug("SQLiteStore ConsumeOTP succeeded", "phone", phone)
	return true, nil
}

func (s *SQLiteStore) DeleteExpiredOTPs(now time.Time) error {
	_, err := s.db.Exec(`DELETE FROM otp_codes WHERE expires_at <= ?`, now)
	if err != nil {
		slog.Error("SQLiteStore DeleteExpiredOTPs failed", "error", err)
		return fmt.Errorf("failed to delete expired OTPs: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateSession(sess Session) error {
	_, err := s.db.Exec(`INSERT INTO sessions (session_token, phone, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.Token, sess.Phone, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		slog.Error("SQLiteStore CreateSession failed", "error", err, "phone", sess.Phone)
		return fmt.Errorf("failed to insert session: %w", err)
	}
	slog.Debug("SQLiteStore CreateSession succeeded", "phone", sess.Phone)
	return nil
}

func (s *SQLiteStore) GetSessionPhone(token string, now time.Time) (string, error) {
	var phone string
	var expiresAt time.Time
	err := s.db.QueryRow(`SELECT phone, expires_at FROM sessions WHERE session_token = ?`, token).
		Scan(&phone, &expiresAt)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetSessionPhone failed", "error", err)
		return "", fmt.Errorf("failed to query session: %w", err)
	}
	if !expiresAt.After(now) {
		return "", ErrNotFound
	}
	return phone, nil
}

func (s *SQLiteStore) CreateInterview(profileID string, iv models.Interview) error {
	document, err := marshalInterview(iv)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO interviews (profile_id, document, message_count, finished_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		profileID, document, len(iv.Messages), nullableTime(iv.FinishedAt), now, now)
	if err != nil {
		slog.Error("SQLiteStore CreateInterview failed", "error", err, "profileID", profileID)
		return fmt.Errorf("failed to insert interview for %s: %w", profileID, err)
	}
	slog.Debug("SQLiteStore CreateInterview succeeded", "profileID", profileID, "messages", len(iv.Messages))
	return nil
}

func (s *SQLiteStore) GetInterview(profileID string) (*models.Interview, error) {
	var document string
	var finishedAt sql.NullTime
	err := s.db.QueryRow(`SELECT document, finished_at FROM interviews WHERE profile_id = ?`, profileID).
		Scan(&document, &finishedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetInterview not found", "profileID", profileID)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetInterview failed", "error", err, "profileID", profileID)
		return nil, fmt.Errorf("failed to query interview: %w", err)
	}
	return unmarshalInterview(document, finishedAt)
}

// SaveInterview applies a conditional single-row update: it only succeeds
// when the stored transcript still has expectedMessageCount messages. This
// is the serialization point that keeps concurrent advances for one profile
// from interleaving.
func (s *SQLiteStore) SaveInterview(profileID string, iv models.Interview, expectedMessageCount int) error {
	document, err := marshalInterview(iv)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE interviews
		SET document = ?, message_count = ?, finished_at = ?, updated_at = ?
		WHERE profile_id = ? AND message_count = ?`,
		document, len(iv.Messages), nullableTime(iv.FinishedAt), time.Now().UTC(),
		profileID, expectedMessageCount)
	if err != nil {
		slog.Error("SQLiteStore SaveInterview failed", "error", err, "profileID", profileID)
		return fmt.Errorf("failed to update interview for %s: %w", profileID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := s.db.QueryRow(`SELECT 1 FROM interviews WHERE profile_id = ?`, profileID).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		}
		slog.Warn("SQLiteStore SaveInterview lost conditional update", "profileID", profileID, "expected", expectedMessageCount)
		return ErrConflict
	}
	slog.Debug("SQLiteStore SaveInterview succeeded", "profileID", profileID, "messages", len(iv.Messages))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
