package store

import (
	"sync"
	"time"

	"github.com/symposic/symposic/internal/models"
)

// InMemoryStore is a map-backed Store used in tests and local development.
type InMemoryStore struct {
	mu          sync.Mutex
	profiles    map[string]models.Profile // keyed by phone
	profileData map[string]models.ProfileData
	otps        map[string]OTPCode
	sessions    map[string]Session
	interviews  map[string]models.Interview
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles:    make(map[string]models.Profile),
		profileData: make(map[string]models.ProfileData),
		otps:        make(map[string]OTPCode),
		sessions:    make(map[string]Session),
		interviews:  make(map[string]models.Interview),
	}
}

func (s *InMemoryStore) CreateProfile(p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Phone] = p
	return nil
}

func (s *InMemoryStore) GetProfileByPhone(phone string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[phone]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) UpsertProfileData(profileID string, data models.ProfileData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileData[profileID] = data
	return nil
}

func (s *InMemoryStore) GetProfileData(profileID string) (*models.ProfileData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.profileData[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *InMemoryStore) SaveOTP(code OTPCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[code.Phone] = code
	return nil
}

func (s *InMemoryStore) ConsumeOTP(phone, code string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.otps[phone]
	if !ok || stored.Code != code || !stored.ExpiresAt.After(now) {
		return false, nil
	}
	delete(s.otps, phone)
	return true, nil
}

func (s *InMemoryStore) DeleteExpiredOTPs(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for phone, code := range s.otps {
		if !code.ExpiresAt.After(now) {
			delete(s.otps, phone)
		}
	}
	return nil
}

func (s *InMemoryStore) CreateSession(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
	return nil
}

func (s *InMemoryStore) GetSessionPhone(token string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok || !sess.ExpiresAt.After(now) {
		return "", ErrNotFound
	}
	return sess.Phone, nil
}

func (s *InMemoryStore) CreateInterview(profileID string, iv models.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interviews[profileID] = iv.Clone()
	return nil
}

func (s *InMemoryStore) GetInterview(profileID string) (*models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.interviews[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	out := iv.Clone()
	return &out, nil
}

func (s *InMemoryStore) SaveInterview(profileID string, iv models.Interview, expectedMessageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.interviews[profileID]
	if !ok {
		return ErrNotFound
	}
	if len(existing.Messages) != expectedMessageCount {
		return ErrConflict
	}
	s.interviews[profileID] = iv.Clone()
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
