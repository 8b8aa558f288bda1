package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory stand-ins for the Postgres repository, mirroring its
// contract: unique tokens, idempotent invalidation, non-resurrecting
// valid flags.

type memLedger struct {
	mu        sync.Mutex
	records   map[string]AccessTokenRecord
	createErr error
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[string]AccessTokenRecord)}
}

func (l *memLedger) CreateAccessToken(_ context.Context, employeeID uuid.UUID, token string) (AccessTokenRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.createErr != nil {
		return AccessTokenRecord{}, l.createErr
	}
	if _, exists := l.records[token]; exists {
		return AccessTokenRecord{}, ErrTokenConflict
	}

	record := AccessTokenRecord{
		Token:      token,
		EmployeeID: employeeID,
		IssuedAt:   time.Now().UTC(),
		Valid:      true,
	}
	l.records[token] = record
	return record, nil
}

func (l *memLedger) FindAccessToken(_ context.Context, token string) (AccessTokenRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.records[token]
	if !exists {
		return AccessTokenRecord{}, ErrTokenNotFound
	}
	return record, nil
}

func (l *memLedger) InvalidateAccessToken(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if record, exists := l.records[token]; exists {
		record.Valid = false
		l.records[token] = record
	}
	return nil
}

func (l *memLedger) InvalidateAccessTokensForOwner(_ context.Context, employeeID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var count int64
	for token, record := range l.records {
		if record.EmployeeID == employeeID && record.Valid {
			record.Valid = false
			l.records[token] = record
			count++
		}
	}
	return count, nil
}

func (l *memLedger) DeleteAccessTokensOlderThan(_ context.Context, grace time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().UTC().Add(-grace)
	var count int64
	for token, record := range l.records {
		if record.IssuedAt.Before(cutoff) {
			delete(l.records, token)
			count++
		}
	}
	return count, nil
}

func (l *memLedger) seed(record AccessTokenRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[record.Token] = record
}

type memRefreshStore struct {
	mu           sync.Mutex
	outstanding  map[uuid.UUID]RefreshClaims
	blacklist    map[uuid.UUID]bool
	blacklistErr error
}

func newMemRefreshStore() *memRefreshStore {
	return &memRefreshStore{
		outstanding: make(map[uuid.UUID]RefreshClaims),
		blacklist:   make(map[uuid.UUID]bool),
	}
}

func (s *memRefreshStore) CreateRefreshToken(_ context.Context, claims RefreshClaims) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding[claims.JTI] = claims
	return nil
}

func (s *memRefreshStore) ListOutstandingRefresh(_ context.Context, employeeID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	jtis := make([]uuid.UUID, 0)
	for jti, claims := range s.outstanding {
		if claims.SubjectID == employeeID && claims.ExpiresAt.After(now) && !s.blacklist[jti] {
			jtis = append(jtis, jti)
		}
	}
	return jtis, nil
}

func (s *memRefreshStore) BlacklistRefreshToken(_ context.Context, jti uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blacklistErr != nil {
		return s.blacklistErr
	}
	s.blacklist[jti] = true
	return nil
}

func (s *memRefreshStore) IsRefreshBlacklisted(_ context.Context, jti uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist[jti], nil
}

type memSubjects struct {
	byEmail map[string]Subject
}

func newMemSubjects(subjects ...Subject) *memSubjects {
	store := &memSubjects{byEmail: make(map[string]Subject)}
	for _, subject := range subjects {
		store.byEmail[subject.Email] = subject
	}
	return store
}

func (s *memSubjects) FindSubjectByEmail(_ context.Context, email string) (Subject, error) {
	subject, exists := s.byEmail[email]
	if !exists {
		return Subject{}, ErrInvalidCredentials
	}
	return subject, nil
}

func (s *memSubjects) FindSubjectByID(_ context.Context, id uuid.UUID) (Subject, error) {
	for _, subject := range s.byEmail {
		if subject.ID == id {
			return subject, nil
		}
	}
	return Subject{}, ErrInvalidOrExpiredToken
}

type testLogger struct{}

func (testLogger) Info(string, map[string]any) {}
func (testLogger) Warn(string, map[string]any) {}
