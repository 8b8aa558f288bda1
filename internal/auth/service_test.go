package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse-battery"

type serviceFixture struct {
	service  *Service
	subjects *memSubjects
	ledger   *memLedger
	refresh  *memRefreshStore
	tokens   *TokenIssuer
	subject  Subject
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	subject := Subject{
		ID:           uuid.New(),
		Email:        "alice@x.com",
		PasswordHash: string(hash),
		IsAdmin:      false,
	}

	subjects := newMemSubjects(subject)
	ledger := newMemLedger()
	refresh := newMemRefreshStore()
	tokens := NewTokenIssuer("test-secret", time.Minute, time.Hour, refresh)

	return &serviceFixture{
		service:  NewService(subjects, ledger, refresh, tokens, testLogger{}),
		subjects: subjects,
		ledger:   ledger,
		refresh:  refresh,
		tokens:   tokens,
		subject:  subject,
	}
}

func TestService_Login(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newServiceFixture(t)

	pair, err := fx.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	record, err := fx.ledger.FindAccessToken(ctx, pair.Access)
	require.NoError(t, err)
	assert.True(t, record.Valid)
	assert.Equal(t, fx.subject.ID, record.EmployeeID)
}

func TestService_Login_InvalidCredentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newServiceFixture(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "unknown email", email: "nobody@x.com", password: testPassword},
		{name: "wrong password", email: "alice@x.com", password: "wrong-password"},
		{name: "empty password", email: "alice@x.com", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.service.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestService_Login_RevokesPriorSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newServiceFixture(t)

	first, err := fx.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)

	second, err := fx.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)

	// Prior refresh lineage is dead.
	_, err = fx.service.Refresh(ctx, first.Refresh)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	// Prior access token is invalid in the ledger even though it has
	// not cryptographically expired.
	record, err := fx.ledger.FindAccessToken(ctx, first.Access)
	require.NoError(t, err)
	assert.False(t, record.Valid)

	// The new pair is live.
	record, err = fx.ledger.FindAccessToken(ctx, second.Access)
	require.NoError(t, err)
	assert.True(t, record.Valid)
	_, err = fx.service.Refresh(ctx, second.Refresh)
	assert.NoError(t, err)
}

func TestService_Login_SucceedsDespiteSweepFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newServiceFixture(t)

	_, err := fx.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)

	fx.refresh.blacklistErr = errors.New("blacklist unavailable")
	defer func() { fx.refresh.blacklistErr = nil }()

	pair, err := fx.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)
}

func TestService_Logout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newServiceFixture(t)

	pair, err := fx.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, fx.service.Logout(ctx, pair.Access, pair.Refresh))

	record, err := fx.ledger.FindAccessToken(ctx, pair.Access)
	require.NoError(t, err)
	assert.False(t, record.Valid)

	_, err = fx.service.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestService_Logout_UnknownAccessToken(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)

	err := fx.service.Logout(context.Background(), "unknown-token", "whatever")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestService_Logout_MissingRefreshStillInvalidatesAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newServiceFixture(t)

	pair, err := fx.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)

	err = fx.service.Logout(ctx, pair.Access, "")
	assert.ErrorIs(t, err, ErrMissingRefreshToken)

	// The partial failure must not leave the access token usable.
	record, err := fx.ledger.FindAccessToken(ctx, pair.Access)
	require.NoError(t, err)
	assert.False(t, record.Valid)
}

func TestService_Logout_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newServiceFixture(t)

	pair, err := fx.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, fx.service.Logout(ctx, pair.Access, pair.Refresh))
	// A racing second logout converges on the same state.
	require.NoError(t, fx.service.Logout(ctx, pair.Access, pair.Refresh))

	record, err := fx.ledger.FindAccessToken(ctx, pair.Access)
	require.NoError(t, err)
	assert.False(t, record.Valid)
}

func TestService_Refresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newServiceFixture(t)

	pair, err := fx.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)

	access, err := fx.service.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	assert.NotEqual(t, pair.Access, access)

	// The refreshed token is tracked by the ledger so logout-style
	// revocation covers it.
	record, err := fx.ledger.FindAccessToken(ctx, access)
	require.NoError(t, err)
	assert.True(t, record.Valid)
}

func TestService_Refresh_Missing(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)

	_, err := fx.service.Refresh(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrMissingRefreshToken)
}

func TestService_Refresh_Garbage(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)

	_, err := fx.service.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestService_Refresh_DeletedSubject(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newServiceFixture(t)

	pair, err := fx.service.Login(ctx, "alice@x.com", testPassword)
	require.NoError(t, err)

	delete(fx.subjects.byEmail, "alice@x.com")

	_, err = fx.service.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestService_Login_LedgerConflictIsFatal(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	fx.ledger.createErr = ErrTokenConflict

	_, err := fx.service.Login(context.Background(), "alice@x.com", testPassword)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenConflict)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
