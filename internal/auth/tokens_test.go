package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlacklist struct {
	mu      sync.Mutex
	revoked map[uuid.UUID]bool
	err     error
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[uuid.UUID]bool)}
}

func (f *fakeBlacklist) IsRefreshBlacklisted(_ context.Context, jti uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[jti], nil
}

func (f *fakeBlacklist) add(jti uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
}

func TestTokenIssuer_AccessRoundTrip(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("test-secret", time.Minute, time.Hour, newFakeBlacklist())
	subjectID := uuid.New()

	token, err := issuer.IssueAccess(subjectID, true)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, subjectID, claims.SubjectID)
	assert.True(t, claims.IsAdmin)
}

func TestTokenIssuer_AccessTokensAreUnique(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("test-secret", time.Minute, time.Hour, newFakeBlacklist())
	subjectID := uuid.New()

	first, err := issuer.IssueAccess(subjectID, false)
	require.NoError(t, err)
	second, err := issuer.IssueAccess(subjectID, false)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenIssuer_RefreshRoundTrip(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("test-secret", time.Minute, time.Hour, newFakeBlacklist())
	subjectID := uuid.New()

	token, issued, err := issuer.IssueRefresh(subjectID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, subjectID, issued.SubjectID)

	claims, err := issuer.VerifyRefresh(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, issued.JTI, claims.JTI)
	assert.Equal(t, subjectID, claims.SubjectID)
}

func TestTokenIssuer_RejectsWrongTokenClass(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("test-secret", time.Minute, time.Hour, newFakeBlacklist())
	subjectID := uuid.New()

	access, err := issuer.IssueAccess(subjectID, false)
	require.NoError(t, err)
	refresh, _, err := issuer.IssueRefresh(subjectID)
	require.NoError(t, err)

	_, err = issuer.VerifyRefresh(context.Background(), access)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = issuer.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestTokenIssuer_RejectsExpiredRefresh(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("test-secret", time.Minute, -time.Minute, newFakeBlacklist())

	token, _, err := issuer.IssueRefresh(uuid.New())
	require.NoError(t, err)

	_, err = issuer.VerifyRefresh(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestTokenIssuer_RejectsBlacklistedRefresh(t *testing.T) {
	t.Parallel()

	blacklist := newFakeBlacklist()
	issuer := NewTokenIssuer("test-secret", time.Minute, time.Hour, blacklist)

	token, issued, err := issuer.IssueRefresh(uuid.New())
	require.NoError(t, err)

	_, err = issuer.VerifyRefresh(context.Background(), token)
	require.NoError(t, err)

	blacklist.add(issued.JTI)

	_, err = issuer.VerifyRefresh(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestTokenIssuer_RejectsForeignSignature(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("test-secret", time.Minute, time.Hour, newFakeBlacklist())
	other := NewTokenIssuer("other-secret", time.Minute, time.Hour, newFakeBlacklist())

	token, err := other.IssueAccess(uuid.New(), false)
	require.NoError(t, err)

	_, err = issuer.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = issuer.VerifyAccess("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}
