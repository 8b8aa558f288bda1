package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Ledger is the server-side authority on whether an issued access token
// is currently usable.
type Ledger interface {
	CreateAccessToken(ctx context.Context, employeeID uuid.UUID, token string) (AccessTokenRecord, error)
	FindAccessToken(ctx context.Context, token string) (AccessTokenRecord, error)
	InvalidateAccessToken(ctx context.Context, token string) error
	InvalidateAccessTokensForOwner(ctx context.Context, employeeID uuid.UUID) (int64, error)
	DeleteAccessTokensOlderThan(ctx context.Context, grace time.Duration) (int64, error)
}

// RefreshStore tracks outstanding refresh tokens and the blacklist.
type RefreshStore interface {
	CreateRefreshToken(ctx context.Context, claims RefreshClaims) error
	ListOutstandingRefresh(ctx context.Context, employeeID uuid.UUID) ([]uuid.UUID, error)
	BlacklistRefreshToken(ctx context.Context, jti uuid.UUID) error
}

// SubjectStore resolves employee credentials.
type SubjectStore interface {
	FindSubjectByEmail(ctx context.Context, email string) (Subject, error)
	FindSubjectByID(ctx context.Context, id uuid.UUID) (Subject, error)
}

type sweepLogger interface {
	Warn(message string, fields map[string]any)
	Info(message string, fields map[string]any)
}

// Service implements the session lifecycle: login, logout, refresh.
type Service struct {
	subjects SubjectStore
	ledger   Ledger
	refresh  RefreshStore
	tokens   *TokenIssuer
	logger   sweepLogger
}

func NewService(subjects SubjectStore, ledger Ledger, refresh RefreshStore, tokens *TokenIssuer, logger sweepLogger) *Service {
	return &Service{
		subjects: subjects,
		ledger:   ledger,
		refresh:  refresh,
		tokens:   tokens,
		logger:   logger,
	}
}

// Login authenticates the credentials, force-revokes every prior session
// of the subject, then issues and records a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	subject, err := s.subjects.FindSubjectByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(subject.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}

	sweep := s.revokePriorSessions(ctx, subject.ID)
	s.logger.Info("login_revocation_sweep", map[string]any{
		"employee_id":         subject.ID.String(),
		"blacklisted_refresh": sweep.BlacklistedRefresh,
		"invalidated_access":  sweep.InvalidatedAccess,
		"failures":            len(sweep.Failures),
	})

	refreshToken, refreshClaims, err := s.tokens.IssueRefresh(subject.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.refresh.CreateRefreshToken(ctx, refreshClaims); err != nil {
		return TokenPair{}, err
	}

	accessToken, err := s.tokens.IssueAccess(subject.ID, subject.IsAdmin)
	if err != nil {
		return TokenPair{}, err
	}

	if _, err := s.ledger.CreateAccessToken(ctx, subject.ID, accessToken); err != nil {
		return TokenPair{}, fmt.Errorf("record issued access token: %w", err)
	}

	return TokenPair{Access: accessToken, Refresh: refreshToken}, nil
}

// revokePriorSessions blacklists every outstanding refresh token and
// invalidates every still-valid ledger record of the subject. Partial
// failures are collected and logged; none of them may block the login.
func (s *Service) revokePriorSessions(ctx context.Context, employeeID uuid.UUID) RevocationSweep {
	var sweep RevocationSweep

	jtis, err := s.refresh.ListOutstandingRefresh(ctx, employeeID)
	if err != nil {
		sweep.Failures = append(sweep.Failures, fmt.Errorf("list outstanding refresh tokens: %w", err))
	}
	for _, jti := range jtis {
		if err := s.refresh.BlacklistRefreshToken(ctx, jti); err != nil {
			sweep.Failures = append(sweep.Failures, fmt.Errorf("blacklist refresh token %s: %w", jti, err))
			continue
		}
		sweep.BlacklistedRefresh++
	}

	invalidated, err := s.ledger.InvalidateAccessTokensForOwner(ctx, employeeID)
	if err != nil {
		sweep.Failures = append(sweep.Failures, fmt.Errorf("invalidate prior access tokens: %w", err))
	}
	sweep.InvalidatedAccess = invalidated

	for _, failure := range sweep.Failures {
		s.logger.Warn("login_revocation_failure", map[string]any{
			"employee_id": employeeID.String(),
			"error":       failure.Error(),
		})
	}

	return sweep
}

// Logout terminates the session behind the presented access token. The
// ledger invalidation happens first so a later blacklist failure never
// leaves the access token usable.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	record, err := s.ledger.FindAccessToken(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := s.ledger.InvalidateAccessToken(ctx, record.Token); err != nil {
		return err
	}

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return ErrMissingRefreshToken
	}

	// Blacklist membership is not checked here; re-blacklisting an
	// already revoked token is a no-op, which keeps logout idempotent.
	claims, err := s.tokens.DecodeRefresh(refreshToken)
	if err != nil {
		return err
	}

	if err := s.refresh.BlacklistRefreshToken(ctx, claims.JTI); err != nil {
		return err
	}

	return nil
}

// Refresh exchanges a live refresh token for a new access token. The new
// token is recorded in the ledger so logout-style revocation covers it.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return "", ErrMissingRefreshToken
	}

	claims, err := s.tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	// The subject may have been deleted since the refresh token was
	// issued; a dangling token must not mint access tokens.
	subject, err := s.subjects.FindSubjectByID(ctx, claims.SubjectID)
	if err != nil {
		return "", err
	}

	accessToken, err := s.tokens.IssueAccess(subject.ID, subject.IsAdmin)
	if err != nil {
		return "", err
	}

	if _, err := s.ledger.CreateAccessToken(ctx, subject.ID, accessToken); err != nil {
		return "", fmt.Errorf("record refreshed access token: %w", err)
	}

	return accessToken, nil
}
