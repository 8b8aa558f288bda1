package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// BlacklistChecker reports whether a refresh token id has been revoked.
type BlacklistChecker interface {
	IsRefreshBlacklisted(ctx context.Context, jti uuid.UUID) (bool, error)
}

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	SubjectID uuid.UUID
	IsAdmin   bool
}

// RefreshClaims is the verified content of a refresh token.
type RefreshClaims struct {
	SubjectID uuid.UUID
	JTI       uuid.UUID
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies the two bearer token classes. Refresh
// verification also consults the blacklist, so callers get a single
// usable/not-usable answer.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  BlacklistChecker
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration, blacklist BlacklistChecker) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		blacklist:  blacklist,
	}
}

func (t *TokenIssuer) IssueAccess(subjectID uuid.UUID, isAdmin bool) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subjectID.String(),
		"adm": isAdmin,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(t.accessTTL).Unix(),
		"typ": "access",
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return encoded, nil
}

// IssueRefresh signs a refresh token and returns its identity so the
// caller can record it as outstanding.
func (t *TokenIssuer) IssueRefresh(subjectID uuid.UUID) (string, RefreshClaims, error) {
	now := time.Now().UTC()
	jti := uuid.New()
	expiresAt := now.Add(t.refreshTTL)

	claims := jwt.MapClaims{
		"sub": subjectID.String(),
		"jti": jti.String(),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
		"typ": "refresh",
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", RefreshClaims{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return encoded, RefreshClaims{SubjectID: subjectID, JTI: jti, ExpiresAt: expiresAt}, nil
}

// VerifyAccess checks signature, expiry and token class. It does not
// consult the ledger; revocation is the gate's second layer.
func (t *TokenIssuer) VerifyAccess(tokenStr string) (AccessClaims, error) {
	claims, err := t.parse(tokenStr, "access")
	if err != nil {
		return AccessClaims{}, err
	}

	subjectID, err := subjectFromClaims(claims)
	if err != nil {
		return AccessClaims{}, err
	}

	isAdmin, _ := claims["adm"].(bool)
	return AccessClaims{SubjectID: subjectID, IsAdmin: isAdmin}, nil
}

// DecodeRefresh checks signature, expiry and token class without
// consulting the blacklist. Logout uses it so terminating a session
// stays idempotent even when the refresh token was already revoked.
func (t *TokenIssuer) DecodeRefresh(tokenStr string) (RefreshClaims, error) {
	claims, err := t.parse(tokenStr, "refresh")
	if err != nil {
		return RefreshClaims{}, err
	}

	subjectID, err := subjectFromClaims(claims)
	if err != nil {
		return RefreshClaims{}, err
	}

	jtiStr, _ := claims["jti"].(string)
	jti, err := uuid.Parse(jtiStr)
	if err != nil {
		return RefreshClaims{}, ErrInvalidOrExpiredToken
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return RefreshClaims{}, ErrInvalidOrExpiredToken
	}

	return RefreshClaims{SubjectID: subjectID, JTI: jti, ExpiresAt: expiry.Time.UTC()}, nil
}

// VerifyRefresh is DecodeRefresh plus blacklist membership. Any token
// failure collapses to ErrInvalidOrExpiredToken; blacklist store errors
// are returned as-is.
func (t *TokenIssuer) VerifyRefresh(ctx context.Context, tokenStr string) (RefreshClaims, error) {
	decoded, err := t.DecodeRefresh(tokenStr)
	if err != nil {
		return RefreshClaims{}, err
	}

	blacklisted, err := t.blacklist.IsRefreshBlacklisted(ctx, decoded.JTI)
	if err != nil {
		return RefreshClaims{}, fmt.Errorf("check refresh blacklist: %w", err)
	}
	if blacklisted {
		return RefreshClaims{}, ErrInvalidOrExpiredToken
	}

	return decoded, nil
}

func (t *TokenIssuer) parse(tokenStr, wantType string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidOrExpiredToken
	}

	if tokenType, _ := claims["typ"].(string); tokenType != wantType {
		return nil, ErrInvalidOrExpiredToken
	}

	return claims, nil
}

func subjectFromClaims(claims jwt.MapClaims) (uuid.UUID, error) {
	sub, _ := claims["sub"].(string)
	subjectID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidOrExpiredToken
	}
	return subjectID, nil
}
