package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

type contextKey struct{}

var identityKey contextKey

// Identity is attached to the request context once the gate has
// accepted the bearer token.
type Identity struct {
	EmployeeID uuid.UUID
	IsAdmin    bool
	// Token is the raw access token as presented, needed by logout to
	// find its own ledger record.
	Token string
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// ContextWithIdentity attaches an identity to the context the same way
// the gate does.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// Gate guards protected endpoints with two layers: cryptographic
// verification of the bearer token, then the ledger revocation check.
// The second layer is what rejects a logged-out or superseded token
// before its natural expiry.
type Gate struct {
	tokens *TokenIssuer
	ledger Ledger
}

func NewGate(tokens *TokenIssuer, ledger Ledger) *Gate {
	return &Gate{tokens: tokens, ledger: ledger}
}

func (g *Gate) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeError(w, http.StatusUnauthorized, "authorization header is missing")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "invalid authorization token")
			return
		}

		claims, err := g.tokens.VerifyAccess(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		record, err := g.ledger.FindAccessToken(r.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, ErrTokenNotFound) {
				writeError(w, http.StatusUnauthorized, "token does not exist")
				return
			}
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to verify token")
			return
		}
		if !record.Valid {
			writeError(w, http.StatusUnauthorized, "token is invalid")
			return
		}

		identity := Identity{
			EmployeeID: claims.SubjectID,
			IsAdmin:    claims.IsAdmin,
			Token:      tokenStr,
		}

		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// ProtectAdmin layers an administrator check on top of Protect.
func (g *Gate) ProtectAdmin(next http.Handler) http.Handler {
	return g.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || !identity.IsAdmin {
			writeError(w, http.StatusForbidden, "administrator access required")
			return
		}

		next.ServeHTTP(w, r)
	}))
}
