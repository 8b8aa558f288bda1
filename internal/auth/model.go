package auth

import (
	"time"

	"github.com/google/uuid"
)

// Subject is the credential view of an employee, as much as the auth
// subsystem needs to know about one.
type Subject struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsAdmin      bool
}

// AccessTokenRecord is one row of the revocation ledger. Valid only ever
// transitions true to false; IssuedAt never changes after creation.
type AccessTokenRecord struct {
	Token      string
	EmployeeID uuid.UUID
	IssuedAt   time.Time
	Valid      bool
}

// TokenPair is what a successful login returns.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RevocationSweep collects the outcome of the best-effort prior-session
// revocation performed on login. Failures are logged, never propagated:
// a legitimate login must not be blocked by them.
type RevocationSweep struct {
	BlacklistedRefresh int
	InvalidatedAccess  int64
	Failures           []error
}
