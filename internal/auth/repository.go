package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// Repository is the Postgres store behind the auth subsystem: subject
// credentials, the access-token ledger and the refresh-token tables.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindSubjectByEmail(ctx context.Context, email string) (Subject, error) {
	var subject Subject
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, is_admin
		FROM employees
		WHERE email = $1
	`, email).Scan(&subject.ID, &subject.Email, &subject.PasswordHash, &subject.IsAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subject{}, ErrInvalidCredentials
		}
		return Subject{}, fmt.Errorf("query subject by email: %w", err)
	}

	return subject, nil
}

func (r *Repository) FindSubjectByID(ctx context.Context, id uuid.UUID) (Subject, error) {
	var subject Subject
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, is_admin
		FROM employees
		WHERE id = $1
	`, id).Scan(&subject.ID, &subject.Email, &subject.PasswordHash, &subject.IsAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subject{}, ErrInvalidOrExpiredToken
		}
		return Subject{}, fmt.Errorf("query subject by id: %w", err)
	}

	return subject, nil
}

// CreateAccessToken inserts a ledger record for a freshly issued access
// token. A duplicate token is ErrTokenConflict, never silently ignored.
func (r *Repository) CreateAccessToken(ctx context.Context, employeeID uuid.UUID, token string) (AccessTokenRecord, error) {
	record := AccessTokenRecord{Token: token, EmployeeID: employeeID}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO auth_access_tokens (token, employee_id)
		VALUES ($1, $2)
		RETURNING issued_at, valid
	`, token, employeeID).Scan(&record.IssuedAt, &record.Valid)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return AccessTokenRecord{}, ErrTokenConflict
		}
		return AccessTokenRecord{}, fmt.Errorf("insert access token record: %w", err)
	}

	return record, nil
}

func (r *Repository) FindAccessToken(ctx context.Context, token string) (AccessTokenRecord, error) {
	var record AccessTokenRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT token, employee_id, issued_at, valid
		FROM auth_access_tokens
		WHERE token = $1
	`, token).Scan(&record.Token, &record.EmployeeID, &record.IssuedAt, &record.Valid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AccessTokenRecord{}, ErrTokenNotFound
		}
		return AccessTokenRecord{}, fmt.Errorf("query access token record: %w", err)
	}

	return record, nil
}

// InvalidateAccessToken flips valid to false. Invalidating an already
// invalid record is a no-op, so concurrent logouts converge safely.
func (r *Repository) InvalidateAccessToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE auth_access_tokens
		SET valid = FALSE
		WHERE token = $1
	`, token)
	if err != nil {
		return fmt.Errorf("invalidate access token: %w", err)
	}

	return nil
}

// InvalidateAccessTokensForOwner revokes every still-valid ledger record
// of one subject. Used by the login revocation sweep.
func (r *Repository) InvalidateAccessTokensForOwner(ctx context.Context, employeeID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE auth_access_tokens
		SET valid = FALSE
		WHERE employee_id = $1 AND valid
	`, employeeID)
	if err != nil {
		return 0, fmt.Errorf("invalidate access tokens for owner: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("invalidated access tokens rows affected: %w", err)
	}

	return affected, nil
}

// DeleteAccessTokensOlderThan removes every ledger record issued before
// now minus grace, valid or not. The ledger is a short revocation
// window, not an audit log.
func (r *Repository) DeleteAccessTokensOlderThan(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-grace)

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM auth_access_tokens
		WHERE issued_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete aged access tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("aged access tokens rows affected: %w", err)
	}

	return affected, nil
}

func (r *Repository) CreateRefreshToken(ctx context.Context, claims RefreshClaims) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_refresh_tokens (jti, employee_id, expires_at)
		VALUES ($1, $2, $3)
	`, claims.JTI, claims.SubjectID, claims.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert outstanding refresh token: %w", err)
	}

	return nil
}

// ListOutstandingRefresh returns the ids of every live, not yet
// blacklisted refresh token issued to the subject.
func (r *Repository) ListOutstandingRefresh(ctx context.Context, employeeID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.jti
		FROM auth_refresh_tokens t
		LEFT JOIN auth_refresh_blacklist b ON b.jti = t.jti
		WHERE t.employee_id = $1
		  AND t.expires_at > NOW()
		  AND b.jti IS NULL
	`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("query outstanding refresh tokens: %w", err)
	}
	defer rows.Close()

	jtis := make([]uuid.UUID, 0)
	for rows.Next() {
		var jti uuid.UUID
		if err := rows.Scan(&jti); err != nil {
			return nil, fmt.Errorf("scan outstanding refresh token: %w", err)
		}
		jtis = append(jtis, jti)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outstanding refresh tokens: %w", err)
	}

	return jtis, nil
}

// BlacklistRefreshToken records a refresh token id as revoked.
// Re-blacklisting is a no-op.
func (r *Repository) BlacklistRefreshToken(ctx context.Context, jti uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_refresh_blacklist (jti)
		VALUES ($1)
		ON CONFLICT (jti) DO NOTHING
	`, jti)
	if err != nil {
		return fmt.Errorf("blacklist refresh token: %w", err)
	}

	return nil
}

func (r *Repository) IsRefreshBlacklisted(ctx context.Context, jti uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM auth_refresh_blacklist WHERE jti = $1)
	`, jti).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query refresh blacklist: %w", err)
	}

	return exists, nil
}

// DeleteExpiredRefreshTokens purges outstanding rows past their expiry
// together with their blacklist entries. Returns the number of
// outstanding rows removed.
func (r *Repository) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin refresh purge tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM auth_refresh_blacklist b
		USING auth_refresh_tokens t
		WHERE b.jti = t.jti AND t.expires_at < NOW()
	`); err != nil {
		return 0, fmt.Errorf("delete expired blacklist entries: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM auth_refresh_tokens
		WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired refresh tokens rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit refresh purge tx: %w", err)
	}

	return affected, nil
}
