package maintenance

import (
	"context"
	"time"
)

// accessLedger is the slice of the auth repository the reaper needs.
type accessLedger interface {
	DeleteAccessTokensOlderThan(ctx context.Context, grace time.Duration) (int64, error)
}

type refreshPurger interface {
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
}

type reaperLogger interface {
	Info(message string, fields map[string]any)
}

// Result reports what one reaper run removed.
type Result struct {
	PurgedAccessRecords int64 `json:"purged_access_records"`
	PurgedRefreshTokens int64 `json:"purged_refresh_tokens"`
}

// Reaper purges ledger records past the grace window, valid or not, plus
// expired outstanding refresh tokens. It runs out-of-band, concurrent
// with live traffic; either the whole run succeeds or it fails and the
// next scheduled run retries.
type Reaper struct {
	ledger  accessLedger
	refresh refreshPurger
	grace   time.Duration
	logger  reaperLogger
}

const defaultGrace = 10 * time.Minute

func NewReaper(ledger accessLedger, refresh refreshPurger, grace time.Duration, logger reaperLogger) *Reaper {
	if grace <= 0 {
		grace = defaultGrace
	}

	return &Reaper{
		ledger:  ledger,
		refresh: refresh,
		grace:   grace,
		logger:  logger,
	}
}

func (r *Reaper) Run(ctx context.Context) (Result, error) {
	purgedAccess, err := r.ledger.DeleteAccessTokensOlderThan(ctx, r.grace)
	if err != nil {
		return Result{}, err
	}

	purgedRefresh, err := r.refresh.DeleteExpiredRefreshTokens(ctx)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		PurgedAccessRecords: purgedAccess,
		PurgedRefreshTokens: purgedRefresh,
	}

	r.logger.Info("token_reaper_completed", map[string]any{
		"grace_minutes":         r.grace.Minutes(),
		"purged_access_records": result.PurgedAccessRecords,
		"purged_refresh_tokens": result.PurgedRefreshTokens,
	})

	return result, nil
}
