package ledger

import (
	"context"
	"errors"
	"fmt"

	"movie-recommender/internal/domain"
)

// DefaultLimit is the per-member model spend ceiling.
var DefaultLimit = domain.Dollars(0.05)

// ErrNegativeCharge rejects charges that would decrease spend.
var ErrNegativeCharge = errors.New("ledger: charge must not be negative")

// SpendStore reads and atomically increments a member's running spend.
// *repository.Client satisfies it.
type SpendStore interface {
	Spend(ctx context.Context, memberID string) (domain.Money, error)
	AddSpend(ctx context.Context, memberID string, amount domain.Money) (domain.Money, error)
}

// Summary is the member-facing view of their remaining discussion power.
type Summary struct {
	Used       domain.Money `json:"used"`
	Limit      domain.Money `json:"limit"`
	Remaining  domain.Money `json:"remaining"`
	Percentage float64      `json:"percentage"`
}

// Ledger gates model calls on a fixed spend ceiling. It only blocks new calls;
// spend already charged is never rolled back.
type Ledger struct {
	store SpendStore
	limit domain.Money
}

func New(store SpendStore, limit domain.Money) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger: spend store must not be nil")
	}
	if limit < 0 {
		return nil, errors.New("ledger: limit must not be negative")
	}
	return &Ledger{store: store, limit: limit}, nil
}

func (l *Ledger) Limit() domain.Money {
	return l.limit
}

// HasCapacity reports whether the member may start another model call.
func (l *Ledger) HasCapacity(ctx context.Context, memberID string) (bool, error) {
	used, err := l.used(ctx, memberID)
	if err != nil {
		return false, err
	}
	return used < l.limit, nil
}

// Remaining is limit minus used. It goes negative once a call overshoots the
// ceiling.
func (l *Ledger) Remaining(ctx context.Context, memberID string) (domain.Money, error) {
	used, err := l.used(ctx, memberID)
	if err != nil {
		return 0, err
	}
	return l.limit - used, nil
}

// Charge adds the actual cost of a completed call. Callers charge exactly once
// per call.
func (l *Ledger) Charge(ctx context.Context, memberID string, amount domain.Money) (domain.Money, error) {
	if amount < 0 {
		return 0, ErrNegativeCharge
	}
	total, err := l.store.AddSpend(ctx, memberID, amount)
	if err != nil {
		return 0, fmt.Errorf("ledger: charge: %w", err)
	}
	return total, nil
}

func (l *Ledger) Summary(ctx context.Context, memberID string) (Summary, error) {
	used, err := l.used(ctx, memberID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(used, l.limit), nil
}

// Summarize builds a Summary from a known spend total.
func Summarize(used, limit domain.Money) Summary {
	pct := 100.0
	if limit > 0 {
		pct = min(used.Float()/limit.Float(), 1.0) * 100
	}
	return Summary{
		Used:       used,
		Limit:      limit,
		Remaining:  limit - used,
		Percentage: pct,
	}
}

func (l *Ledger) used(ctx context.Context, memberID string) (domain.Money, error) {
	used, err := l.store.Spend(ctx, memberID)
	if err != nil {
		return 0, fmt.Errorf("ledger: read spend: %w", err)
	}
	return used, nil
}
