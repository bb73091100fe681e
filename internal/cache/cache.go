package cache

import (
	"context"
	"time"

	"boutik/backend/internal/domain"
)

// SaleIdempotencyStore remembers the sale created for an Idempotency-Key so
// a retried POST replays the original response instead of double-writing
// the sale and its ledger movements.
type SaleIdempotencyStore interface {
	Get(ctx context.Context, key string) (*domain.Sale, bool, error)
	Set(ctx context.Context, key string, sale *domain.Sale, ttl time.Duration) error
}

type NoopSaleIdempotencyStore struct{}

func (NoopSaleIdempotencyStore) Get(_ context.Context, _ string) (*domain.Sale, bool, error) {
	return nil, false, nil
}

func (NoopSaleIdempotencyStore) Set(_ context.Context, _ string, _ *domain.Sale, _ time.Duration) error {
	return nil
}
