package postgres

import (
	"context"
	"errors"
	"strings"

	ppostgres "github.com/personaliza/api/internal/platform/postgres"
	"github.com/personaliza/api/internal/repositories"
)

// CounterRepository issues sequence values from the counters table. The upsert holds the row lock,
// so concurrent callers receive distinct values.
type CounterRepository struct {
	db *ppostgres.DB
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

func NewCounterRepository(db *ppostgres.DB) (*CounterRepository, error) {
	if db == nil {
		return nil, errors.New("counter repository requires postgres db")
	}
	return &CounterRepository{db: db}, nil
}

func (r *CounterRepository) Next(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("counters.next: name is required")
	}
	var value int64
	err := r.db.Querier(ctx).QueryRow(ctx, `INSERT INTO counters (name, value, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1, updated_at = now()
		RETURNING value`, name).Scan(&value)
	if err != nil {
		return 0, ppostgres.WrapError("counters.next", err)
	}
	return value, nil
}
