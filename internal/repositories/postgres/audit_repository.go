package postgres

import (
	"context"
	"errors"

	domain "github.com/personaliza/api/internal/domain"
	ppostgres "github.com/personaliza/api/internal/platform/postgres"
	"github.com/personaliza/api/internal/repositories"
)

// OrderAuditRepository appends order audit entries in the caller's transaction.
type OrderAuditRepository struct {
	db *ppostgres.DB
}

var _ repositories.OrderAuditRepository = (*OrderAuditRepository)(nil)

func NewOrderAuditRepository(db *ppostgres.DB) (*OrderAuditRepository, error) {
	if db == nil {
		return nil, errors.New("order audit repository requires postgres db")
	}
	return &OrderAuditRepository{db: db}, nil
}

func (r *OrderAuditRepository) Append(ctx context.Context, entry domain.OrderAuditEntry) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `INSERT INTO order_audit
		(id, order_id, actor_id, action, from_status, to_status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.OrderID, entry.ActorID, entry.Action, string(entry.FromStatus),
		string(entry.ToStatus), entry.Note, entry.CreatedAt,
	)
	return ppostgres.WrapError("order_audit.append", err)
}

func (r *OrderAuditRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderAuditEntry, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT id, order_id, actor_id, action, from_status,
		to_status, note, created_at FROM order_audit WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, ppostgres.WrapError("order_audit.list", err)
	}
	defer rows.Close()

	entries := make([]domain.OrderAuditEntry, 0)
	for rows.Next() {
		var (
			entry    domain.OrderAuditEntry
			from, to string
		)
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.ActorID, &entry.Action, &from, &to,
			&entry.Note, &entry.CreatedAt); err != nil {
			return nil, ppostgres.WrapError("order_audit.scan", err)
		}
		entry.FromStatus = domain.OrderStatus(from)
		entry.ToStatus = domain.OrderStatus(to)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, ppostgres.WrapError("order_audit.list", err)
	}
	return entries, nil
}
