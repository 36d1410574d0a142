package postgres

import (
	"context"
	"errors"

	domain "github.com/personaliza/api/internal/domain"
	ppostgres "github.com/personaliza/api/internal/platform/postgres"
	"github.com/personaliza/api/internal/repositories"
)

const addressColumns = `id, user_id, recipient, street, number, complement, neighborhood, city,
	state, zip_code, country, phone, is_default, created_at, updated_at`

// AddressRepository stores buyer addresses.
type AddressRepository struct {
	db *ppostgres.DB
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)

func NewAddressRepository(db *ppostgres.DB) (*AddressRepository, error) {
	if db == nil {
		return nil, errors.New("address repository requires postgres db")
	}
	return &AddressRepository{db: db}, nil
}

// List returns the user's addresses, default first then newest.
func (r *AddressRepository) List(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT `+addressColumns+` FROM addresses
		WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`, userID)
	if err != nil {
		return nil, ppostgres.WrapError("addresses.list", err)
	}
	defer rows.Close()

	out := make([]domain.Address, 0)
	for rows.Next() {
		var addr domain.Address
		if err := rows.Scan(&addr.ID, &addr.UserID, &addr.Recipient, &addr.Street, &addr.Number,
			&addr.Complement, &addr.Neighborhood, &addr.City, &addr.State, &addr.ZipCode,
			&addr.Country, &addr.Phone, &addr.IsDefault, &addr.CreatedAt, &addr.UpdatedAt); err != nil {
			return nil, ppostgres.WrapError("addresses.scan", err)
		}
		out = append(out, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, ppostgres.WrapError("addresses.list", err)
	}
	return out, nil
}

// Get loads one address owned by userID. Addresses of other users read as not found.
func (r *AddressRepository) Get(ctx context.Context, userID, addressID string) (domain.Address, error) {
	var addr domain.Address
	err := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses
		WHERE id = $1 AND user_id = $2`, addressID, userID).Scan(
		&addr.ID, &addr.UserID, &addr.Recipient, &addr.Street, &addr.Number, &addr.Complement,
		&addr.Neighborhood, &addr.City, &addr.State, &addr.ZipCode, &addr.Country, &addr.Phone,
		&addr.IsDefault, &addr.CreatedAt, &addr.UpdatedAt,
	)
	if err != nil {
		return domain.Address{}, ppostgres.WrapError("addresses.get", err)
	}
	return addr, nil
}

// Insert stores a new address. A default address clears the flag on the user's others.
func (r *AddressRepository) Insert(ctx context.Context, addr domain.Address) error {
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		q := r.db.Querier(ctx)
		if addr.IsDefault {
			if _, err := q.Exec(ctx, `UPDATE addresses SET is_default = FALSE, updated_at = $2
				WHERE user_id = $1 AND is_default`, addr.UserID, addr.UpdatedAt); err != nil {
				return ppostgres.WrapError("addresses.clear_default", err)
			}
		}
		_, err := q.Exec(ctx, `INSERT INTO addresses (`+addressColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			addr.ID, addr.UserID, addr.Recipient, addr.Street, addr.Number, addr.Complement,
			addr.Neighborhood, addr.City, addr.State, addr.ZipCode, addr.Country, addr.Phone,
			addr.IsDefault, addr.CreatedAt, addr.UpdatedAt,
		)
		return ppostgres.WrapError("addresses.insert", err)
	})
}
