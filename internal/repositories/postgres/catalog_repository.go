package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/personaliza/api/internal/domain"
	ppostgres "github.com/personaliza/api/internal/platform/postgres"
	"github.com/personaliza/api/internal/repositories"
)

// CatalogRepository implements the lifecycle queries for products, sizes and colors.
type CatalogRepository struct {
	db *ppostgres.DB
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

func NewCatalogRepository(db *ppostgres.DB) (*CatalogRepository, error) {
	if db == nil {
		return nil, errors.New("catalog repository requires postgres db")
	}
	return &CatalogRepository{db: db}, nil
}

// catalogTable maps kinds to fixed identifiers; the result is safe to interpolate.
func catalogTable(kind domain.CatalogKind) (string, error) {
	switch kind {
	case domain.CatalogKindProduct:
		return "products", nil
	case domain.CatalogKindSize:
		return "sizes", nil
	case domain.CatalogKindColor:
		return "colors", nil
	default:
		return "", fmt.Errorf("catalog: unknown kind %q", kind)
	}
}

// dependentsQuery returns the existence check for references that block a hard delete.
func dependentsQuery(kind domain.CatalogKind) (string, error) {
	switch kind {
	case domain.CatalogKindProduct:
		return `SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)`, nil
	case domain.CatalogKindSize:
		return `SELECT EXISTS (SELECT 1 FROM product_sizes WHERE size_id = $1)`, nil
	case domain.CatalogKindColor:
		return `SELECT EXISTS (SELECT 1 FROM product_colors WHERE color_id = $1)`, nil
	default:
		return "", fmt.Errorf("catalog: unknown kind %q", kind)
	}
}

func (r *CatalogRepository) Get(ctx context.Context, kind domain.CatalogKind, id string) (domain.CatalogEntity, error) {
	table, err := catalogTable(kind)
	if err != nil {
		return domain.CatalogEntity{}, err
	}
	entity := domain.CatalogEntity{Kind: kind}
	err = r.db.Querier(ctx).QueryRow(ctx,
		`SELECT id, name, is_active FROM `+table+` WHERE id = $1`, id,
	).Scan(&entity.ID, &entity.Name, &entity.IsActive)
	if err != nil {
		return domain.CatalogEntity{}, ppostgres.WrapError(table+".get", err)
	}
	return entity, nil
}

func (r *CatalogRepository) Deactivate(ctx context.Context, kind domain.CatalogKind, id string) error {
	table, err := catalogTable(kind)
	if err != nil {
		return err
	}
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE `+table+` SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return ppostgres.WrapError(table+".deactivate", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NotFound(table + ".deactivate")
	}
	return nil
}

func (r *CatalogRepository) HasDependents(ctx context.Context, kind domain.CatalogKind, id string) (bool, error) {
	query, err := dependentsQuery(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := r.db.Querier(ctx).QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, ppostgres.WrapError(string(kind)+".dependents", err)
	}
	return exists, nil
}

// PriceFor returns the unit price in cents of an active product, using the size override when
// one exists for sizeID.
func (r *CatalogRepository) PriceFor(ctx context.Context, productID, sizeID string) (int64, error) {
	var price int64
	err := r.db.Querier(ctx).QueryRow(ctx, `SELECT COALESCE(sp.price, p.price)
		FROM products p
		LEFT JOIN product_size_prices sp ON sp.product_id = p.id AND sp.size_id = $2
		WHERE p.id = $1 AND p.is_active`, productID, sizeID,
	).Scan(&price)
	if err != nil {
		return 0, ppostgres.WrapError("products.price", err)
	}
	return price, nil
}

func (r *CatalogRepository) ListProductImages(ctx context.Context, productID string) ([]domain.ProductImage, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT id, product_id, object_path, display_order, is_primary
		FROM product_images WHERE product_id = $1 ORDER BY display_order, id`, productID)
	if err != nil {
		return nil, ppostgres.WrapError("product_images.list", err)
	}
	defer rows.Close()

	images := make([]domain.ProductImage, 0)
	for rows.Next() {
		var img domain.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.ObjectPath, &img.DisplayOrder, &img.Primary); err != nil {
			return nil, ppostgres.WrapError("product_images.scan", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, ppostgres.WrapError("product_images.list", err)
	}
	return images, nil
}

// Delete hard-deletes the record. Products drop their images and size/color links in the same
// transaction; an order item still referencing the product fails with a dependency conflict.
func (r *CatalogRepository) Delete(ctx context.Context, kind domain.CatalogKind, id string) error {
	table, err := catalogTable(kind)
	if err != nil {
		return err
	}
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		q := r.db.Querier(ctx)
		if kind == domain.CatalogKindProduct {
			for _, cascade := range []string{
				`DELETE FROM product_images WHERE product_id = $1`,
				`DELETE FROM product_sizes WHERE product_id = $1`,
				`DELETE FROM product_colors WHERE product_id = $1`,
			} {
				if _, err := q.Exec(ctx, cascade, id); err != nil {
					return ppostgres.WrapError("products.cascade", err)
				}
			}
		}
		tag, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
		if err != nil {
			return ppostgres.WrapError(table+".delete", err)
		}
		if tag.RowsAffected() == 0 {
			return ppostgres.NotFound(table + ".delete")
		}
		return nil
	})
}
