package cart

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/storefront/apiclient"
)

// ServerCart fetches the cart held by the API for the signed-in buyer.
type ServerCart interface {
	GetCart(ctx context.Context) (apiclient.Cart, error)
}

// SyncFromServer replaces local items with the server cart. On error the local items are left
// untouched and the error is returned for display; nothing is retried.
func (s *Store) SyncFromServer(ctx context.Context, source ServerCart) error {
	if source == nil {
		return fmt.Errorf("cart: sync source is nil")
	}
	remote, err := source.GetCart(ctx)
	if err != nil {
		s.logger.Warn("cart: sync from server failed", zap.Error(err))
		return fmt.Errorf("cart: sync: %w", err)
	}
	items := make([]Item, 0, len(remote.Items))
	for _, line := range remote.Items {
		quantity := line.Quantity
		if quantity < 1 {
			quantity = 1
		}
		items = append(items, Item{
			ID:                  line.ID,
			ProductID:           line.ProductID,
			Name:                line.Name,
			ImageURL:            line.ImageURL,
			Price:               domain.FromCents(line.Price),
			Quantity:            quantity,
			SizeID:              line.SizeID,
			SizeName:            line.SizeName,
			ColorID:             line.ColorID,
			ColorName:           line.ColorName,
			PersonalizationText: line.PersonalizationText,
		})
	}
	s.Replace(items)
	return nil
}
