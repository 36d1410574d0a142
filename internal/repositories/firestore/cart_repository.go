package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/personaliza/api/internal/domain"
	pfirestore "github.com/personaliza/api/internal/platform/firestore"
	"github.com/personaliza/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository stores one document per user under carts/{uid} with the items embedded.
type CartRepository struct {
	provider   *pfirestore.Provider
	collection *pfirestore.Collection[cartDocument]
	clock      func() time.Time
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		provider:   provider,
		collection: pfirestore.NewCollection[cartDocument](provider, cartCollection),
		clock:      time.Now,
	}, nil
}

// GetCart returns the stored cart, or an empty cart when none exists.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	doc, err := r.collection.Get(ctx, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
		}
		return domain.Cart{}, err
	}
	return doc.toDomain(userID), nil
}

// UpdateCart runs mutate inside a Firestore transaction so concurrent adds are not lost.
func (r *CartRepository) UpdateCart(ctx context.Context, userID string, mutate func(domain.Cart) (domain.Cart, error)) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	var result domain.Cart
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.collection.Doc(ctx, userID)
		if err != nil {
			return err
		}
		current := domain.Cart{UserID: userID, Items: []domain.CartItem{}}
		doc, err := r.collection.GetTx(ctx, tx, userID)
		switch {
		case err == nil:
			current = doc.toDomain(userID)
		case !repositories.IsNotFound(err):
			return err
		}

		next, err := mutate(current)
		if err != nil {
			return err
		}
		next.UserID = userID
		next.UpdatedAt = r.clock().UTC()
		if err := tx.Set(ref, fromDomainCart(next)); err != nil {
			return pfirestore.WrapError("carts.set", err)
		}
		result = next
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return result, nil
}

// ClearCart deletes the cart document. Clearing a missing cart succeeds.
func (r *CartRepository) ClearCart(ctx context.Context, userID string) error {
	err := r.collection.Delete(ctx, strings.TrimSpace(userID))
	if repositories.IsNotFound(err) {
		return nil
	}
	return err
}

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ID                  string    `firestore:"id"`
	ProductID           string    `firestore:"productId"`
	Name                string    `firestore:"name"`
	ImageURL            string    `firestore:"imageUrl,omitempty"`
	UnitPrice           int64     `firestore:"unitPrice"`
	Quantity            int       `firestore:"quantity"`
	SizeID              string    `firestore:"sizeId,omitempty"`
	SizeName            string    `firestore:"sizeName,omitempty"`
	ColorID             string    `firestore:"colorId,omitempty"`
	ColorName           string    `firestore:"colorName,omitempty"`
	PersonalizationText string    `firestore:"personalizationText,omitempty"`
	AddedAt             time.Time `firestore:"addedAt"`
}

func (d cartDocument) toDomain(userID string) domain.Cart {
	items := make([]domain.CartItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.CartItem{
			ID:                  item.ID,
			ProductID:           item.ProductID,
			Name:                item.Name,
			ImageURL:            item.ImageURL,
			UnitPrice:           item.UnitPrice,
			Quantity:            item.Quantity,
			SizeID:              item.SizeID,
			SizeName:            item.SizeName,
			ColorID:             item.ColorID,
			ColorName:           item.ColorName,
			PersonalizationText: item.PersonalizationText,
			AddedAt:             item.AddedAt,
		})
	}
	return domain.Cart{UserID: userID, Items: items, UpdatedAt: d.UpdatedAt}
}

func fromDomainCart(cart domain.Cart) cartDocument {
	items := make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemDocument{
			ID:                  item.ID,
			ProductID:           item.ProductID,
			Name:                item.Name,
			ImageURL:            item.ImageURL,
			UnitPrice:           item.UnitPrice,
			Quantity:            item.Quantity,
			SizeID:              item.SizeID,
			SizeName:            item.SizeName,
			ColorID:             item.ColorID,
			ColorName:           item.ColorName,
			PersonalizationText: item.PersonalizationText,
			AddedAt:             item.AddedAt,
		})
	}
	return cartDocument{Items: items, UpdatedAt: cart.UpdatedAt}
}
