package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/textutil"
	"github.com/personaliza/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
)

const (
	cartLinePrefix               = "line_"
	maxPersonalizationTextLength = domain.MaxPersonalizationTextLength
	maxCartItemNameLength        = 200
	maxCartLines                 = 100
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// CartServiceDeps wires the repository for cart operations.
type CartServiceDeps struct {
	Repository  repositories.CartRepository
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type cartService struct {
	repo   repositories.CartRepository
	newID  func() string
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &cartService{
		repo:   deps.Repository,
		newID:  idGen,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// GetCart returns the stored cart; a user without one gets an empty cart.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	if cart.Items == nil {
		cart.Items = []CartItem{}
	}
	return cart, nil
}

// ReplaceItems overwrites every line. Equivalent lines in the payload are merged.
func (s *cartService) ReplaceItems(ctx context.Context, cmd ReplaceCartCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	if len(cmd.Items) > maxCartLines {
		return Cart{}, fmt.Errorf("%w: at most %d lines", ErrCartInvalidInput, maxCartLines)
	}

	now := s.now()
	items := make([]CartItem, 0, len(cmd.Items))
	for i, raw := range cmd.Items {
		item, err := s.normaliseItem(raw, now)
		if err != nil {
			return Cart{}, fmt.Errorf("%w: item %d: %v", ErrCartInvalidInput, i, err)
		}
		items = mergeCartLine(items, item)
	}

	cart, err := s.repo.UpdateCart(ctx, uid, func(current domain.Cart) (domain.Cart, error) {
		current.Items = items
		return current, nil
	})
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	s.logger(ctx, "cart.replaced", map[string]any{
		"userID": uid,
		"lines":  len(cart.Items),
	})
	return cart, nil
}

// AddItem merges the item into an equivalent line or appends a new one.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	item, err := s.normaliseItem(cmd.Item, s.now())
	if err != nil {
		return Cart{}, fmt.Errorf("%w: %v", ErrCartInvalidInput, err)
	}

	cart, err := s.repo.UpdateCart(ctx, uid, func(current domain.Cart) (domain.Cart, error) {
		next := mergeCartLine(cloneCartItems(current.Items), item)
		if len(next) > maxCartLines {
			return domain.Cart{}, fmt.Errorf("%w: at most %d lines", ErrCartInvalidInput, maxCartLines)
		}
		current.Items = next
		return current, nil
	})
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

// RemoveItem deletes the line. Removing an unknown line leaves the cart unchanged.
func (s *cartService) RemoveItem(ctx context.Context, userID, lineID string) (Cart, error) {
	uid := strings.TrimSpace(userID)
	lid := strings.TrimSpace(lineID)
	if uid == "" || lid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.UpdateCart(ctx, uid, func(current domain.Cart) (domain.Cart, error) {
		next := make([]domain.CartItem, 0, len(current.Items))
		for _, item := range current.Items {
			if item.ID != lid {
				next = append(next, item)
			}
		}
		current.Items = next
		return current, nil
	})
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

// ClearCart empties the cart.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidInput
	}
	if err := s.repo.ClearCart(ctx, uid); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *cartService) normaliseItem(item CartItem, now time.Time) (CartItem, error) {
	item.ProductID = strings.TrimSpace(item.ProductID)
	if item.ProductID == "" {
		return CartItem{}, errors.New("product id is required")
	}
	if item.UnitPrice < 0 {
		return CartItem{}, errors.New("unit price must not be negative")
	}
	item.Name = textutil.Sanitize(item.Name, maxCartItemNameLength)
	item.SizeID = strings.TrimSpace(item.SizeID)
	item.ColorID = strings.TrimSpace(item.ColorID)
	item.SizeName = strings.TrimSpace(item.SizeName)
	item.ColorName = strings.TrimSpace(item.ColorName)
	item.ImageURL = strings.TrimSpace(item.ImageURL)
	item.PersonalizationText = textutil.Sanitize(item.PersonalizationText, maxPersonalizationTextLength)
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		item.ID = cartLinePrefix + s.newID()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}
	return item, nil
}

// mergeCartLine adds quantities of equivalent lines; the incoming price wins.
func mergeCartLine(items []CartItem, item CartItem) []CartItem {
	key := item.Key()
	for i := range items {
		if items[i].Key() != key {
			continue
		}
		items[i].Quantity += item.Quantity
		items[i].UnitPrice = item.UnitPrice
		if item.Name != "" {
			items[i].Name = item.Name
		}
		if item.ImageURL != "" {
			items[i].ImageURL = item.ImageURL
		}
		return items
	}
	return append(items, item)
}

func cloneCartItems(items []domain.CartItem) []domain.CartItem {
	if len(items) == 0 {
		return []domain.CartItem{}
	}
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCartInvalidInput) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCartConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
}
