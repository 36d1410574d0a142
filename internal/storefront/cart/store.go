package cart

import (
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/personaliza/api/internal/domain"
)

// Store is the client-held cart shared by every storefront view. Mutations are computed as
// pure functions over the previous item slice and persisted after they are applied.
type Store struct {
	mu        sync.RWMutex
	items     []Item
	persister *Persister
	newID     func() string
	logger    *zap.Logger
}

// Option customises the Store.
type Option func(*Store)

// WithPersister loads the initial items from p and saves every mutation through it.
func WithPersister(p *Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithIDGenerator overrides the line id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the logger used to report persistence failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore builds a store, restoring persisted items when a persister is configured.
func NewStore(opts ...Option) *Store {
	s := &Store{
		items:  []Item{},
		newID:  func() string { return ulid.Make().String() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.persister != nil {
		s.items = s.persister.Load()
	}
	return s
}

// Items returns a copy of the current lines.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items)
}

// ItemsCount is the sum of quantities.
func (s *Store) ItemsCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// Subtotal is the sum of price times quantity, rounded to cents.
func (s *Store) Subtotal() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var cents int64
	for _, item := range s.items {
		cents += domain.ToCents(item.Price) * int64(item.Quantity)
	}
	return domain.FromCents(cents)
}

// Add merges the item into an equivalent line or appends a new one. A merged line takes the
// incoming price.
func (s *Store) Add(in NewItem) Item {
	var added Item
	s.mutate(func(prev []Item) []Item {
		next, item := addItem(prev, in, s.newID)
		added = item
		return next
	})
	return added
}

// Remove deletes the line with the given id. Unknown ids are ignored.
func (s *Store) Remove(lineID string) {
	lineID = strings.TrimSpace(lineID)
	s.mutate(func(prev []Item) []Item {
		return removeItem(prev, lineID)
	})
}

// UpdateQuantity sets the quantity of the first line matching all four discriminators.
// Quantities below one are stored as one.
func (s *Store) UpdateQuantity(productID string, quantity int, sizeID, colorID, personalizationText string) {
	key := lineKey(productID, sizeID, colorID, personalizationText)
	s.mutate(func(prev []Item) []Item {
		return updateQuantity(prev, key, quantity)
	})
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mutate(func([]Item) []Item { return []Item{} })
}

// Replace swaps the whole item list, as done after a server sync.
func (s *Store) Replace(items []Item) {
	s.mutate(func([]Item) []Item { return cloneItems(items) })
}

func (s *Store) mutate(fn func(prev []Item) []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = fn(cloneItems(s.items))
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(s.items); err != nil {
		s.logger.Warn("cart: persist failed", zap.Error(err), zap.Int("items", len(s.items)))
	}
}

func addItem(prev []Item, in NewItem, newID func() string) ([]Item, Item) {
	quantity := in.Quantity
	if quantity < 1 {
		quantity = 1
	}
	price := domain.ParsePrice(in.Price)
	key := in.key()

	for i := range prev {
		if prev[i].Key() == key {
			prev[i].Quantity += quantity
			prev[i].Price = price
			return prev, prev[i]
		}
	}

	item := Item{
		ID:                  newID(),
		ProductID:           key.ProductID,
		Name:                strings.TrimSpace(in.Name),
		ImageURL:            strings.TrimSpace(in.ImageURL),
		Price:               price,
		Quantity:            quantity,
		SizeID:              key.SizeID,
		SizeName:            strings.TrimSpace(in.SizeName),
		ColorID:             key.ColorID,
		ColorName:           strings.TrimSpace(in.ColorName),
		PersonalizationText: key.Text,
	}
	return append(prev, item), item
}

func removeItem(prev []Item, lineID string) []Item {
	next := prev[:0]
	for _, item := range prev {
		if item.ID != lineID {
			next = append(next, item)
		}
	}
	return next
}

func updateQuantity(prev []Item, key domain.CartLineKey, quantity int) []Item {
	if quantity < 1 {
		quantity = 1
	}
	for i := range prev {
		if prev[i].Key() == key {
			prev[i].Quantity = quantity
			break
		}
	}
	return prev
}
