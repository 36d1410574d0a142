package cart

import (
	"github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/textutil"
)

// Item is a cart line as held and persisted on the client. Price is a decimal amount.
type Item struct {
	ID                  string  `json:"id"`
	ProductID           string  `json:"productId"`
	Name                string  `json:"name"`
	ImageURL            string  `json:"imageUrl"`
	Price               float64 `json:"price"`
	Quantity            int     `json:"quantity"`
	SizeID              string  `json:"sizeId,omitempty"`
	SizeName            string  `json:"sizeName,omitempty"`
	ColorID             string  `json:"colorId,omitempty"`
	ColorName           string  `json:"colorName,omitempty"`
	PersonalizationText string  `json:"personalizationText,omitempty"`
}

// Key returns the merge key shared with the server cart.
func (i Item) Key() domain.CartLineKey {
	return lineKey(i.ProductID, i.SizeID, i.ColorID, i.PersonalizationText)
}

// NewItem is the add-to-cart input. Price is the display price as shown on the product page
// ("49,90", "1.234,56" or "49.90").
type NewItem struct {
	ProductID           string
	Name                string
	ImageURL            string
	Price               string
	Quantity            int
	SizeID              string
	SizeName            string
	ColorID             string
	ColorName           string
	PersonalizationText string
}

func (n NewItem) key() domain.CartLineKey {
	return lineKey(n.ProductID, n.SizeID, n.ColorID, n.PersonalizationText)
}

// lineKey cleans the personalization text the same way the server cart does, so a line
// added locally merges with the one returned by the next sync.
func lineKey(productID, sizeID, colorID, text string) domain.CartLineKey {
	return domain.NewCartLineKey(productID, sizeID, colorID, textutil.Sanitize(text, domain.MaxPersonalizationTextLength))
}

func cloneItems(items []Item) []Item {
	if len(items) == 0 {
		return []Item{}
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
