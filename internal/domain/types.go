package domain

import (
	"strings"
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage is a page of results plus the token for the following page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// PaymentMethod identifies how the buyer pays for an order.
type PaymentMethod string

const (
	// PaymentMethodCard charges a tokenized card.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodPix generates a PIX QR payload confirmed asynchronously.
	PaymentMethodPix PaymentMethod = "pix"
)

// Valid reports whether the method is supported.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodPix
}

// RefundState tracks the refund sub-workflow independent of the main order status.
type RefundState string

const (
	RefundStateNone      RefundState = "none"
	RefundStateRequested RefundState = "requested"
	RefundStateApproved  RefundState = "approved"
	RefundStateRejected  RefundState = "rejected"
)

// Refund captures the buyer request and the operator decision.
type Refund struct {
	State       RefundState
	Reason      string
	RequestedAt *time.Time
	ProcessedAt *time.Time
	DecidedBy   string
}

// Tracking holds the carrier metadata attached when an order ships.
type Tracking struct {
	Code    string
	Company string
	URL     string
}

// Complete reports whether every tracking field carries a value.
func (t Tracking) Complete() bool {
	return strings.TrimSpace(t.Code) != "" &&
		strings.TrimSpace(t.Company) != "" &&
		strings.TrimSpace(t.URL) != ""
}

// ShippingSelection records the shipping choice captured at checkout.
type ShippingSelection struct {
	Code          string
	Name          string
	EstimatedDays int
	Pickup        bool
}

// Order is the purchase record. Totals are in cents and immutable after creation.
type Order struct {
	ID              string
	Number          string
	UserID          string
	CustomerName    string
	CustomerEmail   string
	Phone           string
	Status          OrderStatus
	Currency        string
	Subtotal        int64
	Shipping        int64
	Total           int64
	ShippingMethod  ShippingSelection
	AddressID       string
	ShippingAddress *AddressSnapshot
	PaymentMethod   PaymentMethod
	PaymentID       string
	PaymentDetail   string
	Tracking        *Tracking
	Refund          Refund
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
}

// OrderStatusEntry is the cached status of an order together with its owner.
type OrderStatusEntry struct {
	Status OrderStatus
	UserID string
}

// OrderItem is an immutable snapshot of a purchased configuration.
type OrderItem struct {
	ID                  string
	ProductID           string
	ProductName         string
	ImageURL            string
	UnitPrice           int64
	Quantity            int
	LineTotal           int64
	SizeID              string
	SizeName            string
	ColorID             string
	ColorName           string
	PersonalizationText string
}

// OrderAuditEntry is the append-only record written for every mutating order call.
type OrderAuditEntry struct {
	ID         string
	OrderID    string
	ActorID    string
	Action     string
	FromStatus OrderStatus
	ToStatus   OrderStatus
	Note       string
	CreatedAt  time.Time
}

// OrderListFilter narrows order listings for buyers and operators.
type OrderListFilter struct {
	UserID     string
	Statuses   []OrderStatus
	Query      string
	Pagination Pagination
}

// Address is a saved buyer address.
type Address struct {
	ID           string
	UserID       string
	Recipient    string
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
	Country      string
	Phone        string
	IsDefault    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AddressSnapshot is the address copy stored on an order.
type AddressSnapshot struct {
	Recipient    string
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
	Country      string
	Phone        string
}

// Snapshot copies the address fields captured on an order.
func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		Recipient:    a.Recipient,
		Street:       a.Street,
		Number:       a.Number,
		Complement:   a.Complement,
		Neighborhood: a.Neighborhood,
		City:         a.City,
		State:        a.State,
		ZipCode:      a.ZipCode,
		Country:      a.Country,
		Phone:        a.Phone,
	}
}

// ShippingOption is a transient quote computed per checkout attempt.
type ShippingOption struct {
	Code          string
	Name          string
	Carrier       string
	Price         int64
	EstimatedDays int
	FreeShipping  bool
	Pickup        bool
}

// Cart is the server-held cart for an authenticated buyer.
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// CartItem is one distinguishable purchasable configuration. UnitPrice is in cents.
type CartItem struct {
	ID                  string
	ProductID           string
	Name                string
	ImageURL            string
	UnitPrice           int64
	Quantity            int
	SizeID              string
	SizeName            string
	ColorID             string
	ColorName           string
	PersonalizationText string
	AddedAt             time.Time
}

// Key returns the merge key of the item.
func (i CartItem) Key() CartLineKey {
	return NewCartLineKey(i.ProductID, i.SizeID, i.ColorID, i.PersonalizationText)
}

// MaxPersonalizationTextLength bounds the personalization text of a cart line, in runes.
const MaxPersonalizationTextLength = 120

// CartLineKey identifies equivalent cart configurations that must be merged.
type CartLineKey struct {
	ProductID string
	SizeID    string
	ColorID   string
	Text      string
}

// NewCartLineKey normalises the discriminators of a cart line.
func NewCartLineKey(productID, sizeID, colorID, text string) CartLineKey {
	return CartLineKey{
		ProductID: strings.TrimSpace(productID),
		SizeID:    strings.TrimSpace(sizeID),
		ColorID:   strings.TrimSpace(colorID),
		Text:      text,
	}
}

// CatalogKind names the catalog entities governed by the delete lifecycle.
type CatalogKind string

const (
	CatalogKindProduct CatalogKind = "products"
	CatalogKindSize    CatalogKind = "sizes"
	CatalogKindColor   CatalogKind = "colors"
)

// ParseCatalogKind resolves a route segment into a catalog kind.
func ParseCatalogKind(raw string) (CatalogKind, bool) {
	switch CatalogKind(strings.ToLower(strings.TrimSpace(raw))) {
	case CatalogKindProduct:
		return CatalogKindProduct, true
	case CatalogKindSize:
		return CatalogKindSize, true
	case CatalogKindColor:
		return CatalogKindColor, true
	default:
		return "", false
	}
}

// CatalogEntity is the lifecycle view of a product, size or color.
type CatalogEntity struct {
	Kind     CatalogKind
	ID       string
	Name     string
	IsActive bool
}

// ProductImage is an ordered image owned by a product.
type ProductImage struct {
	ID           string
	ProductID    string
	ObjectPath   string
	DisplayOrder int
	Primary      bool
}

// DeleteOutcome describes what a single delete request did to a catalog entity.
type DeleteOutcome string

const (
	DeleteOutcomeDeactivated DeleteOutcome = "deactivated"
	DeleteOutcomeDeleted     DeleteOutcome = "deleted"
	DeleteOutcomeAbsent      DeleteOutcome = "absent"
	DeleteOutcomeLinked      DeleteOutcome = "linked"
	DeleteOutcomeError       DeleteOutcome = "error"
)

// Succeeded reports whether the outcome counts as a success in bulk summaries.
func (o DeleteOutcome) Succeeded() bool {
	switch o {
	case DeleteOutcomeDeactivated, DeleteOutcomeDeleted, DeleteOutcomeAbsent:
		return true
	default:
		return false
	}
}

// DeleteResult is the per-item outcome of a delete request.
type DeleteResult struct {
	ID      string
	Outcome DeleteOutcome
	Message string
}

// BulkDeleteSummary tallies per-item results.
type BulkDeleteSummary struct {
	Results   []DeleteResult
	Succeeded int
	Failed    int
}

// Summarize tallies results; linked items count as failures.
func Summarize(results []DeleteResult) BulkDeleteSummary {
	summary := BulkDeleteSummary{Results: results}
	for _, res := range results {
		if res.Outcome.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return summary
}
