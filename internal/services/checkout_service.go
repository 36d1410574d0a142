package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/format"
	"github.com/personaliza/api/internal/platform/observability"
	"github.com/personaliza/api/internal/repositories"
)

var (
	// ErrCheckoutAuthRequired indicates an anonymous checkout attempt.
	ErrCheckoutAuthRequired = errors.New("checkout: authentication required")
	// ErrCheckoutInvalidInput wraps the first failed checkout rule.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutCartEmpty indicates the server cart has no items.
	ErrCheckoutCartEmpty = errors.New("checkout: cart is empty")
	// ErrCheckoutShippingMismatch indicates the client shipping amount differs from the server quote.
	ErrCheckoutShippingMismatch = errors.New("checkout: shipping amount does not match quote")
)

// CatalogPricer resolves the unit price of a product configuration in cents. Unknown or inactive
// products return a repository not-found error.
type CatalogPricer interface {
	PriceFor(ctx context.Context, productID, sizeID string) (int64, error)
}

// CheckoutServiceDeps wires the collaborators used to place an order.
type CheckoutServiceDeps struct {
	Carts     CartService
	Orders    OrderService
	Addresses AddressService
	Shipping  ShippingService
	Prices    CatalogPricer
	Metrics   *observability.Metrics
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	carts     CartService
	orders    OrderService
	addresses AddressService
	shipping  ShippingService
	prices    CatalogPricer
	metrics   *observability.Metrics
	logger    func(context.Context, string, map[string]any)
}

// NewCheckoutService constructs the checkout orchestrator.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart service is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order service is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("checkout service: address service is required")
	}
	if deps.Shipping == nil {
		return nil, errors.New("checkout service: shipping service is required")
	}
	if deps.Prices == nil {
		return nil, errors.New("checkout service: catalog pricer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &checkoutService{
		carts:     deps.Carts,
		orders:    deps.Orders,
		addresses: deps.Addresses,
		shipping:  deps.Shipping,
		prices:    deps.Prices,
		metrics:   deps.Metrics,
		logger:    logger,
	}, nil
}

// PlaceOrder validates the request, resolves the address, re-quotes shipping and creates a
// pending order from the server cart. The cart is cleared once the order exists.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (PlacedOrder, error) {
	userID := strings.TrimSpace(cmd.UserID)
	pickup := cmd.PickupInStore

	input := domain.CheckoutInput{
		Authenticated:  userID != "",
		FullName:       cmd.FullName,
		Phone:          cmd.Phone,
		PickupInStore:  pickup,
		ShippingChosen: strings.TrimSpace(cmd.ShippingCode) != "",
		AddressID:      cmd.AddressID,
		PaymentMethod:  cmd.PaymentMethod,
		CPF:            cmd.CPF,
	}
	if cmd.Address != nil {
		input.Address = &domain.CheckoutAddressFields{
			Street:       cmd.Address.Street,
			Number:       cmd.Address.Number,
			Complement:   cmd.Address.Complement,
			Neighborhood: cmd.Address.Neighborhood,
			City:         cmd.Address.City,
			State:        cmd.Address.State,
			ZipCode:      cmd.Address.ZipCode,
		}
	}
	if fieldErr := domain.ValidateCheckout(input); fieldErr != nil {
		if fieldErr.Field == domain.CheckoutFieldAuth {
			return PlacedOrder{}, ErrCheckoutAuthRequired
		}
		return PlacedOrder{}, fmt.Errorf("%w: %w", ErrCheckoutInvalidInput, fieldErr)
	}
	if !cmd.PaymentMethod.Valid() {
		return PlacedOrder{}, fmt.Errorf("%w: unsupported payment method %q", ErrCheckoutInvalidInput, cmd.PaymentMethod)
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return PlacedOrder{}, err
	}
	if len(cart.Items) == 0 {
		return PlacedOrder{}, ErrCheckoutCartEmpty
	}

	items := make([]OrderItem, 0, len(cart.Items))
	var subtotal int64
	for _, line := range cart.Items {
		unitPrice, err := s.unitPrice(ctx, line)
		if err != nil {
			return PlacedOrder{}, err
		}
		items = append(items, OrderItem{
			ProductID:           line.ProductID,
			ProductName:         line.Name,
			ImageURL:            line.ImageURL,
			UnitPrice:           unitPrice,
			Quantity:            line.Quantity,
			SizeID:              line.SizeID,
			SizeName:            line.SizeName,
			ColorID:             line.ColorID,
			ColorName:           line.ColorName,
			PersonalizationText: line.PersonalizationText,
		})
		subtotal += unitPrice * int64(line.Quantity)
	}

	create := CreateOrderCommand{
		UserID:        userID,
		CustomerName:  strings.TrimSpace(cmd.FullName),
		CustomerEmail: strings.TrimSpace(cmd.Email),
		Phone:         format.NormalizePhone(cmd.Phone),
		Items:         items,
		Pickup:        pickup,
		PaymentMethod: cmd.PaymentMethod,
	}

	if !pickup {
		address, option, err := s.resolveShipping(ctx, userID, subtotal, cmd)
		if err != nil {
			return PlacedOrder{}, err
		}
		snapshot := address.Snapshot()
		create.AddressID = address.ID
		create.ShippingAddress = &snapshot
		create.Shipping = option
	}

	order, err := s.orders.CreateOrder(ctx, create)
	if err != nil {
		return PlacedOrder{}, err
	}

	if err := s.carts.ClearCart(ctx, userID); err != nil {
		s.logger(ctx, "checkout.cart.clear_failed", map[string]any{
			"userID": userID,
			"order":  order.ID,
			"error":  err.Error(),
		})
	}
	s.metrics.OrderCreated(ctx, string(order.PaymentMethod), pickup)
	s.logger(ctx, "checkout.order.placed", map[string]any{
		"userID": userID,
		"order":  order.ID,
		"number": order.Number,
		"total":  order.Total,
		"pickup": pickup,
	})

	return PlacedOrder{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Total:       order.Total,
	}, nil
}

// unitPrice reads the catalog price of a cart line. The price stored in the cart is never charged.
func (s *checkoutService) unitPrice(ctx context.Context, line CartItem) (int64, error) {
	price, err := s.prices.PriceFor(ctx, line.ProductID, line.SizeID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return 0, fmt.Errorf("%w: product %s is no longer available", ErrCheckoutInvalidInput, line.ProductID)
		}
		return 0, fmt.Errorf("checkout: price %s: %w", line.ProductID, err)
	}
	if price != line.UnitPrice {
		s.logger(ctx, "checkout.cart.price_changed", map[string]any{
			"product": line.ProductID,
			"size":    line.SizeID,
			"cart":    line.UnitPrice,
			"catalog": price,
		})
	}
	return price, nil
}

// resolveShipping quotes the selected option for the destination and returns the address the
// order ships to. A new address is only stored once the quote is accepted.
func (s *checkoutService) resolveShipping(ctx context.Context, userID string, subtotal int64, cmd PlaceOrderCommand) (Address, ShippingOption, error) {
	if id := strings.TrimSpace(cmd.AddressID); id != "" {
		addr, err := s.addresses.GetAddress(ctx, userID, id)
		if err != nil {
			if errors.Is(err, ErrAddressNotFound) {
				return Address{}, ShippingOption{}, fmt.Errorf("%w: %w", ErrCheckoutInvalidInput, &domain.CheckoutFieldError{
					Field:   domain.CheckoutFieldAddress,
					Message: "Endereço selecionado não encontrado.",
				})
			}
			return Address{}, ShippingOption{}, err
		}
		option, err := s.quoteSelected(ctx, addr.ZipCode, subtotal, cmd)
		if err != nil {
			return Address{}, ShippingOption{}, err
		}
		return addr, option, nil
	}

	option, err := s.quoteSelected(ctx, format.SanitizeCep(cmd.Address.ZipCode), subtotal, cmd)
	if err != nil {
		return Address{}, ShippingOption{}, err
	}
	addr, err := s.createAddress(ctx, userID, cmd)
	if err != nil {
		return Address{}, ShippingOption{}, err
	}
	return addr, option, nil
}

// createAddress stores the raw checkout address in the buyer's address book.
func (s *checkoutService) createAddress(ctx context.Context, userID string, cmd PlaceOrderCommand) (Address, error) {
	raw := cmd.Address
	addr, err := s.addresses.CreateAddress(ctx, CreateAddressCommand{
		UserID:       userID,
		Recipient:    cmd.FullName,
		Street:       raw.Street,
		Number:       raw.Number,
		Complement:   raw.Complement,
		Neighborhood: raw.Neighborhood,
		City:         raw.City,
		State:        raw.State,
		ZipCode:      raw.ZipCode,
		Country:      raw.Country,
		Phone:        cmd.Phone,
	})
	if err != nil {
		if errors.Is(err, ErrAddressInvalidInput) {
			return Address{}, fmt.Errorf("%w: %w", ErrCheckoutInvalidInput, err)
		}
		return Address{}, err
	}
	return addr, nil
}

// quoteSelected re-quotes shipping and returns the option the buyer picked.
func (s *checkoutService) quoteSelected(ctx context.Context, zipCode string, subtotal int64, cmd PlaceOrderCommand) (ShippingOption, error) {
	code := strings.TrimSpace(cmd.ShippingCode)
	options, err := s.shipping.Quote(ctx, ShippingQuoteCommand{ZipCode: zipCode, Subtotal: subtotal})
	if err != nil {
		if errors.Is(err, ErrShippingInvalidCep) {
			return ShippingOption{}, fmt.Errorf("%w: %w", ErrCheckoutInvalidInput, err)
		}
		return ShippingOption{}, err
	}
	for _, option := range options {
		if option.Pickup || option.Code != code {
			continue
		}
		if cmd.ShippingAmount != nil && *cmd.ShippingAmount != option.Price {
			return ShippingOption{}, fmt.Errorf("%w: quoted %d, got %d", ErrCheckoutShippingMismatch, option.Price, *cmd.ShippingAmount)
		}
		return option, nil
	}
	return ShippingOption{}, fmt.Errorf("%w: %w", ErrCheckoutInvalidInput, &domain.CheckoutFieldError{
		Field:   domain.CheckoutFieldShipping,
		Message: "Opção de frete indisponível para este CEP.",
	})
}
