package services

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/personaliza/api/internal/format"
)

//go:embed shipping_rates.yaml
var defaultShippingRates []byte

// ErrShippingInvalidCep indicates the postal code does not have eight digits.
var ErrShippingInvalidCep = errors.New("shipping: cep must have 8 digits")

// ShippingCarrierRate is one carrier offer in the rate table.
type ShippingCarrierRate struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	Carrier string `yaml:"carrier"`
	Price   int64  `yaml:"price"`
	Days    int    `yaml:"days"`
}

// ShippingRegion groups carriers for CEPs starting with one of Prefixes.
type ShippingRegion struct {
	Name     string                `yaml:"name"`
	Prefixes []string              `yaml:"prefixes"`
	Carriers []ShippingCarrierRate `yaml:"carriers"`
}

// ShippingRateTable is the parsed rate file.
type ShippingRateTable struct {
	Default []ShippingCarrierRate `yaml:"default"`
	Regions []ShippingRegion      `yaml:"regions"`
}

// LoadShippingRates reads the rate table from path, or the embedded default when path is empty.
func LoadShippingRates(path string) (ShippingRateTable, error) {
	data := defaultShippingRates
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return ShippingRateTable{}, fmt.Errorf("shipping: read rates file: %w", err)
		}
		data = raw
	}
	return ParseShippingRates(data)
}

// ParseShippingRates decodes and validates a YAML rate table.
func ParseShippingRates(data []byte) (ShippingRateTable, error) {
	var table ShippingRateTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return ShippingRateTable{}, fmt.Errorf("shipping: parse rates: %w", err)
	}
	if len(table.Default) == 0 && len(table.Regions) == 0 {
		return ShippingRateTable{}, errors.New("shipping: rate table is empty")
	}
	check := func(rates []ShippingCarrierRate, where string) error {
		for _, rate := range rates {
			if strings.TrimSpace(rate.Code) == "" {
				return fmt.Errorf("shipping: %s: carrier code is required", where)
			}
			if rate.Code == pickupShippingCode {
				return fmt.Errorf("shipping: %s: code %q is reserved", where, pickupShippingCode)
			}
			if rate.Price < 0 || rate.Days < 0 {
				return fmt.Errorf("shipping: %s: carrier %s has negative price or days", where, rate.Code)
			}
		}
		return nil
	}
	if err := check(table.Default, "default"); err != nil {
		return ShippingRateTable{}, err
	}
	for _, region := range table.Regions {
		if err := check(region.Carriers, region.Name); err != nil {
			return ShippingRateTable{}, err
		}
	}
	return table, nil
}

func (t ShippingRateTable) carriersFor(cep string) []ShippingCarrierRate {
	for _, region := range t.Regions {
		for _, prefix := range region.Prefixes {
			if prefix != "" && strings.HasPrefix(cep, prefix) {
				return region.Carriers
			}
		}
	}
	return t.Default
}

// ShippingServiceDeps configures the shipping resolver.
type ShippingServiceDeps struct {
	Rates              ShippingRateTable
	FreeThresholdCents int64
	PickupName         string
	PickupDays         int
}

type shippingService struct {
	rates         ShippingRateTable
	freeThreshold int64
	pickupName    string
	pickupDays    int
}

// NewShippingService builds a resolver over a loaded rate table.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	if len(deps.Rates.Default) == 0 && len(deps.Rates.Regions) == 0 {
		return nil, errors.New("shipping service: rate table is required")
	}
	name := strings.TrimSpace(deps.PickupName)
	if name == "" {
		name = pickupShippingName
	}
	return &shippingService{
		rates:         deps.Rates,
		freeThreshold: deps.FreeThresholdCents,
		pickupName:    name,
		pickupDays:    deps.PickupDays,
	}, nil
}

// Quote lists carrier options for the CEP followed by in-store pickup.
func (s *shippingService) Quote(_ context.Context, cmd ShippingQuoteCommand) ([]ShippingOption, error) {
	cep := format.SanitizeCep(cmd.ZipCode)
	if !format.ValidCep(cep) {
		return nil, ErrShippingInvalidCep
	}

	free := s.freeThreshold > 0 && cmd.Subtotal >= s.freeThreshold
	carriers := s.rates.carriersFor(cep)
	options := make([]ShippingOption, 0, len(carriers)+1)
	for _, rate := range carriers {
		option := ShippingOption{
			Code:          rate.Code,
			Name:          rate.Name,
			Carrier:       rate.Carrier,
			Price:         rate.Price,
			EstimatedDays: rate.Days,
		}
		if free {
			option.Price = 0
			option.FreeShipping = true
		}
		options = append(options, option)
	}
	options = append(options, ShippingOption{
		Code:          pickupShippingCode,
		Name:          s.pickupName,
		EstimatedDays: s.pickupDays,
		Pickup:        true,
	})
	return options, nil
}
