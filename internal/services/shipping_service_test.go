package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShippingService(t *testing.T, threshold int64) ShippingService {
	t.Helper()
	rates, err := LoadShippingRates("")
	require.NoError(t, err)
	svc, err := NewShippingService(ShippingServiceDeps{Rates: rates, FreeThresholdCents: threshold})
	require.NoError(t, err)
	return svc
}

func TestShippingQuoteUsesRegionByFirstDigit(t *testing.T) {
	svc := newTestShippingService(t, 0)

	options, err := svc.Quote(context.Background(), ShippingQuoteCommand{ZipCode: "01310-100", Subtotal: 5000})
	require.NoError(t, err)
	require.Len(t, options, 4)
	assert.Equal(t, "pac", options[0].Code)
	assert.Equal(t, int64(1890), options[0].Price)
	assert.Equal(t, "jadlog", options[2].Code)

	south, err := svc.Quote(context.Background(), ShippingQuoteCommand{ZipCode: "90010000"})
	require.NoError(t, err)
	assert.Equal(t, int64(2590), south[0].Price)
}

func TestShippingQuoteAlwaysAppendsPickup(t *testing.T) {
	svc := newTestShippingService(t, 0)

	options, err := svc.Quote(context.Background(), ShippingQuoteCommand{ZipCode: "70040010"})
	require.NoError(t, err)
	last := options[len(options)-1]
	assert.True(t, last.Pickup)
	assert.Equal(t, "pickup", last.Code)
	assert.Equal(t, "Retirar na loja", last.Name)
	assert.Zero(t, last.Price)
}

func TestShippingQuoteFreeThreshold(t *testing.T) {
	svc := newTestShippingService(t, 20000)

	below, err := svc.Quote(context.Background(), ShippingQuoteCommand{ZipCode: "20040002", Subtotal: 19999})
	require.NoError(t, err)
	assert.False(t, below[0].FreeShipping)
	assert.NotZero(t, below[0].Price)

	above, err := svc.Quote(context.Background(), ShippingQuoteCommand{ZipCode: "20040002", Subtotal: 20000})
	require.NoError(t, err)
	for _, option := range above {
		assert.Zero(t, option.Price, option.Code)
		if !option.Pickup {
			assert.True(t, option.FreeShipping, option.Code)
		}
	}
}

func TestShippingQuoteRejectsShortCep(t *testing.T) {
	svc := newTestShippingService(t, 0)

	_, err := svc.Quote(context.Background(), ShippingQuoteCommand{ZipCode: "0131"})
	assert.True(t, errors.Is(err, ErrShippingInvalidCep))
}

func TestParseShippingRatesFallsBackToDefault(t *testing.T) {
	table, err := ParseShippingRates([]byte(`
default:
  - {code: pac, name: PAC, carrier: Correios, price: 1000, days: 9}
regions:
  - name: rio
    prefixes: ["2"]
    carriers:
      - {code: sedex, name: SEDEX, carrier: Correios, price: 2000, days: 2}
`))
	require.NoError(t, err)
	svc, err := NewShippingService(ShippingServiceDeps{Rates: table})
	require.NoError(t, err)

	options, err := svc.Quote(context.Background(), ShippingQuoteCommand{ZipCode: "50000000"})
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, int64(1000), options[0].Price)
}

func TestParseShippingRatesValidation(t *testing.T) {
	_, err := ParseShippingRates([]byte(`default: []`))
	assert.Error(t, err)

	_, err = ParseShippingRates([]byte(`
default:
  - {code: pickup, name: X, price: 0, days: 0}
`))
	assert.Error(t, err)

	_, err = ParseShippingRates([]byte(`
default:
  - {code: pac, price: -1, days: 1}
`))
	assert.Error(t, err)

	_, err = ParseShippingRates([]byte(`default: [`))
	assert.Error(t, err)
}
