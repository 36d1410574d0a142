package domain

import (
	"math"
	"strconv"
	"strings"
)

// OrderTotals captures the monetary amounts fixed when an order is created.
type OrderTotals struct {
	Currency string
	Subtotal int64
	Shipping int64
	Total    int64
}

// ComputeTotals sums line totals and shipping. Pickup forces shipping to zero.
func ComputeTotals(items []OrderItem, shipping int64, pickup bool) OrderTotals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	if pickup || shipping < 0 {
		shipping = 0
	}
	return OrderTotals{
		Currency: "BRL",
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal + shipping,
	}
}

// ParsePrice converts a display price into a float, tolerating comma decimals
// ("12,50") and thousands separators ("1.234,56"). Unparseable input yields 0.
func ParsePrice(raw string) float64 {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "R$")
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if strings.Contains(value, ",") {
		value = strings.ReplaceAll(value, ".", "")
		value = strings.ReplaceAll(value, ",", ".")
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

// ToCents rounds a decimal amount to integer cents.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts cents to a decimal amount.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}
