package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeCep(t *testing.T) {
	assert.Equal(t, "01310100", SanitizeCep("01310-100"))
	assert.Equal(t, "01310100", SanitizeCep(" 01.310-100 "))
	assert.True(t, ValidCep("01310-100"))
	assert.False(t, ValidCep("0131-100"))
	assert.False(t, ValidCep(""))
	assert.Equal(t, "01310-100", FormatCepMask("01310100"))
	assert.Equal(t, "0131", FormatCepMask("0131"))
}

func TestFormatPhoneMask(t *testing.T) {
	cases := map[string]string{
		"11987654321":     "(11) 98765-4321",
		"1187654321":      "(11) 8765-4321",
		"(11) 98765-4321": "(11) 98765-4321",
		"11":              "(11",
		"119876":          "(11) 9876",
		"":                "",
		"119876543210000": "(11) 98765-4321",
	}
	for input, want := range cases {
		assert.Equal(t, want, FormatPhoneMask(input), "input %q", input)
	}
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("(11) 8765-4321"))
	assert.True(t, ValidPhone("11987654321"))
	assert.False(t, ValidPhone("98765-4321"))
}

func TestFormatCpfMask(t *testing.T) {
	assert.Equal(t, "123.456.789-01", FormatCpfMask("12345678901"))
	assert.Equal(t, "123.456.789-01", FormatCpfMask("123.456.789-01"))
	assert.Equal(t, "123.45", FormatCpfMask("12345"))
	assert.Equal(t, "123.456.78", FormatCpfMask("12345678"))
}

func TestValidCPF(t *testing.T) {
	assert.True(t, ValidCPF("12345678901"))
	assert.True(t, ValidCPF("123.456.789-01"))
	assert.False(t, ValidCPF(""))
	assert.False(t, ValidCPF("1234567890"))
	assert.False(t, ValidCPF("123-456-789.01"))
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 170,00", FormatBRL(17000))
	assert.Equal(t, "R$ 1.234,56", FormatBRL(123456))
	assert.Equal(t, "R$ 0,05", FormatBRL(5))
	assert.Equal(t, "-R$ 12,30", FormatBRL(-1230))
	assert.Equal(t, "R$ 1.000.000,00", FormatBRL(100000000))
}
