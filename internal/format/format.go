// Package format holds the Brazilian postal code, phone, CPF and currency
// helpers shared by the API and the storefront client.
package format

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	cepLength      = 8
	cpfLength      = 11
	minPhoneDigits = 10
	maxPhoneDigits = 11
)

var cpfPattern = regexp.MustCompile(`^\d{3}\.\d{3}\.\d{3}-\d{2}$`)

// DigitsOnly strips every non-digit rune.
func DigitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeCep removes punctuation from a postal code: "01310-100" becomes "01310100".
func SanitizeCep(cep string) string {
	return DigitsOnly(cep)
}

// ValidCep reports whether the postal code normalises to exactly eight digits.
func ValidCep(cep string) bool {
	return len(SanitizeCep(cep)) == cepLength
}

// FormatCepMask renders "01310100" as "01310-100". Partial input is masked progressively.
func FormatCepMask(cep string) string {
	digits := truncate(SanitizeCep(cep), cepLength)
	if len(digits) <= 5 {
		return digits
	}
	return digits[:5] + "-" + digits[5:]
}

// NormalizePhone returns the digits of a phone number.
func NormalizePhone(phone string) string {
	return DigitsOnly(phone)
}

// ValidPhone reports whether the phone has at least ten digits (area code included).
func ValidPhone(phone string) bool {
	return len(NormalizePhone(phone)) >= minPhoneDigits
}

// FormatPhoneMask renders "11987654321" as "(11) 98765-4321" and ten-digit
// landlines as "(11) 8765-4321".
func FormatPhoneMask(phone string) string {
	digits := truncate(NormalizePhone(phone), maxPhoneDigits)
	switch n := len(digits); {
	case n == 0:
		return ""
	case n <= 2:
		return "(" + digits
	case n <= 6:
		return "(" + digits[:2] + ") " + digits[2:]
	case n <= 10:
		return "(" + digits[:2] + ") " + digits[2:6] + "-" + digits[6:]
	default:
		return "(" + digits[:2] + ") " + digits[2:7] + "-" + digits[7:]
	}
}

// FormatCpfMask renders "12345678901" as "123.456.789-01". Partial input is masked progressively.
func FormatCpfMask(cpf string) string {
	digits := truncate(DigitsOnly(cpf), cpfLength)
	switch n := len(digits); {
	case n <= 3:
		return digits
	case n <= 6:
		return digits[:3] + "." + digits[3:]
	case n <= 9:
		return digits[:3] + "." + digits[3:6] + "." + digits[6:]
	default:
		return digits[:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:]
	}
}

// ValidCPF reports whether the tax id has eleven digits and matches ###.###.###-##
// once masked.
func ValidCPF(cpf string) bool {
	digits := DigitsOnly(cpf)
	if len(digits) != cpfLength {
		return false
	}
	trimmed := strings.TrimSpace(cpf)
	if trimmed != digits && !cpfPattern.MatchString(trimmed) {
		return false
	}
	return cpfPattern.MatchString(FormatCpfMask(digits))
}

// FormatBRL renders cents as "R$ 1.234,56".
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	frac := cents % 100

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	fracStr := strconv.FormatInt(frac, 10)
	if frac < 10 {
		fracStr = "0" + fracStr
	}
	return sign + "R$ " + grouped.String() + "," + fracStr
}

func truncate(value string, limit int) string {
	if len(value) > limit {
		return value[:limit]
	}
	return value
}
