// Package email derives display values from recipient addresses.
package email

import (
	"strings"
	"unicode"
)

// DisplayName builds "First Last" from the local part of an email address.
// It returns "" when the address has no usable local part.
func DisplayName(address string) string {
	at := strings.IndexByte(address, '@')
	if at <= 0 {
		return ""
	}
	parts := strings.FieldsFunc(address[:at], func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+' || unicode.IsDigit(r)
	})
	if len(parts) == 0 {
		return ""
	}
	name := capitalize(parts[0])
	if len(parts) > 1 {
		name += " " + capitalize(parts[len(parts)-1])
	}
	return name
}

// Mask hides most of an address for logs: "ana@example.com" becomes
// "a**@example.com" and "+34600111222" becomes "********1222".
func Mask(address string) string {
	if at := strings.IndexByte(address, '@'); at > 0 {
		local := []rune(address[:at])
		return string(local[0]) + strings.Repeat("*", len(local)-1) + address[at:]
	}
	runes := []rune(address)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
