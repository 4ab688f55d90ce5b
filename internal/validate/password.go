// Package validate holds input checks shared by the CLI and API wrappers.
package validate

import (
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 20
)

// WeakPassword reports whether pw fails the password policy: 8 to 20
// characters with at least one ASCII upper-case letter, one lower-case letter
// and one digit, and no whitespace.
func WeakPassword(pw string) bool {
	n := utf8.RuneCountInString(pw)
	if n < minPasswordLen || n > maxPasswordLen {
		return true
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsSpace(r):
			return true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return !(upper && lower && digit)
}
