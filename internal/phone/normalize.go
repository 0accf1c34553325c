// Package phone turns loosely formatted phone identifiers into the canonical
// "+<digits>" form used as the contact key.
//
// The rules are a Brazil-biased heuristic, not a numbering-plan validator.
// Any non-empty digit run is accepted, including implausibly short ones.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoDigits is returned when no digits can be extracted from the input.
var ErrNoDigits = errors.New("phone: no digits")

const countryBR = "55"

var waMeLink = regexp.MustCompile(`(?i)wa\.me/(\d+)`)

// Normalize maps raw to its canonical form. Rules, first match wins:
//
//  1. 12 digits starting with 55: insert the mobile "9" after the area code.
//  2. starts with 55: already complete.
//  3. 10 or 11 digits: local number, prefix 55.
//  4. 12 or more digits: generic international.
//  5. anything else: prefix "+" as is.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrNoDigits
	}
	if m := waMeLink.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	d := Digits(s)
	if d == "" {
		return "", ErrNoDigits
	}

	switch {
	case len(d) == 12 && strings.HasPrefix(d, countryBR):
		return "+" + d[:2] + d[2:4] + "9" + d[4:], nil
	case strings.HasPrefix(d, countryBR):
		return "+" + d, nil
	case len(d) == 10 || len(d) == 11:
		return "+" + countryBR + d, nil
	default:
		// Rules 4 and 5 produce the same shape.
		return "+" + d, nil
	}
}

// Digits strips every non-digit character from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
