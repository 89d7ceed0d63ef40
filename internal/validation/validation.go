package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ErrIndicatorEmpty is returned when the indicator code is empty or whitespace-only after trim.
var ErrIndicatorEmpty = errors.New("indicator is required")

// ErrIndicatorInvalid is returned when the indicator code is malformed.
var ErrIndicatorInvalid = errors.New("indicator code is not valid")

// ErrCountryInvalid is returned when a country code is not a 2-3 character alphanumeric code.
var ErrCountryInvalid = errors.New("country code is not valid")

// ErrTooManyCountries is returned when a country list exceeds the allowed size.
var ErrTooManyCountries = errors.New("too many country codes")

// ErrYearInvalid is returned when a year is not a four-digit number.
var ErrYearInvalid = errors.New("year must be a four-digit number")

// ErrYearOutOfRange is returned when a year falls outside the supported range.
var ErrYearOutOfRange = errors.New("year outside supported range")

// ValidateIndicatorCode trims the input and checks the World Bank series code
// shape: dot-separated segments of letters, digits, underscores and hyphens
// (e.g. NY.GDP.PCAP.CD). Returns the trimmed code or an error suitable for
// 400 INVALID_INDICATOR responses. Membership in the configured indicator set
// is checked by the handler, not here.
func ValidateIndicatorCode(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrIndicatorEmpty
	}
	r := []rune(s)
	if len(r) < 3 || len(r) > 48 {
		return "", ErrIndicatorInvalid
	}
	hasLetter, hasDot := false, false
	for _, c := range r {
		switch {
		case unicode.IsLetter(c):
			hasLetter = true
		case unicode.IsDigit(c):
		case c == '.':
			hasDot = true
		case c == '_' || c == '-':
		default:
			return "", ErrIndicatorInvalid
		}
	}
	if !hasLetter || !hasDot {
		return "", ErrIndicatorInvalid
	}
	return s, nil
}

// ValidateCountryCode trims and uppercases the input and checks for a 2-3
// character alphanumeric code. ISO3 codes (USA) and World Bank aggregate
// codes (1W, EU) both pass. Returns the normalized code.
func ValidateCountryCode(input string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	r := []rune(s)
	if len(r) < 2 || len(r) > 3 {
		return "", ErrCountryInvalid
	}
	hasLetter := false
	for _, c := range r {
		switch {
		case c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
		default:
			return "", ErrCountryInvalid
		}
	}
	if !hasLetter {
		return "", ErrCountryInvalid
	}
	return s, nil
}

// ValidateCountryCodes parses a comma-separated country list, validating and
// normalizing each code. Empty segments are skipped, duplicates removed while
// preserving order. When max > 0 the list length is capped.
func ValidateCountryCodes(input string, max int) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, err := ValidateCountryCode(part)
		if err != nil {
			return nil, err
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	if max > 0 && len(out) > max {
		return nil, ErrTooManyCountries
	}
	return out, nil
}

// ValidateYear parses a four-digit year and enforces [min, max] bounds when
// either bound is positive. Returns an error suitable for 400 INVALID_YEAR
// responses. Callers handle absent parameters before calling.
func ValidateYear(input string, min, max int) (int, error) {
	s := strings.TrimSpace(input)
	y, err := strconv.Atoi(s)
	if err != nil || y < 1000 || y > 9999 {
		return 0, ErrYearInvalid
	}
	if (min > 0 && y < min) || (max > 0 && y > max) {
		return 0, ErrYearOutOfRange
	}
	return y, nil
}
