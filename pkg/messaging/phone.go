package messaging

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned when a phone number cannot be normalized to
// E.164 form.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone strips formatting characters and returns the number in E.164
// form. Ten-digit numbers are assumed to be North American and get a +1
// prefix.
func NormalizePhone(phone string) (string, error) {
	var digits strings.Builder

	trimmed := strings.TrimSpace(phone)
	hasPlus := strings.HasPrefix(trimmed, "+")

	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	number := digits.String()

	switch {
	case len(number) < 10 || len(number) > 15:
		return "", ErrInvalidPhone
	case hasPlus:
		return "+" + number, nil
	case len(number) == 10:
		return "+1" + number, nil
	case len(number) == 11 && number[0] == '1':
		return "+" + number, nil
	default:
		return "+" + number, nil
	}
}
