package directory

import (
	"errors"
	"strings"
)

// NormalizePhone converts a phone number to E.164. Bare local numbers
// default to Ethiopia (+251), matching where the recipient base lives:
//
//	"0911234567"   -> "+251911234567"
//	"911234567"    -> "+251911234567"
//	"251911234567" -> "+251911234567"
//	"+14155550100" -> "+14155550100"
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return "", errors.New("phone number has no digits")
	}
	switch {
	case strings.HasPrefix(d, "251"):
		return "+" + d, nil
	case strings.HasPrefix(d, "0"):
		return "+251" + d[1:], nil
	case len(d) == 9:
		return "+251" + d, nil
	default:
		return "+" + d, nil
	}
}
