package util

import (
	"errors"
	"strconv"
)

var ErrBadID = errors.New("invalid id")

// ParseID parses a positive decimal id. Anything with non-digit characters
// is rejected outright rather than partially parsed.
func ParseID(raw string) (uint, error) {
	if raw == "" {
		return 0, ErrBadID
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, ErrBadID
		}
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return 0, ErrBadID
	}
	return uint(n), nil
}
