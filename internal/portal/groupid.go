package portal

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"brokerportal/internal/models"
)

// GroupID is a family group reference that has passed validation. The zero
// value is invalid; construct one only through ValidateGroupID so malformed
// ids cannot reach a query.
type GroupID struct {
	id uint
}

func (g GroupID) Value() uint { return g.id }

func (g GroupID) String() string { return strconv.FormatUint(uint64(g.id), 10) }

// ValidateGroupID checks a raw group reference before it is used in any
// lookup: it must parse as a positive integer and reference an existing,
// active family group. Anything else is ErrInvalidGroupID — deliberately
// distinct from ErrNotFound, since a malformed id is treated as a possible
// attack rather than a legitimate miss.
func ValidateGroupID(ctx context.Context, db *gorm.DB, raw string) (GroupID, error) {
	n, err := parsePositive(raw)
	if err != nil {
		return GroupID{}, fmt.Errorf("%w: %q", ErrInvalidGroupID, raw)
	}
	var group models.FamilyGroup
	err = db.WithContext(ctx).Where("id = ? AND status = ?", n, true).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return GroupID{}, fmt.Errorf("%w: no active group %d", ErrInvalidGroupID, n)
	}
	if err != nil {
		return GroupID{}, fmt.Errorf("group validation: %w", err)
	}
	return GroupID{id: n}, nil
}

// MustGroupID wraps an id already proven valid, e.g. one read back from a
// validated row inside the same request.
func MustGroupID(id uint) GroupID { return GroupID{id: id} }

// ValidateRawGroupID runs only the syntactic half of the validation: a
// positive, digits-only integer. Callers use it to distinguish probe-shaped
// input from a well-formed but dangling id.
func ValidateRawGroupID(raw string) (uint, error) {
	n, err := parsePositive(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGroupID, raw)
	}
	return n, nil
}

func parsePositive(raw string) (uint, error) {
	if raw == "" {
		return 0, errors.New("empty")
	}
	// strconv.ParseUint alone accepts leading "+"; require digits only so
	// anything like "1 OR 1=1" fails before a query is built.
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, errors.New("non-numeric")
		}
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errors.New("non-positive")
	}
	return uint(n), nil
}
