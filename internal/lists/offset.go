package lists

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	shelferrors "github.com/randalmurphal/shelf/internal/errors"
)

// DueOffset is a due date relative to when an item joined a list,
// written as a count and a unit: "90m", "12h", "3d" or "2w".
type DueOffset struct {
	raw string
	d   time.Duration
}

var offsetUnits = map[byte]time.Duration{
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseDueOffset parses an offset such as "3d". An empty string is not an offset.
func ParseDueOffset(s string) (*DueOffset, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return nil, invalidOffset(s)
	}
	unit, ok := offsetUnits[s[len(s)-1]]
	if !ok {
		return nil, invalidOffset(s)
	}
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil || n < 0 || n > math.MaxInt64/int64(unit) {
		return nil, invalidOffset(s)
	}
	return &DueOffset{raw: s, d: time.Duration(n) * unit}, nil
}

// Resolve returns the due date for an item that joined at anchor.
func (o *DueOffset) Resolve(anchor time.Time) time.Time {
	return anchor.Add(o.d)
}

// String returns the offset as written.
func (o *DueOffset) String() string {
	return o.raw
}

func invalidOffset(s string) error {
	return shelferrors.Validation(
		fmt.Sprintf("invalid due offset %q", s),
		"expected a non-negative count followed by m, h, d or w, like 3d",
	)
}
