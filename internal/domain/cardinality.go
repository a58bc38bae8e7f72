package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Cardinality is a component host-count constraint: "2" (exact), "1-3" (range) or "1+" (minimum).
type Cardinality string

func (c Cardinality) bounds() (min, max int, err error) {
	s := strings.TrimSpace(string(c))
	if s == "" {
		return 0, -1, nil
	}
	if strings.HasSuffix(s, "+") {
		min, err = strconv.Atoi(strings.TrimSuffix(s, "+"))
		return min, -1, err
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		if min, err = strconv.Atoi(lo); err != nil {
			return 0, 0, err
		}
		max, err = strconv.Atoi(hi)
		return min, max, err
	}
	min, err = strconv.Atoi(s)
	return min, min, err
}

// Allows reports whether n hosts satisfy the constraint. An empty
// constraint allows any count.
func (c Cardinality) Allows(n int) bool {
	min, max, err := c.bounds()
	if err != nil {
		return false
	}
	if n < min {
		return false
	}
	return max < 0 || n <= max
}

// Validate checks that the constraint itself is well formed.
func (c Cardinality) Validate() error {
	min, max, err := c.bounds()
	if err != nil {
		return fmt.Errorf("invalid cardinality %q: %w", string(c), err)
	}
	if min < 0 || (max >= 0 && max < min) {
		return fmt.Errorf("invalid cardinality %q", string(c))
	}
	return nil
}
