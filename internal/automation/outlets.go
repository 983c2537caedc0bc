package automation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// OutletSpec is the rule's outlet selector: a scalar ("5"), a list
// ("1,3,5") or an inclusive range ("1-4"). JSON accepts either a number or
// a string.
type OutletSpec string

// UnmarshalJSON accepts 5 and "1-4" alike.
func (o *OutletSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = OutletSpec(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*o = OutletSpec(strconv.Itoa(n))
		return nil
	}
	return fmt.Errorf("outlet spec must be a number or string, got %s", data)
}

// Expand resolves the spec to a sorted list of unique outlet numbers,
// validated against [1, max].
func (o OutletSpec) Expand(max int) ([]int, error) {
	spec := strings.TrimSpace(string(o))
	if spec == "" {
		return nil, fmt.Errorf("empty outlet spec")
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if from, to, ok := strings.Cut(part, "-"); ok {
			lo, err := parseOutletNumber(from, max)
			if err != nil {
				return nil, err
			}
			hi, err := parseOutletNumber(to, max)
			if err != nil {
				return nil, err
			}
			if hi < lo {
				return nil, fmt.Errorf("outlet range %q is reversed", part)
			}
			for n := lo; n <= hi; n++ {
				seen[n] = true
			}
			continue
		}
		n, err := parseOutletNumber(part, max)
		if err != nil {
			return nil, err
		}
		seen[n] = true
	}

	outlets := make([]int, 0, len(seen))
	for n := range seen {
		outlets = append(outlets, n)
	}
	sort.Ints(outlets)
	return outlets, nil
}

func parseOutletNumber(s string, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("outlet %q is not a number", s)
	}
	if n < 1 || n > max {
		return 0, fmt.Errorf("outlet %d out of range 1-%d", n, max)
	}
	return n, nil
}
