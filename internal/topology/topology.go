// Package topology resolves the set of online execution units from the
// kernel's compact range notation (e.g. "0-3,6,8-9").
package topology

import (
	"os"
	"sort"
	"strconv"
	"strings"
)

// DefaultOnlinePath is where Linux exposes the online CPU set.
const DefaultOnlinePath = "/sys/devices/system/cpu/online"

// ReadOnline reads and parses the online CPU descriptor at path. A missing
// or malformed descriptor yields nil; callers fall back to a hardware-thread
// estimate and must not pin, since unit identifiers are unknown.
func ReadOnline(path string) []int {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return ParseList(strings.TrimSpace(string(raw)))
}

// ParseList parses a compact CPU range descriptor into a sorted,
// duplicate-free list of unit IDs. Tokens are either a single non-negative
// integer or an inclusive "a-b" range; a reversed range (b < a) contributes
// no units. Any token outside the grammar invalidates the whole descriptor
// and nil is returned.
func ParseList(s string) []int {
	if s == "" {
		return nil
	}

	seen := make(map[int]bool)
	for _, tok := range strings.Split(s, ",") {
		lo, hi, ok := parseToken(tok)
		if !ok {
			return nil
		}
		for i := lo; i <= hi; i++ {
			seen[i] = true
		}
	}

	if len(seen) == 0 {
		// A descriptor whose ranges all collapse to nothing leaves unit
		// identifiers unknown, same as a malformed one.
		return nil
	}

	units := make([]int, 0, len(seen))
	for id := range seen {
		units = append(units, id)
	}
	sort.Ints(units)
	return units
}

// parseToken parses a single "n" or "a-b" token. The grammar has no sign,
// so strconv failures cover negative members as well.
func parseToken(tok string) (lo, hi int, ok bool) {
	a, b, isRange := strings.Cut(tok, "-")

	lo, err := strconv.Atoi(a)
	if err != nil || lo < 0 {
		return 0, 0, false
	}
	if !isRange {
		return lo, lo, true
	}

	hi, err = strconv.Atoi(b)
	if err != nil || hi < 0 {
		return 0, 0, false
	}
	if hi < lo {
		// Reversed range: valid syntax, empty contribution.
		return lo, lo - 1, true
	}
	return lo, hi, true
}
