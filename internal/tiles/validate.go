package tiles

import "fmt"

// Validate checks a proposed hand and returns every violation as a
// human-readable message. An empty result means the hand is valid.
// Unknown codes are reported in input order, followed by count violations in
// order of first appearance.
func Validate(codes []string) []string {
	var errs []string
	counts := make(map[Code]int, len(codes))
	var order []Code

	for _, raw := range codes {
		if !IsValid(raw) {
			errs = append(errs, fmt.Sprintf("Invalid tile code: %s", raw))
			continue
		}
		c := Code(raw)
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}

	for _, c := range order {
		n := counts[c]
		if IsUnique(c) {
			if n > MaxUniqueCount {
				errs = append(errs, fmt.Sprintf("Tile %s appears %d times (unique tile, max is %d)", c, n, MaxUniqueCount))
			}
			continue
		}
		if n > MaxStandardCount {
			errs = append(errs, fmt.Sprintf("Tile %s appears %d times (max is %d)", c, n, MaxStandardCount))
		}
	}

	return errs
}
