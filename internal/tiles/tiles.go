// Package tiles defines the canonical mahjong tile codes, the mapping from
// detector class labels to codes, and the per-kind multiplicity rules.
package tiles

import (
	"maps"
	"slices"
)

// Code is a canonical tile code such as "1B", "EW", "RD" or "1F".
type Code string

// Kind groups tiles by their multiplicity rule.
type Kind int

const (
	KindSuited Kind = iota
	KindWind
	KindDragon
	KindFlower
	KindSeason
)

func (k Kind) String() string {
	switch k {
	case KindSuited:
		return "suited"
	case KindWind:
		return "wind"
	case KindDragon:
		return "dragon"
	case KindFlower:
		return "flower"
	case KindSeason:
		return "season"
	default:
		return "unknown"
	}
}

// Copies allowed in one hand.
const (
	MaxStandardCount = 4
	MaxUniqueCount   = 1
)

var (
	// all holds every code in canonical display order.
	all []Code
	// kinds is the membership table for the taxonomy.
	kinds map[Code]Kind
	// modelLabels maps detector class labels to codes. The current detector
	// emits the canonical codes themselves.
	modelLabels map[string]Code
)

func init() {
	kinds = make(map[Code]Kind, 42)
	add := func(kind Kind, codes ...string) {
		for _, c := range codes {
			all = append(all, Code(c))
			kinds[Code(c)] = kind
		}
	}

	for _, suit := range []string{"B", "C", "D"} {
		for rank := '1'; rank <= '9'; rank++ {
			add(KindSuited, string(rank)+suit)
		}
	}
	add(KindWind, "EW", "SW", "WW", "NW")
	add(KindDragon, "RD", "GD", "WD")
	add(KindFlower, "1F", "2F", "3F", "4F")
	add(KindSeason, "1S", "2S", "3S", "4S")

	modelLabels = make(map[string]Code, len(all))
	for _, c := range all {
		modelLabels[string(c)] = c
	}
}

// All returns every tile code in canonical order.
func All() []Code {
	out := make([]Code, len(all))
	copy(out, all)
	return out
}

// IsValid reports whether code belongs to the taxonomy.
func IsValid(code string) bool {
	_, ok := kinds[Code(code)]
	return ok
}

// KindOf returns the kind of code.
func KindOf(code Code) (Kind, bool) {
	k, ok := kinds[code]
	return k, ok
}

// IsUnique reports whether only one copy of code may appear in a hand.
func IsUnique(code Code) bool {
	k, ok := kinds[code]
	return ok && (k == KindFlower || k == KindSeason)
}

// MaxCount returns how many copies of code a hand may hold, or 0 for unknown codes.
func MaxCount(code Code) int {
	if !IsValid(string(code)) {
		return 0
	}
	if IsUnique(code) {
		return MaxUniqueCount
	}
	return MaxStandardCount
}

// LabelToCode maps a detector class label to its tile code. Unknown labels
// return false and must fail the detection rather than be dropped.
func LabelToCode(label string) (Code, bool) {
	c, ok := modelLabels[label]
	return c, ok
}

// Labels returns the detector labels that have a mapping, sorted.
func Labels() []string {
	return slices.Sorted(maps.Keys(modelLabels))
}
