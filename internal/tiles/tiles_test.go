package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomySize(t *testing.T) {
	all := All()
	require.Len(t, all, 42)

	perKind := map[Kind]int{}
	for _, c := range all {
		k, ok := KindOf(c)
		require.True(t, ok)
		perKind[k]++
	}
	assert.Equal(t, 27, perKind[KindSuited])
	assert.Equal(t, 4, perKind[KindWind])
	assert.Equal(t, 3, perKind[KindDragon])
	assert.Equal(t, 4, perKind[KindFlower])
	assert.Equal(t, 4, perKind[KindSeason])
}

func TestIsValid(t *testing.T) {
	for _, code := range []string{"1B", "9C", "5D", "EW", "NW", "RD", "WD", "1F", "4S"} {
		assert.True(t, IsValid(code), code)
	}
	for _, code := range []string{"", "0B", "10B", "1b", "XX", "ZZ", "5F", "EAST"} {
		assert.False(t, IsValid(code), code)
	}
}

func TestMaxCount(t *testing.T) {
	assert.Equal(t, 4, MaxCount("1B"))
	assert.Equal(t, 4, MaxCount("EW"))
	assert.Equal(t, 4, MaxCount("GD"))
	assert.Equal(t, 1, MaxCount("2F"))
	assert.Equal(t, 1, MaxCount("3S"))
	assert.Equal(t, 0, MaxCount("ZZ"))
	assert.True(t, IsUnique("1F"))
	assert.False(t, IsUnique("1B"))
}

func TestLabelToCode(t *testing.T) {
	code, ok := LabelToCode("5D")
	require.True(t, ok)
	assert.Equal(t, Code("5D"), code)

	for _, label := range []string{"INVALID", "0B", "10B", "XX", "", "bamboo_1", "1b"} {
		_, ok := LabelToCode(label)
		assert.False(t, ok, label)
	}
}

func TestEveryMappedLabelIsValid(t *testing.T) {
	labels := Labels()
	require.Len(t, labels, 42)
	for _, label := range labels {
		code, ok := LabelToCode(label)
		require.True(t, ok, label)
		assert.True(t, IsValid(string(code)), label)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		want  []string
	}{
		{"empty hand", nil, nil},
		{"distinct tiles", []string{"1B", "2B", "3B", "4B", "5B"}, nil},
		{"four of a kind", []string{"1B", "1B", "1B", "1B"}, nil},
		{"all flowers once", []string{"1F", "2F", "3F", "4F"}, nil},
		{"five copies", []string{"1B", "1B", "1B", "1B", "1B"}, []string{"Tile 1B appears 5 times (max is 4)"}},
		{"duplicate flower", []string{"1F", "1F"}, []string{"Tile 1F appears 2 times (unique tile, max is 1)"}},
		{"duplicate season", []string{"1S", "1S"}, []string{"Tile 1S appears 2 times (unique tile, max is 1)"}},
		{"unknown code", []string{"ZZ"}, []string{"Invalid tile code: ZZ"}},
		{
			"errors collected together",
			[]string{"RD", "ZZ", "RD", "1F", "RD", "1F", "RD", "QQ", "RD"},
			[]string{
				"Invalid tile code: ZZ",
				"Invalid tile code: QQ",
				"Tile RD appears 5 times (max is 4)",
				"Tile 1F appears 2 times (unique tile, max is 1)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.codes))
		})
	}
}

func TestValidateUnknownIndependentOfOtherErrors(t *testing.T) {
	errs := Validate([]string{"1B", "1B", "1B", "1B", "1B", "ZZ"})
	require.Len(t, errs, 2)
	assert.Contains(t, errs, "Invalid tile code: ZZ")
}
