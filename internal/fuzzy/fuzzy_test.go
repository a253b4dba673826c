package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	tests := []struct {
		name     string
		haystack string
		needle   string
		want     bool
	}{
		{"subsequence across words", "semi-skimmed milk", "sskmd", true},
		{"no overlap", "milk", "xyz", false},
		{"exact match", "milk", "milk", true},
		{"empty needle matches", "anything", "", true},
		{"empty haystack", "", "a", false},
		{"order matters", "milk", "klim", false},
		{"needle longer than haystack", "ml", "milk", false},
		{"unicode runes", "jalapeño", "jño", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(tt.haystack, tt.needle))
		})
	}
}

func TestMatchesQuery(t *testing.T) {
	fields := []string{"Semi-Skimmed Milk", "dairy", "fridge"}

	tests := []struct {
		name      string
		query     string
		fuzzyMode bool
		want      bool
	}{
		{"empty query matches", "", false, true},
		{"substring token", "milk", false, true},
		{"case-insensitive", "MILK", false, true},
		{"all tokens must match", "milk fridge", false, true},
		{"one token missing", "milk freezer", false, false},
		{"fuzzy token", "sskmd", true, true},
		{"fuzzy respects AND", "sskmd dry", true, true},
		{"fuzzy miss", "xyz", true, false},
		{"substring does not fuzz", "sskmd", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesQuery(fields, tt.query, tt.fuzzyMode))
		})
	}
}
