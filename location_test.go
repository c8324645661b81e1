package grako

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRange_Contains(t *testing.T) {
	tests := []struct {
		name     string
		parent   Range
		other    Range
		expected bool
	}{
		{"fully contained", NewRange(0, 10), NewRange(2, 8), true},
		{"identical", NewRange(5, 15), NewRange(5, 15), true},
		{"other starts before parent", NewRange(5, 15), NewRange(3, 10), false},
		{"other ends after parent", NewRange(5, 15), NewRange(10, 20), false},
		{"disjoint before", NewRange(10, 20), NewRange(0, 5), false},
		{"disjoint after", NewRange(0, 10), NewRange(15, 25), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.parent.Contains(tt.other))
		})
	}
}

func TestRange_String(t *testing.T) {
	assert.Equal(t, "3..7", NewRange(3, 7).String())
	assert.Equal(t, "3", NewRange(3, 3).String())
}

func TestLineIndex_LocationAt(t *testing.T) {
	text := "abc\ndef\nghi"
	runes := []rune(text)
	idx := NewLineIndex(runes, "grammar.g", 0)

	tests := []struct {
		name       string
		cursor     int
		wantLine   int
		wantColumn int
	}{
		{"start of buffer", 0, 1, 1},
		{"mid first line", 2, 1, 3},
		{"start of second line", 4, 2, 1},
		{"mid third line", 9, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := idx.LocationAt(tt.cursor)
			assert.Equal(t, tt.wantLine, loc.Line)
			assert.Equal(t, tt.wantColumn, loc.Column)
			assert.Equal(t, "grammar.g", loc.File)
		})
	}
}

func TestLineIndex_TabExpansion(t *testing.T) {
	text := "\tx"
	idx := NewLineIndex([]rune(text), "g", 4)
	loc := idx.LocationAt(1)
	assert.Equal(t, 5, loc.Column)
}

func TestLineIndex_SetLineFile(t *testing.T) {
	text := "a\nb\n"
	idx := NewLineIndex([]rune(text), "main.g", 0)
	idx.SetLineFile(1, "included.g")
	assert.Equal(t, "main.g", idx.LocationAt(0).File)
	assert.Equal(t, "included.g", idx.LocationAt(2).File)
}

func TestLineIndex_LineText(t *testing.T) {
	text := "first\nsecond\nthird"
	idx := NewLineIndex([]rune(text), "g", 0)
	assert.Equal(t, "second", idx.LineText(7))
	assert.Equal(t, "third", idx.LineText(len([]rune(text))-1))
}
