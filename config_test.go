package grako

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.True(t, cfg.NameGuard)
	assert.True(t, cfg.LeftRecursion)
	assert.False(t, cfg.MemoizeLookaheads)
	assert.False(t, cfg.Whitespace.None)
	assert.NotNil(t, cfg.Whitespace.Pattern)
}

func TestConfig_IsKeyword(t *testing.T) {
	tests := []struct {
		name       string
		ignoreCase bool
		keywords   []string
		check      string
		expected   bool
	}{
		{"exact match", false, []string{"if", "else"}, "if", true},
		{"no match", false, []string{"if", "else"}, "while", false},
		{"case sensitive rejects", false, []string{"if"}, "IF", false},
		{"case insensitive accepts", true, []string{"if"}, "IF", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.IgnoreCase = tt.ignoreCase
			cfg = cfg.WithKeywords(tt.keywords...)
			assert.Equal(t, tt.expected, cfg.IsKeyword(tt.check))
		})
	}
}

func TestNewWhitespaceChars(t *testing.T) {
	ws := NewWhitespaceChars(" \t")
	assert.True(t, ws.Pattern.MatchString(" "))
	assert.True(t, ws.Pattern.MatchString("\t"))
	assert.False(t, ws.Pattern.MatchString("\n"))
}
