package grako

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanner_MatchNameGuard(t *testing.T) {
	cfg := NewConfig()
	s := NewScanner("ifelse", "g", cfg)

	_, ok := s.Match("if", false)
	assert.False(t, ok, `"if" must not match the prefix of "ifelse"`)
	assert.Equal(t, 0, s.Pos())
}

func TestScanner_MatchWithoutNameGuardStraddle(t *testing.T) {
	cfg := NewConfig()
	s := NewScanner("if (x)", "g", cfg)

	matched, ok := s.Match("if", false)
	assert.True(t, ok)
	assert.Equal(t, "if", matched)
	assert.Equal(t, 2, s.Pos())
}

func TestScanner_MatchIgnoreCase(t *testing.T) {
	cfg := NewConfig()
	s := NewScanner("IF x", "g", cfg)
	_, ok := s.Match("if", true)
	assert.True(t, ok)
}

func TestScanner_MatchRegex(t *testing.T) {
	cfg := NewConfig()
	s := NewScanner("12345abc", "g", cfg)
	matched, ok := s.MatchRegex(`[0-9]+`)
	require.True(t, ok)
	assert.Equal(t, "12345", matched)
	assert.Equal(t, 5, s.Pos())
}

func TestScanner_MatchRegexAnchoredAtCursor(t *testing.T) {
	cfg := NewConfig()
	s := NewScanner("abc123", "g", cfg)
	_, ok := s.MatchRegex(`[0-9]+`)
	assert.False(t, ok, "pattern must anchor at the current position, not search ahead")
}

func TestScanner_NextTokenSkipsWhitespaceAndComments(t *testing.T) {
	cfg := NewConfig()
	cfg.EOLCommentsRe = regexp.MustCompile(`//[^\n]*`)
	s := NewScanner("   // line comment\n  x", "g", cfg)

	s.NextToken()
	r, ok := s.Current()
	assert.True(t, ok)
	assert.Equal(t, 'x', r)
}

func TestScanner_AtEnd(t *testing.T) {
	cfg := NewConfig()
	s := NewScanner("ab", "g", cfg)
	assert.False(t, s.AtEnd())
	s.Goto(2)
	assert.True(t, s.AtEnd())
}

func TestPreprocess_InlinesIncludes(t *testing.T) {
	text := "start\n#include :: \"lib.g\"\nend"
	resolve := func(path string) (string, error) {
		if path == "lib.g" {
			return "inlined", nil
		}
		return "", errors.New("not found")
	}
	out, lineFiles, err := Preprocess(text, "main.g", resolve)
	require.NoError(t, err)
	assert.Contains(t, out, "inlined")
	assert.Equal(t, "lib.g", lineFiles[1])
	assert.Equal(t, "main.g", lineFiles[0])
}
