package grako

import (
	"regexp"
	"strings"
	"unicode"
)

// Scanner holds the materialized input and the lexical conventions
// (whitespace, comments, name-guard, case sensitivity, tab width and
// identifier characters) used to skip between tokens and to compare
// literals. It has no notion of grammar or AST — it is the leaf
// dependency every other engine component builds on (spec §4.1).
type Scanner struct {
	runes    []rune
	pos      int
	filename string
	cfg      *Config

	lineIndex *LineIndex

	nameChars map[rune]struct{}

	// Comment recovery: per-line (0-based) lists of comment text,
	// split between comments that preceded the line and a trailing
	// comment found at the end of it.
	inlineComments   map[int][]string
	trailingComments map[int][]string

	regexCache map[string]*regexp.Regexp
}

// NewScanner preprocesses text (tab expansion is handled lazily by
// LineIndex's column math, #include inlining is the caller's job —
// see Preprocess) and returns a Scanner ready to drive a parse.
func NewScanner(text, filename string, cfg *Config) *Scanner {
	runes := []rune(text)
	s := &Scanner{
		runes:            runes,
		filename:         filename,
		cfg:              cfg,
		lineIndex:        NewLineIndex(runes, filename, cfg.TabWidth),
		nameChars:        buildNameChars(cfg.NameChars),
		inlineComments:   map[int][]string{},
		trailingComments: map[int][]string{},
		regexCache:       map[string]*regexp.Regexp{},
	}
	return s
}

func buildNameChars(extra string) map[rune]struct{} {
	set := map[rune]struct{}{'_': {}}
	for _, r := range extra {
		set[r] = struct{}{}
	}
	return set
}

func (s *Scanner) isNameChar(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	_, ok := s.nameChars[r]
	return ok
}

func (s *Scanner) Pos() int { return s.pos }

func (s *Scanner) Goto(p int) {
	if p < 0 {
		p = 0
	}
	if p > len(s.runes) {
		p = len(s.runes)
	}
	s.pos = p
}

func (s *Scanner) AtEnd() bool { return s.pos >= len(s.runes) }

func (s *Scanner) AtEOL() bool {
	return s.AtEnd() || s.runes[s.pos] == '\n'
}

// Current returns the rune under the cursor and whether one exists.
func (s *Scanner) Current() (rune, bool) {
	if s.AtEnd() {
		return 0, false
	}
	return s.runes[s.pos], true
}

// Match compares the next len(literal) code points against literal.
// A nil/empty literal is treated as an end-of-input test. On match
// the cursor advances past it and the literal is returned.
//
// When nameguard is enabled and literal is a purely alphanumeric
// (plus name-char) token beginning with a letter or name character,
// the match is rejected if the code point right after it is itself a
// name character — this is what stops the literal "if" from matching
// the prefix of the identifier "ifelse".
func (s *Scanner) Match(literal string, ignorecase bool) (string, bool) {
	if literal == "" {
		return "", s.AtEnd()
	}
	lit := []rune(literal)
	if s.pos+len(lit) > len(s.runes) {
		return "", false
	}
	fold := ignorecase || s.cfg.IgnoreCase
	for i, r := range lit {
		c := s.runes[s.pos+i]
		if fold {
			c = unicode.ToLower(c)
			r = unicode.ToLower(r)
		}
		if c != r {
			return "", false
		}
	}

	if s.cfg.NameGuard && s.isWordLiteral(lit) {
		next := s.pos + len(lit)
		if next < len(s.runes) && s.isNameChar(s.runes[next]) {
			return "", false
		}
	}

	s.pos += len(lit)
	return literal, true
}

// isWordLiteral reports whether lit looks like an identifier: starts
// with a letter or name character, and every code point is
// alphanumeric or a name character.
func (s *Scanner) isWordLiteral(lit []rune) bool {
	if len(lit) == 0 {
		return false
	}
	first := lit[0]
	if !unicode.IsLetter(first) && !s.isNameChar(first) {
		return false
	}
	for _, r := range lit {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !s.isNameChar(r) {
			return false
		}
	}
	return true
}

// MatchRegex anchors pattern at the current position and, on match,
// advances the cursor by the matched length.
func (s *Scanner) MatchRegex(pattern string) (string, bool) {
	re := s.compile(pattern)
	rest := string(s.runes[s.pos:])
	loc := re.FindStringIndex(rest)
	if loc == nil || loc[0] != 0 {
		return "", false
	}
	matched := rest[loc[0]:loc[1]]
	s.pos += len([]rune(matched))
	return matched, true
}

func (s *Scanner) compile(pattern string) *regexp.Regexp {
	if re, ok := s.regexCache[pattern]; ok {
		return re
	}
	anchored := pattern
	if !strings.HasPrefix(anchored, "^") {
		anchored = "^(?:" + anchored + ")"
	}
	re := regexp.MustCompile(anchored)
	s.regexCache[pattern] = re
	return re
}

// NextToken repeatedly skips an EOL comment, then a block comment,
// then whitespace, until none of the three advance the cursor.
func (s *Scanner) NextToken() {
	for {
		start := s.pos
		s.skipEOLComment()
		s.skipBlockComment()
		s.skipWhitespace()
		if s.pos == start {
			return
		}
	}
}

func (s *Scanner) skipWhitespace() {
	if s.cfg.Whitespace.None || s.cfg.Whitespace.Pattern == nil {
		return
	}
	rest := string(s.runes[s.pos:])
	loc := s.cfg.Whitespace.Pattern.FindStringIndex(rest)
	if loc == nil || loc[0] != 0 {
		return
	}
	matched := rest[loc[0]:loc[1]]
	s.pos += len([]rune(matched))
}

func (s *Scanner) skipBlockComment() {
	if s.cfg.CommentsRe == nil {
		return
	}
	rest := string(s.runes[s.pos:])
	loc := s.cfg.CommentsRe.FindStringIndex(rest)
	if loc == nil || loc[0] != 0 {
		return
	}
	matched := rest[loc[0]:loc[1]]
	line := s.lineIndex.LocationAt(s.pos).Line - 1
	s.inlineComments[line] = append(s.inlineComments[line], matched)
	s.pos += len([]rune(matched))
}

func (s *Scanner) skipEOLComment() {
	if s.cfg.EOLCommentsRe == nil {
		return
	}
	rest := string(s.runes[s.pos:])
	loc := s.cfg.EOLCommentsRe.FindStringIndex(rest)
	if loc == nil || loc[0] != 0 {
		return
	}
	matched := rest[loc[0]:loc[1]]
	line := s.lineIndex.LocationAt(s.pos).Line - 1
	s.trailingComments[line] = append(s.trailingComments[line], matched)
	s.pos += len([]rune(matched))
}

// LineInfo resolves pos to its diagnostic coordinates and the source
// line's text, binary-searching the precomputed line-start table.
func (s *Scanner) LineInfo(pos int) (filename string, line, col int, start, end int, text string) {
	loc := s.lineIndex.LocationAt(pos)
	lineText := s.lineIndex.LineText(pos)
	return loc.File, loc.Line, loc.Column, loc.Cursor, loc.Cursor, lineText
}

func (s *Scanner) Span(r Range) Span { return s.lineIndex.Span(r) }

// InlineComments returns the comments recovered immediately before
// line (0-based).
func (s *Scanner) InlineComments(line int) []string { return s.inlineComments[line] }

// TrailingComments returns the comments recovered at the end of line
// (0-based).
func (s *Scanner) TrailingComments(line int) []string { return s.trailingComments[line] }

// Preprocess leaves tabs alone (LineIndex already expands tabs when
// computing columns) and inlines #include directives by textual
// substitution, returning with the text a map from 0-based output
// line to the filename that line came from, so diagnostics can be
// attributed to the right file. extractIncludePath reads the path out
// of `#include :: "file"` and resolve is the caller-supplied loader
// (kept outside the engine:
// file I/O is an external collaborator per spec §1).
func Preprocess(text, filename string, resolve func(path string) (string, error)) (string, map[int]string, error) {
	var (
		out       strings.Builder
		lineFiles = map[int]string{}
		line      = 0
	)
	for _, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if strings.HasPrefix(trimmed, "#include") {
			path, ok := extractIncludePath(trimmed)
			if ok && resolve != nil {
				included, err := resolve(path)
				if err != nil {
					return "", nil, err
				}
				for _, incLine := range strings.Split(included, "\n") {
					out.WriteString(incLine)
					out.WriteByte('\n')
					lineFiles[line] = path
					line++
				}
				continue
			}
		}
		out.WriteString(raw)
		out.WriteByte('\n')
		lineFiles[line] = filename
		line++
	}
	return strings.TrimSuffix(out.String(), "\n"), lineFiles, nil
}

func extractIncludePath(directive string) (string, bool) {
	start := strings.IndexByte(directive, '"')
	if start < 0 {
		return "", false
	}
	end := strings.IndexByte(directive[start+1:], '"')
	if end < 0 {
		return "", false
	}
	return directive[start+1 : start+1+end], true
}
