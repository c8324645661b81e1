package grako

import (
	"fmt"
	"sort"
)

// Range identifies a half-open span of code points within the
// buffered input: [Start, End).
type Range struct{ Start, End int }

func NewRange(start, end int) Range { return Range{Start: start, End: end} }

func (r Range) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// Str slices the code-point range out of a decoded rune buffer.
func (r Range) Str(runes []rune) string { return string(runes[r.Start:r.End]) }

func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

func (r Range) Len() int { return r.End - r.Start }

// Location is a single point in the source, in the coordinate system
// diagnostics are reported in: 1-based line and column, plus the raw
// code-point cursor and the file that line came from (relevant once
// #include has spliced multiple files into one buffer).
type Location struct {
	Line   int
	Column int
	Cursor int
	File   string
}

// Span pairs two locations delimiting a diagnostic region.
type Span struct{ Start, End Location }

func (s Span) String() string {
	if s.Start.Line == s.End.Line {
		if s.Start.Column == s.End.Column {
			return fmt.Sprintf("%s:%d:%d", s.Start.File, s.Start.Line, s.Start.Column)
		}
		return fmt.Sprintf("%s:%d:%d..%d", s.Start.File, s.Start.Line, s.Start.Column, s.End.Column)
	}
	return fmt.Sprintf("%s:%d:%d..%d:%d", s.Start.File, s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// LineIndex maps code-point cursor positions to (file, line, column)
// in O(log lines) via a precomputed, binary-searched table of line
// starts. It additionally carries a per-line filename so that
// #include-spliced buffers report diagnostics against the file a
// line actually came from, rather than the top-level grammar file.
//
// Construction is O(n) over the input; NewScanner builds one per
// parse and keeps it on the Scanner.
type LineIndex struct {
	runes      []rune
	lineStart  []int
	lineFile   []string
	defaultTab int
}

// NewLineIndex builds a line index over runes, expanding tabs to
// tabWidth columns (tabWidth <= 0 disables expansion) and attributing
// every line to filename; SetLineFile overrides specific lines.
func NewLineIndex(runes []rune, filename string, tabWidth int) *LineIndex {
	li := &LineIndex{
		lineStart:  []int{0},
		lineFile:   []string{filename},
		defaultTab: tabWidth,
	}
	li.runes = runes
	for i, r := range runes {
		if r == '\n' {
			li.lineStart = append(li.lineStart, i+1)
			li.lineFile = append(li.lineFile, filename)
		}
	}
	return li
}

// SetLineFile overrides the filename attributed to line (0-based).
// Used when preprocessing #include directives to extend the per-line
// filename map with the name of the inlined file.
func (li *LineIndex) SetLineFile(line int, filename string) {
	if line >= 0 && line < len(li.lineFile) {
		li.lineFile[line] = filename
	}
}

func (li *LineIndex) Span(r Range) Span {
	return Span{Start: li.LocationAt(r.Start), End: li.LocationAt(r.End)}
}

func (li *LineIndex) LocationAt(cursor int) Location {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(li.runes) {
		cursor = len(li.runes)
	}

	lineIdx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > cursor
	}) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}

	lineStart := li.lineStart[lineIdx]
	col := li.column(lineStart, cursor)

	return Location{
		Line:   lineIdx + 1,
		Column: col,
		Cursor: cursor,
		File:   li.lineFile[lineIdx],
	}
}

func (li *LineIndex) column(lineStart, cursor int) int {
	col := 1
	for i := lineStart; i < cursor; i++ {
		if li.runes[i] == '\t' && li.defaultTab > 0 {
			col += li.defaultTab - ((col - 1) % li.defaultTab)
		} else {
			col++
		}
	}
	return col
}

// LineText returns the full text of the line containing cursor, used
// to render diagnostic excerpts.
func (li *LineIndex) LineText(cursor int) string {
	loc := li.LocationAt(cursor)
	start := li.lineStart[loc.Line-1]
	end := len(li.runes)
	if loc.Line < len(li.lineStart) {
		end = li.lineStart[loc.Line] - 1
	}
	if end < start {
		end = start
	}
	return string(li.runes[start:end])
}
