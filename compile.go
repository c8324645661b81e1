package grako

import (
	"fmt"
	"regexp"
	"strings"
)

// BootstrapParser turns grammar surface syntax into a Grammar model.
// It is the external collaborator spec §1 names and excludes from
// core scope: Compile only validates and wires whatever grammar the
// bootstrap parser hands back, it never parses grammar text itself.
type BootstrapParser func(source, name string) (*Grammar, error)

// GrammarModel is the compiled, embeddable grammar (spec §6):
// Compile produces one, GrammarModel.Parse drives the engine over
// caller-supplied text.
type GrammarModel struct {
	Name    string
	Grammar *Grammar
}

// Compile invokes bootstrap to turn source into a Grammar model,
// checks it for construction-time grammar errors (spec §4.2:
// undefined rules, closures that can match empty), precomputes its
// FIRST/FOLLOW sets, and returns the embeddable model.
func Compile(source, name string, bootstrap BootstrapParser) (*GrammarModel, error) {
	if bootstrap == nil {
		return nil, &GrammarError{Message: "compile: no bootstrap parser supplied"}
	}
	g, err := bootstrap(source, name)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.ComputeFirstFollow()
	return &GrammarModel{Name: name, Grammar: g}, nil
}

// DefaultConfig builds a Config seeded from the engine's defaults and
// overlaid with whatever `@@...` directives (spec §6) the bootstrap
// parser recorded on the grammar. Callers that want full control
// should build their own Config and pass it to Parse directly — this
// is only consulted when Parse is given a nil Config.
func (m *GrammarModel) DefaultConfig() *Config {
	cfg := NewConfig()
	for name, value := range m.Grammar.Directives {
		applyDirective(cfg, name, value)
	}
	return cfg
}

func applyDirective(cfg *Config, name, value string) {
	switch name {
	case "nameguard":
		cfg.NameGuard = directiveBool(value, cfg.NameGuard)
	case "ignorecase":
		cfg.IgnoreCase = directiveBool(value, cfg.IgnoreCase)
	case "left_recursion":
		cfg.LeftRecursion = directiveBool(value, cfg.LeftRecursion)
	case "parseinfo":
		cfg.ParseInfo = directiveBool(value, cfg.ParseInfo)
	case "whitespace":
		if value == "" {
			cfg.Whitespace = NoWhitespace
		} else {
			cfg.Whitespace = NewWhitespaceChars(value)
		}
	case "comments":
		if re, err := regexp.Compile(value); err == nil {
			cfg.CommentsRe = re
		}
	case "eol_comments":
		if re, err := regexp.Compile(value); err == nil {
			cfg.EOLCommentsRe = re
		}
	case "keyword":
		if cfg.Keywords == nil {
			cfg.Keywords = map[string]struct{}{}
		}
		for _, w := range strings.Fields(value) {
			if cfg.IgnoreCase {
				w = foldCase(w)
			}
			cfg.Keywords[w] = struct{}{}
		}
	case "grammar":
		// Surfaced as GrammarModel.Name already; nothing to apply.
	}
}

func directiveBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}

// Parse drives the engine (spec §6): it builds a Scanner and Context
// over text, evaluates start (or the grammar's own start rule) and
// requires the whole input be consumed. On failure it reports the
// farthest failure reached anywhere during the parse as a
// *ParseError, per spec §7's propagation policy, rather than whatever
// failure happened to unwind the top-level rule.
func (m *GrammarModel) Parse(text, start, filename string, semantics Semantics, cfg *Config) (result Value, err error) {
	if cfg == nil {
		cfg = m.DefaultConfig()
	}
	if semantics == nil {
		semantics = passthroughSemantics{}
	}
	if start == "" {
		start = m.Grammar.StartRule()
	}
	rule, ok := m.Grammar.Rule(start)
	if !ok {
		return nil, &GrammarError{Message: fmt.Sprintf("unknown start rule %q", start)}
	}

	scanner := NewScanner(text, filename, cfg)
	ctx := newContext(scanner, m.Grammar, cfg, semantics)

	defer func() {
		if r := recover(); r != nil {
			err = ctx.parseErrorFromPanic(r)
		}
	}()

	scanner.NextToken()
	val, evalErr := ctx.evaluator.Eval(ctx, rule)
	if evalErr != nil {
		return nil, ctx.toParseError(evalErr)
	}
	if eofErr := ctx.CheckEOF(); eofErr != nil {
		return nil, ctx.toParseError(eofErr)
	}
	return val, nil
}

// toParseError reports the farthest failure position reached during
// the parse (spec §7), which may be deeper than err's own position
// when a later, failed alternative got further before backtracking.
func (ctx *Context) toParseError(err error) *ParseError {
	pos := ctx.farthestPos
	expected := ctx.farthestExpected
	ruleStack := ctx.farthestRuleStack

	if pf, ok := asParseFailure(err); ok && pf.Pos >= pos {
		pos = pf.Pos
		expected = dedupe(append(append([]string{}, expected...), pf.Expected))
		ruleStack = ctx.RuleStack()
	}

	filename, line, col, _, _, text := ctx.scanner.LineInfo(pos)
	message := "parse failed"
	if len(expected) > 0 {
		message = "expected " + strings.Join(expected, " or ")
	}
	return &ParseError{
		Filename:  filename,
		Line:      line,
		Column:    col,
		Pos:       pos,
		Excerpt:   text,
		RuleStack: ruleStack,
		Message:   message,
	}
}

func (ctx *Context) parseErrorFromPanic(r any) *ParseError {
	pos := ctx.scanner.Pos()
	filename, line, col, _, _, text := ctx.scanner.LineInfo(pos)
	return &ParseError{
		Filename:  filename,
		Line:      line,
		Column:    col,
		Pos:       pos,
		Excerpt:   text,
		RuleStack: ctx.RuleStack(),
		Message:   fmt.Sprintf("internal error: %v", r),
	}
}
