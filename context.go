package grako

import (
	"fmt"
	"strings"
)

// Context is the per-parse mutable state described in spec §3: the
// AST stack, CST stack, cut stack and rule stack. Every push has a
// paired pop on every exit path, success, ordinary failure, hard
// failure after cut, or host-level panic (the deferred recover in
// Parse, see compile.go, guarantees the last of those). The four
// stacks do not share one depth: tryAttempt and the lookaheads push
// AST and CST frames only, ChoiceFrame and ClosureLoop push cut flags
// only, and the rule name is pushed by Eval around runRuleBody.
type Context struct {
	scanner   *Scanner
	grammar   *Grammar
	cfg       *Config
	evaluator *evaluator
	semantics Semantics

	astStack  []*Frame
	cstStack  [][]Value
	cutStack  []bool
	ruleStack []string

	lookaheadDepth int
	userState      any

	farthestPos       int
	farthestExpected  []string
	farthestRuleStack []string
}

func newContext(scanner *Scanner, grammar *Grammar, cfg *Config, sem Semantics) *Context {
	return &Context{
		scanner:   scanner,
		grammar:   grammar,
		cfg:       cfg,
		evaluator: newEvaluator(cfg),
		semantics: sem,
	}
}

// ---- stack primitives ----

func (ctx *Context) pushAST(frame *Frame) {
	ctx.astStack = append(ctx.astStack, frame)
}

func (ctx *Context) popAST() *Frame {
	n := len(ctx.astStack) - 1
	top := ctx.astStack[n]
	ctx.astStack = ctx.astStack[:n]
	return top
}

func (ctx *Context) topAST() *Frame { return ctx.astStack[len(ctx.astStack)-1] }

func (ctx *Context) replaceTopAST(frame *Frame) {
	ctx.astStack[len(ctx.astStack)-1] = frame
}

func (ctx *Context) pushCST() {
	ctx.cstStack = append(ctx.cstStack, nil)
}

func (ctx *Context) popCST() []Value {
	n := len(ctx.cstStack) - 1
	top := ctx.cstStack[n]
	ctx.cstStack = ctx.cstStack[:n]
	return top
}

// AppendCST appends node to the top CST frame, skipping nils so that
// void combinators (cut, lookahead) don't clutter the concrete tree.
func (ctx *Context) AppendCST(node Value) {
	if node == nil {
		return
	}
	n := len(ctx.cstStack) - 1
	ctx.cstStack[n] = append(ctx.cstStack[n], node)
}

// extendCST merges a child CST list into the current top frame, used
// when a try attempt or group completes successfully.
func (ctx *Context) extendCST(items []Value) {
	n := len(ctx.cstStack) - 1
	ctx.cstStack[n] = append(ctx.cstStack[n], items...)
}

func (ctx *Context) currentCST() Value {
	top := ctx.cstStack[len(ctx.cstStack)-1]
	if len(top) == 0 {
		return nil
	}
	if len(top) == 1 {
		return top[0]
	}
	out := make([]Value, len(top))
	copy(out, top)
	return out
}

func (ctx *Context) pushCut()     { ctx.cutStack = append(ctx.cutStack, false) }
func (ctx *Context) popCut() bool {
	n := len(ctx.cutStack) - 1
	top := ctx.cutStack[n]
	ctx.cutStack = ctx.cutStack[:n]
	return top
}

// SetCut marks the innermost choice/option frame as committed; a
// subsequent failure within that frame becomes a hard failure. It
// also evicts memoization entries below the cut point (spec §5):
// once committed, the engine will never backtrack before this
// position for the current rule invocation, so cached cells there
// can't be revisited and are safe to drop.
func (ctx *Context) SetCut() {
	if n := len(ctx.cutStack); n > 0 {
		ctx.cutStack[n-1] = true
	}
	ctx.evaluator.Cut(ctx.scanner.Pos())
}

func (ctx *Context) pushRule(name string) { ctx.ruleStack = append(ctx.ruleStack, name) }
func (ctx *Context) popRule() {
	ctx.ruleStack = ctx.ruleStack[:len(ctx.ruleStack)-1]
}

func (ctx *Context) RuleStack() []string {
	out := make([]string, len(ctx.ruleStack))
	copy(out, ctx.ruleStack)
	return out
}

// ---- failures ----

func (ctx *Context) fail(kind FailureKind, expected string) error {
	return ctx.failAt(ctx.scanner.Pos(), kind, expected)
}

func (ctx *Context) failAt(pos int, kind FailureKind, expected string) error {
	var rule string
	if n := len(ctx.ruleStack); n > 0 {
		rule = ctx.ruleStack[n-1]
	}
	if pos > ctx.farthestPos {
		ctx.farthestPos = pos
		ctx.farthestExpected = []string{expected}
		ctx.farthestRuleStack = ctx.RuleStack()
	} else if pos == ctx.farthestPos {
		ctx.farthestExpected = dedupe(append(ctx.farthestExpected, expected))
	}
	return &parseFailure{Kind: kind, Expected: expected, Pos: pos, RuleName: rule}
}

func asParseFailure(err error) (*parseFailure, bool) {
	pf, ok := err.(*parseFailure)
	return pf, ok
}

// ---- try: the base scoped attempt every choice/option/closure
// iteration builds on. It copies the current top AST frame down into
// a fresh scope so the attempt's captures are isolated; on success it
// replaces the outer frame with the (now-mutated) copy and extends
// the outer CST with the attempt's CST; on failure the outer frame,
// since it was never touched, is already back to its pre-attempt
// value, and the scanner position and user state are restored.
func (ctx *Context) tryAttempt(body func() (Value, error)) (Value, error) {
	startPos := ctx.scanner.Pos()
	startState := ctx.userState

	var copyFrame *Frame
	if len(ctx.astStack) > 0 {
		copyFrame = ctx.topAST().clone()
	} else {
		copyFrame = NewFrame()
	}
	ctx.pushAST(copyFrame)
	ctx.pushCST()

	val, err := body()
	if err != nil {
		ctx.popCST()
		ctx.popAST()
		ctx.scanner.Goto(startPos)
		ctx.userState = startState
		return nil, err
	}

	innerCST := ctx.popCST()
	innerFrame := ctx.popAST()
	if len(ctx.astStack) > 0 {
		ctx.replaceTopAST(innerFrame)
	}
	ctx.extendCST(innerCST)
	return val, nil
}

// ---- choice / option / optional ----

// ChoiceFrame runs fns in order, returning the first success. Each
// alternative gets its own cut scope: a cut executed while the
// alternative runs, followed by a failure in that same alternative,
// is reported as a hard failure that bypasses the rest of fns (and
// anything above this ChoiceFrame that is itself inside a choice).
func (ctx *Context) ChoiceFrame(fns []func() (Value, error)) (Value, error) {
	var expected []string
	for _, fn := range fns {
		ctx.pushCut()
		val, err := ctx.tryAttempt(fn)
		cutSet := ctx.popCut()
		if err == nil {
			return val, nil
		}
		if _, ok := err.(*hardFailure); ok {
			return nil, err
		}
		if cutSet {
			if pf, ok := asParseFailure(err); ok {
				return nil, &hardFailure{parseFailure: pf}
			}
			return nil, err
		}
		if pf, ok := asParseFailure(err); ok {
			expected = append(expected, pf.Expected)
		}
	}
	return nil, ctx.fail(FailureExpectedToken, strings.Join(dedupe(expected), " or "))
}

// Optional is choice(option(body)) generalized: it never fails unless
// body committed via cut and then failed.
func (ctx *Context) Optional(body func() (Value, error)) (Value, error) {
	return ctx.ChoiceFrame([]func() (Value, error){
		body,
		func() (Value, error) { return nil, nil },
	})
}

// ---- group / ignore ----

func (ctx *Context) GroupFrame(body func() (Value, error)) (Value, error) {
	ctx.pushCST()
	val, err := body()
	if err != nil {
		ctx.popCST()
		return nil, err
	}
	inner := ctx.popCST()
	if len(inner) == 1 {
		ctx.AppendCST(inner[0])
	} else if len(inner) > 1 {
		ctx.AppendCST(inner)
	}
	return val, nil
}

// Ignore runs body inside a CST frame that is discarded on exit,
// regardless of outcome — used for separator tracking inside joins.
func (ctx *Context) Ignore(body func() (Value, error)) (Value, error) {
	ctx.pushCST()
	val, err := body()
	ctx.popCST()
	return val, err
}

// ---- lookahead ----

// Lookahead runs body with the position and user state always
// restored on exit, propagating whatever body returned (success or
// any class of failure) unmodified: a predicate never commits.
func (ctx *Context) Lookahead(body func() (Value, error)) (Value, error) {
	startPos := ctx.scanner.Pos()
	startState := ctx.userState
	ctx.lookaheadDepth++
	ctx.pushAST(NewFrame())
	ctx.pushCST()
	val, err := body()
	ctx.popCST()
	ctx.popAST()
	ctx.scanner.Goto(startPos)
	ctx.userState = startState
	ctx.lookaheadDepth--
	return val, err
}

// NegativeLookahead absorbs every failure from body (hard included —
// a predicate's commitments never escape it) turning it into success,
// and turns a body success into an ordinary (soft) failure.
func (ctx *Context) NegativeLookahead(body func() (Value, error)) (Value, error) {
	startPos := ctx.scanner.Pos()
	startState := ctx.userState
	ctx.lookaheadDepth++
	ctx.pushAST(NewFrame())
	ctx.pushCST()
	_, err := body()
	ctx.popCST()
	ctx.popAST()
	ctx.scanner.Goto(startPos)
	ctx.userState = startState
	ctx.lookaheadDepth--
	if err != nil {
		return nil, nil
	}
	return nil, ctx.fail(FailureExpectedToken, "negative lookahead: unexpected match")
}

func (ctx *Context) InLookahead() bool { return ctx.lookaheadDepth > 0 }

// ---- closure / positive closure / join ----

// ClosureLoop repeatedly runs body (prefixed, inside Ignore, by sep
// when sep != nil) until an iteration fails. An iteration that
// consumes no input is always a fatal empty-closure error. A cut
// committed during an iteration that then fails promotes the whole
// loop's outcome to a hard failure; an ordinary failure simply ends
// the repetition with whatever was collected so far.
func (ctx *Context) ClosureLoop(body func() (Value, error), sep func() (Value, error)) ([]Value, error) {
	var items []Value
	for {
		ctx.pushCut()
		startPos := ctx.scanner.Pos()
		val, err := ctx.tryAttempt(func() (Value, error) {
			if sep != nil {
				if _, serr := ctx.Ignore(sep); serr != nil {
					return nil, serr
				}
			}
			return body()
		})
		cutSet := ctx.popCut()
		if err == nil {
			if ctx.scanner.Pos() == startPos {
				return nil, ctx.failAt(startPos, FailureEmptyClosure, "closure body matched the empty string")
			}
			items = append(items, val)
			continue
		}
		if _, ok := err.(*hardFailure); ok {
			return nil, err
		}
		if cutSet {
			if pf, ok := asParseFailure(err); ok {
				return nil, &hardFailure{parseFailure: pf}
			}
			return nil, err
		}
		return items, nil
	}
}

// ---- token / pattern / eof ----

func (ctx *Context) Token(literal string) (Value, error) {
	ctx.scanner.NextToken()
	matched, ok := ctx.scanner.Match(literal, false)
	if !ok {
		return nil, ctx.fail(FailureExpectedToken, fmt.Sprintf("%q", literal))
	}
	return matched, nil
}

func (ctx *Context) Pattern(pattern string) (Value, error) {
	ctx.scanner.NextToken()
	matched, ok := ctx.scanner.MatchRegex(pattern)
	if !ok {
		return nil, ctx.fail(FailureExpectedPattern, "/"+pattern+"/")
	}
	return matched, nil
}

func (ctx *Context) CheckEOF() error {
	ctx.scanner.NextToken()
	if !ctx.scanner.AtEnd() {
		return ctx.fail(FailureEndOfText, "end of input")
	}
	return nil
}

// ---- named captures ----

// NameLastNode records last under name in the current AST frame. The
// caller decides force-list semantics: Named(..., forceList) always
// accumulates into a list, plain Named(...) auto-promotes on a
// second assignment.
func (ctx *Context) NameLastNode(name string, last Value, forceList bool) {
	if len(ctx.astStack) == 0 {
		return
	}
	ctx.topAST().Set(name, last, forceList)
}

// CheckName fails with a reserved-word semantic failure if the last
// matched text is a configured keyword.
func (ctx *Context) CheckName(text string) error {
	if ctx.cfg.IsKeyword(text) {
		return ctx.fail(FailureReservedWord, fmt.Sprintf("%q is a reserved word", text))
	}
	return nil
}

// clone returns a deep-enough copy of a Frame for try's
// copy-on-attempt isolation: independent order/values/forceList maps
// sharing only already-immutable leaf values.
func (f *Frame) clone() *Frame {
	cp := &Frame{
		order:     append([]string{}, f.order...),
		values:    make(map[string]Value, len(f.values)),
		forceList: make(map[string]bool, len(f.forceList)),
	}
	for k, v := range f.values {
		if lst, ok := v.([]Value); ok {
			cp.values[k] = append([]Value{}, lst...)
		} else {
			cp.values[k] = v
		}
	}
	for k, v := range f.forceList {
		cp.forceList[k] = v
	}
	return cp
}
