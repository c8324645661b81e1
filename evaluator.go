package grako

import "fmt"

// memoKey identifies one packrat cell: a rule invoked at a buffer
// position under a given user-state snapshot (spec §3: "map from key
// (position, rule_id, user_state)"). User state is folded in via
// fmt.Sprint so arbitrary comparable-ish state (strings, ints,
// small structs) can participate without requiring callers to hand
// the engine a hashable type explicitly.
type memoKey struct {
	pos   int
	rule  string
	state string
}

type memoEntry struct {
	value    Value
	endPos   int
	err      error
	sentinel bool
}

// evaluator is the Rule Evaluator (C4): it wires the grammar model
// into the parse context with packrat memoization and seed-and-grow
// left recursion (spec §4.4).
type evaluator struct {
	cfg       *Config
	memo      map[memoKey]*memoEntry
	recursive map[memoKey]*memoEntry
	heads     map[string]bool
	growing   map[string]bool
}

func newEvaluator(cfg *Config) *evaluator {
	return &evaluator{
		cfg:       cfg,
		memo:      map[memoKey]*memoEntry{},
		recursive: map[memoKey]*memoEntry{},
		heads:     map[string]bool{},
		growing:   map[string]bool{},
	}
}

func stateKey(s any) string {
	if s == nil {
		return ""
	}
	return fmt.Sprint(s)
}

// Eval invokes rule at the context's current position, consulting
// and maintaining the memoization table and left-recursion
// bookkeeping described in spec §4.4.
func (e *evaluator) Eval(ctx *Context, rule *Rule) (Value, error) {
	pos := ctx.scanner.Pos()
	key := memoKey{pos: pos, rule: rule.Name, state: stateKey(ctx.userState)}

	if entry, ok := e.memo[key]; ok {
		return e.handleCacheHit(ctx, rule, key, entry)
	}

	// Seed the cache with a left-recursion failure sentinel: a
	// subsequent same-key invocation (the recursive descent back into
	// this same rule at this same position) will hit the branch above
	// and fail immediately, terminating the left-recursive descent so
	// the non-recursive alternative(s) can be tried first.
	e.memo[key] = &memoEntry{sentinel: true}

	ctx.pushRule(rule.Name)
	val, endPos, err := e.runRuleBody(ctx, rule, pos)
	ctx.popRule()

	if err != nil {
		e.memo[key] = &memoEntry{err: err}
		delete(e.heads, rule.Name)
		ctx.scanner.Goto(pos)
		return nil, err
	}

	if e.cfg.LeftRecursion && e.heads[rule.Name] && !e.growing[rule.Name] {
		val, endPos = e.grow(ctx, rule, pos, key, val, endPos)
		delete(e.heads, rule.Name)
		delete(e.recursive, key)
	}

	if !e.growing[rule.Name] && (!ctx.InLookahead() || e.cfg.MemoizeLookaheads) {
		e.memo[key] = &memoEntry{value: val, endPos: endPos}
	} else {
		delete(e.memo, key)
	}

	ctx.scanner.Goto(endPos)
	return val, nil
}

func (e *evaluator) handleCacheHit(ctx *Context, rule *Rule, key memoKey, entry *memoEntry) (Value, error) {
	if entry.sentinel {
		if !e.cfg.LeftRecursion {
			return nil, ctx.fail(FailureUnknownRule, fmt.Sprintf("left recursion in rule %q (left_recursion disabled)", rule.Name))
		}
		if rec, ok := e.recursive[key]; ok {
			ctx.scanner.Goto(rec.endPos)
			return rec.value, nil
		}
		e.heads[rule.Name] = true
		return nil, &leftRecursionSentinel{RuleName: rule.Name, Pos: key.pos}
	}
	if entry.err != nil {
		return nil, entry.err
	}
	ctx.scanner.Goto(entry.endPos)
	return entry.value, nil
}

// grow implements seed-and-grow: re-run the rule body at the
// original start position as long as each new attempt consumes
// strictly more input than the previous one, keeping the largest
// successful result — the left-recursion fixed point (spec §8).
func (e *evaluator) grow(ctx *Context, rule *Rule, startPos int, key memoKey, seedVal Value, seedEnd int) (Value, int) {
	e.growing[rule.Name] = true
	defer delete(e.growing, rule.Name)

	best, bestEnd := seedVal, seedEnd
	e.recursive[key] = &memoEntry{value: best, endPos: bestEnd}

	for {
		ctx.scanner.Goto(startPos)
		e.evictFailuresFrom(startPos)

		val, endPos, err := e.runRuleBody(ctx, rule, startPos)
		if err != nil || endPos <= bestEnd {
			break
		}
		best, bestEnd = val, endPos
		e.recursive[key] = &memoEntry{value: best, endPos: bestEnd}
	}
	return best, bestEnd
}

// evictFailuresFrom drops cached failure entries at or after pos
// between successive grow attempts, so a failure recorded while
// exploring a shorter seed doesn't wrongly suppress a longer one.
func (e *evaluator) evictFailuresFrom(pos int) {
	for k, v := range e.memo {
		if v.err != nil && k.pos >= pos {
			delete(e.memo, k)
		}
	}
}

// Cut evicts memoization and left-recursion-result entries whose
// position precedes cutPos, bounding memory while preserving PEG
// linearity (spec §5's memoization eviction discipline, point (a)).
func (e *evaluator) Cut(cutPos int) {
	for k := range e.memo {
		if k.pos < cutPos {
			delete(e.memo, k)
		}
	}
	for k := range e.recursive {
		if k.pos < cutPos {
			delete(e.recursive, k)
		}
	}
}

// runRuleBody pushes a fresh AST/CST/cut scope, parses the rule's
// effective body (base rule prepended, if any), declares every
// capture the body's defines() names when the body captured anything
// (an empty frame stays empty), applies override/empty-frame
// fallback, and dispatches semantics. It returns the rule's start
// position unchanged on failure so the caller can restore the
// scanner itself.
func (e *evaluator) runRuleBody(ctx *Context, rule *Rule, startPos int) (Value, int, error) {
	ctx.scanner.Goto(startPos)
	ctx.pushAST(NewFrame())
	ctx.pushCST()
	ctx.pushCut()

	body := rule.effectiveBody(ctx.grammar)
	val, err := body.parse(ctx)
	if err != nil {
		ctx.popCut()
		ctx.popCST()
		ctx.popAST()
		return nil, startPos, err
	}

	frame := ctx.topAST()
	if frame.Len() > 0 {
		for _, d := range rule.defines(ctx.grammar) {
			frame.Declare(d.Name, d.ForceList)
		}
	}

	var result Value
	switch {
	case func() bool { _, ok := frame.Override(); return ok }():
		result, _ = frame.Override()
	case frame.Len() == 0:
		result = ctx.currentCST()
		if result == nil {
			result = val
		}
	default:
		result = frame
	}

	endPos := ctx.scanner.Pos()
	ctx.popCut()
	ctx.popCST()
	ctx.popAST()

	result, semErr := ctx.semantics.Dispatch(ctx, rule.Name, result)
	if semErr != nil {
		return nil, startPos, ctx.failAt(startPos, FailureSemantic, semErr.Error())
	}

	if ctx.cfg.ParseInfo {
		result = attachParseInfo(ctx, rule.Name, result, startPos, endPos)
	}

	return result, endPos, nil
}
