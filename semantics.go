package grako

// Semantics is the post-parse transformation bridge (C5, spec §4.5):
// for every rule, after its structural parse succeeds, the engine
// asks the semantics collaborator whether it wants to substitute the
// produced node with something else. A semantics method may return
// any value, including nil (an intentional discard), or signal a
// *SemanticError to fail the rule as though it hadn't matched at all
// — the evaluator converts that into a parse failure anchored at the
// rule's start position (spec §4.4 step 3, §4.5).
//
// This is a narrower, typed rendering of the original's name-indexed
// `getattr`-style semantics object: rather than reflecting over
// method names on an arbitrary struct, the engine asks the
// collaborator to dispatch by name itself, exactly as the design
// notes (spec §9) suggest porting it ("a trait with a fallible
// default").
type Semantics interface {
	Dispatch(ctx *Context, ruleName string, node Value) (Value, error)
}

// passthroughSemantics is the identity bridge used when the caller
// supplies no semantics collaborator: every rule's structural result
// passes through unchanged.
type passthroughSemantics struct{}

func (passthroughSemantics) Dispatch(_ *Context, _ string, node Value) (Value, error) {
	return node, nil
}

// RuleAction is a single rule's semantic method: `(node, ...) -> node'`.
type RuleAction func(ctx *Context, node Value) (Value, error)

// ActionTable is a ready-made Semantics implementation mirroring the
// teacher's SetAction/RunAction pair (base_parser.go): a name-indexed
// map of rule actions, an optional catch-all default (`_default`),
// and an optional post-processing hook (`_postproc`) called with the
// context and the (possibly substituted) node after every dispatch,
// for bookkeeping that doesn't change the result.
type ActionTable struct {
	actions  map[string]RuleAction
	Default  RuleAction
	Postproc func(ctx *Context, node Value)
}

func NewActionTable() *ActionTable {
	return &ActionTable{actions: map[string]RuleAction{}}
}

// SetAction registers fn as the semantic method for the rule named
// name. Naming collisions with reserved words are rewritten the same
// way AST capture names are (spec §4.5).
func (t *ActionTable) SetAction(name string, fn RuleAction) {
	t.actions[rewriteReserved(name)] = fn
}

func (t *ActionTable) Dispatch(ctx *Context, ruleName string, node Value) (Value, error) {
	fn, ok := t.actions[rewriteReserved(ruleName)]
	if !ok {
		fn = t.Default
	}

	result := node
	if fn != nil {
		var err error
		result, err = fn(ctx, node)
		if err != nil {
			return nil, err
		}
	}
	if t.Postproc != nil {
		t.Postproc(ctx, result)
	}
	return result, nil
}

// ParseInfo is the `parseinfo` attribute spec §6 describes: attached
// to every AST mapping when Config.ParseInfo is set. The original
// Python implementation (original_source/grako/contexts.py) also
// threads through the include filename; that's preserved here as an
// additive seventh field rather than folded into Buffer, since the
// spec names exactly six fields and nothing should look like it's
// missing one.
type ParseInfo struct {
	Buffer   string
	Rule     string
	Pos      int
	EndPos   int
	Line     int
	EndLine  int
	Filename string
}

func attachParseInfo(ctx *Context, ruleName string, result Value, startPos, endPos int) Value {
	startLoc := ctx.scanner.lineIndex.LocationAt(startPos)
	endLoc := ctx.scanner.lineIndex.LocationAt(endPos)
	info := ParseInfo{
		Buffer:   ctx.scanner.filename,
		Rule:     ruleName,
		Pos:      startPos,
		EndPos:   endPos,
		Line:     startLoc.Line,
		EndLine:  endLoc.Line,
		Filename: startLoc.File,
	}
	if frame, ok := result.(*Frame); ok {
		if _, had := frame.values["parseinfo"]; !had {
			frame.order = append(frame.order, "parseinfo")
		}
		frame.values["parseinfo"] = info
		return frame
	}
	return result
}
