package grako

import "fmt"

// CaptureDef is a (name, forceList) pair a subtree of the grammar
// introduces into the ambient AST frame. runRuleBody (evaluator.go)
// pre-declares every key a rule's body can produce, whenever the body
// captured anything, so a branch that was never
// taken still reports a value instead of a missing key (spec §4.2).
type CaptureDef struct {
	Name      string
	ForceList bool
}

// Node is a parsing-expression tree node. Every variant listed in
// spec §3 implements it. parse is the PEG combinator action; defines
// reports the ambient captures the subtree may introduce; first
// reports the (informal) FIRST set used only to build
// "expecting one of ..." diagnostics — it never gates parsing.
type Node interface {
	parse(ctx *Context) (Value, error)
	defines() []CaptureDef
	nullable(g *Grammar, seen map[string]bool) bool
	first(g *Grammar, seen map[string]bool) []string
	String() string
}

func mergeDefines(into []CaptureDef, from []CaptureDef) []CaptureDef {
	for _, d := range from {
		into = append(into, d)
	}
	return into
}

// ---- Void / Fail / EOF / Cut ----

type voidNode struct{}

func Void() Node { return voidNode{} }

func (voidNode) parse(ctx *Context) (Value, error)                { return nil, nil }
func (voidNode) defines() []CaptureDef                            { return nil }
func (voidNode) nullable(*Grammar, map[string]bool) bool          { return true }
func (voidNode) first(*Grammar, map[string]bool) []string         { return []string{"<void>"} }
func (voidNode) String() string                                   { return "()" }

type failNode struct{}

func Fail() Node { return failNode{} }

func (failNode) parse(ctx *Context) (Value, error) {
	return nil, ctx.fail(FailureExpectedToken, "<fail>")
}
func (failNode) defines() []CaptureDef                    { return nil }
func (failNode) nullable(*Grammar, map[string]bool) bool  { return false }
func (failNode) first(*Grammar, map[string]bool) []string { return nil }
func (failNode) String() string                           { return "!()" }

type eofNode struct{}

func EOF() Node { return eofNode{} }

func (eofNode) parse(ctx *Context) (Value, error) { return nil, ctx.CheckEOF() }
func (eofNode) defines() []CaptureDef             { return nil }
func (eofNode) nullable(*Grammar, map[string]bool) bool  { return true }
func (eofNode) first(*Grammar, map[string]bool) []string { return []string{"$"} }
func (eofNode) String() string                           { return "$" }

type cutNode struct{}

func Cut() Node { return cutNode{} }

func (cutNode) parse(ctx *Context) (Value, error) {
	ctx.SetCut()
	return nil, nil
}
func (cutNode) defines() []CaptureDef                    { return nil }
func (cutNode) nullable(*Grammar, map[string]bool) bool  { return true }
func (cutNode) first(*Grammar, map[string]bool) []string { return []string{"~"} }
func (cutNode) String() string                           { return "~" }

// ---- Token / Pattern ----

type tokenNode struct{ Literal string }

func Token(literal string) Node { return tokenNode{Literal: literal} }

func (n tokenNode) parse(ctx *Context) (Value, error) { return ctx.Token(n.Literal) }
func (n tokenNode) defines() []CaptureDef             { return nil }
func (n tokenNode) nullable(*Grammar, map[string]bool) bool  { return n.Literal == "" }
func (n tokenNode) first(*Grammar, map[string]bool) []string { return []string{fmt.Sprintf("%q", n.Literal)} }
func (n tokenNode) String() string                           { return fmt.Sprintf("%q", n.Literal) }

type patternNode struct{ Pattern string }

func Pattern(re string) Node { return patternNode{Pattern: re} }

func (n patternNode) parse(ctx *Context) (Value, error) { return ctx.Pattern(n.Pattern) }
func (n patternNode) defines() []CaptureDef             { return nil }
func (n patternNode) nullable(*Grammar, map[string]bool) bool  { return false }
func (n patternNode) first(*Grammar, map[string]bool) []string { return []string{"/" + n.Pattern + "/"} }
func (n patternNode) String() string                           { return "/" + n.Pattern + "/" }

// ---- RuleRef ----

type ruleRefNode struct {
	Name   string
	Args   []Node
	KwArgs map[string]Node
}

func RuleRef(name string) Node { return ruleRefNode{Name: name} }

func RuleRefWithArgs(name string, args []Node, kwargs map[string]Node) Node {
	return ruleRefNode{Name: name, Args: args, KwArgs: kwargs}
}

func (n ruleRefNode) parse(ctx *Context) (Value, error) {
	rule, ok := ctx.grammar.rules[n.Name]
	if !ok {
		return nil, &GrammarError{Message: fmt.Sprintf("unknown rule %q", n.Name)}
	}
	return ctx.evaluator.Eval(ctx, rule)
}
func (n ruleRefNode) defines() []CaptureDef { return nil }
func (n ruleRefNode) nullable(g *Grammar, seen map[string]bool) bool {
	if seen[n.Name] {
		return true
	}
	seen = cloneSeen(seen, n.Name)
	rule, ok := g.rules[n.Name]
	if !ok {
		return false
	}
	return rule.Body.nullable(g, seen)
}
func (n ruleRefNode) first(g *Grammar, seen map[string]bool) []string {
	if seen[n.Name] {
		return nil
	}
	seen = cloneSeen(seen, n.Name)
	rule, ok := g.rules[n.Name]
	if !ok {
		return []string{n.Name + "?"}
	}
	return rule.Body.first(g, seen)
}
func (n ruleRefNode) String() string { return n.Name }

func cloneSeen(seen map[string]bool, add string) map[string]bool {
	out := make(map[string]bool, len(seen)+1)
	for k, v := range seen {
		out[k] = v
	}
	out[add] = true
	return out
}

// ---- Group ----

type groupNode struct{ Child Node }

func Group(child Node) Node { return groupNode{Child: child} }

func (n groupNode) parse(ctx *Context) (Value, error) {
	return ctx.GroupFrame(func() (Value, error) { return n.Child.parse(ctx) })
}
func (n groupNode) defines() []CaptureDef                    { return n.Child.defines() }
func (n groupNode) nullable(g *Grammar, s map[string]bool)   bool { return n.Child.nullable(g, s) }
func (n groupNode) first(g *Grammar, s map[string]bool)      []string { return n.Child.first(g, s) }
func (n groupNode) String() string                           { return "(" + n.Child.String() + ")" }

// ---- Optional ----

type optionalNode struct{ Child Node }

func Opt(child Node) Node { return optionalNode{Child: child} }

func (n optionalNode) parse(ctx *Context) (Value, error) {
	return ctx.Optional(func() (Value, error) { return n.Child.parse(ctx) })
}
func (n optionalNode) defines() []CaptureDef                  { return n.Child.defines() }
func (n optionalNode) nullable(*Grammar, map[string]bool) bool { return true }
func (n optionalNode) first(g *Grammar, s map[string]bool) []string {
	return append(n.Child.first(g, s), "<empty>")
}
func (n optionalNode) String() string { return "[" + n.Child.String() + "]" }

// ---- Closure / PositiveClosure ----

type closureNode struct{ Child Node }

func Closure(child Node) Node { return closureNode{Child: child} }

func (n closureNode) parse(ctx *Context) (Value, error) {
	items, err := ctx.ClosureLoop(func() (Value, error) { return n.Child.parse(ctx) }, nil)
	if err != nil {
		return nil, err
	}
	return items, nil
}
func (n closureNode) defines() []CaptureDef                  { return n.Child.defines() }
func (n closureNode) nullable(*Grammar, map[string]bool) bool { return true }
func (n closureNode) first(g *Grammar, s map[string]bool) []string {
	return append(n.Child.first(g, s), "<empty>")
}
func (n closureNode) String() string { return "{" + n.Child.String() + "}" }

type positiveClosureNode struct{ Child Node }

func PositiveClosure(child Node) Node { return positiveClosureNode{Child: child} }

func (n positiveClosureNode) parse(ctx *Context) (Value, error) {
	head, err := n.Child.parse(ctx)
	if err != nil {
		return nil, err
	}
	tail, err := ctx.ClosureLoop(func() (Value, error) { return n.Child.parse(ctx) }, nil)
	if err != nil {
		return nil, err
	}
	return append([]Value{head}, tail...), nil
}
func (n positiveClosureNode) defines() []CaptureDef                  { return n.Child.defines() }
func (n positiveClosureNode) nullable(g *Grammar, s map[string]bool) bool { return n.Child.nullable(g, s) }
func (n positiveClosureNode) first(g *Grammar, s map[string]bool) []string { return n.Child.first(g, s) }
func (n positiveClosureNode) String() string { return "{" + n.Child.String() + "}+" }

// ---- Join ----

type joinNode struct {
	Sep      Node
	Child    Node
	Positive bool
}

// Join builds a repetition with a separator pattern between elements
// (spec glossary: "Join"). When positive is true at least one element
// is required.
func Join(sep, child Node, positive bool) Node {
	return joinNode{Sep: sep, Child: child, Positive: positive}
}

func (n joinNode) parse(ctx *Context) (Value, error) {
	sepFn := func() (Value, error) { return n.Sep.parse(ctx) }
	bodyFn := func() (Value, error) { return n.Child.parse(ctx) }

	if !n.Positive {
		first, err := ctx.Optional(bodyFn)
		if err != nil {
			return nil, err
		}
		if first == nil {
			return []Value{}, nil
		}
		tail, err := ctx.ClosureLoop(bodyFn, sepFn)
		if err != nil {
			return nil, err
		}
		return append([]Value{first}, tail...), nil
	}

	head, err := bodyFn()
	if err != nil {
		return nil, err
	}
	tail, err := ctx.ClosureLoop(bodyFn, sepFn)
	if err != nil {
		return nil, err
	}
	return append([]Value{head}, tail...), nil
}
func (n joinNode) defines() []CaptureDef { return n.Child.defines() }
func (n joinNode) nullable(g *Grammar, s map[string]bool) bool {
	if n.Positive {
		return n.Child.nullable(g, s)
	}
	return true
}
func (n joinNode) first(g *Grammar, s map[string]bool) []string { return n.Child.first(g, s) }
func (n joinNode) String() string                               { return n.Child.String() + "." + n.Sep.String() }

// ---- Lookahead / NegativeLookahead ----

type lookaheadNode struct{ Child Node }

func Lookahead(child Node) Node { return lookaheadNode{Child: child} }

func (n lookaheadNode) parse(ctx *Context) (Value, error) {
	_, err := ctx.Lookahead(func() (Value, error) { return n.Child.parse(ctx) })
	return nil, err
}
func (n lookaheadNode) defines() []CaptureDef                  { return nil }
func (n lookaheadNode) nullable(*Grammar, map[string]bool) bool { return true }
func (n lookaheadNode) first(g *Grammar, s map[string]bool) []string { return n.Child.first(g, s) }
func (n lookaheadNode) String() string                          { return "&" + n.Child.String() }

type negativeLookaheadNode struct{ Child Node }

func NegLookahead(child Node) Node { return negativeLookaheadNode{Child: child} }

func (n negativeLookaheadNode) parse(ctx *Context) (Value, error) {
	return ctx.NegativeLookahead(func() (Value, error) { return n.Child.parse(ctx) })
}
func (n negativeLookaheadNode) defines() []CaptureDef                  { return nil }
func (n negativeLookaheadNode) nullable(*Grammar, map[string]bool) bool { return true }
func (n negativeLookaheadNode) first(*Grammar, map[string]bool) []string { return []string{"!(...)"} }
func (n negativeLookaheadNode) String() string                         { return "!" + n.Child.String() }

// ---- Sequence ----

type sequenceNode struct{ Children []Node }

func Seq(children ...Node) Node { return sequenceNode{Children: children} }

func (n sequenceNode) parse(ctx *Context) (Value, error) {
	var last Value
	for _, c := range n.Children {
		v, err := c.parse(ctx)
		if err != nil {
			return nil, err
		}
		last = v
		ctx.AppendCST(v)
	}
	return last, nil
}
func (n sequenceNode) defines() []CaptureDef {
	var out []CaptureDef
	for _, c := range n.Children {
		out = mergeDefines(out, c.defines())
	}
	return out
}
func (n sequenceNode) nullable(g *Grammar, seen map[string]bool) bool {
	for _, c := range n.Children {
		if !c.nullable(g, seen) {
			return false
		}
	}
	return true
}
func (n sequenceNode) first(g *Grammar, seen map[string]bool) []string {
	var out []string
	for _, c := range n.Children {
		out = append(out, c.first(g, seen)...)
		if !c.nullable(g, seen) {
			break
		}
	}
	return out
}

// follow computes this sequence's contribution to FOLLOW sets,
// traversing right-to-left per spec §3 ("Sequence._follow traverses
// right-to-left") so that the follow of element i is the FIRST of
// element i+1 (extended through nullable elements) unioned with the
// follow of the sequence itself once every following element is
// nullable.
func (n sequenceNode) follow(g *Grammar, after []string, addTo func(rule string, set []string)) {
	trailing := after
	for i := len(n.Children) - 1; i >= 0; i-- {
		c := n.Children[i]
		if ref, ok := c.(ruleRefNode); ok {
			addTo(ref.Name, trailing)
		}
		if seq, ok := c.(sequenceNode); ok {
			seq.follow(g, trailing, addTo)
		}
		if ch, ok := c.(choiceNode); ok {
			for _, alt := range ch.Alternatives {
				if altSeq, ok := alt.(sequenceNode); ok {
					altSeq.follow(g, trailing, addTo)
				}
			}
		}
		if c.nullable(g, nil) {
			trailing = append(append([]string{}, c.first(g, nil)...), trailing...)
		} else {
			trailing = c.first(g, nil)
		}
	}
}
func (n sequenceNode) String() string {
	s := ""
	for i, c := range n.Children {
		if i > 0 {
			s += " "
		}
		s += c.String()
	}
	return s
}

// ---- Choice ----

type choiceNode struct{ Alternatives []Node }

func Choice(alts ...Node) Node { return choiceNode{Alternatives: alts} }

func (n choiceNode) parse(ctx *Context) (Value, error) {
	fns := make([]func() (Value, error), len(n.Alternatives))
	for i, alt := range n.Alternatives {
		alt := alt
		fns[i] = func() (Value, error) { return alt.parse(ctx) }
	}
	return ctx.ChoiceFrame(fns)
}
func (n choiceNode) defines() []CaptureDef {
	var out []CaptureDef
	for _, a := range n.Alternatives {
		out = mergeDefines(out, a.defines())
	}
	return out
}
func (n choiceNode) nullable(g *Grammar, seen map[string]bool) bool {
	for _, a := range n.Alternatives {
		if a.nullable(g, seen) {
			return true
		}
	}
	return false
}
func (n choiceNode) first(g *Grammar, seen map[string]bool) []string {
	var out []string
	for _, a := range n.Alternatives {
		out = append(out, a.first(g, seen)...)
	}
	return out
}
func (n choiceNode) String() string {
	s := ""
	for i, a := range n.Alternatives {
		if i > 0 {
			s += " | "
		}
		s += a.String()
	}
	return s
}

// ---- Named / Override ----

type namedNode struct {
	Name      string
	Child     Node
	ForceList bool
}

func Named(name string, child Node, forceList bool) Node {
	return namedNode{Name: name, Child: child, ForceList: forceList}
}

func (n namedNode) parse(ctx *Context) (Value, error) {
	v, err := n.Child.parse(ctx)
	if err != nil {
		return nil, err
	}
	ctx.NameLastNode(n.Name, v, n.ForceList)
	return v, nil
}
func (n namedNode) defines() []CaptureDef {
	return append(n.Child.defines(), CaptureDef{Name: n.Name, ForceList: n.ForceList})
}
func (n namedNode) nullable(g *Grammar, s map[string]bool) bool   { return n.Child.nullable(g, s) }
func (n namedNode) first(g *Grammar, s map[string]bool) []string  { return n.Child.first(g, s) }
func (n namedNode) String() string                                { return n.Name + ":" + n.Child.String() }

type overrideNode struct {
	Child     Node
	ForceList bool
}

func Override(child Node, forceList bool) Node {
	return overrideNode{Child: child, ForceList: forceList}
}

func (n overrideNode) parse(ctx *Context) (Value, error) {
	v, err := n.Child.parse(ctx)
	if err != nil {
		return nil, err
	}
	ctx.NameLastNode(overrideKey, v, n.ForceList)
	return v, nil
}
func (n overrideNode) defines() []CaptureDef {
	return append(n.Child.defines(), CaptureDef{Name: overrideKey, ForceList: n.ForceList})
}
func (n overrideNode) nullable(g *Grammar, s map[string]bool) bool  { return n.Child.nullable(g, s) }
func (n overrideNode) first(g *Grammar, s map[string]bool) []string { return n.Child.first(g, s) }
func (n overrideNode) String() string                               { return "@:" + n.Child.String() }

// ---- Rule ----

// Rule carries a grammar production: a name, its body, optional
// positional/named parameters, and an optional base rule name. When
// Base is set, the base rule's body is parsed as an additional
// sequence element prepended to this rule's own body — the
// "based rule" / rule-extension feature (spec §4.2).
type Rule struct {
	Name     string
	Body     Node
	Params   []string
	KwParams map[string]string
	Base     string
}

func NewRule(name string, body Node) *Rule { return &Rule{Name: name, Body: body} }

func (r *Rule) WithParams(params ...string) *Rule {
	r.Params = params
	return r
}

func (r *Rule) WithBase(base string) *Rule {
	r.Base = base
	return r
}

// effectiveParams returns the rule's own parameters, or the base
// rule's if the rule declares none itself — a based rule inherits
// its base's parameter list when it doesn't name its own (ported
// from the original grako's grammars.py Rule.params property).
func (r *Rule) effectiveParams(g *Grammar) []string {
	if len(r.Params) > 0 || r.Base == "" {
		return r.Params
	}
	if base, ok := g.rules[r.Base]; ok {
		return base.effectiveParams(g)
	}
	return nil
}

func (r *Rule) effectiveBody(g *Grammar) Node {
	if r.Base == "" {
		return r.Body
	}
	base, ok := g.rules[r.Base]
	if !ok {
		return r.Body
	}
	return sequenceNode{Children: []Node{base.effectiveBody(g), r.Body}}
}

func (r *Rule) defines(g *Grammar) []CaptureDef { return r.effectiveBody(g).defines() }

// ---- Grammar ----

// Grammar is the root of the parsing-expression tree: it owns every
// rule by name; RuleRef is the only cross-link and is resolved by
// name lookup against this map.
type Grammar struct {
	Name       string
	rules      map[string]*Rule
	order      []string
	Directives map[string]string
	start      string

	firstSets  map[string][]string
	followSets map[string][]string
}

func NewGrammar(name string, rules ...*Rule) *Grammar {
	g := &Grammar{
		Name:       name,
		rules:      make(map[string]*Rule, len(rules)),
		Directives: map[string]string{},
	}
	for i, r := range rules {
		g.rules[r.Name] = r
		g.order = append(g.order, r.Name)
		if i == 0 {
			g.start = r.Name
		}
	}
	return g
}

func (g *Grammar) Rule(name string) (*Rule, bool) {
	r, ok := g.rules[name]
	return r, ok
}

func (g *Grammar) RuleNames() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

func (g *Grammar) StartRule() string { return g.start }

func (g *Grammar) SetStartRule(name string) { g.start = name }

// Validate performs the grammar-error checks the spec places at
// construction time rather than parse time: every RuleRef must
// resolve, and no rule's body may be a closure whose inner body can
// match the empty string (which would loop forever).
func (g *Grammar) Validate() error {
	for _, name := range g.order {
		rule := g.rules[name]
		if err := g.validateNode(rule.effectiveBody(g)); err != nil {
			return err
		}
	}
	return nil
}

func (g *Grammar) validateNode(n Node) error {
	switch t := n.(type) {
	case ruleRefNode:
		if _, ok := g.rules[t.Name]; !ok {
			return &GrammarError{Message: fmt.Sprintf("unknown rule %q", t.Name)}
		}
	case sequenceNode:
		for _, c := range t.Children {
			if err := g.validateNode(c); err != nil {
				return err
			}
		}
	case choiceNode:
		for _, a := range t.Alternatives {
			if err := g.validateNode(a); err != nil {
				return err
			}
		}
	case groupNode:
		return g.validateNode(t.Child)
	case optionalNode:
		return g.validateNode(t.Child)
	case namedNode:
		return g.validateNode(t.Child)
	case overrideNode:
		return g.validateNode(t.Child)
	case lookaheadNode:
		return g.validateNode(t.Child)
	case negativeLookaheadNode:
		return g.validateNode(t.Child)
	case closureNode:
		if t.Child.nullable(g, nil) {
			return &GrammarError{Message: fmt.Sprintf("closure body %q can match the empty string", t.Child.String())}
		}
		return g.validateNode(t.Child)
	case positiveClosureNode:
		if t.Child.nullable(g, nil) {
			return &GrammarError{Message: fmt.Sprintf("closure body %q can match the empty string", t.Child.String())}
		}
		return g.validateNode(t.Child)
	case joinNode:
		if t.Child.nullable(g, nil) {
			return &GrammarError{Message: fmt.Sprintf("join body %q can match the empty string", t.Child.String())}
		}
	}
	return nil
}

// ComputeFirstFollow computes the FIRST/FOLLOW sets described in
// spec §4.6. FIRST sets are computed in a single pass, each by a
// recursive walk of the rule body that stops at a rule already being
// visited; they are not iterated to a fixed point. FOLLOW sets are
// iterated over all rules until they stop changing; termination is
// guaranteed for any finite grammar
// because each iteration can only grow finite sets drawn from a
// finite vocabulary (rule bodies, once flattened, mention finitely
// many literals/patterns/rule names).
func (g *Grammar) ComputeFirstFollow() {
	g.firstSets = map[string][]string{}
	for _, name := range g.order {
		rule := g.rules[name]
		g.firstSets[name] = dedupe(rule.effectiveBody(g).first(g, map[string]bool{name: true}))
	}

	g.followSets = map[string][]string{}
	changed := true
	for changed {
		changed = false
		for _, name := range g.order {
			rule := g.rules[name]
			body := rule.effectiveBody(g)
			addTo := func(target string, set []string) {
				before := len(g.followSets[target])
				g.followSets[target] = dedupe(append(g.followSets[target], set...))
				if len(g.followSets[target]) != before {
					changed = true
				}
			}
			if seq, ok := body.(sequenceNode); ok {
				seq.follow(g, g.followSets[name], addTo)
			}
		}
	}
}

func (g *Grammar) First(ruleName string) []string  { return g.firstSets[ruleName] }
func (g *Grammar) Follow(ruleName string) []string { return g.followSets[ruleName] }

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
