package grako

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrammar_ValidateRejectsUnknownRule(t *testing.T) {
	g := NewGrammar("g", NewRule("start", RuleRef("nope")))
	err := g.Validate()
	require.Error(t, err)
	var ge *GrammarError
	assert.ErrorAs(t, err, &ge)
}

func TestGrammar_ValidateRejectsNullableClosureBody(t *testing.T) {
	g := NewGrammar("g", NewRule("start", Closure(Opt(Token("x")))))
	err := g.Validate()
	require.Error(t, err, "a closure whose body can match empty would loop forever")
}

func TestGrammar_ValidateAcceptsOrdinaryClosure(t *testing.T) {
	g := NewGrammar("g", NewRule("start", Closure(Token("x"))))
	assert.NoError(t, g.Validate())
}

func TestGrammar_ValidateRecursesThroughNestedNodes(t *testing.T) {
	g := NewGrammar("g", NewRule("start", Seq(Group(Choice(RuleRef("missing"), Token("x"))))))
	err := g.Validate()
	require.Error(t, err)
}

func TestRule_BasedRuleInheritsBodyAndParams(t *testing.T) {
	base := NewRule("base", Token("a")).WithParams("x")
	derived := NewRule("derived", Token("b")).WithBase("base")
	g := NewGrammar("g", base, derived)

	assert.Equal(t, []string{"x"}, derived.effectiveParams(g))
	assert.Equal(t, `"a" "b"`, derived.effectiveBody(g).String())
}

func TestRule_OwnParamsOverrideBase(t *testing.T) {
	base := NewRule("base", Token("a")).WithParams("x")
	derived := NewRule("derived", Token("b")).WithBase("base").WithParams("y", "z")
	g := NewGrammar("g", base, derived)

	assert.Equal(t, []string{"y", "z"}, derived.effectiveParams(g))
}

func TestComputeFirstFollow_ChoiceUnionsAlternativesFirst(t *testing.T) {
	g := NewGrammar("g", NewRule("start", Choice(Token("a"), Token("b"))))
	g.ComputeFirstFollow()
	assert.ElementsMatch(t, []string{`"a"`, `"b"`}, g.First("start"))
}

func TestComputeFirstFollow_SequenceFollowPropagatesRightToLeft(t *testing.T) {
	// start = a b  |  a = "x"  |  b = "y"
	g := NewGrammar("g",
		NewRule("start", Seq(RuleRef("a"), RuleRef("b"))),
		NewRule("a", Token("x")),
		NewRule("b", Token("y")),
	)
	g.ComputeFirstFollow()
	assert.Contains(t, g.Follow("a"), `"y"`, "a's follow set must include b's first set")
}

func TestComputeFirstFollow_NullableElementExtendsFollowThroughIt(t *testing.T) {
	// start = a b c  |  b is nullable, so a's follow set must reach past
	// it into c's first set too, not stop at b's.
	g := NewGrammar("g",
		NewRule("start", Seq(RuleRef("a"), RuleRef("b"), RuleRef("c"))),
		NewRule("a", Token("x")),
		NewRule("b", Opt(Token("p"))),
		NewRule("c", Token("z")),
	)
	g.ComputeFirstFollow()
	assert.Contains(t, g.Follow("a"), `"p"`, "a's follow must include nullable b's own first set")
	assert.Contains(t, g.Follow("a"), `"z"`, "a's follow must reach through nullable b into c's first set")
}

func TestNode_SequenceNullableRequiresEveryChildNullable(t *testing.T) {
	n := Seq(Opt(Token("a")), Token("b"))
	assert.False(t, n.nullable(NewGrammar("g"), nil), "a sequence is nullable only when every element is")

	allOpt := Seq(Opt(Token("a")), Opt(Token("b")))
	assert.True(t, allOpt.nullable(NewGrammar("g"), nil))
}

func TestNode_ChoiceNullableIfAnyAlternativeNullable(t *testing.T) {
	n := Choice(Token("a"), Opt(Token("b")))
	assert.True(t, n.nullable(NewGrammar("g"), nil))
}

func TestNode_StringRendersGrammarNotation(t *testing.T) {
	n := Seq(Named("x", Token("a"), false), Opt(Token("b")), Closure(Token("c")))
	assert.Equal(t, `x:"a" ["b"] {"c"}`, n.String())
}

func TestRuleRef_ParseFailsOnUnknownRule(t *testing.T) {
	cfg := NewConfig()
	scanner := NewScanner("x", "t", cfg)
	g := NewGrammar("g", NewRule("start", Token("x")))
	ctx := newContext(scanner, g, cfg, passthroughSemantics{})

	_, err := RuleRef("ghost").parse(ctx)
	require.Error(t, err)
	var ge *GrammarError
	assert.ErrorAs(t, err, &ge)
}
