package grako

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionTable_DispatchesRegisteredAction(t *testing.T) {
	table := NewActionTable()
	table.SetAction("greeting", func(ctx *Context, node Value) (Value, error) {
		return "hello, " + node.(string), nil
	})

	result, err := table.Dispatch(nil, "greeting", "world")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", result)
}

func TestActionTable_FallsBackToDefault(t *testing.T) {
	table := NewActionTable()
	table.Default = func(ctx *Context, node Value) (Value, error) { return "default", nil }

	result, err := table.Dispatch(nil, "unregistered", "node")
	require.NoError(t, err)
	assert.Equal(t, "default", result)
}

func TestActionTable_FallsBackToPassthroughWithoutDefault(t *testing.T) {
	table := NewActionTable()
	result, err := table.Dispatch(nil, "unregistered", "node")
	require.NoError(t, err)
	assert.Equal(t, "node", result)
}

func TestActionTable_PropagatesActionError(t *testing.T) {
	table := NewActionTable()
	table.SetAction("bad", func(ctx *Context, node Value) (Value, error) {
		return nil, errors.New("boom")
	})

	_, err := table.Dispatch(nil, "bad", "node")
	assert.EqualError(t, err, "boom")
}

func TestActionTable_PostprocRunsAfterAction(t *testing.T) {
	table := NewActionTable()
	var seen Value
	table.SetAction("rule", func(ctx *Context, node Value) (Value, error) { return "result", nil })
	table.Postproc = func(ctx *Context, node Value) { seen = node }

	_, err := table.Dispatch(nil, "rule", "node")
	require.NoError(t, err)
	assert.Equal(t, "result", seen)
}

func TestActionTable_PostprocSkippedOnError(t *testing.T) {
	table := NewActionTable()
	ran := false
	table.SetAction("bad", func(ctx *Context, node Value) (Value, error) { return nil, errors.New("boom") })
	table.Postproc = func(ctx *Context, node Value) { ran = true }

	_, err := table.Dispatch(nil, "bad", "node")
	require.Error(t, err)
	assert.False(t, ran, "postproc must not run when the action itself failed")
}

func TestActionTable_SetActionRewritesReservedNames(t *testing.T) {
	table := NewActionTable()
	table.SetAction("pos", func(ctx *Context, node Value) (Value, error) { return "renamed", nil })

	result, err := table.Dispatch(nil, "pos", "node")
	require.NoError(t, err)
	assert.Equal(t, "renamed", result, "dispatch must apply the same reserved-name rewrite as capture names")
}

func TestPassthroughSemantics_ReturnsNodeUnchanged(t *testing.T) {
	var sem Semantics = passthroughSemantics{}
	result, err := sem.Dispatch(nil, "anything", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestAttachParseInfo_SetsParseinfoOnFrame(t *testing.T) {
	cfg := NewConfig()
	scanner := NewScanner("hello world", "buf.g", cfg)
	g := NewGrammar("g", NewRule("start", Token("hello")))
	ctx := newContext(scanner, g, cfg, passthroughSemantics{})

	frame := NewFrame()
	frame.Set("x", "hello", false)

	result := attachParseInfo(ctx, "start", frame, 0, 5)
	out, ok := result.(*Frame)
	require.True(t, ok)

	info, ok := out.Get("parseinfo")
	require.True(t, ok)
	pi, ok := info.(ParseInfo)
	require.True(t, ok)
	assert.Equal(t, "start", pi.Rule)
	assert.Equal(t, 0, pi.Pos)
	assert.Equal(t, 5, pi.EndPos)
}

func TestAttachParseInfo_LeavesNonFrameResultUnchanged(t *testing.T) {
	cfg := NewConfig()
	scanner := NewScanner("x", "buf.g", cfg)
	g := NewGrammar("g", NewRule("start", Token("x")))
	ctx := newContext(scanner, g, cfg, passthroughSemantics{})

	result := attachParseInfo(ctx, "start", "plain value", 0, 1)
	assert.Equal(t, "plain value", result)
}
