package code

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownOp(t *testing.T) {
	_, err := New(Op("nonsense"))
	require.ErrorIs(t, err, ErrUnknownOp)
}

func TestStackEffectFixed(t *testing.T) {
	pops, pushes, err := StackEffect(Instruction{Op: OpAdd})
	require.NoError(t, err)
	require.Equal(t, 2, pops)
	require.Equal(t, 1, pushes)
}

func TestStackEffectVariadicMakeTuple(t *testing.T) {
	pops, pushes, err := StackEffect(Instruction{Op: OpMakeTuple, Args: []any{3}})
	require.NoError(t, err)
	require.Equal(t, 3, pops)
	require.Equal(t, 1, pushes)
}

func TestStackEffectVariadicCallIncludesCallee(t *testing.T) {
	pops, pushes, err := StackEffect(Instruction{Op: OpCall, Args: []any{2}})
	require.NoError(t, err)
	require.Equal(t, 3, pops)
	require.Equal(t, 1, pushes)
}

func TestIsPure(t *testing.T) {
	require.True(t, IsPure(OpAdd))
	require.True(t, IsPure(OpLoadConst))
	require.False(t, IsPure(OpPrint))
	require.False(t, IsPure(OpCall))
	require.False(t, IsPure(OpForIter))
}

func TestRelabelRewritesLabelArgsOnly(t *testing.T) {
	ins := Instruction{Op: OpBrIf, Args: []any{"then_0", "else_0", "endif_0"}}
	renamed := Relabel(ins, map[string]string{"then_0": "then_0#1", "else_0": "else_0#1"})

	then, _ := renamed.Label(0)
	els, _ := renamed.Label(1)
	endif, _ := renamed.Label(2)
	require.Equal(t, "then_0#1", then)
	require.Equal(t, "else_0#1", els)
	require.Equal(t, "endif_0", endif) // not in the map, left untouched
}

func TestRelabelForIterLeavesLocalNamesAlone(t *testing.T) {
	ins := Instruction{Op: OpForIter, Args: []any{"@iter_0", "x", "endfor_0"}}
	renamed := Relabel(ins, map[string]string{"@iter_0": "SHOULD_NOT_APPLY", "x": "SHOULD_NOT_APPLY", "endfor_0": "endfor_0#2"})

	itername, _ := renamed.Name()
	target, _ := renamed.Label(1)
	endfor, _ := renamed.Label(2)
	require.Equal(t, "@iter_0", itername, "for_iter's iterator-local name is not a label")
	require.Equal(t, "x", target, "for_iter's target-local name is not a label")
	require.Equal(t, "endfor_0#2", endfor)
}

func TestRelabelOpWithNoLabelArgsIsUnchanged(t *testing.T) {
	ins := Instruction{Op: OpAdd}
	require.Equal(t, ins, Relabel(ins, map[string]string{"foo": "bar"}))
}

func TestInstructionString(t *testing.T) {
	require.Equal(t, "add", Instruction{Op: OpAdd}.String())
	require.Equal(t, "br_if then else endif", Instruction{Op: OpBrIf, Args: []any{"then", "else", "endif"}}.String())
}
