package rainbow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/rainbow/code"
	"github.com/dr8co/rainbow/compiler"
	"github.com/dr8co/rainbow/lexer"
	"github.com/dr8co/rainbow/object"
	"github.com/dr8co/rainbow/parser"
	"github.com/dr8co/rainbow/vm"
)

// requireBodyEqual compares two instruction slices the way the ported
// Python tests compare OpCode lists: same length, same op, and
// same-valued arguments (object.Value args compared with Equal, not
// pointer identity).
func requireBodyEqual(t *testing.T, want, got []code.Instruction) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].Op, got[i].Op, "instruction %d", i)
		require.Len(t, got[i].Args, len(want[i].Args), "instruction %d args", i)
		for j, wantArg := range want[i].Args {
			gotArg := got[i].Args[j]
			if wv, ok := wantArg.(object.Value); ok {
				gv, ok := gotArg.(object.Value)
				require.True(t, ok, "instruction %d arg %d: not a value", i, j)
				require.True(t, wv.Equal(gv), "instruction %d arg %d: %v != %v", i, j, wv, gv)
			} else {
				require.Equal(t, wantArg, gotArg, "instruction %d arg %d", i, j)
			}
		}
	}
}

func pevalBody(t *testing.T, body []code.Instruction, params ...string) []code.Instruction {
	t.Helper()
	fn := &object.Function{Name: "fn", Params: params, Code: &code.CodeObject{Name: "fn", Params: params, Body: body}}
	out, err := Peval(fn)
	require.NoError(t, err)
	return out.Code.Body
}

func TestPevalAllRedIsUnchanged(t *testing.T) {
	body := []code.Instruction{
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpLoadLocal, Args: []any{"b"}},
		{Op: code.OpAdd},
		{Op: code.OpReturn},
	}
	requireBodyEqual(t, body, pevalBody(t, body))
}

func TestPevalFoldsGreenOp(t *testing.T) {
	body := []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 1}}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpAdd},
		{Op: code.OpReturn},
	}
	want := []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 3}}},
		{Op: code.OpReturn},
	}
	requireBodyEqual(t, want, pevalBody(t, body))
}

func TestPevalRedThenTwoGreens(t *testing.T) {
	body := []code.Instruction{
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 3}}},
		{Op: code.OpMul},
		{Op: code.OpAdd},
		{Op: code.OpReturn},
	}
	want := []code.Instruction{
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 6}}},
		{Op: code.OpAdd},
		{Op: code.OpReturn},
	}
	requireBodyEqual(t, want, pevalBody(t, body))
}

func TestPevalGreenThenRedOpPreservesOrder(t *testing.T) {
	body := []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 1}}},
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpAdd},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpMul},
		{Op: code.OpReturn},
	}
	requireBodyEqual(t, body, pevalBody(t, body))
}

func TestPevalGreenBrIfSpecializesOneArm(t *testing.T) {
	body := []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 1}}},
		{Op: code.OpBrIf, Args: []any{"then_0", "else_0", "endif_0"}},
		{Op: code.OpLabel, Args: []any{"then_0"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpReturn},
		{Op: code.OpLabel, Args: []any{"else_0"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 3}}},
		{Op: code.OpReturn},
		{Op: code.OpLabel, Args: []any{"endif_0"}},
		{Op: code.OpAbort, Args: []any{"unreachable"}},
	}
	want := []code.Instruction{
		{Op: code.OpLabel, Args: []any{"then_0"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpReturn},
		{Op: code.OpLabel, Args: []any{"endif_0"}},
		{Op: code.OpAbort, Args: []any{"unreachable"}},
	}
	requireBodyEqual(t, want, pevalBody(t, body))
}

func TestPevalRedBrIfIsUnchanged(t *testing.T) {
	body := []code.Instruction{
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpBrIf, Args: []any{"then_0", "else_0", "endif_0"}},
		{Op: code.OpLabel, Args: []any{"then_0"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpReturn},
		{Op: code.OpLabel, Args: []any{"else_0"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 3}}},
		{Op: code.OpReturn},
		{Op: code.OpLabel, Args: []any{"endif_0"}},
		{Op: code.OpAbort, Args: []any{"unreachable"}},
	}
	requireBodyEqual(t, body, pevalBody(t, body, "a"))
}

func TestPevalRedBrIfFoldsGreenOpsInBothArms(t *testing.T) {
	body := []code.Instruction{
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpBrIf, Args: []any{"then_0", "else_0", "endif_0"}},
		{Op: code.OpLabel, Args: []any{"then_0"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 3}}},
		{Op: code.OpAdd},
		{Op: code.OpReturn},
		{Op: code.OpLabel, Args: []any{"else_0"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 6}}},
		{Op: code.OpReturn},
		{Op: code.OpLabel, Args: []any{"endif_0"}},
		{Op: code.OpAbort, Args: []any{"unreachable"}},
	}
	want := []code.Instruction{
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpBrIf, Args: []any{"then_0", "else_0", "endif_0"}},
		{Op: code.OpLabel, Args: []any{"then_0"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 5}}},
		{Op: code.OpReturn},
		{Op: code.OpLabel, Args: []any{"else_0"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 6}}},
		{Op: code.OpReturn},
		{Op: code.OpLabel, Args: []any{"endif_0"}},
		{Op: code.OpAbort, Args: []any{"unreachable"}},
	}
	out := pevalBody(t, body, "a")
	requireBodyEqual(t, want, out)

	// The specialized code must still behave identically to the original
	// for both branches of the condition.
	origFn := &object.Function{Name: "f1", Params: []string{"a"}, Code: &code.CodeObject{Name: "f1", Params: []string{"a"}, Body: body}}
	newFn := &object.Function{Name: "f2", Params: []string{"a"}, Code: &code.CodeObject{Name: "f2", Params: []string{"a"}, Body: out}}

	r1, err := vm.Call(origFn, &object.Integer{Value: 0})
	require.NoError(t, err)
	require.True(t, r1.Equal(&object.Integer{Value: 6}))

	r2, err := vm.Call(origFn, &object.Integer{Value: 1})
	require.NoError(t, err)
	require.True(t, r2.Equal(&object.Integer{Value: 5}))

	r3, err := vm.Call(newFn, &object.Integer{Value: 0})
	require.NoError(t, err)
	require.True(t, r3.Equal(&object.Integer{Value: 6}))

	r4, err := vm.Call(newFn, &object.Integer{Value: 1})
	require.NoError(t, err)
	require.True(t, r4.Equal(&object.Integer{Value: 5}))
}

func TestPevalGreenLocalsFoldAway(t *testing.T) {
	body := []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 42}}},
		{Op: code.OpStoreLocalGreen, Args: []any{"A"}},
		{Op: code.OpLoadLocalGreen, Args: []any{"A"}},
		{Op: code.OpReturn},
	}
	want := []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 42}}},
		{Op: code.OpReturn},
	}
	requireBodyEqual(t, want, pevalBody(t, body))
}

func TestPevalStoreLocalGreenOnRedValueIsInvariantViolation(t *testing.T) {
	body := []code.Instruction{
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpStoreLocalGreen, Args: []any{"B"}},
	}
	fn := &object.Function{Name: "fn", Code: &code.CodeObject{Name: "fn", Body: body}}
	_, err := Peval(fn)
	require.ErrorIs(t, err, ErrInvariant)
}

func TestPevalUnrollsLoopOverGreenTuple(t *testing.T) {
	tup := &object.Tuple{Elems: []object.Value{&object.Integer{Value: 2}, &object.Integer{Value: 3}}}
	body := []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 0}}},
		{Op: code.OpStoreLocal, Args: []any{"a"}},
		{Op: code.OpLoadConst, Args: []any{tup}},
		{Op: code.OpUnroll},
		{Op: code.OpGetIter, Args: []any{"@iter_0"}},
		{Op: code.OpLabel, Args: []any{"for_0"}},
		{Op: code.OpForIter, Args: []any{"@iter_0", "X", "endfor_0"}},
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpLoadLocalGreen, Args: []any{"X"}},
		{Op: code.OpAdd},
		{Op: code.OpStoreLocal, Args: []any{"a"}},
		{Op: code.OpBr, Args: []any{"for_0"}},
		{Op: code.OpLabel, Args: []any{"endfor_0"}},
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpReturn},
	}
	want := []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 0}}},
		{Op: code.OpStoreLocal, Args: []any{"a"}},
		{Op: code.OpLabel, Args: []any{"for_0"}},

		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpAdd},
		{Op: code.OpStoreLocal, Args: []any{"a"}},

		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 3}}},
		{Op: code.OpAdd},
		{Op: code.OpStoreLocal, Args: []any{"a"}},

		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpReturn},
	}
	requireBodyEqual(t, want, pevalBody(t, body))
}

func TestPevalEndToEndUnrollMatchesInterpretedResult(t *testing.T) {
	tup := &object.Tuple{Elems: []object.Value{&object.Integer{Value: 2}, &object.Integer{Value: 3}}}
	co := &code.CodeObject{Name: "fn", Body: []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 0}}},
		{Op: code.OpStoreLocal, Args: []any{"a"}},
		{Op: code.OpLoadConst, Args: []any{tup}},
		{Op: code.OpUnroll},
		{Op: code.OpGetIter, Args: []any{"@iter_0"}},
		{Op: code.OpLabel, Args: []any{"for_0"}},
		{Op: code.OpForIter, Args: []any{"@iter_0", "X", "endfor_0"}},
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpLoadLocalGreen, Args: []any{"X"}},
		{Op: code.OpAdd},
		{Op: code.OpStoreLocal, Args: []any{"a"}},
		{Op: code.OpBr, Args: []any{"for_0"}},
		{Op: code.OpLabel, Args: []any{"endfor_0"}},
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpReturn},
	}}
	fn := &object.Function{Name: "fn", Code: co}

	interpreted, err := vm.Call(fn)
	require.NoError(t, err)
	require.True(t, interpreted.Equal(&object.Integer{Value: 5}))

	evaluated, err := Peval(fn)
	require.NoError(t, err)
	peValResult, err := vm.Call(evaluated)
	require.NoError(t, err)
	require.True(t, peValResult.Equal(&object.Integer{Value: 5}))
}

// TestPevalUnrollAroundRedBranch exercises spec.md's scenario S6: two
// unrolled loops with a red `if` between them. The unrolled labels must
// stay unique across both outer iterations, and the branch (red, since
// `flag` is a parameter) must be evaluated for every iteration it's
// nested in rather than specialized away.
func TestPevalUnrollAroundRedBranch(t *testing.T) {
	src := `
def foo(flag):
    COLS = ("a", "b")
    ROWS = ("1", "2")
    out = ""
    for R in UNROLL(ROWS):
        out = out + R
        if flag:
            for C in UNROLL(COLS):
                out = out + C
        else:
            out = out + "-"
    return out
`
	l := lexer.New(src)
	p := parser.New(l)
	mod := p.ParseModule()
	require.Empty(t, p.Errors())

	runtimeMod, err := compiler.Compile(mod)
	require.NoError(t, err)
	fn, err := runtimeMod.Lookup("foo")
	require.NoError(t, err)
	foo := fn.(*object.Function)

	for _, tc := range []struct {
		flag int64
		want string
	}{
		{1, "1ab2ab"},
		{0, "1-2-"},
	} {
		interpreted, err := foo.Call(&object.Integer{Value: tc.flag})
		require.NoError(t, err)
		require.True(t, interpreted.Equal(&object.String{Value: tc.want}))

		evaluated, err := Peval(foo)
		require.NoError(t, err)
		peValResult, err := evaluated.Call(&object.Integer{Value: tc.flag})
		require.NoError(t, err)
		require.True(t, peValResult.Equal(&object.String{Value: tc.want}))
	}
}
