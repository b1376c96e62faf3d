package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/rainbow/code"
	"github.com/dr8co/rainbow/object"
)

func makeFrame(t *testing.T, co *code.CodeObject) *Frame {
	t.Helper()
	fn := &object.Function{Name: co.Name, Code: co, Closure: object.NewClosure()}
	f, err := NewFrame(fn)
	require.NoError(t, err)
	return f
}

func TestFrameSimpleAdd(t *testing.T) {
	co := &code.CodeObject{Name: "fn", Body: []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 4}}},
		{Op: code.OpAdd},
		{Op: code.OpReturn},
	}}
	res, err := makeFrame(t, co).Run()
	require.NoError(t, err)
	require.True(t, res.Equal(&object.Integer{Value: 6}))
}

func TestFrameLocals(t *testing.T) {
	co := &code.CodeObject{Name: "fn", Body: []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpStoreLocal, Args: []any{"a"}},
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpReturn},
	}}
	res, err := makeFrame(t, co).Run()
	require.NoError(t, err)
	require.True(t, res.Equal(&object.Integer{Value: 2}))
}

func TestFrameAddStr(t *testing.T) {
	co := &code.CodeObject{Name: "fn", Body: []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.String{Value: "hello "}}},
		{Op: code.OpLoadConst, Args: []any{&object.String{Value: "world"}}},
		{Op: code.OpAdd},
		{Op: code.OpReturn},
	}}
	res, err := makeFrame(t, co).Run()
	require.NoError(t, err)
	require.True(t, res.Equal(&object.String{Value: "hello world"}))
}

func TestFrameMulInt(t *testing.T) {
	co := &code.CodeObject{Name: "fn", Body: []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 4}}},
		{Op: code.OpMul},
		{Op: code.OpReturn},
	}}
	res, err := makeFrame(t, co).Run()
	require.NoError(t, err)
	require.True(t, res.Equal(&object.Integer{Value: 8}))
}

func TestFrameMulStr(t *testing.T) {
	co := &code.CodeObject{Name: "fn", Body: []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.String{Value: "x"}}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 4}}},
		{Op: code.OpMul},
		{Op: code.OpReturn},
	}}
	res, err := makeFrame(t, co).Run()
	require.NoError(t, err)
	require.True(t, res.Equal(&object.String{Value: "xxxx"}))
}

func TestFrameBrIf(t *testing.T) {
	co := &code.CodeObject{Name: "fn", Body: []code.Instruction{
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 0}}},
		{Op: code.OpGt},
		{Op: code.OpBrIf, Args: []any{"then_0", "else_0", "endif_0"}},
		{Op: code.OpLabel, Args: []any{"then_0"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 3}}},
		{Op: code.OpReturn},
		{Op: code.OpLabel, Args: []any{"else_0"}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 4}}},
		{Op: code.OpReturn},
		{Op: code.OpLabel, Args: []any{"endif_0"}},
		{Op: code.OpAbort, Args: []any{"unreachable"}},
	}}

	f := makeFrame(t, co)
	f.Locals["a"] = &object.Integer{Value: 10}
	res, err := f.Run()
	require.NoError(t, err)
	require.True(t, res.Equal(&object.Integer{Value: 3}))

	f = makeFrame(t, co)
	f.Locals["a"] = &object.Integer{Value: -10}
	res, err = f.Run()
	require.NoError(t, err)
	require.True(t, res.Equal(&object.Integer{Value: 4}))
}

func TestFrameForIter(t *testing.T) {
	co := &code.CodeObject{Name: "fn", Params: []string{"tup"}, Body: []code.Instruction{
		{Op: code.OpLoadLocal, Args: []any{"tup"}},
		{Op: code.OpGetIter, Args: []any{"@iter_0"}},
		{Op: code.OpLabel, Args: []any{"for_0"}},
		{Op: code.OpForIter, Args: []any{"@iter_0", "x", "endfor_0"}},
		{Op: code.OpLoadLocal, Args: []any{"x"}},
		{Op: code.OpStoreLocal, Args: []any{"acc"}},
		{Op: code.OpBr, Args: []any{"for_0"}},
		{Op: code.OpLabel, Args: []any{"endfor_0"}},
		{Op: code.OpLoadConst, Args: []any{object.None}},
		{Op: code.OpReturn},
	}}
	tup := &object.Tuple{Elems: []object.Value{&object.Integer{Value: 1}, &object.Integer{Value: 2}}}

	fn := &object.Function{Name: "fn", Params: co.Params, Code: co, Closure: object.NewClosure()}
	res, err := Call(fn, tup)
	require.NoError(t, err)
	require.Equal(t, object.None, res)
}

func TestFrameArityMismatch(t *testing.T) {
	co := &code.CodeObject{Name: "fn", Params: []string{"a"}, Body: []code.Instruction{
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpReturn},
	}}
	fn := &object.Function{Name: "fn", Params: co.Params, Code: co, Closure: object.NewClosure()}
	_, err := Call(fn)
	require.ErrorIs(t, err, ErrRuntimeType)
}

func TestFrameWrongStackSizeOnReturn(t *testing.T) {
	co := &code.CodeObject{Name: "fn", Body: []code.Instruction{
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 1}}},
		{Op: code.OpLoadConst, Args: []any{&object.Integer{Value: 2}}},
		{Op: code.OpReturn},
	}}
	_, err := makeFrame(t, co).Run()
	require.ErrorIs(t, err, ErrStack)
}

func TestFunctionCallRoundTripsThroughObjectRunner(t *testing.T) {
	co := &code.CodeObject{Name: "fn", Params: []string{"a", "b"}, Body: []code.Instruction{
		{Op: code.OpLoadLocal, Args: []any{"a"}},
		{Op: code.OpLoadLocal, Args: []any{"b"}},
		{Op: code.OpAdd},
		{Op: code.OpReturn},
	}}
	fn := &object.Function{Name: "fn", Params: co.Params, Code: co, Closure: object.NewClosure()}
	res, err := fn.Call(&object.Integer{Value: 10}, &object.Integer{Value: 20})
	require.NoError(t, err)
	require.True(t, res.Equal(&object.Integer{Value: 30}))
}
