package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntegerEqual(t *testing.T) {
	require.True(t, (&Integer{Value: 2}).Equal(&Integer{Value: 2}))
	require.False(t, (&Integer{Value: 2}).Equal(&Integer{Value: 3}))
	require.False(t, (&Integer{Value: 2}).Equal(&String{Value: "2"}))
}

func TestStringEqual(t *testing.T) {
	require.True(t, (&String{Value: "hi"}).Equal(&String{Value: "hi"}))
	require.False(t, (&String{Value: "hi"}).Equal(&String{Value: "bye"}))
}

func TestTupleIteratorNext(t *testing.T) {
	tup := &Tuple{Elems: []Value{&Integer{Value: 1}, &Integer{Value: 2}}}
	it := tup.Iter()

	v1 := it.Next()
	require.True(t, v1.Equal(&Integer{Value: 1}))

	v2 := it.Next()
	require.True(t, v2.Equal(&Integer{Value: 2}))

	require.True(t, IsStop(it.Next()))
}

func TestTupleIteratorUnrollFlag(t *testing.T) {
	tup := &Tuple{Elems: []Value{&Integer{Value: 1}}, Unroll: true}
	it := tup.Iter()
	require.True(t, it.Unroll)
}

func TestTupleIteratorRemaining(t *testing.T) {
	tup := &Tuple{Elems: []Value{&Integer{Value: 1}, &Integer{Value: 2}, &Integer{Value: 3}}}
	it := tup.Iter()
	it.Next()
	remaining := it.Remaining()
	require.Len(t, remaining, 2)
	require.True(t, remaining[0].Equal(&Integer{Value: 2}))
	require.True(t, remaining[1].Equal(&Integer{Value: 3}))
}

func TestClosureLookup(t *testing.T) {
	outer := map[string]Value{"a": &Integer{Value: 1}}
	c := NewClosure(outer)

	v, err := c.Lookup("a")
	require.NoError(t, err)
	require.True(t, v.Equal(&Integer{Value: 1}))

	_, err = c.Lookup("b")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClosureExtendShadowsWithoutMutatingParent(t *testing.T) {
	outer := map[string]Value{"a": &Integer{Value: 1}}
	base := NewClosure(outer)

	inner := map[string]Value{"a": &Integer{Value: 2}}
	extended := base.Extend(inner)

	v, err := extended.Lookup("a")
	require.NoError(t, err)
	require.True(t, v.Equal(&Integer{Value: 2}))

	v, err = base.Lookup("a")
	require.NoError(t, err)
	require.True(t, v.Equal(&Integer{Value: 1}))
}

func TestModuleIsGreen(t *testing.T) {
	m := &Module{Greens: map[string]bool{"fib": true}}
	require.True(t, m.IsGreen("fib"))
	require.False(t, m.IsGreen("other"))
}

func TestFunctionCallWithoutRunnerFails(t *testing.T) {
	saved := Runner
	Runner = nil
	defer func() { Runner = saved }()

	fn := &Function{Name: "f"}
	_, err := fn.Call()
	require.Error(t, err)
}
