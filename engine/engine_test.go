package engine_test

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"amlvm/engine"
	"amlvm/namespace"
	"amlvm/opregion"
	"amlvm/platform"
)

func newFixture(t *testing.T) (*namespace.Tree, *opregion.Memory, engine.Platform) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return namespace.New(), opregion.NewMemory(), platform.New(log)
}

func exec(t *testing.T, ns *namespace.Tree, region engine.OpRegion, plat engine.Platform, path string, body []byte, argc int, args ...engine.Object) *engine.Activation {
	t.Helper()
	node := &engine.NamedNode{Path: path, Kind: engine.NodeMethod, MethodBody: body, ArgCount: argc}
	ns.Register(node)
	a := engine.InitCallState(context.Background(), node, ns, region, plat)
	for i, arg := range args {
		a.Args[i] = arg
	}
	require.NoError(t, engine.ExecMethod(a))
	return a
}

// A method with an empty body implicitly returns Integer(0).
func TestImplicitReturn(t *testing.T) {
	ns, region, plat := newFixture(t)
	a := exec(t, ns, region, plat, `\IMPR`, []byte{}, 0)

	v, err := a.RetValue.AsInteger()
	require.NoError(t, err)
	require.Equal(t, uint64(0), v)
}

// RETURN_OP with a literal byte operand returns that literal.
func TestLiteralReturn(t *testing.T) {
	ns, region, plat := newFixture(t)
	body := []byte{
		byte(engine.ReturnOp),
		byte(engine.BytePrefix), 0x2A,
	}
	a := exec(t, ns, region, plat, `\LITR`, body, 0)

	v, err := a.RetValue.AsInteger()
	require.NoError(t, err)
	require.Equal(t, uint64(0x2A), v)
}

// Add(Arg0, Arg1, Local0) followed by Return(Local0).
func TestBinaryAdd(t *testing.T) {
	ns, region, plat := newFixture(t)
	arg1Op := byte(engine.Arg0Op) + 1
	body := []byte{
		byte(engine.AddOp),
		byte(engine.Arg0Op),
		arg1Op,
		byte(engine.Local0Op),
		byte(engine.ReturnOp),
		byte(engine.Local0Op),
	}
	a := exec(t, ns, region, plat, `\ADD2`, body, 2, engine.IntegerObject(19), engine.IntegerObject(23))

	v, err := a.RetValue.AsInteger()
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)
}

// while (1) { Increment(Local0); if (LEqual(Local0, 5)) { Break } }
// return Local0
func TestWhileWithBreak(t *testing.T) {
	ns, region, plat := newFixture(t)

	ifInner := []byte{
		byte(engine.LEqualOp), byte(engine.Local0Op), byte(engine.BytePrefix), 0x05,
		byte(engine.BreakOp),
	}
	ifPkgLen := byte(len(ifInner) + 1)

	loopBody := []byte{byte(engine.IncrementOp), byte(engine.Local0Op)}
	loopBody = append(loopBody, byte(engine.IfOp), ifPkgLen)
	loopBody = append(loopBody, ifInner...)

	predicate := []byte{byte(engine.OneOp)}
	inner := append(append([]byte{}, predicate...), loopBody...)
	whilePkgLen := byte(len(inner) + 1)

	body := []byte{byte(engine.WhileOp), whilePkgLen}
	body = append(body, inner...)
	body = append(body, byte(engine.ReturnOp), byte(engine.Local0Op))

	a := exec(t, ns, region, plat, `\WHBR`, body, 0)

	v, err := a.RetValue.AsInteger()
	require.NoError(t, err)
	require.Equal(t, uint64(5), v)
}

// If (LEqual(Arg0, One)) { Return(One) } Else { Return(Zero) }
func TestIfElse(t *testing.T) {
	thenBranch := []byte{byte(engine.ReturnOp), byte(engine.OneOp)}
	elseBranch := []byte{byte(engine.ReturnOp), byte(engine.ZeroOp)}

	predicate := []byte{byte(engine.LEqualOp), byte(engine.Arg0Op), byte(engine.OneOp)}
	ifInner := append(append([]byte{}, predicate...), thenBranch...)
	ifPkgLen := byte(len(ifInner) + 1)
	elsePkgLen := byte(len(elseBranch) + 1)

	body := []byte{byte(engine.IfOp), ifPkgLen}
	body = append(body, ifInner...)
	body = append(body, byte(engine.ElseOp), elsePkgLen)
	body = append(body, elseBranch...)

	ns1, region1, plat1 := newFixture(t)
	aTrue := exec(t, ns1, region1, plat1, `\IFE1`, body, 1, engine.IntegerObject(1))
	v, err := aTrue.RetValue.AsInteger()
	require.NoError(t, err)
	require.Equal(t, uint64(1), v)

	ns2, region2, plat2 := newFixture(t)
	aFalse := exec(t, ns2, region2, plat2, `\IFE2`, body, 1, engine.IntegerObject(0))
	v, err = aFalse.RetValue.AsInteger()
	require.NoError(t, err)
	require.Equal(t, uint64(0), v)
}

// Store(\_OSI(query), Local0); Return(Local0) exercises the \_OSI
// pseudo-method short-circuit (engine/invoke.go) end to end: a real method
// call through dispatchNameRef, resolving a String argument, and a
// write-back into Local0.
func TestOSIQuery(t *testing.T) {
	osiCallBody := func(query string) []byte {
		body := []byte{byte(engine.StoreOp)}
		body = append(body, '\\', '_', 'O', 'S', 'I')
		body = append(body, byte(engine.StringPrefix))
		body = append(body, []byte(query)...)
		body = append(body, 0x00)
		body = append(body, byte(engine.Local0Op))
		body = append(body, byte(engine.ReturnOp), byte(engine.Local0Op))
		return body
	}

	ns1, region1, plat1 := newFixture(t)
	ns1.Register(&engine.NamedNode{Path: `\_OSI`, Kind: engine.NodeMethod, ArgCount: 1})
	aWin := exec(t, ns1, region1, plat1, `\QWIN`, osiCallBody("Windows 2015"), 0)
	v, err := aWin.RetValue.AsInteger()
	require.NoError(t, err)
	require.Equal(t, uint64(0xFFFFFFFF), v)

	ns2, region2, plat2 := newFixture(t)
	ns2.Register(&engine.NamedNode{Path: `\_OSI`, Kind: engine.NodeMethod, ArgCount: 1})
	aLinux := exec(t, ns2, region2, plat2, `\QLIN`, osiCallBody("Linux"), 0)
	v, err = aLinux.RetValue.AsInteger()
	require.NoError(t, err)
	require.Equal(t, uint64(0), v)
}

// Property: copying a Buffer Object and releasing the original never
// changes the copy (spec.md §8, property 1).
func TestObjectCopyIndependence(t *testing.T) {
	src := engine.BufferObject([]byte{1, 2, 3})
	dup := engine.Copy(src)
	engine.Release(&src)
	require.True(t, dup.Equal(engine.BufferObject([]byte{1, 2, 3})))
}

// Property: the execution stack is fatal, not silently truncating, past its
// fixed depth (spec.md §8, property 4 / engine/limits.go's ExecStackDepth).
func TestExecStackOverflowIsFatal(t *testing.T) {
	s := engine.NewExecStack()
	for i := 0; i < engine.ExecStackDepth; i++ {
		_, err := s.Push()
		require.NoError(t, err)
	}
	_, err := s.Push()
	require.ErrorIs(t, err, engine.ErrExecStackOverflow)
}
