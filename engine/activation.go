package engine

import "context"

// Activation is the per-invocation container from spec.md §3: the
// resolved target node, 7 argument slots, 8 local slots, a return value
// slot, an execution stack, and an operand stack. Mirrors the shape of the
// teacher's VM struct in vm/vm.go (registers + stacks + program), scoped
// down to one method call instead of one whole virtual machine.
type Activation struct {
	Handle *NamedNode

	Args  [MaxArgs]Object
	Local [MaxLocals]Object

	RetValue Object

	Exec *ExecStack
	Ops  *OperandStack

	body []byte
	ip   int

	ns     Namespace
	region OpRegion
	plat   Platform
	ctx    context.Context
}

// InitCallState zero-initializes state, sets handle, and sets the
// execution stack to empty (stack_ptr = -1), matching spec.md §6's
// init_call_state public surface and the teacher's NewVirtualMachine
// constructor discipline in vm/vm.go.
func InitCallState(ctx context.Context, method *NamedNode, ns Namespace, region OpRegion, plat Platform) *Activation {
	return &Activation{
		Handle: method,
		Exec:   NewExecStack(),
		Ops:    NewOperandStack(),
		body:   method.MethodBody,
		ns:     ns,
		region: region,
		plat:   plat,
		ctx:    ctx,
	}
}

// FinalizeState releases the return value, all 7 args and all 8 locals,
// per spec.md §6's finalize_state public surface.
func FinalizeState(a *Activation) {
	Release(&a.RetValue)
	for i := range a.Args {
		Release(&a.Args[i])
	}
	for i := range a.Local {
		Release(&a.Local[i])
	}
}

func (a *Activation) atEnd() bool { return a.ip >= len(a.body) }

func (a *Activation) rest() []byte {
	if a.ip >= len(a.body) {
		return nil
	}
	return a.body[a.ip:]
}
