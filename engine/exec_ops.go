package engine

// openOpFrame opens an Op frame (spec.md §3's "born when a binary/unary
// opener is decoded") covering the opcode at the current ip. op is assumed
// single-byte; extended-opcode openers are not currently part of the
// unary/binary op set.
func (a *Activation) openOpFrame(op Opcode, numOperands int, want bool, hasTarget bool) error {
	a.ip++
	frame, err := a.Exec.Push()
	if err != nil {
		return err
	}
	frame.Kind = FrameOp
	frame.Opcode = op
	frame.OpstackBase = a.Ops.Depth()
	frame.NumOperands = numOperands
	frame.WantResult = want
	frame.HasTarget = hasTarget
	return nil
}

// reduceOpFrame implements spec.md §4.6's Op-frame reduction branch: once
// exactly NumOperands operands sit above OpstackBase, run the reducer,
// discard the operands, optionally keep the result for the frame's own
// caller, perform write-back of any attached AML Target, and pop the frame.
func (a *Activation) reduceOpFrame(top *Frame) error {
	operands := make([]Object, top.NumOperands)
	for i := 0; i < top.NumOperands; i++ {
		slot, err := a.Ops.Get(top.OpstackBase + i)
		if err != nil {
			return err
		}
		operands[i] = *slot
	}

	result, err := Reduce(top.Opcode, operands)
	if err != nil {
		return err
	}

	if err := a.Ops.Pop(top.NumOperands); err != nil {
		return err
	}

	if top.WantResult {
		if err := a.Ops.Push(Copy(result)); err != nil {
			return err
		}
	}

	if top.HasTarget {
		consumed, err := a.writeBack(result)
		if err != nil {
			return err
		}
		a.ip += consumed
	}

	a.Exec.Pop(1)
	return nil
}

// writeBack implements spec.md §4.6.1: consume the Target encoding that
// follows a reduced expression and perform the store. Supported Target
// kinds are NullName (discard), Local/Arg reference, and NameString
// (Name or Field write). IndexOp-composed targets are not supported by
// this tier's Target parser and are logged + discarded, per the open
// question in spec.md §9 about write-back's exact Target grammar.
func (a *Activation) writeBack(result Object) (int, error) {
	b := a.rest()
	if len(b) == 0 {
		return 0, fatalAt(ErrIPEscapedMethod, a.ip)
	}

	lead := b[0]

	if lead == 0x00 { // NullName: discard
		return 1, nil
	}

	if idx, ok := IsLocalOp(Opcode(lead)); ok {
		a.Local[idx] = Copy(result)
		return 1, nil
	}
	if idx, ok := IsArgOp(Opcode(lead)); ok {
		a.Args[idx] = Copy(result)
		return 1, nil
	}

	if IsNamePrefixByte(lead) {
		path, consumed, err := a.ns.Resolve(a.Handle.Path, b)
		if err != nil {
			return 0, fatalPath(ErrUndefinedName, err.Error())
		}
		node, ok := a.ns.Lookup(path)
		if !ok {
			return 0, fatalPath(ErrUndefinedName, path)
		}
		switch node.Kind {
		case NodeField, NodeIndexField:
			if err := a.region.Write(a.ctx, node, result); err != nil {
				return 0, fatal(ErrOpRegionIO)
			}
		default:
			if err := a.ns.Store(path, Copy(result)); err != nil {
				return 0, fatalPath(ErrUndefinedName, path)
			}
		}
		return consumed, nil
	}

	a.plat.Logger().WithField("pc", a.ip).Debug("unsupported Target encoding, discarding write-back")
	return 1, nil
}

// openIf implements the IF_OP row of spec.md §4.6.2: read pkgsize, evaluate
// the predicate, push a Cond frame. Predicate evaluation happens through
// evalOneTermArg so no host recursion is needed for the conditional body
// itself; only the predicate expression runs through the bounded-evaluation
// helper.
func (a *Activation) openIf() error {
	a.ip++
	length, consumed, err := ParsePkgLength(a.rest())
	if err != nil {
		return err
	}
	end := a.ip + length
	a.ip += consumed

	pred, err := a.evalOneTermArg()
	if err != nil {
		return err
	}
	v, err := pred.AsInteger()
	if err != nil {
		return err
	}

	frame, err := a.Exec.Push()
	if err != nil {
		return err
	}
	frame.Kind = FrameCond
	frame.Taken = v != 0
	frame.EndOffset = end

	if !frame.Taken {
		a.ip = end
	}
	return nil
}

// openWhile implements the WHILE_OP row: read pkgsize, push a Loop frame
// with pred_offset = current ip (the predicate sits immediately after the
// pkgsize) and end_offset = ip + length.
func (a *Activation) openWhile() error {
	a.ip++ // past the WHILE_OP byte; a.ip now points at the PkgLength field
	pkgLenStart := a.ip
	length, consumed, err := ParsePkgLength(a.rest())
	if err != nil {
		return err
	}
	end := pkgLenStart + length
	predOffset := pkgLenStart + consumed

	frame, err := a.Exec.Push()
	if err != nil {
		return err
	}
	frame.Kind = FrameLoop
	frame.PredOffset = predOffset
	frame.EndOffset = end

	a.ip = predOffset
	return nil
}

// evalOneTermArg evaluates exactly one bounded AML expression at the
// current ip using the SAME iterative step() loop the rest of the engine
// uses, by pushing a synthetic evalRootOp frame and running until it
// resolves. This is how If/While predicates, Return's result expression,
// and method-call argument expressions are evaluated without giving the
// engine a second, recursive expression evaluator.
func (a *Activation) evalOneTermArg() (Object, error) {
	base := a.Ops.Depth()
	frame, err := a.Exec.Push()
	if err != nil {
		return Object{}, err
	}
	frame.Kind = FrameOp
	frame.Opcode = evalRootOp
	frame.OpstackBase = base
	frame.NumOperands = 1
	frame.WantResult = true
	frame.HasTarget = false

	watchDepth := a.Exec.Depth() - 1

	for a.Exec.Depth() > watchDepth {
		if err := a.stepOnce(); err != nil {
			return Object{}, err
		}
	}

	slot, err := a.Ops.Get(base)
	if err != nil {
		return Object{}, err
	}
	result := Copy(*slot)
	if err := a.Ops.Pop(1); err != nil {
		return Object{}, err
	}
	return result, nil
}

// stepOnce runs a single iteration of the same dispatch logic run uses,
// factored out so evalOneTermArg can drive the loop to a specific exec
// stack depth instead of to empty.
func (a *Activation) stepOnce() error {
	top := a.Exec.PeekBack()
	if top == nil {
		return fatal(ErrNoEnclosingMethod)
	}

	switch top.Kind {
	case FrameOp:
		if a.Ops.Depth() == top.OpstackBase+top.NumOperands {
			return a.reduceOpFrame(top)
		}
	case FrameLoop:
		if a.ip == top.PredOffset {
			pred, err := a.evalOneTermArg()
			if err != nil {
				return err
			}
			v, err := pred.AsInteger()
			if err != nil {
				return err
			}
			if v == 0 {
				a.ip = top.EndOffset
				a.Exec.Pop(1)
			}
			return nil
		} else if a.ip == top.EndOffset {
			a.ip = top.PredOffset
			return nil
		}
	case FrameCond:
		if !top.Taken {
			if a.ip < len(a.body) && Opcode(a.body[a.ip]) == ElseOp {
				a.ip += 1 + elseHeaderLen(a.body[a.ip+1:])
			}
			a.Exec.Pop(1)
			return nil
		}
		if a.ip == top.EndOffset {
			if a.ip < len(a.body) && Opcode(a.body[a.ip]) == ElseOp {
				a.ip += 1 + skipElseBlock(a.body[a.ip+1:])
			}
			a.Exec.Pop(1)
			return nil
		}
	}

	return a.step()
}

func skipElseBlock(b []byte) int {
	length, _, err := ParsePkgLength(b)
	if err != nil {
		return 0
	}
	return length
}

// elseHeaderLen returns the size of the PkgLength that follows an ELSE_OP,
// so a not-taken If steps into the Else body instead of over it.
func elseHeaderLen(b []byte) int {
	_, consumed, err := ParsePkgLength(b)
	if err != nil {
		return 0
	}
	return consumed
}

// popAndCaptureReturn handles the implicit-return path: top of exec stack
// is the MethodContext itself, top of opstack is the just-pushed Integer(0).
func (a *Activation) popAndCaptureReturn() error {
	return a.popAndCaptureReturnAt(0)
}

// popAndCaptureReturnAt moves the single value on the operand stack into
// RetValue and pops depth+1 frames (everything down to and including the
// MethodContext found at distance depth from the top), per spec.md
// §4.6.2's RETURN_OP row and §4.6's implicit-return branch.
func (a *Activation) popAndCaptureReturnAt(depth int) error {
	if a.Ops.Depth() != 1 {
		return fatal(ErrOpStackNotEmpty)
	}
	slot, err := a.Ops.Get(0)
	if err != nil {
		return err
	}
	Move(&a.RetValue, slot)
	if err := a.Ops.Pop(1); err != nil {
		return err
	}
	a.Exec.Pop(depth + 1)
	return nil
}

// arithUnaryInPlace implements INCREMENT_OP/DECREMENT_OP (spec.md
// §4.6.2's "delegate to helpers (in-place or three-address)"): read the
// target Name/Local/Arg, add/subtract one, write back to the same slot,
// and push the new value if wanted.
func (a *Activation) arithUnaryInPlace(op Opcode, want bool) error {
	a.ip++
	b := a.rest()
	if len(b) == 0 {
		return fatalAt(ErrIPEscapedMethod, a.ip)
	}

	cur, setter, consumed, err := a.resolveReadWriteTarget(b)
	if err != nil {
		return err
	}
	a.ip += consumed

	v, err := cur.AsInteger()
	if err != nil {
		return err
	}
	if op == IncrementOp {
		v++
	} else {
		v--
	}
	result := IntegerObject(v)
	if err := setter(result); err != nil {
		return err
	}
	return a.pushIfWanted(result, want)
}

// arithDivide implements DIVIDE_OP: Divide(Dividend, Divisor, Remainder,
// Quotient). Simplified to the common two-Target form used by firmware:
// reads dividend and divisor as nested TermArgs, writes the remainder and
// quotient to their Targets, and leaves the quotient as the expression's
// value.
func (a *Activation) arithDivide(want bool) error {
	a.ip++
	dividendObj, err := a.evalOneTermArg()
	if err != nil {
		return err
	}
	divisorObj, err := a.evalOneTermArg()
	if err != nil {
		return err
	}
	dividend, err := dividendObj.AsInteger()
	if err != nil {
		return err
	}
	divisor, err := divisorObj.AsInteger()
	if err != nil {
		return err
	}
	if divisor == 0 {
		return fatal(ErrDivideByZero)
	}

	remainder := IntegerObject(dividend % divisor)
	quotient := IntegerObject(dividend / divisor)

	if consumed, err := a.writeBackValue(remainder); err != nil {
		return err
	} else {
		a.ip += consumed
	}
	if consumed, err := a.writeBackValue(quotient); err != nil {
		return err
	} else {
		a.ip += consumed
	}

	return a.pushIfWanted(quotient, want)
}

// writeBackValue is writeBack without an attached reducer frame, used by
// helpers (Increment/Decrement/Divide) that perform their own write-back
// outside the generic Op-frame reduction path.
func (a *Activation) writeBackValue(result Object) (int, error) {
	return a.writeBack(result)
}

// resolveReadWriteTarget reads the current value of a Local/Arg/Name
// target and returns a setter closure for writing a new value back to the
// same slot, used by Increment/Decrement.
func (a *Activation) resolveReadWriteTarget(b []byte) (Object, func(Object) error, int, error) {
	lead := b[0]

	if idx, ok := IsLocalOp(Opcode(lead)); ok {
		cur := Copy(a.Local[idx])
		return cur, func(v Object) error {
			a.Local[idx] = v
			return nil
		}, 1, nil
	}
	if idx, ok := IsArgOp(Opcode(lead)); ok {
		cur := Copy(a.Args[idx])
		return cur, func(v Object) error {
			a.Args[idx] = v
			return nil
		}, 1, nil
	}
	if IsNamePrefixByte(lead) {
		path, consumed, err := a.ns.Resolve(a.Handle.Path, b)
		if err != nil {
			return Object{}, nil, 0, fatalPath(ErrUndefinedName, err.Error())
		}
		node, ok := a.ns.Lookup(path)
		if !ok {
			return Object{}, nil, 0, fatalPath(ErrUndefinedName, path)
		}
		cur := Copy(node.Value)
		return cur, func(v Object) error {
			return a.ns.Store(path, v)
		}, consumed, nil
	}
	return Object{}, nil, 0, fatalAt(ErrIPEscapedMethod, 0)
}

// delegateDeclaration hands declarative opcodes (Name/Field/Device/...)
// off to the namespace subsystem, per spec.md §4.6.2's "Declaration" rows.
// This engine does not parse or populate namespace declarations itself
// (spec.md §1 scopes that to the "AML parser for declarative constructs");
// it only needs to skip the already-parsed body and push a result when one
// applies (NAME_OP's operand is itself an initializer expression most
// namespaces resolve ahead of execution, so there is nothing further for
// the execution loop to produce here).
func (a *Activation) delegateDeclaration(op Opcode, want bool) error {
	headerLen := 1
	if op > 0xFF {
		headerLen = 2
	}
	consumed, err := a.ns.ParseDeclaration(a.Handle.Path, op, a.body[a.ip+headerLen:])
	if err != nil {
		return fatal(err)
	}
	a.ip += headerLen + consumed
	if want {
		return a.pushIfWanted(IntegerObject(0), want)
	}
	return nil
}
