package engine

import "strings"

// osiAllowList mirrors the fixed set of Windows version strings ACPI's
// _OSI convention recognizes (spec.md §4.7). Firmware queries this list to
// decide which optional behaviors to enable; a request for anything not on
// the list, including "Linux", is refused.
var osiAllowList = map[string]bool{
	"Windows 2000":           true,
	"Windows 2001":           true,
	"Windows 2001 SP1":       true,
	"Windows 2001.1":         true,
	"Windows 2001 SP2":       true,
	"Windows 2001.1 SP1":     true,
	"Windows 2006":           true,
	"Windows 2006.1":         true,
	"Windows 2006 SP1":       true,
	"Windows 2006 SP2":       true,
	"Windows 2009":           true,
	"Windows 2012":           true,
	"Windows 2013":           true,
	"Windows 2015":           true,
	"Windows 2016":           true,
	"Windows 2017":           true,
	"Windows 2017.2":         true,
	"Windows 2018":           true,
	"Windows 2018.2":         true,
	"Windows 2019":           true,
	"Windows 2020":           true,
	"Windows 2021":           true,
}

// MethodInvoke resolves the caller's pending method-call arguments,
// builds a fresh activation, runs it to completion, and delivers its
// return value to the caller's operand stack — spec.md §4.7's Method
// Invocation protocol, steps 3-6 (step 1-2, NameString resolution and
// NamedNode lookup, already happened in the caller's dispatchNameRef).
// Returns the number of argument bytes consumed.
func MethodInvoke(caller *Activation, node *NamedNode) (int, error) {
	startIP := caller.ip
	if result, handled, err := invokePseudoMethod(caller, node); handled {
		if err != nil {
			return 0, err
		}
		if _, err := caller.pushIfWantedErr(result); err != nil {
			return 0, err
		}
		return caller.ip - startIP, nil
	}

	if node.Kind != NodeMethod {
		return 0, fatalPath(ErrNotAMethod, node.Path)
	}

	argc := node.ArgCount
	if argc > MaxArgs {
		return 0, fatalPath(ErrArgIndexRange, node.Path)
	}

	child := InitCallState(caller.ctx, node, caller.ns, caller.region, caller.plat)
	for i := 0; i < argc; i++ {
		val, err := caller.evalOneTermArg()
		if err != nil {
			return 0, err
		}
		child.Args[i] = val
	}
	consumed := caller.ip - startIP

	if err := ExecMethod(child); err != nil {
		return consumed, err
	}

	want := caller.wantResult()
	if want {
		if err := caller.Ops.Push(child.RetValue); err != nil {
			return consumed, err
		}
	} else {
		Release(&child.RetValue)
	}
	FinalizeState(child)
	return consumed, nil
}

// pushIfWantedErr adapts pushIfWanted to MethodInvoke's (int, error) return
// convention used by pseudo-method short-circuits.
func (a *Activation) pushIfWantedErr(result Object) (int, error) {
	want := a.wantResult()
	if err := a.pushIfWanted(result, want); err != nil {
		return 0, err
	}
	return 0, nil
}

// invokePseudoMethod short-circuits the three well-known pseudo-methods
// before stepping the execution loop, per spec.md §4.7: \._OSI, \._OS_,
// \._REV.
func invokePseudoMethod(caller *Activation, node *NamedNode) (Object, bool, error) {
	switch node.Path {
	case `\_OSI`:
		arg, err := caller.evalOneTermArg()
		if err != nil {
			return Object{}, true, err
		}
		name := arg.Str
		if osiAllowList[name] {
			return IntegerObject(0xFFFFFFFF), true, nil
		}
		if strings.EqualFold(name, "Linux") {
			caller.plat.Logger().WithField("query", name).Warn(`_OSI("Linux") requested; refusing per ACPI Windows-identity convention`)
		}
		return IntegerObject(0), true, nil

	case `\_OS_`, `\_OS`:
		return StringObject("Microsoft Windows NT"), true, nil

	case `\_REV`:
		return IntegerObject(2), true, nil

	default:
		return Object{}, false, nil
	}
}
