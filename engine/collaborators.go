package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// NodeKind tags what a NamedNode represents, per spec.md §3.
type NodeKind byte

const (
	NodeName NodeKind = iota
	NodeMethod
	NodeField
	NodeIndexField
	NodeDevice
	NodeScope
)

// NamedNode is "owned by the namespace, outside the core" per spec.md §3,
// but its shape is part of the engine's contract: Method invocation and
// Name/Field reads both need these fields regardless of which namespace
// implementation backs them.
type NamedNode struct {
	Path string
	Kind NodeKind

	// Value is the bound Object for Kind == NodeName.
	Value Object

	// Method fields, valid for Kind == NodeMethod. ArgCount is the low 3
	// bits of method_flags per spec.md §3.
	MethodBody []byte
	ArgCount   int
	Serialized bool

	// Field/IndexField metadata; opaque to the engine and interpreted only
	// by the OpRegion implementation a given NamedNode is bound to.
	FieldOpRegion string
	FieldOffset   uint64
	FieldWidth    uint64
}

// Namespace is the "Consumed from the namespace subsystem" contract
// (spec.md §6): path resolution, node lookup, and Package-body parsing.
// The declarative construct parsing (Name/Field declaration, namespace
// population) that builds these nodes in the first place lives entirely
// outside this interface, per spec.md's explicit scoping.
type Namespace interface {
	// Resolve decodes a NameString at b against scope, returning the
	// absolute path and the number of bytes consumed.
	Resolve(scope string, b []byte) (path string, consumed int, err error)

	// Lookup returns the node bound to an absolute path, if any.
	Lookup(path string) (*NamedNode, bool)

	// CreatePackage parses a PackageOp body (already past the PACKAGE_OP
	// byte and its package-length prefix) into Package elements.
	CreatePackage(scope string, b []byte) (entries []Object, consumed int, err error)

	// Store writes an Object to a resolved Name node, replacing its bound
	// value (spec.md §4.6.1's "stores to named Name objects replace their
	// bound Object").
	Store(path string, val Object) error

	// ParseDeclaration parses one declarative construct (NAME_OP, the
	// CreateXField family, or an extended-opcode declaration such as
	// FIELD_OP/DEVICE_OP/REGION_OP) starting at b, registers whatever
	// NamedNodes it produces, and reports how many bytes it consumed. This
	// is the "AML parser for declarative constructs" spec.md §1 calls an
	// external collaborator, surfaced here only so the execution loop's
	// instruction pointer can advance correctly past a construct it does
	// not itself interpret.
	ParseDeclaration(scope string, opcode Opcode, b []byte) (consumed int, err error)
}

// OpRegion is the "Consumed from the OpRegion subsystem" contract
// (spec.md §6): Field/IndexField I/O, invoked through the write-back step
// and through Name-ref reads of Field/IndexField nodes (spec.md §4.6.2).
type OpRegion interface {
	Read(ctx context.Context, node *NamedNode) (Object, error)
	Write(ctx context.Context, node *NamedNode, val Object) error
}

// Platform is the "Consumed from the platform" contract (spec.md §6):
// allocator concerns don't apply in Go, but Sleep, Panic and logging do.
type Platform interface {
	// Sleep blocks for d, clamped by the caller to at least 1ms per
	// spec.md §4.6.2's Sleep dispatch rule.
	Sleep(d time.Duration)

	// Panic reports a fatal interpreter error and does not return,
	// matching spec.md §7's "panic hook which does not return."
	Panic(err *FatalError)

	// Logger returns the structured logger used for debug/warn messages
	// (unhandled-opcode delegation, _OSI("Linux") notices).
	Logger() *logrus.Entry
}
