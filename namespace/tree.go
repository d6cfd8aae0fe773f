// Package namespace provides a reference, in-memory implementation of
// engine.Namespace. It is a path-keyed map, not an ACPI table parser: hosts
// (or the tiny LoadFlat fixture loader in this package) register NamedNodes
// programmatically before engine.ExecMethod ever runs.
package namespace

import (
	"strings"
	"sync"

	"amlvm/engine"
)

// Tree is a `\`-rooted, `^`-scoped path tree of engine.NamedNode, guarded by
// a mutex since a Method invocation may Store into it from recursive/nested
// calls.
type Tree struct {
	mu    sync.RWMutex
	nodes map[string]*engine.NamedNode
}

func New() *Tree {
	return &Tree{nodes: make(map[string]*engine.NamedNode)}
}

// Register binds a fully-qualified, root-relative path (e.g. `\_SB.PCI0`) to
// a node. Used by hosts and by LoadFlat to populate the tree before a method
// runs.
func (t *Tree) Register(node *engine.NamedNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[node.Path] = node
}

// Resolve implements engine.Namespace. It understands the root prefix `\`,
// repeated parent prefixes `^`, the dual/multi-name prefixes, and NullName,
// against a scope given as an absolute path string.
func (t *Tree) Resolve(scope string, b []byte) (string, int, error) {
	if len(b) == 0 {
		return "", 0, engine.ErrUndefinedName
	}

	i := 0
	base := scope
	if b[i] == '\\' {
		base = `\`
		i++
	} else {
		for i < len(b) && b[i] == '^' {
			base = parentOf(base)
			i++
		}
	}

	if i < len(b) && b[i] == 0x00 {
		return "", i + 1, nil
	}

	var segs []string
	switch {
	case i < len(b) && b[i] == 0x2E: // DualNamePrefix
		i++
		for s := 0; s < 2; s++ {
			if i+4 > len(b) {
				return "", 0, engine.ErrUndefinedName
			}
			segs = append(segs, string(b[i:i+4]))
			i += 4
		}
	case i < len(b) && b[i] == 0x2F: // MultiNamePrefix
		i++
		if i >= len(b) {
			return "", 0, engine.ErrUndefinedName
		}
		count := int(b[i])
		i++
		for s := 0; s < count; s++ {
			if i+4 > len(b) {
				return "", 0, engine.ErrUndefinedName
			}
			segs = append(segs, string(b[i:i+4]))
			i += 4
		}
	default:
		if i+4 > len(b) {
			return "", 0, engine.ErrUndefinedName
		}
		segs = append(segs, string(b[i:i+4]))
		i += 4
	}

	path := joinPath(base, segs)
	return path, i, nil
}

// Lookup implements engine.Namespace.
func (t *Tree) Lookup(path string) (*engine.NamedNode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[path]
	return n, ok
}

// Store implements engine.Namespace: replace a Name node's bound value.
func (t *Tree) Store(path string, val engine.Object) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[path]
	if !ok {
		n = &engine.NamedNode{Path: path, Kind: engine.NodeName}
		t.nodes[path] = n
	}
	engine.Release(&n.Value)
	n.Value = val
	return nil
}

// CreatePackage implements engine.Namespace: parses a flat sequence of
// constant-encoded package elements (Byte/Word/DWord/QWord literal prefixes
// or ZeroOp/OneOp/OnesOp) into Objects. Nested Package literals and computed
// elements are not supported by this reference implementation: parsing stops
// at the first element it does not recognize.
func (t *Tree) CreatePackage(scope string, b []byte) ([]engine.Object, int, error) {
	var out []engine.Object
	i := 0
	for i < len(b) && len(out) < engine.MaxPackageEntries {
		switch engine.Opcode(b[i]) {
		case engine.ZeroOp:
			out = append(out, engine.IntegerObject(0))
			i++
		case engine.OneOp:
			out = append(out, engine.IntegerObject(1))
			i++
		case engine.OnesOp:
			out = append(out, engine.IntegerObject(^uint64(0)))
			i++
		case engine.BytePrefix, engine.WordPrefix, engine.DWordPrefix, engine.QWordPrefix:
			v, consumed, err := engine.ReadLiteral(engine.Opcode(b[i]), b[i+1:])
			if err != nil {
				return nil, 0, err
			}
			out = append(out, engine.IntegerObject(v))
			i += 1 + consumed
		default:
			// Unrecognized element encoding: stop rather than misparse.
			return out, i, nil
		}
	}
	return out, i, nil
}

// ParseDeclaration implements engine.Namespace. It handles NAME_OP (binds a
// literal-integer initializer to a new Name node) and otherwise reports a
// zero-length consumption for declaration kinds this reference tree does
// not populate (Field/Device/Region/...), matching SPEC_FULL.md's note that
// full declarative-construct parsing stays out of scope; a host that needs
// those kinds pre-registers the resulting NamedNodes directly via Register.
func (t *Tree) ParseDeclaration(scope string, opcode engine.Opcode, b []byte) (int, error) {
	switch opcode {
	case engine.NameOp:
		path, consumed, err := t.Resolve(scope, b)
		if err != nil {
			return 0, err
		}
		rest := b[consumed:]
		if len(rest) == 0 {
			return consumed, engine.ErrUndefinedName
		}
		val, n, err := decodeConstant(rest)
		if err != nil {
			return 0, err
		}
		t.Register(&engine.NamedNode{Path: path, Kind: engine.NodeName, Value: val})
		return consumed + n, nil
	default:
		return 0, nil
	}
}

func decodeConstant(b []byte) (engine.Object, int, error) {
	switch engine.Opcode(b[0]) {
	case engine.ZeroOp:
		return engine.IntegerObject(0), 1, nil
	case engine.OneOp:
		return engine.IntegerObject(1), 1, nil
	case engine.OnesOp:
		return engine.IntegerObject(^uint64(0)), 1, nil
	case engine.BytePrefix, engine.WordPrefix, engine.DWordPrefix, engine.QWordPrefix:
		v, consumed, err := engine.ReadLiteral(engine.Opcode(b[0]), b[1:])
		if err != nil {
			return engine.Object{}, 0, err
		}
		return engine.IntegerObject(v), 1 + consumed, nil
	default:
		return engine.Object{}, 0, engine.ErrUndefinedName
	}
}

func parentOf(path string) string {
	if path == `\` || path == "" {
		return `\`
	}
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return `\`
	}
	return path[:idx]
}

func joinPath(base string, segs []string) string {
	var sb strings.Builder
	sb.WriteString(base)
	for _, s := range segs {
		trimmed := strings.TrimRight(s, "_")
		if trimmed == "" {
			trimmed = s
		}
		if !strings.HasSuffix(sb.String(), `\`) {
			sb.WriteByte('.')
		}
		sb.WriteString(trimmed)
	}
	return sb.String()
}
