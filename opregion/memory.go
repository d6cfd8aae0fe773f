// Package opregion provides a reference, in-memory implementation of
// engine.OpRegion. Real ACPI firmware backs Field/IndexField access with
// SystemMemory, SystemIO, PCI config space and the like; this package models
// SystemMemory with Memory, a flat byte store addressed by the NamedNode's
// FieldOffset/FieldWidth metadata, and SystemIO/EmbeddedControl with
// Controller (controller.go), a serialized worker over the same kind of
// store. PCI config space is not modeled, matching SPEC_FULL.md's note that
// real OpRegion I/O stays out of scope for this core.
package opregion

import (
	"context"
	"encoding/binary"
	"sync"

	"amlvm/engine"
)

// Memory is a byte-addressable backing store keyed by region name, sized on
// first touch per region so a test can stand up several disjoint regions.
type Memory struct {
	mu      sync.Mutex
	regions map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{regions: make(map[string][]byte)}
}

// Grow ensures the named region has at least size bytes, used by a host or
// test to pre-size a region before a method runs.
func (m *Memory) Grow(region string, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.growLocked(region, size)
}

func (m *Memory) growLocked(region string, size int) []byte {
	buf := m.regions[region]
	if len(buf) < size {
		grown := make([]byte, size)
		copy(grown, buf)
		buf = grown
		m.regions[region] = buf
	}
	return buf
}

// Read implements engine.OpRegion: little-endian load of node.FieldWidth
// bits (rounded up to whole bytes) at node.FieldOffset within
// node.FieldOpRegion.
func (m *Memory) Read(_ context.Context, node *engine.NamedNode) (engine.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := widthBytes(node.FieldWidth)
	end := int(node.FieldOffset) + n
	buf := m.growLocked(node.FieldOpRegion, end)

	var raw [8]byte
	copy(raw[:n], buf[node.FieldOffset:end])
	return engine.IntegerObject(binary.LittleEndian.Uint64(raw[:])), nil
}

// Write implements engine.OpRegion: little-endian store of val's integer
// value, truncated to node.FieldWidth bits rounded up to whole bytes.
func (m *Memory) Write(_ context.Context, node *engine.NamedNode, val engine.Object) error {
	v, err := val.AsInteger()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := widthBytes(node.FieldWidth)
	end := int(node.FieldOffset) + n
	buf := m.growLocked(node.FieldOpRegion, end)

	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], v)
	copy(buf[node.FieldOffset:end], raw[:n])
	return nil
}

func widthBytes(bits uint64) int {
	if bits == 0 {
		bits = 8
	}
	n := int((bits + 7) / 8)
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	return n
}
