package engine

// Fixed capacities from spec.md §5. Exceeding any of these is a fatal
// interpreter error, the same "treat as tunable constants but preserve the
// fatal-on-overflow discipline" posture the teacher VM takes with
// stackSize/numRegisters in vm/vm.go.
const (
	ExecStackDepth    = 16
	OperandStackDepth = 16
	MaxArgs           = 7
	MaxLocals         = 8
	MaxPackageEntries = 255
	MaxNameSegments   = 4 // bound on a dual/multi NameString's segment count
	NameSegmentLen    = 4 // each NameString segment is exactly 4 ASCII chars
)
