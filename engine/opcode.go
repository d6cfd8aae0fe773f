package engine

import "encoding/binary"

// Opcode is a decoded AML opcode. Single-byte opcodes occupy the low byte;
// extended (0x5B-prefixed) opcodes are (0x5B<<8)|next, per spec.md §4.5's
// two lexical classes ("Extended opcode" and "Single-byte opcode"). Modeled
// the same way the teacher tags its instruction set as a distinct byte-sized
// type in vm/bytecode.go, widened to 16 bits to hold the extended prefix.
type Opcode uint16

// ExtOpPrefix is the lead byte (spec.md §4.5) that introduces a two-byte
// extended opcode.
const ExtOpPrefix byte = 0x5B

// Single-byte opcodes (ACPI Machine Language encoding).
const (
	ZeroOp  Opcode = 0x00
	OneOp   Opcode = 0x01
	AliasOp Opcode = 0x06
	NameOp  Opcode = 0x08

	BytePrefix  Opcode = 0x0A
	WordPrefix  Opcode = 0x0B
	DWordPrefix Opcode = 0x0C
	StringPrefix Opcode = 0x0D
	QWordPrefix Opcode = 0x0E

	ScopeOp      Opcode = 0x10
	BufferOp     Opcode = 0x11
	PackageOp    Opcode = 0x12
	VarPackageOp Opcode = 0x13
	MethodOp     Opcode = 0x14

	Local0Op Opcode = 0x60
	Local7Op Opcode = 0x67
	Arg0Op   Opcode = 0x68
	Arg6Op   Opcode = 0x6E

	StoreOp      Opcode = 0x70
	RefOfOp      Opcode = 0x71
	AddOp        Opcode = 0x72
	ConcatOp     Opcode = 0x73
	SubtractOp   Opcode = 0x74
	IncrementOp  Opcode = 0x75
	DecrementOp  Opcode = 0x76
	MultiplyOp   Opcode = 0x77
	DivideOp     Opcode = 0x78
	ShiftLeftOp  Opcode = 0x79
	ShiftRightOp Opcode = 0x7A
	AndOp        Opcode = 0x7B
	NandOp       Opcode = 0x7C
	OrOp         Opcode = 0x7D
	NorOp        Opcode = 0x7E
	XorOp        Opcode = 0x7F
	NotOp        Opcode = 0x80

	SizeOfOp            Opcode = 0x87
	IndexOp             Opcode = 0x88
	CreateDWordFieldOp  Opcode = 0x8A
	CreateWordFieldOp   Opcode = 0x8B
	CreateByteFieldOp   Opcode = 0x8C
	CreateBitFieldOp    Opcode = 0x8D
	ObjectTypeOp        Opcode = 0x8E
	CreateQWordFieldOp  Opcode = 0x8F

	LAndOp     Opcode = 0x90
	LOrOp      Opcode = 0x91
	LNotOp     Opcode = 0x92
	LEqualOp   Opcode = 0x93
	LGreaterOp Opcode = 0x94
	LLessOp    Opcode = 0x95

	ContinueOp Opcode = 0x9F
	IfOp       Opcode = 0xA0
	ElseOp     Opcode = 0xA1
	WhileOp    Opcode = 0xA2
	NoopOp     Opcode = 0xA3
	ReturnOp   Opcode = 0xA4
	BreakOp    Opcode = 0xA5

	BreakPointOp Opcode = 0xCC
	OnesOp       Opcode = 0xFF
)

// Extended (ExtOpPrefix-prefixed) opcodes.
const (
	MutexOp      Opcode = 0x5B01
	EventOp      Opcode = 0x5B02
	CondRefOfOp  Opcode = 0x5B12
	CreateFieldOp Opcode = 0x5B13
	LoadTableOp  Opcode = 0x5B1F
	LoadOp       Opcode = 0x5B20
	StallOp      Opcode = 0x5B21
	SleepOp      Opcode = 0x5B22
	AcquireOp    Opcode = 0x5B23
	SignalOp     Opcode = 0x5B24
	WaitOp       Opcode = 0x5B25
	ResetOp      Opcode = 0x5B26
	ReleaseOp    Opcode = 0x5B27
	FromBCDOp    Opcode = 0x5B28
	ToBCDOp      Opcode = 0x5B29
	UnloadOp     Opcode = 0x5B2A
	RevisionOp   Opcode = 0x5B30
	DebugOp      Opcode = 0x5B31
	FatalOp      Opcode = 0x5B32
	TimerOp      Opcode = 0x5B33

	RegionOp      Opcode = 0x5B80
	FieldOp       Opcode = 0x5B81
	DeviceOp      Opcode = 0x5B82
	ProcessorOp   Opcode = 0x5B83
	PowerResOp    Opcode = 0x5B84
	ThermalZoneOp Opcode = 0x5B85
	IndexFieldOp  Opcode = 0x5B86
	BankFieldOp   Opcode = 0x5B87
	DataRegionOp  Opcode = 0x5B88
)

// IsNamePrefixByte reports whether b opens a NameString: a root/parent
// prefix, a lead name char, the dual/multi-name prefixes, or NullName,
// per spec.md §4.5's is_name(b) predicate.
func IsNamePrefixByte(b byte) bool {
	switch {
	case b == '\\' || b == '^':
		return true
	case b == 0x2E || b == 0x2F: // DualNamePrefix, MultiNamePrefix
		return true
	case b == 0x00: // NullName
		return true
	case (b >= 'A' && b <= 'Z') || b == '_':
		return true
	default:
		return false
	}
}

// ReadLiteral consumes a literal-integer prefix's following bytes
// (1/2/4/8 little-endian, per spec.md §4.5) and returns the value and the
// number of bytes consumed (not including the prefix byte itself).
func ReadLiteral(prefix Opcode, b []byte) (uint64, int, error) {
	var n int
	switch prefix {
	case BytePrefix:
		n = 1
	case WordPrefix:
		n = 2
	case DWordPrefix:
		n = 4
	case QWordPrefix:
		n = 8
	default:
		return 0, 0, fatal(ErrUnknownOpcode)
	}
	if len(b) < n {
		return 0, 0, fatalAt(ErrIPEscapedMethod, 0)
	}
	var buf [8]byte
	copy(buf[:n], b[:n])
	return binary.LittleEndian.Uint64(buf[:]), n, nil
}

// ParsePkgLength decodes AML's variable-length package-size encoding
// (spec.md §4.5): the first byte's top two bits give the count of extra
// length bytes (0-3); the low bits of the first byte (4 bits if there are
// extra bytes, else 6) hold the low bits of the length. Returns the
// decoded length (which, per AML, includes the bytes used by the encoding
// itself) and the number of bytes the encoding occupied.
func ParsePkgLength(b []byte) (length int, consumed int, err error) {
	if len(b) == 0 {
		return 0, 0, fatalAt(ErrIPEscapedMethod, 0)
	}
	lead := b[0]
	extra := int(lead >> 6)
	if extra == 0 {
		return int(lead & 0x3F), 1, nil
	}
	if len(b) < extra+1 {
		return 0, 0, fatalAt(ErrIPEscapedMethod, 0)
	}
	length = int(lead & 0x0F)
	for i := 0; i < extra; i++ {
		length |= int(b[1+i]) << (4 + 8*i)
	}
	return length, extra + 1, nil
}

// IsLocalOp reports whether op is LOCAL0..LOCAL7 and returns the index.
func IsLocalOp(op Opcode) (int, bool) {
	if op >= Local0Op && op <= Local7Op {
		return int(op - Local0Op), true
	}
	return 0, false
}

// IsArgOp reports whether op is ARG0..ARG6 and returns the index.
func IsArgOp(op Opcode) (int, bool) {
	if op >= Arg0Op && op <= Arg6Op {
		return int(op - Arg0Op), true
	}
	return 0, false
}

// IsUnaryOp reports whether op opens a 1-operand expression frame
// (spec.md §4.6.2's "Unary op" row: STORE, NOT).
func IsUnaryOp(op Opcode) bool {
	return op == StoreOp || op == NotOp
}

// IsBinaryOp reports whether op opens a 2-operand expression frame
// (spec.md §4.6.2's "Binary op" row).
func IsBinaryOp(op Opcode) bool {
	switch op {
	case AddOp, SubtractOp, MultiplyOp, AndOp, OrOp, XorOp, ShiftLeftOp, ShiftRightOp:
		return true
	default:
		return false
	}
}
