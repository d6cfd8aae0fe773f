package namespace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"amlvm/engine"
)

// LoadFlat populates a Tree from a flat textual fixture format used only by
// tests and the CLI demo, not a DSDT/SSDT binary table. One declaration per
// line, blank lines and lines starting with '#' ignored:
//
//	name <path> <uint64>
//	method <path> <argc> <hex bytes...>
//
// Example:
//
//	name \TMP_ 42
//	method \_SB.ADD2 2 72 68 69 60 a4 60
//
// The method body's opcode bytes are exactly the already-decoded AML stream
// engine.Activation executes; this loader does not itself assemble AML, it
// only stages bytes a test or demo already hand-encoded.
func LoadFlat(t *Tree, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return fmt.Errorf("namespace fixture line %d: too few fields", lineNo)
		}

		switch fields[0] {
		case "name":
			if len(fields) != 3 {
				return fmt.Errorf("namespace fixture line %d: name wants 2 args", lineNo)
			}
			v, err := strconv.ParseUint(fields[2], 10, 64)
			if err != nil {
				return fmt.Errorf("namespace fixture line %d: %w", lineNo, err)
			}
			t.Register(&engine.NamedNode{
				Path:  fields[1],
				Kind:  engine.NodeName,
				Value: engine.IntegerObject(v),
			})

		case "method":
			if len(fields) < 3 {
				return fmt.Errorf("namespace fixture line %d: method wants at least 2 args", lineNo)
			}
			argc, err := strconv.Atoi(fields[2])
			if err != nil {
				return fmt.Errorf("namespace fixture line %d: %w", lineNo, err)
			}
			body := make([]byte, 0, len(fields)-3)
			for _, hx := range fields[3:] {
				b, err := strconv.ParseUint(hx, 16, 8)
				if err != nil {
					return fmt.Errorf("namespace fixture line %d: %w", lineNo, err)
				}
				body = append(body, byte(b))
			}
			t.Register(&engine.NamedNode{
				Path:       fields[1],
				Kind:       engine.NodeMethod,
				MethodBody: body,
				ArgCount:   argc,
			})

		default:
			return fmt.Errorf("namespace fixture line %d: unknown declaration %q", lineNo, fields[0])
		}
	}
	return scanner.Err()
}
