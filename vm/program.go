package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Constants and calls
const (
	OpPushConstant  Opcode = 0x01 // push constant (16-bit index)
	OpCallPrimitive Opcode = 0x02 // invoke primitive (16-bit id)
	OpCallFunction  Opcode = 0x03 // call function constant (16-bit index)
)

// Bindings
const (
	OpBind        Opcode = 0x10 // pop, bind to name (16-bit name index)
	OpLoadBinding Opcode = 0x11 // push bound value (16-bit name index)
)

// Control flow
const (
	OpBranch     Opcode = 0x20 // unconditional branch (16-bit signed offset)
	OpBranchZero Opcode = 0x21 // pop, branch if scalar zero (16-bit signed offset)
)

// Array construction
const (
	OpMakeArray Opcode = 0x30 // collect N values into an array (16-bit count)
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpPushConstant:  {"PUSH_CONSTANT", 2},
	OpCallPrimitive: {"CALL_PRIMITIVE", 2},
	OpCallFunction:  {"CALL_FUNCTION", 2},
	OpBind:          {"BIND", 2},
	OpLoadBinding:   {"LOAD_BINDING", 2},
	OpBranch:        {"BRANCH", 2},
	OpBranchZero:    {"BRANCH_ZERO", 2},
	OpMakeArray:     {"MAKE_ARRAY", 2},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), OperandBytes: 0}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences.
type BytecodeBuilder struct {
	bytes []byte
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// Append splices already-built bytecode onto the end. Branches inside
// the spliced code are relative, so it stays valid at any offset.
func (b *BytecodeBuilder) Append(code []byte) {
	b.bytes = append(b.bytes, code...)
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *BytecodeBuilder) EmitUint16(op Opcode, operand uint16) {
	b.bytes = append(b.bytes, byte(op), byte(operand), byte(operand>>8))
}

// ---------------------------------------------------------------------------
// Label management for branches
// ---------------------------------------------------------------------------

// Label represents a forward reference in bytecode.
type Label struct {
	resolved bool
	position int   // branch target once resolved
	refs     []int // operand positions awaiting the target
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position and patches every
// forward reference to it.
func (b *BytecodeBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	for _, ref := range label.refs {
		offset := label.position - (ref + 2) // offset from after the operand
		b.bytes[ref] = byte(offset)
		b.bytes[ref+1] = byte(offset >> 8)
	}
	label.refs = nil
}

// EmitBranch emits a branch instruction targeting a label.
func (b *BytecodeBuilder) EmitBranch(op Opcode, label *Label) {
	b.bytes = append(b.bytes, byte(op))
	if label.resolved {
		offset := label.position - (len(b.bytes) + 2)
		b.bytes = append(b.bytes, byte(offset), byte(offset>>8))
	} else {
		label.refs = append(label.refs, len(b.bytes))
		b.bytes = append(b.bytes, 0, 0) // placeholder
	}
}

// ---------------------------------------------------------------------------
// Bytecode reader
// ---------------------------------------------------------------------------

// BytecodeReader reads bytecode for interpretation or disassembly.
type BytecodeReader struct {
	bytes []byte
	pos   int
}

// NewBytecodeReader creates a reader for bytecode.
func NewBytecodeReader(bc []byte) *BytecodeReader {
	return &BytecodeReader{bytes: bc}
}

// Position returns the current read position.
func (r *BytecodeReader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *BytecodeReader) HasMore() bool {
	return r.pos < len(r.bytes)
}

// ReadOpcode reads and returns the next opcode.
func (r *BytecodeReader) ReadOpcode() Opcode {
	if r.pos >= len(r.bytes) {
		panic("bytecode underflow")
	}
	op := Opcode(r.bytes[r.pos])
	r.pos++
	return op
}

// ReadUint16 reads a 16-bit operand (little-endian).
func (r *BytecodeReader) ReadUint16() uint16 {
	if r.pos+2 > len(r.bytes) {
		panic("bytecode underflow")
	}
	v := binary.LittleEndian.Uint16(r.bytes[r.pos:])
	r.pos += 2
	return v
}

// ReadInt16 reads a signed 16-bit operand (little-endian).
func (r *BytecodeReader) ReadInt16() int16 {
	return int16(r.ReadUint16())
}

// Seek sets the read position.
func (r *BytecodeReader) Seek(pos int) {
	r.pos = pos
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Disassemble renders a program's instructions one per line, resolving
// operands against its constant, function, and name tables.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	r := NewBytecodeReader(p.Code)
	for r.HasMore() {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p.disassembleInstruction(r))
	}
	return sb.String()
}

func (p *Program) disassembleInstruction(r *BytecodeReader) string {
	pos := r.Position()
	op := r.ReadOpcode()
	info := op.Info()

	switch op {
	case OpPushConstant:
		idx := r.ReadUint16()
		if int(idx) < len(p.Constants) {
			return fmt.Sprintf("%04d  %s %d (%s)", pos, info.Name, idx, constantName(p.Constants[idx]))
		}
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, idx)

	case OpCallPrimitive:
		id := Primitive(r.ReadUint16())
		return fmt.Sprintf("%04d  %s %s", pos, info.Name, id)

	case OpCallFunction:
		idx := r.ReadUint16()
		if int(idx) < len(p.Functions) {
			return fmt.Sprintf("%04d  %s %d (%s)", pos, info.Name, idx, p.Functions[idx].Name)
		}
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, idx)

	case OpBind, OpLoadBinding:
		idx := r.ReadUint16()
		if int(idx) < len(p.Names) {
			return fmt.Sprintf("%04d  %s %s", pos, info.Name, p.Names[idx])
		}
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, idx)

	case OpBranch, OpBranchZero:
		offset := r.ReadInt16()
		target := r.Position() + int(offset)
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, info.Name, offset, target)

	case OpMakeArray:
		count := r.ReadUint16()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, count)

	default:
		for i := 0; i < info.OperandBytes; i++ {
			r.pos++
		}
		return fmt.Sprintf("%04d  %s", pos, info.Name)
	}
}

// constantName renders a constant for disassembly without flooding the
// output with large arrays.
func constantName(v Value) string {
	if fn, ok := v.(*FnValue); ok {
		return "fn " + fn.Fn.Name
	}
	s := Show(v)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "..."
	}
	if len(s) > 24 {
		s = s[:24] + "..."
	}
	return s
}
