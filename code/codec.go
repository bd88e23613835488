package code

import (
	"fmt"

	"github.com/wippyai/bytegoto/errors"
)

// Instruction is one decoded instruction.
// Offset is the position of the first EXTENDED_ARG prefix, if any,
// and Size covers the prefixes.
type Instruction struct {
	Offset int
	Size   int
	Arg    uint32
	Op     Opcode
}

// End returns the offset of the next instruction.
func (i Instruction) End() int {
	return i.Offset + i.Size
}

// String formats the instruction as "OP arg".
func (i Instruction) String() string {
	return fmt.Sprintf("%s %d", i.Op, i.Arg)
}

// Decode reads the instruction starting at pos, folding EXTENDED_ARG
// prefixes into the operand. It fails only when the buffer ends inside
// an instruction.
func Decode(d Dialect, buf []byte, pos int) (Instruction, int, error) {
	start := pos
	var arg uint64
	for {
		if pos >= len(buf) {
			return Instruction{}, start, errors.Truncated(errors.PhaseDecode, start, len(buf))
		}
		op := Opcode(buf[pos])
		var a uint64
		if d.carriesArg(op) {
			if pos+1+d.ArgWidth > len(buf) {
				return Instruction{}, start, errors.Truncated(errors.PhaseDecode, start, len(buf))
			}
			a = uint64(buf[pos+1])
			if d.ArgWidth == 2 {
				a |= uint64(buf[pos+2]) << 8
			}
		}
		arg = arg<<(8*uint(d.ArgWidth)) | a
		if arg > 0xFFFFFFFF {
			return Instruction{}, start, errors.New(errors.PhaseDecode, errors.KindOverflow).
				Offset(start).
				Detail("extended operand exceeds 32 bits").
				Build()
		}
		pos += d.unitSize(op)
		if op == OpExtendedArg {
			continue
		}
		return Instruction{Op: op, Arg: uint32(arg), Offset: start, Size: pos - start}, pos, nil
	}
}

// Size returns the encoded size of op with arg, including prefixes.
func Size(d Dialect, op Opcode, arg uint32) int {
	return prefixCount(d, op, arg)*d.unitSize(OpExtendedArg) + d.unitSize(op)
}

func prefixCount(d Dialect, op Opcode, arg uint32) int {
	if !d.carriesArg(op) {
		return 0
	}
	n := 0
	for arg > d.argMask() {
		arg >>= 8 * uint(d.ArgWidth)
		n++
	}
	return n
}

// AppendInstruction appends the encoding of op with arg to buf.
// Operands wider than the dialect width are split across EXTENDED_ARG
// prefixes, most significant chunk first.
func AppendInstruction(d Dialect, buf []byte, op Opcode, arg uint32) []byte {
	if !d.carriesArg(op) {
		return append(buf, byte(op))
	}
	if arg > d.argMask() {
		buf = AppendInstruction(d, buf, OpExtendedArg, arg>>(8*uint(d.ArgWidth)))
	}
	buf = append(buf, byte(op), byte(arg))
	if d.ArgWidth == 2 {
		buf = append(buf, byte(arg>>8))
	}
	return buf
}

// Encode returns the encoding of op with arg.
func Encode(d Dialect, op Opcode, arg uint32) []byte {
	return AppendInstruction(d, make([]byte, 0, Size(d, op, arg)), op, arg)
}

// Put writes op with arg at pos and returns the position after it.
// The caller guarantees the buffer has room.
func Put(d Dialect, buf []byte, pos int, op Opcode, arg uint32) int {
	var scratch [16]byte
	enc := AppendInstruction(d, scratch[:0], op, arg)
	return pos + copy(buf[pos:], enc)
}

// PutNops fills [pos, end) with NOP instructions. In dialects whose NOP is
// wider than one byte the span must be a multiple of its size.
func PutNops(d Dialect, buf []byte, pos, end int) {
	n := d.unitSize(OpNop)
	for pos+n <= end {
		pos = Put(d, buf, pos, OpNop, 0)
	}
}

// Target returns the absolute byte offset a jump instruction refers to.
func Target(d Dialect, ins Instruction) (int, bool) {
	switch {
	case ins.Op.IsRelJump():
		return ins.End() + int(ins.Arg)*d.JumpUnit, true
	case ins.Op.IsAbsJump():
		return int(ins.Arg) * d.JumpUnit, true
	}
	return 0, false
}

// JumpArg converts a byte offset into a jump operand.
func JumpArg(d Dialect, offset int) uint32 {
	return uint32(offset / d.JumpUnit)
}
