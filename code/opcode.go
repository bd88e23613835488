package code

import "strconv"

// Opcode identifies an instruction.
type Opcode byte

// HaveArgument is the first opcode that carries an operand in non-wordcode dialects.
const HaveArgument Opcode = 90

// Opcodes without an operand
const (
	OpPopTop           Opcode = 1
	OpRotTwo           Opcode = 2
	OpDupTop           Opcode = 4
	OpNop              Opcode = 9
	OpBinaryMultiply   Opcode = 20
	OpBinaryAdd        Opcode = 23
	OpBinarySubtract   Opcode = 24
	OpBinarySubscr     Opcode = 25
	OpBinaryTrueDivide Opcode = 27
	OpGetAIter         Opcode = 50
	OpBeforeAsyncWith  Opcode = 52
	OpBeforeWith       Opcode = 53
	OpGetIter          Opcode = 68
	OpAsyncWithCleanup Opcode = 80
	OpWithCleanup      Opcode = 81
	OpReturnValue      Opcode = 83
	OpPopFinally       Opcode = 86
	OpPopBlock         Opcode = 87
	OpEndFinally       Opcode = 88
	OpPopExcept        Opcode = 89
)

// Opcodes with an operand
const (
	OpStoreName      Opcode = 90
	OpForIter        Opcode = 93  // relative
	OpStoreAttr      Opcode = 95
	OpStoreGlobal    Opcode = 97
	OpLoadConst      Opcode = 100
	OpLoadName       Opcode = 101
	OpBuildTuple     Opcode = 102
	OpBuildList      Opcode = 103
	OpLoadAttr       Opcode = 106
	OpCompareOp      Opcode = 107
	OpJumpForward    Opcode = 110 // relative
	OpJumpAbsolute   Opcode = 113
	OpPopJumpIfFalse Opcode = 114
	OpPopJumpIfTrue  Opcode = 115
	OpLoadGlobal     Opcode = 116
	OpSetupLoop      Opcode = 120
	OpSetupExcept    Opcode = 121
	OpSetupFinally   Opcode = 122
	OpLoadFast       Opcode = 124
	OpStoreFast      Opcode = 125
	OpRaiseVarargs   Opcode = 130
	OpCallFunction   Opcode = 131
	OpSetupWith      Opcode = 143
	OpExtendedArg    Opcode = 144
	OpSetupAsyncWith Opcode = 154
)

// COMPARE_OP operands
const (
	CmpLt       = 0
	CmpLe       = 1
	CmpEq       = 2
	CmpNe       = 3
	CmpGt       = 4
	CmpGe       = 5
	CmpExcMatch = 10
)

var opNames = map[Opcode]string{
	OpPopTop:           "POP_TOP",
	OpRotTwo:           "ROT_TWO",
	OpDupTop:           "DUP_TOP",
	OpNop:              "NOP",
	OpBinaryMultiply:   "BINARY_MULTIPLY",
	OpBinaryAdd:        "BINARY_ADD",
	OpBinarySubtract:   "BINARY_SUBTRACT",
	OpBinarySubscr:     "BINARY_SUBSCR",
	OpBinaryTrueDivide: "BINARY_TRUE_DIVIDE",
	OpGetAIter:         "GET_AITER",
	OpBeforeAsyncWith:  "BEFORE_ASYNC_WITH",
	OpBeforeWith:       "BEFORE_WITH",
	OpGetIter:          "GET_ITER",
	OpAsyncWithCleanup: "ASYNC_WITH_CLEANUP",
	OpWithCleanup:      "WITH_CLEANUP",
	OpReturnValue:      "RETURN_VALUE",
	OpPopFinally:       "POP_FINALLY",
	OpPopBlock:         "POP_BLOCK",
	OpEndFinally:       "END_FINALLY",
	OpPopExcept:        "POP_EXCEPT",
	OpStoreName:        "STORE_NAME",
	OpForIter:          "FOR_ITER",
	OpStoreAttr:        "STORE_ATTR",
	OpStoreGlobal:      "STORE_GLOBAL",
	OpLoadConst:        "LOAD_CONST",
	OpLoadName:         "LOAD_NAME",
	OpBuildTuple:       "BUILD_TUPLE",
	OpBuildList:        "BUILD_LIST",
	OpLoadAttr:         "LOAD_ATTR",
	OpCompareOp:        "COMPARE_OP",
	OpJumpForward:      "JUMP_FORWARD",
	OpJumpAbsolute:     "JUMP_ABSOLUTE",
	OpPopJumpIfFalse:   "POP_JUMP_IF_FALSE",
	OpPopJumpIfTrue:    "POP_JUMP_IF_TRUE",
	OpLoadGlobal:       "LOAD_GLOBAL",
	OpSetupLoop:        "SETUP_LOOP",
	OpSetupExcept:      "SETUP_EXCEPT",
	OpSetupFinally:     "SETUP_FINALLY",
	OpLoadFast:         "LOAD_FAST",
	OpStoreFast:        "STORE_FAST",
	OpRaiseVarargs:     "RAISE_VARARGS",
	OpCallFunction:     "CALL_FUNCTION",
	OpSetupWith:        "SETUP_WITH",
	OpExtendedArg:      "EXTENDED_ARG",
	OpSetupAsyncWith:   "SETUP_ASYNC_WITH",
}

var opByName map[string]Opcode

func init() {
	opByName = make(map[string]Opcode, len(opNames))
	for op, name := range opNames {
		opByName[name] = op
	}
}

// String returns the mnemonic, or OP_<n> for unknown opcodes.
func (op Opcode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "OP_" + strconv.Itoa(int(op))
}

// Known reports whether op is part of the instruction set.
func (op Opcode) Known() bool {
	_, ok := opNames[op]
	return ok
}

// HasArg reports whether op takes an operand outside wordcode dialects.
func (op Opcode) HasArg() bool {
	return op >= HaveArgument
}

// Lookup returns the opcode for a mnemonic.
func Lookup(name string) (Opcode, bool) {
	op, ok := opByName[name]
	return op, ok
}

// IsRelJump reports whether op's operand is relative to the next instruction.
func (op Opcode) IsRelJump() bool {
	return op == OpForIter || op == OpJumpForward
}

// IsAbsJump reports whether op's operand is an absolute target.
func (op Opcode) IsAbsJump() bool {
	switch op {
	case OpJumpAbsolute, OpPopJumpIfFalse, OpPopJumpIfTrue,
		OpSetupLoop, OpSetupExcept, OpSetupFinally, OpSetupWith, OpSetupAsyncWith:
		return true
	}
	return false
}

// IsJump reports whether op has a jump target.
func (op Opcode) IsJump() bool {
	return op.IsRelJump() || op.IsAbsJump()
}

// IsSetup reports whether op pushes a block with a handler target.
func (op Opcode) IsSetup() bool {
	switch op {
	case OpSetupLoop, OpSetupExcept, OpSetupFinally, OpSetupWith, OpSetupAsyncWith:
		return true
	}
	return false
}

// IsTerminal reports whether control never falls through op.
func (op Opcode) IsTerminal() bool {
	switch op {
	case OpJumpAbsolute, OpJumpForward, OpReturnValue, OpRaiseVarargs:
		return true
	}
	return false
}

// CompareSymbols maps COMPARE_OP operands to their source symbols.
var CompareSymbols = map[uint32]string{
	CmpLt:       "<",
	CmpLe:       "<=",
	CmpEq:       "==",
	CmpNe:       "!=",
	CmpGt:       ">",
	CmpGe:       ">=",
	CmpExcMatch: "exc",
}
