package code

import (
	"fmt"
	"strings"

	"github.com/wippyai/bytegoto/errors"
)

// Dialect describes the architecture-dependent encoding of a routine.
type Dialect struct {
	Name string

	// ArgWidth is the operand width in bytes (1 or 2), little endian.
	ArgWidth int

	// Wordcode dialects give every instruction an operand slot.
	// Otherwise only opcodes >= HaveArgument carry one.
	Wordcode bool

	// JumpUnit is the number of bytes per jump operand unit (1 or 2).
	JumpUnit int

	// LoopBlocks reports whether SETUP_LOOP frames exist. When false,
	// FOR_ITER alone delimits a loop frame ending at its exit target.
	LoopBlocks bool
}

// Preset dialects.
var (
	Wordcode = Dialect{Name: "wordcode", ArgWidth: 1, Wordcode: true, JumpUnit: 1, LoopBlocks: true}
	Legacy   = Dialect{Name: "legacy", ArgWidth: 2, Wordcode: false, JumpUnit: 1, LoopBlocks: true}
	Compact  = Dialect{Name: "compact", ArgWidth: 1, Wordcode: true, JumpUnit: 2, LoopBlocks: false}
)

// Dialects lists the presets in lookup order.
var Dialects = []Dialect{Wordcode, Legacy, Compact}

// DialectByName returns the preset with the given name.
func DialectByName(name string) (Dialect, error) {
	for _, d := range Dialects {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return Dialect{}, errors.NotFound(errors.PhaseConfig, "dialect", name)
}

// Validate checks that the dialect parameters are supported.
func (d Dialect) Validate() error {
	if d.ArgWidth != 1 && d.ArgWidth != 2 {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("operand width %d not supported", d.ArgWidth))
	}
	if d.JumpUnit != 1 && d.JumpUnit != 2 {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("jump unit %d not supported", d.JumpUnit))
	}
	if d.JumpUnit == 2 && !d.Wordcode {
		return errors.InvalidInput(errors.PhaseConfig, "jump unit 2 requires wordcode")
	}
	return nil
}

// String returns the dialect name.
func (d Dialect) String() string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("dialect(w=%d,wordcode=%t,unit=%d)", d.ArgWidth, d.Wordcode, d.JumpUnit)
}

// carriesArg reports whether op has operand bytes in this dialect.
func (d Dialect) carriesArg(op Opcode) bool {
	return d.Wordcode || op.HasArg()
}

// argMask is the largest operand that fits without an extension prefix.
func (d Dialect) argMask() uint32 {
	return 1<<(8*uint(d.ArgWidth)) - 1
}

// unitSize is the size of one instruction without prefixes.
func (d Dialect) unitSize(op Opcode) int {
	if d.carriesArg(op) {
		return 1 + d.ArgWidth
	}
	return 1
}
