package code

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/bytegoto/errors"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("code: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type constKind uint8

const (
	constNone constKind = iota
	constBool
	constInt
	constFloat
	constString
)

// wireConst is a typed constant record. Untyped CBOR integers would come
// back as uint64, so every constant carries its kind.
type wireConst struct {
	Str   string    `cbor:"5,keyasint,omitempty"`
	Int   int64     `cbor:"2,keyasint,omitempty"`
	Float float64   `cbor:"3,keyasint,omitempty"`
	Kind  constKind `cbor:"1,keyasint"`
	Bool  bool      `cbor:"4,keyasint,omitempty"`
}

type wireDialect struct {
	Name       string `cbor:"1,keyasint"`
	ArgWidth   int    `cbor:"2,keyasint"`
	JumpUnit   int    `cbor:"3,keyasint"`
	Wordcode   bool   `cbor:"4,keyasint"`
	LoopBlocks bool   `cbor:"5,keyasint"`
}

type wireRoutine struct {
	Name     string      `cbor:"1,keyasint"`
	Dialect  wireDialect `cbor:"2,keyasint"`
	Code     []byte      `cbor:"3,keyasint"`
	Consts   []wireConst `cbor:"4,keyasint"`
	Names    []string    `cbor:"5,keyasint"`
	VarNames []string    `cbor:"6,keyasint"`
	ArgCount int         `cbor:"7,keyasint"`
}

// Marshal serializes a routine to canonical CBOR.
func Marshal(r *Routine) ([]byte, error) {
	w := wireRoutine{
		Name: r.Name,
		Dialect: wireDialect{
			Name:       r.Dialect.Name,
			ArgWidth:   r.Dialect.ArgWidth,
			JumpUnit:   r.Dialect.JumpUnit,
			Wordcode:   r.Dialect.Wordcode,
			LoopBlocks: r.Dialect.LoopBlocks,
		},
		Code:     r.Code,
		Names:    r.Names,
		VarNames: r.VarNames,
		ArgCount: r.ArgCount,
		Consts:   make([]wireConst, len(r.Consts)),
	}
	for i, c := range r.Consts {
		switch v := c.(type) {
		case nil:
			w.Consts[i] = wireConst{Kind: constNone}
		case bool:
			w.Consts[i] = wireConst{Kind: constBool, Bool: v}
		case int64:
			w.Consts[i] = wireConst{Kind: constInt, Int: v}
		case float64:
			w.Consts[i] = wireConst{Kind: constFloat, Float: v}
		case string:
			w.Consts[i] = wireConst{Kind: constString, Str: v}
		default:
			return nil, errors.TypeMismatch(errors.PhaseEncode, []string{r.Name, fmt.Sprintf("consts[%d]", i)}, "constant", c)
		}
	}
	return cborEncMode.Marshal(&w)
}

// Unmarshal deserializes and validates a routine.
func Unmarshal(data []byte) (*Routine, error) {
	var w wireRoutine
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, errors.Load("unmarshal routine", err)
	}
	r := &Routine{
		Name: w.Name,
		Dialect: Dialect{
			Name:       w.Dialect.Name,
			ArgWidth:   w.Dialect.ArgWidth,
			JumpUnit:   w.Dialect.JumpUnit,
			Wordcode:   w.Dialect.Wordcode,
			LoopBlocks: w.Dialect.LoopBlocks,
		},
		Code:     w.Code,
		Names:    w.Names,
		VarNames: w.VarNames,
		ArgCount: w.ArgCount,
		Consts:   make([]any, len(w.Consts)),
	}
	for i, c := range w.Consts {
		switch c.Kind {
		case constNone:
			r.Consts[i] = nil
		case constBool:
			r.Consts[i] = c.Bool
		case constInt:
			r.Consts[i] = c.Int
		case constFloat:
			r.Consts[i] = c.Float
		case constString:
			r.Consts[i] = c.Str
		default:
			return nil, errors.InvalidData(errors.PhaseLoad, []string{w.Name, fmt.Sprintf("consts[%d]", i)},
				fmt.Sprintf("unknown constant kind %d", c.Kind))
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
