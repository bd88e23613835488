package engine

import "github.com/wippyai/bytegoto/code"

// TempName is the local slot that carries goto parameters.
const TempName = ".goto.temp"

// pool appends constants and the parameter slot to a routine on demand.
type pool struct {
	r      *code.Routine
	added  int
	temp   uint32
	hasTmp bool
}

func newPool(r *code.Routine) *pool {
	return &pool{r: r}
}

// Const returns the index of v, reusing an existing entry of the same
// type and value.
func (p *pool) Const(v any) uint32 {
	for i, c := range p.r.Consts {
		if c == v {
			return uint32(i)
		}
	}
	p.r.Consts = append(p.r.Consts, v)
	p.added++
	return uint32(len(p.r.Consts) - 1)
}

// Temp returns the parameter slot, adding it the first time.
func (p *pool) Temp() uint32 {
	if !p.hasTmp {
		p.r.VarNames = append(p.r.VarNames, TempName)
		p.temp = uint32(len(p.r.VarNames) - 1)
		p.hasTmp = true
	}
	return p.temp
}
