package code

// Iter decodes instructions lazily from a buffer.
//
//	it := code.NewIter(d, buf)
//	for it.Next() {
//		ins := it.Instruction()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
type Iter struct {
	err error
	buf []byte
	cur Instruction
	d   Dialect
	pos int
}

// NewIter returns an iterator positioned before the first instruction.
func NewIter(d Dialect, buf []byte) *Iter {
	return &Iter{d: d, buf: buf}
}

// Next advances to the next instruction. It returns false at the end of
// the buffer or on a decode error.
func (it *Iter) Next() bool {
	if it.err != nil || it.pos >= len(it.buf) {
		return false
	}
	ins, next, err := Decode(it.d, it.buf, it.pos)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = ins
	it.pos = next
	return true
}

// Instruction returns the current instruction.
func (it *Iter) Instruction() Instruction {
	return it.cur
}

// Err returns the decode error that stopped iteration, if any.
func (it *Iter) Err() error {
	return it.err
}

// Instructions decodes a whole buffer.
func Instructions(d Dialect, buf []byte) ([]Instruction, error) {
	var out []Instruction
	it := NewIter(d, buf)
	for it.Next() {
		out = append(out, it.Instruction())
	}
	return out, it.Err()
}
