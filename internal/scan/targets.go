package scan

import "math/bits"

// Targets is the set of byte offsets some instruction jumps to.
// Offsets are dense and bounded by the buffer length, so a bitmap wins
// over a map.
type Targets struct {
	words []uint64
}

// NewTargets creates a set able to hold offsets below size without growing.
func NewTargets(size int) *Targets {
	return &Targets{words: make([]uint64, (size+63)/64)}
}

// Add marks off as a jump target.
func (t *Targets) Add(off int) {
	w := off / 64
	if w >= len(t.words) {
		grown := make([]uint64, w+1)
		copy(grown, t.words)
		t.words = grown
	}
	t.words[w] |= 1 << (uint(off) % 64)
}

// Has reports whether off is a jump target.
func (t *Targets) Has(off int) bool {
	w := off / 64
	if off < 0 || w >= len(t.words) {
		return false
	}
	return t.words[w]&(1<<(uint(off)%64)) != 0
}

// Offsets returns the targets in ascending order.
func (t *Targets) Offsets() []int {
	var out []int
	for i, word := range t.words {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			out = append(out, i*64+bit)
			word &= word - 1
		}
	}
	return out
}

// Len returns the number of distinct targets.
func (t *Targets) Len() int {
	n := 0
	for _, word := range t.words {
		n += bits.OnesCount64(word)
	}
	return n
}
