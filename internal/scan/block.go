package scan

import (
	"strings"

	"github.com/wippyai/bytegoto/code"
)

// Kind classifies a block frame.
type Kind uint8

const (
	KindLoop Kind = iota + 1
	KindForIter
	KindTryExcept
	KindTryFinally
	KindExcept
	KindFinally
	KindScope
	KindAsyncScope
)

var kindNames = [...]string{
	KindLoop:       "loop",
	KindForIter:    "for",
	KindTryExcept:  "try/except",
	KindTryFinally: "try/finally",
	KindExcept:     "except",
	KindFinally:    "finally",
	KindScope:      "with",
	KindAsyncScope: "async with",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Handler reports whether k is the body of an exception or finally handler.
func (k Kind) Handler() bool {
	return k == KindExcept || k == KindFinally
}

// Handle refers to a block in a Result's arena. Two stacks share a block
// exactly when they hold the same handle.
type Handle int32

// NoHandle marks an absent block reference.
const NoHandle Handle = -1

// Block is one frame of the static block stack.
type Block struct {
	// Origin is the instruction that introduced the block: a SETUP_* for
	// regions and their handlers, FOR_ITER for iteration frames.
	Origin code.Opcode

	Kind Kind

	// Target is the absolute handler or exit offset.
	Target int

	// Offset is where the introducing instruction starts.
	Offset int

	// Region links a handler block to the protected region it serves.
	Region Handle

	// Iterates is set on loop blocks that drive a FOR_ITER.
	Iterates bool

	// Async is set on iterating blocks whose iterator came from GET_AITER.
	Async bool
}

// Generic reports whether a resource scope was entered through the
// generic SETUP_FINALLY form rather than a dedicated setup instruction.
func (b *Block) Generic() bool {
	return b.Origin == code.OpSetupFinally && (b.Kind == KindScope || b.Kind == KindAsyncScope)
}

// Stack is a snapshot of the block stack, outermost first.
type Stack []Handle

// Top returns the innermost handle, or NoHandle when empty.
func (s Stack) Top() Handle {
	if len(s) == 0 {
		return NoHandle
	}
	return s[len(s)-1]
}

// CommonDepth returns the length of the longest shared prefix.
func CommonDepth(a, b Stack) int {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// arena owns every block of one scan.
type arena struct {
	blocks []Block
}

func (a *arena) add(b Block) Handle {
	a.blocks = append(a.blocks, b)
	return Handle(len(a.blocks) - 1)
}

func (a *arena) get(h Handle) *Block {
	return &a.blocks[h]
}

func (a *arena) describe(s Stack) string {
	parts := make([]string, len(s))
	for i, h := range s {
		parts[i] = a.blocks[h].Kind.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
