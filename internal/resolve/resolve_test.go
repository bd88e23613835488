package resolve_test

import (
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/wippyai/bytegoto/asm"
	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/errors"
	"github.com/wippyai/bytegoto/internal/resolve"
	"github.com/wippyai/bytegoto/internal/scan"
)

const tempSlot = 7

type testPool struct {
	consts []any
	temps  int
}

func (p *testPool) Const(v any) uint32 {
	if i := slices.Index(p.consts, v); i >= 0 {
		return uint32(i)
	}
	p.consts = append(p.consts, v)
	return uint32(len(p.consts) - 1)
}

func (p *testPool) Temp() uint32 {
	p.temps++
	return tempSlot
}

func resolveSource(t *testing.T, src string, d code.Dialect) ([]resolve.Patch, *testPool, error) {
	t.Helper()
	r, err := asm.Assemble(src, d)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	res, err := scan.Scan(r, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	pool := &testPool{}
	patches, err := resolve.Resolve(r, res, pool)
	return patches, pool, err
}

func render(ops []resolve.Op) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		switch {
		case o.Local != resolve.NoLocal:
			parts[i] = fmt.Sprintf("%s @%d", o.Op, o.Local)
		case o.Op.HasArg():
			parts[i] = fmt.Sprintf("%s %d", o.Op, o.Arg)
		default:
			parts[i] = o.Op.String()
		}
	}
	return strings.Join(parts, "; ")
}

const loopSource = `
.args xs
    SETUP_LOOP @after
    LOAD_FAST xs
    GET_ITER
top:
    FOR_ITER @done
    STORE_FAST x
    %s
    label .body
    JUMP_ABSOLUTE @top
done:
    POP_BLOCK
after:
    %s
    label .end
    LOAD_CONST 0
    RETURN_VALUE
`

func TestResolveLoopExit(t *testing.T) {
	src := fmt.Sprintf(loopSource, "goto .end", "")
	patches, pool, err := resolveSource(t, src, code.Wordcode)
	if err != nil {
		t.Fatal(err)
	}
	if len(patches) != 1 {
		t.Fatalf("patches = %d", len(patches))
	}
	p := patches[0]
	want := fmt.Sprintf("POP_BLOCK; JUMP_ABSOLUTE %d", p.Label.Start)
	if got := render(p.Ops); got != want {
		t.Errorf("ops = %s, want %s", got, want)
	}
	if p.Exits != 1 || p.Entries != 0 {
		t.Errorf("exits %d entries %d", p.Exits, p.Entries)
	}
	if pool.temps != 0 || len(pool.consts) != 0 {
		t.Error("plain exits need no pool slots")
	}
}

func TestResolveLoopEntry(t *testing.T) {
	src := fmt.Sprintf(loopSource, "", "LOAD_FAST xs\n    goto.param .body")
	patches, pool, err := resolveSource(t, src, code.Wordcode)
	if err != nil {
		t.Fatal(err)
	}
	p := patches[0]
	want := fmt.Sprintf("STORE_FAST %d; SETUP_LOOP %d; LOAD_FAST %d; GET_ITER; JUMP_ABSOLUTE %d",
		tempSlot, afterOffset(t, src), tempSlot, p.Label.Start)
	if got := render(p.Ops); got != want {
		t.Errorf("ops = %s\nwant  %s", got, want)
	}
	if pool.temps != 1 {
		t.Errorf("temps = %d", pool.temps)
	}
}

func TestResolveAsyncLoopEntry(t *testing.T) {
	src := strings.Replace(fmt.Sprintf(loopSource, "", "LOAD_FAST xs\n    goto.param .body"), "GET_ITER", "GET_AITER", 1)
	patches, _, err := resolveSource(t, src, code.Wordcode)
	if err != nil {
		t.Fatal(err)
	}
	p := patches[0]
	want := fmt.Sprintf("STORE_FAST %d; SETUP_LOOP %d; LOAD_FAST %d; GET_AITER; JUMP_ABSOLUTE %d",
		tempSlot, afterOffset(t, src), tempSlot, p.Label.Start)
	if got := render(p.Ops); got != want {
		t.Errorf("ops = %s\nwant  %s", got, want)
	}
}

// afterOffset returns the SETUP_LOOP target of the first instruction.
func afterOffset(t *testing.T, src string) int {
	t.Helper()
	r := asm.MustAssemble(src, code.Wordcode)
	ins, _, err := code.Decode(r.Dialect, r.Code, 0)
	if err != nil {
		t.Fatal(err)
	}
	target, _ := code.Target(r.Dialect, ins)
	return target
}

func TestResolveMissingParams(t *testing.T) {
	src := fmt.Sprintf(loopSource, "", "goto .body")
	_, _, err := resolveSource(t, src, code.Wordcode)
	if err == nil {
		t.Fatal("expected error")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseResolve, Kind: errors.KindMissingParams}) {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "jump into loop block without the necessary params") {
		t.Errorf("message: %v", err)
	}
}

func TestResolveUnknownLabel(t *testing.T) {
	_, _, err := resolveSource(t, "goto .nowhere\nLOAD_CONST None\nRETURN_VALUE\n", code.Wordcode)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseResolve, Kind: errors.KindUnknownLabel}) {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), `unknown label "nowhere"`) {
		t.Errorf("message: %v", err)
	}
}

func TestResolveNestedMultiEntry(t *testing.T) {
	src := `
.args xs
    LOAD_FAST xs
    goto.params .inner
    LOAD_FAST xs
    GET_ITER
outer:
    FOR_ITER @outer_done
    STORE_FAST x
    LOAD_FAST xs
    GET_ITER
inner_top:
    FOR_ITER @inner_done
    STORE_FAST y
    label .inner
    JUMP_ABSOLUTE @inner_top
inner_done:
    JUMP_ABSOLUTE @outer
outer_done:
    LOAD_CONST None
    RETURN_VALUE
`
	patches, pool, err := resolveSource(t, src, code.Compact)
	if err != nil {
		t.Fatal(err)
	}
	p := patches[0]
	want := fmt.Sprintf("STORE_FAST 7; LOAD_FAST 7; LOAD_CONST 0; BINARY_SUBSCR; GET_ITER; "+
		"LOAD_FAST 7; LOAD_CONST 1; BINARY_SUBSCR; GET_ITER; JUMP_ABSOLUTE %d", p.Label.Start/2)
	if got := render(p.Ops); got != want {
		t.Errorf("ops = %s\nwant  %s", got, want)
	}
	if !slices.Equal(pool.consts, []any{int64(0), int64(1)}) {
		t.Errorf("consts = %v", pool.consts)
	}
}

const exceptSource = `
    SETUP_EXCEPT @handler
    %s
    LOAD_CONST 1
    LOAD_CONST 0
    BINARY_TRUE_DIVIDE
    POP_TOP
    POP_BLOCK
    JUMP_FORWARD @end
handler:
    POP_TOP
    POP_TOP
    POP_TOP
    label .caught
    goto .out
    POP_EXCEPT
    JUMP_FORWARD @end
end:
    label .out
    %s
    LOAD_CONST None
    RETURN_VALUE
`

func TestResolveExceptExit(t *testing.T) {
	patches, _, err := resolveSource(t, fmt.Sprintf(exceptSource, "", ""), code.Wordcode)
	if err != nil {
		t.Fatal(err)
	}
	p := patches[0]
	want := fmt.Sprintf("POP_EXCEPT; JUMP_ABSOLUTE %d", p.Label.Start)
	if got := render(p.Ops); got != want {
		t.Errorf("ops = %s, want %s", got, want)
	}
}

func TestResolveExceptEntry(t *testing.T) {
	for _, d := range []code.Dialect{code.Wordcode, code.Compact} {
		t.Run(d.Name, func(t *testing.T) {
			src := fmt.Sprintf(exceptSource, "", "LOAD_CONST 1\n    goto.param .caught")
			setup := "SETUP_EXCEPT"
			if d == code.Compact {
				src = strings.Replace(src, "SETUP_EXCEPT", "SETUP_FINALLY", 1)
				setup = "SETUP_FINALLY"
			}
			patches, pool, err := resolveSource(t, src, d)
			if err != nil {
				t.Fatal(err)
			}
			p := patches[1]
			want := fmt.Sprintf("STORE_FAST 7; %s @4; LOAD_CONST 0; RAISE_VARARGS 1; POP_TOP; POP_TOP; POP_TOP; JUMP_ABSOLUTE %d",
				setup, p.Label.Start/d.JumpUnit)
			if got := render(p.Ops); got != want {
				t.Errorf("ops = %s\nwant  %s", got, want)
			}
			if pool.consts[0] != nil {
				t.Errorf("consts = %v", pool.consts)
			}
		})
	}
}

func TestResolveScopes(t *testing.T) {
	src := `
.args c
    LOAD_FAST c
    %[1]s
    POP_TOP
    %[2]s
    label .inside
    goto .out
    POP_BLOCK
    LOAD_CONST None
cleanup:
    %[3]s
    END_FINALLY
    label .out
    LOAD_FAST c
    goto.param .inside
    LOAD_CONST None
    RETURN_VALUE
`
	tests := []struct {
		name    string
		setup   string
		generic string
		cleanup string
		enter   string
	}{
		{"with", "SETUP_WITH @cleanup", "", "WITH_CLEANUP", "SETUP_WITH %d; POP_TOP"},
		{"async with", "SETUP_ASYNC_WITH @cleanup", "", "ASYNC_WITH_CLEANUP", "SETUP_ASYNC_WITH %d; POP_TOP"},
		{"generic with", "BEFORE_WITH", "SETUP_FINALLY @cleanup", "WITH_CLEANUP", "BEFORE_WITH; POP_TOP; SETUP_FINALLY %d"},
		{"generic async with", "BEFORE_ASYNC_WITH", "SETUP_FINALLY @cleanup", "ASYNC_WITH_CLEANUP", "BEFORE_ASYNC_WITH; POP_TOP; SETUP_FINALLY %d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patches, _, err := resolveSource(t, fmt.Sprintf(src, tt.setup, tt.generic, tt.cleanup), code.Wordcode)
			if err != nil {
				t.Fatal(err)
			}
			exit, entry := patches[0], patches[1]
			want := fmt.Sprintf("POP_BLOCK; POP_TOP; JUMP_ABSOLUTE %d", exit.Label.Start)
			if got := render(exit.Ops); got != want {
				t.Errorf("exit ops = %s, want %s", got, want)
			}
			handler := exit.Label.Start - 4 // WITH_CLEANUP; END_FINALLY
			want = fmt.Sprintf("STORE_FAST 7; LOAD_FAST 7; "+tt.enter+"; JUMP_ABSOLUTE %d", handler, entry.Label.Start)
			if got := render(entry.Ops); got != want {
				t.Errorf("entry ops = %s\nwant      %s", got, want)
			}
		})
	}
}

func TestResolveFinallyExit(t *testing.T) {
	src := `
    SETUP_FINALLY @fin
    POP_BLOCK
    LOAD_CONST None
fin:
    goto .end
    END_FINALLY
    label .end
    LOAD_CONST None
    RETURN_VALUE
`
	patches, _, err := resolveSource(t, src, code.Wordcode)
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("POP_FINALLY; JUMP_ABSOLUTE %d", patches[0].Label.Start)
	if got := render(patches[0].Ops); got != want {
		t.Errorf("ops = %s, want %s", got, want)
	}
}

func TestResolveCleanupEntryRejected(t *testing.T) {
	src := `
.args c
    LOAD_FAST c
    SETUP_WITH @cleanup
    POP_TOP
    LOAD_CONST 1
    goto.param .inner
    POP_BLOCK
    LOAD_CONST None
cleanup:
    WITH_CLEANUP
    label .inner
    END_FINALLY
    LOAD_CONST None
    RETURN_VALUE
`
	_, _, err := resolveSource(t, src, code.Wordcode)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseResolve, Kind: errors.KindBlockCrossing}) {
		t.Fatalf("unexpected error: %v", err)
	}
}
