package scan_test

import (
	stderrors "errors"
	"slices"
	"strings"
	"testing"

	"github.com/wippyai/bytegoto/asm"
	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/errors"
	"github.com/wippyai/bytegoto/internal/scan"
)

func mustScan(t *testing.T, src string, d code.Dialect) *scan.Result {
	t.Helper()
	r, err := asm.Assemble(src, d)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	res, err := scan.Scan(r, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return res
}

func kinds(ks ...scan.Kind) []scan.Kind {
	return ks
}

func TestScanLoopExit(t *testing.T) {
	res := mustScan(t, `
    SETUP_LOOP @after
    LOAD_GLOBAL range
    LOAD_CONST 10
    CALL_FUNCTION 1
    GET_ITER
top:
    FOR_ITER @done
    STORE_FAST i
    goto .end
    JUMP_ABSOLUTE @top
done:
    POP_BLOCK
after:
    label .end
    LOAD_CONST 0
    RETURN_VALUE
`, code.Wordcode)

	if len(res.Gotos) != 1 {
		t.Fatalf("gotos = %d, want 1", len(res.Gotos))
	}
	g := res.Gotos[0]
	if g.Label != "end" || g.HasParams {
		t.Errorf("goto = %+v", g)
	}
	if got := res.Kinds(g.Stack); !slices.Equal(got, kinds(scan.KindLoop)) {
		t.Errorf("goto stack = %v", got)
	}
	if !res.Block(g.Stack[0]).Iterates {
		t.Error("loop driving FOR_ITER should be marked iterating")
	}
	l := res.Labels["end"]
	if l == nil {
		t.Fatal("label end not found")
	}
	if len(l.Stack) != 0 {
		t.Errorf("label stack = %s", res.Describe(l.Stack))
	}
	if l.End-l.Start != 6 {
		t.Errorf("label span = [%d,%d)", l.Start, l.End)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings: %v", res.Warnings)
	}
}

const tryExcept = `
    SETUP_EXCEPT @handler
    LOAD_CONST 1
    LOAD_CONST 0
    BINARY_TRUE_DIVIDE
    POP_TOP
    POP_BLOCK
    JUMP_FORWARD @end
handler:
    DUP_TOP
    LOAD_GLOBAL Exception
    COMPARE_OP exc
    POP_JUMP_IF_FALSE @reraise
    POP_TOP
    POP_TOP
    POP_TOP
    goto .out
    POP_EXCEPT
    JUMP_FORWARD @end
reraise:
    END_FINALLY
end:
    label .out
    LOAD_CONST None
    RETURN_VALUE
`

func TestScanExceptHandler(t *testing.T) {
	tests := []struct {
		dialect code.Dialect
		setup   string
	}{
		{code.Wordcode, "SETUP_EXCEPT"},
		{code.Legacy, "SETUP_EXCEPT"},
		{code.Compact, "SETUP_FINALLY"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name, func(t *testing.T) {
			src := strings.Replace(tryExcept, "SETUP_EXCEPT", tt.setup, 1)
			res := mustScan(t, src, tt.dialect)

			if len(res.Gotos) != 1 {
				t.Fatalf("gotos = %d, want 1", len(res.Gotos))
			}
			g := res.Gotos[0]
			if got := res.Kinds(g.Stack); !slices.Equal(got, kinds(scan.KindExcept)) {
				t.Fatalf("goto stack = %v", got)
			}
			region := res.Block(res.Block(g.Stack[0]).Region)
			if region.Kind != scan.KindTryExcept {
				t.Errorf("region kind = %s, want try/except", region.Kind)
			}
			if len(res.Labels["out"].Stack) != 0 {
				t.Errorf("label stack = %s", res.Describe(res.Labels["out"].Stack))
			}
			if len(res.Warnings) != 0 {
				t.Errorf("warnings: %v", res.Warnings)
			}
		})
	}
}

func TestScanGenericScopeRelabel(t *testing.T) {
	res := mustScan(t, `
.args c
    LOAD_FAST c
    BEFORE_WITH
    POP_TOP
    SETUP_FINALLY @cleanup
    goto .out
    POP_BLOCK
    LOAD_CONST None
cleanup:
    WITH_CLEANUP
    END_FINALLY
    label .out
    LOAD_CONST None
    RETURN_VALUE
`, code.Compact)

	g := res.Gotos[0]
	if got := res.Kinds(g.Stack); !slices.Equal(got, kinds(scan.KindScope)) {
		t.Fatalf("goto stack = %v", got)
	}
	b := res.Block(g.Stack[0])
	if !b.Generic() {
		t.Error("scope entered through SETUP_FINALLY should be generic")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings: %v", res.Warnings)
	}
}

func TestScanDedicatedScopes(t *testing.T) {
	tests := []struct {
		setup   string
		cleanup string
		kind    scan.Kind
	}{
		{"SETUP_WITH", "WITH_CLEANUP", scan.KindScope},
		{"SETUP_ASYNC_WITH", "ASYNC_WITH_CLEANUP", scan.KindAsyncScope},
	}
	for _, tt := range tests {
		t.Run(tt.setup, func(t *testing.T) {
			res := mustScan(t, `
.args c
    LOAD_FAST c
    `+tt.setup+` @cleanup
    POP_TOP
    label .inside
    goto .inside
    POP_BLOCK
    LOAD_CONST None
cleanup:
    `+tt.cleanup+`
    END_FINALLY
    LOAD_CONST None
    RETURN_VALUE
`, code.Wordcode)
			l := res.Labels["inside"]
			if got := res.Kinds(l.Stack); !slices.Equal(got, kinds(tt.kind)) {
				t.Fatalf("label stack = %v", got)
			}
			if res.Block(l.Stack[0]).Generic() {
				t.Error("dedicated scope reported generic")
			}
			if scan.CommonDepth(l.Stack, res.Gotos[0].Stack) != 1 {
				t.Error("goto and label share the scope block")
			}
		})
	}
}

func TestScanForIterFrames(t *testing.T) {
	res := mustScan(t, `
.args xs
    LOAD_FAST xs
    GET_ITER
top:
    FOR_ITER @done
    STORE_FAST x
    label .body
    goto .after
    JUMP_ABSOLUTE @top
done:
    label .after
    LOAD_CONST None
    RETURN_VALUE
`, code.Compact)

	body := res.Labels["body"]
	if got := res.Kinds(body.Stack); !slices.Equal(got, kinds(scan.KindForIter)) {
		t.Fatalf("body stack = %v", got)
	}
	if len(res.Labels["after"].Stack) != 0 {
		t.Errorf("after stack = %s", res.Describe(res.Labels["after"].Stack))
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings: %v", res.Warnings)
	}
}

func TestScanAsyncIteration(t *testing.T) {
	const body = `
.args xs
    LOAD_FAST xs
    %s
top:
    FOR_ITER @done
    STORE_FAST x
    label .body
    JUMP_ABSOLUTE @top
done:
    LOAD_CONST None
    RETURN_VALUE
`
	for _, d := range []code.Dialect{code.Wordcode, code.Compact} {
		for _, getter := range []string{"GET_ITER", "GET_AITER"} {
			src := strings.Replace(body, "%s", getter, 1)
			if d.LoopBlocks {
				src = strings.Replace(src, "    LOAD_FAST xs\n", "    SETUP_LOOP @done\n    LOAD_FAST xs\n", 1)
			}
			res := mustScan(t, src, d)
			st := res.Labels["body"].Stack
			if len(st) != 1 {
				t.Fatalf("%s %s: body stack = %s", d.Name, getter, res.Describe(st))
			}
			b := res.Block(st[0])
			if !b.Iterates && d.LoopBlocks {
				t.Errorf("%s %s: loop not marked iterating", d.Name, getter)
			}
			if want := getter == "GET_AITER"; b.Async != want {
				t.Errorf("%s %s: async = %v, want %v", d.Name, getter, b.Async, want)
			}
		}
	}
}

func TestScanBlockIdentity(t *testing.T) {
	loop := `
    SETUP_LOOP @after%[1]s
    LOAD_FAST xs
    GET_ITER
top%[1]s:
    FOR_ITER @done%[1]s
    STORE_FAST x
    label .l%[1]s
    JUMP_ABSOLUTE @top%[1]s
done%[1]s:
    POP_BLOCK
after%[1]s:
`
	src := ".args xs\n" + strings.ReplaceAll(loop, "%[1]s", "1") + strings.ReplaceAll(loop, "%[1]s", "2") +
		"    LOAD_CONST None\n    RETURN_VALUE\n"
	res := mustScan(t, src, code.Wordcode)

	a, b := res.Labels["l1"].Stack, res.Labels["l2"].Stack
	if !slices.Equal(res.Kinds(a), res.Kinds(b)) {
		t.Fatalf("kinds differ: %v %v", res.Kinds(a), res.Kinds(b))
	}
	if scan.CommonDepth(a, b) != 0 {
		t.Error("textually identical loops must be distinct blocks")
	}
}

func TestScanDeadCode(t *testing.T) {
	res := mustScan(t, `
    LOAD_CONST None
    RETURN_VALUE
    POP_BLOCK
    POP_EXCEPT
    goto .x
    label .x
`, code.Wordcode)

	if len(res.Gotos) != 0 || len(res.Labels) != 0 {
		t.Errorf("dead markers recorded: %v %v", res.Gotos, res.Labels)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("dead code produced warnings: %v", res.Warnings)
	}
}

func TestScanParams(t *testing.T) {
	res := mustScan(t, `
    LOAD_CONST 1
    goto.param .a
    LOAD_CONST 1
    goto.params .b
    LOAD_CONST None
    RETURN_VALUE
`, code.Legacy)

	if len(res.Gotos) != 2 {
		t.Fatalf("gotos = %d, want 2", len(res.Gotos))
	}
	a, b := res.Gotos[0], res.Gotos[1]
	if a.Label != "a" || !a.HasParams || a.Multi {
		t.Errorf("param goto = %+v", a)
	}
	if b.Label != "b" || !b.HasParams || !b.Multi {
		t.Errorf("params goto = %+v", b)
	}
}

func TestScanDuplicateLabel(t *testing.T) {
	r := asm.MustAssemble("label .a\nlabel .a\nLOAD_CONST None\nRETURN_VALUE\n", code.Wordcode)
	_, err := scan.Scan(r, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseScan, Kind: errors.KindDuplicateLabel}) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestScanWarnings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		text string
	}{
		{"pop on empty", "POP_BLOCK\nLOAD_CONST None\nRETURN_VALUE\n", "POP_BLOCK on empty"},
		{"unclosed", "SETUP_LOOP @end\nend:\nLOAD_CONST None\nRETURN_VALUE\n", "not empty at end"},
		{"except mismatch", "SETUP_LOOP @end\nPOP_EXCEPT\nend:\nLOAD_CONST None\nRETURN_VALUE\n", "POP_EXCEPT with loop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustScan(t, tt.src, code.Wordcode)
			if len(res.Warnings) == 0 {
				t.Fatal("expected a warning")
			}
			if !strings.Contains(res.Warnings[0].Message, tt.text) {
				t.Errorf("warning %q does not contain %q", res.Warnings[0], tt.text)
			}
		})
	}
}
