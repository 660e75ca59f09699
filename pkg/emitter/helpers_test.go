package emitter

import (
	"errors"
	"strings"
	"testing"

	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

func newTestContext(mode x86.Mode) (*Context, *x86.Assembler) {
	asm := x86.NewAssembler(mode)
	return NewContext(asm, Options{MaxStack: 16, Verify: true}), asm
}

// run fails the test on an internal error raised by fn
func run(t *testing.T, fn func()) {
	t.Helper()
	if err := Guard(fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// gprItem creates a word item in a newly requested register
func gprItem(ec *Context, typ jvmtype.Type) *Item {
	return ec.CreateGPR(typ, ec.RequestWordRegister(typ))
}

// pairItem creates a long held in exactly lsb:msb
func pairItem(ec *Context, lsb, msb x86.Register) *Item {
	ec.RequestRegisters(nil, lsb, msb)
	return ec.CreatePair(jvmtype.Long, lsb, msb)
}

func lines(code []x86.Instr) []string { return x86.Strings(code) }

func equalLines(t *testing.T, got []x86.Instr, want []string) {
	t.Helper()
	g := lines(got)
	if len(g) != len(want) {
		t.Fatalf("got %d instructions %q, want %d %q", len(g), g, len(want), want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Errorf("instruction %d: got %q, want %q", i, g[i], want[i])
		}
	}
}

func isErr(err, target error) bool { return errors.Is(err, target) }

func contains(s, sub string) bool { return strings.Contains(s, sub) }
