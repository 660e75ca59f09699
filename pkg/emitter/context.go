// Package emitter tracks the location of every operand stack value while a
// method is compiled and emits the moves needed to transition values
// between registers, frame slots, constants, the native stack and the x87
// stack.
//
// Values are deferred: a constant or local stays symbolic until an
// operation needs it in a register. When registers run out the virtual
// stack is flushed to the native stack.
package emitter

import (
	"errors"
	"fmt"
	"io"

	"github.com/raymyers/ralph-jit/pkg/fpustack"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/regpool"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// DefaultMaxStack is used when Options.MaxStack is not set
const DefaultMaxStack = 64

// Options configures one compilation
type Options struct {
	MaxStack int       // declared maximum operand stack depth in slots
	Verify   bool      // check item state after each transition
	Trace    io.Writer // flush and spill log; nil disables it
}

// Stats counts the expensive transitions of a compilation
type Stats struct {
	Flushes    int // whole virtual stack pushed to the native stack
	Spills     int // items migrated out of a requested register
	FPUFlushes int // flushes forced by a full x87 stack
}

// Context holds all per-compilation state: the register pools, the
// virtual and x87 stacks, the item factory and the output writer.
type Context struct {
	mode      x86.Mode
	w         x86.Writer
	gprs      *regpool.Pool
	xmms      *regpool.Pool
	vstack    *VirtualStack
	fpu       *fpustack.Stack
	factory   *Factory
	wide      wideStrategy
	verify    bool
	trace     io.Writer
	stats     Stats
	instLabel string
	labelSeq  int
}

// NewContext creates the state for compiling one method into w
func NewContext(w x86.Writer, opts Options) *Context {
	maxStack := opts.MaxStack
	if maxStack <= 0 {
		maxStack = DefaultMaxStack
	}
	mode := w.Mode()
	fpu := fpustack.New()
	ec := &Context{
		mode:    mode,
		w:       w,
		gprs:    regpool.NewGPRs(mode),
		xmms:    regpool.NewXMMs(mode),
		fpu:     fpu,
		vstack:  newVirtualStack(maxStack, fpu),
		factory: NewFactory(),
		verify:  opts.Verify,
		trace:   opts.Trace,
	}
	if mode.Is64() {
		ec.wide = wide64{}
	} else {
		ec.wide = wide32{}
	}
	return ec
}

// Mode returns the code generation mode
func (ec *Context) Mode() x86.Mode { return ec.mode }

// Writer returns the instruction sink
func (ec *Context) Writer() x86.Writer { return ec.w }

// GPRs returns the general purpose register pool
func (ec *Context) GPRs() *regpool.Pool { return ec.gprs }

// XMMs returns the SSE register pool
func (ec *Context) XMMs() *regpool.Pool { return ec.xmms }

// VStack returns the virtual operand stack
func (ec *Context) VStack() *VirtualStack { return ec.vstack }

// FPU returns the x87 stack model
func (ec *Context) FPU() *fpustack.Stack { return ec.fpu }

// Factory returns the item factory
func (ec *Context) Factory() *Factory { return ec.factory }

// Stats returns the transition counters so far
func (ec *Context) Stats() Stats { return ec.stats }

// Emit appends one instruction
func (ec *Context) Emit(op x86.Op, size int, args ...x86.Operand) {
	ec.w.Emit(x86.Instr{Op: op, Size: size, Args: args})
}

// Bind places a label at the current position
func (ec *Context) Bind(l x86.Label) {
	ec.Emit(x86.LABEL, 0, l)
}

// SetInstructionLabel sets the label of the bytecode instruction being compiled
func (ec *Context) SetInstructionLabel(l string) { ec.instLabel = l }

// InstructionLabel returns a label base unique to the current instruction.
// Without an instruction label a fresh one is generated on every call.
func (ec *Context) InstructionLabel() string {
	if ec.instLabel != "" {
		return ec.instLabel
	}
	ec.labelSeq++
	return fmt.Sprintf("L%d", ec.labelSeq)
}

// SP returns the stack pointer register
func (ec *Context) SP() x86.Register { return ec.mode.SP() }

// BP returns the frame pointer register
func (ec *Context) BP() x86.Register { return ec.mode.BP() }

// SlotSize returns the size of one native stack slot
func (ec *Context) SlotSize() int { return ec.mode.SlotSize() }

// StackBytes returns the native stack space taken by a value of typ.
// Wide values take two slots in 64-bit mode, the upper one unused.
func (ec *Context) StackBytes(typ jvmtype.Type) int {
	if typ.IsWide() {
		return 2 * ec.SlotSize()
	}
	return ec.SlotSize()
}

// WordSize returns the register width used for a word value of typ
func (ec *Context) WordSize(typ jvmtype.Type) int {
	if typ == jvmtype.Reference && ec.mode.Is64() {
		return 8
	}
	return 4
}

// slotReg returns the view of reg used by push and pop
func (ec *Context) slotReg(reg x86.Register) x86.Register {
	return reg.Resize(ec.SlotSize())
}

func (ec *Context) sp(disp int) x86.Mem { return x86.MemAt(ec.SP(), disp) }

func (ec *Context) bp(disp int) x86.Mem { return x86.MemAt(ec.BP(), disp) }

// adjustSP moves the stack pointer by delta bytes without touching flags
func (ec *Context) adjustSP(delta int) {
	ec.Emit(x86.LEA, 0, ec.SP(), ec.sp(delta))
}

func (ec *Context) tracef(format string, args ...any) {
	if ec.trace == nil {
		return
	}
	fmt.Fprintf(ec.trace, "ralph-jit: "+format+"\n", args...)
}

// checkLive aborts when an operation is applied to a released item
func (ec *Context) checkLive(it *Item, op string) {
	if it.released {
		Fatal(op, it, ErrReleased)
	}
	if it.loc == nil {
		Fatalf(op, it, ErrInvalidKind, "item has no kind")
	}
}

func (ec *Context) verifyItem(it *Item) {
	if !ec.verify {
		return
	}
	if err := it.Verify(ec); err != nil {
		Fatal("verify", it, err)
	}
}

// Verify checks the item against the pools and stacks of ec
func (it *Item) Verify(ec *Context) error {
	if it.released {
		return ErrReleased
	}
	switch loc := it.loc.(type) {
	case inGPR:
		if ec.mode.Is32() {
			if it.typ.IsWide() {
				return fmt.Errorf("wide value in single register %s in 32-bit mode: %w", loc.reg, ErrInvalidState)
			}
			if !loc.reg.IsGPR32() {
				return fmt.Errorf("%s is not a 32-bit register: %w", loc.reg, ErrInvalidState)
			}
		} else {
			want64 := it.typ == jvmtype.Reference || it.typ.IsWide()
			if want64 != loc.reg.IsGPR64() {
				return fmt.Errorf("%s has the wrong width for %s: %w", loc.reg, it.typ, ErrInvalidState)
			}
		}
		return ec.checkOwner(ec.gprs, loc.reg, it)
	case inPair:
		if ec.mode.Is64() {
			return fmt.Errorf("register pair in 64-bit mode: %w", ErrInvalidState)
		}
		if loc.lsb == loc.msb || !loc.lsb.IsGPR32() || !loc.msb.IsGPR32() {
			return fmt.Errorf("bad register pair %s:%s: %w", loc.lsb, loc.msb, ErrInvalidState)
		}
		if err := ec.checkOwner(ec.gprs, loc.lsb, it); err != nil {
			return err
		}
		return ec.checkOwner(ec.gprs, loc.msb, it)
	case inXMM:
		if !it.typ.IsFloat() {
			return fmt.Errorf("%s value in %s: %w", it.typ, loc.reg, ErrInvalidState)
		}
		return ec.checkOwner(ec.xmms, loc.reg, it)
	case onFPU:
		if !ec.fpu.Contains(it.id) {
			return fmt.Errorf("not on the fpu stack: %w", ErrInvalidState)
		}
	case onStack:
		if !ec.vstack.nativeContains(it) {
			return fmt.Errorf("not on the native stack: %w", ErrInvalidState)
		}
	case inLocal, inConst:
	default:
		return ErrInvalidKind
	}
	return nil
}

func (ec *Context) checkOwner(p *regpool.Pool, reg x86.Register, it *Item) error {
	owner, inuse := p.Owner(reg)
	if !inuse || owner != it.id {
		return fmt.Errorf("%s is owned by %s, not %s: %w", reg, owner, it.id, ErrInvalidState)
	}
	return nil
}

// CheckClean reports state left over at the end of a method: values on
// the virtual, native or x87 stacks, claimed registers or live items.
func (ec *Context) CheckClean() error {
	var errs []error
	if n := ec.vstack.Len(); n > 0 {
		errs = append(errs, fmt.Errorf("%d values left on the virtual stack", n))
	}
	if n := ec.vstack.NativeDepth(); n > 0 {
		errs = append(errs, fmt.Errorf("%d values left on the native stack", n))
	}
	if n := ec.fpu.Len(); n > 0 {
		errs = append(errs, fmt.Errorf("%d values left on the fpu stack", n))
	}
	if err := ec.gprs.Reset(); err != nil {
		errs = append(errs, err)
	}
	if err := ec.xmms.Reset(); err != nil {
		errs = append(errs, err)
	}
	if n := ec.factory.Live(); n > 0 {
		errs = append(errs, fmt.Errorf("%d items not released", n))
	}
	return errors.Join(errs...)
}
