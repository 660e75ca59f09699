package bytecode

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/raymyers/ralph-jit/pkg/config"
	"github.com/raymyers/ralph-jit/pkg/emitter"
	"github.com/raymyers/ralph-jit/pkg/fpcompiler"
	"github.com/raymyers/ralph-jit/pkg/frame"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// Result is the compiled code of one method
type Result struct {
	Name    string
	Mode    x86.Mode
	Backend fpcompiler.Backend
	Code    []x86.Instr
	Stats   emitter.Stats
	Trace   string // flush and spill log when tracing is enabled
}

// methodCompiler holds the state of one method compilation
type methodCompiler struct {
	m      *Method
	ec     *emitter.Context
	fpc    fpcompiler.Compiler
	fp     fpcompiler.Backend
	layout *frame.Layout
}

// Compile compiles one method. Internal code generator errors are
// returned with the offending instruction; no code is returned with them.
func Compile(m *Method, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	mode := cfg.MachineMode()
	layout, err := frame.NewLayout(mode, m.Args, m.Locals)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	backend, err := cfg.Backend(m.FPOps())
	if err != nil {
		return nil, err
	}

	maxStack := m.Stack
	if cfg.MaxStack > 0 {
		maxStack = cfg.MaxStack
	}
	var trace *strings.Builder
	opts := emitter.Options{MaxStack: maxStack, Verify: cfg.Verify}
	if cfg.Trace {
		trace = &strings.Builder{}
		opts.Trace = trace
	}

	asm := x86.NewAssembler(mode)
	ec := emitter.NewContext(asm, opts)
	fpc, err := fpcompiler.New(backend, ec, cfg.Arrays())
	if err != nil {
		return nil, err
	}
	mc := &methodCompiler{m: m, ec: ec, fpc: fpc, fp: backend, layout: layout}

	if err := mc.compile(); err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	if err := asm.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	res := &Result{
		Name:    m.Name,
		Mode:    mode,
		Backend: backend,
		Code:    asm.Instructions(),
		Stats:   ec.Stats(),
	}
	if trace != nil {
		res.Trace = trace.String()
	}
	return res, nil
}

// CompileAll parses a script and compiles its methods concurrently. The
// results are in source order; every method that fails contributes one
// error and no result.
func CompileAll(src string, cfg *config.Config) ([]*Result, error) {
	methods, err := Parse(src)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, len(methods))
	errs := make([]error, len(methods))
	var wg sync.WaitGroup
	for i, m := range methods {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = Compile(m, cfg)
		}()
	}
	wg.Wait()

	var ok []*Result
	for _, r := range results {
		if r != nil {
			ok = append(ok, r)
		}
	}
	return ok, errors.Join(errs...)
}

func (mc *methodCompiler) compile() error {
	mc.prologue()
	for i, in := range mc.m.Code {
		mc.ec.SetInstructionLabel(fmt.Sprintf("%s_%d", mc.m.Name, i))
		op := opcodes[in.Op]
		if err := emitter.Guard(func() { op.emit(mc, in) }); err != nil {
			return fmt.Errorf("line %d: %s: %w", in.Line, in, err)
		}
	}
	mc.ec.SetInstructionLabel("")
	err := emitter.Guard(func() {
		if mc.vs().Len() > 0 {
			mc.ec.EndBasicBlock()
		}
	})
	if err != nil {
		return err
	}
	return mc.ec.CheckClean()
}

func (mc *methodCompiler) vs() *emitter.VirtualStack { return mc.ec.VStack() }

func (mc *methodCompiler) push(it *emitter.Item) { mc.vs().Push(it) }

// offset returns the frame offset of the local an instruction addresses
func (mc *methodCompiler) offset(in Instruction, typ jvmtype.Type) int16 {
	var (
		ofs int16
		err error
	)
	if typ.IsWide() {
		ofs, err = mc.layout.WideOffset(int(in.Int))
	} else {
		ofs, err = mc.layout.Offset(int(in.Int))
	}
	if err != nil {
		emitter.Fatal(in.Op, nil, fmt.Errorf("%v: %w", err, emitter.ErrInvalidState))
	}
	return ofs
}

// prologue sets up the frame pointer and reserves the non-argument locals
func (mc *methodCompiler) prologue() {
	ec := mc.ec
	ec.Emit(x86.PUSH, 0, ec.BP())
	ec.Emit(x86.MOV, 0, ec.BP(), ec.SP())
	if n := (mc.layout.MaxLocals - mc.layout.ArgSlots) * ec.SlotSize(); n > 0 {
		ec.Emit(x86.SUB, 0, ec.SP(), x86.Imm(n))
	}
}

func (mc *methodCompiler) epilogue() {
	ec := mc.ec
	ec.Emit(x86.MOV, 0, ec.SP(), ec.BP())
	ec.Emit(x86.POP, 0, ec.BP())
	ec.Emit(x86.RET, 0)
}

func (mc *methodCompiler) pop(in Instruction) {
	v := mc.vs().Pop()
	if v.Type().IsWide() {
		emitter.Fatalf("pop", v, emitter.ErrTypeMismatch, "pop of a two slot value")
	}
	v.Discard(mc.ec)
}

func (mc *methodCompiler) pop2(in Instruction) {
	v := mc.vs().Pop()
	if v.Type().IsWide() {
		v.Discard(mc.ec)
		return
	}
	w := mc.vs().Pop()
	if w.Type().IsWide() {
		emitter.Fatalf("pop2", w, emitter.ErrTypeMismatch, "splits a two slot value")
	}
	v.Discard(mc.ec)
	w.Discard(mc.ec)
}

func (mc *methodCompiler) dup(in Instruction) {
	v := mc.vs().Peek()
	if v == nil {
		emitter.Fatal("dup", nil, emitter.ErrStackUnderflow)
	}
	if v.Type().IsWide() {
		emitter.Fatalf("dup", v, emitter.ErrTypeMismatch, "dup of a two slot value")
	}
	mc.push(v.Clone(mc.ec))
}

// swap exchanges the two top values. Values on the native stack are loaded
// first so that the native stack order stays that of the virtual stack.
func (mc *methodCompiler) swap(in Instruction) {
	a := mc.vs().Pop()
	b := mc.vs().Pop()
	if a.Type().IsWide() || b.Type().IsWide() {
		emitter.Fatalf("swap", a, emitter.ErrTypeMismatch, "swap of a two slot value")
	}
	a.LoadIf(mc.ec, emitter.KindStack)
	b.LoadIf(mc.ec, emitter.KindStack)
	mc.push(a)
	mc.push(b)
}

// invoke calls a runtime symbol taking no operands. The virtual stack is
// flushed only when a value would not survive the call.
func (mc *methodCompiler) invoke(in Instruction) {
	ec := mc.ec
	flush := ec.FPU().Len() > 0
	mc.vs().Visit(func(_ int, it *emitter.Item) {
		if it.UsesVolatileRegister(ec.GPRs()) {
			flush = true
		}
	})
	if flush {
		ec.Flush()
	}
	ec.Emit(x86.CALL, 0, x86.Label(in.Sym))
}

// ret leaves the result in the return location, drops whatever else is
// on the operand stack and emits the epilogue
func (mc *methodCompiler) ret(typ jvmtype.Type) {
	ec := mc.ec
	var v *emitter.Item
	if typ != jvmtype.Void {
		if typ.IsFloat() && mc.fp == fpcompiler.FPU {
			if top := mc.vs().Peek(); top != nil && !top.IsFPUStack() {
				ec.EnsureFPUCapacity(1)
			}
		}
		v = mc.vs().PopType(typ)
		mc.pinResult(v)
	}
	for mc.vs().Len() > 0 {
		mc.vs().Pop().Discard(ec)
	}
	if v != nil {
		mc.finishResult(v)
	}
	mc.epilogue()
}

// pinResult moves the result to its return location. The item stays
// accounted for so that discarding the rest of the stack cannot touch it.
func (mc *methodCompiler) pinResult(v *emitter.Item) {
	ec := mc.ec
	switch {
	case v.Type().IsFloat() && mc.fp == fpcompiler.FPU:
		if !v.IsFPUStack() {
			v.PushToFPU(ec)
		}
	case v.Type().IsFloat():
		v.LoadToXMM(ec)
	case v.Type() == jvmtype.Long && ec.Mode().Is32():
		v.LoadTo32(ec, x86.EAX, x86.EDX)
	default:
		v.LoadTo(ec, returnRegister(ec.Mode()))
	}
}

func (mc *methodCompiler) finishResult(v *emitter.Item) {
	ec := mc.ec
	switch {
	case v.IsFPUStack():
		ec.FxchToTos(v)
		ec.PopFPU()
	case v.IsXMM():
		if reg := v.XMMRegister(); reg != x86.XMM0 {
			op := x86.MOVSS
			if v.Type() == jvmtype.Double {
				op = x86.MOVSD
			}
			ec.Emit(op, 0, x86.XMM0, reg)
		}
	}
	v.Release(ec)
}
