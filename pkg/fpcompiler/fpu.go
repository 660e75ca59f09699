package fpcompiler

import (
	"github.com/raymyers/ralph-jit/pkg/emitter"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// x87 status word bits as seen in ah after fnstsw ax
const (
	statusCF = 0x01 << 8
	statusZF = 0x40 << 8
)

type fpuCompiler struct {
	ec     *emitter.Context
	arrays Arrays
}

func (c *fpuCompiler) Add(typ jvmtype.Type) { c.binary(opAdd, typ, x86.FADDP) }

func (c *fpuCompiler) Sub(typ jvmtype.Type) { c.binary(opSub, typ, x86.FSUBP) }

func (c *fpuCompiler) Mul(typ jvmtype.Type) { c.binary(opMul, typ, x86.FMULP) }

func (c *fpuCompiler) Div(typ jvmtype.Type) { c.binary(opDiv, typ, x86.FDIVP) }

// binary emits "left op right" as a popping x87 instruction. The operand
// at the top is consumed and the result replaces the other one.
func (c *fpuCompiler) binary(op binOp, typ jvmtype.Type, instr x86.Op) {
	ec := c.ec
	checkFloat(op.String(), typ)
	left, right := popPair(ec, typ)
	if foldPair(ec, op, typ, left, right) {
		return
	}
	reg := c.prepare2(right, left, op.commutative())
	result := ec.FPUItem(reg)
	ec.PopFPU().Release(ec)
	ec.Emit(instr, 0, reg)
	ec.VStack().Push(result)
}

func (c *fpuCompiler) Rem(typ jvmtype.Type) {
	ec := c.ec
	checkFloat("rem", typ)
	left, right := popPair(ec, typ)
	if foldPair(ec, opRem, typ, left, right) {
		return
	}
	reg := c.prepare2(right, left, false)
	c.fxchST1(reg)
	// left is at st1 below right; fprem wants the dividend on top
	ec.PopFPU().Release(ec)
	ec.Emit(x86.FXCH, 0, x86.ST1)
	ec.Emit(x86.FPREM, 0)
	ec.Emit(x86.FSTP, 0, x86.ST1)
	ec.VStack().Push(ec.FPUItem(x86.ST0))
}

func (c *fpuCompiler) Neg(typ jvmtype.Type) {
	ec := c.ec
	checkFloat("neg", typ)
	v := ec.VStack().PopType(typ)
	if foldNeg(ec, typ, v) {
		return
	}
	c.prepare1(v)
	ec.Emit(x86.FCHS, 0)
	ec.VStack().Push(v)
}

// Convert loads the value onto the x87 stack and stores it back as the
// target type, letting fild/fistp do the conversion.
func (c *fpuCompiler) Convert(from, to jvmtype.Type) {
	ec := c.ec
	if !from.IsFloat() && !to.IsFloat() {
		emitter.Fatalf("convert", nil, emitter.ErrTypeMismatch, "%s to %s is not a floating point conversion", from, to)
	}
	v := ec.VStack().PopType(from)
	if v.IsConstant() {
		res := foldConvert(ec, v, to)
		v.Release(ec)
		ec.VStack().Push(res)
		return
	}
	c.prepare1(v)
	ec.PopFPU().Release(ec)
	result := ec.CreateFPUStack(to)
	result.LoadToGPR(ec)
	ec.VStack().Push(result)
}

// Compare emits fcmpl/fcmpg. The x87 compare only sets flags, so -1, 0
// or 1 is produced in a fresh register by a three way branch.
func (c *fpuCompiler) Compare(gt bool, typ jvmtype.Type) {
	ec := c.ec
	checkFloat("compare", typ)
	left, right := popPair(ec, typ)
	if foldComparePair(ec, gt, left, right) {
		return
	}
	// fnstsw writes ax. Both registers are claimed before the operands are
	// positioned: a spill flushes the virtual stack and may reorder the
	// x87 stack.
	ec.RequestRegister(x86.EAX, nil)
	resr := ec.RequestWordRegister(jvmtype.Int)

	reg := c.prepare2(right, left, false)
	c.fxchST1(reg)
	ec.Emit(x86.XOR, 0, resr, resr)

	if !gt {
		ec.Fxch(x86.ST1)
	}
	ec.Emit(x86.FUCOMPP, 0)
	ec.Emit(x86.FNSTSW, 0)
	if ec.Mode().Is32() {
		ec.Emit(x86.SAHF, 0)
	}
	ec.PopFPU().Release(ec)
	ec.PopFPU().Release(ec)

	base := ec.InstructionLabel()
	gtLabel := x86.Label(base + "gt")
	ltLabel := x86.Label(base + "lt")
	endLabel := x86.Label(base + "end")
	if ec.Mode().Is32() {
		ec.Emit(x86.JA, 0, gtLabel)
		ec.Emit(x86.JB, 0, ltLabel)
	} else {
		// no sahf: test the status word bits directly
		ec.Emit(x86.TEST, 0, x86.EAX, x86.Imm(statusCF|statusZF))
		ec.Emit(x86.JZ, 0, gtLabel)
		ec.Emit(x86.TEST, 0, x86.EAX, x86.Imm(statusCF))
		ec.Emit(x86.JNZ, 0, ltLabel)
	}
	ec.Emit(x86.JMP, 0, endLabel)

	// st0 was right for fcmpg and left for fcmpl
	above, below := x86.INC, x86.DEC
	if gt {
		above, below = x86.DEC, x86.INC
	}
	ec.Bind(gtLabel)
	ec.Emit(above, 0, resr)
	ec.Emit(x86.JMP, 0, endLabel)
	ec.Bind(ltLabel)
	ec.Emit(below, 0, resr)
	ec.Bind(endLabel)

	ec.VStack().Push(ec.CreateGPR(jvmtype.Int, resr))
	ec.ReleaseRegister(x86.EAX)
}

func (c *fpuCompiler) FPALoad(typ jvmtype.Type) {
	ec := c.ec
	checkFloat("fpaload", typ)
	mem, size := loadArrayElement(ec, c.arrays, typ)
	ec.EnsureFPUCapacity(1)
	ec.Emit(x86.FLD, size, mem.elem)
	mem.release(ec)
	ec.VStack().Push(ec.CreateFPUStack(typ))
}

// prepare1 brings v to the top of the x87 stack
func (c *fpuCompiler) prepare1(v *emitter.Item) {
	ec := c.ec
	if v.IsFPUStack() {
		ec.FxchToTos(v)
		return
	}
	ec.EnsureFPUCapacity(1)
	v.PushToFPU(ec)
}

// prepare2 puts both operands on the x87 stack with top at st0 and returns
// the register of other. With commutative set either operand may end up
// on top, and the register of the one that did not is returned.
func (c *fpuCompiler) prepare2(top, other *emitter.Item, commutative bool) x86.Register {
	ec := c.ec
	tOnFPU, oOnFPU := top.IsFPUStack(), other.IsFPUStack()
	extra := 0
	if !tOnFPU {
		extra++
	}
	if !oOnFPU {
		extra++
	}
	ec.EnsureFPUCapacity(extra)

	switch {
	case tOnFPU && oOnFPU:
		switch {
		case ec.IsFPUTos(top):
			return ec.FPURegister(other)
		case ec.IsFPUTos(other):
			reg := ec.FPURegister(top)
			if !commutative {
				ec.Fxch(reg)
			}
			return reg
		}
		if commutative && depth(ec, other) < depth(ec, top) {
			ec.Fxch(ec.FPURegister(other))
			return ec.FPURegister(top)
		}
		ec.Fxch(ec.FPURegister(top))
		return ec.FPURegister(other)
	case !tOnFPU && !oOnFPU:
		top.PushToFPU(ec)
		other.PushToFPU(ec)
		if !commutative {
			ec.Fxch(x86.ST1)
		}
		return x86.ST1
	case tOnFPU:
		other.PushToFPU(ec)
		reg := ec.FPURegister(top)
		if !commutative {
			ec.Fxch(reg)
		}
		return reg
	}
	top.PushToFPU(ec)
	return ec.FPURegister(other)
}

// fxchST1 moves the value in reg to st1, keeping st0 in place
func (c *fpuCompiler) fxchST1(reg x86.Register) {
	if reg == x86.ST1 {
		return
	}
	c.ec.Fxch(reg)
	c.ec.Fxch(x86.ST1)
	c.ec.Fxch(reg)
}

func depth(ec *emitter.Context, it *emitter.Item) int {
	return ec.FPURegister(it).Nr()
}
