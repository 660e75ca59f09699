package fpcompiler

import (
	"github.com/raymyers/ralph-jit/pkg/emitter"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

type sseCompiler struct {
	ec     *emitter.Context
	arrays Arrays
}

// scalar instructions indexed by binOp, single then double precision
var sseOps = [...][2]x86.Op{
	opAdd: {x86.ADDSS, x86.ADDSD},
	opSub: {x86.SUBSS, x86.SUBSD},
	opMul: {x86.MULSS, x86.MULSD},
	opDiv: {x86.DIVSS, x86.DIVSD},
}

func precision(typ jvmtype.Type) (index, size int) {
	if typ == jvmtype.Double {
		return 1, 8
	}
	return 0, 4
}

func (c *sseCompiler) Add(typ jvmtype.Type) { c.binary(opAdd, typ) }

func (c *sseCompiler) Sub(typ jvmtype.Type) { c.binary(opSub, typ) }

func (c *sseCompiler) Mul(typ jvmtype.Type) { c.binary(opMul, typ) }

func (c *sseCompiler) Div(typ jvmtype.Type) { c.binary(opDiv, typ) }

// binary emits left op= right with left in an xmm register. A local right
// operand is used straight from its frame slot.
func (c *sseCompiler) binary(op binOp, typ jvmtype.Type) {
	ec := c.ec
	checkFloat(op.String(), typ)
	left, right := popPair(ec, typ)
	if foldPair(ec, op, typ, left, right) {
		return
	}
	if !right.IsLocal() {
		right.LoadToXMM(ec)
	}
	left.LoadToXMM(ec)

	i, size := precision(typ)
	var src x86.Operand
	if right.IsLocal() {
		src = x86.MemAt(ec.BP(), int(right.OffsetToFP()))
	} else {
		src = right.XMMRegister()
	}
	ec.Emit(sseOps[op][i], size, left.XMMRegister(), src)
	right.Release(ec)
	ec.VStack().Push(left)
}

func (c *sseCompiler) Rem(typ jvmtype.Type) {
	ec := c.ec
	checkFloat("rem", typ)
	left, right := popPair(ec, typ)
	if foldPair(ec, opRem, typ, left, right) {
		return
	}
	emitter.Fatalf("sse rem", left, emitter.ErrNotImplemented, "%s remainder", typ)
}

func (c *sseCompiler) Neg(typ jvmtype.Type) {
	ec := c.ec
	checkFloat("neg", typ)
	v := ec.VStack().PopType(typ)
	if foldNeg(ec, typ, v) {
		return
	}
	emitter.Fatalf("sse neg", v, emitter.ErrNotImplemented, "%s negate", typ)
}

func (c *sseCompiler) Compare(gt bool, typ jvmtype.Type) {
	ec := c.ec
	checkFloat("compare", typ)
	left, right := popPair(ec, typ)
	if foldComparePair(ec, gt, left, right) {
		return
	}
	emitter.Fatalf("sse compare", left, emitter.ErrNotImplemented, "%s compare", typ)
}

// Convert uses the scalar conversion instructions. Conversions to int
// truncate; long operands need 64-bit registers.
func (c *sseCompiler) Convert(from, to jvmtype.Type) {
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
	if (from == jvmtype.Long || to == jvmtype.Long) && ec.Mode().Is32() {
		emitter.Fatalf("sse convert", v, emitter.ErrNotImplemented, "%s to %s in 32-bit mode", from, to)
	}

	var res *emitter.Item
	switch {
	case from.IsIntegral():
		v.Load(ec)
		xmm := ec.RequestXMMRegister(to)
		op := x86.CVTSI2SS
		if to == jvmtype.Double {
			op = x86.CVTSI2SD
		}
		ec.Emit(op, 0, xmm, v.Register())
		v.Release(ec)
		res = ec.CreateXMM(to, xmm)
	case to.IsIntegral():
		v.LoadToXMM(ec)
		var reg x86.Register
		if to == jvmtype.Long {
			reg, _ = ec.RequestDoubleWordRegisters(to)
		} else {
			reg = ec.RequestWordRegister(to)
		}
		op := x86.CVTTSS2SI
		if from == jvmtype.Double {
			op = x86.CVTTSD2SI
		}
		ec.Emit(op, 0, reg, v.XMMRegister())
		v.Release(ec)
		res = ec.CreateGPR(to, reg)
	case from == to:
		res = v
	default:
		v.LoadToXMM(ec)
		xmm := ec.RequestXMMRegister(to)
		op := x86.CVTSS2SD
		if from == jvmtype.Double {
			op = x86.CVTSD2SS
		}
		ec.Emit(op, 0, xmm, v.XMMRegister())
		v.Release(ec)
		res = ec.CreateXMM(to, xmm)
	}
	ec.VStack().Push(res)
}

func (c *sseCompiler) FPALoad(typ jvmtype.Type) {
	ec := c.ec
	checkFloat("fpaload", typ)
	a, size := loadArrayElement(ec, c.arrays, typ)
	xmm := ec.RequestXMMRegister(typ)
	op := x86.MOVSS
	if typ == jvmtype.Double {
		op = x86.MOVSD
	}
	ec.Emit(op, size, xmm, a.elem)
	a.release(ec)
	ec.VStack().Push(ec.CreateXMM(typ, xmm))
}
