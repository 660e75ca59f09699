package fpcompiler

import (
	"math"

	"github.com/raymyers/ralph-jit/pkg/emitter"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
)

type binOp int

const (
	opAdd binOp = iota
	opSub
	opMul
	opDiv
	opRem
)

var binOpNames = [...]string{"add", "sub", "mul", "div", "rem"}

func (op binOp) String() string { return binOpNames[op] }

func (op binOp) commutative() bool { return op == opAdd || op == opMul }

func (op binOp) fold(a, b float64) float64 {
	switch op {
	case opAdd:
		return a + b
	case opSub:
		return a - b
	case opMul:
		return a * b
	case opDiv:
		return a / b
	}
	return math.Mod(a, b)
}

// fpValue returns a numeric constant as a float64
func fpValue(it *emitter.Item) float64 {
	switch it.Type() {
	case jvmtype.Int:
		return float64(it.IntValue())
	case jvmtype.Long:
		return float64(it.LongValue())
	case jvmtype.Float:
		return float64(it.FloatValue())
	}
	return it.DoubleValue()
}

// createConst creates a constant of typ from v with Java conversion rules
func createConst(ec *emitter.Context, typ jvmtype.Type, v float64) *emitter.Item {
	switch typ {
	case jvmtype.Int:
		return ec.CreateIntConst(toInt32(v))
	case jvmtype.Long:
		return ec.CreateLongConst(toInt64(v))
	case jvmtype.Float:
		return ec.CreateFloatConst(float32(v))
	}
	return ec.CreateDoubleConst(v)
}

// toInt32 converts like d2i: NaN is 0 and out of range values saturate
func toInt32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

// toInt64 converts like d2l
func toInt64(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}

// foldConvert converts a constant. long to float rounds once, directly.
func foldConvert(ec *emitter.Context, v *emitter.Item, to jvmtype.Type) *emitter.Item {
	if v.Type() == jvmtype.Long && to == jvmtype.Float {
		return ec.CreateFloatConst(float32(v.LongValue()))
	}
	return createConst(ec, to, fpValue(v))
}

// foldCompare compares like fcmpl/fcmpg
func foldCompare(gt bool, a, b float64) int32 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		if gt {
			return 1
		}
		return -1
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

// popPair pops the right then the left operand of a binary operation
func popPair(ec *emitter.Context, typ jvmtype.Type) (left, right *emitter.Item) {
	right = ec.VStack().PopType(typ)
	left = ec.VStack().PopType(typ)
	return left, right
}

// foldPair pushes the folded result and reports true when both operands
// are constants.
func foldPair(ec *emitter.Context, op binOp, typ jvmtype.Type, left, right *emitter.Item) bool {
	if !left.IsConstant() || !right.IsConstant() {
		return false
	}
	res := createConst(ec, typ, op.fold(fpValue(left), fpValue(right)))
	left.Release(ec)
	right.Release(ec)
	ec.VStack().Push(res)
	return true
}

// foldComparePair pushes the folded comparison of two constants
func foldComparePair(ec *emitter.Context, gt bool, left, right *emitter.Item) bool {
	if !left.IsConstant() || !right.IsConstant() {
		return false
	}
	res := ec.CreateIntConst(foldCompare(gt, fpValue(left), fpValue(right)))
	left.Release(ec)
	right.Release(ec)
	ec.VStack().Push(res)
	return true
}

// foldNeg pushes the negated constant and reports whether v was constant
func foldNeg(ec *emitter.Context, typ jvmtype.Type, v *emitter.Item) bool {
	if !v.IsConstant() {
		return false
	}
	res := createConst(ec, typ, -fpValue(v))
	v.Release(ec)
	ec.VStack().Push(res)
	return true
}
