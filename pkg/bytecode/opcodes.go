package bytecode

import (
	"github.com/raymyers/ralph-jit/pkg/emitter"
	"github.com/raymyers/ralph-jit/pkg/fpcompiler"
	"github.com/raymyers/ralph-jit/pkg/jvmtype"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

type operand int

const (
	noOperand operand = iota
	intOperand
	floatOperand
	localOperand
	symbolOperand
	optionalSymbol
)

type opcode struct {
	operand operand
	slots   int    // local slots addressed, for loads and stores
	fpOp    string // operation name for fpcompiler.Refuses
	emit    func(mc *methodCompiler, in Instruction)
}

var opcodes = map[string]opcode{
	"nop": {emit: func(*methodCompiler, Instruction) {}},

	"iconst":      {operand: intOperand, emit: func(mc *methodCompiler, in Instruction) { mc.push(mc.ec.CreateIntConst(int32(in.Int))) }},
	"lconst":      {operand: intOperand, emit: func(mc *methodCompiler, in Instruction) { mc.push(mc.ec.CreateLongConst(in.Int)) }},
	"fconst":      {operand: floatOperand, emit: func(mc *methodCompiler, in Instruction) { mc.push(mc.ec.CreateFloatConst(float32(in.Float))) }},
	"dconst":      {operand: floatOperand, emit: func(mc *methodCompiler, in Instruction) { mc.push(mc.ec.CreateDoubleConst(in.Float)) }},
	"aconst_null": {emit: func(mc *methodCompiler, in Instruction) { mc.push(mc.ec.CreateRefConst("")) }},
	"aconst":      {operand: optionalSymbol, emit: func(mc *methodCompiler, in Instruction) { mc.push(mc.ec.CreateRefConst(in.Sym)) }},

	"iload": load(jvmtype.Int),
	"lload": load(jvmtype.Long),
	"fload": load(jvmtype.Float),
	"dload": load(jvmtype.Double),
	"aload": load(jvmtype.Reference),

	"istore": store(jvmtype.Int),
	"lstore": store(jvmtype.Long),
	"fstore": store(jvmtype.Float),
	"dstore": store(jvmtype.Double),
	"astore": store(jvmtype.Reference),

	"iadd": intOp(emitter.OpAdd),
	"isub": intOp(emitter.OpSub),
	"imul": intOp(emitter.OpMul),
	"iand": intOp(emitter.OpAnd),
	"ior":  intOp(emitter.OpOr),
	"ixor": intOp(emitter.OpXor),
	"ineg": {emit: func(mc *methodCompiler, in Instruction) { mc.push(mc.ec.IntNeg(mc.vs().PopInt())) }},

	"ladd": longOp(emitter.OpAdd),
	"lsub": longOp(emitter.OpSub),
	"lmul": longOp(emitter.OpMul),
	"land": longOp(emitter.OpAnd),
	"lor":  longOp(emitter.OpOr),
	"lxor": longOp(emitter.OpXor),
	"lneg": {emit: func(mc *methodCompiler, in Instruction) { mc.push(mc.ec.LongNeg(mc.vs().PopType(jvmtype.Long))) }},

	"i2l": {emit: func(mc *methodCompiler, in Instruction) { mc.push(mc.ec.IntToLong(mc.vs().PopInt())) }},
	"l2i": {emit: func(mc *methodCompiler, in Instruction) { mc.push(mc.ec.LongToInt(mc.vs().PopType(jvmtype.Long))) }},

	"fadd": fpOp("add", jvmtype.Float, fpcompiler.Compiler.Add),
	"fsub": fpOp("sub", jvmtype.Float, fpcompiler.Compiler.Sub),
	"fmul": fpOp("mul", jvmtype.Float, fpcompiler.Compiler.Mul),
	"fdiv": fpOp("div", jvmtype.Float, fpcompiler.Compiler.Div),
	"frem": fpOp("rem", jvmtype.Float, fpcompiler.Compiler.Rem),
	"fneg": fpOp("neg", jvmtype.Float, fpcompiler.Compiler.Neg),
	"dadd": fpOp("add", jvmtype.Double, fpcompiler.Compiler.Add),
	"dsub": fpOp("sub", jvmtype.Double, fpcompiler.Compiler.Sub),
	"dmul": fpOp("mul", jvmtype.Double, fpcompiler.Compiler.Mul),
	"ddiv": fpOp("div", jvmtype.Double, fpcompiler.Compiler.Div),
	"drem": fpOp("rem", jvmtype.Double, fpcompiler.Compiler.Rem),
	"dneg": fpOp("neg", jvmtype.Double, fpcompiler.Compiler.Neg),

	"i2f": convert(jvmtype.Int, jvmtype.Float),
	"i2d": convert(jvmtype.Int, jvmtype.Double),
	"l2f": convert(jvmtype.Long, jvmtype.Float),
	"l2d": convert(jvmtype.Long, jvmtype.Double),
	"f2i": convert(jvmtype.Float, jvmtype.Int),
	"f2l": convert(jvmtype.Float, jvmtype.Long),
	"f2d": convert(jvmtype.Float, jvmtype.Double),
	"d2i": convert(jvmtype.Double, jvmtype.Int),
	"d2l": convert(jvmtype.Double, jvmtype.Long),
	"d2f": convert(jvmtype.Double, jvmtype.Float),

	"fcmpl": compare(false, jvmtype.Float),
	"fcmpg": compare(true, jvmtype.Float),
	"dcmpl": compare(false, jvmtype.Double),
	"dcmpg": compare(true, jvmtype.Double),

	"faload": {fpOp: "aload", emit: func(mc *methodCompiler, in Instruction) { mc.fpc.FPALoad(jvmtype.Float) }},
	"daload": {fpOp: "aload", emit: func(mc *methodCompiler, in Instruction) { mc.fpc.FPALoad(jvmtype.Double) }},

	"pop":  {emit: (*methodCompiler).pop},
	"pop2": {emit: (*methodCompiler).pop2},
	"dup":  {emit: (*methodCompiler).dup},
	"swap": {emit: (*methodCompiler).swap},

	"flush":  {emit: func(mc *methodCompiler, in Instruction) { mc.ec.Flush() }},
	"invoke": {operand: symbolOperand, emit: (*methodCompiler).invoke},

	"ireturn": ret(jvmtype.Int),
	"lreturn": ret(jvmtype.Long),
	"freturn": ret(jvmtype.Float),
	"dreturn": ret(jvmtype.Double),
	"areturn": ret(jvmtype.Reference),
	"return":  ret(jvmtype.Void),
}

func load(typ jvmtype.Type) opcode {
	return opcode{operand: localOperand, slots: typ.Category(), emit: func(mc *methodCompiler, in Instruction) {
		mc.push(mc.ec.CreateLocal(typ, mc.offset(in, typ)))
	}}
}

func store(typ jvmtype.Type) opcode {
	return opcode{operand: localOperand, slots: typ.Category(), emit: func(mc *methodCompiler, in Instruction) {
		ofs := mc.offset(in, typ)
		v := mc.vs().PopType(typ)
		mc.ec.LoadAliases(ofs, typ)
		mc.ec.StoreLocal(v, ofs)
	}}
}

func intOp(op emitter.IntOp) opcode {
	return opcode{emit: func(mc *methodCompiler, in Instruction) {
		right := mc.vs().PopInt()
		left := mc.vs().PopInt()
		mc.push(mc.ec.IntOperation(op, left, right))
	}}
}

func longOp(op emitter.IntOp) opcode {
	return opcode{emit: func(mc *methodCompiler, in Instruction) {
		right := mc.vs().PopType(jvmtype.Long)
		left := mc.vs().PopType(jvmtype.Long)
		mc.push(mc.ec.LongOperation(op, left, right))
	}}
}

func fpOp(name string, typ jvmtype.Type, fn func(fpcompiler.Compiler, jvmtype.Type)) opcode {
	return opcode{fpOp: name, emit: func(mc *methodCompiler, in Instruction) { fn(mc.fpc, typ) }}
}

func convert(from, to jvmtype.Type) opcode {
	name := "convert"
	if from == jvmtype.Long || to == jvmtype.Long {
		name = "convert_long"
	}
	return opcode{fpOp: name, emit: func(mc *methodCompiler, in Instruction) { mc.fpc.Convert(from, to) }}
}

func compare(gt bool, typ jvmtype.Type) opcode {
	name := "cmpl"
	if gt {
		name = "cmpg"
	}
	return opcode{fpOp: name, emit: func(mc *methodCompiler, in Instruction) { mc.fpc.Compare(gt, typ) }}
}

func ret(typ jvmtype.Type) opcode {
	return opcode{emit: func(mc *methodCompiler, in Instruction) { mc.ret(typ) }}
}

// returnRegister is where int, long and reference results are left
func returnRegister(mode x86.Mode) x86.Register {
	if mode.Is64() {
		return x86.RAX
	}
	return x86.EAX
}
