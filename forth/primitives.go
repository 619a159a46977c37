package forth

import "strings"

// installPrimitives seeds the dictionary with the entire primitive word
// set: stack manipulators, arithmetic, comparison, bitwise, memory,
// return-stack transfer, addressing, and the control-flow/multitasking
// words whose compile-time behavior lives in controlflow.go and
// multitask.go. It also populates vm.refs with the XTs the compiler emits
// directly, so neither outer.go nor controlflow.go ever needs a name
// lookup for these.
func (vm *VM) installPrimitives() {
	d := vm.dict

	vm.refs.lit = d.AddPrimitive("(lit)", opLit)
	vm.refs.flit = d.AddPrimitive("(flit)", opFlit)
	vm.refs.exit = d.AddPrimitive("exit", opExit)
	vm.refs.branch = d.AddPrimitive("(branch)", opBranch)
	vm.refs.zeroBranch = d.AddPrimitive("(0branch)", opZeroBranch)
	vm.refs.do = d.AddPrimitive("(do)", opDo)
	vm.refs.qdo = d.AddPrimitive("(?do)", opQDo)
	vm.refs.loop = d.AddPrimitive("(loop)", opLoop)
	vm.refs.plusLoop = d.AddPrimitive("(+loop)", opPlusLoop)
	vm.refs.does = d.AddPrimitive("(does>)", opDoes)
	vm.refs.postpone = d.AddPrimitive("(postpone)", wordPostponeRuntime)
	d.AddPrimitive("(s\")", opSQuote)

	// --- stack manipulation ---
	d.AddPrimitive("dup", primDup)
	vm.refs.drop = d.AddPrimitive("drop", primDrop)
	d.AddPrimitive("swap", primSwap)
	vm.refs.over = d.AddPrimitive("over", primOver)
	d.AddPrimitive("rot", primRot)
	d.AddPrimitive("-rot", primMinusRot)
	d.AddPrimitive("nip", primNip)
	d.AddPrimitive("tuck", primTuck)
	d.AddPrimitive("?dup", primQDup)
	d.AddPrimitive("pick", primPick)
	d.AddPrimitive("roll", primRoll)
	d.AddPrimitive("depth", primDepth)
	d.AddPrimitive("2dup", prim2Dup)
	d.AddPrimitive("2drop", prim2Drop)
	d.AddPrimitive("2over", prim2Over)
	d.AddPrimitive("2swap", prim2Swap)

	// --- return stack ---
	vm.refs.toR = d.AddPrimitive(">r", primToR)
	d.AddPrimitive("r>", primRFrom)
	d.AddPrimitive("r@", primRFetch)
	d.AddPrimitive("2>r", prim2ToR)
	d.AddPrimitive("2r>", prim2RFrom)
	d.AddPrimitive("2r@", prim2RFetch)
	d.AddPrimitive("rdepth", primRDepth)

	// --- arithmetic ---
	d.AddPrimitive("+", primAdd)
	d.AddPrimitive("-", primSub)
	d.AddPrimitive("*", primMul)
	d.AddPrimitive("/", primDiv)
	d.AddPrimitive("mod", primMod)
	d.AddPrimitive("/mod", primSlashMod)
	d.AddPrimitive("*/", primStarSlash)
	d.AddPrimitive("*/mod", primStarSlashMod)
	d.AddPrimitive("negate", primNegate)
	d.AddPrimitive("abs", primAbs)
	d.AddPrimitive("min", primMin)
	d.AddPrimitive("max", primMax)
	d.AddPrimitive("1+", prim1Plus)
	d.AddPrimitive("1-", prim1Minus)
	d.AddPrimitive("2+", prim2Plus)
	d.AddPrimitive("2-", prim2Minus)
	d.AddPrimitive("2*", prim2Star)
	d.AddPrimitive("2/", prim2Slash)

	// --- comparison ---
	d.AddPrimitive("=", primEqual)
	vm.refs.equal = d.dictFindMust("=")
	d.AddPrimitive("<>", primNotEqual)
	d.AddPrimitive("<", primLess)
	d.AddPrimitive(">", primGreater)
	d.AddPrimitive("<=", primLessEqual)
	d.AddPrimitive(">=", primGreaterEqual)
	d.AddPrimitive("0=", primZeroEqual)
	d.AddPrimitive("0<", primZeroLess)
	d.AddPrimitive("0>", primZeroGreater)
	d.AddPrimitive("u<", primULess)
	d.AddPrimitive("u>", primUGreater)
	d.AddPrimitive("0<>", primZeroNotEqual)
	d.AddPrimitive("within", primWithin)

	// --- bitwise / logical ---
	d.AddPrimitive("and", primAnd)
	d.AddPrimitive("or", primOr)
	d.AddPrimitive("xor", primXor)
	d.AddPrimitive("invert", primInvert)
	d.AddPrimitive("lshift", primLshift)
	d.AddPrimitive("rshift", primRshift)
	d.AddPrimitive("not", primZeroEqual)

	// --- memory ---
	d.AddPrimitive("@", primFetch)
	d.AddPrimitive("!", primStore)
	d.AddPrimitive("+!", primPlusStore)
	d.AddPrimitive("c@", primCFetch)
	d.AddPrimitive("c!", primCStore)
	d.AddPrimitive("here", primHere)
	d.AddPrimitive("allot", primAllot)
	d.AddPrimitive(",", primComma)
	d.AddPrimitive("c,", primCComma)
	d.AddPrimitive("cells", primCells)
	d.AddPrimitive("cell+", primCellPlus)
	d.AddPrimitive("chars", primChars)
	d.AddPrimitive("char+", primCharPlus)
	d.AddPrimitive("move", primMove)
	d.AddPrimitive("fill", primFill)
	d.AddPrimitive("base", primBase)
	d.AddPrimitive("decimal", primDecimal)
	d.AddPrimitive("hex", primHex)
	d.AddPrimitive("align", primAlign)
	d.AddPrimitive("aligned", primAligned)

	// --- floating point ---
	d.AddPrimitive("f+", primFAdd)
	d.AddPrimitive("f-", primFSub)
	d.AddPrimitive("f*", primFMul)
	d.AddPrimitive("f/", primFDiv)
	d.AddPrimitive("fnegate", primFNegate)
	d.AddPrimitive("f0=", primFZeroEqual)
	d.AddPrimitive("f<", primFLess)
	d.AddPrimitive("f@", primFFetch)
	d.AddPrimitive("f!", primFStore)
	d.AddPrimitive("s>f", primSToF)
	d.AddPrimitive("f>s", primFToS)
	d.AddPrimitive("fdup", primFDup)
	d.AddPrimitive("fdrop", primFDrop)
	d.AddPrimitive("fswap", primFSwap)
	d.AddPrimitive("fover", primFOver)

	// --- addressing / execution ---
	d.AddPrimitive("execute", primExecute)
	d.AddPrimitive("compile,", primCompileComma)
	d.AddPrimitive("'", wordTick)
	d.AddImmediate("[']", wordBracketTick)
	d.AddPrimitive(">body", primToBody)
	d.AddPrimitive(">name", primToName)
	d.AddPrimitive("find", primFind)

	// --- I/O / strings ---
	d.AddPrimitive("emit", primEmit)
	d.AddPrimitive("type", primType)
	d.AddPrimitive("cr", primCr)
	d.AddPrimitive("space", primSpace)
	d.AddPrimitive("count", primCount)
	d.AddImmediate("s\"", wordSQuote)
	d.AddImmediate(".\"", wordDotQuote)
	d.AddPrimitive(".", primDot)
	d.AddPrimitive("accept", primAccept)
	d.AddPrimitive("word", primWord)
	d.AddPrimitive("parse", primParse)
	d.AddImmediate("\\", wordBackslash)

	// --- definition / dictionary ---
	d.AddImmediate(":", wordColon)
	d.AddCompileOnly(";", wordSemicolon)
	d.words[d.mustFind(";")].immediate = true
	d.AddPrimitive("create", wordCreate)
	d.AddCompileOnly("does>", wordDoes)
	d.words[d.mustFind("does>")].immediate = true
	d.AddImmediate("postpone", wordPostpone)
	d.AddImmediate("recurse", wordRecurse)
	d.AddPrimitive("marker", wordMarker)
	d.AddImmediate("[", wordLeftBracket)
	d.AddImmediate("]", wordRightBracket)
	d.AddPrimitive("immediate", primImmediate)
	d.AddPrimitive("constant", primConstant)
	d.AddPrimitive("variable", primVariable)

	// --- control flow ---
	d.AddCompileOnly("if", wordIf)
	d.words[d.mustFind("if")].immediate = true
	d.AddCompileOnly("else", wordElse)
	d.words[d.mustFind("else")].immediate = true
	d.AddCompileOnly("then", wordThen)
	d.words[d.mustFind("then")].immediate = true
	d.AddCompileOnly("begin", wordBegin)
	d.words[d.mustFind("begin")].immediate = true
	d.AddCompileOnly("again", wordAgain)
	d.words[d.mustFind("again")].immediate = true
	d.AddCompileOnly("until", wordUntil)
	d.words[d.mustFind("until")].immediate = true
	d.AddCompileOnly("while", wordWhile)
	d.words[d.mustFind("while")].immediate = true
	d.AddCompileOnly("repeat", wordRepeat)
	d.words[d.mustFind("repeat")].immediate = true
	d.AddCompileOnly("case", wordCase)
	d.words[d.mustFind("case")].immediate = true
	d.AddCompileOnly("of", wordOf)
	d.words[d.mustFind("of")].immediate = true
	d.AddCompileOnly("endof", wordEndof)
	d.words[d.mustFind("endof")].immediate = true
	d.AddCompileOnly("endcase", wordEndcase)
	d.words[d.mustFind("endcase")].immediate = true
	d.AddCompileOnly("do", wordDo)
	d.words[d.mustFind("do")].immediate = true
	d.AddCompileOnly("?do", wordQDo)
	d.words[d.mustFind("?do")].immediate = true
	d.AddCompileOnly("loop", wordLoop)
	d.words[d.mustFind("loop")].immediate = true
	d.AddCompileOnly("+loop", wordPlusLoop)
	d.words[d.mustFind("+loop")].immediate = true
	d.AddCompileOnly("leave", wordLeave)
	d.words[d.mustFind("leave")].immediate = true
	d.AddPrimitive("i", wordI)
	d.AddPrimitive("j", wordJ)

	// --- numeric labels ---
	d.AddImmediate("0labels", wordZeroLabels)
	d.AddImmediate("label", wordLabel)
	d.AddImmediate("goto", wordGoto)
	d.AddImmediate("call", wordCall)

	// --- multitasking ---
	d.AddPrimitive("pause", primPause)
	d.AddPrimitive("activate", primActivate)
	d.AddPrimitive("me", primMe)
	d.AddPrimitive("suspend", primSuspend)
	d.AddPrimitive("resume", primResume)

	// --- exception handling ---
	d.AddPrimitive("abort", primAbort)
	d.AddPrimitive("quit", primQuit)
	d.AddPrimitive("bye", primBye)
	d.AddPrimitive("catch", primCatch)
	d.AddPrimitive("throw", primThrow)

	// --- file access ---
	d.AddPrimitive("open-file", primOpenFile)
	d.AddPrimitive("close-file", primCloseFile)
	d.AddPrimitive("read-file", primReadFile)
	d.AddPrimitive("write-file", primWriteFile)
}

// dictFindMust/mustFind are compile-time wiring helpers: every name they
// look up was just installed by this very function, so a miss is a
// programming error, not a user-facing one.
func (d *Dictionary) dictFindMust(name string) int { return d.mustFind(name) }

func (d *Dictionary) mustFind(name string) int {
	xt, ok := d.Find(name)
	if !ok {
		panic("forth: primitive " + name + " missing from dictionary")
	}
	return xt
}

// --- stack manipulation ---

func primDup(vm *VM) { t := vm.currentTask(); t.pStack.push(t.pStack.top()) }
func primDrop(vm *VM) { vm.currentTask().pStack.pop() }
func primSwap(vm *VM) {
	t := vm.currentTask()
	a, b := t.pStack.at(1), t.pStack.at(0)
	t.pStack.setAt(1, b)
	t.pStack.setAt(0, a)
}
func primOver(vm *VM) { t := vm.currentTask(); t.pStack.push(t.pStack.at(1)) }
func primRot(vm *VM) {
	t := vm.currentTask()
	a, b, c := t.pStack.at(2), t.pStack.at(1), t.pStack.at(0)
	t.pStack.setAt(2, b)
	t.pStack.setAt(1, c)
	t.pStack.setAt(0, a)
}
func primMinusRot(vm *VM) {
	t := vm.currentTask()
	a, b, c := t.pStack.at(2), t.pStack.at(1), t.pStack.at(0)
	t.pStack.setAt(2, c)
	t.pStack.setAt(1, a)
	t.pStack.setAt(0, b)
}
func primNip(vm *VM) {
	t := vm.currentTask()
	top := t.pStack.pop()
	t.pStack.setTop(top)
}
func primTuck(vm *VM) {
	t := vm.currentTask()
	a, b := t.pStack.at(1), t.pStack.at(0)
	t.pStack.setAt(1, b)
	t.pStack.setAt(0, a)
	t.pStack.push(b)
}
func primQDup(vm *VM) {
	t := vm.currentTask()
	if t.pStack.top() != 0 {
		t.pStack.push(t.pStack.top())
	}
}
func primPick(vm *VM) {
	t := vm.currentTask()
	n := int(t.pStack.pop())
	t.pStack.push(t.pStack.at(n))
}
func primRoll(vm *VM) {
	t := vm.currentTask()
	n := int(t.pStack.pop())
	if n <= 0 {
		return
	}
	v := t.pStack.at(n)
	for i := n; i > 0; i-- {
		t.pStack.setAt(i, t.pStack.at(i-1))
	}
	t.pStack.setAt(0, v)
}
func primDepth(vm *VM) {
	t := vm.currentTask()
	t.pStack.push(Cell(t.pStack.depth()))
}
func prim2Dup(vm *VM) {
	t := vm.currentTask()
	a, b := t.pStack.at(1), t.pStack.at(0)
	t.pStack.push(a)
	t.pStack.push(b)
}
func prim2Drop(vm *VM) {
	t := vm.currentTask()
	t.pStack.pop()
	t.pStack.pop()
}
func prim2Over(vm *VM) {
	t := vm.currentTask()
	a, b := t.pStack.at(3), t.pStack.at(2)
	t.pStack.push(a)
	t.pStack.push(b)
}
func prim2Swap(vm *VM) {
	t := vm.currentTask()
	a, b, c, d := t.pStack.at(3), t.pStack.at(2), t.pStack.at(1), t.pStack.at(0)
	t.pStack.setAt(3, c)
	t.pStack.setAt(2, d)
	t.pStack.setAt(1, a)
	t.pStack.setAt(0, b)
}

// --- return stack ---

func primToR(vm *VM) {
	t := vm.currentTask()
	t.rStack.push(t.pStack.pop())
}
func primRFrom(vm *VM) {
	t := vm.currentTask()
	t.pStack.push(t.rStack.pop())
}
func primRFetch(vm *VM) {
	t := vm.currentTask()
	t.pStack.push(t.rStack.top())
}
func prim2ToR(vm *VM) {
	t := vm.currentTask()
	b := t.pStack.pop()
	a := t.pStack.pop()
	t.rStack.push(a)
	t.rStack.push(b)
}
func prim2RFrom(vm *VM) {
	t := vm.currentTask()
	b := t.rStack.pop()
	a := t.rStack.pop()
	t.pStack.push(a)
	t.pStack.push(b)
}
func prim2RFetch(vm *VM) {
	t := vm.currentTask()
	t.pStack.push(t.rStack.at(1))
	t.pStack.push(t.rStack.at(0))
}
func primRDepth(vm *VM) {
	t := vm.currentTask()
	t.pStack.push(Cell(t.rStack.depth()))
}

// --- arithmetic ---

func binOp(vm *VM, f func(a, b Cell) Cell) {
	t := vm.currentTask()
	b := t.pStack.pop()
	a := t.pStack.pop()
	t.pStack.push(f(a, b))
}

func primAdd(vm *VM) { binOp(vm, func(a, b Cell) Cell { return a + b }) }
func primSub(vm *VM) { binOp(vm, func(a, b Cell) Cell { return a - b }) }
func primMul(vm *VM) { binOp(vm, func(a, b Cell) Cell { return a * b }) }

func primDiv(vm *VM) {
	t := vm.currentTask()
	b := t.pStack.pop()
	a := t.pStack.pop()
	if b == 0 {
		vm.abortWith(DivisionByZero)
		return
	}
	t.pStack.push(a / b)
}

func primMod(vm *VM) {
	t := vm.currentTask()
	b := t.pStack.pop()
	a := t.pStack.pop()
	if b == 0 {
		vm.abortWith(DivisionByZero)
		return
	}
	t.pStack.push(a % b)
}

func primSlashMod(vm *VM) {
	t := vm.currentTask()
	b := t.pStack.pop()
	a := t.pStack.pop()
	if b == 0 {
		vm.abortWith(DivisionByZero)
		return
	}
	t.pStack.push(a % b)
	t.pStack.push(a / b)
}

func primStarSlash(vm *VM) {
	t := vm.currentTask()
	c := t.pStack.pop()
	b := t.pStack.pop()
	a := t.pStack.pop()
	if c == 0 {
		vm.abortWith(DivisionByZero)
		return
	}
	t.pStack.push(a * b / c)
}

func primStarSlashMod(vm *VM) {
	t := vm.currentTask()
	c := t.pStack.pop()
	b := t.pStack.pop()
	a := t.pStack.pop()
	if c == 0 {
		vm.abortWith(DivisionByZero)
		return
	}
	prod := a * b
	t.pStack.push(prod % c)
	t.pStack.push(prod / c)
}

func primNegate(vm *VM) { t := vm.currentTask(); t.pStack.setTop(-t.pStack.top()) }
func primAbs(vm *VM) {
	t := vm.currentTask()
	v := t.pStack.top()
	if v < 0 {
		t.pStack.setTop(-v)
	}
}
func primMin(vm *VM) {
	binOp(vm, func(a, b Cell) Cell {
		if a < b {
			return a
		}
		return b
	})
}
func primMax(vm *VM) {
	binOp(vm, func(a, b Cell) Cell {
		if a > b {
			return a
		}
		return b
	})
}
func prim1Plus(vm *VM)  { t := vm.currentTask(); t.pStack.setTop(t.pStack.top() + 1) }
func prim1Minus(vm *VM) { t := vm.currentTask(); t.pStack.setTop(t.pStack.top() - 1) }
func prim2Plus(vm *VM)  { t := vm.currentTask(); t.pStack.setTop(t.pStack.top() + 2) }
func prim2Minus(vm *VM) { t := vm.currentTask(); t.pStack.setTop(t.pStack.top() - 2) }
func prim2Star(vm *VM)  { t := vm.currentTask(); t.pStack.setTop(t.pStack.top() * 2) }
func prim2Slash(vm *VM) { t := vm.currentTask(); t.pStack.setTop(t.pStack.top() >> 1) }

// --- comparison ---

func boolCell(b bool) Cell {
	if b {
		return -1
	}
	return 0
}

func primEqual(vm *VM)        { binOp(vm, func(a, b Cell) Cell { return boolCell(a == b) }) }
func primNotEqual(vm *VM)     { binOp(vm, func(a, b Cell) Cell { return boolCell(a != b) }) }
func primLess(vm *VM)         { binOp(vm, func(a, b Cell) Cell { return boolCell(a < b) }) }
func primGreater(vm *VM)      { binOp(vm, func(a, b Cell) Cell { return boolCell(a > b) }) }
func primLessEqual(vm *VM)    { binOp(vm, func(a, b Cell) Cell { return boolCell(a <= b) }) }
func primGreaterEqual(vm *VM) { binOp(vm, func(a, b Cell) Cell { return boolCell(a >= b) }) }
func primZeroEqual(vm *VM)    { t := vm.currentTask(); t.pStack.setTop(boolCell(t.pStack.top() == 0)) }
func primZeroLess(vm *VM)     { t := vm.currentTask(); t.pStack.setTop(boolCell(t.pStack.top() < 0)) }
func primZeroGreater(vm *VM)  { t := vm.currentTask(); t.pStack.setTop(boolCell(t.pStack.top() > 0)) }
func primULess(vm *VM)        { binOp(vm, func(a, b Cell) Cell { return boolCell(UCell(a) < UCell(b)) }) }
func primUGreater(vm *VM)     { binOp(vm, func(a, b Cell) Cell { return boolCell(UCell(a) > UCell(b)) }) }
func primZeroNotEqual(vm *VM) { t := vm.currentTask(); t.pStack.setTop(boolCell(t.pStack.top() != 0)) }

// primWithin implements the half-open range test n2 <= n1 < n3, with no
// modular wraparound.
func primWithin(vm *VM) {
	t := vm.currentTask()
	n3 := t.pStack.pop()
	n2 := t.pStack.pop()
	n1 := t.pStack.pop()
	t.pStack.push(boolCell(n2 <= n1 && n1 < n3))
}

// --- bitwise ---

func primAnd(vm *VM) { binOp(vm, func(a, b Cell) Cell { return a & b }) }
func primOr(vm *VM)  { binOp(vm, func(a, b Cell) Cell { return a | b }) }
func primXor(vm *VM) { binOp(vm, func(a, b Cell) Cell { return a ^ b }) }
func primInvert(vm *VM) { t := vm.currentTask(); t.pStack.setTop(^t.pStack.top()) }
func primLshift(vm *VM) {
	t := vm.currentTask()
	n := t.pStack.pop()
	t.pStack.setTop(t.pStack.top() << uint(n))
}
func primRshift(vm *VM) {
	t := vm.currentTask()
	n := t.pStack.pop()
	t.pStack.setTop(Cell(UCell(t.pStack.top()) >> uint(n)))
}

// --- memory ---

func primFetch(vm *VM) {
	t := vm.currentTask()
	addr := int(t.pStack.pop())
	if !vm.checkAddr(addr, CellBytes) {
		return
	}
	t.pStack.push(vm.ds.getCell(addr))
}
func primStore(vm *VM) {
	t := vm.currentTask()
	addr := int(t.pStack.pop())
	v := t.pStack.pop()
	if !vm.checkAddr(addr, CellBytes) {
		return
	}
	vm.ds.putCellAt(v, addr)
}
func primPlusStore(vm *VM) {
	t := vm.currentTask()
	addr := int(t.pStack.pop())
	n := t.pStack.pop()
	if !vm.checkAddr(addr, CellBytes) {
		return
	}
	vm.ds.putCellAt(vm.ds.getCell(addr)+n, addr)
}
func primCFetch(vm *VM) {
	t := vm.currentTask()
	addr := int(t.pStack.pop())
	if !vm.checkAddr(addr, 1) {
		return
	}
	t.pStack.push(Cell(vm.ds.getByte(addr)))
}
func primCStore(vm *VM) {
	t := vm.currentTask()
	addr := int(t.pStack.pop())
	v := t.pStack.pop()
	if !vm.checkAddr(addr, 1) {
		return
	}
	vm.ds.putByteAt(byte(v), addr)
}
func primHere(vm *VM)  { vm.currentTask().pStack.push(Cell(vm.ds.Here())) }
func primAllot(vm *VM) { vm.ds.Allot(int(vm.currentTask().pStack.pop())) }
func primComma(vm *VM) { vm.ds.CompileCell(vm.currentTask().pStack.pop()) }
func primCComma(vm *VM) {
	vm.ds.putByte(byte(vm.currentTask().pStack.pop()))
}
func primCells(vm *VM) {
	t := vm.currentTask()
	t.pStack.setTop(t.pStack.top() * Cell(CellBytes))
}
func primCellPlus(vm *VM) {
	t := vm.currentTask()
	t.pStack.setTop(t.pStack.top() + Cell(CellBytes))
}
func primChars(vm *VM)    {}
func primCharPlus(vm *VM) { t := vm.currentTask(); t.pStack.setTop(t.pStack.top() + 1) }
func primMove(vm *VM) {
	t := vm.currentTask()
	n := int(t.pStack.pop())
	dst := int(t.pStack.pop())
	src := int(t.pStack.pop())
	if !vm.checkAddr(src, n) || !vm.checkAddr(dst, n) {
		return
	}
	buf := vm.ds.Bytes()
	copy(buf[dst:dst+n], buf[src:src+n])
}
func primFill(vm *VM) {
	t := vm.currentTask()
	v := byte(t.pStack.pop())
	n := int(t.pStack.pop())
	addr := int(t.pStack.pop())
	if !vm.checkAddr(addr, n) {
		return
	}
	buf := vm.ds.Bytes()
	for i := 0; i < n; i++ {
		buf[addr+i] = v
	}
}
func primBase(vm *VM)    { vm.currentTask().pStack.push(Cell(vm.ds.baseAddr())) }
func primDecimal(vm *VM) { vm.ds.setBase(10) }
func primHex(vm *VM)     { vm.ds.setBase(16) }
func primAlign(vm *VM)   { vm.ds.Align() }
func primAligned(vm *VM) {
	t := vm.currentTask()
	t.pStack.setTop(Cell(vm.ds.Aligned(int(t.pStack.top()))))
}

// --- floating point ---

func fBinOp(vm *VM, f func(a, b float64) float64) {
	t := vm.currentTask()
	b := t.fStack.pop()
	a := t.fStack.pop()
	t.fStack.push(f(a, b))
}

func primFAdd(vm *VM) { fBinOp(vm, func(a, b float64) float64 { return a + b }) }
func primFSub(vm *VM) { fBinOp(vm, func(a, b float64) float64 { return a - b }) }
func primFMul(vm *VM) { fBinOp(vm, func(a, b float64) float64 { return a * b }) }
func primFDiv(vm *VM) { fBinOp(vm, func(a, b float64) float64 { return a / b }) }
func primFNegate(vm *VM) {
	t := vm.currentTask()
	t.fStack.setTop(-t.fStack.top())
}
func primFZeroEqual(vm *VM) {
	t := vm.currentTask()
	v := t.fStack.pop()
	t.pStack.push(boolCell(v == 0))
}
func primFLess(vm *VM) {
	t := vm.currentTask()
	b := t.fStack.pop()
	a := t.fStack.pop()
	t.pStack.push(boolCell(a < b))
}
func primFFetch(vm *VM) {
	t := vm.currentTask()
	addr := int(t.pStack.pop())
	if !vm.checkAddr(addr, FloatBytes) {
		return
	}
	t.fStack.push(vm.ds.getFloat(addr))
}
func primFStore(vm *VM) {
	t := vm.currentTask()
	addr := int(t.pStack.pop())
	v := t.fStack.pop()
	if !vm.checkAddr(addr, FloatBytes) {
		return
	}
	vm.ds.putFloatAt(v, addr)
}
func primSToF(vm *VM) {
	t := vm.currentTask()
	t.fStack.push(float64(t.pStack.pop()))
}
func primFToS(vm *VM) {
	t := vm.currentTask()
	t.pStack.push(Cell(t.fStack.pop()))
}
func primFDup(vm *VM)  { t := vm.currentTask(); t.fStack.push(t.fStack.top()) }
func primFDrop(vm *VM) { vm.currentTask().fStack.pop() }
func primFSwap(vm *VM) {
	t := vm.currentTask()
	a, b := t.fStack.at(1), t.fStack.at(0)
	t.fStack.setAt(1, b)
	t.fStack.setAt(0, a)
}
func primFOver(vm *VM) { t := vm.currentTask(); t.fStack.push(t.fStack.at(1)) }

// --- addressing / execution ---

func primExecute(vm *VM) {
	xt := int(vm.currentTask().pStack.pop())
	vm.executeXT(xt)
}
func primCompileComma(vm *VM) {
	vm.ds.CompileCell(vm.currentTask().pStack.pop())
}
func wordTick(vm *VM) {
	name := vm.parseWord()
	xt, ok := vm.dict.Find(name)
	if !ok {
		vm.abortWith(UndefinedWord)
		return
	}
	vm.currentTask().pStack.push(Cell(xt))
}
func wordBracketTick(vm *VM) {
	name := vm.parseWord()
	xt, ok := vm.dict.Find(name)
	if !ok {
		vm.abortWith(UndefinedWord)
		return
	}
	vm.compileWord(vm.refs.lit)
	vm.ds.CompileCell(Cell(xt))
}
func primToBody(vm *VM) {
	t := vm.currentTask()
	xt := int(t.pStack.pop())
	t.pStack.push(Cell(vm.dict.At(xt).dfa))
}
func primToName(vm *VM) {
	t := vm.currentTask()
	xt := int(t.pStack.pop())
	t.pStack.push(Cell(vm.dict.At(xt).nfa))
}
func primFind(vm *VM) {
	t := vm.currentTask()
	addr := int(t.pStack.pop())
	if !vm.checkAddr(addr, 1) || !vm.checkAddr(addr, 1+int(vm.ds.getByte(addr))) {
		return
	}
	name := vm.ds.CountedString(addr)
	if xt, ok := vm.dict.Find(name); ok {
		t.pStack.push(Cell(xt))
		t.pStack.push(1)
	} else {
		t.pStack.push(Cell(addr))
		t.pStack.push(0)
	}
}

// --- I/O / strings ---

func primEmit(vm *VM) {
	c := byte(vm.currentTask().pStack.pop())
	vm.writeOutput(string(c))
}
func primType(vm *VM) {
	t := vm.currentTask()
	n := int(t.pStack.pop())
	addr := int(t.pStack.pop())
	if !vm.checkAddr(addr, n) {
		return
	}
	vm.writeOutput(string(vm.ds.Bytes()[addr : addr+n]))
}
func primCr(vm *VM)    { vm.writeOutput("\n") }
func primSpace(vm *VM) { vm.writeOutput(" ") }
func primCount(vm *VM) {
	t := vm.currentTask()
	addr := int(t.pStack.pop())
	if !vm.checkAddr(addr, 1) {
		return
	}
	n := int(vm.ds.getByte(addr))
	t.pStack.push(Cell(addr + 1))
	t.pStack.push(Cell(n))
}
func wordSQuote(vm *VM) {
	s := vm.parse('"')
	s = strings.TrimPrefix(s, " ")
	t := vm.currentTask()
	if t.compiling {
		vm.compileWord(vm.dict.mustFind("(s\")"))
		vm.ds.CompileString(s)
		vm.ds.Align()
	} else {
		addr := vm.ds.CompileString(s)
		vm.ds.Align()
		t.pStack.push(Cell(addr + 1))
		t.pStack.push(Cell(len(s)))
	}
}
func wordDotQuote(vm *VM) {
	s := vm.parse('"')
	s = strings.TrimPrefix(s, " ")
	t := vm.currentTask()
	if t.compiling {
		vm.compileWord(vm.dict.mustFind("(s\")"))
		vm.ds.CompileString(s)
		vm.ds.Align()
		vm.compileWord(vm.dict.mustFind("type"))
	} else {
		vm.writeOutput(s)
	}
}
func primDot(vm *VM) {
	v := vm.currentTask().pStack.pop()
	vm.writeOutput(formatCell(v, int(vm.ds.base())))
	vm.writeOutput(" ")
}

func formatCell(v Cell, base int) string {
	if base == 10 {
		return itoa(int64(v))
	}
	neg := v < 0
	u := UCell(v)
	if neg {
		u = UCell(-v)
	}
	digits := "0123456789abcdefghijklmnopqrstuvwxyz"
	var buf []byte
	if u == 0 {
		buf = []byte{'0'}
	}
	for u > 0 {
		buf = append([]byte{digits[int(u)%base]}, buf...)
		u /= UCell(base)
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func itoa(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var buf []byte
	for v > 0 {
		buf = append([]byte{byte('0' + v%10)}, buf...)
		v /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func primAccept(vm *VM) {
	t := vm.currentTask()
	n := int(t.pStack.pop())
	addr := int(t.pStack.pop())
	if !vm.checkAddr(addr, n) {
		return
	}
	buf := t.inputBuffer[t.sourceIndex:]
	if len(buf) > n {
		buf = buf[:n]
	}
	copy(vm.ds.Bytes()[addr:addr+len(buf)], buf)
	t.sourceIndex += len(buf)
	t.pStack.push(Cell(len(buf)))
}
func primWord(vm *VM) {
	t := vm.currentTask()
	_ = t.pStack.pop() // delimiter: terminal input is always whitespace-delimited
	w := vm.parseWord()
	addr := vm.ds.CompileString(w)
	vm.ds.Align()
	t.pStack.push(Cell(addr))
}
// wordBackslash discards the rest of the current input line, the standard
// backslash line comment.
func wordBackslash(vm *VM) {
	vm.parse('\n')
}
func primParse(vm *VM) {
	t := vm.currentTask()
	delim := byte(t.pStack.pop())
	s := vm.parse(delim)
	addr := vm.ds.CompileString(s)
	vm.ds.Align()
	t.pStack.push(Cell(addr + 1))
	t.pStack.push(Cell(len(s)))
}

// --- dictionary helpers requiring compile-time parsing ---

func primImmediate(vm *VM) {
	vm.dict.At(vm.lastDefinedXT).immediate = true
}
func primConstant(vm *VM) {
	t := vm.currentTask()
	v := t.pStack.pop()
	name := vm.parseWord()
	xt := vm.dict.Define(vm, name, func(vm *VM) {
		vm.currentTask().pStack.push(v)
	}, compileCallSemantics)
	vm.lastDefinedXT = xt
}
// wordLeftBracket/wordRightBracket switch between interpret and compile
// state mid-definition, the standard escape hatch for computing a value
// at compile time (e.g. `[ 10 ] label`).
func wordLeftBracket(vm *VM)  { vm.currentTask().compiling = false }
func wordRightBracket(vm *VM) { vm.currentTask().compiling = true }

func primVariable(vm *VM) {
	name := vm.parseWord()
	xt := vm.dict.Define(vm, name, actionPushDFA, compileCallSemantics)
	vm.ds.CompileCell(0)
	vm.lastDefinedXT = xt
}

// --- exceptions ---

func primAbort(vm *VM) { vm.abortWith(Abort) }
func primQuit(vm *VM) {
	t := vm.currentTask()
	t.rStack.reset()
	t.compiling = false
}
func primBye(vm *VM) {
	t := vm.currentTask()
	t.instructionPointer = ipHalted
	t.awake = false
}
func primCatch(vm *VM) {
	t := vm.currentTask()
	xt := int(t.pStack.pop())
	savedHandler := vm.handlerXT
	savedErr := vm.LastError
	vm.LastError = nil
	vm.executeXT(xt)
	caught := vm.LastError
	vm.LastError = savedErr
	vm.handlerXT = savedHandler
	if caught != nil {
		t.pStack.push(Cell(*caught))
	} else {
		t.pStack.push(0)
	}
}
func primThrow(vm *VM) {
	t := vm.currentTask()
	code := t.pStack.pop()
	if code == 0 {
		return
	}
	vm.abortWith(Exception(code))
}
