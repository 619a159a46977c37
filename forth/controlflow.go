package forth

// This file implements the control-flow compiler: the immediate words that
// emit branches/loops and push compile-time markers onto the control
// stack, plus the forward-reference machinery (numeric labels, postpone,
// create/does>, marker) described in spec.md §4.5.

// cPop/cPush are thin task-scoped helpers kept local to this file for
// readability; the control stack itself lives on Task.
func (vm *VM) cPush(c Control) { vm.currentTask().cStack.push(c) }
func (vm *VM) cPop() Control   { return vm.currentTask().cStack.pop() }
func (vm *VM) cTop() Control   { return vm.currentTask().cStack.top() }

func (vm *VM) mismatch() {
	vm.abortWith(ControlStructureMismatch)
}

// patch writes target into the cell at addr-CellBytes, the cell
// immediately preceding the unresolved-operand marker address.
func (vm *VM) patch(addr, target int) {
	vm.ds.putCellAt(Cell(target), addr-CellBytes)
}

// compileWord compiles a direct call to xt (used for the primitives the
// control-flow compiler emits: branch, 0branch, over, =, drop, ...).
func (vm *VM) compileWord(xt int) {
	vm.ds.CompileCell(Cell(xt))
}

// --- if / else / then ---

func wordIf(vm *VM) {
	vm.compileWord(vm.refs.zeroBranch)
	placeholder := vm.ds.CompileCell(0) + CellBytes
	vm.cPush(ctlIf(placeholder))
}

func wordElse(vm *VM) {
	m := vm.cPop()
	if m.Kind != markIf {
		vm.mismatch()
		return
	}
	vm.compileWord(vm.refs.branch)
	placeholder := vm.ds.CompileCell(0) + CellBytes
	vm.patch(m.Addr, vm.ds.Here())
	vm.cPush(ctlElse(placeholder))
}

func wordThen(vm *VM) {
	m := vm.cPop()
	if m.Kind != markIf && m.Kind != markElse {
		vm.mismatch()
		return
	}
	vm.patch(m.Addr, vm.ds.Here())
}

// --- begin / while / repeat / until / again ---

func wordBegin(vm *VM) {
	vm.cPush(ctlBegin(vm.ds.Here()))
}

func wordAgain(vm *VM) {
	m := vm.cPop()
	if m.Kind != markBegin {
		vm.mismatch()
		return
	}
	vm.compileWord(vm.refs.branch)
	vm.ds.CompileCell(Cell(m.Addr))
}

func wordUntil(vm *VM) {
	m := vm.cPop()
	if m.Kind != markBegin {
		vm.mismatch()
		return
	}
	vm.compileWord(vm.refs.zeroBranch)
	vm.ds.CompileCell(Cell(m.Addr))
}

func wordWhile(vm *VM) {
	vm.compileWord(vm.refs.zeroBranch)
	placeholder := vm.ds.CompileCell(0) + CellBytes
	vm.cPush(ctlWhile(placeholder))
}

func wordRepeat(vm *VM) {
	w := vm.cPop()
	b := vm.cPop()
	if w.Kind != markWhile || b.Kind != markBegin {
		vm.mismatch()
		return
	}
	vm.compileWord(vm.refs.branch)
	vm.ds.CompileCell(Cell(b.Addr))
	vm.patch(w.Addr, vm.ds.Here())
}

// --- case / of / endof / endcase ---

func wordCase(vm *VM) {
	vm.cPush(ctlCase())
}

func wordOf(vm *VM) {
	vm.compileWord(vm.refs.over)
	vm.compileWord(vm.refs.equal)
	vm.compileWord(vm.refs.zeroBranch)
	placeholder := vm.ds.CompileCell(0) + CellBytes
	vm.compileWord(vm.refs.drop)
	vm.cPush(ctlOf(placeholder))
}

func wordEndof(vm *VM) {
	m := vm.cPop()
	if m.Kind != markOf {
		vm.mismatch()
		return
	}
	vm.compileWord(vm.refs.branch)
	placeholder := vm.ds.CompileCell(0) + CellBytes
	vm.patch(m.Addr, vm.ds.Here())
	vm.cPush(ctlEndof(placeholder))
}

func wordEndcase(vm *VM) {
	vm.compileWord(vm.refs.drop)
	here := vm.ds.Here()
	for {
		m := vm.cPop()
		if m.Kind == markCase {
			return
		}
		if m.Kind != markEndof {
			vm.mismatch()
			return
		}
		vm.patch(m.Addr, here)
	}
}

// --- do / ?do / loop / +loop / leave ---

func wordDo(vm *VM) {
	vm.compileWord(vm.refs.do)
	leaveChain := vm.ds.CompileCell(0)
	doAddr := vm.ds.Here()
	vm.cPush(ctlDo(doAddr, leaveChain))
}

func wordQDo(vm *VM) {
	vm.compileWord(vm.refs.qdo)
	leaveChain := vm.ds.CompileCell(0)
	doAddr := vm.ds.Here()
	vm.cPush(ctlDo(doAddr, leaveChain))
}

func wordLoop(vm *VM) {
	m := vm.cPop()
	if m.Kind != markDo {
		vm.mismatch()
		return
	}
	vm.compileWord(vm.refs.loop)
	vm.ds.CompileCell(Cell(m.Addr))
	vm.resolveLeaveChain(m.LeaveChain, vm.ds.Here())
}

func wordPlusLoop(vm *VM) {
	m := vm.cPop()
	if m.Kind != markDo {
		vm.mismatch()
		return
	}
	vm.compileWord(vm.refs.plusLoop)
	vm.ds.CompileCell(Cell(m.Addr))
	vm.resolveLeaveChain(m.LeaveChain, vm.ds.Here())
}

// resolveLeaveChain walks the zero-terminated forward chain rooted at the
// cell at chainHead, rewriting each link to target, then leaves target in
// the chainHead cell itself: ?do's runtime skip path reads that same cell
// as its "jump past the loop" address.
func (vm *VM) resolveLeaveChain(chainHead, target int) {
	p := int(vm.ds.getCell(chainHead))
	for p != 0 {
		next := int(vm.ds.getCell(p))
		vm.ds.putCellAt(Cell(target), p)
		p = next
	}
	vm.ds.putCellAt(Cell(target), chainHead)
}

func wordLeave(vm *VM) {
	t := vm.currentTask()
	for i := 0; i < t.cStack.depth(); i++ {
		if m := t.cStack.at(i); m.Kind == markDo {
			vm.compileWord(vm.refs.branch)
			cell := vm.ds.CompileCell(vm.ds.getCell(m.LeaveChain))
			vm.ds.putCellAt(Cell(cell), m.LeaveChain)
			return
		}
	}
	vm.mismatch()
}

// opDo / opQDo / opLoop / opPlusLoop are the run-time actions compiled by
// do/?do/loop/+loop. The return stack carries (limit, index) pairs, index
// on top, alongside any saved instruction pointers - exactly the "return
// stack holds integers (saved IPs and DO-loop state)" rule in the data
// model.
func opDo(vm *VM) {
	t := vm.currentTask()
	start := t.pStack.pop()
	limit := t.pStack.pop()
	t.rStack.push(limit)
	t.rStack.push(start)
	t.instructionPointer += CellBytes // skip the leave-chain head cell
}

func opQDo(vm *VM) {
	t := vm.currentTask()
	start := t.pStack.pop()
	limit := t.pStack.pop()
	if start == limit {
		t.instructionPointer = int(vm.ds.getCell(t.instructionPointer))
		return
	}
	t.rStack.push(limit)
	t.rStack.push(start)
	t.instructionPointer += CellBytes
}

func opLoop(vm *VM) {
	t := vm.currentTask()
	index := t.rStack.pop() + 1
	limit := t.rStack.top()
	if index < limit {
		t.rStack.push(index)
		t.instructionPointer = int(vm.ds.getCell(t.instructionPointer))
	} else {
		t.rStack.pop() // drop limit
		t.instructionPointer += CellBytes
	}
}

func opPlusLoop(vm *VM) {
	t := vm.currentTask()
	n := t.pStack.pop()
	old := t.rStack.pop()
	limit := t.rStack.top()
	next := old + n
	var crossed bool
	if n >= 0 {
		crossed = old < limit && next >= limit
	} else {
		crossed = old >= limit && next < limit
	}
	if crossed {
		t.rStack.pop() // drop limit
		t.instructionPointer += CellBytes
	} else {
		t.rStack.push(next)
		t.instructionPointer = int(vm.ds.getCell(t.instructionPointer))
	}
}

func wordI(vm *VM) {
	t := vm.currentTask()
	t.pStack.push(t.rStack.top())
}

func wordJ(vm *VM) {
	t := vm.currentTask()
	t.pStack.push(t.rStack.at(2))
}

// --- numeric labels: label / goto / call ---

func wordZeroLabels(vm *VM) {
	vm.currentTask().labels.clear()
}

func labelIndexFromStack(vm *VM) (int, bool) {
	t := vm.currentTask()
	n := int(t.pStack.pop())
	if n <= 0 || n >= labelCapacity {
		vm.abortWith(InvalidNumericArgument)
		return 0, false
	}
	return n, true
}

func wordLabel(vm *VM) {
	n, ok := labelIndexFromStack(vm)
	if !ok {
		return
	}
	t := vm.currentTask()
	here := vm.ds.Here()
	switch {
	case t.labels.forward.contains(n):
		vm.resolveLabelChain(t.labels.addrs[n], here)
		t.labels.addrs[n] = here
		t.labels.forward.remove(n)
		t.labels.resolved.add(n)
	case t.labels.resolved.contains(n):
		vm.abortWith(InvalidNumericArgument)
	default:
		t.labels.addrs[n] = here
		t.labels.resolved.add(n)
	}
}

// resolveLabelChain walks the forward-reference chain built by repeated
// goto/call on an unresolved label: head is the data-space address of the
// most recent unresolved branch operand, each such cell holding the
// address of the next-older one, zero-terminated.
func (vm *VM) resolveLabelChain(head, target int) {
	p := head
	for p != 0 {
		next := int(vm.ds.getCell(p))
		vm.ds.putCellAt(Cell(target), p)
		p = next
	}
}

func wordGoto(vm *VM) {
	n, ok := labelIndexFromStack(vm)
	if !ok {
		return
	}
	t := vm.currentTask()
	switch {
	case t.labels.forward.contains(n):
		vm.compileWord(vm.refs.branch)
		toPatch := vm.ds.CompileCell(Cell(t.labels.addrs[n]))
		t.labels.addrs[n] = toPatch
	case t.labels.resolved.contains(n):
		vm.compileWord(vm.refs.branch)
		vm.ds.CompileCell(Cell(t.labels.addrs[n]))
	default:
		vm.compileWord(vm.refs.branch)
		toPatch := vm.ds.CompileCell(0)
		t.labels.addrs[n] = toPatch
		t.labels.forward.add(n)
	}
}

// wordCall compiles a call to label n: lit <return-address>, >r, branch
// <label>, so that the callee eventually returns via exit.
func wordCall(vm *VM) {
	n, ok := labelIndexFromStack(vm)
	if !ok {
		return
	}
	t := vm.currentTask()
	vm.compileWord(vm.refs.lit)
	retPatch := vm.ds.CompileCell(0)
	vm.compileWord(vm.refs.toR)
	switch {
	case t.labels.forward.contains(n):
		vm.compileWord(vm.refs.branch)
		toPatch := vm.ds.CompileCell(Cell(t.labels.addrs[n]))
		t.labels.addrs[n] = toPatch
	case t.labels.resolved.contains(n):
		vm.compileWord(vm.refs.branch)
		vm.ds.CompileCell(Cell(t.labels.addrs[n]))
	default:
		vm.compileWord(vm.refs.branch)
		toPatch := vm.ds.CompileCell(0)
		t.labels.addrs[n] = toPatch
		t.labels.forward.add(n)
	}
	vm.ds.putCellAt(Cell(vm.ds.Here()), retPatch)
}

// --- recurse, postpone, create/does>, marker ---

func wordRecurse(vm *VM) {
	xt := vm.lastDefinedXT
	vm.compileWord(xt)
}

// postponeXT reproduces xt's compile-time effect right now: for an
// immediate word that means running its action (which itself emits code),
// for an ordinary word that means invoking its compilation semantics
// (ordinarily just "compile a call"). _postpone's runtime action calls
// this once the word holding the postponed reference actually runs.
func (vm *VM) postponeXT(xt int) {
	w := vm.dict.At(xt)
	if w.immediate {
		vm.invoke(xt)
	} else {
		w.compilationSemantics(vm, xt)
	}
}

func wordPostponeRuntime(vm *VM) {
	t := vm.currentTask()
	xt := int(t.pStack.pop())
	vm.postponeXT(xt)
}

func wordPostpone(vm *VM) {
	name := vm.parseWord()
	xt, ok := vm.dict.Find(name)
	if !ok {
		vm.abortWith(UndefinedWord)
		return
	}
	vm.compileWord(vm.refs.lit)
	vm.ds.CompileCell(Cell(xt))
	vm.compileWord(vm.refs.postpone)
}

// actionPushDFA is the run-time action of a plain CREATEd word: push its
// own data-field address.
func actionPushDFA(vm *VM) {
	t := vm.currentTask()
	t.pStack.push(Cell(vm.dict.At(t.wordPointer).dfa))
}

func wordCreate(vm *VM) {
	name := vm.parseWord()
	xt := vm.dict.Define(vm, name, actionPushDFA, compileCallSemantics)
	vm.lastDefinedXT = xt
}

// opDoes is the run-time action of `does>`: it rewrites the most recently
// defined word's action so that executing it pushes its DFA and then
// nests into the words following does>.
func opDoes(vm *VM) {
	t := vm.currentTask()
	doesBody := t.instructionPointer
	t.instructionPointer = int(t.rStack.pop())
	w := vm.dict.At(vm.lastDefinedXT)
	w.action = makeDoesAction(doesBody)
}

func makeDoesAction(doesBody int) Action {
	return func(vm *VM) {
		t := vm.currentTask()
		t.pStack.push(Cell(vm.dict.At(t.wordPointer).dfa))
		t.rStack.push(Cell(t.instructionPointer))
		t.instructionPointer = doesBody
	}
}

func wordDoes(vm *VM) {
	vm.compileWord(vm.refs.does)
}

// markerState is what `marker` snapshots so `unmark` can roll the
// dictionary and data space back.
type markerState struct {
	dictLen int
	buckets [bucketCount]int
	here    int
}

func wordMarker(vm *VM) {
	name := vm.parseWord()
	var ms markerState
	ms.dictLen = vm.dict.Len()
	vm.dict.snapshotBuckets(&ms.buckets)
	ms.here = vm.ds.Here()
	xt := vm.dict.Define(vm, name, nil, compileCallSemantics)
	vm.dict.At(xt).action = func(vm *VM) {
		vm.unmark(ms)
	}
	vm.lastDefinedXT = xt
}

func (vm *VM) unmark(ms markerState) {
	vm.dict.truncate(ms.dictLen)
	vm.dict.restoreBuckets(ms.buckets)
	vm.ds.Truncate(ms.here)
	vm.log().Info().Int("here", ms.here).Msg("marker rollback")
}

// --- colon / semicolon ---

func wordColon(vm *VM) {
	name := vm.parseWord()
	t := vm.currentTask()
	t.labels.clear()
	xt := vm.dict.Define(vm, name, opNest, compileCallSemantics)
	vm.dict.At(xt).hidden = true
	vm.lastDefinedXT = xt
	t.compiling = true
}

func wordSemicolon(vm *VM) {
	t := vm.currentTask()
	if t.cStack.depth() != 0 {
		vm.mismatch()
		return
	}
	hasForward := false
	for n := 1; n < labelCapacity; n++ {
		if t.labels.forward.contains(n) {
			hasForward = true
			break
		}
	}
	if hasForward {
		vm.mismatch()
		return
	}
	vm.compileWord(vm.refs.exit)
	vm.dict.At(vm.lastDefinedXT).hidden = false
	t.compiling = false
}
