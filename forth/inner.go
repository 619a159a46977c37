package forth

// ipHalted is the sentinel instruction-pointer value meaning "nothing
// threaded is running". It sits outside [start, limit) by construction, so
// the inner loop's own bounds check is what stops execution - exactly the
// termination rule in the data model. `bye` and a completed top-level
// execute both produce this value; see DESIGN.md for the rationale behind
// picking a dedicated sentinel rather than overloading address 0.
const ipHalted = -1

// invoke dispatches directly to the action of xt, recording it as the
// word currently executing (wordPointer), which `nest` consults to find
// the DFA to thread into.
func (vm *VM) invoke(xt int) {
	t := vm.currentTask()
	t.wordPointer = xt
	vm.dict.At(xt).action(vm)
}

// run drives the inner interpreter: while the instruction pointer lies
// inside the data space, fetch the cell at IP as an XT, advance IP by one
// cell, and invoke that word's action. Actions may themselves mutate IP
// (branches, exit, nest).
func (vm *VM) run() {
	for {
		t := vm.currentTask()
		if t.instructionPointer < vm.ds.start || t.instructionPointer >= vm.ds.limit {
			return
		}
		ip := t.instructionPointer
		w := int(vm.ds.getCell(ip))
		t.instructionPointer = ip + CellBytes
		vm.invoke(w)
	}
}

// executeXT runs xt to completion: any in-progress thread is suspended
// behind the halted sentinel, xt's action is invoked, and the inner loop
// is driven until the thread unwinds back past the sentinel (or the word
// was a primitive that never touched IP at all, in which case run is an
// immediate no-op).
func (vm *VM) executeXT(xt int) {
	t := vm.currentTask()
	saved := t.instructionPointer
	t.instructionPointer = ipHalted
	vm.invoke(xt)
	vm.run()
	t.instructionPointer = saved
}

// Execute runs the word identified by xt to completion and then checks
// stacks, matching what `execute` does at the Forth level.
func (vm *VM) Execute(xt int) {
	vm.executeXT(xt)
	vm.checkStacks()
}

// opNest is the action of every colon-defined word: push the return
// address (the already-advanced IP) and jump into the word's own thread.
func opNest(vm *VM) {
	t := vm.currentTask()
	t.rStack.push(Cell(t.instructionPointer))
	t.instructionPointer = vm.dict.At(t.wordPointer).dfa
}

// opExit pops the return address saved by nest.
func opExit(vm *VM) {
	t := vm.currentTask()
	t.instructionPointer = int(t.rStack.pop())
}

// opLit reads its operand cell at IP, advances IP past it, and pushes the
// value.
func opLit(vm *VM) {
	t := vm.currentTask()
	v := vm.ds.getCell(t.instructionPointer)
	t.instructionPointer += CellBytes
	t.pStack.push(v)
}

// opFlit is lit's float-cell counterpart: the operand is float-aligned.
func opFlit(vm *VM) {
	t := vm.currentTask()
	addr := vm.ds.Aligned8(t.instructionPointer)
	v := vm.ds.getFloat(addr)
	t.instructionPointer = addr + FloatBytes
	t.fStack.push(v)
}

// opBranch is the unconditional branch: IP jumps to the absolute address
// stored in the operand cell.
func opBranch(vm *VM) {
	t := vm.currentTask()
	t.instructionPointer = int(vm.ds.getCell(t.instructionPointer))
}

// opZeroBranch pops the parameter stack; if the value is zero, it branches
// like opBranch, otherwise it skips the operand cell.
func opZeroBranch(vm *VM) {
	t := vm.currentTask()
	v := t.pStack.pop()
	if v == 0 {
		t.instructionPointer = int(vm.ds.getCell(t.instructionPointer))
	} else {
		t.instructionPointer += CellBytes
	}
}

// opSQuote is the run-time action of a compiled `s"` string literal: reads
// a length-prefixed string body at IP, pushes (addr, length), and advances
// IP past the aligned body.
func opSQuote(vm *VM) {
	t := vm.currentTask()
	addr := t.instructionPointer
	n := int(vm.ds.getByte(addr))
	body := addr + 1
	t.instructionPointer = vm.ds.Aligned(body + n)
	t.pStack.push(Cell(body))
	t.pStack.push(Cell(n))
}
