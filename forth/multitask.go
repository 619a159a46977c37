package forth

// This file is the cooperative multitasker: pause is the sole point at
// which the VM may switch which task's thread the inner loop is driving.
// Task switches are a change of vm.currentIdx alone - run() re-fetches
// vm.currentTask() every iteration, so the effect is immediate.

// nextAwake returns the next awake task index after from, cyclically,
// including from itself if nothing else is awake.
func (vm *VM) nextAwake(from int) int {
	for i := 1; i <= NumTasks; i++ {
		idx := (from + i) % NumTasks
		if vm.tasks[idx].awake {
			return idx
		}
	}
	return from
}

func primPause(vm *VM) {
	vm.currentIdx = vm.nextAwake(vm.currentIdx)
}

// primActivate wakes task i, handing it the calling task's current
// instruction pointer: the code textually following `activate` becomes
// task i's program, per the round-robin scheduler's wake contract.
func primActivate(vm *VM) {
	t := vm.currentTask()
	i := int(t.pStack.pop())
	if i < 0 || i >= NumTasks {
		vm.abortWith(InvalidNumericArgument)
		return
	}
	target := vm.tasks[i]
	target.instructionPointer = t.instructionPointer
	target.awake = true
	vm.log().Debug().Int("task", i).Msg("activate")
}

// primMe returns the one-based id of the currently scheduled task.
func primMe(vm *VM) {
	vm.currentTask().pStack.push(Cell(vm.currentIdx + 1))
}

func primSuspend(vm *VM) {
	t := vm.currentTask()
	i := int(t.pStack.pop())
	if i < 0 || i >= NumTasks {
		vm.abortWith(InvalidNumericArgument)
		return
	}
	vm.tasks[i].awake = false
	vm.log().Debug().Int("task", i).Msg("suspend")
}

func primResume(vm *VM) {
	t := vm.currentTask()
	i := int(t.pStack.pop())
	if i < 0 || i >= NumTasks {
		vm.abortWith(InvalidNumericArgument)
		return
	}
	vm.tasks[i].awake = true
	vm.log().Debug().Int("task", i).Msg("resume")
}
