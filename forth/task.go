package forth

// NumTasks is the fixed number of cooperative tasks the multitasker
// round-robins over. Task 0 is the single terminal task.
const NumTasks = 5

// sourceFrame is one entry of a task's source stack: an open text source
// other than the terminal (source-id 0). Ownership of the underlying
// reader belongs to the external loader collaborator (hooks.go); the core
// only tracks the bookkeeping needed to resume the right buffer.
type sourceFrame struct {
	id     int
	buffer string
	index  int
}

// Task is one cooperative thread of execution: private stacks, compile
// state and input tracking. The dictionary, data space and output buffer
// are shared across all tasks (see spec.md §5).
type Task struct {
	awake bool

	pStack stack[Cell]
	rStack stack[Cell]
	cStack stack[Control]
	fStack stack[float64]

	instructionPointer int
	wordPointer        int
	abortedWordPointer int

	compiling bool

	sourceID    int
	sourceIndex int
	inputBuffer string

	sources []sourceFrame

	labels labelTable
}

// stackCanary is a distinctive sentinel for the integer stacks: a
// realistic operand like 0 would make a legitimate push at the guard
// index indistinguishable from an untouched canary.
const stackCanary Cell = 0x12345678

// floatStackCanary is the float stack's equivalent sentinel.
const floatStackCanary float64 = 1.234567890

func newTask() *Task {
	t := &Task{
		pStack: newStack[Cell](stackCanary),
		rStack: newStack[Cell](stackCanary),
		cStack: newStack[Control](ctlCanary()),
		fStack: newStack[float64](floatStackCanary),

		instructionPointer: ipHalted,
	}
	return t
}

// Depth returns the parameter stack depth.
func (t *Task) Depth() int { return t.pStack.depth() }

// Compiling reports whether the task is currently in compile state.
func (t *Task) Compiling() bool { return t.compiling }

// SourceID returns the task's current input source (0 = terminal).
func (t *Task) SourceID() int { return t.sourceID }
