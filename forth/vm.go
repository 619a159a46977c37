package forth

import (
	"strings"

	"github.com/rs/zerolog"
)

// forwardReferences caches the XTs of primitives the control-flow compiler
// and outer interpreter emit directly, so that emitting a branch or a
// literal never needs a dictionary lookup by name.
type forwardReferences struct {
	lit       int
	flit      int
	exit      int
	branch    int
	zeroBranch int
	do        int
	qdo       int
	loop      int
	plusLoop  int
	over      int
	equal     int
	drop      int
	postpone  int
	toR       int
	does      int
}

// VM is the top-level record: dictionary, data space, task array, current
// task index, shared buffers and the exception handler XT. It is created
// once; its data space and dictionary grow monotonically except for
// marker-initiated truncations.
type VM struct {
	ds   *DataSpace
	dict *Dictionary

	tasks       [NumTasks]*Task
	currentIdx  int

	output strings.Builder
	hold   strings.Builder

	lastToken string

	// LastError is the most recent Forth-level exception, if any.
	LastError *Exception

	handlerXT int

	refs forwardReferences

	// lastDefinedXT is the XT of the most recently Define()d word: what
	// `;`, `does>`, `recurse` and `marker` operate on.
	lastDefinedXT int

	logger zerolog.Logger

	clockOrigin int64

	// files is the per-VM file handle table used by the file-access word
	// set. Handle 0 is never valid; the external file-access contract
	// populates/drains this table (see hooks.go).
	files []*FileHandle

	outputSink OutputSink
	fs         FileSystem
}

// Option configures a VM at construction time, following the same
// functional-options pattern the teacher uses for its VM instance.
type Option func(*VM) error

// DataSpaceSize sets the byte size of the data space arena. Default 1 << 20.
func DataSpaceSize(n int) Option {
	return func(vm *VM) error { vm.ds = newDataSpace(n); return nil }
}

// WithLogger installs a zerolog.Logger for diagnostic output. Without this
// option, logging is a no-op.
func WithLogger(l zerolog.Logger) Option {
	return func(vm *VM) error { vm.logger = l; return nil }
}

// New creates a VM with NumTasks tasks, a dictionary seeded with the
// primitive word set, and task 0 selected as current.
func New(opts ...Option) (*VM, error) {
	vm := &VM{
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		if err := o(vm); err != nil {
			return nil, err
		}
	}
	if vm.ds == nil {
		vm.ds = newDataSpace(1 << 20)
	}
	vm.dict = newDictionary(vm.ds)
	for i := range vm.tasks {
		vm.tasks[i] = newTask()
	}
	vm.tasks[0].awake = true
	vm.tasks[0].compiling = false
	vm.currentIdx = 0
	vm.files = make([]*FileHandle, 1) // index 0 reserved/invalid

	vm.installPrimitives()
	return vm, nil
}

func (vm *VM) log() *zerolog.Logger { return &vm.logger }

// currentTask returns the Task the VM is presently scheduled on.
func (vm *VM) currentTask() *Task { return vm.tasks[vm.currentIdx] }

// CurrentTaskIndex returns the zero-based index of the currently scheduled
// task.
func (vm *VM) CurrentTaskIndex() int { return vm.currentIdx }

// Dictionary exposes the VM's word list for introspection (used by hosts
// embedding the VM and by tests).
func (vm *VM) Dictionary() *Dictionary { return vm.dict }

// DataSpace exposes the VM's arena for introspection.
func (vm *VM) DataSpace() *DataSpace { return vm.ds }

// Depth returns the current task's parameter stack depth.
func (vm *VM) Depth() int { return vm.currentTask().Depth() }

// Stack returns a copy of the current task's parameter stack contents,
// bottom to top.
func (vm *VM) Stack() []Cell {
	s := vm.currentTask().pStack.slice()
	out := make([]Cell, len(s))
	copy(out, s)
	return out
}

// Push pushes v onto the current task's parameter stack.
func (vm *VM) Push(v Cell) { vm.currentTask().pStack.push(v) }

// Pop pops the top of the current task's parameter stack.
func (vm *VM) Pop() Cell { return vm.currentTask().pStack.pop() }

// OutputBuffer returns and clears the accumulated output text. An
// enclosing driver is expected to drain and display it (see hooks.go).
func (vm *VM) OutputBuffer() string {
	s := vm.output.String()
	vm.output.Reset()
	return s
}

func (vm *VM) writeOutput(s string) {
	vm.output.WriteString(s)
	if vm.outputSink != nil {
		vm.outputSink.WriteOutput(s)
	}
}

// SetHandler installs the XT that abortWith transfers control to.
func (vm *VM) SetHandler(xt int) { vm.handlerXT = xt }

// checkAddr aborts with InvalidMemoryAddress and returns false if the
// range [addr, addr+n) falls outside the data space; callers that take an
// address from the parameter stack must use this before touching memory,
// per the "out-of-range access raises INVALID_MEMORY_ADDRESS" contract.
func (vm *VM) checkAddr(addr, n int) bool {
	if err := vm.ds.checkRange(addr, n); err != nil {
		vm.log().Debug().Err(err).Msg("invalid memory address")
		vm.abortWith(InvalidMemoryAddress)
		return false
	}
	return true
}

// checkStacks inspects all four stacks of the current task for
// over/underflow and aborts with the matching exception if found. It is
// invoked by the outer interpreter after every token.
func (vm *VM) checkStacks() {
	t := vm.currentTask()
	switch {
	case t.pStack.overflow():
		vm.abortWith(StackOverflow)
	case t.pStack.underflow():
		vm.abortWith(StackUnderflow)
	case t.rStack.overflow():
		vm.abortWith(ReturnStackOverflow)
	case t.rStack.underflow():
		vm.abortWith(ReturnStackUnderflow)
	case t.cStack.overflow():
		vm.abortWith(ControlStackOverflow)
	case t.cStack.underflow():
		vm.abortWith(ControlStackUnderflow)
	case t.fStack.overflow():
		vm.abortWith(FloatingPointStackOverflow)
	case t.fStack.underflow():
		vm.abortWith(FloatingPointStackUnderflow)
	}
}
