package forth

import (
	"os"
)

// This file is the VM's boundary with the outside world: the collaborator
// contracts a host program implements to supply terminal I/O and a real
// filesystem, plus the FileHandle table used by the file-access words and
// the source-stack bookkeeping (PushSource/PopSource) a host uses to nest
// input sources.

// OutputSink receives the VM's emitted text. When none is installed,
// output simply accumulates in the internal buffer drained by
// OutputBuffer.
type OutputSink interface {
	WriteOutput(s string)
}

// InputSource supplies terminal input a line at a time, for a REPL-style
// host loop. It is not used internally by Evaluate, which works off an
// already-materialized string, and cmd/forth reads stdin with a
// bufio.Scanner instead of implementing it.
type InputSource interface {
	ReadLine() (line string, ok bool)
}

// FileSystem abstracts the open/read/write/close operations behind the
// file-access word set, so embedding hosts can sandbox or fake it in
// tests.
type FileSystem interface {
	Open(name string, write bool) (FileStream, error)
}

// FileStream is the minimal handle shape the file-access words need.
type FileStream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// osFileSystem is the default FileSystem, grounded directly on os.Open /
// os.OpenFile.
type osFileSystem struct{}

func (osFileSystem) Open(name string, write bool) (FileStream, error) {
	if write {
		return os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	}
	return os.Open(name)
}

// FileHandle is one entry of the VM's file table; handle 0 is reserved and
// never valid.
type FileHandle struct {
	stream FileStream
	path   string
}

// WithOutputSink installs a sink that receives output as it is written,
// in addition to the internal buffer.
func WithOutputSink(s OutputSink) Option {
	return func(vm *VM) error { vm.outputSink = s; return nil }
}

// WithFileSystem overrides the default os-backed FileSystem, e.g. for
// sandboxed tests.
func WithFileSystem(fs FileSystem) Option {
	return func(vm *VM) error { vm.fs = fs; return nil }
}

// allocFile installs stream in the first free table slot (or appends) and
// returns its handle number.
func (vm *VM) allocFile(stream FileStream, path string) int {
	for i := 1; i < len(vm.files); i++ {
		if vm.files[i] == nil {
			vm.files[i] = &FileHandle{stream: stream, path: path}
			return i
		}
	}
	vm.files = append(vm.files, &FileHandle{stream: stream, path: path})
	return len(vm.files) - 1
}

func (vm *VM) fileAt(h int) (*FileHandle, bool) {
	if h <= 0 || h >= len(vm.files) || vm.files[h] == nil {
		return nil, false
	}
	return vm.files[h], true
}

// PushSource suspends the current task's input in favor of a nested
// source (e.g. a file being included), remembering where to resume.
func (vm *VM) PushSource(id int, buffer string) {
	t := vm.currentTask()
	t.sources = append(t.sources, sourceFrame{id: t.sourceID, buffer: t.inputBuffer, index: t.sourceIndex})
	t.sourceID = id
	t.inputBuffer = buffer
	t.sourceIndex = 0
}

// PopSource restores the input suspended by the most recent PushSource,
// reporting false if there was nothing to pop.
func (vm *VM) PopSource() bool {
	t := vm.currentTask()
	if len(t.sources) == 0 {
		return false
	}
	frame := t.sources[len(t.sources)-1]
	t.sources = t.sources[:len(t.sources)-1]
	t.sourceID = frame.id
	t.inputBuffer = frame.buffer
	t.sourceIndex = frame.index
	return true
}

// --- file-access word set ---

// fileIOR is the ior cell pushed on a file-access failure: a non-zero ior
// is the negated Exception ordinal. `throw` does not negate it back, so
// throwing it aborts with an unnamed (negative) exception code.
const fileIOR = Cell(-int(FileIOException))

func primOpenFile(vm *VM) {
	t := vm.currentTask()
	mode := t.pStack.pop()
	n := int(t.pStack.pop())
	addr := int(t.pStack.pop())
	if !vm.checkAddr(addr, n) {
		return
	}
	name := string(vm.ds.Bytes()[addr : addr+n])
	fs := vm.fs
	if fs == nil {
		fs = osFileSystem{}
	}
	stream, err := fs.Open(name, mode != 0)
	if err != nil {
		t.pStack.push(0)
		t.pStack.push(fileIOR)
		return
	}
	h := vm.allocFile(stream, name)
	t.pStack.push(Cell(h))
	t.pStack.push(0)
}

func primCloseFile(vm *VM) {
	t := vm.currentTask()
	h := int(t.pStack.pop())
	fh, ok := vm.fileAt(h)
	if !ok {
		t.pStack.push(fileIOR)
		return
	}
	err := fh.stream.Close()
	vm.files[h] = nil
	if err != nil {
		t.pStack.push(fileIOR)
		return
	}
	t.pStack.push(0)
}

func primReadFile(vm *VM) {
	t := vm.currentTask()
	h := int(t.pStack.pop())
	n := int(t.pStack.pop())
	addr := int(t.pStack.pop())
	if !vm.checkAddr(addr, n) {
		return
	}
	fh, ok := vm.fileAt(h)
	if !ok {
		t.pStack.push(0)
		t.pStack.push(fileIOR)
		return
	}
	got, err := fh.stream.Read(vm.ds.Bytes()[addr : addr+n])
	t.pStack.push(Cell(got))
	if err != nil && got == 0 {
		t.pStack.push(fileIOR)
		return
	}
	t.pStack.push(0)
}

func primWriteFile(vm *VM) {
	t := vm.currentTask()
	h := int(t.pStack.pop())
	n := int(t.pStack.pop())
	addr := int(t.pStack.pop())
	if !vm.checkAddr(addr, n) {
		return
	}
	fh, ok := vm.fileAt(h)
	if !ok {
		t.pStack.push(fileIOR)
		return
	}
	_, err := fh.stream.Write(vm.ds.Bytes()[addr : addr+n])
	if err != nil {
		t.pStack.push(fileIOR)
		return
	}
	t.pStack.push(0)
}
