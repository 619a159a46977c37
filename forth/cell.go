// Package forth implements the core of a real-time-oriented Forth virtual
// machine: a hashed dictionary, a token-threaded dual interpreter, a
// control-flow compiler and a cooperative multitasker.
//
// The host CLI and line-editing terminal I/O are not implemented here; a
// host supplies output, input and filesystem access through the contracts
// in hooks.go, which also holds a default os-backed FileSystem and the
// file-access words. See cmd/forth for a minimal driver.
package forth

import "unsafe"

// Cell is the machine word: a platform-sized signed integer. The parameter
// and return stacks and the threaded code are cell-granular; the data space
// itself is byte-addressed.
type Cell int

// UCell is the unsigned view of Cell, used for shifts and address
// arithmetic where wraparound must not sign-extend.
type UCell uint

// CellBytes is the width in bytes of a Cell on this platform.
var CellBytes = int(unsafe.Sizeof(Cell(0)))

// FloatBytes is the width in bytes of a float cell (always float64).
const FloatBytes = 8
