package forth

import (
	"math"

	"github.com/pkg/errors"
)

// systemVarsSize is the size, in cells, of the system-variables block that
// occupies the very beginning of the data space: a NULL cell followed by
// the mutable BASE cell.
const systemVarsSize = 2

// baseCellOffset is the cell offset (not byte offset) of BASE within the
// system-variables block.
const baseCellOffset = 1

// DataSpace is a flat byte arena with a bump allocator. All addresses
// handed out to Forth code are absolute offsets into buf and must satisfy
// start <= addr < limit.
type DataSpace struct {
	buf   []byte
	start int
	limit int
	here  int
}

// newDataSpace allocates an arena of size bytes and initializes the
// system-variables block (NULL cell, then BASE = 10).
func newDataSpace(size int) *DataSpace {
	d := &DataSpace{
		buf:   make([]byte, size),
		start: 0,
		limit: size,
	}
	d.here = d.start
	d.putCell(0) // reserved NULL cell
	d.putCell(Cell(10))
	d.Align()
	return d
}

// Here returns the current bump pointer.
func (d *DataSpace) Here() int { return d.here }

// baseAddr returns the address of the BASE cell.
func (d *DataSpace) baseAddr() int { return d.start + baseCellOffset*CellBytes }

func (d *DataSpace) base() Cell {
	return d.getCell(d.baseAddr())
}

func (d *DataSpace) setBase(v Cell) {
	d.putCellAt(v, d.baseAddr())
}

func (d *DataSpace) checkRange(addr, n int) error {
	if addr < d.start || addr+n > d.limit || addr+n < addr {
		return errors.Wrapf(errInvalidAddress, "address %d (+%d bytes) out of [%d, %d)", addr, n, d.start, d.limit)
	}
	return nil
}

var errInvalidAddress = errors.New("invalid memory address")

// Align bumps `here` up to the next cell boundary.
func (d *DataSpace) Align() {
	d.here = d.Aligned(d.here)
}

// Aligned rounds p up to the next cell boundary.
func (d *DataSpace) Aligned(p int) int {
	m := CellBytes
	return (p + m - 1) / m * m
}

// AlignF64 bumps `here` up to the next 8-byte boundary, for float literals.
func (d *DataSpace) AlignF64() {
	d.here = d.Aligned8(d.here)
}

// Aligned8 rounds p up to the next 8-byte boundary.
func (d *DataSpace) Aligned8(p int) int {
	return (p + 7) / 8 * 8
}

// Allot advances `here` by n bytes (n may be negative). Marker rollback
// uses Truncate, not Allot.
func (d *DataSpace) Allot(n int) {
	d.here += n
}

func (d *DataSpace) putByte(v byte) {
	d.buf[d.here] = v
	d.here++
}

func (d *DataSpace) putByteAt(v byte, addr int) {
	d.buf[addr] = v
}

func (d *DataSpace) getByte(addr int) byte {
	return d.buf[addr]
}

// putCell writes a cell at `here` and advances `here` by CellBytes (bump
// allocation write, used when compiling threaded code).
func (d *DataSpace) putCell(v Cell) {
	d.putCellAt(v, d.here)
	d.here += CellBytes
}

func (d *DataSpace) putCellAt(v Cell, addr int) {
	uv := uint(v)
	for i := 0; i < CellBytes; i++ {
		d.buf[addr+i] = byte(uv)
		uv >>= 8
	}
}

func (d *DataSpace) getCell(addr int) Cell {
	var uv uint
	for i := CellBytes - 1; i >= 0; i-- {
		uv = uv<<8 | uint(d.buf[addr+i])
	}
	return signExtend(uv)
}

func signExtend(uv uint) Cell {
	shift := uint(64 - 8*CellBytes)
	if shift == 0 {
		return Cell(uv)
	}
	return Cell(int64(uv<<shift) >> shift)
}

func (d *DataSpace) putFloat(v float64) {
	d.AlignF64()
	bits := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		d.putByte(byte(bits))
		bits >>= 8
	}
}

// putFloatAt writes v at addr without moving `here`, for f!.
func (d *DataSpace) putFloatAt(v float64, addr int) {
	bits := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		d.buf[addr+i] = byte(bits)
		bits >>= 8
	}
}

func (d *DataSpace) getFloat(addr int) float64 {
	var bits uint64
	for i := 7; i >= 0; i-- {
		bits = bits<<8 | uint64(d.buf[addr+i])
	}
	return math.Float64frombits(bits)
}

// CompileCell fetch-and-bumps: writes v at `here`, advances `here`, returns
// the address the cell was written to.
func (d *DataSpace) CompileCell(v Cell) int {
	addr := d.here
	d.putCell(v)
	return addr
}

func (d *DataSpace) CompileFloat(v float64) int {
	d.AlignF64()
	addr := d.here
	d.putFloat(v)
	return addr
}

// CompileString writes s as a length-prefixed (counted) string at `here`
// and returns its address. The byte length is capped at 255.
func (d *DataSpace) CompileString(s string) int {
	if len(s) > 255 {
		s = s[:255]
	}
	addr := d.here
	d.putByte(byte(len(s)))
	for i := 0; i < len(s); i++ {
		d.putByte(s[i])
	}
	return addr
}

// CountedString reads a length-prefixed string at addr.
func (d *DataSpace) CountedString(addr int) string {
	n := int(d.buf[addr])
	return string(d.buf[addr+1 : addr+1+n])
}

// PutCString writes s as a byte-length-prefixed string at p (capped at 255
// bytes), not advancing `here`; used for path names and other
// externally-addressed buffers.
func (d *DataSpace) PutCString(s string, p int) {
	if len(s) > 255 {
		s = s[:255]
	}
	d.buf[p] = byte(len(s))
	copy(d.buf[p+1:], s)
}

// Truncate resets `here` to p. Addresses beyond p become unstable: this is
// the rollback primitive used by `marker`.
func (d *DataSpace) Truncate(p int) {
	d.here = p
}

// Bytes exposes the raw backing array for primitives that need to move
// memory in bulk (`move`, `fill`, `type`, `accept`, the file-access words).
func (d *DataSpace) Bytes() []byte { return d.buf }
