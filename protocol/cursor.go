package protocol

import (
	"encoding/binary"
	"math"
)

// cursor reads little-endian primitives out of an instruction or account byte
// buffer with bounds checking. Every read advances the position; done reports
// whether the buffer was consumed exactly.
type cursor struct {
	b   []byte
	pos int
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b, pos: 0}
}

func (c *cursor) remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

func (c *cursor) readExact(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, Errf(ERR_ENCODING, "parse: truncated")
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

func (c *cursor) readU8() (byte, error) {
	b, err := c.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) readU16LE() (uint16, error) {
	b, err := c.readExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) readU32LE() (uint32, error) {
	b, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readU64LE() (uint64, error) {
	b, err := c.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *cursor) readI64LE() (int64, error) {
	v, err := c.readU64LE()
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// readString reads a u32-length-prefixed UTF-8 string.
func (c *cursor) readString() (string, error) {
	n, err := c.readU32LE()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(c.remaining()) {
		return "", Errf(ERR_ENCODING, "parse: string length %d exceeds remaining %d", n, c.remaining())
	}
	b, err := c.readExact(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *cursor) done() error {
	if c.pos != len(c.b) {
		return Errf(ERR_ENCODING, "parse: trailing bytes")
	}
	return nil
}

// writer appends little-endian primitives to a growing buffer. The receiving
// program parses positionally, so callers append fields in declared order
// with no padding or alignment.
type writer struct {
	b []byte
}

func newWriter(capHint int) *writer {
	return &writer{b: make([]byte, 0, capHint)}
}

func (w *writer) bytes() []byte { return w.b }

func (w *writer) len() int { return len(w.b) }

func (w *writer) writeU8(v byte) {
	w.b = append(w.b, v)
}

func (w *writer) writeU16LE(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

func (w *writer) writeU32LE(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

func (w *writer) writeU64LE(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

func (w *writer) writeI64LE(v int64) {
	w.writeU64LE(uint64(v))
}

func (w *writer) writeBytes(b []byte) {
	w.b = append(w.b, b...)
}

// writeString writes a u32-length-prefixed UTF-8 string.
func (w *writer) writeString(s string) error {
	if uint64(len(s)) > math.MaxUint32 {
		return Errf(ERR_ENCODING, "encode: string length overflows u32")
	}
	w.writeU32LE(uint32(len(s)))
	w.b = append(w.b, s...)
	return nil
}
