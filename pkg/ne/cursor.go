package ne

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// cursor is a seekable view over the image's byte source. Reads past the
// end of the source are short, and fixed width reads that can not be
// satisfied set err, after which every read returns zero values.
// Callers must seek to an absolute offset before reading, a cursor's
// position is only meaningful within one decoding loop.
type cursor struct {
	r    io.ReaderAt
	size int64
	off  int64
	err  error
	ctx  string
}

func newCursor(r io.ReaderAt, size int64, ctx string) *cursor {
	return &cursor{r: r, size: size, ctx: ctx}
}

func (c *cursor) seek(off int64) {
	c.off = off
}

func (c *cursor) tell() int64 {
	return c.off
}

func (c *cursor) eof() bool {
	return c.off < 0 || c.off >= c.size
}

// read returns up to n bytes starting at the current offset. The returned
// slice is shorter than n when the end of the source is reached.
func (c *cursor) read(n int) []byte {
	if c.err != nil || n <= 0 || c.eof() {
		return nil
	}
	if rem := c.size - c.off; int64(n) > rem {
		n = int(rem)
	}
	buf := make([]byte, n)
	got, err := c.r.ReadAt(buf, c.off)
	if got < n && err != nil && err != io.EOF {
		c.err = fmt.Errorf("read error at %#x while %s: %w", c.off, c.ctx, err)
	}
	c.off += int64(got)
	return buf[:got]
}

func (c *cursor) fixed(n int) []byte {
	if c.err != nil {
		return nil
	}
	start := c.off
	b := c.read(n)
	if c.err == nil && len(b) < n {
		c.err = fmt.Errorf("truncated at offset %#x while %s: %w", start, c.ctx, io.ErrUnexpectedEOF)
		return nil
	}
	return b
}

func (c *cursor) u8() uint8 {
	b := c.fixed(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.fixed(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// record decodes the fixed layout record v, a pointer to a struct made of
// fixed size fields, at the current offset.
func (c *cursor) record(v interface{}) bool {
	n := binary.Size(v)
	b := c.fixed(n)
	if b == nil {
		return false
	}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, v); err != nil {
		c.err = fmt.Errorf("bad record at %#x while %s: %w", c.off-int64(n), c.ctx, err)
		return false
	}
	return true
}

// pstring reads a string prefixed by its 8-bit length. A missing length
// byte reads as the empty string.
func (c *cursor) pstring() string {
	if c.eof() {
		return ""
	}
	n := c.u8()
	return string(c.read(int(n)))
}
