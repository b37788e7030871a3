// Package membuf provides a sparse in-memory buffer addressed by absolute
// offsets. Dump rows decoded out of order land at their device offsets and
// gaps read back as zeroes.
package membuf

import (
	"fmt"
	"io"
	"sort"
)

type offsetBuffer struct {
	offset int64
	buf    []byte
}

type MemBuffer struct {
	buffers []*offsetBuffer
}

func NewMemBuffer() *MemBuffer {
	return &MemBuffer{}
}

// findWriteBuffer returns the buffer ending exactly at off, so sequential
// rows extend a single allocation instead of fragmenting.
func (m *MemBuffer) findWriteBuffer(off int64) *offsetBuffer {
	for _, buf := range m.buffers {
		if buf.offset+int64(len(buf.buf)) == off {
			return buf
		}
	}

	return nil
}

func (m *MemBuffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}

	writeBuf := m.findWriteBuffer(off)
	if writeBuf == nil {
		writeBuf = &offsetBuffer{
			offset: off,
		}
		m.buffers = append(m.buffers, writeBuf)
		sort.Slice(m.buffers, func(i, j int) bool {
			return m.buffers[i].offset < m.buffers[j].offset
		})
	}

	writeBuf.buf = append(writeBuf.buf, p...)
	return len(p), nil
}

func (m *MemBuffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= m.Len() {
		return 0, io.EOF
	}

	var pickBuffer *offsetBuffer
	nextStart := m.Len()
	for _, buf := range m.buffers {
		if off >= buf.offset && off < buf.offset+int64(len(buf.buf)) {
			pickBuffer = buf
			break
		}
		if buf.offset > off {
			nextStart = buf.offset
			break
		}
	}

	if pickBuffer == nil {
		// In a gap: zero-fill until the next buffer begins.
		zeroes := nextStart - off
		if zeroes > int64(len(p)) {
			zeroes = int64(len(p))
		}
		for i := int64(0); i < zeroes; i++ {
			p[i] = 0
		}
		if int(zeroes) < len(p) {
			more, err := m.ReadAt(p[zeroes:], off+zeroes)
			return more + int(zeroes), err
		}
		return int(zeroes), nil
	}

	offsetInBuf := off - pickBuffer.offset
	n := copy(p, pickBuffer.buf[offsetInBuf:])

	if n < len(p) {
		more, err := m.ReadAt(p[n:], off+int64(n))
		return more + n, err
	}
	return n, nil
}

// Len reports one past the highest written offset.
func (m *MemBuffer) Len() int64 {
	var lastByte int64
	for _, buf := range m.buffers {
		curLB := buf.offset + int64(len(buf.buf))
		if curLB > lastByte {
			lastByte = curLB
		}
	}

	return lastByte
}

func (m *MemBuffer) Reader() io.Reader {
	return io.NewSectionReader(m, 0, m.Len())
}

var _ io.WriterAt = (*MemBuffer)(nil)
var _ io.ReaderAt = (*MemBuffer)(nil)
