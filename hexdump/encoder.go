package hexdump

import (
	"fmt"
	"io"
	"strings"
)

// Encoder renders a byte range from r as 16-byte dump rows with an ASCII
// gutter.
type Encoder struct {
	r io.ReaderAt
	w io.Writer
}

func NewEncoder(r io.ReaderAt, w io.Writer) *Encoder {
	return &Encoder{
		r: r,
		w: w,
	}
}

// EncodeRows writes length bytes starting at offset, one row per 16 bytes.
// Rows are aligned to the dump grid: the first and last row may be partial.
func (e *Encoder) EncodeRows(offset, length int64) error {
	end := offset + length
	for off := offset; off < end; {
		rowBase := off - off%BytesPerRow
		rowEnd := rowBase + BytesPerRow
		if rowEnd > end {
			rowEnd = end
		}

		row := make([]byte, rowEnd-off)
		if _, err := e.r.ReadAt(row, off); err != nil {
			return err
		}

		if err := e.encodeRow(rowBase, int(off-rowBase), row); err != nil {
			return err
		}

		off = rowEnd
	}

	return nil
}

func (e *Encoder) encodeRow(rowBase int64, lead int, data []byte) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%02x:", rowBase)
	for i := 0; i < BytesPerRow; i++ {
		if i < lead || i >= lead+len(data) {
			sb.WriteString("   ")
			continue
		}
		fmt.Fprintf(&sb, " %02x", data[i-lead])
	}

	sb.WriteString("  ")
	for i := 0; i < lead; i++ {
		sb.WriteByte(' ')
	}
	for _, b := range data {
		if b >= 0x20 && b < 0x7f {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('.')
		}
	}
	sb.WriteByte('\n')

	_, err := io.WriteString(e.w, sb.String())
	return err
}
