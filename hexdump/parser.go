// Package hexdump decodes the text output of the external bus dump utility
// into raw bytes, and renders raw bytes back out as a human-readable dump.
package hexdump

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// BytesPerRow is the dump grid width used by i2cdump and by the Encoder.
const BytesPerRow = 16

// Row records one decoded dump line.
type Row struct {
	Offset uint16
	Length int
}

// rowPattern matches i2cdump data lines: a hex row address, a colon, and at
// least one byte cell. The ASCII gutter is ignored.
var rowPattern = regexp.MustCompile(`^[0-9a-f]{2}: `)

// Parser consumes i2cdump-style text and writes the decoded bytes to w at
// their device offsets. Mirrors the record loop of an Intel HEX parser:
//
//	p := hexdump.NewParser(r, buf)
//	for p.HasNext() {
//	    if err := p.ReadRow(); err != nil { ... }
//	}
type Parser struct {
	sc *bufio.Scanner
	w  io.WriterAt

	line int
	eof  bool

	Rows []Row
}

func NewParser(r io.Reader, w io.WriterAt) *Parser {
	return &Parser{
		sc: bufio.NewScanner(r),
		w:  w,
	}
}

// ReadRow consumes input until one data row has been decoded and written,
// or until end of input. The column header emitted before the first row and
// blank lines are skipped.
func (p *Parser) ReadRow() error {
	for {
		if !p.sc.Scan() {
			if err := p.sc.Err(); err != nil {
				return err
			}
			p.eof = true
			return nil
		}
		p.line++
		line := p.sc.Text()

		if rowPattern.MatchString(line) {
			return p.decodeRow(line)
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		// i2cdump prints a column header ("  0  1  2 ...") before the grid.
		if p.line == 1 {
			continue
		}

		return fmt.Errorf("line %d: unrecognized dump line %q", p.line, line)
	}
}

// Row layout: two hex digits, ": ", then 16 three-character byte cells,
// then the ASCII gutter. Cells are addressed by column so gutter content
// never gets mistaken for data.
const dataColumn = 4

func (p *Parser) decodeRow(line string) error {
	offset, err := strconv.ParseUint(line[:2], 16, 16)
	if err != nil {
		return fmt.Errorf("line %d: bad row address %q: %v", p.line, line[:2], err)
	}
	if offset%BytesPerRow != 0 {
		return fmt.Errorf("line %d: row address 0x%02x not a multiple of %d", p.line, offset, BytesPerRow)
	}

	var decoded int
	seg := make([]byte, 0, BytesPerRow)
	segStart := -1

	flush := func() error {
		if segStart < 0 || len(seg) == 0 {
			return nil
		}
		if _, err := p.w.WriteAt(seg, int64(offset)+int64(segStart)); err != nil {
			return err
		}
		decoded += len(seg)
		seg = seg[:0]
		segStart = -1
		return nil
	}

	for i := 0; i < BytesPerRow; i++ {
		pos := dataColumn + 3*i
		if pos+2 > len(line) {
			break
		}
		cell := line[pos : pos+2]

		// Ranged dumps leave cells outside the range blank.
		if cell == "  " {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		// The dump tool prints XX for cells it could not read.
		if cell == "XX" || cell == "xx" {
			return fmt.Errorf("line %d: unreadable byte at 0x%02x", p.line, int(offset)+i)
		}

		b, err := hex.DecodeString(cell)
		if err != nil {
			return fmt.Errorf("line %d: bad byte cell %q at 0x%02x", p.line, cell, int(offset)+i)
		}
		if segStart < 0 {
			segStart = i
		}
		seg = append(seg, b[0])
	}

	if err := flush(); err != nil {
		return err
	}
	if decoded == 0 {
		return fmt.Errorf("line %d: dump row 0x%02x carries no data", p.line, offset)
	}

	p.Rows = append(p.Rows, Row{
		Offset: uint16(offset),
		Length: decoded,
	})

	return nil
}

func (p *Parser) HasNext() bool {
	return !p.eof
}
