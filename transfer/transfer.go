// Package transfer drives byte-level transfers between binary files and a
// device on the bus: a linear per-byte write loop with a fixed inter-write
// pause, and a dump-then-slice read path.
package transfer

import (
	"context"
	"io"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"

	"github.com/nitinp/i2cfile/i2cparam"
	"github.com/nitinp/i2cfile/i2ctool"
	"github.com/nitinp/i2cfile/membuf"
)

// Phase identifies the stage a Progress report belongs to.
type Phase int

const (
	PhaseWriting Phase = iota
	PhaseConfirming
	PhaseReading
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseWriting:
		return "writing"
	case PhaseConfirming:
		return "confirming"
	case PhaseReading:
		return "reading"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Progress reports transfer advancement.
type Progress struct {
	Phase       Phase
	CurrentByte int
	TotalBytes  int
	Percentage  float64
	Elapsed     time.Duration
}

type ProgressCallback func(Progress)

// Result summarizes a completed transfer.
type Result struct {
	Mode     string
	Bytes    int
	Writes   int
	Verified bool
	Elapsed  time.Duration
}

// Transfer orchestrates reads and writes through the external bus tools.
type Transfer struct {
	tools  *i2ctool.Tools
	config Config
}

func New(tools *i2ctool.Tools, opts ...Option) *Transfer {
	if tools == nil {
		panic("tools cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Transfer{
		tools:  tools,
		config: cfg,
	}
}

// Write streams length bytes from src (after discarding offset bytes) into
// the device one byte at a time, starting at start. Afterwards the chip is
// dumped for confirmation; the dump is returned so callers can render it.
// With verification enabled, the dumped window is compared byte-for-byte
// against what was written.
func (t *Transfer) Write(
	ctx context.Context,
	bus i2cparam.Bus,
	chip i2cparam.ChipAddress,
	start i2cparam.DataAddress,
	src io.Reader,
	offset i2cparam.Offset,
	length i2cparam.Length,
) (*Result, *membuf.MemBuffer, error) {
	if err := i2cparam.CheckWindow(start, length); err != nil {
		return nil, nil, err
	}

	data, err := readWindow(src, offset, length)
	if err != nil {
		return nil, nil, err
	}

	startTime := time.Now()
	t.reportProgress(Progress{
		Phase:      PhaseWriting,
		TotalBytes: len(data),
	})

	for i, b := range data {
		if err := ctx.Err(); err != nil {
			return nil, nil, errors.Wrap(err, "cancelled")
		}

		addr := i2cparam.DataAddress(int(start) + i)
		if err := t.tools.WriteByte(ctx, bus, chip, addr, b); err != nil {
			return nil, nil, errors.Wrapf(err, "write byte %d of %d at %s", i+1, len(data), addr)
		}

		if t.config.Delay > 0 {
			time.Sleep(t.config.Delay)
		}

		t.reportProgress(Progress{
			Phase:       PhaseWriting,
			CurrentByte: i + 1,
			TotalBytes:  len(data),
			Percentage:  float64(i+1) / float64(len(data)) * 90,
			Elapsed:     time.Since(startTime),
		})
	}

	result := &Result{
		Mode:   "write",
		Bytes:  len(data),
		Writes: len(data),
	}

	var dump *membuf.MemBuffer
	if t.config.ConfirmDump || t.config.Verify {
		t.reportProgress(Progress{
			Phase:       PhaseConfirming,
			CurrentByte: len(data),
			TotalBytes:  len(data),
			Percentage:  90,
			Elapsed:     time.Since(startTime),
		})

		dump = membuf.NewMemBuffer()
		if _, err := t.tools.Dump(ctx, bus, chip, dump); err != nil {
			return nil, nil, errors.Wrap(err, "confirmation dump")
		}

		if t.config.Verify {
			if err := verifyWindow(chip, start, data, dump); err != nil {
				return nil, dump, err
			}
			result.Verified = true
			t.logf("verified %d bytes at %s on %s", len(data), start, chip)
		}
	}

	result.Elapsed = time.Since(startTime)
	t.reportProgress(Progress{
		Phase:       PhaseComplete,
		CurrentByte: len(data),
		TotalBytes:  len(data),
		Percentage:  100,
		Elapsed:     result.Elapsed,
	})

	t.logf("wrote %d bytes to %s on %s in %s", len(data), chip, bus, result.Elapsed)

	return result, dump, nil
}

// Read dumps the device and copies its first length bytes into dst.
// Positioning inside the destination file is the caller's concern. A dump
// shorter than length is a range error.
func (t *Transfer) Read(
	ctx context.Context,
	bus i2cparam.Bus,
	chip i2cparam.ChipAddress,
	dst io.Writer,
	length i2cparam.Length,
) (*Result, error) {
	startTime := time.Now()
	t.reportProgress(Progress{
		Phase:      PhaseReading,
		TotalBytes: int(length),
	})

	buf := membuf.NewMemBuffer()
	if _, err := t.tools.Dump(ctx, bus, chip, buf); err != nil {
		return nil, errors.Wrap(err, "dump")
	}

	if buf.Len() < int64(length) {
		return nil, &RangeError{
			What: "device dump",
			Need: int64(length),
			Have: buf.Len(),
		}
	}

	if _, err := io.Copy(dst, io.NewSectionReader(buf, 0, int64(length))); err != nil {
		return nil, errors.Wrap(err, "write output")
	}

	result := &Result{
		Mode:    "read",
		Bytes:   int(length),
		Elapsed: time.Since(startTime),
	}

	t.reportProgress(Progress{
		Phase:       PhaseComplete,
		CurrentByte: int(length),
		TotalBytes:  int(length),
		Percentage:  100,
		Elapsed:     result.Elapsed,
	})

	t.logf("read %d bytes from %s on %s in %s", length, chip, bus, result.Elapsed)

	return result, nil
}

// readWindow skips offset bytes of src and reads exactly length bytes.
func readWindow(src io.Reader, offset i2cparam.Offset, length i2cparam.Length) ([]byte, error) {
	if offset > 0 {
		skipped, err := io.CopyN(io.Discard, src, int64(offset))
		if err == io.EOF {
			return nil, &RangeError{
				What: "input",
				Need: int64(offset) + int64(length),
				Have: skipped,
			}
		}
		if err != nil {
			return nil, errors.Wrap(err, "skip input offset")
		}
	}

	data := make([]byte, int(length))
	n, err := io.ReadFull(src, data)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return nil, &RangeError{
			What: "input",
			Need: int64(offset) + int64(length),
			Have: int64(offset) + int64(n),
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "read input")
	}

	return data, nil
}

// verifyWindow compares the written window against the dump, collecting
// mismatched addresses.
func verifyWindow(chip i2cparam.ChipAddress, start i2cparam.DataAddress, data []byte, dump *membuf.MemBuffer) error {
	got := make([]byte, len(data))
	if _, err := dump.ReadAt(got, int64(start)); err != nil {
		return &RangeError{
			What: "confirmation dump",
			Need: int64(start) + int64(len(data)),
			Have: dump.Len(),
		}
	}

	mismatches := bitset.New(uint(i2cparam.DeviceWindow))
	for i := range data {
		if data[i] != got[i] {
			mismatches.Set(uint(int(start) + i))
		}
	}

	if mismatches.Any() {
		return &VerifyError{
			Chip:       chip,
			Mismatches: mismatches,
		}
	}

	return nil
}

// reportProgress calls the progress callback if configured.
func (t *Transfer) reportProgress(progress Progress) {
	if t.config.ProgressCallback != nil {
		t.config.ProgressCallback(progress)
	}
}

func (t *Transfer) logf(format string, args ...interface{}) {
	if t.config.Logger != nil {
		t.config.Logger.Printf(format, args...)
	}
}
