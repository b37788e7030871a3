package cmd

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bits-and-blooms/bitset"

	"github.com/nitinp/i2cfile/i2cparam"
	"github.com/nitinp/i2cfile/i2ctool"
	"github.com/nitinp/i2cfile/transfer"
)

func TestExitCodes(t *testing.T) {
	mismatches := bitset.New(256)
	mismatches.Set(0x10)

	for _, tc := range []struct {
		name string
		err  error
		want int
	}{
		{"missing bus", &busNotFoundError{}, exitNoBus},
		{"absent bus", &busNotFoundError{Bus: "i2c-9"}, exitNoBus},
		{"bad bus format", &i2cparam.FormatError{Field: i2cparam.FieldBus}, exitNoBus},
		{"bad chip address", &i2cparam.FormatError{Field: i2cparam.FieldChipAddress}, exitBadAddress},
		{"bad start address", &i2cparam.FormatError{Field: i2cparam.FieldDataAddress}, exitBadAddress},
		{"bad length", &i2cparam.FormatError{Field: i2cparam.FieldLength}, exitBadNumber},
		{"bad offset", &i2cparam.FormatError{Field: i2cparam.FieldOffset}, exitBadNumber},
		{"file error", &fileError{Err: fmt.Errorf("open: no such file")}, exitFileError},
		{"path error", &fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist}, exitFileError},
		{"short input", &transfer.RangeError{What: "input", Need: 8, Have: 2}, exitFileError},
		{"verify mismatch", &transfer.VerifyError{Chip: 0x50, Mismatches: mismatches}, exitBusIO},
		{"tool failure", &i2ctool.ToolError{Tool: "i2cset", Err: fmt.Errorf("exit status 1")}, exitBusIO},
		{"anything else", fmt.Errorf("unknown flag: --start"), exitUsage},
	} {
		if got := exitCode(tc.err); got != tc.want {
			t.Errorf("%s: exitCode = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func resetFlags() {
	flagBus = ""
	flagChip = "0x50"
	flagDelay = transfer.DefaultDelay
	flagDryRun = false
	flagMetricsFile = ""
	flagDetectPath = ""
	flagSetPath = ""
	flagDumpPath = ""
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	return out.String(), err
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWriteDryRun(t *testing.T) {
	input := writeTempFile(t, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	out, err := runCLI(t, "write", "--dry-run", "-b", "1", "-f", input, "-n", "4", "-s", "0x10")
	if err != nil {
		t.Fatalf("write --dry-run: %v", err)
	}

	if got := strings.Count(out, "would run: i2cset"); got != 4 {
		t.Errorf("expected 4 planned i2cset calls, got %d:\n%s", got, out)
	}
	if !strings.Contains(out, "0x10 0xde") {
		t.Errorf("first write missing from plan:\n%s", out)
	}
	if !strings.Contains(out, "0x13 0xef") {
		t.Errorf("last write missing from plan:\n%s", out)
	}
}

func TestWriteMissingBus(t *testing.T) {
	input := writeTempFile(t, []byte{1})

	_, err := runCLI(t, "write", "--dry-run", "-f", input, "-n", "1")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := exitCode(err); got != exitNoBus {
		t.Errorf("exit code = %d, want %d", got, exitNoBus)
	}
}

func TestWriteBadChipAddress(t *testing.T) {
	input := writeTempFile(t, []byte{1})

	_, err := runCLI(t, "write", "--dry-run", "-b", "1", "-c", "nope", "-f", input, "-n", "1")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := exitCode(err); got != exitBadAddress {
		t.Errorf("exit code = %d, want %d", got, exitBadAddress)
	}
}

func TestWriteBadLength(t *testing.T) {
	input := writeTempFile(t, []byte{1})

	_, err := runCLI(t, "write", "--dry-run", "-b", "1", "-f", input, "-n", "0x10")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := exitCode(err); got != exitBadNumber {
		t.Errorf("exit code = %d, want %d", got, exitBadNumber)
	}
}

func TestWriteMissingInputFile(t *testing.T) {
	_, err := runCLI(t, "write", "--dry-run", "-b", "1", "-f", "/does/not/exist.bin", "-n", "1")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := exitCode(err); got != exitFileError {
		t.Errorf("exit code = %d, want %d", got, exitFileError)
	}
}

func TestWriteWindowExceededExitCode(t *testing.T) {
	input := writeTempFile(t, make([]byte, 32))

	_, err := runCLI(t, "write", "--dry-run", "-b", "1", "-f", input, "-n", "32", "-s", "0xf8")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := exitCode(err); got != exitBadAddress {
		t.Errorf("exit code = %d, want %d", got, exitBadAddress)
	}
}

func TestReadRejectsStartFlag(t *testing.T) {
	_, err := runCLI(t, "read", "--dry-run", "-b", "1", "-f", "-", "-s", "0x10")
	if err == nil {
		t.Fatal("expected error for -s in read mode")
	}
	if got := exitCode(err); got != exitUsage {
		t.Errorf("exit code = %d, want %d", got, exitUsage)
	}
}

func TestMissingMode(t *testing.T) {
	_, err := runCLI(t)
	if err == nil {
		t.Fatal("expected error when no mode is given")
	}
	if got := exitCode(err); got != exitUsage {
		t.Errorf("exit code = %d, want %d", got, exitUsage)
	}
	if !strings.Contains(err.Error(), "missing mode") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReadDryRun(t *testing.T) {
	out, err := runCLI(t, "read", "--dry-run", "-b", "1", "-f", "-")
	if err != nil {
		t.Fatalf("read --dry-run: %v", err)
	}

	if !strings.Contains(out, "would run: i2cdump -y 1 0x50 b") {
		t.Errorf("planned i2cdump call missing:\n%s", out)
	}
}

func TestWriteNoConfirmDump(t *testing.T) {
	input := writeTempFile(t, []byte{1})

	_, err := runCLI(t, "write", "--dry-run", "-b", "1", "-f", input, "-n", "1", "--no-confirm-dump")
	if err != nil {
		t.Fatalf("write --no-confirm-dump: %v", err)
	}
}

func TestDetectUnknownBus(t *testing.T) {
	// A stand-in i2cdetect that enumerates only bus 1.
	script := filepath.Join(t.TempDir(), "i2cdetect")
	list := "#!/bin/sh\nprintf 'i2c-1\\ti2c       \\tfake adapter\\tI2C adapter\\n'\n"
	if err := os.WriteFile(script, []byte(list), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := runCLI(t, "detect", "-b", "9", "--i2cdetect", script)
	if err == nil {
		t.Fatal("expected error for unknown bus")
	}
	if got := exitCode(err); got != exitNoBus {
		t.Errorf("exit code = %d, want %d", got, exitNoBus)
	}
}

func TestUnknownFlag(t *testing.T) {
	_, err := runCLI(t, "read", "--bogus")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := exitCode(err); got != exitUsage {
		t.Errorf("exit code = %d, want %d", got, exitUsage)
	}
}
