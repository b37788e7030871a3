package cmd

import (
	"bytes"
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nitinp/i2cfile/hexdump"
	"github.com/nitinp/i2cfile/i2cparam"
	"github.com/nitinp/i2cfile/membuf"
	"github.com/nitinp/i2cfile/transfer"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Dump a device's bytes into a binary file",
	Long: `Dump the chip's contents and decode them into a binary file. With an
offset, the decoded bytes are written starting at that position in the
output file. Filename - writes to stdout.

Example:
  i2cfile read -b 1 -c 0x50 -n 128 -f edid.bin`,
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringP("file", "f", "", "output file, - for stdout (required)")
	readCmd.Flags().StringP("length", "n", "128", "number of bytes to read")
	readCmd.Flags().StringP("offset", "o", "0", "byte position in the output file")
	readCmd.Flags().Bool("hex", false, "write a hex dump instead of raw bytes")
	//nolint:errcheck
	readCmd.MarkFlagRequired("file")
}

func runRead(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	file, _ := cmd.Flags().GetString("file")
	lengthStr, _ := cmd.Flags().GetString("length")
	offsetStr, _ := cmd.Flags().GetString("offset")
	asHex, _ := cmd.Flags().GetBool("hex")

	length, err := i2cparam.ParseLength(lengthStr)
	if err != nil {
		return err
	}
	offset, err := i2cparam.ParseOffset(offsetStr)
	if err != nil {
		return err
	}

	tools := newTools(cmd.OutOrStdout())
	bus, chip, err := resolveBusChip(cmd.Context(), tools)
	if err != nil {
		return err
	}

	if flagDryRun {
		// Print the planned dump command; nothing to decode or write.
		_, err := tools.Dump(cmd.Context(), bus, chip, membuf.NewMemBuffer())
		return err
	}

	out, closeOut, err := openOutput(file, offset)
	if err != nil {
		return err
	}
	defer closeOut()

	tr := transfer.New(tools, transfer.WithLogger(log.Default()))

	var buf bytes.Buffer
	result, err := tr.Read(cmd.Context(), bus, chip, &buf, length)
	if err != nil {
		return err
	}

	if asHex {
		enc := hexdump.NewEncoder(bytes.NewReader(buf.Bytes()), out)
		if err := enc.EncodeRows(0, int64(buf.Len())); err != nil {
			return &fileError{Err: err}
		}
	} else {
		if _, err := io.Copy(out, &buf); err != nil {
			return &fileError{Err: err}
		}
	}

	if flagMetricsFile != "" && !flagDryRun {
		if err := writeMetrics(flagMetricsFile, result, bus, chip); err != nil {
			return &fileError{Err: errors.Wrap(err, "write metrics")}
		}
	}

	return nil
}

// openOutput opens the destination file positioned at offset. "-" selects
// stdout, which cannot seek.
func openOutput(file string, offset i2cparam.Offset) (io.Writer, func(), error) {
	if file == "-" {
		if offset != 0 {
			return nil, nil, &fileError{Err: errors.New("an offset needs a seekable output file, not stdout")}
		}
		return os.Stdout, func() {}, nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset == 0 {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(file, flags, 0644)
	if err != nil {
		return nil, nil, &fileError{Err: err}
	}

	if offset != 0 {
		if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
			_ = f.Close()
			return nil, nil, &fileError{Err: err}
		}
	}

	return f, func() { _ = f.Close() }, nil
}
