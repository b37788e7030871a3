package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/nitinp/i2cfile/hexdump"
	"github.com/nitinp/i2cfile/i2cparam"
	"github.com/nitinp/i2cfile/transfer"
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Stream bytes from a binary file into a device",
	Long: `Read bytes from a binary file and write them to the chip one byte at a
time, pausing between writes. Afterwards the chip is dumped for
confirmation. Filename - reads from stdin.

Example:
  i2cfile write -b 1 -c 0x50 -s 0x00 -f edid.bin --verify`,
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringP("file", "f", "", "input file, - for stdin (required)")
	writeCmd.Flags().StringP("length", "n", "128", "number of bytes to write")
	writeCmd.Flags().StringP("offset", "o", "0", "byte position in the input file")
	writeCmd.Flags().StringP("start", "s", "0x00", "device address of the first byte")
	writeCmd.Flags().Bool("verify", false, "compare the post-write dump against the written bytes")
	writeCmd.Flags().Bool("no-confirm-dump", false, "skip the confirmation dump")
	//nolint:errcheck
	writeCmd.MarkFlagRequired("file")
}

func runWrite(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	file, _ := cmd.Flags().GetString("file")
	lengthStr, _ := cmd.Flags().GetString("length")
	offsetStr, _ := cmd.Flags().GetString("offset")
	startStr, _ := cmd.Flags().GetString("start")
	verify, _ := cmd.Flags().GetBool("verify")
	noDump, _ := cmd.Flags().GetBool("no-confirm-dump")

	length, err := i2cparam.ParseLength(lengthStr)
	if err != nil {
		return err
	}
	offset, err := i2cparam.ParseOffset(offsetStr)
	if err != nil {
		return err
	}
	start, err := i2cparam.ParseDataAddress(startStr)
	if err != nil {
		return err
	}
	if err := i2cparam.CheckWindow(start, length); err != nil {
		return err
	}

	tools := newTools(cmd.OutOrStdout())
	bus, chip, err := resolveBusChip(cmd.Context(), tools)
	if err != nil {
		return err
	}

	src, closeSrc, err := openInput(file)
	if err != nil {
		return err
	}
	defer closeSrc()

	confirm := !noDump && !flagDryRun
	tr := transfer.New(tools,
		transfer.WithDelay(flagDelay),
		transfer.WithVerify(verify && !flagDryRun),
		transfer.WithConfirmDump(confirm),
		transfer.WithLogger(log.Default()),
	)

	result, dump, err := tr.Write(cmd.Context(), bus, chip, start, src, offset, length)
	if err != nil {
		return err
	}

	if confirm && dump != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s on %s after writing %d byte(s):\n", chip, bus, result.Bytes)
		enc := hexdump.NewEncoder(dump, cmd.OutOrStdout())
		if err := enc.EncodeRows(0, dump.Len()); err != nil {
			return err
		}
	}

	if flagMetricsFile != "" && !flagDryRun {
		if err := writeMetrics(flagMetricsFile, result, bus, chip); err != nil {
			return &fileError{Err: err}
		}
	}

	return nil
}

// openInput opens the source file. "-" selects stdin.
func openInput(file string) (io.Reader, func(), error) {
	if file == "-" {
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, nil, &fileError{Err: err}
	}

	return f, func() { _ = f.Close() }, nil
}
