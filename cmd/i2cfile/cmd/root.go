package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nitinp/i2cfile/i2cparam"
	"github.com/nitinp/i2cfile/i2ctool"
	"github.com/nitinp/i2cfile/transfer"
)

// Exit codes, one per failure category.
const (
	exitUsage      = 1 // bad flags, unknown mode, unsupported combination
	exitNoBus      = 2 // bus not given or not present on the system
	exitBadAddress = 3 // chip or start address fails hex validation
	exitBadNumber  = 4 // length or offset fails decimal validation
	exitFileError  = 5 // input/output file problems
	exitBusIO      = 6 // external tool failure or verification mismatch
)

var rootCmd = &cobra.Command{
	Use:   "i2cfile",
	Short: "Move bytes between binary files and I2C devices",
	Long: `i2cfile reads and writes devices on an I2C bus byte by byte, sourcing or
sinking the data from binary files. Bus access is delegated to the i2cdetect,
i2cset and i2cdump utilities, which must be installed.

Examples:
  i2cfile detect
  i2cfile read  -b 1 -c 0x50 -n 128 -f edid.bin
  i2cfile write -b 1 -c 0x50 -s 0x00 -f edid.bin --verify`,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("missing mode: use read, write or detect")
		}
		return errors.Errorf("unknown mode %q", args[0])
	},
}

var (
	flagBus         string
	flagChip        string
	flagDelay       time.Duration
	flagDryRun      bool
	flagMetricsFile string
	flagDetectPath  string
	flagSetPath     string
	flagDumpPath    string
)

// Execute runs the CLI and exits with the documented code for the failure
// category.
func Execute() {
	log.SetFlags(log.Lmicroseconds | log.Lshortfile)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// busNotFoundError covers both a missing -b flag and a bus absent from the
// enumerated adapters.
type busNotFoundError struct {
	Bus string
}

func (e *busNotFoundError) Error() string {
	if e.Bus == "" {
		return "no bus given, use -b (see 'i2cfile detect' for available buses)"
	}
	return fmt.Sprintf("bus %s not found (see 'i2cfile detect' for available buses)", e.Bus)
}

// fileError marks failures that belong to the file error category.
type fileError struct {
	Err error
}

func (e *fileError) Error() string {
	return e.Err.Error()
}

func (e *fileError) Unwrap() error {
	return e.Err
}

func exitCode(err error) int {
	var (
		busErr  *busNotFoundError
		fmtErr  *i2cparam.FormatError
		fileErr *fileError
		pathErr *fs.PathError
		rngErr  *transfer.RangeError
		vfyErr  *transfer.VerifyError
		toolErr *i2ctool.ToolError
	)

	switch {
	case errors.As(err, &busErr):
		return exitNoBus
	case errors.As(err, &fmtErr):
		if fmtErr.Field == i2cparam.FieldBus {
			return exitNoBus
		}
		if fmtErr.Hex() {
			return exitBadAddress
		}
		return exitBadNumber
	case errors.As(err, &fileErr), errors.As(err, &pathErr), errors.As(err, &rngErr):
		return exitFileError
	case errors.As(err, &vfyErr), errors.As(err, &toolErr):
		return exitBusIO
	default:
		return exitUsage
	}
}

// newTools builds the external tool layer, honoring dry-run and the tool
// path overrides.
func newTools(dryRunOut io.Writer) *i2ctool.Tools {
	var runner i2ctool.Runner = i2ctool.ExecRunner{}
	if flagDryRun {
		runner = i2ctool.DryRunRunner{W: dryRunOut}
	}

	return i2ctool.New(runner,
		i2ctool.WithDetectPath(flagDetectPath),
		i2ctool.WithSetPath(flagSetPath),
		i2ctool.WithDumpPath(flagDumpPath),
	)
}

// resolveBusChip validates the bus and chip flags. The bus must be among
// the enumerated adapters unless this is a dry run.
func resolveBusChip(ctx context.Context, tools *i2ctool.Tools) (i2cparam.Bus, i2cparam.ChipAddress, error) {
	if flagBus == "" {
		return 0, 0, &busNotFoundError{}
	}

	bus, err := i2cparam.ParseBus(flagBus)
	if err != nil {
		return 0, 0, err
	}

	if !flagDryRun {
		ok, err := tools.HasBus(ctx, bus)
		if err != nil {
			return 0, 0, errors.Wrap(err, "enumerate buses")
		}
		if !ok {
			return 0, 0, &busNotFoundError{Bus: bus.String()}
		}
	}

	chip, err := i2cparam.ParseChipAddress(flagChip)
	if err != nil {
		return 0, 0, err
	}

	return bus, chip, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagBus, "bus", "b", "", "I2C bus (N or i2c-N)")
	rootCmd.PersistentFlags().StringVarP(&flagChip, "chip", "c", "0x50", "chip address on the bus")
	rootCmd.PersistentFlags().DurationVar(&flagDelay, "delay", transfer.DefaultDelay, "pause between device writes")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "print the external commands instead of executing")
	rootCmd.PersistentFlags().StringVar(&flagMetricsFile, "metrics-file", "", "write transfer metrics to this file in Prometheus text format")
	rootCmd.PersistentFlags().StringVar(&flagDetectPath, "i2cdetect", "", "path to the i2cdetect binary")
	rootCmd.PersistentFlags().StringVar(&flagSetPath, "i2cset", "", "path to the i2cset binary")
	rootCmd.PersistentFlags().StringVar(&flagDumpPath, "i2cdump", "", "path to the i2cdump binary")

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(detectCmd)
}
