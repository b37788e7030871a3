// Package i2ctool orchestrates the external bus utilities: i2cdetect for
// enumerating adapters and probing devices, i2cset for single-byte writes
// and i2cdump for reading a device's contents. The bus protocol itself
// stays in those tools.
package i2ctool

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"

	"github.com/nitinp/i2cfile/hexdump"
	"github.com/nitinp/i2cfile/i2cparam"
)

// Config holds the tool binary names. Defaults resolve via PATH.
type Config struct {
	Detect string
	Set    string
	Dump   string
}

func defaultConfig() Config {
	return Config{
		Detect: "i2cdetect",
		Set:    "i2cset",
		Dump:   "i2cdump",
	}
}

type Option func(*Config)

// WithDetectPath overrides the i2cdetect binary.
func WithDetectPath(path string) Option {
	return func(c *Config) {
		if path != "" {
			c.Detect = path
		}
	}
}

// WithSetPath overrides the i2cset binary.
func WithSetPath(path string) Option {
	return func(c *Config) {
		if path != "" {
			c.Set = path
		}
	}
}

// WithDumpPath overrides the i2cdump binary.
func WithDumpPath(path string) Option {
	return func(c *Config) {
		if path != "" {
			c.Dump = path
		}
	}
}

// Tools wraps a Runner with the bus utility invocations.
type Tools struct {
	runner Runner
	config Config
}

func New(runner Runner, opts ...Option) *Tools {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Tools{
		runner: runner,
		config: cfg,
	}
}

// BusInfo describes one enumerated adapter.
type BusInfo struct {
	Bus         i2cparam.Bus
	Type        string
	Description string
}

// ListBuses enumerates adapters via `i2cdetect -l`. Output lines look like
//
//	i2c-1	i2c       	bcm2835 (i2c@7e804000)	I2C adapter
func (t *Tools) ListBuses(ctx context.Context) (map[i2cparam.Bus]BusInfo, error) {
	out, err := t.runner.Output(ctx, t.config.Detect, "-l")
	if err != nil {
		return nil, err
	}

	buses := make(map[i2cparam.Bus]BusInfo)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		bus, err := i2cparam.ParseBus(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "unexpected %s -l line %q", t.config.Detect, line)
		}

		info := BusInfo{Bus: bus}
		if len(fields) > 1 {
			info.Type = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			info.Description = strings.TrimSpace(fields[2])
		}
		buses[bus] = info
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return buses, nil
}

// HasBus reports whether the bus is among the enumerated adapters.
func (t *Tools) HasBus(ctx context.Context, bus i2cparam.Bus) (bool, error) {
	buses, err := t.ListBuses(ctx)
	if err != nil {
		return false, err
	}

	_, ok := buses[bus]
	return ok, nil
}

// Probe scans the bus with `i2cdetect -y N` and returns the set of
// responding chip addresses. Addresses the kernel has claimed (UU) count
// as present.
func (t *Tools) Probe(ctx context.Context, bus i2cparam.Bus) (*bitset.BitSet, error) {
	out, err := t.runner.Output(ctx, t.config.Detect, "-y", bus.Arg())
	if err != nil {
		return nil, err
	}

	present := bitset.New(128)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if len(line) < 4 || line[2] != ':' {
			continue
		}

		var rowBase int
		if _, err := fmt.Sscanf(line[:2], "%x", &rowBase); err != nil {
			continue
		}

		for i := 0; i < 16; i++ {
			pos := 4 + 3*i
			if pos+2 > len(line) {
				break
			}
			cell := line[pos : pos+2]
			if cell == "--" || cell == "  " {
				continue
			}
			present.Set(uint(rowBase + i))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return present, nil
}

// WriteByte issues a single-byte write at dataAddr via i2cset.
func (t *Tools) WriteByte(ctx context.Context, bus i2cparam.Bus, chip i2cparam.ChipAddress, dataAddr i2cparam.DataAddress, value byte) error {
	_, err := t.runner.Output(ctx, t.config.Set,
		"-y", bus.Arg(), chip.Arg(), dataAddr.Arg(), fmt.Sprintf("0x%02x", value), "b")
	return err
}

// Dump reads the device's byte window via i2cdump and decodes the dump
// text into w as it streams. Returns the decoded row metadata.
func (t *Tools) Dump(ctx context.Context, bus i2cparam.Bus, chip i2cparam.ChipAddress, w io.WriterAt) ([]hexdump.Row, error) {
	var rows []hexdump.Row

	err := t.runner.Stream(ctx, t.config.Dump,
		[]string{"-y", bus.Arg(), chip.Arg(), "b"},
		func(r io.Reader) error {
			p := hexdump.NewParser(r, w)
			for p.HasNext() {
				if err := p.ReadRow(); err != nil {
					return err
				}
			}
			rows = p.Rows
			return nil
		})
	if err != nil {
		return nil, err
	}

	return rows, nil
}
