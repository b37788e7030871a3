package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/nitinp/i2cfile/i2cparam"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List buses, or probe one for devices",
	Long: `Without a bus, list the enumerated I2C adapters. With -b, probe the bus
and print the chip addresses that respond. Addresses claimed by a kernel
driver count as present.`,
	RunE: runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	tools := newTools(cmd.OutOrStdout())

	if flagBus == "" {
		buses, err := tools.ListBuses(cmd.Context())
		if err != nil {
			return err
		}
		if len(buses) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no I2C buses found")
			return nil
		}

		keys := maps.Keys(buses)
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, key := range keys {
			info := buses[key]
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-10s %s\n", info.Bus, info.Type, info.Description)
		}
		return nil
	}

	bus, err := i2cparam.ParseBus(flagBus)
	if err != nil {
		return err
	}

	if !flagDryRun {
		ok, err := tools.HasBus(cmd.Context(), bus)
		if err != nil {
			return err
		}
		if !ok {
			return &busNotFoundError{Bus: bus.String()}
		}
	}

	present, err := tools.Probe(cmd.Context(), bus)
	if err != nil {
		return err
	}

	if present.Count() == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no devices on %s\n", bus)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "devices on %s:", bus)
	for addr, ok := present.NextSet(0); ok; addr, ok = present.NextSet(addr + 1) {
		fmt.Fprintf(cmd.OutOrStdout(), " 0x%02x", addr)
	}
	fmt.Fprintln(cmd.OutOrStdout())

	return nil
}
