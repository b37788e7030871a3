package transfer

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/nitinp/i2cfile/i2cparam"
)

// RangeError indicates that the requested byte range could not be satisfied
// by the source file or the dumped device contents.
type RangeError struct {
	What string
	Need int64
	Have int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s too short: need %d bytes, have %d", e.What, e.Need, e.Have)
}

// VerifyError indicates that the read-back dump disagreed with the bytes
// written. Mismatches holds the offending device addresses.
type VerifyError struct {
	Chip       i2cparam.ChipAddress
	Mismatches *bitset.BitSet
}

func (e *VerifyError) Error() string {
	first, _ := e.Mismatches.NextSet(0)
	return fmt.Sprintf("verification failed for %s: %d byte(s) differ, first at 0x%02x",
		e.Chip, e.Mismatches.Count(), first)
}
