// Package i2cparam parses and validates the transfer parameters: bus
// numbers, chip and data addresses, byte counts and file offsets. Every
// rejection carries the field that failed so the CLI can map it to its
// documented exit code.
package i2cparam

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultChipAddress is the common EEPROM address (EDID, SPD).
	DefaultChipAddress = ChipAddress(0x50)

	// DefaultLength matches the 128-byte base EDID block.
	DefaultLength = Length(128)

	// DeviceWindow is the addressable range with single-byte addressing.
	DeviceWindow = 256

	// ChipAddressMin and ChipAddressMax bound the valid 7-bit address
	// range; addresses outside it are reserved by the protocol.
	ChipAddressMin = 0x03
	ChipAddressMax = 0x77
)

type (
	// Bus identifies an adapter, the N in /dev/i2c-N.
	Bus int

	// ChipAddress selects a device on the bus.
	ChipAddress uint8

	// DataAddress is a byte position inside the device window.
	DataAddress uint8

	// Length is a transfer byte count.
	Length int

	// Offset is a byte position inside the source or destination file.
	Offset int64
)

// Field names the parameter a FormatError is about.
type Field int

const (
	FieldBus Field = iota
	FieldChipAddress
	FieldDataAddress
	FieldLength
	FieldOffset
)

func (f Field) String() string {
	switch f {
	case FieldBus:
		return "bus"
	case FieldChipAddress:
		return "chip address"
	case FieldDataAddress:
		return "start address"
	case FieldLength:
		return "length"
	case FieldOffset:
		return "offset"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// FormatError reports a parameter that failed format validation.
type FormatError struct {
	Field  Field
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Hex reports whether the failed field uses hex notation. The CLI exit code
// for address format errors differs from the one for decimal count errors.
func (e *FormatError) Hex() bool {
	return e.Field == FieldChipAddress || e.Field == FieldDataAddress
}

var (
	busPattern = regexp.MustCompile(`^(i2c-)?([0-9]+)$`)
	hexPattern = regexp.MustCompile(`^(0[xX])?[0-9a-fA-F]{1,2}$`)
	decPattern = regexp.MustCompile(`^[0-9]+$`)
)

// ParseBus accepts "N" or "i2c-N". Existence on the system is checked
// separately against the enumerated adapters.
func ParseBus(s string) (Bus, error) {
	m := busPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &FormatError{Field: FieldBus, Value: s, Reason: "want N or i2c-N"}
	}

	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, &FormatError{Field: FieldBus, Value: s, Reason: "want N or i2c-N"}
	}

	return Bus(n), nil
}

func (b Bus) String() string {
	return fmt.Sprintf("i2c-%d", int(b))
}

// Arg renders the bus the way the external tools expect it.
func (b Bus) Arg() string {
	return strconv.Itoa(int(b))
}

func parseHexByte(field Field, s string) (uint8, error) {
	if !hexPattern.MatchString(s) {
		return 0, &FormatError{Field: field, Value: s, Reason: "want a hex byte like 0x50"}
	}

	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"), 16, 8)
	if err != nil {
		return 0, &FormatError{Field: field, Value: s, Reason: "want a hex byte like 0x50"}
	}

	return uint8(v), nil
}

// ParseChipAddress parses a hex device address and rejects values outside
// the valid 7-bit range.
func ParseChipAddress(s string) (ChipAddress, error) {
	v, err := parseHexByte(FieldChipAddress, s)
	if err != nil {
		return 0, err
	}

	if v < ChipAddressMin || v > ChipAddressMax {
		return 0, &FormatError{
			Field:  FieldChipAddress,
			Value:  s,
			Reason: fmt.Sprintf("want 0x%02x..0x%02x", ChipAddressMin, ChipAddressMax),
		}
	}

	return ChipAddress(v), nil
}

func (c ChipAddress) String() string {
	return fmt.Sprintf("0x%02x", uint8(c))
}

func (c ChipAddress) Arg() string {
	return c.String()
}

// ParseDataAddress parses a hex byte position inside the device window.
func ParseDataAddress(s string) (DataAddress, error) {
	v, err := parseHexByte(FieldDataAddress, s)
	if err != nil {
		return 0, err
	}

	return DataAddress(v), nil
}

func (d DataAddress) String() string {
	return fmt.Sprintf("0x%02x", uint8(d))
}

func (d DataAddress) Arg() string {
	return d.String()
}

// ParseLength parses a decimal byte count. Zero is rejected; counts beyond
// the device window cannot be addressed with single-byte writes.
func ParseLength(s string) (Length, error) {
	if !decPattern.MatchString(s) {
		return 0, &FormatError{Field: FieldLength, Value: s, Reason: "want a decimal byte count"}
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &FormatError{Field: FieldLength, Value: s, Reason: "want a decimal byte count"}
	}
	if n == 0 {
		return 0, &FormatError{Field: FieldLength, Value: s, Reason: "must be at least 1"}
	}
	if n > DeviceWindow {
		return 0, &FormatError{
			Field:  FieldLength,
			Value:  s,
			Reason: fmt.Sprintf("at most %d bytes addressable", DeviceWindow),
		}
	}

	return Length(n), nil
}

// ParseOffset parses a decimal file offset.
func ParseOffset(s string) (Offset, error) {
	if !decPattern.MatchString(s) {
		return 0, &FormatError{Field: FieldOffset, Value: s, Reason: "want a decimal byte offset"}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &FormatError{Field: FieldOffset, Value: s, Reason: "want a decimal byte offset"}
	}

	return Offset(n), nil
}

// CheckWindow verifies that start+length stays inside the device window.
func CheckWindow(start DataAddress, length Length) error {
	if int(start)+int(length) > DeviceWindow {
		return &FormatError{
			Field:  FieldDataAddress,
			Value:  start.String(),
			Reason: fmt.Sprintf("start + %d bytes exceeds the %d-byte window", int(length), DeviceWindow),
		}
	}

	return nil
}
