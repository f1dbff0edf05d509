package font

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// MaxMemory is the maximum memory that can be allocated by a font.
var MaxMemory uint32 = 30 * 1024 * 1024

// ErrExceedsMemory is returned if the font is malformed.
var ErrExceedsMemory = fmt.Errorf("memory limit exceded")

// ErrInvalidFontData is returned if the font is malformed.
var ErrInvalidFontData = fmt.Errorf("invalid font data")

// ErrInvalidEncoding is returned for a malformed variable-length integer.
var ErrInvalidEncoding = fmt.Errorf("invalid encoding")

// ErrNotVariableFont is returned when variation operations are requested on a font without an fvar table.
var ErrNotVariableFont = fmt.Errorf("not a variable font")

// ErrInvalidArgument is returned for bad input from the caller, such as unknown axes, out of range coordinates, or unknown named instances.
var ErrInvalidArgument = fmt.Errorf("invalid argument")

// UnknownAxisError is returned when a coordinate refers to an axis that is not defined in fvar.
type UnknownAxisError struct {
	Tag string
}

func (err *UnknownAxisError) Error() string {
	return fmt.Sprintf("unknown axis %q", err.Tag)
}

// Is makes errors.Is(err, ErrInvalidArgument) succeed.
func (err *UnknownAxisError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// InvalidCoordinatesError is returned when a coordinate lies outside its axis range and clamping is disabled.
type InvalidCoordinatesError struct {
	Tag      string
	Value    float64
	Min, Max float64
}

func (err *InvalidCoordinatesError) Error() string {
	return fmt.Sprintf("coordinate %s=%v outside axis range [%v,%v]", err.Tag, err.Value, err.Min, err.Max)
}

// Is makes errors.Is(err, ErrInvalidArgument) succeed.
func (err *InvalidCoordinatesError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// IsArgumentError returns true if err is caused by bad input from the caller.
func IsArgumentError(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// calcChecksum returns the sum of big-endian uint32 words, the last word being zero padded.
func calcChecksum(b []byte) uint32 {
	var sum uint32
	n := len(b) &^ 3
	for i := 0; i < n; i += 4 {
		sum += binary.BigEndian.Uint32(b[i : i+4])
	}
	if n < len(b) {
		var tail [4]byte
		copy(tail[:], b[n:])
		sum += binary.BigEndian.Uint32(tail[:])
	}
	return sum
}

func uint32ToString(v uint32) string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return string(b)
}

func align4(v uint32) uint32 {
	return (v + 3) &^ 3
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func clampInt16(v int) int16 {
	if v < math.MinInt16 {
		return math.MinInt16
	} else if math.MaxInt16 < v {
		return math.MaxInt16
	}
	return int16(v)
}

func clampUint16(v int) uint16 {
	if v < 0 {
		return 0
	} else if math.MaxUint16 < v {
		return math.MaxUint16
	}
	return uint16(v)
}
