// Package trace reads the reference traces replayed by the simulation.
//
// A trace is a sequence of fixed-width records, one per line. A record is the
// logical address in hexadecimal (page number digits followed by offset
// digits), a separator and the action character, for example "0041f7a0 R".
package trace

import (
	"fmt"
	"math/bits"
	"strconv"

	"github.com/sarchlab/pagesim/mem/vm"
)

// LogicalAddressBits is the width of the logical addresses in the traces.
const LogicalAddressBits = 32

const bitsPerHexDigit = 4

// Format describes the record layout implied by a frame size.
type Format struct {
	FrameSize    uint64
	OffsetBits   int
	PageBits     int
	PageDigits   int
	OffsetDigits int
}

// NewFormat derives the record layout for frames of frameSize bytes. The
// offset must address every byte of a frame, and the rest of the logical
// address is the page number.
func NewFormat(frameSize uint64) (Format, error) {
	if frameSize == 0 || frameSize&(frameSize-1) != 0 {
		return Format{}, fmt.Errorf(
			"frame size %d is not a power of two", frameSize)
	}

	offsetBits := bits.TrailingZeros64(frameSize)
	if offsetBits >= LogicalAddressBits {
		return Format{}, fmt.Errorf(
			"frame size %d leaves no bits for the page number", frameSize)
	}

	pageBits := LogicalAddressBits - offsetBits

	return Format{
		FrameSize:    frameSize,
		OffsetBits:   offsetBits,
		PageBits:     pageBits,
		PageDigits:   hexDigits(pageBits),
		OffsetDigits: hexDigits(offsetBits),
	}, nil
}

func hexDigits(numBits int) int {
	return (numBits + bitsPerHexDigit - 1) / bitsPerHexDigit
}

// RecordLen is the number of bytes in a record, excluding the line
// terminator.
func (f Format) RecordLen() int {
	return f.PageDigits + f.OffsetDigits + 2
}

// Decode turns a record into a reference. The action character is copied as
// is; deciding whether it is valid is up to the consumer.
func (f Format) Decode(record []byte) (vm.Reference, error) {
	if len(record) != f.RecordLen() {
		return vm.Reference{}, fmt.Errorf(
			"record %q has %d bytes, want %d",
			record, len(record), f.RecordLen())
	}

	page, err := parseHex(record[:f.PageDigits])
	if err != nil {
		return vm.Reference{}, fmt.Errorf("record %q: page: %w", record, err)
	}

	offset, err := parseHex(record[f.PageDigits : f.PageDigits+f.OffsetDigits])
	if err != nil {
		return vm.Reference{}, fmt.Errorf("record %q: offset: %w", record, err)
	}

	return vm.Reference{
		Page:   page,
		Offset: offset,
		Action: vm.Action(record[len(record)-1]),
	}, nil
}

// Encode renders a reference as a record.
func (f Format) Encode(ref vm.Reference) []byte {
	s := fmt.Sprintf("%0*x%0*x %c",
		f.PageDigits, ref.Page, f.OffsetDigits, ref.Offset, byte(ref.Action))
	if f.OffsetDigits == 0 {
		s = fmt.Sprintf("%0*x %c", f.PageDigits, ref.Page, byte(ref.Action))
	}

	return []byte(s)
}

func parseHex(digits []byte) (uint64, error) {
	if len(digits) == 0 {
		return 0, nil
	}

	return strconv.ParseUint(string(digits), 16, 64)
}
