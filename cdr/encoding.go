package cdr

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/idl"
	"github.com/wippyai/dds-core/layout"
)

// Format is the member framing of the topic type.
type Format uint8

const (
	FormatPlain Format = iota
	FormatDelimited
	FormatPL
)

func (f Format) String() string {
	switch f {
	case FormatDelimited:
		return "delimited"
	case FormatPL:
		return "parameter-list"
	}
	return "plain"
}

// FormatFor maps type extensibility to its encoding format.
func FormatFor(ext idl.Extensibility) Format {
	switch ext {
	case idl.Appendable:
		return FormatDelimited
	case idl.Mutable:
		return FormatPL
	}
	return FormatPlain
}

// Encapsulation identifiers. Each big-endian id is the little-endian id
// minus one.
const (
	EncCDRBE    uint16 = 0x0000
	EncCDRLE    uint16 = 0x0001
	EncPLCDRBE  uint16 = 0x0002
	EncPLCDRLE  uint16 = 0x0003
	EncCDR2BE   uint16 = 0x0006
	EncCDR2LE   uint16 = 0x0007
	EncDCDR2BE  uint16 = 0x0008
	EncDCDR2LE  uint16 = 0x0009
	EncPLCDR2BE uint16 = 0x000a
	EncPLCDR2LE uint16 = 0x000b
)

// HeaderSize is the size of the encapsulation header.
const HeaderSize = 4

// Header is the encapsulation header preceding every serialized sample.
type Header struct {
	ID      uint16
	Options uint16
}

// NewHeader selects the encapsulation id for a format and version.
func NewHeader(f Format, v layout.EncodingVersion, bigEndian bool) Header {
	var id uint16
	switch {
	case v == layout.XCDR2 && f == FormatPL:
		id = EncPLCDR2LE
	case v == layout.XCDR2 && f == FormatDelimited:
		id = EncDCDR2LE
	case v == layout.XCDR2:
		id = EncCDR2LE
	case f == FormatPL:
		id = EncPLCDRLE
	default:
		id = EncCDRLE
	}
	if bigEndian {
		id--
	}
	return Header{ID: id}
}

// BigEndian reports the body byte order.
func (h Header) BigEndian() bool { return h.ID&1 == 0 }

// Version reports the encoding version of the body.
func (h Header) Version() layout.EncodingVersion {
	if h.ID >= EncCDR2BE {
		return layout.XCDR2
	}
	return layout.XCDR1
}

// Padding is the number of padding bytes at the end of the body.
func (h Header) Padding() int { return int(h.Options & 3) }

// Append writes the header in network byte order.
func (h Header) Append(b []byte) []byte {
	b = binary.BigEndian.AppendUint16(b, h.ID)
	return binary.BigEndian.AppendUint16(b, h.Options)
}

// ParseHeader reads an encapsulation header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.Truncated(errors.PhaseDecode, "encapsulation header", 0, HeaderSize, len(b))
	}
	h := Header{
		ID:      binary.BigEndian.Uint16(b),
		Options: binary.BigEndian.Uint16(b[2:]),
	}
	switch h.ID {
	case EncCDRBE, EncCDRLE, EncPLCDRBE, EncPLCDRLE,
		EncCDR2BE, EncCDR2LE, EncDCDR2BE, EncDCDR2LE, EncPLCDR2BE, EncPLCDR2LE:
	default:
		return Header{}, errors.Unsupported(errors.PhaseDecode, fmt.Sprintf("encapsulation id %#04x", h.ID))
	}
	return h, nil
}
