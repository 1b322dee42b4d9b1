package shm

import (
	"encoding/binary"
	"fmt"

	ddscore "github.com/wippyai/dds-core"
	"github.com/wippyai/dds-core/cdr"
	"github.com/wippyai/dds-core/errors"
)

// DataState tells a reader how the payload of a chunk was written.
type DataState uint32

const (
	StateUninitialized DataState = iota
	StateRawData
	StateSerializedData
)

func (s DataState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRawData:
		return "raw"
	case StateSerializedData:
		return "serialized"
	}
	return fmt.Sprintf("DataState(%d)", uint32(s))
}

// GUID identifies the writer of a chunk.
type GUID struct {
	Prefix [12]byte
	Entity uint32
}

func (g GUID) String() string {
	return fmt.Sprintf("%x:%x", g.Prefix[:], g.Entity)
}

// DataKind values.
const (
	KindEmpty uint8 = iota
	KindData
	KindKey
)

// Header precedes the payload of every chunk.
type Header struct {
	GUID       GUID
	Timestamp  int64
	StatusInfo uint32
	DataSize   uint32
	DataKind   uint8
	KeyHash    cdr.KeyHash
	State      DataState
}

// Header field offsets inside a chunk.
const (
	offGUID       = 0
	offTimestamp  = 16
	offStatusInfo = 24
	offDataSize   = 28
	offDataKind   = 32
	offKeyHash    = 36
	offState      = 52

	// HeaderSize is the size of the chunk header. The payload follows it.
	HeaderSize = 56
	// ChunkAlign is the alignment of chunk blocks.
	ChunkAlign = 8
)

var le = binary.LittleEndian

func writeHeader(mem ddscore.Memory, at uint32, h *Header) error {
	buf := make([]byte, HeaderSize)
	copy(buf[offGUID:], h.GUID.Prefix[:])
	le.PutUint32(buf[offGUID+12:], h.GUID.Entity)
	le.PutUint64(buf[offTimestamp:], uint64(h.Timestamp))
	le.PutUint32(buf[offStatusInfo:], h.StatusInfo)
	le.PutUint32(buf[offDataSize:], h.DataSize)
	buf[offDataKind] = h.DataKind
	copy(buf[offKeyHash:], h.KeyHash[:])
	le.PutUint32(buf[offState:], uint32(h.State))
	if err := mem.Write(at, buf); err != nil {
		return errors.Wrap(errors.PhaseTransport, errors.KindOutOfBounds, err, "write chunk header")
	}
	return nil
}

func readHeader(mem ddscore.Memory, at uint32) (Header, error) {
	buf, err := mem.Read(at, HeaderSize)
	if err != nil {
		return Header{}, errors.Wrap(errors.PhaseTransport, errors.KindOutOfBounds, err, "read chunk header")
	}
	var h Header
	copy(h.GUID.Prefix[:], buf[offGUID:])
	h.GUID.Entity = le.Uint32(buf[offGUID+12:])
	h.Timestamp = int64(le.Uint64(buf[offTimestamp:]))
	h.StatusInfo = le.Uint32(buf[offStatusInfo:])
	h.DataSize = le.Uint32(buf[offDataSize:])
	h.DataKind = buf[offDataKind]
	copy(h.KeyHash[:], buf[offKeyHash:])
	h.State = DataState(le.Uint32(buf[offState:]))
	if h.State > StateSerializedData {
		return Header{}, errors.InvalidEnum(errors.PhaseTransport, []string{"state"}, uint32(h.State), uint32(StateSerializedData))
	}
	return h, nil
}
