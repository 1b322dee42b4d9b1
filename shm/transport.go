package shm

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	ddscore "github.com/wippyai/dds-core"
	"github.com/wippyai/dds-core/cdr"
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/internal/abi"
	"github.com/wippyai/dds-core/sertype"
)

// Chunk is a loaned block of shared memory.
type Chunk struct {
	Addr     uint32
	Capacity uint32
}

// Payload is the address of the first payload byte.
func (c Chunk) Payload() uint32 { return c.Addr + HeaderSize }

// Transport loans chunks from a shared memory and moves samples through
// them. It is safe for concurrent use; a single chunk is not.
type Transport struct {
	mem   ddscore.Memory
	alloc ddscore.Allocator
	log   *zap.Logger

	mu     sync.Mutex
	loaned map[uint32]uint32
}

// New creates a transport over mem. The log level in cfg applies to this
// transport only.
func New(cfg Config, mem ddscore.Memory, alloc ddscore.Allocator) *Transport {
	return &Transport{
		mem:    mem,
		alloc:  alloc,
		log:    cfg.logger(Logger()),
		loaned: make(map[uint32]uint32),
	}
}

// Loan allocates a chunk with room for capacity payload bytes. The header
// starts out uninitialized.
func (t *Transport) Loan(capacity uint32) (Chunk, error) {
	size, ok := abi.SafeAddU32(HeaderSize, capacity)
	if !ok {
		return Chunk{}, errors.Overflow(errors.PhaseTransport, nil, capacity, "chunk size")
	}
	addr, err := t.alloc.Alloc(size, ChunkAlign)
	if err != nil {
		return Chunk{}, errors.Wrap(errors.PhaseTransport, errors.KindAllocation, err, "loan chunk")
	}
	c := Chunk{Addr: addr, Capacity: capacity}
	if err := writeHeader(t.mem, addr, &Header{}); err != nil {
		t.alloc.Free(addr, size, ChunkAlign)
		return Chunk{}, err
	}

	t.mu.Lock()
	t.loaned[addr] = capacity
	t.mu.Unlock()

	t.log.Debug("chunk loaned", zap.Uint32("addr", addr), zap.Uint32("capacity", capacity))
	return c, nil
}

// Release returns a loaned chunk.
func (t *Transport) Release(c Chunk) error {
	t.mu.Lock()
	capacity, ok := t.loaned[c.Addr]
	if ok {
		delete(t.loaned, c.Addr)
	}
	t.mu.Unlock()

	if !ok {
		t.log.Warn("release of unknown chunk", zap.Uint32("addr", c.Addr))
		return errors.NotFound(errors.PhaseTransport, "chunk", strconv.FormatUint(uint64(c.Addr), 10))
	}
	t.alloc.Free(c.Addr, HeaderSize+capacity, ChunkAlign)
	t.log.Debug("chunk released", zap.Uint32("addr", c.Addr))
	return nil
}

// Loaned returns the number of chunks not yet released.
func (t *Transport) Loaned() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.loaned)
}

// Header reads the header of a chunk.
func (t *Transport) Header(c Chunk) (Header, error) {
	return readHeader(t.mem, c.Addr)
}

// Fill serializes the sample into the chunk payload with its encapsulation
// header and stamps h with the data size, key hash and serialized state.
func (t *Transport) Fill(st sertype.Type, c Chunk, sample uint32, h Header) error {
	body, err := st.GetSerializedSize(t.mem, sample)
	if err != nil {
		return err
	}
	header := cdrHeader(st)
	need := len(header) + body
	if need > int(c.Capacity) {
		return errors.BufferTooSmall(errors.PhaseTransport, need, int(c.Capacity))
	}

	buf := make([]byte, need)
	copy(buf, header)
	if _, err := st.SerializeInto(t.mem, sample, buf[len(header):]); err != nil {
		return err
	}
	if err := t.mem.Write(c.Payload(), buf); err != nil {
		return errors.Wrap(errors.PhaseTransport, errors.KindOutOfBounds, err, "write payload")
	}

	if err := t.stamp(st, sample, &h, uint32(need), StateSerializedData); err != nil {
		return err
	}
	if err := writeHeader(t.mem, c.Addr, &h); err != nil {
		return err
	}
	t.log.Debug("chunk filled",
		zap.String("type", st.Name()),
		zap.Uint32("size", h.DataSize),
		zap.Stringer("state", h.State))
	return nil
}

// FillRaw copies the native bytes of the sample into the chunk. Only types
// whose native layout equals their wire layout can travel raw.
func (t *Transport) FillRaw(st sertype.Type, c Chunk, sample uint32, h Header) error {
	size := st.OptimizedSize()
	if size == 0 {
		return errors.Unsupported(errors.PhaseTransport, "raw chunk for type "+st.Name())
	}
	if size > c.Capacity {
		return errors.BufferTooSmall(errors.PhaseTransport, int(size), int(c.Capacity))
	}
	raw, err := t.mem.Read(sample, size)
	if err != nil {
		return errors.Wrap(errors.PhaseTransport, errors.KindOutOfBounds, err, "read sample")
	}
	if err := t.mem.Write(c.Payload(), append([]byte(nil), raw...)); err != nil {
		return errors.Wrap(errors.PhaseTransport, errors.KindOutOfBounds, err, "write payload")
	}

	if err := t.stamp(st, sample, &h, size, StateRawData); err != nil {
		return err
	}
	if err := writeHeader(t.mem, c.Addr, &h); err != nil {
		return err
	}
	t.log.Debug("chunk filled",
		zap.String("type", st.Name()),
		zap.Uint32("size", h.DataSize),
		zap.Stringer("state", h.State))
	return nil
}

func (t *Transport) stamp(st sertype.Type, sample uint32, h *Header, size uint32, state DataState) error {
	kh, err := st.KeyHash(t.mem, sample)
	if err != nil {
		return err
	}
	h.KeyHash = kh
	h.DataSize = size
	h.State = state
	if h.DataKind == KindEmpty {
		h.DataKind = KindData
	}
	return nil
}

// Take rebuilds a sample from the chunk into the sample at dst, replacing
// what dst owned, and returns the chunk header.
func (t *Transport) Take(st sertype.Type, c Chunk, dst uint32) (Header, error) {
	h, err := readHeader(t.mem, c.Addr)
	if err != nil {
		return Header{}, err
	}
	if h.DataSize > c.Capacity {
		return Header{}, errors.Corrupt(errors.PhaseTransport, "chunk data size %d exceeds capacity %d", h.DataSize, c.Capacity)
	}
	payload, err := t.mem.Read(c.Payload(), h.DataSize)
	if err != nil {
		return Header{}, errors.Wrap(errors.PhaseTransport, errors.KindOutOfBounds, err, "read payload")
	}

	switch h.State {
	case StateSerializedData:
		err = st.Deserialize(t.mem, t.alloc, dst, append([]byte(nil), payload...))
	case StateRawData:
		err = t.takeRaw(st, dst, payload)
	default:
		t.log.Warn("take from uninitialized chunk", zap.Uint32("addr", c.Addr))
		err = errors.InvalidData(errors.PhaseTransport, []string{"state"}, "chunk holds no data")
	}
	if err != nil {
		return Header{}, err
	}
	t.log.Debug("chunk taken",
		zap.String("type", st.Name()),
		zap.Stringer("writer", h.GUID),
		zap.Stringer("state", h.State))
	return h, nil
}

func (t *Transport) takeRaw(st sertype.Type, dst uint32, payload []byte) error {
	size := st.OptimizedSize()
	if size == 0 {
		return errors.Unsupported(errors.PhaseTransport, "raw chunk for type "+st.Name())
	}
	if uint32(len(payload)) != size {
		return errors.Truncated(errors.PhaseTransport, "raw sample", 0, int(size), len(payload))
	}
	if err := st.FreeSamples(t.mem, t.alloc, []uint32{dst}, sertype.FreeContents); err != nil {
		return err
	}
	if err := t.mem.Write(dst, append([]byte(nil), payload...)); err != nil {
		return errors.Wrap(errors.PhaseTransport, errors.KindOutOfBounds, err, "write sample")
	}
	return nil
}

// cdrHeader is the encapsulation header for little-endian samples of st.
func cdrHeader(st sertype.Type) []byte {
	return cdr.NewHeader(st.Format(), st.EncodingVersion(), false).Append(make([]byte, 0, cdr.HeaderSize))
}
