package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/dds-core/descriptor"
	"github.com/wippyai/dds-core/errors"
	"github.com/wippyai/dds-core/idl"
	"github.com/wippyai/dds-core/memory"
	"github.com/wippyai/dds-core/sertype"
)

const doc = `
types:
  - struct: reading
    members:
      - {name: sensor, type: string, key: true}
      - {name: value, type: double}
      - {name: note, type: string, optional: true}
  - struct: point
    members:
      - {name: id, type: long, key: true}
      - {name: x, type: double}
      - {name: y, type: double}
`

func buildType(t *testing.T, name string) *sertype.Default {
	t.Helper()
	unit, err := idl.Parse([]byte(doc))
	require.NoError(t, err)
	d, err := descriptor.Build(unit, name)
	require.NoError(t, err)
	st := sertype.New(d)
	t.Cleanup(st.Unref)
	return st
}

func newSample(t *testing.T, st *sertype.Default, m *memory.Linear) uint32 {
	t.Helper()
	ptrs, err := st.ReallocSamples(m, m, 0, 0, 1)
	require.NoError(t, err)
	return ptrs[0]
}

func putString(t *testing.T, m *memory.Linear, at uint32, s string) {
	t.Helper()
	ptr, err := m.Alloc(uint32(len(s)), 1)
	require.NoError(t, err)
	require.NoError(t, m.Write(ptr, []byte(s)))
	require.NoError(t, m.WriteU32(at, ptr))
	require.NoError(t, m.WriteU32(at+4, uint32(len(s))))
}

func fillReading(t *testing.T, st *sertype.Default, m *memory.Linear, addr uint32) {
	p := st.Descriptor().Program
	var offs []uint32
	for _, pc := range p.Members(0) {
		offs = append(offs, p.ADR(pc).Offset)
	}
	putString(t, m, addr+offs[0], "thermo-1")
	require.NoError(t, m.WriteU64(addr+offs[1], 0x4037000000000000))
	note, err := m.Alloc(8, 4)
	require.NoError(t, err)
	putString(t, m, note, "calibrated")
	require.NoError(t, m.WriteU32(addr+offs[2], note))
}

func TestFillTakeSerialized(t *testing.T) {
	st := buildType(t, "reading")
	m := memory.NewLinear(1024)
	tr := New(Config{LogLevel: LogDebug}, m, m)

	src := newSample(t, st, m)
	fillReading(t, st, m, src)
	want, err := st.Serialize(m, src)
	require.NoError(t, err)

	c, err := tr.Loan(128)
	require.NoError(t, err)
	h, err := tr.Header(c)
	require.NoError(t, err)
	assert.Equal(t, StateUninitialized, h.State)

	in := Header{GUID: GUID{Prefix: [12]byte{1, 2, 3}, Entity: 0x107}, Timestamp: -42, StatusInfo: 3}
	require.NoError(t, tr.Fill(st, c, src, in))

	dst := newSample(t, st, m)
	got, err := tr.Take(st, c, dst)
	require.NoError(t, err)
	assert.Equal(t, in.GUID, got.GUID)
	assert.Equal(t, in.Timestamp, got.Timestamp)
	assert.Equal(t, in.StatusInfo, got.StatusInfo)
	assert.Equal(t, KindData, got.DataKind)
	assert.Equal(t, StateSerializedData, got.State)

	size, err := st.GetSerializedSize(m, src)
	require.NoError(t, err)
	assert.Equal(t, uint32(4+size), got.DataSize)

	kh, err := st.KeyHash(m, src)
	require.NoError(t, err)
	assert.Equal(t, kh, got.KeyHash)

	again, err := st.Serialize(m, dst)
	require.NoError(t, err)
	assert.Equal(t, want[4:], again[4:])

	require.NoError(t, tr.Release(c))
	assert.Zero(t, tr.Loaned())
	require.NoError(t, st.FreeSamples(m, m, []uint32{src}, sertype.FreeAll))
	require.NoError(t, st.FreeSamples(m, m, []uint32{dst}, sertype.FreeAll))
	assert.NoError(t, m.Check())
}

func TestFillTakeRaw(t *testing.T) {
	st := buildType(t, "point")
	require.NotZero(t, st.OptimizedSize())
	m := memory.NewLinear(512)
	tr := New(Config{}, m, m)

	src := newSample(t, st, m)
	require.NoError(t, m.WriteU32(src, 9))
	require.NoError(t, m.WriteU64(src+8, 1))
	require.NoError(t, m.WriteU64(src+16, 2))

	c, err := tr.Loan(st.OptimizedSize())
	require.NoError(t, err)
	require.NoError(t, tr.FillRaw(st, c, src, Header{DataKind: KindKey}))

	dst := newSample(t, st, m)
	h, err := tr.Take(st, c, dst)
	require.NoError(t, err)
	assert.Equal(t, StateRawData, h.State)
	assert.Equal(t, KindKey, h.DataKind)
	assert.Equal(t, st.OptimizedSize(), h.DataSize)
	assert.Equal(t, cdrKey(9), h.KeyHash[:4])

	a, err := m.Read(src, st.OptimizedSize())
	require.NoError(t, err)
	b, err := m.Read(dst, st.OptimizedSize())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	require.NoError(t, tr.Release(c))
	require.NoError(t, st.FreeSamples(m, m, []uint32{src}, sertype.FreeAll))
	require.NoError(t, st.FreeSamples(m, m, []uint32{dst}, sertype.FreeAll))
	assert.NoError(t, m.Check())
}

// cdrKey is a long key value in big-endian XCDR2.
func cdrKey(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func TestTransportErrors(t *testing.T) {
	reading := buildType(t, "reading")
	point := buildType(t, "point")
	m := memory.NewLinear(1024)
	tr := New(Config{}, m, m)

	src := newSample(t, reading, m)
	fillReading(t, reading, m, src)

	small, err := tr.Loan(8)
	require.NoError(t, err)

	err = tr.Fill(reading, small, src, Header{})
	assert.True(t, errors.HasKind(err, errors.KindBufferTooSmall))

	err = tr.FillRaw(reading, small, src, Header{})
	assert.True(t, errors.HasKind(err, errors.KindUnsupported))

	err = tr.FillRaw(point, small, src, Header{})
	assert.True(t, errors.HasKind(err, errors.KindBufferTooSmall))

	dst := newSample(t, reading, m)
	_, err = tr.Take(reading, small, dst)
	assert.True(t, errors.HasKind(err, errors.KindInvalidData))

	require.NoError(t, m.WriteU32(small.Addr+offState, 7))
	_, err = tr.Take(reading, small, dst)
	assert.True(t, errors.HasKind(err, errors.KindInvalidEnum))

	require.NoError(t, m.WriteU32(small.Addr+offState, uint32(StateSerializedData)))
	require.NoError(t, m.WriteU32(small.Addr+offDataSize, 9))
	_, err = tr.Take(reading, small, dst)
	assert.True(t, errors.HasKind(err, errors.KindCorrupt))

	require.NoError(t, tr.Release(small))
	err = tr.Release(small)
	assert.True(t, errors.HasKind(err, errors.KindNotFound))

	require.NoError(t, reading.FreeSamples(m, m, []uint32{src}, sertype.FreeAll))
	require.NoError(t, reading.FreeSamples(m, m, []uint32{dst}, sertype.FreeAll))
	assert.NoError(t, m.Check())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"off", LogOff},
		{"FATAL", LogFatal},
		{"error", LogError},
		{"Warn", LogWarn},
		{"info", LogInfo},
		{"debug", LogDebug},
		{"verbose", LogVerbose},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, levelNames[tt.want], got.String())
		})
	}
	_, err := ParseLogLevel("loud")
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput), "got %v", err)
	assert.Equal(t, "LogLevel(9)", LogLevel(9).String())
}

func TestTransportLogLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	m := memory.NewLinear(256)
	for _, tt := range []struct {
		level       LogLevel
		debug, warn int
	}{
		{LogVerbose, 2, 1},
		{LogDebug, 2, 1},
		{LogWarn, 0, 1},
		{LogError, 0, 0},
		{LogOff, 0, 0},
	} {
		t.Run(tt.level.String(), func(t *testing.T) {
			logs.TakeAll()
			tr := New(Config{LogLevel: tt.level}, m, m)
			c, err := tr.Loan(16)
			require.NoError(t, err)
			require.NoError(t, tr.Release(c))
			require.Error(t, tr.Release(c))

			assert.Equal(t, tt.debug, logs.FilterLevelExact(zapcore.DebugLevel).Len())
			assert.Equal(t, tt.warn, logs.FilterLevelExact(zapcore.WarnLevel).Len())
			for _, e := range logs.All() {
				assert.Equal(t, "shm", e.LoggerName)
			}
		})
	}
	assert.NoError(t, m.Check())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "raw", StateRawData.String())
	assert.Equal(t, "serialized", StateSerializedData.String())
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "DataState(5)", DataState(5).String())
	assert.Equal(t, "010203000000000000000000:107", GUID{Prefix: [12]byte{1, 2, 3}, Entity: 0x107}.String())
}
