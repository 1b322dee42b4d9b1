// Package shm moves samples through shared-memory chunks.
//
// A chunk is a block in a shared ddscore.Memory that starts with a fixed
// Header followed by the payload. Writers either serialize a sample into
// the payload (Fill) or copy its native bytes when the type's native layout
// is its wire layout (FillRaw). Readers rebuild a sample with Take.
//
// Only the runtime-to-transport surface of sertype.Type is used:
// GetSerializedSize, SerializeInto, KeyHash and OptimizedSize on the
// writing side and Deserialize on the reading side.
package shm
