package idl

import (
	"crypto/md5"
	"encoding/binary"
)

// HashID computes the @hashid/@autoid(HASH) member identifier: the first four
// bytes of the MD5 digest of the member name, little-endian, masked to 28 bits.
func HashID(name string) uint32 {
	sum := md5.Sum([]byte(name))
	return binary.LittleEndian.Uint32(sum[:4]) & 0x0FFFFFFF
}

// MemberIDs returns the identifier of every member declared directly on s,
// in declaration order. Members without @id take the previous member's id
// plus one; the first implicit id follows the last id of the base chain, or
// starts at 0. Under @autoid(HASH) implicit ids are name hashes.
func MemberIDs(s *Struct) []uint32 {
	ids, _ := memberIDs(s)
	return ids
}

func memberIDs(s *Struct) ([]uint32, uint32) {
	var next uint32
	if s.Base != nil {
		_, next = memberIDs(s.Base)
	}
	ids := make([]uint32, len(s.Members))
	for i, m := range s.Members {
		switch {
		case m.HasID:
			ids[i] = m.ID
		case s.AutoID == AutoIDHash:
			ids[i] = HashID(m.Name)
		default:
			ids[i] = next
		}
		next = ids[i] + 1
	}
	return ids, next
}
