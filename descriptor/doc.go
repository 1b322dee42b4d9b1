// Package descriptor builds the immutable type descriptor of a topic type
// and converts it to and from its little-endian binary form.
//
// Build runs the layout compiler and the key builder over an annotated
// struct tree and derives the flag set:
//
//	FlagFixedKey          key fits the keyhash under XCDR1
//	FlagFixedKeyXCDR2     key fits the keyhash under XCDR2
//	FlagNoOptimize        samples hold heap members
//	FlagDisableTypecheck  readers accept any writer type
//	FlagXCDR2             samples are encoded as XCDR2
//	FlagContainsOptional  some member is @optional
//
// The binary form carries the type name, size, alignment, flags,
// extensibility, key names with their KOF offsets and key order, and the
// encoded layout program. Unmarshal validates everything and recomputes the
// key id paths, declaration order and key size verdicts, so a descriptor read
// back behaves exactly like the one that was written.
package descriptor
