// Package cdr encodes and decodes samples as XCDR1 or XCDR2 streams,
// driven by the layout program of a type descriptor.
//
// Samples live in a ddscore.Memory using the native layout described in
// package layout. The codec writes little-endian bodies, reads either byte
// order and supports both encoding versions:
//
//	          final    appendable        mutable
//	XCDR1     plain    plain             parameter list, 0x3F02 sentinel
//	XCDR2     plain    DHEADER + plain   DHEADER + EMHEADER per member
//
// Under XCDR2, sequences and arrays of non-primitive elements carry a
// DHEADER. Optional members of non-mutable types carry a presence byte under
// XCDR2 and a parameter header under XCDR1.
//
// A serialized sample is a 4-byte encapsulation header followed by the body.
// Bodies are padded to a multiple of four and the padding count is recorded
// in the header options. Size measures a body with a streaming counter, so
// it never allocates the output.
//
// KeyHash serializes the key fields in key order as big-endian XCDR2 and
// uses the result directly when the key fits in 16 bytes, or its MD5 digest
// otherwise.
package cdr
