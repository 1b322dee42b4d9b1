// Package layout compiles an annotated struct tree into layout bytecode: a
// flat, versioned instruction stream describing the native sample layout and
// the member structure the sample codec walks.
//
// # Instruction Set
//
//	ADR  member address: type code, element type, flags, member id,
//	     native offset and type-specific operands
//	DLC  delimited (appendable) struct header
//	PLC  parameter-list (mutable) struct header
//	RTS  end of a program
//	KOF  key offset list: one ADR index per nesting level
//
// The main program comes first. Programs for nested structs and for nested
// collection elements follow it, one per distinct type, and are referenced by
// absolute instruction index. KOF instructions are appended last and are never
// reached by Walk.
//
// # Native Layout
//
// Samples live in a 32-bit address space:
//
//	primitive        natural size and alignment
//	enum             4 bytes
//	string           {ptr u32, len u32}
//	string<N>        inline char[N+1]
//	sequence         {ptr u32, len u32}
//	array, struct    inline
//	optional member  u32 pointer, 0 when absent
//
// Final and appendable derived structs embed their base as a leading member
// "parent"; mutable derived structs flatten the base members into their own
// level.
//
// # Word Encoding
//
// Encode produces little-endian 32-bit words behind a version header. Each
// instruction starts with op<<24 | type<<16 | elem<<8 | flags. Decode checks
// every opcode, operand count and jump target.
package layout
