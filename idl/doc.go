// Package idl defines the annotated type tree consumed by the descriptor
// builder.
//
// The tree is what an IDL front-end hands over after parsing and annotation
// resolution: structs with their members, member identifiers, key, optional
// and extensibility annotations, inheritance bases, and per-topic keylists.
// The core treats it as read-only.
//
// # Key Types
//
//   - Unit: one compilation unit with its named types and keylists
//   - Struct, Member: aggregate types and their members
//   - Primitive, String, Sequence, Array, Enum: member types
//
// # YAML documents
//
// Parse reads a compilation unit from a YAML document. It is used by the
// ddstype tool and by tests; production front-ends build the tree directly.
//
//	keylists: true
//	types:
//	  - struct: inner
//	    members:
//	      - {name: i1, type: long}
//	      - {name: i2, type: short}
//	  - struct: outer
//	    members:
//	      - {name: o1, type: inner}
//	      - {name: o2, type: "sequence<inner, 4>"}
//	keylist:
//	  - {type: outer, members: [o1.i1]}
package idl
