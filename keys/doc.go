// Package keys derives the key fields of a topic type.
//
// Build walks the struct tree once and produces a Set: the key fields in
// key order, each with its dotted name, its member id path (one id per
// nesting level) and the KOF instruction that addresses it in the layout
// program. Keys come either from @key annotations or from a keylist, never
// both.
//
// Key order is by member id at every level. Base members of final and
// appendable types form a leading "parent" level; mutable types flatten the
// inheritance chain into one level. Index is the position in key order and
// is what the keyhash and key serialization use; SampleIndex is the position
// in declaration order.
//
// ComputeSizes decides per encoding version whether the serialized key has a
// static size of at most FixedKeyMaxSize bytes.
package keys
