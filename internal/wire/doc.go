// Package wire reads and writes the little-endian framing used by the
// binary descriptor form: 32-bit words and length-prefixed strings padded
// to a word boundary.
package wire
