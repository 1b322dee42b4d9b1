// Package abi provides internal arithmetic helpers shared by the layout
// compiler and the CDR codec: alignment, overflow-checked arithmetic and
// safety limits for lengths read off the wire.
//
// This package is internal to dds-core.
package abi
