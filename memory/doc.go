// Package memory provides ddscore.Memory implementations for samples.
//
// Linear keeps samples in a Go byte slice. Wazero keeps them in a
// WebAssembly linear memory, so a guest module and the host share the same
// sample bytes. Both hand out blocks from a Heap, which records every live
// block and reports double frees, size mismatches and leaks.
package memory
