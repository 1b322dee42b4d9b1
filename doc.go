// Package ddscore provides the type-description and serialization core of a
// DDS publish/subscribe middleware.
//
// A topic type arrives as an annotated IDL type tree. The core compiles it
// once into an immutable type descriptor (layout bytecode plus the ordered
// topic key fields) and wraps that descriptor in a reference-counted runtime
// type handle, the sertype, which the middleware uses for every publish,
// subscribe and discovery step.
//
// # Architecture Overview
//
//	ddscore/           Root package with the Memory and Allocator interfaces
//	├── idl/           Annotated type tree (input model) and YAML loader
//	├── layout/        Layout bytecode: opcodes, compiler, walker, word codec
//	├── keys/          Key descriptor builder and key size verdicts
//	├── descriptor/    TypeDescriptor construction and little-endian codec
//	├── cdr/           XCDR1/XCDR2 sample codec driven by layout bytecode
//	├── sertype/       Runtime type handle, refcounting, derivation, registry
//	├── memory/        Linear and wazero-backed sample memories
//	├── shm/           Shared-memory chunk helpers over the sertype interface
//	├── config/        Configuration loading
//	├── errors/        Structured error types
//	└── cmd/ddstype/   Descriptor inspection tool
//
// # Quick Start
//
//	unit, err := idl.Parse(src)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	desc, err := descriptor.Build(unit, "outer")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	st := sertype.New(desc)
//	defer st.Unref()
//
//	size, err := st.GetSerializedSize(mem, sampleAddr)
//
// # Memory Model
//
// Samples are addressed through the Memory interface rather than Go
// pointers, so the same descriptor drives samples in a process-local buffer,
// a shared-memory chunk or a WebAssembly linear memory. Strings and
// sequences are {ptr, len} pairs pointing at blocks obtained from an
// Allocator.
//
// # Thread Safety
//
// Descriptors are immutable once built and safe for concurrent use. Sertype
// reference counts are atomic. Memory and Allocator implementations decide
// their own synchronization.
package ddscore
