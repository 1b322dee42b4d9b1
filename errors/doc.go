// Package errors provides structured error types for the dds-core library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: member path, IDL type name, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBuild, errors.KindUnresolvedKeyPath).
//		Path("outer", "o1", "i9").
//		TypeName("inner").
//		Detail("no member %q", "i9").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MalformedAnnotation(path, "keylist given for annotated type")
//	err := errors.BufferTooSmall(errors.PhaseEncode, 24, 16)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
