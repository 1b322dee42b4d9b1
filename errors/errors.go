package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad        Phase = "load"        // type tree loading
	PhaseBuild       Phase = "build"       // descriptor construction
	PhaseLayout      Phase = "layout"      // layout bytecode compilation
	PhaseEncode      Phase = "encode"      // sample to CDR
	PhaseDecode      Phase = "decode"      // CDR to sample
	PhaseSerialize   Phase = "serialize"   // descriptor to bytes
	PhaseDeserialize Phase = "deserialize" // bytes to descriptor
	PhaseRuntime     Phase = "runtime"     // sample lifecycle, refcounting
	PhaseTransport   Phase = "transport"   // shared-memory chunks
)

// Kind categorizes the error
type Kind string

const (
	KindMalformedAnnotation      Kind = "malformed_annotation"
	KindUnresolvedKeyPath        Kind = "unresolved_key_path"
	KindBufferTooSmall           Kind = "buffer_too_small"
	KindCorrupt                  Kind = "corrupt"
	KindUnsupportedAssignability Kind = "unsupported_assignability"
	KindOutOfBounds              Kind = "out_of_bounds"
	KindInvalidData              Kind = "invalid_data"
	KindUnsupported              Kind = "unsupported"
	KindAllocation               Kind = "allocation"
	KindOverflow                 Kind = "overflow"
	KindNilPointer               Kind = "nil_pointer"
	KindInvalidEnum              Kind = "invalid_enum"
	KindNotFound                 Kind = "not_found"
	KindInvalidInput             Kind = "invalid_input"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	TypeName string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.TypeName != "" {
		b.WriteString(": type ")
		b.WriteString(e.TypeName)
	}

	if e.Detail != "" {
		if e.TypeName != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// HasKind reports whether err or any error in its chain is an *Error of the given kind,
// regardless of phase.
func HasKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// TypeName sets the IDL type name
func (b *Builder) TypeName(t string) *Builder {
	b.err.TypeName = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// MalformedAnnotation creates an error for conflicting or unusable key annotations
func MalformedAnnotation(path []string, detail string, args ...any) *Error {
	return New(PhaseBuild, KindMalformedAnnotation).Path(path...).Detail(detail, args...).Build()
}

// UnresolvedKeyPath creates an error for a keylist entry naming no member
func UnresolvedKeyPath(typeName, keyPath, detail string) *Error {
	return &Error{
		Phase:    PhaseBuild,
		Kind:     KindUnresolvedKeyPath,
		Path:     strings.Split(keyPath, "."),
		TypeName: typeName,
		Detail:   detail,
		Value:    keyPath,
	}
}

// BufferTooSmall creates an error for a destination buffer shorter than required
func BufferTooSmall(phase Phase, need, have int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBufferTooSmall,
		Detail: fmt.Sprintf("need %d bytes, have %d", need, have),
		Value:  need,
	}
}

// Truncated creates an error for input that ends before a complete item was read
func Truncated(phase Phase, what string, offset, need, have int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCorrupt,
		Detail: fmt.Sprintf("truncated %s at offset %d: need %d bytes, have %d", what, offset, need, have),
		Value:  offset,
	}
}

// Corrupt creates an error for structurally inconsistent input
func Corrupt(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindCorrupt).Detail(detail, args...).Build()
}

// UnsupportedAssignability is reserved for assignability rules beyond exact type matches
func UnsupportedAssignability(producer, consumer string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindUnsupportedAssignability,
		Detail: fmt.Sprintf("%s is not assignable to %s", producer, consumer),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		Detail: fmt.Sprintf("nil %s", what),
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, limit string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v exceeds %s", value, limit),
		Value:  value,
	}
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, path []string, value uint32, max uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEnum,
		Path:   path,
		Detail: fmt.Sprintf("enumerator %d out of range (max %d)", value, max),
		Value:  value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a type tree loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
