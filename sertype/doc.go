// Package sertype provides the runtime type handle of a topic type.
//
// Type is the capability interface the middleware programs against: type
// identity for discovery (Equal, Hash, TypeID, AssignableFrom), descriptor
// exchange (MarshalDescriptor, UnmarshalDescriptor), sample lifecycle over
// contiguous sample arrays (ZeroSamples, ReallocSamples, FreeSamples) and
// the sample codec used by transports (GetSerializedSize, SerializeInto).
// Default is the one implementation, backed by a descriptor and a cdr.Codec.
//
// Handles are reference counted. New returns a handle holding one
// reference; Unref releases it and the handle is freed when the count
// reaches zero. A handle made with Derive holds one reference on its base
// for its whole life, so the base outlives every derived handle.
//
// Registry interns handles for discovery: equal types share one handle, and
// a handle leaves the registry when its last reference is released.
package sertype
