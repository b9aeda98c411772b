package core

// Namespace is a resolved management namespace: lowercase with "/" separators,
// e.g. "root/cimv2".
type Namespace string

// String returns the namespace text.
func (n Namespace) String() string { return string(n) }

// QueryRequest is a validated call into the bridge.
type QueryRequest struct {
	// Namespace as supplied by the caller, before resolution.
	Namespace string

	// Query is the WQL text. It is passed to the subsystem unmodified.
	Query string

	// Properties lists the requested property names in order.
	// Only meaningful when HasProperties is true.
	Properties []string

	// HasProperties distinguishes "project these properties" from
	// "project every property the object exposes".
	HasProperties bool
}
