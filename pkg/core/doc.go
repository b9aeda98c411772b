// Package core defines the shared language of the wqlbridge system.
//
// This package contains:
//   - Result types (Value, Record, ResultSet)
//   - Request types (QueryRequest, Namespace)
//   - The error vocabulary (ErrorKind, BridgeError, NativeError)
//   - Service interfaces implemented by subsystem adapters (Adapter, Session, ObjectSet, Object)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
