package core

import "context"

// Adapter is a connection to a management subsystem. Adapters are opaque
// query engines: they accept a namespace and WQL text and hand back an
// enumerable sequence of property bags.
type Adapter interface {
	// Name returns the registered adapter type (e.g. "wmi", "sqlite").
	Name() string

	// Connect prepares the adapter using the provided config.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close releases the adapter and everything it opened.
	Close() error

	// Open returns a session scoped to one namespace. An unknown namespace
	// fails with an error wrapping ErrInvalidNamespace.
	Open(ctx context.Context, ns Namespace) (Session, error)
}

// Session is a namespace-scoped connection. Sessions are not safe for
// concurrent use; callers serialize access.
type Session interface {
	// ExecQuery submits the query text unmodified. Rejected query text fails
	// with an error wrapping ErrInvalidQuery or ErrInvalidClass.
	ExecQuery(ctx context.Context, query string) (ObjectSet, error)

	// Close releases the session.
	Close() error
}

// ObjectSet is a forward-only enumeration of query results.
type ObjectSet interface {
	// Next returns the next object, or io.EOF when the set is exhausted.
	Next(ctx context.Context) (Object, error)

	// Close releases the enumeration. It is safe to call more than once.
	Close() error
}

// Object is the property bag for one management object. Property values are
// adapter-native Go values; the bridge normalizes them into Value.
type Object interface {
	// PropertyNames returns every property the object exposes, in the
	// subsystem's order.
	PropertyNames() []string

	// Property returns a property's native value and whether it exists.
	Property(name string) (any, bool)
}

// NamespaceLister is implemented by adapters that can enumerate the
// namespaces they serve.
type NamespaceLister interface {
	Namespaces(ctx context.Context) ([]Namespace, error)
}

// Seeder is implemented by adapters that can load fixture data.
type Seeder interface {
	// LoadCSV loads a CSV file as the instances of class in namespace.
	LoadCSV(ctx context.Context, ns Namespace, class, filePath string) error
}

// AdapterConfig holds configuration for connecting to a subsystem.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Options  map[string]string
	Params   map[string]any
}
