package bridge

import (
	"reflect"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

// Call-surface arity: namespace, query and optional properties.
const (
	minArgs = 2
	maxArgs = 3
)

// Validate checks the shape of untyped caller input and builds a request.
// It performs no I/O and no semantic checks: a well-shaped but wrong
// namespace or query is left for the subsystem to reject.
//
// properties may be nil (project every property) or any slice or array
// whose elements are all non-empty strings. An empty sequence also projects
// every property. Repeated names keep their first position.
func Validate(namespace, query, properties any) (core.QueryRequest, error) {
	ns, ok := namespace.(string)
	if !ok {
		return core.QueryRequest{}, core.NewError(core.InvalidArgument, nil,
			"namespace must be a string, got %s", typeName(namespace))
	}
	q, ok := query.(string)
	if !ok {
		return core.QueryRequest{}, core.NewError(core.InvalidArgument, nil,
			"query must be a string, got %s", typeName(query))
	}

	req := core.QueryRequest{Namespace: ns, Query: q}
	if properties != nil {
		props, err := validateProperties(properties)
		if err != nil {
			return core.QueryRequest{}, err
		}
		req.Properties = props
		req.HasProperties = len(props) > 0
	}

	if err := checkRequest(req); err != nil {
		return core.QueryRequest{}, err
	}
	return req, nil
}

// ValidateArgs validates a positional call: (namespace, query) or
// (namespace, query, properties).
func ValidateArgs(args ...any) (core.QueryRequest, error) {
	if len(args) < minArgs || len(args) > maxArgs {
		return core.QueryRequest{}, core.NewError(core.InvalidArgument, nil,
			"invalid parameters: expected %d or %d arguments, got %d", minArgs, maxArgs, len(args))
	}
	var props any
	if len(args) == maxArgs {
		props = args[2]
	}
	return Validate(args[0], args[1], props)
}

func validateProperties(v any) ([]string, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, core.NewError(core.InvalidArgument, nil,
			"properties must be a sequence of strings, got %s", typeName(v))
	}

	out := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		s, ok := elem.(string)
		if !ok {
			return nil, core.NewError(core.InvalidArgument, nil,
				"properties[%d] must be a string, got %s", i, typeName(elem))
		}
		if s == "" {
			return nil, core.NewError(core.InvalidArgument, nil, "properties[%d] must not be empty", i)
		}
		out = append(out, s)
	}
	return dedupe(out), nil
}

// checkRequest enforces the invariants of a typed request.
func checkRequest(req core.QueryRequest) error {
	if req.Namespace == "" {
		return core.NewError(core.InvalidArgument, nil, "namespace must not be empty")
	}
	if req.Query == "" {
		return core.NewError(core.InvalidArgument, nil, "query must not be empty")
	}
	for i, p := range req.Properties {
		if p == "" {
			return core.NewError(core.InvalidArgument, nil, "properties[%d] must not be empty", i)
		}
	}
	return nil
}

// dedupe drops repeated names, keeping first positions.
func dedupe(props []string) []string {
	seen := make(map[string]bool, len(props))
	out := make([]string, 0, len(props))
	for _, p := range props {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
