// Package adapter provides the subsystem adapter registry and shared
// building blocks for wqlbridge adapters.
//
// The adapter contract itself (core.Adapter, core.Session, core.ObjectSet,
// core.Object) lives in pkg/core. Concrete implementations are in
// pkg/adapters/ subdirectories and register themselves from init().
package adapter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

var schemaNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// SchemaName maps a namespace onto the identifier used by SQL-backed
// mirrors: "root/cimv2" becomes "root_cimv2". Namespaces that cannot be
// expressed as a plain identifier fail with core.ErrInvalidNamespace.
func SchemaName(ns core.Namespace) (string, error) {
	name := strings.ReplaceAll(string(ns), "/", "_")
	if !schemaNamePattern.MatchString(name) {
		return "", &core.NativeError{
			Op:      "Open",
			Message: fmt.Sprintf("invalid namespace %q", ns),
			Err:     core.ErrInvalidNamespace,
		}
	}
	return name, nil
}

// QuoteIdent quotes an SQL identifier with double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// NamespaceFromSchema reverses SchemaName for listing.
func NamespaceFromSchema(schema string) core.Namespace {
	return core.Namespace(strings.ReplaceAll(strings.ToLower(schema), "_", "/"))
}
