package bridge

import (
	"strings"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Separator is the fixed namespace path separator.
const Separator = "/"

// DefaultNamespaces are the namespaces the native bridge has always served.
var DefaultNamespaces = []string{
	"root/cimv2",
	"root/cimv2/power",
	"root/wmi",
	"root/microsoft/windows/storage",
}

// ResolveNamespace returns the canonical form of a namespace: Unicode
// lowercase with "\" rewritten to "/". Existence is not checked.
func ResolveNamespace(ns string) core.Namespace {
	folded := cases.Lower(language.Und).String(ns)
	return core.Namespace(strings.ReplaceAll(folded, `\`, Separator))
}
