package memory

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
	"gopkg.in/yaml.v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed fixtures/default.yaml
var defaultFixture []byte

// Fixture is an in-memory management repository: namespaces holding classes
// holding instances. Instances keep the property order of the source file.
type Fixture struct {
	namespaces map[core.Namespace]map[string]*Class
}

// Class is one management class and its instances.
type Class struct {
	Name string
	// Properties is the class schema: every property any instance declares,
	// in first-seen order.
	Properties []string
	Instances  []*Instance
}

// Instance is one management object.
type Instance struct {
	names  []string
	values map[string]any
}

// NewInstance builds an instance from parallel name and value slices.
func NewInstance(names []string, values []any) *Instance {
	inst := &Instance{values: make(map[string]any, len(names))}
	for i, n := range names {
		inst.set(n, values[i])
	}
	return inst
}

func (i *Instance) get(name string) any {
	if v, ok := i.values[name]; ok {
		return v
	}
	for _, n := range i.names {
		if strings.EqualFold(n, name) {
			return i.values[n]
		}
	}
	return nil
}

func (i *Instance) set(name string, v any) {
	if _, ok := i.values[name]; !ok {
		i.names = append(i.names, name)
	}
	i.values[name] = v
}

// DefaultFixture returns the built-in fixture.
func DefaultFixture() *Fixture {
	f, err := ParseFixture(defaultFixture)
	if err != nil {
		panic(fmt.Sprintf("memory: invalid built-in fixture: %v", err))
	}
	return f
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("invalid fixture %s: %w", path, err)
	}
	return f, nil
}

// ParseFixture parses fixture YAML:
//
//	namespaces:
//	  root/cimv2:
//	    Win32_Processor:
//	      - DeviceID: CPU0
//	        NumberOfCores: 8
func ParseFixture(data []byte) (*Fixture, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	f := NewFixture()
	if len(doc.Content) == 0 {
		return f, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: fixture must be a mapping", root.Line)
	}

	nsNode := mappingValue(root, "namespaces")
	if nsNode == nil {
		return f, nil
	}
	if nsNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: namespaces must be a mapping", nsNode.Line)
	}

	for i := 0; i+1 < len(nsNode.Content); i += 2 {
		ns := nsNode.Content[i].Value
		classes := nsNode.Content[i+1]
		f.AddNamespace(ns)
		if classes.Kind == yaml.ScalarNode && classes.Tag == "!!null" {
			continue
		}
		if classes.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: namespace %q must map class names to instances", classes.Line, ns)
		}
		for j := 0; j+1 < len(classes.Content); j += 2 {
			if err := f.addClassNode(ns, classes.Content[j].Value, classes.Content[j+1]); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func (f *Fixture) addClassNode(ns, className string, node *yaml.Node) error {
	cls := f.AddClass(ns, className)
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: class %q must be a list of instances", node.Line, className)
	}

	for _, instNode := range node.Content {
		if instNode.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: instance of %q must be a mapping", instNode.Line, className)
		}
		inst := &Instance{values: make(map[string]any, len(instNode.Content)/2)}
		for k := 0; k+1 < len(instNode.Content); k += 2 {
			var v any
			if err := instNode.Content[k+1].Decode(&v); err != nil {
				return fmt.Errorf("line %d: %w", instNode.Content[k+1].Line, err)
			}
			inst.set(instNode.Content[k].Value, v)
		}
		cls.addInstance(inst)
	}
	return nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// NewFixture returns an empty fixture.
func NewFixture() *Fixture {
	return &Fixture{namespaces: make(map[core.Namespace]map[string]*Class)}
}

// canonicalNamespace folds case and separators. A Caser is stateful, so
// each call builds its own.
func canonicalNamespace(ns string) core.Namespace {
	return core.Namespace(strings.ReplaceAll(cases.Lower(language.Und).String(ns), `\`, "/"))
}

// AddNamespace declares a namespace. Namespace names are stored lowercase.
func (f *Fixture) AddNamespace(ns string) {
	key := canonicalNamespace(ns)
	if _, ok := f.namespaces[key]; !ok {
		f.namespaces[key] = make(map[string]*Class)
	}
}

// AddClass declares a class, creating its namespace if needed, and returns it.
func (f *Fixture) AddClass(ns, className string) *Class {
	f.AddNamespace(ns)
	classes := f.namespaces[canonicalNamespace(ns)]
	key := strings.ToLower(className)
	if cls, ok := classes[key]; ok {
		return cls
	}
	cls := &Class{Name: className}
	classes[key] = cls
	return cls
}

// AddInstance appends an instance to a class.
func (f *Fixture) AddInstance(ns, className string, inst *Instance) {
	f.AddClass(ns, className).addInstance(inst)
}

func (c *Class) addInstance(inst *Instance) {
	for _, n := range inst.names {
		if c.property(n) == "" {
			c.Properties = append(c.Properties, n)
		}
	}
	c.Instances = append(c.Instances, inst)
}

// property returns the schema spelling of name, matched case-insensitively,
// or "" if the class has no such property.
func (c *Class) property(name string) string {
	for _, p := range c.Properties {
		if strings.EqualFold(p, name) {
			return p
		}
	}
	return ""
}

// Namespaces returns the fixture's namespaces.
func (f *Fixture) Namespaces() []core.Namespace {
	out := make([]core.Namespace, 0, len(f.namespaces))
	for ns := range f.namespaces {
		out = append(out, ns)
	}
	return out
}

func (f *Fixture) class(ns core.Namespace, name string) (*Class, bool, bool) {
	classes, ok := f.namespaces[ns]
	if !ok {
		return nil, false, false
	}
	cls, ok := classes[strings.ToLower(name)]
	return cls, true, ok
}

// clone copies the namespace and class maps so the copy can be changed
// without disturbing sessions reading the original.
func (f *Fixture) clone() *Fixture {
	out := NewFixture()
	if f == nil {
		return out
	}
	for ns, classes := range f.namespaces {
		m := make(map[string]*Class, len(classes))
		for k, c := range classes {
			m[k] = c
		}
		out.namespaces[ns] = m
	}
	return out
}
