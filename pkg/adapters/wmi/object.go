package wmi

import "strings"

// object is a detached copy of one management object's properties.
type object struct {
	names  []string
	values map[string]any
}

func (o *object) PropertyNames() []string {
	out := make([]string, len(o.names))
	copy(out, o.names)
	return out
}

// Property matches names case-insensitively, as WMI does.
func (o *object) Property(name string) (any, bool) {
	if v, ok := o.values[name]; ok {
		return v, true
	}
	for _, n := range o.names {
		if strings.EqualFold(n, name) {
			return o.values[n], true
		}
	}
	return nil, false
}
