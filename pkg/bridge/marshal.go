package bridge

import (
	"context"
	"errors"
	"io"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

// Marshal drains set into a ResultSet.
//
// With all set, each record holds every property its object exposes, in the
// object's order. Otherwise each record holds exactly props, in order; a
// property the object lacks is Null. A query rejection reported before the
// first object is a QueryError; any other enumeration failure is a
// SubsystemFault. No partial result is returned.
func Marshal(ctx context.Context, set core.ObjectSet, props []string, all bool) (core.ResultSet, error) {
	out := core.ResultSet{}
	for {
		obj, err := set.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, classifyFetch(err, len(out) == 0)
		}
		if obj == nil {
			return nil, core.NewError(core.SubsystemFault, nil, "result set yielded no object and no error")
		}
		out = append(out, marshalObject(obj, props, all))
	}
}

func marshalObject(obj core.Object, props []string, all bool) core.Record {
	names := props
	if all {
		names = obj.PropertyNames()
	}

	rec := core.NewRecord(len(names))
	for _, name := range names {
		v, ok := obj.Property(name)
		if !ok {
			rec.Set(name, core.Null())
			continue
		}
		rec.Set(name, core.ValueOf(v))
	}
	return rec
}
