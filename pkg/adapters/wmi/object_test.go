package wmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObject_Property(t *testing.T) {
	o := &object{
		names:  []string{"Name", "NumberOfCores", "Description"},
		values: map[string]any{"Name": "Core i7", "NumberOfCores": int32(8), "Description": nil},
	}

	assert.Equal(t, []string{"Name", "NumberOfCores", "Description"}, o.PropertyNames())

	v, ok := o.Property("numberofcores")
	assert.True(t, ok)
	assert.Equal(t, int32(8), v)

	v, ok = o.Property("Description")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = o.Property("Nope")
	assert.False(t, ok)

	names := o.PropertyNames()
	names[0] = "changed"
	assert.Equal(t, "Name", o.PropertyNames()[0], "PropertyNames returns a copy")
}
