package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFixture(t *testing.T) {
	f := DefaultFixture()

	assert.ElementsMatch(t, []core.Namespace{
		"root/cimv2",
		"root/cimv2/power",
		"root/wmi",
		"root/microsoft/windows/storage",
	}, f.Namespaces())

	cls, nsOK, ok := f.class("root/cimv2", "win32_processor")
	require.True(t, nsOK)
	require.True(t, ok, "class lookup is case-insensitive")
	assert.Equal(t, "Win32_Processor", cls.Name)
	assert.Equal(t, "DeviceID", cls.Properties[0], "schema keeps source order")
	require.Len(t, cls.Instances, 1)
	assert.Equal(t, 14, cls.Instances[0].get("NumberOfCores"))
}

func TestParseFixture_PreservesOrderAndNulls(t *testing.T) {
	data := []byte(`
namespaces:
  ROOT\CIMV2:
    Win32_Thing:
      - Zeta: 1
        Alpha: two
      - Alpha: three
        Mid: null
        List: [a, b]
  root/empty:
`)
	f, err := ParseFixture(data)
	require.NoError(t, err)

	cls, nsOK, ok := f.class("root/cimv2", "Win32_Thing")
	require.True(t, nsOK, "namespace names are normalized")
	require.True(t, ok)
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid", "List"}, cls.Properties)
	assert.Nil(t, cls.Instances[1].get("Mid"))
	assert.Equal(t, []any{"a", "b"}, cls.Instances[1].get("List"))
	assert.Equal(t, "three", cls.Instances[1].get("alpha"), "instance lookup falls back to case-insensitive")

	_, nsOK, _ = f.class("root/empty", "X")
	assert.True(t, nsOK, "a namespace with no classes still exists")
}

func TestParseFixture_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not a mapping", data: "- a\n- b\n"},
		{name: "namespaces not a mapping", data: "namespaces: [a]\n"},
		{name: "class not a list", data: "namespaces:\n  root/x:\n    C: 1\n"},
		{name: "instance not a mapping", data: "namespaces:\n  root/x:\n    C:\n      - 1\n"},
		{name: "bad yaml", data: "namespaces: {\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespaces:\n  root/x:\n    C:\n      - A: 1\n"), 0o600))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, []core.Namespace{"root/x"}, f.Namespaces())

	_, err = LoadFixture(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFixtureClone(t *testing.T) {
	f := NewFixture()
	f.AddInstance("root/x", "C", NewInstance([]string{"A"}, []any{1}))

	c := f.clone()
	c.AddClass("root/x", "D")

	_, _, ok := f.class("root/x", "D")
	assert.False(t, ok, "changes to the clone must not leak into the original")
	_, _, ok = c.class("root/x", "C")
	assert.True(t, ok)
}
