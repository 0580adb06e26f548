package modcache_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/modcache"
)

func sampleModule() *bytecode.Module {
	return &bytecode.Module{
		Version: 1,
		Linked:  true,
		Strings: []string{""},
		Types:   []bytecode.TypeEntry{{Kind: bytecode.TypePrimitive, Primitive: "node"}},
		Steps: []bytecode.Step{
			{Op: bytecode.OpReturn, RefID: 0},
		},
		Entrypoints:  []bytecode.Entrypoint{{Name: "Q", Step: 0, Type: 0}},
		KindSymbols:  []int{0},
		FieldSymbols: []int{0},
	}
}

func TestCacheMissThenHit(t *testing.T) {
	c, err := modcache.Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	key := modcache.Key("go", "(identifier) @n")
	_, ok, err := c.Lookup(key)
	require.NoError(t, err)
	require.False(t, ok)

	m := sampleModule()
	require.NoError(t, c.Store(key, "go", "(identifier) @n", m))

	got, ok, err := c.Lookup(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m.Entrypoints[0].Name, got.Entrypoints[0].Name)
	require.Len(t, got.Steps, len(m.Steps))
	require.Equal(t, m.Steps[0].Op, got.Steps[0].Op)
	require.Equal(t, m.Steps[0].RefID, got.Steps[0].RefID)
}

func TestStoreIsIdempotentForSameKey(t *testing.T) {
	c, err := modcache.Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	key := modcache.Key("go", "(identifier) @n")
	m := sampleModule()
	require.NoError(t, c.Store(key, "go", "(identifier) @n", m))
	require.NoError(t, c.Store(key, "go", "(identifier) @n", m))

	_, ok, err := c.Lookup(key)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestKeyDiffersByGrammar(t *testing.T) {
	require.NotEqual(t, modcache.Key("go", "(identifier) @n"), modcache.Key("python", "(identifier) @n"))
}

func TestEvictRemovesEntry(t *testing.T) {
	c, err := modcache.Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	key := modcache.Key("go", "(identifier) @n")
	require.NoError(t, c.Store(key, "go", "(identifier) @n", sampleModule()))
	require.NoError(t, c.Evict(key))

	_, ok, err := c.Lookup(key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "cache.db")

	c, err := modcache.Open(path)
	require.NoError(t, err)
	defer c.Close()
}
