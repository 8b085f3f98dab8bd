package dna

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseAsset(t *testing.T) {
	asset, err := ParseAsset([]byte(`
name: HumanMale
dna:
  - name: height
    default: 0.5
  - name: weight
    default: 0.25
`))
	require.NoError(t, err)
	assert.Equal(t, "HumanMale", asset.Name)
	assert.Equal(t, []string{"height", "weight"}, asset.Names())
	assert.Equal(t, Set{"height": 0.5, "weight": 0.25}, asset.Defaults())
}

func TestParseAsset_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "empty", yaml: "name: x\n", want: "no variables"},
		{name: "unnamed", yaml: "dna:\n  - default: 1\n", want: "has no name"},
		{name: "duplicate", yaml: "dna:\n  - name: a\n  - name: a\n", want: "duplicate"},
		{name: "not yaml", yaml: "dna: [", want: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAsset([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadAsset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: a\ndna:\n  - name: height\n"), 0o644))

	asset, err := LoadAsset(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"height"}, asset.Names())

	_, err = LoadAsset(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAsset_NameHash(t *testing.T) {
	a := &Asset{Variables: []Variable{{Name: "height"}, {Name: "weight"}}}
	b := &Asset{Variables: []Variable{{Name: "height", Default: 1}, {Name: "weight"}}}
	c := &Asset{Variables: []Variable{{Name: "weight"}, {Name: "height"}}}
	d := &Asset{Variables: []Variable{{Name: "heightweight"}}}

	assert.Equal(t, a.NameHash(), b.NameHash(), "defaults do not change the layout")
	assert.NotEqual(t, a.NameHash(), c.NameHash(), "order matters")
	assert.NotEqual(t, a.NameHash(), d.NameHash())
}

func TestSet(t *testing.T) {
	s := Set{"b": 2, "a": 1}
	assert.Equal(t, []string{"a", "b"}, s.Names())

	v, ok := s.Value("a")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	_, ok = s.Value("z")
	assert.False(t, ok)

	clone := s.Clone()
	clone.SetValue("a", 5)
	assert.Equal(t, 1.0, s["a"])
}

func TestStore_GetSet(t *testing.T) {
	store := NewStore(DefaultAsset(), zap.NewNop())

	v, err := store.Get("height")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v, "unset values read as the default")

	require.NoError(t, store.Set("height", 0.9))
	v, err = store.Get("height")
	require.NoError(t, err)
	assert.Equal(t, 0.9, v)

	_, err = store.Get("tail")
	assert.ErrorContains(t, err, "not found")
	assert.ErrorContains(t, store.Set("tail", 1), "not found")
}

func TestStore_SetManyIsAllOrNothing(t *testing.T) {
	store := NewStore(DefaultAsset(), nil)

	err := store.SetMany(map[string]float64{"height": 0.1, "tail": 1})
	require.Error(t, err)
	v, _ := store.Get("height")
	assert.Equal(t, 0.5, v)

	err = store.SetMany(map[string]float64{"height": 0.1, "weight": math.NaN()})
	assert.ErrorContains(t, err, "finite")
}

func TestStore_Snapshot(t *testing.T) {
	store := NewStore(DefaultAsset(), nil)
	require.NoError(t, store.Set("width", 0.75))

	snap := store.Snapshot()
	assert.Equal(t, 0.75, snap["width"])
	assert.Equal(t, 0.5, snap["height"])
	assert.Len(t, snap, len(DefaultAsset().Variables))

	snap.SetValue("width", 0)
	v, _ := store.Get("width")
	assert.Equal(t, 0.75, v, "snapshots are copies")

	store.Reset()
	v, _ = store.Get("width")
	assert.Equal(t, 0.5, v)
}

func TestStore_Subscribe(t *testing.T) {
	store := NewStore(DefaultAsset(), nil)

	var mu sync.Mutex
	var got []string
	record := func(name string, oldValue, newValue float64) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, name)
	}

	sub, err := store.Subscribe("height", record)
	require.NoError(t, err)
	all, err := store.Subscribe(AnyName, record)
	require.NoError(t, err)

	require.NoError(t, store.Set("height", 0.6))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	sub.Unsubscribe()
	all.Unsubscribe()
	assert.Empty(t, store.subscribers)

	_, err = store.Subscribe("tail", record)
	assert.Error(t, err)
}
