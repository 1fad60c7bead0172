package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toolEntry struct {
	Name   string
	Source string
}

func TestBaseRegistry_Register(t *testing.T) {
	r := NewBaseRegistry[toolEntry]()

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid", "calculator", nil},
		{"empty name", "", ErrEmptyName},
		{"duplicate", "calculator", ErrExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.key, toolEntry{Name: tt.key})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
	assert.Len(t, r.List(), 1)
}

func TestBaseRegistry_ListIsSorted(t *testing.T) {
	r := NewBaseRegistry[toolEntry]()
	for _, n := range []string{"weather", "calculator", "lookup"} {
		require.NoError(t, r.Register(n, toolEntry{Name: n}))
	}

	var names []string
	for _, e := range r.List() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"calculator", "lookup", "weather"}, names)
}

func TestBaseRegistry_Replace(t *testing.T) {
	r := NewBaseRegistry[toolEntry]()
	require.NoError(t, r.Register("old", toolEntry{Name: "old"}))

	r.Replace(map[string]toolEntry{"new": {Name: "new"}, "": {Name: "dropped"}})

	assert.Equal(t, []toolEntry{{Name: "new"}}, r.List())
	_, ok := r.Get("old")
	assert.False(t, ok)
}

func TestBaseRegistry_Concurrent(t *testing.T) {
	r := NewBaseRegistry[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(string(rune('a'+i%26)), i)
		}(i)
		go func() {
			defer wg.Done()
			_ = r.List()
		}()
	}
	wg.Wait()

	assert.Len(t, r.List(), 26)
}
