package id

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id := gen.Generate()
	assert.Len(t, id, 26)
	assert.True(t, IsValid(id))
}

func TestGenerateNOrdered(t *testing.T) {
	gen := NewGenerator()

	ids := gen.GenerateN(100)
	require.Len(t, ids, 100)

	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}

		if i > 0 {
			assert.Less(t, ids[i-1], id, "ids must be ascending")
		}
	}
}

func TestGenerateConcurrent(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 8
	const perGoroutine = 50

	var mu sync.Mutex
	seen := make(map[string]struct{})

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid("not-a-ulid"))
	assert.False(t, IsValid(""))
}
