package container

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet() string
}

type englishGreeter struct{ id int }

func (g *englishGreeter) Greet() string { return "hello" }

func TestSingletonIsMemoisedAndIdentical(t *testing.T) {
	c := New()
	var builds int32
	RegisterSingleton[greeter](c, func(*Container) (greeter, error) {
		n := atomic.AddInt32(&builds, 1)
		return &englishGreeter{id: int(n)}, nil
	})

	first := MustResolve[greeter](c)
	second := MustResolve[greeter](c)

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	assert.Same(t, first, second)
}

func TestSingletonConcurrentResolveBuildsOnce(t *testing.T) {
	c := New()
	var builds int32
	RegisterSingleton[greeter](c, func(*Container) (greeter, error) {
		atomic.AddInt32(&builds, 1)
		return &englishGreeter{}, nil
	})

	var wg sync.WaitGroup
	results := make([]greeter, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = MustResolve[greeter](c)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestTransientBuildsEveryLookup(t *testing.T) {
	c := New()
	var builds int32
	RegisterTransient[greeter](c, func(*Container) (greeter, error) {
		n := atomic.AddInt32(&builds, 1)
		return &englishGreeter{id: int(n)}, nil
	})

	first := MustResolve[greeter](c)
	second := MustResolve[greeter](c)

	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), atomic.LoadInt32(&builds))
}

func TestInstanceReturnsSameValue(t *testing.T) {
	c := New()
	want := &englishGreeter{id: 7}
	RegisterInstance[greeter](c, want)

	got := MustResolve[greeter](c)
	assert.Same(t, want, got)
}

func TestResolveUnregisteredReturnsError(t *testing.T) {
	c := New()
	_, err := Resolve[greeter](c)
	require.Error(t, err)
}
