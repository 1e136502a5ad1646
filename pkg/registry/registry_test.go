package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

type closer struct {
	name   string
	closed *[]string
}

func (c *closer) Close() error {
	*c.closed = append(*c.closed, c.name)
	return nil
}

func TestSharedConstructsOnce(t *testing.T) {
	r := New()
	var builds atomic.Int64

	v1, err := Shared(r, "counter", func() (*atomic.Int64, error) {
		builds.Add(1)
		return &atomic.Int64{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	v2, err := Shared(r, "counter", func() (*atomic.Int64, error) {
		builds.Add(1)
		return &atomic.Int64{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if v1 != v2 {
		t.Error("expected both callers to observe the same instance")
	}
	if builds.Load() != 1 {
		t.Errorf("constructor ran %d times, want 1", builds.Load())
	}
}

func TestSharedConcurrentFirstUse(t *testing.T) {
	r := New()
	var builds atomic.Int64

	const goroutines = 50
	instances := make([]*atomic.Int64, goroutines)

	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := Shared(r, "shared", func() (*atomic.Int64, error) {
				builds.Add(1)
				return &atomic.Int64{}, nil
			})
			if err != nil {
				t.Error(err)
				return
			}
			instances[idx] = v
		}(i)
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Fatalf("constructor ran %d times under concurrent first use, want 1", builds.Load())
	}
	for i := 1; i < goroutines; i++ {
		if instances[i] != instances[0] {
			t.Fatalf("goroutine %d observed a different instance", i)
		}
	}
}

func TestSharedConstructorErrorNotCached(t *testing.T) {
	r := New()
	calls := 0

	_, err := Shared(r, "flaky", func() (int, error) {
		calls++
		return 0, fmt.Errorf("construction failed")
	})
	if err == nil {
		t.Fatal("expected constructor error")
	}

	// The failed construction left nothing behind; a retry runs the
	// constructor again.
	v, err := Shared(r, "flaky", func() (int, error) {
		calls++
		return 7, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != 7 {
		t.Errorf("expected 7, got %d", v)
	}
	if calls != 2 {
		t.Errorf("expected 2 constructor calls, got %d", calls)
	}
}

func TestSharedTypeMismatch(t *testing.T) {
	r := New()

	_, err := Shared(r, "key", func() (int, error) { return 1, nil })
	if err != nil {
		t.Fatal(err)
	}

	_, err = Shared(r, "key", func() (string, error) { return "", nil })
	if err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestSharedSeparateKeys(t *testing.T) {
	r := New()

	a, _ := Shared(r, "a", func() (int, error) { return 1, nil })
	b, _ := Shared(r, "b", func() (int, error) { return 2, nil })
	if a == b {
		t.Error("expected distinct instances for distinct keys")
	}
}

func TestShutdownReverseOrder(t *testing.T) {
	r := New()
	var closed []string

	for _, name := range []string{"first", "second", "third"} {
		name := name
		_, err := Shared(r, name, func() (*closer, error) {
			return &closer{name: name, closed: &closed}, nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := r.Shutdown(); err != nil {
		t.Fatal(err)
	}

	want := []string{"third", "second", "first"}
	if len(closed) != len(want) {
		t.Fatalf("closed %d instances, want %d", len(closed), len(want))
	}
	for i := range want {
		if closed[i] != want[i] {
			t.Errorf("close order[%d] = %s, want %s", i, closed[i], want[i])
		}
	}
}

func TestShutdownEmptiesRegistry(t *testing.T) {
	r := New()
	var closed []string

	_, _ = Shared(r, "x", func() (*closer, error) {
		return &closer{name: "x", closed: &closed}, nil
	})
	if err := r.Shutdown(); err != nil {
		t.Fatal(err)
	}

	// A new instance is constructed after shutdown.
	builds := 0
	_, err := Shared(r, "x", func() (*closer, error) {
		builds++
		return &closer{name: "x", closed: &closed}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if builds != 1 {
		t.Errorf("expected reconstruction after shutdown, builds = %d", builds)
	}
}
