package cache

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// withClock replaces the store's clock with a controllable one.
func withClock(s *Store) *time.Time {
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }
	return &now
}

func TestGetSet(t *testing.T) {
	s := New()
	s.Set("k", 42, time.Minute)

	v, ok := s.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if v.(int) != 42 {
		t.Errorf("value = %v; want 42", v)
	}

	if _, ok := s.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestLazyExpiry(t *testing.T) {
	s := New()
	now := withClock(s)

	s.Set("k", "v", 10*time.Second)

	*now = now.Add(5 * time.Second)
	if _, ok := s.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}

	*now = now.Add(6 * time.Second)
	if _, ok := s.Get("k"); ok {
		t.Fatal("entry should be expired")
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be evicted on read, len = %d", s.Len())
	}
}

func TestOverwriteRefreshesTTL(t *testing.T) {
	s := New()
	now := withClock(s)

	s.Set("k", 1, 10*time.Second)
	*now = now.Add(8 * time.Second)
	s.Set("k", 2, 10*time.Second)
	*now = now.Add(8 * time.Second)

	v, ok := s.Get("k")
	if !ok {
		t.Fatal("refreshed entry should still be live")
	}
	if v.(int) != 2 {
		t.Errorf("value = %v; want 2", v)
	}
}

func TestGetOrCompute(t *testing.T) {
	s := New()
	calls := 0
	compute := func() (any, error) {
		calls++
		return "computed", nil
	}

	for range 3 {
		v, err := s.GetOrCompute("k", time.Minute, compute)
		if err != nil {
			t.Fatalf("GetOrCompute failed: %v", err)
		}
		if v.(string) != "computed" {
			t.Errorf("value = %v; want computed", v)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times; want 1", calls)
	}
}

func TestGetOrComputeError(t *testing.T) {
	s := New()
	wantErr := errors.New("boom")
	_, err := s.GetOrCompute("k", time.Minute, func() (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v; want boom", err)
	}
	if s.Len() != 0 {
		t.Error("failed compute must not cache anything")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := EmbeddingKey("customer")
			s.Set(key, n, time.Minute)
			s.Get(key)
			s.GetOrCompute(AnalysisKey("fp"), time.Minute, func() (any, error) {
				return n, nil
			})
		}(i)
	}
	wg.Wait()
}

func TestNamespaceKeys(t *testing.T) {
	if AnalysisKey("abc") == EmbeddingKey("abc") {
		t.Error("namespaces must not collide")
	}
}
