package kv

import (
	"sync"
	"testing"
)

func TestMemory_GetSetDelete(t *testing.T) {
	s := NewMemory[int]()
	if _, ok := s.Get("a"); ok {
		t.Fatalf("empty store must miss")
	}
	s.Set("a", 1)
	s.Set("b", 2)
	if v, ok := s.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d,%v", v, ok)
	}
	s.Set("a", 3)
	if v, _ := s.Get("a"); v != 3 {
		t.Fatalf("overwrite failed, got %d", v)
	}
	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Fatalf("deleted key still present")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", s.Len())
	}
}

func TestMemory_RangeAllowsMutation(t *testing.T) {
	s := NewMemory[string]()
	s.Set("x", "1")
	s.Set("y", "2")
	s.Set("z", "3")

	seen := 0
	s.Range(func(k, _ string) bool {
		seen++
		s.Delete(k) // must not deadlock
		return true
	})
	if seen != 3 || s.Len() != 0 {
		t.Fatalf("seen=%d len=%d", seen, s.Len())
	}

	s.Set("a", "1")
	s.Set("b", "2")
	calls := 0
	s.Range(func(string, string) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Fatalf("Range should stop after fn returns false, calls=%d", calls)
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	s := NewMemory[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set("k", i)
			_, _ = s.Get("k")
		}(i)
	}
	wg.Wait()
	if _, ok := s.Get("k"); !ok {
		t.Fatalf("expected key after concurrent writes")
	}
}
