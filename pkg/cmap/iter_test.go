package cmap

import (
	"fmt"
	"sort"
	"testing"
)

func TestMap_Range(t *testing.T) {
	m := New[int]()
	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	seen := 0
	m.Range(func(string, int) bool {
		seen++
		return true
	})
	if seen != 10 {
		t.Fatalf("visited %d entries, want 10", seen)
	}
}

func TestMap_RangeEarlyStop(t *testing.T) {
	m := New[int]()
	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	seen := 0
	m.Range(func(string, int) bool {
		seen++
		return seen < 3
	})
	if seen != 3 {
		t.Fatalf("visited %d entries, want 3", seen)
	}
}

func TestMap_Items(t *testing.T) {
	m := New[string]()
	m.Set("a", "1")
	m.Set("b", "2")

	items := m.Items()
	if len(items) != 2 {
		t.Fatalf("Items returned %d entries, want 2", len(items))
	}

	got := map[string]string{}
	for _, it := range items {
		got[it.Key] = it.Value
	}
	if got["a"] != "1" || got["b"] != "2" {
		t.Fatalf("Items = %v", got)
	}
}

func TestMap_Keys(t *testing.T) {
	m := New[int]()
	m.Set("b", 2)
	m.Set("a", 1)

	keys := m.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("Keys = %v, want [a b]", keys)
	}
}
