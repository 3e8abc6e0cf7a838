package store

import (
	"errors"
	"reflect"
	"testing"
)

func TestChunkRange(t *testing.T) {
	var windows [][2]int
	err := ChunkRange(5, 2, func(start, end int) error {
		windows = append(windows, [2]int{start, end})
		return nil
	})
	if err != nil {
		t.Fatalf("ChunkRange() error = %v", err)
	}
	want := [][2]int{{0, 2}, {2, 4}, {4, 5}}
	if !reflect.DeepEqual(windows, want) {
		t.Fatalf("windows = %v, want %v", windows, want)
	}

	boom := errors.New("boom")
	calls := 0
	err = ChunkRange(10, 3, func(int, int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("ChunkRange() = %v after %d calls", err, calls)
	}

	if err := ChunkRange(0, 3, func(int, int) error { return boom }); err != nil {
		t.Fatalf("ChunkRange(0) = %v", err)
	}
}

func TestDedupeStrings(t *testing.T) {
	got := DedupeStrings([]string{"b@x.com", "", "null", "a@x.com", "b@x.com"}, "null")
	want := []string{"b@x.com", "a@x.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DedupeStrings() = %v, want %v", got, want)
	}
	if DedupeStrings(nil) != nil {
		t.Fatal("DedupeStrings(nil) should be nil")
	}
}
