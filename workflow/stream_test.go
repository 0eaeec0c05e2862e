package workflow

import (
	"errors"
	"iter"
	"reflect"
	"testing"
)

func seqOf(items []int, failAt int) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		for i, item := range items {
			if i == failAt {
				yield(0, errors.New("boom"))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func TestBatch(t *testing.T) {
	var got [][]int
	for batch, err := range Batch(seqOf([]int{1, 2, 3, 4, 5}, -1), 2) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, batch)
	}
	if want := [][]int{{1, 2}, {3, 4}, {5}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestBatch_StopsAtFirstError(t *testing.T) {
	var batches int
	var failed bool
	for batch, err := range Batch(seqOf([]int{1, 2, 3, 4, 5}, 3), 2) {
		if err != nil {
			failed = true
			break
		}
		batches++
		if len(batch) != 2 {
			t.Fatalf("expected full batches before the error")
		}
	}
	if !failed || batches != 1 {
		t.Fatalf("expected one batch then an error, got batches=%d failed=%v", batches, failed)
	}
}

func TestCollect(t *testing.T) {
	items, err := Collect(seqOf([]int{1, 2}, -1))
	if err != nil || !reflect.DeepEqual(items, []int{1, 2}) {
		t.Fatalf("got %v %v", items, err)
	}
	if _, err := Collect(seqOf([]int{1, 2}, 1)); err == nil {
		t.Fatalf("expected the stream error")
	}
}

func TestProgressFunc_NilIsSafe(t *testing.T) {
	var p ProgressFunc
	p.report("phase", 1, 2)
}
