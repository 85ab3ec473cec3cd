package filedex

import "testing"

func TestPositionSkipListInsertAndContains(t *testing.T) {
	sl := newPositionSkipList()
	for _, p := range []Position{5, 1, 3, 9, 2} {
		sl.insert(p)
	}
	for _, p := range []Position{5, 1, 3, 9, 2} {
		if !sl.contains(p) {
			t.Errorf("contains(%d) = false, want true", p)
		}
	}
	if sl.contains(7) {
		t.Errorf("contains(7) = true, want false")
	}
}

func TestPositionSkipListInsertIsIdempotent(t *testing.T) {
	sl := newPositionSkipList()
	sl.insert(4)
	sl.insert(4)
	sl.insert(4)
	if got := sl.toSlice(); len(got) != 1 {
		t.Fatalf("toSlice() = %v, want single element", got)
	}
}

func TestPositionSkipListToSliceIsSorted(t *testing.T) {
	sl := buildSkipList(PositionList{9, 1, 5, 3, 7})
	got := sl.toSlice()
	want := PositionList{1, 3, 5, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("toSlice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("toSlice() = %v, want %v", got, want)
		}
	}
}

func TestPositionSkipListFirstAndNext(t *testing.T) {
	sl := buildSkipList(PositionList{10, 20, 30})

	if got := sl.first(); got != 10 {
		t.Errorf("first() = %d, want 10", got)
	}
	if got := sl.next(bofPosition); got != 10 {
		t.Errorf("next(bof) = %d, want 10", got)
	}
	if got := sl.next(10); got != 20 {
		t.Errorf("next(10) = %d, want 20", got)
	}
	if got := sl.next(15); got != 20 {
		t.Errorf("next(15) = %d, want 20 (next stored position strictly greater)", got)
	}
	if got := sl.next(30); got != eofPosition {
		t.Errorf("next(30) = %d, want eofPosition", got)
	}
}

func TestPositionSkipListEmpty(t *testing.T) {
	sl := newPositionSkipList()
	if got := sl.first(); got != eofPosition {
		t.Errorf("first() on empty = %d, want eofPosition", got)
	}
	if sl.contains(0) {
		t.Errorf("contains(0) on empty = true, want false")
	}
	if got := sl.toSlice(); len(got) != 0 {
		t.Errorf("toSlice() on empty = %v, want empty", got)
	}
}
