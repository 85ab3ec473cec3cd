package filedex

import "testing"

func TestStoreReplaceFileThenQuery(t *testing.T) {
	s := NewPositionalStore()
	s.ReplaceFile("a.txt", map[Token]PositionList{"quick": {0}, "fox": {2}}, nil)

	got := s.Query("quick")
	if _, ok := got["a.txt"]; !ok || len(got) != 1 {
		t.Fatalf("Query(quick) = %v, want {a.txt}", got)
	}
	if got := s.Query("missing"); len(got) != 0 {
		t.Fatalf("Query(missing) = %v, want empty", got)
	}
}

func TestStoreReplaceFileDropsStaleTokens(t *testing.T) {
	s := NewPositionalStore()
	s.ReplaceFile("a.txt", map[Token]PositionList{"old": {0}, "kept": {1}}, nil)
	old, ok := s.TokensOf("a.txt")
	if !ok {
		t.Fatalf("TokensOf(a.txt) ok = false, want true")
	}

	s.ReplaceFile("a.txt", map[Token]PositionList{"kept": {0}, "new": {1}}, old)

	if got := s.Query("old"); len(got) != 0 {
		t.Errorf("Query(old) = %v, want empty after reindex dropped it", got)
	}
	if got := s.Query("kept"); len(got) != 1 {
		t.Errorf("Query(kept) = %v, want {a.txt}", got)
	}
	if got := s.Query("new"); len(got) != 1 {
		t.Errorf("Query(new) = %v, want {a.txt}", got)
	}
}

func TestStoreRemoveFile(t *testing.T) {
	s := NewPositionalStore()
	s.ReplaceFile("a.txt", map[Token]PositionList{"quick": {0}}, nil)

	removed := s.RemoveFile("a.txt")
	if _, ok := removed["quick"]; !ok || len(removed) != 1 {
		t.Fatalf("RemoveFile returned %v, want {quick}", removed)
	}
	if got := s.Query("quick"); len(got) != 0 {
		t.Errorf("Query(quick) after remove = %v, want empty", got)
	}
	if _, ok := s.TokensOf("a.txt"); ok {
		t.Errorf("TokensOf(a.txt) after remove ok = true, want false")
	}
}

func TestStoreRemoveFileAbsentIsNoop(t *testing.T) {
	s := NewPositionalStore()
	removed := s.RemoveFile("never-indexed.txt")
	if len(removed) != 0 {
		t.Errorf("RemoveFile(absent) = %v, want empty", removed)
	}
}

func TestStoreReplaceFileEmptyPositionsActsLikeRemove(t *testing.T) {
	s := NewPositionalStore()
	s.ReplaceFile("a.txt", map[Token]PositionList{"quick": {0}}, nil)
	s.ReplaceFile("a.txt", map[Token]PositionList{}, nil)

	if _, ok := s.TokensOf("a.txt"); ok {
		t.Errorf("TokensOf(a.txt) after empty replace ok = true, want false")
	}
	if got := s.Query("quick"); len(got) != 0 {
		t.Errorf("Query(quick) = %v, want empty", got)
	}
}

func TestStoreDuplicateTokenOccurrencesCollapseToOneFileButManyPositions(t *testing.T) {
	s := NewPositionalStore()
	s.ReplaceFile("echoes.txt", map[Token]PositionList{"echo": {0, 1, 2, 3, 4}}, nil)

	files := s.Query("echo")
	if len(files) != 1 {
		t.Fatalf("Query(echo) = %v, want exactly one file", files)
	}

	positions := s.DumpPositions()["echo"]["echoes.txt"]
	if len(positions) != 5 {
		t.Fatalf("positions for echo in echoes.txt = %v, want 5 strictly increasing positions", positions)
	}
	for i := 1; i < len(positions); i++ {
		if positions[i] <= positions[i-1] {
			t.Fatalf("positions %v are not strictly increasing", positions)
		}
	}
}

func TestStoreQueryPhraseSingleTokenMatchesQuery(t *testing.T) {
	s := NewPositionalStore()
	s.ReplaceFile("a.txt", map[Token]PositionList{"quick": {0}}, nil)

	single := s.Query("quick")
	phrase := s.QueryPhrase([]Token{"quick"})
	if len(single) != len(phrase) {
		t.Fatalf("queryPhrase([t]) = %v, query(t) = %v, want equal", phrase, single)
	}
}

func TestStoreQueryPhraseEmptyIsEmpty(t *testing.T) {
	s := NewPositionalStore()
	s.ReplaceFile("a.txt", map[Token]PositionList{"quick": {0}}, nil)
	if got := s.QueryPhrase(nil); len(got) != 0 {
		t.Errorf("QueryPhrase(nil) = %v, want empty", got)
	}
}

func TestStoreQueryPhraseRequiresConsecutivePositions(t *testing.T) {
	s := NewPositionalStore()
	// "quick brown fox" at 0,1,2 in file a; "quick" and "fox" present but
	// not consecutive (brown missing/out of place) in file b.
	s.ReplaceFile("a.txt", map[Token]PositionList{"quick": {0}, "brown": {1}, "fox": {2}}, nil)
	s.ReplaceFile("b.txt", map[Token]PositionList{"quick": {0}, "fox": {5}}, nil)

	got := s.QueryPhrase([]Token{"quick", "brown", "fox"})
	if _, ok := got["a.txt"]; !ok || len(got) != 1 {
		t.Fatalf("QueryPhrase(quick brown fox) = %v, want {a.txt}", got)
	}
}

func TestStoreQueryPhraseDoesNotMatchReorderedTokens(t *testing.T) {
	s := NewPositionalStore()
	s.ReplaceFile("a.txt", map[Token]PositionList{"brown": {0}, "quick": {1}, "fox": {2}}, nil)

	got := s.QueryPhrase([]Token{"quick", "brown", "fox"})
	if len(got) != 0 {
		t.Errorf("QueryPhrase on reordered tokens = %v, want empty", got)
	}
}

func TestStoreQueryPhraseMatchesAcrossChunkBoundaryPositions(t *testing.T) {
	s := NewPositionalStore()
	// simulate a phrase whose tokens were assigned positions spanning two
	// separate ProcessText calls, as long as positions stayed consecutive.
	s.ReplaceFile("a.txt", map[Token]PositionList{"line": {40}, "two": {41}}, nil)

	got := s.QueryPhrase([]Token{"line", "two"})
	if _, ok := got["a.txt"]; !ok {
		t.Fatalf("QueryPhrase(line two) = %v, want {a.txt}", got)
	}
}

func TestStoreClear(t *testing.T) {
	s := NewPositionalStore()
	s.ReplaceFile("a.txt", map[Token]PositionList{"quick": {0}}, nil)
	s.Clear()

	if got := s.Query("quick"); len(got) != 0 {
		t.Errorf("Query(quick) after Clear = %v, want empty", got)
	}
	if s.Count() != 0 {
		t.Errorf("Count() after Clear = %d, want 0", s.Count())
	}
}

// Regression: Query must not report a file as present for a token just
// because a stale bitmap entry still lists it — the file's current record
// is the authority, never a mix of two generations (I4).
func TestStoreQueryCrossChecksRecordAgainstStaleBitmap(t *testing.T) {
	s := NewPositionalStore()
	s.ReplaceFile("a.txt", map[Token]PositionList{"stale": {0}}, nil)

	// Simulate the bitmap lagging behind a completed reindex that dropped
	// "stale": swap the record out from under the bitmap without running
	// ReplaceFile's bitmap-sync step, so the bitmap alone would say present.
	s.fileShardFor("a.txt").records["a.txt"] = &fileRecord{tokens: map[Token]*positionSkipList{}}

	if got := s.Query("stale"); len(got) != 0 {
		t.Fatalf("Query(stale) = %v, want empty once the record no longer has it", got)
	}

	// And the reverse: bitmap not yet updated to add a brand-new token, but
	// the record already reflects it — Query must not invent presence for
	// a token the bitmap has no entry for at all, either.
	s.fileShardFor("a.txt").records["a.txt"] = &fileRecord{tokens: map[Token]*positionSkipList{
		"fresh": buildSkipList(PositionList{0}),
	}}
	if got := s.Query("fresh"); len(got) != 0 {
		t.Fatalf("Query(fresh) = %v, want empty: bitmap was never updated for fresh", got)
	}
}

func TestStoreDumpReflectsAllTokens(t *testing.T) {
	s := NewPositionalStore()
	s.ReplaceFile("a.txt", map[Token]PositionList{"quick": {0}, "fox": {1}}, nil)
	s.ReplaceFile("b.txt", map[Token]PositionList{"quick": {0}}, nil)

	dump := s.Dump()
	if len(dump["quick"]) != 2 {
		t.Errorf("dump[quick] = %v, want 2 files", dump["quick"])
	}
	if len(dump["fox"]) != 1 {
		t.Errorf("dump[fox] = %v, want 1 file", dump["fox"])
	}
}
