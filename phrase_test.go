package filedex

import "testing"

func recordFromPositions(tokens map[Token]PositionList) *fileRecord {
	rec := &fileRecord{tokens: make(map[Token]*positionSkipList, len(tokens))}
	for t, positions := range tokens {
		rec.tokens[t] = buildSkipList(positions)
	}
	return rec
}

func TestMatchesFromConsecutivePositions(t *testing.T) {
	rec := recordFromPositions(map[Token]PositionList{
		"quick": {0},
		"brown": {1},
		"fox":   {2},
	})
	if !matchesFrom(rec, []Token{"quick", "brown", "fox"}, 0) {
		t.Fatal("expected phrase match at position 0")
	}
}

func TestMatchesFromFailsOnGap(t *testing.T) {
	rec := recordFromPositions(map[Token]PositionList{
		"quick": {0},
		"fox":   {2},
	})
	if matchesFrom(rec, []Token{"quick", "brown", "fox"}, 0) {
		t.Fatal("expected no match: brown absent between quick and fox")
	}
}

func TestPhraseMatchesAtTriesEveryLeadPosition(t *testing.T) {
	rec := recordFromPositions(map[Token]PositionList{
		"the": {0, 5},
		"fox": {6},
	})
	lead := rec.tokens["the"]
	if !phraseMatchesAt(rec, []Token{"the", "fox"}, lead) {
		t.Fatal("expected a match starting from the second occurrence of 'the' at position 5")
	}
}

func TestPhraseMatchesAtNoMatch(t *testing.T) {
	rec := recordFromPositions(map[Token]PositionList{
		"the": {0},
		"fox": {9},
	})
	lead := rec.tokens["the"]
	if phraseMatchesAt(rec, []Token{"the", "fox"}, lead) {
		t.Fatal("expected no match: fox is not adjacent to the only 'the'")
	}
}
