package filedex

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/cespare/xxhash/v2"
)

// TokenSet is an owned set of Tokens, returned by operations like
// removeFile and tokensOf.
type TokenSet map[Token]struct{}

// FileSet is an owned set of FilePaths, returned by query and queryPhrase.
type FileSet map[FilePath]struct{}

// defaultShardCount bounds lock contention on the inverted index and file
// index independently of each other: two files land in the same fileShard
// only on hash collision, and two tokens land in the same tokenShard only
// on hash collision, so unrelated files (or unrelated tokens) almost never
// block one another (spec §5).
const defaultShardCount = 32

// fileRecord is the immutable per-file snapshot installed by one
// replaceFile call. Because it is never mutated after construction, every
// reader that obtains a *fileRecord sees a single, whole generation of the
// file's tokens and positions — this is what gives queryPhrase a
// per-file-consistent view across several tokens even while other files
// are concurrently reindexed (I4).
type fileRecord struct {
	tokens map[Token]*positionSkipList
}

type tokenShard struct {
	mu      sync.RWMutex
	bitmaps map[Token]*roaring.Bitmap
}

type fileShard struct {
	mu      sync.RWMutex
	records map[FilePath]*fileRecord
}

// PositionalStore is the concurrent positional inverted index described in
// spec §4.1. Point queries take candidates from a roaring bitmap of
// interned file IDs per token (fast set membership, no position data) and
// confirm each against the candidate's fileRecord; phrase
// queries fetch a candidate file's single fileRecord and walk its
// positionSkipLists directly, which sidesteps needing the inverted index
// and file index to be updated as one atomic unit (I3 guarantees they
// agree, so reading the file side for positions is equivalent to reading
// the token side).
type PositionalStore struct {
	tokenShards []*tokenShard
	fileShards  []*fileShard
	interner    *pathInterner
	shardMask   uint64
}

// NewPositionalStore creates an empty store.
func NewPositionalStore() *PositionalStore {
	s := &PositionalStore{
		tokenShards: make([]*tokenShard, defaultShardCount),
		fileShards:  make([]*fileShard, defaultShardCount),
		interner:    newPathInterner(),
		shardMask:   uint64(defaultShardCount - 1),
	}
	for i := range s.tokenShards {
		s.tokenShards[i] = &tokenShard{bitmaps: make(map[Token]*roaring.Bitmap)}
	}
	for i := range s.fileShards {
		s.fileShards[i] = &fileShard{records: make(map[FilePath]*fileRecord)}
	}
	return s
}

func (s *PositionalStore) tokenShardFor(t Token) *tokenShard {
	return s.tokenShards[xxhash.Sum64String(string(t))&s.shardMask]
}

func (s *PositionalStore) fileShardFor(p FilePath) *fileShard {
	return s.fileShards[xxhash.Sum64String(string(p))&s.shardMask]
}

func (s *PositionalStore) recordFor(p FilePath) *fileRecord {
	shard := s.fileShardFor(p)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return shard.records[p]
}

// ReplaceFile atomically replaces p's entry with newPositions. Tokens
// present in the prior entry but absent from newPositions are pruned from
// the inverted index; hintOldTokens is used as the prior token set only
// when no prior entry currently exists (spec §9, dropped-prior-state
// design note).
func (s *PositionalStore) ReplaceFile(p FilePath, newPositions map[Token]PositionList, hintOldTokens TokenSet) {
	newRecord := &fileRecord{tokens: make(map[Token]*positionSkipList, len(newPositions))}
	for t, positions := range newPositions {
		if len(positions) == 0 {
			continue // accepted but pruned — a token is never advertised with an empty posting (I1)
		}
		newRecord.tokens[t] = buildSkipList(positions)
	}

	fshard := s.fileShardFor(p)
	fshard.mu.Lock()
	oldRecord := fshard.records[p]
	if len(newRecord.tokens) == 0 {
		delete(fshard.records, p)
	} else {
		fshard.records[p] = newRecord
	}
	fshard.mu.Unlock()

	oldTokens := hintOldTokens
	if oldRecord != nil {
		oldTokens = make(TokenSet, len(oldRecord.tokens))
		for t := range oldRecord.tokens {
			oldTokens[t] = struct{}{}
		}
	}

	if len(oldTokens) == 0 && len(newRecord.tokens) == 0 {
		return
	}

	fileID := s.interner.idFor(p)
	for t := range oldTokens {
		if _, stillPresent := newRecord.tokens[t]; !stillPresent {
			s.removeFromBitmap(t, fileID)
		}
	}
	for t := range newRecord.tokens {
		if _, wasPresent := oldTokens[t]; !wasPresent {
			s.addToBitmap(t, fileID)
		}
	}
}

// RemoveFile removes p from the store entirely, returning the token set it
// was previously associated with (empty if p was absent).
func (s *PositionalStore) RemoveFile(p FilePath) TokenSet {
	fshard := s.fileShardFor(p)
	fshard.mu.Lock()
	oldRecord, existed := fshard.records[p]
	delete(fshard.records, p)
	fshard.mu.Unlock()

	if !existed {
		return TokenSet{}
	}

	fileID, hasID := s.interner.existingID(p)
	removed := make(TokenSet, len(oldRecord.tokens))
	for t := range oldRecord.tokens {
		removed[t] = struct{}{}
		if hasID {
			s.removeFromBitmap(t, fileID)
		}
	}
	return removed
}

// Query returns the set of files whose posting contains t. The bitmap only
// narrows candidates; each candidate's fileRecord — the single generation
// installed by the most recent completed ReplaceFile/RemoveFile — is the
// authority on whether t is actually present, so a reader never observes a
// file as a mix of two generations' bitmap and record state (I4).
func (s *PositionalStore) Query(t Token) FileSet {
	shard := s.tokenShardFor(t)
	shard.mu.RLock()
	bm, ok := shard.bitmaps[t]
	var ids []uint32
	if ok {
		ids = bm.ToArray()
	}
	shard.mu.RUnlock()

	out := make(FileSet, len(ids))
	for _, id := range ids {
		p, ok := s.interner.pathForID(id)
		if !ok {
			continue
		}
		record := s.recordFor(p)
		if record == nil {
			continue
		}
		if _, present := record.tokens[t]; !present {
			continue
		}
		out[p] = struct{}{}
	}
	return out
}

// QueryPhrase returns files in which tokens appear at consecutive
// positions (spec §4.1 phrase algorithm).
func (s *PositionalStore) QueryPhrase(tokens []Token) FileSet {
	switch len(tokens) {
	case 0:
		return FileSet{}
	case 1:
		return s.Query(tokens[0])
	}

	candidates := s.Query(tokens[0])
	out := make(FileSet)
	for file := range candidates {
		record := s.recordFor(file)
		if record == nil {
			continue
		}
		lead, ok := record.tokens[tokens[0]]
		if !ok {
			continue
		}
		if phraseMatchesAt(record, tokens, lead) {
			out[file] = struct{}{}
		}
	}
	return out
}

// TokensOf returns the key set of p's current entry, or (nil, false) if p
// is absent.
func (s *PositionalStore) TokensOf(p FilePath) (TokenSet, bool) {
	record := s.recordFor(p)
	if record == nil {
		return nil, false
	}
	out := make(TokenSet, len(record.tokens))
	for t := range record.tokens {
		out[t] = struct{}{}
	}
	return out, true
}

// Dump returns a file-set-per-token snapshot for inspection/testing.
func (s *PositionalStore) Dump() map[Token]FileSet {
	out := make(map[Token]FileSet)
	for _, shard := range s.tokenShards {
		shard.mu.RLock()
		for t, bm := range shard.bitmaps {
			files := make(FileSet, bm.GetCardinality())
			it := bm.Iterator()
			for it.HasNext() {
				if p, ok := s.interner.pathForID(it.Next()); ok {
					files[p] = struct{}{}
				}
			}
			out[t] = files
		}
		shard.mu.RUnlock()
	}
	return out
}

// DumpPositions is the optional positional debug hook spec §9 allows in
// addition to Dump's file-set view.
func (s *PositionalStore) DumpPositions() map[Token]map[FilePath]PositionList {
	out := make(map[Token]map[FilePath]PositionList)
	for _, shard := range s.fileShards {
		shard.mu.RLock()
		for p, rec := range shard.records {
			for t, sl := range rec.tokens {
				if out[t] == nil {
					out[t] = make(map[FilePath]PositionList)
				}
				out[t][p] = sl.toSlice()
			}
		}
		shard.mu.RUnlock()
	}
	return out
}

// Count returns the number of files currently tracked by the store.
func (s *PositionalStore) Count() int {
	total := 0
	for _, shard := range s.fileShards {
		shard.mu.RLock()
		total += len(shard.records)
		shard.mu.RUnlock()
	}
	return total
}

// Clear removes all state from the store.
func (s *PositionalStore) Clear() {
	for _, shard := range s.tokenShards {
		shard.mu.Lock()
		shard.bitmaps = make(map[Token]*roaring.Bitmap)
		shard.mu.Unlock()
	}
	for _, shard := range s.fileShards {
		shard.mu.Lock()
		shard.records = make(map[FilePath]*fileRecord)
		shard.mu.Unlock()
	}
	s.interner.reset()
}

func (s *PositionalStore) addToBitmap(t Token, fileID uint32) {
	shard := s.tokenShardFor(t)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	bm, ok := shard.bitmaps[t]
	if !ok {
		bm = roaring.NewBitmap()
		shard.bitmaps[t] = bm
	}
	bm.Add(fileID)
}

func (s *PositionalStore) removeFromBitmap(t Token, fileID uint32) {
	shard := s.tokenShardFor(t)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	bm, ok := shard.bitmaps[t]
	if !ok {
		return
	}
	bm.Remove(fileID)
	if bm.IsEmpty() {
		delete(shard.bitmaps, t)
	}
}

// pathInterner assigns stable uint32 IDs to FilePaths so they can live in
// roaring bitmaps. IDs are never reused, even after a file is removed —
// simpler than reclaiming them, and the id space only grows with the
// number of distinct paths ever seen, not with churn.
type pathInterner struct {
	mu     sync.RWMutex
	idOf   map[FilePath]uint32
	pathOf map[uint32]FilePath
	nextID uint32
}

func newPathInterner() *pathInterner {
	return &pathInterner{idOf: make(map[FilePath]uint32), pathOf: make(map[uint32]FilePath)}
}

func (pi *pathInterner) idFor(p FilePath) uint32 {
	pi.mu.RLock()
	if id, ok := pi.idOf[p]; ok {
		pi.mu.RUnlock()
		return id
	}
	pi.mu.RUnlock()

	pi.mu.Lock()
	defer pi.mu.Unlock()
	if id, ok := pi.idOf[p]; ok {
		return id
	}
	id := pi.nextID
	pi.nextID++
	pi.idOf[p] = id
	pi.pathOf[id] = p
	return id
}

func (pi *pathInterner) existingID(p FilePath) (uint32, bool) {
	pi.mu.RLock()
	defer pi.mu.RUnlock()
	id, ok := pi.idOf[p]
	return id, ok
}

func (pi *pathInterner) pathForID(id uint32) (FilePath, bool) {
	pi.mu.RLock()
	defer pi.mu.RUnlock()
	p, ok := pi.pathOf[id]
	return p, ok
}

func (pi *pathInterner) reset() {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	pi.idOf = make(map[FilePath]uint32)
	pi.pathOf = make(map[uint32]FilePath)
	pi.nextID = 0
}
