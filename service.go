package filedex

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Stats is a point-in-time snapshot of service activity, exposed for
// diagnostics and tests.
type Stats struct {
	IndexedFiles int
	InFlight     int
	PendingRerun int
	Watching     bool
}

// Option configures a FileIndexService.
type Option func(*serviceConfig)

type serviceConfig struct {
	tokenizer Tokenizer
	processor FileProcessor
	store     *PositionalStore
	walker    PathWalker
	watcher   FileSystemWatcher
	workers   int
	chunkSize int
	logger    zerolog.Logger
	ignore    []string
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		tokenizer: DefaultTokenizer{},
		logger:    newNopLogger(),
	}
}

// WithTokenizer overrides the default literal-match tokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(c *serviceConfig) { c.tokenizer = t }
}

// WithFileProcessor overrides the default chunked file processor.
func WithFileProcessor(p FileProcessor) Option {
	return func(c *serviceConfig) { c.processor = p }
}

// WithIndexStore overrides the default PositionalStore (mainly for tests
// that want to inspect it directly before wiring it into a service).
func WithIndexStore(s *PositionalStore) Option {
	return func(c *serviceConfig) { c.store = s }
}

// WithPathWalker overrides the default directory walker.
func WithPathWalker(w PathWalker) Option {
	return func(c *serviceConfig) { c.walker = w }
}

// WithFileSystemWatcher overrides the default fsnotify-backed watcher.
func WithFileSystemWatcher(w FileSystemWatcher) Option {
	return func(c *serviceConfig) { c.watcher = w }
}

// WithWorkerCount sets the scheduler's worker concurrency.
func WithWorkerCount(n int) Option {
	return func(c *serviceConfig) { c.workers = n }
}

// WithChunkSize sets the default file processor's read chunk size in
// bytes. Ignored if WithFileProcessor is also used.
func WithChunkSize(n int) Option {
	return func(c *serviceConfig) { c.chunkSize = n }
}

// WithLogger sets the structured logger used by the scheduler and
// watcher. Defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

// WithServiceIgnoreGlobs sets doublestar glob patterns excluded from both
// the initial directory walk and the filesystem watcher.
func WithServiceIgnoreGlobs(globs ...string) Option {
	return func(c *serviceConfig) { c.ignore = append([]string(nil), globs...) }
}

// FileIndexService wires a Tokenizer, a FileProcessor, a PositionalStore,
// a Scheduler, a PathWalker, and a FileSystemWatcher into the single
// library surface described in spec §6: Index seeds the store from the
// filesystem, StartWatching keeps it current, Query/QueryPhrase answer
// searches once pending work settles, and Close shuts everything down.
//
// Grounded on the teacher's package-level API shape (a handful of
// exported entry points sharing one struct) and imicola-notebit's
// NewService(...)/NewPipeline(...) constructor-with-defaults idiom.
type FileIndexService struct {
	mu     sync.Mutex
	closed bool

	tokenizer Tokenizer
	processor FileProcessor
	store     *PositionalStore
	walker    PathWalker
	watcher   FileSystemWatcher
	scheduler *Scheduler
	logger    zerolog.Logger
}

// NewFileIndexService constructs a service with its default components,
// each overridable via Option.
func NewFileIndexService(opts ...Option) *FileIndexService {
	cfg := defaultServiceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.store == nil {
		cfg.store = NewPositionalStore()
	}
	if cfg.processor == nil {
		cfg.processor = NewDefaultFileProcessor(cfg.tokenizer, cfg.chunkSize)
	}
	if cfg.walker == nil {
		cfg.walker = DefaultPathWalker{IgnoreGlobs: cfg.ignore}
	}
	if cfg.watcher == nil {
		cfg.watcher = NewFsWatcher(WithIgnoreGlobs(cfg.ignore...), WithWatcherLogger(cfg.logger))
	}

	return &FileIndexService{
		tokenizer: cfg.tokenizer,
		processor: cfg.processor,
		store:     cfg.store,
		walker:    cfg.walker,
		watcher:   cfg.watcher,
		scheduler: NewScheduler(cfg.workers, cfg.logger),
		logger:    cfg.logger,
	}
}

// Index walks each root and schedules every regular file found for
// indexing. It returns once every file has been submitted to the
// scheduler, not once indexing has finished — use CompletionHandle or
// Query/QueryPhrase (which wait internally) to observe completion.
func (s *FileIndexService) Index(roots []FilePath) error {
	for _, root := range roots {
		files, err := s.walker.Walk(root)
		if err != nil {
			return err
		}
		for _, f := range files {
			s.scheduleFile(f)
		}
	}
	return nil
}

// StartWatching begins watching roots for filesystem changes, scheduling
// created/modified files for (re)indexing and removing deleted files from
// the store immediately (spec §4.3: delete bypasses the scheduler
// entirely).
func (s *FileIndexService) StartWatching(roots []FilePath) error {
	return s.watcher.StartWatching(roots, s.handleEvent)
}

// StopWatching stops the filesystem watcher; indexed state is unaffected.
func (s *FileIndexService) StopWatching() error {
	return s.watcher.StopWatching()
}

func (s *FileIndexService) handleEvent(ev FileEvent) {
	switch ev.Kind {
	case Deleted:
		s.store.RemoveFile(ev.Path)
	case Created:
		if info, err := os.Stat(string(ev.Path)); err == nil && info.IsDir() {
			files, werr := s.walker.Walk(ev.Path)
			if werr == nil {
				for _, f := range files {
					s.scheduleFile(f)
				}
			}
			return
		}
		s.scheduleFile(ev.Path)
	case Modified:
		s.scheduleFile(ev.Path)
	}
}

func (s *FileIndexService) scheduleFile(p FilePath) {
	apply := func(ctx context.Context, p FilePath) error {
		if !s.processor.CanProcess(p) {
			s.store.RemoveFile(p)
			return nil
		}
		oldTokens, _ := s.store.TokensOf(p)
		data, err := s.processor.ProcessFile(ctx, p)
		if err != nil {
			s.store.RemoveFile(p)
			return err
		}
		if len(data) == 0 {
			s.store.RemoveFile(p)
			return nil
		}
		s.store.ReplaceFile(p, data, oldTokens)
		return nil
	}
	s.scheduler.Schedule(p, s.processor, apply)
}

// CompletionHandle returns a Future that resolves once every file
// currently scheduled — and any rerun chains it spawned — has finished.
func (s *FileIndexService) CompletionHandle() *Future[struct{}] {
	return s.scheduler.CompletionHandle()
}

// Query waits for outstanding indexing work to settle, then returns the
// set of files containing token, normalized as a single token (not
// split into a phrase).
func (s *FileIndexService) Query(ctx context.Context, token string) *Future[FileSet] {
	if strings.TrimSpace(token) == "" {
		return completedFuture(FileSet{})
	}
	normalized := s.tokenizer.NormalizeSingleToken(token)
	return AndThen(ctx, s.scheduler.CompletionHandle(), func(struct{}) (FileSet, error) {
		return s.store.Query(normalized), nil
	})
}

// QueryPhrase waits for outstanding indexing work to settle, then returns
// the set of files in which text's tokens (split and normalized the same
// way indexed files are) appear at consecutive positions.
func (s *FileIndexService) QueryPhrase(ctx context.Context, text string) *Future[FileSet] {
	tokens := s.tokenizer.Tokens(text)
	return AndThen(ctx, s.scheduler.CompletionHandle(), func(struct{}) (FileSet, error) {
		return s.store.QueryPhrase(tokens), nil
	})
}

// QueryPhraseTokens is QueryPhrase for callers that have already split
// their query into individual words; each is normalized independently via
// NormalizeSingleToken rather than re-tokenized as running text.
func (s *FileIndexService) QueryPhraseTokens(ctx context.Context, words []string) *Future[FileSet] {
	tokens := make([]Token, len(words))
	for i, w := range words {
		tokens[i] = s.tokenizer.NormalizeSingleToken(w)
	}
	return AndThen(ctx, s.scheduler.CompletionHandle(), func(struct{}) (FileSet, error) {
		return s.store.QueryPhrase(tokens), nil
	})
}

// Dump returns a non-blocking snapshot of the index's current state,
// without waiting for outstanding indexing work to settle.
func (s *FileIndexService) Dump() map[Token]FileSet {
	return s.store.Dump()
}

// Stats reports a point-in-time snapshot of service activity.
func (s *FileIndexService) Stats() Stats {
	inFlight, pending := s.scheduler.Stats()
	return Stats{
		IndexedFiles: s.store.Count(),
		InFlight:     inFlight,
		PendingRerun: pending,
		Watching:     s.watcher.IsWatching(),
	}
}

// Close stops watching, stops accepting new indexing work, waits for
// in-flight work to wind down, and is idempotent.
func (s *FileIndexService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var watchErr error
	if s.watcher.IsWatching() {
		watchErr = s.watcher.Close()
	}
	s.scheduler.Close()
	return watchErr
}
