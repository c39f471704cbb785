// Package loader scans a project for step declarations and keeps a registry
// in sync with the source files.
package loader

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/stepguide/internal/discover"
	"github.com/phobologic/stepguide/internal/lang"
	"github.com/phobologic/stepguide/internal/model"
	"github.com/phobologic/stepguide/internal/parse"
	"github.com/phobologic/stepguide/internal/registry"
)

const defaultCacheSize = 4096

// FileSteps holds the steps declared in one file.
type FileSteps struct {
	File    discover.FileEntry
	Methods []model.Method
}

type cacheEntry struct {
	hash    [sha256.Size]byte
	methods []model.Method
}

// Loader extracts step descriptors from the source files under a root.
// Parsed files are cached by absolute path and reused while their content
// hash is unchanged.
type Loader struct {
	root      string
	discovery discover.Options
	workers   int
	cacheSize int
	cache     *lru.Cache[string, cacheEntry]
	logger    *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithWorkers sets the number of parsing goroutines. Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(l *Loader) { l.workers = n }
}

// WithCacheSize sets the number of parsed files kept in memory.
func WithCacheSize(n int) Option {
	return func(l *Loader) { l.cacheSize = n }
}

// WithDiscovery sets the file discovery options.
func WithDiscovery(opts discover.Options) Option {
	return func(l *Loader) { l.discovery = opts }
}

// WithLogger sets the logger for per-file warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New returns a Loader for the project at root.
func New(root string, opts ...Option) (*Loader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolving project root")
	}

	l := &Loader{
		root:      abs,
		cacheSize: defaultCacheSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.cache, err = lru.New[string, cacheEntry](l.cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "creating parse cache")
	}
	return l, nil
}

// Root returns the absolute project root.
func (l *Loader) Root() string {
	return l.root
}

// Scan discovers and parses every source file under the root. Files that
// cannot be read are logged and skipped. Results follow discovery order.
func (l *Loader) Scan(ctx context.Context) ([]FileSteps, error) {
	opts := l.discovery
	if opts.Skipped == nil {
		opts.Skipped = func(e discover.FileEntry) {
			l.logger.Warn("skipping large file", "path", e.Path, "size", e.Size, "limit", opts.MaxFileSize)
		}
	}

	files, err := discover.Files(l.root, opts)
	if err != nil {
		return nil, errors.Wrap(err, "discovering files")
	}
	if len(files) == 0 {
		return nil, nil
	}
	return l.parseConcurrent(ctx, files)
}

// Load scans the project and registers every file's steps in reg. It
// returns the number of descriptors registered.
func (l *Loader) Load(ctx context.Context, reg *registry.Registry) (int, error) {
	results, err := l.Scan(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, r := range results {
		reg.ReplaceFile(r.File.Abs, r.Methods)
		n += len(r.Methods)
	}
	l.logger.Info("loaded steps", "root", l.root, "files", len(results), "steps", n)
	return n, nil
}

// ScanFile parses a single file.
func (l *Loader) ScanFile(path string) ([]model.Method, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", path)
	}
	language := lang.ForPath(abs)
	if language == nil {
		return nil, errors.Errorf("%s: unsupported file type", path)
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	parser := language.NewParser()
	defer parser.Close()
	return l.extract(language, parser, source, abs)
}

// Reload re-reads path and swaps its entries in reg. A file that no longer
// exists has its entries removed; unsupported files are ignored.
func (l *Loader) Reload(path string, reg *registry.Registry) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolving %s", path)
	}
	if lang.ForPath(abs) == nil {
		return nil
	}

	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		l.Forget(abs)
		reg.RemoveSteps(abs)
		l.logger.Debug("removed steps", "path", abs)
		return nil
	}

	methods, err := l.ScanFile(abs)
	if err != nil {
		return err
	}
	reg.ReplaceFile(abs, methods)
	l.logger.Debug("reloaded steps", "path", abs, "steps", len(methods))
	return nil
}

// Forget drops the cached parse of path.
func (l *Loader) Forget(path string) {
	l.cache.Remove(registry.NormalizePath(path))
}

func (l *Loader) extract(language *lang.Language, parser *sitter.Parser, source []byte, abs string) ([]model.Method, error) {
	key := registry.NormalizePath(abs)
	hash := sha256.Sum256(source)
	if e, ok := l.cache.Get(key); ok && e.hash == hash {
		return e.methods, nil
	}

	methods, err := parse.ExtractSteps(language, parser, source, l.root, abs)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, cacheEntry{hash: hash, methods: methods})
	return methods, nil
}

func (l *Loader) parseConcurrent(ctx context.Context, files []discover.FileEntry) ([]FileSteps, error) {
	type result struct {
		index   int
		methods []model.Method
	}

	numWorkers := l.workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own parsers
			parsers := make(map[string]*sitter.Parser)
			defer func() {
				for _, p := range parsers {
					p.Close()
				}
			}()

			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				f := files[idx]
				language := lang.Languages[f.Language]
				parser, ok := parsers[f.Language]
				if !ok {
					parser = language.NewParser()
					parsers[f.Language] = parser
				}

				source, err := os.ReadFile(f.Abs)
				if err != nil {
					l.logger.Warn("failed to read file", "path", f.Path, "error", err)
					continue
				}
				methods, err := l.extract(language, parser, source, f.Abs)
				if err != nil {
					l.logger.Warn("failed to parse file", "path", f.Path, "error", err)
					continue
				}
				results <- result{index: idx, methods: methods}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	indexed := make([][]model.Method, len(files))
	valid := make([]bool, len(files))
	for r := range results {
		indexed[r.index] = r.methods
		valid[r.index] = true
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []FileSteps
	for i, ok := range valid {
		if ok {
			out = append(out, FileSteps{File: files[i], Methods: indexed[i]})
		}
	}
	return out, nil
}
