package grounding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxAttempts = 3
	downloadLimit      = 4
)

type LoaderConfig struct {
	// Prefix is the object-store folder holding one sub-folder per student.
	Prefix string
	// CacheDir keeps downloaded corpora across restarts. Empty disables it.
	CacheDir    string
	RetryBase   time.Duration
	MaxAttempts int
}

// Loader materializes per-student indexes: memory first, then the local cache
// directory, then the object store. Concurrent loads of one student share a
// single fetch.
type Loader struct {
	store ObjectStore
	cfg   LoaderConfig
	log   *zap.Logger

	mu      sync.RWMutex
	indexes map[string]*Index
	group   singleflight.Group

	sleep func(ctx context.Context, d time.Duration) error
}

func NewLoader(store ObjectStore, cfg LoaderConfig, log *zap.Logger) *Loader {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		store:   store,
		cfg:     cfg,
		log:     log,
		indexes: make(map[string]*Index),
		sleep:   sleepCtx,
	}
}

func (l *Loader) studentPrefix(student string) string {
	return path.Join(l.cfg.Prefix, student) + "/"
}

// Load returns the student's index. A student with no objects under its prefix
// yields ErrGroundingUnavailable; a store that is still failing once the
// retries run out yields ErrCorpusFetch. A corpus whose files hold no chunks
// is a valid, empty index.
func (l *Loader) Load(ctx context.Context, student string) (*Index, error) {
	if student == "" || strings.Contains(student, "/") || strings.Contains(student, "..") {
		return nil, fmt.Errorf("%w: invalid student name %q", ErrGroundingUnavailable, student)
	}

	l.mu.RLock()
	ix, ok := l.indexes[student]
	l.mu.RUnlock()
	if ok {
		return ix, nil
	}

	v, err, _ := l.group.Do(student, func() (any, error) {
		l.mu.RLock()
		ix, ok := l.indexes[student]
		l.mu.RUnlock()
		if ok {
			return ix, nil
		}

		ix, err := l.materialize(ctx, student)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.indexes[student] = ix
		l.mu.Unlock()
		return ix, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// Evict drops the student's index from memory and disk so the next Load
// fetches a fresh copy.
func (l *Loader) Evict(student string) error {
	l.mu.Lock()
	delete(l.indexes, student)
	l.mu.Unlock()

	if l.cfg.CacheDir == "" || student == "" || strings.Contains(student, "..") {
		return nil
	}
	return os.RemoveAll(filepath.Join(l.cfg.CacheDir, student))
}

func (l *Loader) materialize(ctx context.Context, student string) (*Index, error) {
	if files, ok := l.readCache(student); ok {
		l.log.Info("grounding: using cached corpus", zap.String("student", student))
		return buildIndex(student, files)
	}

	var files map[string][]byte
	var lastErr error
	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		files, lastErr = l.fetch(ctx, student)
		if lastErr == nil || errors.Is(lastErr, ErrGroundingUnavailable) {
			break
		}
		l.log.Warn("grounding: fetch failed",
			zap.String("student", student),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", l.cfg.MaxAttempts),
			zap.Error(lastErr),
		)
		if attempt == l.cfg.MaxAttempts {
			break
		}
		backoff := l.cfg.RetryBase * time.Duration(1<<(attempt-1))
		if err := l.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}
	if lastErr != nil {
		if errors.Is(lastErr, ErrGroundingUnavailable) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCorpusFetch, student, lastErr)
	}

	if err := l.writeCache(student, files); err != nil {
		l.log.Warn("grounding: cache write failed", zap.String("student", student), zap.Error(err))
	}
	l.log.Info("grounding: fetched corpus", zap.String("student", student), zap.Int("files", len(files)))
	return buildIndex(student, files)
}

// fetch downloads every object under the student prefix, keyed by relative path.
func (l *Loader) fetch(ctx context.Context, student string) (map[string][]byte, error) {
	prefix := l.studentPrefix(student)
	keys, err := l.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no objects under %s", ErrGroundingUnavailable, prefix)
	}

	var mu sync.Mutex
	files := make(map[string][]byte, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadLimit)
	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		if rel == "" || strings.Contains(rel, "..") {
			l.log.Warn("grounding: skipping suspicious key", zap.String("key", key))
			continue
		}
		g.Go(func() error {
			b, err := l.store.Get(gctx, key)
			if err != nil {
				return err
			}
			mu.Lock()
			files[rel] = b
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (l *Loader) readCache(student string) (map[string][]byte, bool) {
	if l.cfg.CacheDir == "" {
		return nil, false
	}
	dir := filepath.Join(l.cfg.CacheDir, student)
	files := map[string][]byte{}
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		files[filepath.ToSlash(rel)] = b
		return nil
	})
	if err != nil || len(files) == 0 {
		return nil, false
	}
	return files, true
}

// writeCache stages into a temp dir and renames, so a crash never leaves a
// half-written corpus that readCache would trust.
func (l *Loader) writeCache(student string, files map[string][]byte) error {
	if l.cfg.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(l.cfg.CacheDir, 0o755); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(l.cfg.CacheDir, "."+student+"-")
	if err != nil {
		return err
	}
	for rel, b := range files {
		p := filepath.Join(tmp, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			_ = os.RemoveAll(tmp)
			return err
		}
		if err := os.WriteFile(p, b, 0o644); err != nil {
			_ = os.RemoveAll(tmp)
			return err
		}
	}
	final := filepath.Join(l.cfg.CacheDir, student)
	_ = os.RemoveAll(final)
	if err := os.Rename(tmp, final); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	return nil
}

func buildIndex(student string, files map[string][]byte) (*Index, error) {
	rels := make([]string, 0, len(files))
	for rel := range files {
		if strings.HasSuffix(rel, ".jsonl") {
			rels = append(rels, rel)
		}
	}
	sort.Strings(rels)

	var chunks []Chunk
	for _, rel := range rels {
		cs, err := ParseChunks(bytes.NewReader(files[rel]))
		if err != nil {
			return nil, fmt.Errorf("%w: %s/%s: %v", ErrGroundingUnavailable, student, rel, err)
		}
		chunks = append(chunks, cs...)
	}
	return NewIndex(student, chunks), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
