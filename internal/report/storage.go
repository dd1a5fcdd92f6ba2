package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fintrack/internal/log"
)

// DefaultRotationThreshold is the number of documents the storage
// directory may hold before it is wiped.
const DefaultRotationThreshold = 10

// runsDir holds one subdirectory per batch run.
const runsDir = "runs"

const fileStampLayout = "02012006-150405"

// Locker serializes rotation and clearing across processes.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Storage owns the report directory. Writers hold the read lock while
// they create a file; rotation and Clear hold the write lock.
//
// Every written document is pinned until its owner calls Release. Rotation
// and Clear never remove a pinned document, so a report being served or
// mailed outlives a concurrent wipe.
//
// Rotation is coarse: once more than threshold documents accumulate at the
// top level, all of them except the pinned ones are removed. It is not an
// LRU. Batch runs write below runs/<name> through Run, which rotation
// never touches, so a server and a worker sharing the volume cannot wipe
// each other's batch.
type Storage struct {
	dir string
	*state
}

type state struct {
	root      string
	threshold int
	locker    Locker
	logger    *log.Logger

	mu sync.RWMutex

	pinMu sync.Mutex
	pins  map[string]int
}

type StorageOption func(*state)

// WithLocker adds a cross-process lock around rotation and Clear.
func WithLocker(l Locker) StorageOption {
	return func(s *state) { s.locker = l }
}

func WithStorageLogger(l *log.Logger) StorageOption {
	return func(s *state) { s.logger = l }
}

func NewStorage(dir string, threshold int, opts ...StorageOption) *Storage {
	if threshold <= 0 {
		threshold = DefaultRotationThreshold
	}
	st := &state{root: dir, threshold: threshold, logger: log.Default(), pins: make(map[string]int)}
	for _, o := range opts {
		o(st)
	}
	st.logger = st.logger.WithComponent(log.ComponentStorage)
	return &Storage{dir: dir, state: st}
}

// Dir returns the directory documents are written to.
func (s *Storage) Dir() string {
	return s.dir
}

// Run returns a view of the storage that writes below runs/<name>. It
// shares pins and locks with s.
func (s *Storage) Run(name string) *Storage {
	return &Storage{dir: filepath.Join(s.root, runsDir, name), state: s.state}
}

// Count returns the number of documents at the top of the storage root.
func (s *Storage) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count()
}

func (s *state) count() (int, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n, nil
}

// Write creates <userID>-<ddmmyyyy-hhmmss><ext> and fills it with write.
// An existing file is never overwritten; a numeric suffix is added
// instead. A failed write leaves no file behind. The returned path is
// pinned until Release.
func (s *Storage) Write(ctx context.Context, userID string, at time.Time, ext string, write func(io.Writer) error) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}
	f, path, err := s.create(userID, at, ext)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	s.pin(path)
	return path, nil
}

func (s *Storage) create(userID string, at time.Time, ext string) (*os.File, string, error) {
	base := fmt.Sprintf("%s-%s", userID, at.Format(fileStampLayout))
	for i := 0; i < 1000; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", base, i, ext)
		}
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("no free file name for %s", base)
}

func (s *state) pin(path string) {
	s.pinMu.Lock()
	s.pins[path]++
	s.pinMu.Unlock()
}

// Release unpins a document returned by Write. Releasing an unknown path
// is a no-op.
func (s *Storage) Release(path string) {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()
	if n := s.pins[path]; n > 1 {
		s.pins[path] = n - 1
	} else {
		delete(s.pins, path)
	}
}

func (s *state) pinned(path string) bool {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()
	if s.pins[path] > 0 {
		return true
	}
	prefix := path + string(filepath.Separator)
	for p := range s.pins {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Rotate removes the unpinned top-level documents once more than the
// threshold have accumulated. Batch run directories are left alone.
func (s *Storage) Rotate(ctx context.Context) error {
	s.mu.RLock()
	n, err := s.count()
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if n <= s.threshold {
		return nil
	}

	unlock, err := s.lockAll(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	// Recheck: another writer may have rotated while we waited.
	n, err = s.count()
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if n <= s.threshold {
		return nil
	}
	removed, kept, err := s.sweep(false)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Storage rotated",
		log.FieldOperation, log.OpRotate,
		"removed", removed,
		"kept", kept,
		"threshold", s.threshold)
	return nil
}

// Clear removes every stored document and run directory that is not
// pinned.
func (s *Storage) Clear(ctx context.Context) error {
	unlock, err := s.lockAll(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	removed, kept, err := s.sweep(true)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Storage cleared",
		log.FieldOperation, log.OpClear,
		"removed", removed,
		"kept", kept)
	return nil
}

// Remove deletes the directory of a run view once its documents are no
// longer needed. Pinned documents keep the directory alive.
func (s *Storage) Remove(ctx context.Context) error {
	if s.dir == s.root {
		return errors.New("remove: not a run directory")
	}
	unlock, err := s.lockAll(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if s.pinned(s.dir) {
		return nil
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove run dir: %w", err)
	}
	return nil
}

// lockAll takes the distributed lock, if any, then the local write lock.
func (s *state) lockAll(ctx context.Context) (func(), error) {
	release := func() {}
	if s.locker != nil {
		u, err := s.locker.Lock(ctx)
		if err != nil {
			return nil, fmt.Errorf("lock storage: %w", err)
		}
		release = u
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		release()
	}, nil
}

// sweep removes unpinned top-level documents, and run directories too when
// all is set. It must run under the write lock.
func (s *state) sweep(all bool) (removed, kept int, err error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, 0, os.MkdirAll(s.root, 0o755)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read storage dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && !all {
			continue
		}
		path := filepath.Join(s.root, e.Name())
		if e.IsDir() && e.Name() == runsDir {
			r, k, err := s.sweepRuns(path)
			removed += r
			kept += k
			if err != nil {
				return removed, kept, err
			}
			continue
		}
		if s.pinned(path) {
			kept++
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, kept, fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
	}
	return removed, kept, nil
}

func (s *state) sweepRuns(dir string) (removed, kept int, err error) {
	runs, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read runs dir: %w", err)
	}
	for _, r := range runs {
		path := filepath.Join(dir, r.Name())
		if s.pinned(path) {
			kept++
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, kept, fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
	}
	return removed, kept, nil
}
