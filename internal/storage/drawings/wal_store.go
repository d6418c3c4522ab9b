// Package drawings persists chart drawings per (symbol, timeframe) series.
package drawings

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

const (
	defaultDrawingsDir   = "./wal/drawings"
	drawingsSegmentLimit = 500
	drawingsMaxSegments  = 50
	drawingsKeyPrefix    = "drawings_"
)

type record struct {
	index uint64
	lines []domain.DrawingLine
}

// WALStore appends the full line set of a series on every save; the latest record per series wins.
// gowal drops the oldest segments, so a set that falls too far behind the head of the log is
// written again.
type WALStore struct {
	wal *gowal.Wal
	// refreshAfter is how many entries a set may trail the head before it is rewritten;
	// it stays well inside the retained segments.
	refreshAfter uint64

	mu     sync.RWMutex
	latest map[string]record
}

// NewWALStore opens the store under dir and loads the latest line set of every series.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultDrawingsDir
	}
	return openWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "drawings_",
		SegmentThreshold: drawingsSegmentLimit,
		MaxSegments:      drawingsMaxSegments,
		IsInSyncDiskMode: true,
	})
}

func openWAL(cfg gowal.Config) (*WALStore, error) {
	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init drawings WAL")
	}

	s := &WALStore{
		wal:          wal,
		refreshAfter: uint64(cfg.SegmentThreshold) * uint64(cfg.MaxSegments) / 2,
		latest:       make(map[string]record),
	}
	current := wal.CurrentIndex()
	for idx := uint64(1); idx <= current; idx++ {
		key, payload, err := wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, drawingsKeyPrefix) {
			continue
		}
		var lines []domain.DrawingLine
		if err := json.Unmarshal(payload, &lines); err != nil {
			_ = wal.Close()
			return nil, errors.Wrapf(err, "decode drawings for %s", key)
		}
		s.latest[key] = record{index: idx, lines: lines}
	}

	if err := s.refreshStale(); err != nil {
		_ = wal.Close()
		return nil, err
	}

	return s, nil
}

func (s *WALStore) write(key string, lines []domain.DrawingLine) error {
	payload, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(err, "marshal drawings")
	}
	idx := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(idx, key, payload); err != nil {
		return errors.Wrapf(err, "write drawings for %s", key)
	}
	s.latest[key] = record{index: idx, lines: lines}
	return nil
}

// refreshStale rewrites the sets that trail the head of the log by more than refreshAfter.
// Callers hold mu or own the store exclusively.
func (s *WALStore) refreshStale() error {
	for key, r := range s.latest {
		if r.index+s.refreshAfter > s.wal.CurrentIndex() {
			continue
		}
		if err := s.write(key, r.lines); err != nil {
			return err
		}
	}
	return nil
}

func storeKey(key domain.SeriesKey) string {
	return drawingsKeyPrefix + key.String()
}

// Save records lines as the current drawing set of the series.
func (s *WALStore) Save(key domain.SeriesKey, lines []domain.DrawingLine) error {
	if s == nil || s.wal == nil {
		return errors.New("drawings store is not initialized")
	}
	if key.Symbol == "" || key.Timeframe == "" {
		return errors.Wrapf(domain.ErrInvalidArgument, "incomplete series key %+v", key)
	}

	snapshot := make([]domain.DrawingLine, len(lines))
	for i, l := range lines {
		snapshot[i] = l.Clone()
		// selection is transient UI state
		snapshot[i].IsSelected = false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(storeKey(key), snapshot); err != nil {
		return err
	}
	return s.refreshStale()
}

// Load returns the latest saved line set of the series, or nil if none was saved.
func (s *WALStore) Load(key domain.SeriesKey) ([]domain.DrawingLine, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("drawings store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.latest[storeKey(key)]
	if !ok {
		return nil, nil
	}
	out := make([]domain.DrawingLine, len(r.lines))
	for i, l := range r.lines {
		out[i] = l.Clone()
	}
	return out, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("drawings store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
