// Package eventstore keeps calendar events in a local write-ahead log.
package eventstore

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

const (
	defaultEventsDir  = "./wal/events"
	eventSegmentLimit = 1000
	eventMaxSegments  = 100
	putKeyPrefix      = "event_put_"
	deleteKeyPrefix   = "event_del_"
)

// storedEvent is the on-disk form; the date keeps nanosecond precision and the original offset.
type storedEvent struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	Time        string `json:"time,omitempty"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

func toStored(e domain.Event) storedEvent {
	return storedEvent{
		ID:          e.ID,
		Date:        e.Date.Format(time.RFC3339Nano),
		Title:       e.Title,
		Time:        e.Time,
		Color:       e.Color,
		Description: e.Description,
	}
}

func (s storedEvent) toDomain() (domain.Event, error) {
	date, err := time.Parse(time.RFC3339Nano, s.Date)
	if err != nil {
		return domain.Event{}, errors.Wrapf(err, "parse date of event %s", s.ID)
	}
	return domain.Event{
		ID:          s.ID,
		Date:        date,
		Title:       s.Title,
		Time:        s.Time,
		Color:       s.Color,
		Description: s.Description,
	}, nil
}

// WALStore persists events as put/delete records in a WAL and serves reads from memory.
// Live events that trail the head of the log by more than half the retained entries are
// written again, so segment rotation never drops them.
type WALStore struct {
	wal          *gowal.Wal
	refreshAfter uint64

	mu     sync.RWMutex
	events map[string]domain.EventRecord
}

// NewWALStore opens the store under dir and replays the log.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultEventsDir
	}
	return openWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "events_",
		SegmentThreshold: eventSegmentLimit,
		MaxSegments:      eventMaxSegments,
		IsInSyncDiskMode: true,
	})
}

func openWAL(cfg gowal.Config) (*WALStore, error) {
	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init events WAL")
	}

	s := &WALStore{
		wal:          wal,
		refreshAfter: uint64(cfg.SegmentThreshold) * uint64(cfg.MaxSegments) / 2,
		events:       make(map[string]domain.EventRecord),
	}
	if err := s.replay(); err != nil {
		_ = wal.Close()
		return nil, err
	}
	if err := s.refreshStale(); err != nil {
		_ = wal.Close()
		return nil, err
	}

	return s, nil
}

func (s *WALStore) writePut(e domain.Event) error {
	payload, err := json.Marshal(toStored(e))
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	idx := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(idx, putKeyPrefix+e.ID, payload); err != nil {
		return errors.Wrapf(err, "write event %s", e.ID)
	}
	s.events[e.ID] = domain.EventRecord{Index: idx, Event: e}
	return nil
}

// refreshStale must be called with mu held or before the store is shared.
func (s *WALStore) refreshStale() error {
	for _, r := range s.events {
		if r.Index+s.refreshAfter > s.wal.CurrentIndex() {
			continue
		}
		if err := s.writePut(r.Event); err != nil {
			return err
		}
	}
	return nil
}

func (s *WALStore) replay() error {
	current := s.wal.CurrentIndex()
	for idx := uint64(1); idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			// evicted segment
			continue
		}
		switch {
		case strings.HasPrefix(key, putKeyPrefix):
			var stored storedEvent
			if err := json.Unmarshal(payload, &stored); err != nil {
				return errors.Wrapf(err, "decode event at index %d", idx)
			}
			e, err := stored.toDomain()
			if err != nil {
				return err
			}
			s.events[e.ID] = domain.EventRecord{Index: idx, Event: e}
		case strings.HasPrefix(key, deleteKeyPrefix):
			delete(s.events, strings.TrimPrefix(key, deleteKeyPrefix))
		}
	}
	return nil
}

// Put creates or replaces the event with the same ID. An empty ID gets a new one.
func (s *WALStore) Put(e domain.Event) (domain.Event, error) {
	if s == nil || s.wal == nil {
		return domain.Event{}, errors.New("event store is not initialized")
	}
	if strings.TrimSpace(e.Title) == "" {
		return domain.Event{}, errors.Wrap(domain.ErrInvalidArgument, "event title is required")
	}
	if e.Date.IsZero() {
		return domain.Event{}, errors.Wrap(domain.ErrInvalidArgument, "event date is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writePut(e); err != nil {
		return domain.Event{}, err
	}
	if err := s.refreshStale(); err != nil {
		return domain.Event{}, err
	}

	return e, nil
}

// DeleteByID removes the event and returns its ID. Deleting a missing event is not an error.
func (s *WALStore) DeleteByID(id string) (string, error) {
	if s == nil || s.wal == nil {
		return "", errors.New("event store is not initialized")
	}
	if id == "" {
		return "", errors.Wrap(domain.ErrInvalidArgument, "event id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return id, nil
	}

	idx := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(idx, deleteKeyPrefix+id, []byte(id)); err != nil {
		return "", errors.Wrapf(err, "write delete of event %s", id)
	}
	delete(s.events, id)

	return id, s.refreshStale()
}

// GetAll returns every stored event ordered by date.
func (s *WALStore) GetAll() ([]domain.Event, error) {
	return s.filter(func(domain.Event) bool { return true })
}

// EventsForMonth returns the events whose date falls in the given month of the event's own zone.
func (s *WALStore) EventsForMonth(year int, month time.Month) ([]domain.Event, error) {
	if month < time.January || month > time.December {
		return nil, errors.Wrapf(domain.ErrInvalidArgument, "invalid month %d", month)
	}
	return s.filter(func(e domain.Event) bool {
		return e.Date.Year() == year && e.Date.Month() == month
	})
}

// Records returns the events with their log index, ordered by index.
func (s *WALStore) Records() []domain.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.EventRecord, 0, len(s.events))
	for _, r := range s.events {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (s *WALStore) filter(keep func(domain.Event) bool) ([]domain.Event, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("event store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Event, 0, len(s.events))
	for _, r := range s.events {
		if keep(r.Event) {
			out = append(out, r.Event)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("event store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
