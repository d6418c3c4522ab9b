package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

func openStore(t *testing.T, dir string) *WALStore {
	t.Helper()
	s, err := NewWALStore(dir)
	require.NoError(t, err)
	return s
}

func TestPutAndGetAll(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()

	later, err := s.Put(domain.Event{Title: "FOMC", Date: time.Date(2025, 3, 19, 18, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.NotEmpty(t, later.ID)

	earlier, err := s.Put(domain.Event{ID: "cpi", Title: "CPI", Date: time.Date(2025, 3, 12, 12, 30, 0, 0, time.UTC), Color: "#ef4444"})
	require.NoError(t, err)
	assert.Equal(t, "cpi", earlier.ID)

	all, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "cpi", all[0].ID)
	assert.Equal(t, later.ID, all[1].ID)
}

func TestPutReplacesSameID(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()

	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.Put(domain.Event{ID: "a", Title: "first", Date: date})
	require.NoError(t, err)
	_, err = s.Put(domain.Event{ID: "a", Title: "second", Date: date})
	require.NoError(t, err)

	all, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "second", all[0].Title)
}

func TestPutValidates(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()

	_, err := s.Put(domain.Event{Date: time.Now()})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.Put(domain.Event{Title: "no date"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDeleteByID(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()

	_, err := s.Put(domain.Event{ID: "a", Title: "a", Date: time.Now()})
	require.NoError(t, err)

	id, err := s.DeleteByID("a")
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	id, err = s.DeleteByID("missing")
	require.NoError(t, err)
	assert.Equal(t, "missing", id)

	_, err = s.DeleteByID("")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	all, err := s.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReopenRestoresStateAndDates(t *testing.T) {
	dir := t.TempDir()
	zone := time.FixedZone("CET", 3600)
	date := time.Date(2025, 2, 28, 23, 30, 15, 123456789, zone)

	s := openStore(t, dir)
	_, err := s.Put(domain.Event{ID: "keep", Title: "keep", Date: date, Time: "23:30", Description: "d"})
	require.NoError(t, err)
	_, err = s.Put(domain.Event{ID: "drop", Title: "drop", Date: date})
	require.NoError(t, err)
	_, err = s.DeleteByID("drop")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = openStore(t, dir)
	defer s.Close()

	all, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, "keep", got.ID)
	assert.True(t, got.Date.Equal(date))
	_, offset := got.Date.Zone()
	assert.Equal(t, 3600, offset)
	assert.Equal(t, "23:30", got.Time)
	assert.Equal(t, "d", got.Description)
}

func TestEventsForMonth(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()

	for i, d := range []time.Time{
		time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	} {
		_, err := s.Put(domain.Event{ID: string(rune('a' + i)), Title: "e", Date: d})
		require.NoError(t, err)
	}

	march, err := s.EventsForMonth(2025, time.March)
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, "b", march[0].ID)
	assert.Equal(t, "c", march[1].ID)

	_, err = s.EventsForMonth(2025, 13)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRecordsCarryIndex(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()

	_, err := s.Put(domain.Event{ID: "x", Title: "x", Date: time.Now()})
	require.NoError(t, err)
	_, err = s.Put(domain.Event{ID: "y", Title: "y", Date: time.Now()})
	require.NoError(t, err)

	records := s.Records()
	require.Len(t, records, 2)
	assert.Less(t, records[0].Index, records[1].Index)
	assert.Equal(t, "x", records[0].Event.ID)
}

func TestOldEventSurvivesSegmentRotation(t *testing.T) {
	cfg := gowal.Config{
		Dir:              t.TempDir(),
		Prefix:           "events_",
		SegmentThreshold: 5,
		MaxSegments:      4,
		IsInSyncDiskMode: true,
	}
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	s, err := openWAL(cfg)
	require.NoError(t, err)
	_, err = s.Put(domain.Event{ID: "birthday", Title: "birthday", Date: date})
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, err = s.Put(domain.Event{ID: "standup", Title: "standup", Date: date.AddDate(0, 0, i)})
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s, err = openWAL(cfg)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "birthday", all[0].ID)
	assert.Equal(t, "standup", all[1].ID)
	assert.True(t, all[1].Date.Equal(date.AddDate(0, 0, 99)))
}
