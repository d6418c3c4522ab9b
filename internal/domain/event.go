package domain

import "time"

// Event calendar entry kept by the local event store.
type Event struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Title       string    `json:"title"`
	Time        string    `json:"time,omitempty"`
	Color       string    `json:"color,omitempty"`
	Description string    `json:"description,omitempty"`
}

// EventRecord bundles an event with its WAL index.
type EventRecord struct {
	Index uint64
	Event Event
}
