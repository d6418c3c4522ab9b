package app

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/deskfolio/internal/domain"
	"github.com/vadiminshakov/deskfolio/internal/services/marketdata"
)

// State UI-wide state shared by the dashboard components.
type State struct {
	mu        sync.RWMutex
	theme     domain.Theme
	feed      marketdata.State
	listeners map[uint64]func(domain.Theme)
	nextID    uint64
}

// NewState creates a state with the initial theme.
func NewState(theme domain.Theme) *State {
	if !theme.IsValid() {
		theme = domain.ThemeDark
	}
	return &State{
		theme:     theme,
		feed:      marketdata.StateDisconnected,
		listeners: make(map[uint64]func(domain.Theme)),
	}
}

// Theme returns the current theme.
func (s *State) Theme() domain.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme switches the theme and notifies listeners when it changed.
func (s *State) SetTheme(theme domain.Theme) error {
	if !theme.IsValid() {
		return errors.Wrapf(domain.ErrInvalidArgument, "unknown theme %q", theme)
	}

	s.mu.Lock()
	if s.theme == theme {
		s.mu.Unlock()
		return nil
	}
	s.theme = theme
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(theme)
	}
	return nil
}

// ToggleTheme flips between light and dark and returns the new theme.
func (s *State) ToggleTheme() domain.Theme {
	s.mu.Lock()
	s.theme = s.theme.Toggle()
	theme := s.theme
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(theme)
	}
	return theme
}

// OnTheme registers fn for theme changes and returns a function that removes it.
func (s *State) OnTheme(fn func(domain.Theme)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// FeedState returns the last reported price stream state.
func (s *State) FeedState() marketdata.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed
}

// SetFeedState records the price stream state.
func (s *State) SetFeedState(st marketdata.State) {
	s.mu.Lock()
	s.feed = st
	s.mu.Unlock()
}

func (s *State) snapshotListeners() []func(domain.Theme) {
	out := make([]func(domain.Theme), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

// themeObserver detaches a theme listener when the renderer is disposed.
type themeObserver struct {
	unsubscribe func()
}

func (o themeObserver) Disconnect() {
	o.unsubscribe()
}
