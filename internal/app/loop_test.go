package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/deskfolio/internal/domain"
	"github.com/vadiminshakov/deskfolio/internal/services/marketdata"
)

func startLoop(t *testing.T, size int) (*Loop, context.CancelFunc) {
	t.Helper()
	l := NewLoop(size)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return l, cancel
}

func TestLoop_RunsInPostingOrder(t *testing.T) {
	l, _ := startLoop(t, 4)

	var got []int
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Post(context.Background(), func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() error { return nil }))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_DoReturnsError(t *testing.T) {
	l, _ := startLoop(t, 1)
	boom := errors.New("boom")

	err := l.Do(context.Background(), func() error { return boom })

	assert.ErrorIs(t, err, boom)
}

func TestLoop_PostAfterStop(t *testing.T) {
	l := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Run(ctx))

	assert.ErrorIs(t, l.Post(context.Background(), func() {}), ErrLoopStopped)
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return nil }), ErrLoopStopped)
}

func TestLoop_PostBlocksWhenFull(t *testing.T) {
	l := NewLoop(1)
	require.NoError(t, l.Post(context.Background(), func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, l.Post(ctx, func() {}), context.DeadlineExceeded)
}

func TestState_ThemeListeners(t *testing.T) {
	s := NewState(domain.ThemeDark)

	var got []domain.Theme
	unsubscribe := s.OnTheme(func(theme domain.Theme) { got = append(got, theme) })

	assert.Equal(t, domain.ThemeLight, s.ToggleTheme())
	require.NoError(t, s.SetTheme(domain.ThemeLight))
	require.NoError(t, s.SetTheme(domain.ThemeDark))

	themeObserver{unsubscribe: unsubscribe}.Disconnect()
	s.ToggleTheme()

	assert.Equal(t, []domain.Theme{domain.ThemeLight, domain.ThemeDark}, got)
	assert.ErrorIs(t, s.SetTheme("sepia"), domain.ErrInvalidArgument)
}

func TestState_FeedState(t *testing.T) {
	s := NewState("")

	assert.Equal(t, domain.ThemeDark, s.Theme())
	assert.Equal(t, marketdata.StateDisconnected, s.FeedState())

	s.SetFeedState(marketdata.StateConnected)
	assert.Equal(t, marketdata.StateConnected, s.FeedState())
}
