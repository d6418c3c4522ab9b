package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"minimize", CommandMinimize},
		{"maximize-window", CommandMaximize},
		{" CLOSE ", CommandClose},
		{"close-window", CommandClose},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "fullscreen", "some-event", "open-devtools"} {
		_, err := ParseCommand(bad)
		assert.ErrorIs(t, err, ErrUnknownCommand, bad)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, bad)
	}
}

func TestHostRelaysCommands(t *testing.T) {
	closed := 0
	h := NewHost(zap.NewNop(), WithCloseHandler(func() { closed++ }))

	// no shell connected yet, sending must not block
	require.NoError(t, h.Send("minimize"))

	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()
	assert.Len(t, ch, 0)

	require.NoError(t, h.Send("maximize-window"))
	require.NoError(t, h.Send("close"))
	assert.Error(t, h.Send("reload"))

	assert.Equal(t, CommandMaximize, <-ch)
	assert.Equal(t, CommandClose, <-ch)
	assert.Len(t, ch, 0)
	assert.Equal(t, 1, closed)
}
