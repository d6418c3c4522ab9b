// Package shell relays window-control commands to the desktop shell hosting the UI.
package shell

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/deskfolio/internal/domain"
	"github.com/vadiminshakov/deskfolio/internal/events"
)

// Command window-control command.
type Command string

const (
	CommandMinimize Command = "minimize"
	CommandMaximize Command = "maximize"
	CommandClose    Command = "close"
)

// ErrUnknownCommand is returned for commands outside the whitelist.
var ErrUnknownCommand = errors.Wrap(domain.ErrInvalidArgument, "unknown window command")

// ParseCommand accepts both the short form ("minimize") and the channel form ("minimize-window").
func ParseCommand(s string) (Command, error) {
	c := Command(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "-window"))
	switch c {
	case CommandMinimize, CommandMaximize, CommandClose:
		return c, nil
	default:
		return "", errors.Wrapf(ErrUnknownCommand, "%q", s)
	}
}

// Option configures Host.
type Option func(*Host)

// WithCloseHandler registers fn to run after a close command was relayed.
func WithCloseHandler(fn func()) Option {
	return func(h *Host) {
		h.onClose = fn
	}
}

// Host fans window commands out to connected shells. Sending never waits for a shell.
type Host struct {
	logger  *zap.Logger
	bus     *events.Broadcaster[Command]
	onClose func()
}

// NewHost creates a host.
func NewHost(logger *zap.Logger, opts ...Option) *Host {
	h := &Host{
		logger: logger,
		bus:    events.NewBroadcaster[Command](8),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Send validates and relays a command.
func (h *Host) Send(raw string) error {
	cmd, err := ParseCommand(raw)
	if err != nil {
		h.logger.Warn("rejected window command", zap.String("command", raw))
		return err
	}

	h.bus.Publish(cmd)
	h.logger.Debug("window command relayed", zap.String("command", string(cmd)), zap.Int("shells", h.bus.Len()))

	if cmd == CommandClose && h.onClose != nil {
		h.onClose()
	}
	return nil
}

// Subscribe returns a channel of relayed commands and a function that detaches it.
func (h *Host) Subscribe() (<-chan Command, func()) {
	ch := h.bus.Subscribe()
	return ch, func() { h.bus.Unsubscribe(ch) }
}
