package domain

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Timeframe candle interval in exchange notation, e.g. "1h".
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Timeframes lists the intervals offered by the timeframe selector.
var Timeframes = []Timeframe{Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d}

// String returns the string representation.
func (t Timeframe) String() string {
	return string(t)
}

// IsValid checks if the Timeframe is one of the supported intervals.
func (t Timeframe) IsValid() bool {
	for _, tf := range Timeframes {
		if tf == t {
			return true
		}
	}
	return false
}

// Duration converts the interval into a time.Duration.
func (t Timeframe) Duration() (time.Duration, error) {
	s := string(t)
	if len(s) < 2 {
		return 0, errors.Wrapf(ErrInvalidArgument, "invalid timeframe %q", s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, errors.Wrapf(ErrInvalidArgument, "invalid timeframe number in %q", s)
	}

	switch s[len(s)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, errors.Wrapf(ErrInvalidArgument, "unsupported timeframe unit in %q", s)
	}
}
