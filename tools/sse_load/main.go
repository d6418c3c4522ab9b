// Command sse_load opens many concurrent subscriptions to the dashboard streams
// and reports how many events of each kind arrive.
//
//	go run ./tools/sse_load -base http://127.0.0.1:8080 -streams portfolio,orderbook -conns 200
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64

	mu     sync.Mutex
	events map[string]int64
}

func (c *counters) add(event string) {
	c.mu.Lock()
	c.events[event]++
	c.mu.Unlock()
}

func (c *counters) summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.events))
	for name := range c.events {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, c.events[name]))
	}
	return strings.Join(parts, " ")
}

func (c *counters) total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, v := range c.events {
		n += v
	}
	return n
}

func main() {
	var (
		baseURL      string
		streams      string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
		reconnect    bool
	)

	flag.StringVar(&baseURL, "base", "http://127.0.0.1:8080", "dashboard base URL")
	flag.StringVar(&streams, "streams", "portfolio,orderbook", "comma separated streams: portfolio, orderbook, window")
	flag.IntVar(&connections, "conns", 100, "connections per stream")
	flag.DurationVar(&testDuration, "dur", time.Minute, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread connection starts across this window")
	flag.BoolVar(&reconnect, "reconnect", false, "reopen dropped streams with backoff")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if connections <= 0 {
		logger.Fatal("invalid conns", zap.Int("conns", connections))
	}

	var urls []string
	for _, name := range strings.Split(streams, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		urls = append(urls, strings.TrimRight(baseURL, "/")+"/"+name+"/stream")
	}
	if len(urls) == 0 {
		logger.Fatal("no streams selected")
	}

	total := connections * len(urls)
	if rampUp == 0 && total > 100 {
		rampUp = time.Duration(total/500) * time.Second
		if rampUp < time.Second {
			rampUp = time.Second
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     total + 100,
			MaxIdleConns:        total + 100,
			MaxIdleConnsPerHost: total + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	logger.Info("starting stream load",
		zap.Strings("urls", urls),
		zap.Int("conns", connections),
		zap.Duration("duration", testDuration),
		zap.Duration("ramp", rampUp),
	)

	c := &counters{events: make(map[string]int64)}
	start := time.Now()

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(total)
	}

	go report(ctx, logger, c, start)

	g := new(errgroup.Group)
	for i := 0; i < total && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		url := urls[i%len(urls)]
		g.Go(func() error {
			subscribe(ctx, client, url, reconnect, c)
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	if elapsed == 0 {
		elapsed = time.Millisecond
	}
	events := c.total()
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d events=%d (%s) elapsed=%s events/s=%.2f\n",
		c.connected.Load(),
		c.connectErrs.Load(),
		c.streamErrs.Load(),
		events,
		c.summary(),
		elapsed.Truncate(time.Millisecond),
		float64(events)/elapsed.Seconds(),
	)
}

func report(ctx context.Context, logger *zap.Logger, c *counters, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("status",
				zap.Int64("connected", c.connected.Load()),
				zap.Int64("connect_errs", c.connectErrs.Load()),
				zap.Int64("stream_errs", c.streamErrs.Load()),
				zap.String("events", c.summary()),
				zap.Duration("elapsed", time.Since(start).Truncate(time.Second)),
			)
		}
	}
}

func subscribe(ctx context.Context, client *http.Client, url string, reconnect bool, c *counters) {
	b := &backoff.Backoff{Min: 200 * time.Millisecond, Max: 10 * time.Second, Factor: 2, Jitter: true}
	for {
		if ok := readStream(ctx, client, url, c); ok {
			b.Reset()
		}
		if !reconnect || ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.Duration()):
		}
	}
}

// readStream reports whether the stream was established.
func readStream(ctx context.Context, client *http.Client, url string, c *counters) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return false
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.connectErrs.Add(1)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return false
	}
	c.connected.Add(1)
	defer c.connected.Add(-1)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				c.streamErrs.Add(1)
			}
			return true
		}
		// heartbeats and data lines are not counted; each event has one "event:" line
		if name, ok := strings.CutPrefix(strings.TrimRight(line, "\r\n"), "event: "); ok {
			c.add(name)
		}
	}
}
