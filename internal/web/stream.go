package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// streamEvents writes every value received from ch as an SSE event until the client goes
// away or ch is closed.
func streamEvents[T any](s *Server, w http.ResponseWriter, r *http.Request, event string, ch <-chan T, unsubscribe func()) {
	defer unsubscribe()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case v, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(v)
			if err != nil {
				s.logger().Error("failed to encode stream event", zap.String("event", event), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\n", event)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) handlePortfolioStream(w http.ResponseWriter, r *http.Request) {
	if s.Portfolio == nil {
		unavailable(w, "portfolio")
		return
	}
	ch, unsubscribe := s.Portfolio.SubscribePortfolio()
	streamEvents(s, w, r, "portfolio", ch, unsubscribe)
}

func (s *Server) handleOrderbookStream(w http.ResponseWriter, r *http.Request) {
	if s.Orderbook == nil {
		unavailable(w, "orderbook")
		return
	}
	ch, unsubscribe := s.Orderbook.SubscribeOrderbook()
	streamEvents(s, w, r, "orderbook", ch, unsubscribe)
}

func (s *Server) handleWindowStream(w http.ResponseWriter, r *http.Request) {
	if s.Window == nil {
		unavailable(w, "window control")
		return
	}
	ch, unsubscribe := s.Window.SubscribeWindow()
	streamEvents(s, w, r, "window", ch, unsubscribe)
}
