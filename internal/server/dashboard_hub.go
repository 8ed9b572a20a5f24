package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/services"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	clientBuffer = 8
	writeTimeout = 10 * time.Second
)

// ClientGauge tracks the number of connected dashboards
type ClientGauge interface {
	Set(float64)
}

// DashboardHub pushes every finished run to connected websocket clients.
// New clients receive the latest run immediately.
type DashboardHub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	latest  []byte
	closed  bool
	gauge   ClientGauge
	log     zerolog.Logger
}

// NewDashboardHub creates a hub. gauge may be nil.
func NewDashboardHub(gauge ClientGauge, log zerolog.Logger) *DashboardHub {
	return &DashboardHub{
		clients: make(map[chan []byte]struct{}),
		gauge:   gauge,
		log:     log.With().Str("component", "dashboard_hub").Logger(),
	}
}

// Publish broadcasts a run result. Slow clients drop messages rather than
// block the run.
func (h *DashboardHub) Publish(result *services.RunResult) {
	data, err := json.Marshal(result)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode run result")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.latest = data
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			h.log.Warn().Msg("Dashboard client buffer full, dropping update")
		}
	}
}

// Clients returns the number of connected clients
func (h *DashboardHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *DashboardHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}
	h.updateGauge()
}

// ServeHTTP handles GET /ws/dashboard
func (h *DashboardHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to accept dashboard connection")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	ch, ok := h.subscribe()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unsubscribe(ch)

	h.log.Info().Str("remote", r.RemoteAddr).Msg("Dashboard client connected")

	// Dashboards never send; CloseRead answers control frames and cancels
	// ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case data, open := <-ch:
			if !open {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := h.write(ctx, conn, data); err != nil {
				h.log.Debug().Err(err).Msg("Dashboard client write failed")
				return
			}
		}
	}
}

func (h *DashboardHub) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (h *DashboardHub) subscribe() (chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan []byte, clientBuffer)
	if h.latest != nil {
		ch <- h.latest
	}
	h.clients[ch] = struct{}{}
	h.updateGauge()
	return ch, true
}

func (h *DashboardHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.updateGauge()
}

func (h *DashboardHub) updateGauge() {
	if h.gauge != nil {
		h.gauge.Set(float64(len(h.clients)))
	}
}
