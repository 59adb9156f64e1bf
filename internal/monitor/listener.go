// internal/monitor/listener.go
// WebSocket live-tail endpoint layered onto the Server's JSON-over-HTTP mux,
// plus the Prometheus /metrics scrape endpoint. The payload pushed to each
// subscriber is a folded-text snapshot rather than an opaque protobuf chunk.
package monitor

import (
	"net/http"

	"github.com/flamecore/flamecore/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HTTPConfig controls listener behaviour beyond the core JSON routes.
type HTTPConfig struct {
	EnableMetrics bool // expose /metrics
}

// attachWS adds the /ws live-tail route (and optionally /metrics) to mux.
func (s *Server) attachWS(mux *http.ServeMux, cfg HTTPConfig) {
	mux.HandleFunc("/ws", s.handleWebSocket)
	if cfg.EnableMetrics {
		metrics.Register()
		mux.Handle("/metrics", promhttp.Handler())
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // monitor is meant for local/trusted access; see DESIGN.md
	},
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger().Warn("ws upgrade", zap.Error(err))
		return
	}

	ch, unregister := s.Subscribe()
	metrics.Subscribers.Inc()
	defer func() {
		unregister()
		metrics.Subscribers.Dec()
		_ = conn.Close()
	}()

	for _, data := range s.store.ReadAll() {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	for buf := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, buf); err != nil {
			s.Logger().Debug("ws write", zap.Error(err))
			return
		}
	}
}
