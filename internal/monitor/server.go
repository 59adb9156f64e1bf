// internal/monitor/server.go
// Package monitor exposes the optional JSON-over-HTTP control surface spec.md
// §6 describes (`/ping`, `/stack`, `/profile start|stop`, `/shutdown`, each
// wrapped in a `{"data": …, "code": 0|-1}` envelope), plus a `/ws` live-tail
// stream and a Prometheus `/metrics` endpoint. The subscriber fan-out,
// retention ring buffer, and bearer/JWT auth run over JSON-over-HTTP against
// a local sampler.Engine rather than a gRPC hub relaying chunks between
// hosts — spec.md explicitly scopes cross-host transport out (see
// DESIGN.md).
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/flamecore/flamecore/internal/logging"
	"github.com/flamecore/flamecore/internal/metrics"
	"github.com/flamecore/flamecore/internal/monitor/retention"
	"github.com/flamecore/flamecore/internal/sampler"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config parameterises a Monitor Server.
type Config struct {
	ListenAddr   string        // host:port to bind
	AuthToken    string        // optional static bearer token ("" means open)
	JWT          JWTConfig     // optional HMAC-JWT auth, takes precedence over AuthToken
	RetentionDur time.Duration // how long to keep a snapshot in memory (0 => 15m)

	// RedisAddr, when set, switches the retention store from the in-memory
	// ring buffer to a shared Redis list so multiple monitor replicas behind
	// a load balancer serve the same recent-snapshot history to /ws clients.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// envelope is the exact `{"data": …, "code": 0|-1}` shape spec.md §6
// mandates for every JSON-over-HTTP response.
type envelope struct {
	Data interface{} `json:"data"`
	Code int         `json:"code"`
}

func writeOK(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(envelope{Data: data, Code: 0})
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: msg, Code: -1})
}

// Server serves the monitor's JSON-over-HTTP surface against a locally
// running sampler.Engine, and fans out folded-text snapshots to WebSocket
// subscribers via Subscribe().
type Server struct {
	cfg   Config
	store retention.Store
	engine *sampler.Engine

	subsMu sync.RWMutex
	subs   map[chan []byte]struct{}

	jwt jwtHelper

	shutdown chan struct{}
}

// New returns a ready-to-serve Monitor bound to engine.
func New(cfg Config, engine *sampler.Engine) (*Server, error) {
	if cfg.RetentionDur == 0 {
		cfg.RetentionDur = 15 * time.Minute
	}

	var store retention.Store
	if cfg.RedisAddr != "" {
		cli := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		writesPerSecond := int(time.Second / expectedExportInterval)
		store = retention.NewRedis(cli, cfg.RetentionDur, writesPerSecond)
	} else {
		store = retention.NewInMem(cfg.RetentionDur)
	}

	return &Server{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		subs:     make(map[chan []byte]struct{}),
		jwt:      newJWTHelper(cfg.JWT),
		shutdown: make(chan struct{}),
	}, nil
}

// expectedExportInterval estimates the cadence of broadcast() calls, used
// only to size the Redis list trim length; an inexact guess here costs a
// little headroom, not correctness, since LTrim just caps list growth.
const expectedExportInterval = 500 * time.Millisecond

// routes registers the core JSON routes onto mux; callers (router.go) attach
// /ws and /metrics afterwards and wrap the result in HTTPAuthMiddleware.
func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/stack", s.handleStack)
	mux.HandleFunc("/profile", s.handleProfile)
	mux.HandleFunc("/shutdown", s.handleShutdown)
}

// Shutdown returns a channel closed when /shutdown has been called.
func (s *Server) Shutdown() <-chan struct{} { return s.shutdown }

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "pong")
}

// handleStack answers `current_stacks`: a snapshot of the engine's folded
// table, broadcast to retention/subscribers as a side effect so /ws tailers
// see the same text an operator just pulled via /stack.
func (s *Server) handleStack(w http.ResponseWriter, r *http.Request) {
	text := s.engine.Dumps()
	s.broadcast([]byte(text))
	writeOK(w, text)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	switch action {
	case "start":
		if err := s.engine.Start(); err != nil {
			writeErr(w, http.StatusConflict, err.Error())
			return
		}
		writeOK(w, "started")
	case "stop":
		if err := s.engine.Stop(); err != nil {
			writeErr(w, http.StatusConflict, err.Error())
			return
		}
		writeOK(w, "stopped")
	default:
		writeErr(w, http.StatusBadRequest, "action must be start or stop")
	}
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "shutting down")
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
}

// broadcast writes data into the retention store and fans it out to every
// connected WebSocket subscriber, dropping slow consumers rather than
// blocking the caller.
func (s *Server) broadcast(data []byte) {
	metrics.SnapshotsReceivedTotal.Inc()
	if err := s.store.Write(data); err != nil {
		logging.Sugar().Warnw("retention write", "err", err)
	}
	s.subsMu.RLock()
	for ch := range s.subs {
		select {
		case ch <- data:
		default:
			logging.Sugar().Debug("dropping snapshot to slow subscriber")
		}
	}
	s.subsMu.RUnlock()
}

// Subscribe registers a live-tail client. The caller must drain the returned
// channel and invoke unregister when done.
func (s *Server) Subscribe() (ch chan []byte, unregister func()) {
	ch = make(chan []byte, 16)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	unregister = func() {
		s.subsMu.Lock()
		delete(s.subs, ch)
		s.subsMu.Unlock()
		close(ch)
	}
	return ch, unregister
}

// Logger returns the *zap.Logger used by the server (delegates to global).
func (s *Server) Logger() *zap.Logger { return logging.Logger() }
