// internal/monitor/router.go
// Router assembles the Server's JSON routes, the /ws live-tail endpoint, and
// the optional /metrics endpoint into one http.Server, and runs a periodic
// broadcast loop so WebSocket subscribers see the sampler's live state
// without needing to poll /stack themselves. This monitor has a single
// transport (JSON-over-HTTP plus the /ws upgrade), no gRPC half to juggle.
package monitor

import (
	"context"
	"net/http"
	"time"
)

// RouterConfig bundles the listen address and HTTP extras on top of Config.
type RouterConfig struct {
	ListenAddr     string
	HTTP           HTTPConfig
	BroadcastEvery time.Duration // 0 disables the periodic live-tail push
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Router owns the Server and its http.Server.
type Router struct {
	srv    *Server
	rcfg   RouterConfig
	httpSrv *http.Server
}

// NewRouter builds a Router around a Server.
func NewRouter(cfg RouterConfig, srv *Server) *Router {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Router{srv: srv, rcfg: cfg}
}

// Start launches the HTTP listener and the broadcast loop, blocking until ctx
// is cancelled or the monitor receives a /shutdown request.
func (r *Router) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	r.srv.routes(mux)
	r.srv.attachWS(mux, r.rcfg.HTTP)
	handler := r.srv.HTTPAuthMiddleware(mux)

	r.httpSrv = &http.Server{
		Addr:         r.rcfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  r.rcfg.ReadTimeout,
		WriteTimeout: r.rcfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := r.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stopBroadcast := make(chan struct{})
	if r.rcfg.BroadcastEvery > 0 {
		go r.broadcastLoop(stopBroadcast)
	}

	select {
	case <-ctx.Done():
	case <-r.srv.Shutdown():
	case err := <-errCh:
		close(stopBroadcast)
		return err
	}

	close(stopBroadcast)
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.httpSrv.Shutdown(shutCtx)
}

func (r *Router) broadcastLoop(stop <-chan struct{}) {
	t := time.NewTicker(r.rcfg.BroadcastEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			r.srv.broadcast([]byte(r.srv.engine.Dumps()))
		case <-stop:
			return
		}
	}
}
