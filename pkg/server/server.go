// Package server exposes the dashboard over HTTP. Every websocket connection
// on /ws mounts one dashboard view for as long as the connection stays open.
package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hawky-4s-/energy-report-dashboard/pkg/cache"
	"github.com/hawky-4s-/energy-report-dashboard/pkg/dashboard"
	"github.com/hawky-4s-/energy-report-dashboard/pkg/render"
	"github.com/hawky-4s-/energy-report-dashboard/pkg/types"
)

const writeTimeout = 10 * time.Second

// Pinger checks that the upstream API is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Upstream is the energy report API as seen by the server.
type Upstream interface {
	dashboard.Fetcher
	Pinger
}

// Server serves the dashboard page, the live view websocket and the
// operational endpoints.
type Server struct {
	upstream       Upstream
	cache          *cache.Cache
	renderer       *render.Renderer
	viewOpts       []dashboard.Option
	originPatterns []string
	metrics        http.Handler
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithViewOptions sets options applied to every mounted view.
func WithViewOptions(opts ...dashboard.Option) Option {
	return func(s *Server) {
		s.viewOpts = append(s.viewOpts, opts...)
	}
}

// WithOriginPatterns allows cross-origin websocket connections from the given host patterns.
func WithOriginPatterns(patterns []string) Option {
	return func(s *Server) {
		s.originPatterns = patterns
	}
}

// WithMetricsHandler replaces the /metrics handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// New creates a new Server.
func New(upstream Upstream, ca *cache.Cache, r *render.Renderer, opts ...Option) *Server {
	s := &Server{
		upstream: upstream,
		cache:    ca,
		renderer: r,
		metrics:  promhttp.Handler(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	return router
}

// handleIndex renders the page shell with the state of a view that is not
// mounted yet; the browser script mounts the live view over /ws.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	initial := dashboard.Snapshot{Selector: dashboard.NewSelector(nil, "")}
	if err := s.renderer.Page(&buf, initial); err != nil {
		slog.Error("failed to render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// clientMessage is sent by the browser over the websocket.
type clientMessage struct {
	Type    string        `json:"type"`
	MeterID types.MeterID `json:"meterId"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	opts := append([]dashboard.Option{}, s.viewOpts...)
	opts = append(opts, dashboard.WithRenderFunc(func(snap dashboard.Snapshot) {
		var buf bytes.Buffer
		if err := s.renderer.View(&buf, snap); err != nil {
			slog.Error("failed to render view", "view", snap.ViewID, "error", err)
			return
		}
		wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
		defer wcancel()
		if err := conn.Write(wctx, websocket.MessageText, buf.Bytes()); err != nil {
			slog.Debug("websocket write failed", "view", snap.ViewID, "error", err)
			cancel()
		}
	}))

	view := dashboard.NewView(s.upstream, opts...)
	slog.Info("view connected", "view", view.ID(), "remote_addr", r.RemoteAddr)

	go view.Run(ctx)

	s.readLoop(ctx, conn, view)

	cancel()
	<-view.Done()
	conn.Close(websocket.StatusNormalClosure, "")
	slog.Info("view disconnected", "view", view.ID())
}

// readLoop forwards selector events to the view until the connection closes.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, view *dashboard.View) {
	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.Debug("websocket read failed", "view", view.ID(), "error", err)
			}
			return
		}

		switch msg.Type {
		case "select":
			if !view.Select(msg.MeterID) {
				return
			}
		default:
			slog.Debug("ignoring unknown message", "view", view.ID(), "type", msg.Type)
		}
	}
}

// healthzHandler returns 200 OK if the server is running.
func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReadyz returns 200 OK if a fresh meter list was polled or the API is reachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, isStale, ok := s.cache.Get(); !ok || isStale {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.upstream.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: " + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
