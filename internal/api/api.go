// Package api serves the zipstream HTTP interface.
package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahamlinman/zipstream/internal/api/rpc"
	"github.com/ahamlinman/zipstream/internal/archive"
	"github.com/ahamlinman/zipstream/internal/config"
	"github.com/ahamlinman/zipstream/internal/log"
	"github.com/ahamlinman/zipstream/internal/session"
)

// ErrShutdown is the cancellation cause that a server gives to in-flight
// requests when it is shutting down. Streams cancelled with it are aborted
// rather than treated as client disconnections.
var ErrShutdown = errors.New("server shutting down")

var websocketUpgrader websocket.Upgrader

// Options configures a Handler.
type Options struct {
	Config   config.Config
	Sessions *session.Registry
	Logger   log.Logger

	// Producer overrides the archive strategy selected by Config.Archiver.
	Producer archive.Producer
	// Gatherer, when set, is served in the Prometheus format at /metrics.
	Gatherer prometheus.Gatherer
}

// Handler serves the zipstream API.
type Handler struct {
	mux      *http.ServeMux
	config   config.Config
	resolver archive.Resolver
	producer archive.Producer
	sessions *session.Registry
	logger   log.Logger
}

// NewHandler creates a Handler from opts.
func NewHandler(opts Options) *Handler {
	h := &Handler{
		mux:      http.NewServeMux(),
		config:   opts.Config,
		resolver: archive.Resolver{Root: opts.Config.PhotosDir},
		producer: opts.Producer,
		sessions: opts.Sessions,
		logger:   opts.Logger,
	}
	if h.producer == nil {
		h.producer = newProducer(opts.Config, opts.Logger)
	}

	h.mux.HandleFunc("GET /{$}", h.handleIndex)
	h.mux.HandleFunc("GET /archive/{identifier}/{$}", h.handleArchive)

	h.mux.Handle("/api/rpc/cancel", rpc.HTTPHandler(h.rpcCancel))
	h.mux.HandleFunc("/api/sockets/archive-status", h.handleSocketArchiveStatus)

	if opts.Gatherer != nil {
		h.mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return h
}

func newProducer(c config.Config, logger log.Logger) archive.Producer {
	if c.Archiver == config.ArchiverMemory {
		return archive.MemoryProducer{}
	}
	return archive.ExecProducer{Logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}
