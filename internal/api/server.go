package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/deps"
	"github.com/forPelevin/podclips/internal/jobs"
	"github.com/forPelevin/podclips/internal/runstatus"
)

type Options struct {
	Tracker    *runstatus.Tracker
	Dispatcher jobs.Dispatcher
	// Requirements are checked on every /health request.
	Requirements []deps.Requirement
	// OriginPatterns lists extra hosts allowed to open the websocket.
	OriginPatterns []string
	Logger         zerolog.Logger
}

type Server struct {
	tracker        *runstatus.Tracker
	dispatcher     jobs.Dispatcher
	requirements   []deps.Requirement
	originPatterns []string
	hub            *Hub
	unsubscribe    func()
	logger         zerolog.Logger
}

// NewServer subscribes the websocket hub to tracker updates. Close releases
// the subscription.
func NewServer(opts Options) *Server {
	logger := opts.Logger.With().Str("component", "api").Logger()
	hub := NewHub(logger)
	return &Server{
		tracker:        opts.Tracker,
		dispatcher:     opts.Dispatcher,
		requirements:   opts.Requirements,
		originPatterns: opts.OriginPatterns,
		hub:            hub,
		unsubscribe:    opts.Tracker.Subscribe(hub.Publish),
		logger:         logger,
	}
}

func (s *Server) Close() { s.unsubscribe() }

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.health)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/check_status/{id}", s.checkStatus)
	r.Get("/download/{id}/*", s.download)
	r.Route("/api", func(r chi.Router) {
		r.Post("/generate-clips", s.generateClips)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.checkStatus)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
