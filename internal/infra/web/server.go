package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ticketgate/internal/usecase"
)

// Scanner is the part of the scan controller the API drives.
type Scanner interface {
	Start(ctx context.Context) (bool, error)
	Cancel()
	Status() usecase.ScanStatus
}

// FrameSubmitter accepts uploaded camera frames.
type FrameSubmitter interface {
	SubmitImage(b []byte) error
	FacingMode() string
}

// maxFrameBytes bounds one uploaded frame.
const maxFrameBytes = 8 << 20

type Server struct {
	scanner  Scanner
	frames   FrameSubmitter
	issueUC  usecase.IssueUseCase
	statusUC usecase.StatusUseCase
	auth     *AuthManager
	metrics  http.Handler
	log      *zerolog.Logger
}

// NewServer builds the station API. frames is nil when capture does not come
// over HTTP, in which case /frames is not routed.
func NewServer(
	scanner Scanner,
	frames FrameSubmitter,
	issueUC usecase.IssueUseCase,
	statusUC usecase.StatusUseCase,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		scanner:  scanner,
		frames:   frames,
		issueUC:  issueUC,
		statusUC: statusUC,
		auth:     auth,
		metrics:  promhttp.Handler(),
		log:      &l,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", s.metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/scan", func(r chi.Router) {
			r.Get("/", s.scanStatusHandler)
			r.Post("/start", s.scanStartHandler)
			r.Post("/cancel", s.scanCancelHandler)
		})
		if s.frames != nil {
			r.Post("/frames", s.frameHandler)
		}
		if s.issueUC != nil {
			r.Post("/tickets", s.issueHandler)
		}
		if s.statusUC != nil {
			r.Get("/tickets/status", s.ticketStatusHandler)
		}
	})
	return r
}
