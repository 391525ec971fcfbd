package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/agent"
	"github.com/fmuoria/agent-studio/internal/config"
	"github.com/fmuoria/agent-studio/internal/finance"
	"github.com/fmuoria/agent-studio/internal/ingestion"
	"github.com/fmuoria/agent-studio/internal/session"
)

// Session identifiers travel in this header or cookie
const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"
)

// FinanceAnalyst answers finance queries
type FinanceAnalyst interface {
	Analyze(ctx context.Context, query string, mode finance.Mode) (string, error)
}

// MapsAssistant answers geographic questions
type MapsAssistant interface {
	Run(ctx context.Context, question string) (string, error)
}

// Deps are the services behind the routes
type Deps struct {
	Agent    *agent.CVReviewAgent
	Finance  FinanceAnalyst
	Maps     MapsAssistant
	Sessions *session.Store
	Files    *ingestion.FileHandler
}

// Server handles HTTP requests
type Server struct {
	cfg      config.ServerConfig
	router   *chi.Mux
	agent    *agent.CVReviewAgent
	finance  FinanceAnalyst
	maps     MapsAssistant
	sessions *session.Store
	files    *ingestion.FileHandler
	log      *zap.Logger
	now      func() time.Time
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore(cfg.SessionTTL)
	}
	if deps.Files == nil {
		deps.Files = ingestion.NewFileHandler("", cfg.MaxUploadBytes, log)
	}
	s := &Server{
		cfg:      cfg,
		agent:    deps.Agent,
		finance:  deps.Finance,
		maps:     deps.Maps,
		sessions: deps.Sessions,
		files:    deps.Files,
		log:      log,
		now:      time.Now,
	}
	s.setupRouter()
	return s
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", SessionHeader},
		ExposedHeaders:   []string{"X-Request-ID", SessionHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Route("/hr", func(r chi.Router) {
			r.Post("/batch", s.handleBatch)
			r.Get("/batch", s.handleGetBatch)
			r.Post("/optimize", s.handleOptimize)
			r.Post("/offer", s.handleOffer)
			r.Post("/offer/linkedin", s.handleLinkedIn)
			r.Post("/questions", s.handleQuestions)
			r.Post("/chat", s.handleChat)
			r.Post("/interviews", s.handleScheduleInterview)
			r.Get("/interviews", s.handleListInterviews)
			r.Get("/export", s.handleExport)
		})

		r.Post("/finance", s.handleFinance)
		r.Post("/maps", s.handleMaps)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))

		defer func() {
			s.log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// sessionMiddleware resolves the caller's session, creating one on first use
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}
		}

		sess, created := s.sessions.GetOrCreate(id)
		if created {
			s.log.Debug("session created", zap.String("session_id", sess.ID()))
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sess.ID(),
				Path:     "/",
				MaxAge:   int(s.sessions.TTL() / time.Second),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(SessionHeader, sess.ID())

		next.ServeHTTP(w, r.WithContext(contextWithSession(r.Context(), sess)))
	})
}
