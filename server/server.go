// Package server exposes the subscription HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"rss-notifier/pkg/notifier"
	"rss-notifier/verify"
)

// Store interface for subscriber persistence.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*notifier.Subscriber, error)
	Create(ctx context.Context, email string, subscribedAt int64) error
	Delete(ctx context.Context, email string) error
}

// Verifier interface for checking email address deliverability.
type Verifier interface {
	CheckEmail(ctx context.Context, email string) (verify.Result, error)
}

// Runner interface for starting notification runs.
type Runner interface {
	Trigger() bool
}

// Server handles the subscription API.
type Server struct {
	store    Store
	verifier Verifier
	runner   Runner
	logger   *slog.Logger
	validate *validator.Validate
}

// New creates a server.
func New(store Store, verifier Verifier, runner Runner, logger *slog.Logger) *Server {
	return &Server{
		store:    store,
		verifier: verifier,
		runner:   runner,
		logger:   logger,
		validate: validator.New(),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusNotFound, Message{
			En: "The requested URL could not be found. Please double-check the URL.",
			Sv: "Den efterfrågade URL:en kunde inte hittas. Vänligen dubbelkolla länken.",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusMethodNotAllowed, Message{
			En: "The method is not allowed for the requested URL.",
			Sv: "Metoden är inte tillåten för den efterfrågade URL:en.",
		})
	})

	r.Get("/", s.handlePing)
	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(4, time.Minute))
		r.Post("/subscribe", s.handleSubscribe)
	})
	r.Group(func(r chi.Router) {
		r.Use(rateLimit(10, time.Minute))
		r.Post("/unsubscribe", s.handleUnsubscribe)
	})

	r.Post("/run", s.handleRun)

	return r
}

// ListenAndServe runs the HTTP server until the listener fails.
func (s *Server) ListenAndServe(port string, corsOrigins []string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(corsOrigins),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "port", port)
	return srv.ListenAndServe()
}

func rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			respond(w, http.StatusTooManyRequests, Message{
				En: "You have requested this service too many times, please try again later.",
				Sv: "Du har efterfrågat denna tjänst för många gånger, försök igen senare.",
			})
		}))
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Panic in handler", "panic", rec, "path", r.URL.Path)
				respond(w, http.StatusInternalServerError, Message{
					En: "Internal server error, please try again later.",
					Sv: "Internt serverfel, vänligen försök igen senare.",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
