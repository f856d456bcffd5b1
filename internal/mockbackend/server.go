// Package mockbackend is an in-process stand-in for the automation backend.
// It serves every endpoint the console uses and simulates jobs on timers.
package mockbackend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Veraticus/jobdeck/internal/model"
)

// DefaultStepDelay is how long one simulated unit of work takes.
const DefaultStepDelay = 700 * time.Millisecond

// Option configures a Server.
type Option func(*Server)

// WithStepDelay sets the simulated duration of one unit of work.
func WithStepDelay(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.step = d
		}
	}
}

// WithAccounts seeds the account table.
func WithAccounts(rows []model.AccountRow) Option {
	return func(s *Server) {
		s.accounts = append([]model.AccountRow(nil), rows...)
	}
}

// WithLocations sets how many preset locations exist.
func WithLocations(n int) Option {
	return func(s *Server) {
		s.locations = n
	}
}

// WithCumulativeMessages makes the generation and credit status endpoints
// return the whole message list of the run instead of clearing it after each
// read.
func WithCumulativeMessages() Option {
	return func(s *Server) {
		s.cumulative = true
	}
}

// WithFailEvery makes every n-th processed entity fail.
func WithFailEvery(n int) Option {
	return func(s *Server) {
		s.failEvery = n
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Server is the mock backend.
type Server struct {
	logger *slog.Logger
	router *chi.Mux
	ctx    context.Context
	cancel context.CancelFunc

	generation *batch
	credits    *batch
	payment    paymentState
	sessions   map[string]model.SessionState
	skipped    map[string]bool

	baseURL     string
	accounts    []model.AccountRow
	merchandise []model.Merchandise

	wg         sync.WaitGroup
	step       time.Duration
	locations  int
	failEvery  int
	mu         sync.Mutex
	cumulative bool
}

// New creates a mock backend.
func New(opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:    slog.Default(),
		router:    chi.NewRouter(),
		ctx:       ctx,
		cancel:    cancel,
		step:      DefaultStepDelay,
		locations: 1,
		baseURL:   "https://example.com",
		sessions:  make(map[string]model.SessionState),
		skipped:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.generation = newBatch(!s.cumulative)
	s.credits = newBatch(!s.cumulative)
	s.registerRoutes()
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close stops every simulated job and waits for them to exit.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	s.router.Use(s.logRequests)

	s.router.Get("/healthz", s.health)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/config", s.getConfig)
		r.Post("/config", s.setConfig)

		r.Get("/data", s.getData)
		r.Get("/locations", s.getLocations)
		r.Post("/generator/calculate-max", s.calculateMax)

		r.Post("/generate", s.startGeneration)
		r.Get("/generate/status", s.generationStatus)
		r.Post("/generate/stop", s.stopGeneration)

		r.Post("/credits/update-all", s.startCredits)
		r.Post("/credits/update-from", s.startCreditsFrom)
		r.Get("/credits/status", s.creditsStatus)
		r.Post("/credits/stop", s.stopCredits)

		r.Get("/payment/stats", s.paymentStats)
		r.Post("/payment/start", s.startPayment)
		r.Get("/payment/status", s.paymentStatus)
		r.Post("/payment/set-alias", s.setAlias)
		r.Post("/payment/skip", s.skipPayment)

		r.Get("/purchase/accounts", s.purchaseAccounts)
		r.Post("/purchase/start", s.startPurchase)
		r.Get("/purchase/sessions", s.purchaseSessions)
		r.Post("/purchase/stop", s.stopPurchase)

		r.Get("/merchandise", s.getMerchandise)
		r.Post("/merchandise/add", s.addMerchandise)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
}

// spawn runs fn in a tracked goroutine bound to the server lifetime.
func (s *Server) spawn(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// sleep waits one step. It returns false when the server is closing.
func (s *Server) sleep(ctx context.Context) bool {
	t := time.NewTimer(s.step)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func ok(w http.ResponseWriter, message string) {
	body := map[string]string{"status": "success"}
	if message != "" {
		body["message"] = message
	}
	writeJSON(w, http.StatusOK, body)
}

func started(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func fail(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": message})
}

func failAll(w http.ResponseWriter, problems []string) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "error", "errors": problems})
}
