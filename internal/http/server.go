package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"caja/internal/log"
	"caja/internal/middleware/ratelimit"
	"caja/internal/middleware/security"
	"caja/internal/middleware/trace"
	"caja/internal/services"
)

// Config tunes the HTTP server.
type Config struct {
	RateLimitPerMinute int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

type Server struct {
	http.Server
	ledger   *services.LedgerService
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, logger *log.Logger, cfg Config) *Server {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:   ledger,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, log.NewStructuredLogger(logger))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { NotFoundRoute().Write(w) })
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { MethodNotAllowedError().Write(w) })

	r := mux.NewRouter()
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notAllowed

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	// A subrouter answers its own misses; the root handlers never see them.
	api := r.PathPrefix("/api/v1").Subrouter()
	api.NotFoundHandler = notFound
	api.MethodNotAllowedHandler = notAllowed
	api.Use(
		s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) { TooManyRequests().Write(w) }),
	)

	api.HandleFunc("/groups", s.handleRegisterGroup).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupID}", s.handleGetGroup).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupID}/policy", s.handleUpdateGroupPolicy).Methods(http.MethodPut)
	api.HandleFunc("/groups/{groupID}/members", s.handleRegisterMember).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupID}/members", s.handleListMembers).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupID}/savings/total", s.handleGroupSavingsTotal).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupID}/cash", s.handleBalance).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupID}/cash/history", s.handleCashHistory).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupID}/loans", s.handleActiveLoans).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupID}/fines", s.handleGroupPendingFines).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupID}/sessions/{sessionID}/attendance", s.handleRecordAttendance).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupID}/sessions/{sessionID}/attendance", s.handleSessionAttendance).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupID}/cycles", s.handlePlanCycle).Methods(http.MethodPost)

	api.HandleFunc("/members/{memberID}", s.handleRemoveMember).Methods(http.MethodDelete)
	api.HandleFunc("/members/{memberID}/statement", s.handleMemberStatement).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberID}/savings", s.handleMemberSavings).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberID}/savings/total", s.handleMemberSavingsTotal).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberID}/loans", s.handleMemberLoans).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberID}/fines", s.handleMemberFines).Methods(http.MethodGet)

	api.HandleFunc("/savings", s.handleDeposit).Methods(http.MethodPost)

	api.HandleFunc("/loans", s.handleOriginateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanID}", s.handleGetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanID}/payments", s.handleApplyPayment).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanID}/payments", s.handleLoanPayments).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanID}/progress", s.handleLoanProgress).Methods(http.MethodGet)

	api.HandleFunc("/fines", s.handleApplyFine).Methods(http.MethodPost)
	api.HandleFunc("/fines/{fineID}/pay", s.handlePayFine).Methods(http.MethodPost)

	api.HandleFunc("/cycles/{cycleID}", s.handleGetCycle).Methods(http.MethodGet)
	api.HandleFunc("/cycles/{cycleID}/activate", s.handleActivateCycle).Methods(http.MethodPost)
	api.HandleFunc("/cycles/{cycleID}/can-close", s.handleCanClose).Methods(http.MethodGet)
	api.HandleFunc("/cycles/{cycleID}/close", s.handleCloseCycle).Methods(http.MethodPost)
	api.HandleFunc("/cycles/{cycleID}/report", s.handleClosureReport).Methods(http.MethodGet)

	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	// Outermost first: trace assigns the request id the logger middleware
	// attaches, security headers apply even to rejected requests.
	var h http.Handler = r
	h = s.detector.Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = log.Middleware(s.logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
