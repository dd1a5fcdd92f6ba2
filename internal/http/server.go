// Package http exposes report generation and the administrative batch
// endpoints over HTTP.
package http

import (
	"context"
	"net/http"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// ReportGenerator renders one on-demand report.
type ReportGenerator interface {
	Generate(ctx context.Context, req services.ReportRequest) (core.ReportDocument, error)
	Release(doc core.ReportDocument)
}

// RunPublisher queues a batch run for a worker.
type RunPublisher interface {
	PublishReportRun(ctx context.Context, msg *amqp.ReportRunMessage) error
}

// StorageClearer wipes the report storage tree.
type StorageClearer interface {
	Clear(ctx context.Context) error
}

// UserLister lists users that opted into monthly reports.
type UserLister interface {
	GetAllowReportUsers(ctx context.Context) ([]core.User, error)
}

// Deps are the collaborators of the server. Publisher is optional.
type Deps struct {
	Auth      *Authenticator
	Reports   ReportGenerator
	Batch     services.BatchRunner
	Publisher RunPublisher
	Storage   StorageClearer
	Users     UserLister
	Limiter   *ratelimit.Limiter
	ClientIP  *security.ClientIP
	Logger    *log.Logger
	Now       func() time.Time
}

type Server struct {
	http.Server

	deps    Deps
	parser  *RequestParser
	tracer  *trace.Middleware
	logger  *log.Logger
	now     func() time.Time
	limiter *ratelimit.Limiter
}

func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIP == nil {
		deps.ClientIP = security.NewClientIP()
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	logger := deps.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		deps:    deps,
		parser:  NewRequestParser(),
		tracer:  trace.NewMiddleware(deps.ClientIP.Extract, logger),
		logger:  logger,
		now:     deps.Now,
		limiter: deps.Limiter,
	}

	mux := http.NewServeMux()
	limited := deps.Limiter.Middleware(deps.ClientIP.Extract, s.handleRateLimited)
	mux.Handle("POST /report", limited(http.HandlerFunc(s.handleReport)))
	mux.HandleFunc("POST /automated-monthly-report", s.requireAdmin(s.handleAutomatedReport))
	mux.HandleFunc("POST /clear-storage", s.requireAdmin(s.handleClearStorage))
	mux.HandleFunc("GET /allow-report-users", s.requireAdmin(s.handleAllowReportUsers))
	mux.HandleFunc("GET /ping", handlePing)
	mux.HandleFunc("GET /healthz", handlePing)
	mux.HandleFunc("/", handleNotFound)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}
	return s
}

// Shutdown stops accepting requests and releases the limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	m := s.Metrics()
	s.logger.Info("Shutting down HTTP server",
		"requests", m.TotalRequests,
		"avg_response_ms", m.AverageResponseTime,
		"rate_limited", s.limiter.Hits(),
		"active_clients", s.limiter.ActiveClients())
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

// Metrics returns the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.deps.Auth.Admin(r); err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Error("Rate limit exceeded. Please try again later.").
		Write(w)
}
