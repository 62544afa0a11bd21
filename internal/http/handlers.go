package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"caja/internal/cache"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(map[string]string{"status": "ok"}).Write(w)
}

// handleReady checks that the store answers within a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.ledger.OutboxStats(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
		NewResponse().
			Status(http.StatusServiceUnavailable).
			JSON(map[string]string{"status": "unavailable"}).
			Write(w)
		return
	}
	OK(map[string]string{"status": "ready"}).Write(w)
}

type statsResponse struct {
	Outbox      map[string]int64 `json:"outbox"`
	ReportCache cache.Stats      `json:"report_cache"`
	HTTP        struct {
		Requests          int64 `json:"requests"`
		ServerErrors      int64 `json:"server_errors"`
		AverageMicros     int64 `json:"average_response_us"`
		RateLimitHits     int64 `json:"rate_limit_hits"`
		SuspiciousRequest int64 `json:"suspicious_requests"`
	} `json:"http"`
}

// handleStats reports outbox backlog, report cache and request counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	outbox, err := s.ledger.OutboxStats(r.Context())
	if err != nil {
		errorResponse(err).Write(w)
		return
	}

	var resp statsResponse
	resp.Outbox = outbox

	resp.ReportCache = s.ledger.ReportCache().Stats()

	tm := s.tracer.GetMetrics()
	resp.HTTP.Requests = tm.TotalRequests
	resp.HTTP.ServerErrors = tm.ServerErrors
	resp.HTTP.AverageMicros = tm.AverageResponseTime
	resp.HTTP.RateLimitHits = s.limiter.GetMetrics().TotalHits
	resp.HTTP.SuspiciousRequest = s.detector.GetMetrics().SuspiciousRequests

	OK(resp).Write(w)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
