package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/shared/observability"
	"pyrefactor/internal/shared/util"
)

type ctxKey int

const requestIDKey ctxKey = iota

const maxRequestIDLen = 128

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		level := slogLevel(rec.status)
		s.logger.Log(r.Context(), level, "http request",
			"request_id", requestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"client", util.ClientIP(r),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		limiter := s.limiter.Get(util.ClientIP(r))
		if !limiter.Allow(1) {
			observability.RateLimitedTotal.Inc()
			observability.RequestsTotal.WithLabelValues("http", "rate_limited").Inc()
			retry := int(math.Ceil(limiter.RetryAfter().Seconds()))
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", fmt.Sprint(retry))
			s.writeError(w, r, errors.New(errors.CodeRateLimited, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withValidation bounds the body size and checks the request against the
// OpenAPI contract. The body is buffered so handlers can decode it again.
func (s *Server) withValidation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil && r.Body != http.NoBody {
			var err error
			body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
			if err != nil {
				if tooLarge, ok := err.(*http.MaxBytesError); ok {
					s.writeStatus(w, r, http.StatusRequestEntityTooLarge, apiError{
						Code:    string(errors.CodeValidationError),
						Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
					})
					return
				}
				s.writeError(w, r, errors.Wrap(err, errors.CodeValidationError, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		if err := s.contract.validate(r); err != nil {
			s.writeError(w, r, err)
			return
		}
		if body != nil {
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		next.ServeHTTP(w, r)
	})
}
