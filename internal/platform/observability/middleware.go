package observability

import (
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/siege-masterclass/checkout/internal/platform/httpx"
	"github.com/siege-masterclass/checkout/internal/platform/requestctx"
)

// RequestLoggerMiddleware puts a request-scoped logger on the context and logs one completion line
// per request. base is used when no logger was placed on the context upstream.
func RequestLoggerMiddleware(base *zap.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := requestctx.Logger(ctx)
			if logger == requestctx.NoopLogger() {
				logger = base
			}
			logger = logger.With(
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.String("method", SanitizeMethod(r.Method)),
				zap.String("trace_id", requestctx.TraceID(ctx)),
			)
			if ip := realIP(r); ip != "" {
				logger = logger.With(zap.String("remote_ip", ip))
			}
			r = r.WithContext(requestctx.WithLogger(ctx, logger))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				rec := recover()
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				if rec != nil && status < http.StatusInternalServerError {
					status = http.StatusInternalServerError
				}
				logCompletion(logger, r, status, ww.BytesWritten(), time.Since(start))
				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func logCompletion(logger *zap.Logger, r *http.Request, status, bytes int, latency time.Duration) {
	route := SanitizeRoute(routePattern(r))
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.Int("http.response.status_code", status),
		attribute.String("http.route", route),
	)
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}

	fields := []zap.Field{
		zap.String("route", route),
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.Int("bytes", bytes),
	}
	if id := sessionParam(r); id != "" {
		fields = append(fields, zap.String("session_id", id))
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request completed", fields...)
	case status >= http.StatusBadRequest:
		logger.Warn("request completed", fields...)
	default:
		logger.Info("request completed", fields...)
	}
}

// RecoveryMiddleware turns a handler panic into a logged stack trace and a JSON 500.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				ctx := r.Context()
				logger := requestctx.Logger(ctx)
				if logger == requestctx.NoopLogger() && fallback != nil {
					logger = fallback
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func sessionParam(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		return sanitizeString(ctx.URLParam("id"), 64)
	}
	return ""
}

func realIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return sanitizeString(addr, 64)
}
