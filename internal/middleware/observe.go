package middleware

import (
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskdesk/internal/metrics"
	"github.com/fastygo/taskdesk/pkg/httpcontext"
)

// Observe logs every request and records its latency. Routes are labelled by
// their registered pattern so ids do not explode metric cardinality.
func Observe(logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)
			elapsed := time.Since(start)

			route, _ := ctx.UserValue(router.MatchedRoutePathParam).(string)
			if route == "" {
				route = "unmatched"
			}
			method := string(ctx.Method())
			status := ctx.Response.StatusCode()

			metrics.RecordHTTPRequest(method, route, status, elapsed.Seconds())

			fields := []zap.Field{
				zap.String("request_id", httpcontext.RequestID(ctx)),
				zap.String("method", method),
				zap.String("path", string(ctx.Path())),
				zap.Int("status", status),
				zap.Duration("latency", elapsed),
			}
			switch {
			case status >= fasthttp.StatusInternalServerError:
				logger.Error("request failed", fields...)
			case status >= fasthttp.StatusBadRequest:
				logger.Warn("request rejected", fields...)
			default:
				logger.Debug("request served", fields...)
			}
		}
	}
}
