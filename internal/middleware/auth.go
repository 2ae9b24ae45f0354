package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskdesk/api/transport"
	"github.com/fastygo/taskdesk/domain"
	appAuth "github.com/fastygo/taskdesk/internal/auth"
	"github.com/fastygo/taskdesk/pkg/httpcontext"
)

const callerValue = "taskdesk.caller"

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (*appAuth.Claims, error)
}

// CallerResolver loads the current state of the token's user.
type CallerResolver interface {
	Resolve(ctx context.Context, userID string) (domain.Caller, error)
}

// JWTAuth rejects requests without a valid bearer token. The caller is
// re-read from the user directory so role and department changes apply
// without re-issuing tokens.
func JWTAuth(tokens TokenParser, resolver CallerResolver, timeout time.Duration, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx, domain.ErrUnauthorized.Message)
				return
			}

			claims, err := tokens.Parse(tokenString)
			if err != nil {
				logger.Warn("invalid jwt token",
					zap.String("request_id", httpcontext.RequestID(ctx)),
					zap.Error(err))
				unauthorized(ctx, "invalid token")
				return
			}

			stdCtx, cancel := context.WithTimeout(context.Background(), timeout)
			caller, err := resolver.Resolve(stdCtx, claims.UserID)
			cancel()
			if err != nil {
				logger.Warn("token user not resolved",
					zap.String("user_id", claims.UserID),
					zap.Error(err))
				if domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
					unauthorized(ctx, domain.ErrUnauthorized.Message)
					return
				}
				writeError(ctx, http.StatusInternalServerError, string(domain.ErrCodeInternal), "failed to resolve user")
				return
			}

			SetCaller(ctx, caller)
			next(ctx)
		}
	}
}

// SetCaller stores caller on the request.
func SetCaller(ctx *fasthttp.RequestCtx, caller domain.Caller) {
	ctx.SetUserValue(callerValue, caller)
	ctx.SetUserValue(httpcontext.UserIDValue, caller.ID)
}

// CallerFrom returns the caller stored by JWTAuth, or the zero Caller.
func CallerFrom(ctx *fasthttp.RequestCtx) domain.Caller {
	if ctx == nil {
		return domain.Caller{}
	}
	caller, _ := ctx.UserValue(callerValue).(domain.Caller)
	return caller
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	writeError(ctx, http.StatusUnauthorized, string(domain.ErrCodeUnauthorized), message)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBodyString(transport.NewError(code, message, nil).WithRequestID(httpcontext.RequestID(ctx)).String())
}
