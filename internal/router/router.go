package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"github.com/valyala/fasthttp/pprofhandler"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskdesk/api/handler"
	"github.com/fastygo/taskdesk/internal/metrics"
	"github.com/fastygo/taskdesk/internal/middleware"
)

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

type Handlers struct {
	User   *apiHandler.UserHandler
	Task   *apiHandler.TaskHandler
	Health *apiHandler.HealthHandler
}

type Options struct {
	// Auth guards routes that need a caller.
	Auth Middleware
	// RateLimit guards registration and login. Optional.
	RateLimit     Middleware
	EnableMetrics bool
	EnablePprof   bool
}

func New(handlers Handlers, opts Options) *router.Router {
	r := router.New()
	r.SaveMatchedRoutePath = true

	auth := opts.Auth
	if auth == nil {
		auth = passthrough
	}
	limit := opts.RateLimit
	if limit == nil {
		limit = passthrough
	}

	r.GET("/health", handlers.Health.Check)

	r.POST("/api/users", limit(handlers.User.Register))
	r.POST("/api/users/login", limit(handlers.User.Login))
	r.GET("/api/users/me", auth(handlers.User.Me))
	r.GET("/api/users", auth(handlers.User.List))

	r.GET("/api/tasks", handlers.Task.List)
	r.POST("/api/tasks/new", auth(handlers.Task.Create))
	r.GET("/api/tasks/user/{id}", auth(handlers.Task.ListByUser))
	r.PUT("/api/tasks/{id}", auth(handlers.Task.UpdateStatus))
	r.DELETE("/api/tasks/{id}", auth(handlers.Task.Delete))

	if opts.EnableMetrics {
		r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(metrics.Handler()))
	}
	if opts.EnablePprof {
		r.ANY("/debug/pprof/{profile:*}", pprofhandler.PprofHandler)
	}

	return r
}

// Handler wraps the router with request logging and metrics.
func Handler(r *router.Router, logger *zap.Logger) fasthttp.RequestHandler {
	return middleware.Observe(logger)(r.Handler)
}

func passthrough(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return next
}
