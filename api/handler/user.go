package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskdesk/api/transport"
	"github.com/fastygo/taskdesk/domain"
	"github.com/fastygo/taskdesk/internal/middleware"
	"github.com/fastygo/taskdesk/pkg/httpcontext"
	authUC "github.com/fastygo/taskdesk/usecase/auth"
	profileUC "github.com/fastygo/taskdesk/usecase/profile"
)

type UserHandler struct {
	baseHandler
	auth    *authUC.UseCase
	profile *profileUC.UseCase
}

func NewUserHandler(auth *authUC.UseCase, profile *profileUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		baseHandler: newBaseHandler(adapter, logger),
		auth:        auth,
		profile:     profile,
	}
}

// @Summary Register a user
// @Tags users
// @Router /api/users [post]
func (h *UserHandler) Register(ctx *fasthttp.RequestCtx) {
	var req transport.RegisterRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, domain.ErrInvalidPayload.Message)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session, err := h.auth.Register(stdCtx, authUC.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Department: req.Department,
		Role:       req.Role,
	})
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, session)
}

// @Summary Log in
// @Tags users
// @Router /api/users/login [post]
func (h *UserHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, domain.ErrInvalidPayload.Message)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session, err := h.auth.Login(stdCtx, req.Email, req.Password)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, session)
}

// @Summary Current user
// @Tags users
// @Router /api/users/me [get]
func (h *UserHandler) Me(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	caller := middleware.CallerFrom(ctx)
	if !caller.Authenticated() {
		h.respondError(stdCtx, ctx, domain.ErrUnauthorized)
		return
	}

	user, err := h.profile.GetProfile(stdCtx, caller.ID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, user)
}

// @Summary List users
// @Tags users
// @Router /api/users [get]
func (h *UserHandler) List(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	users, err := h.profile.ListUsers(stdCtx)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, users)
}
