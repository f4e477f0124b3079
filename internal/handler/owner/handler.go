package owner

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/renova-api/internal/access"
	"github.com/jwalitptl/renova-api/internal/handler"
	"github.com/jwalitptl/renova-api/internal/middleware"
	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/service/owner"
	"github.com/jwalitptl/renova-api/pkg/httputil"
)

type Handler struct {
	svc      *owner.Service
	resolver *access.Resolver
}

func NewHandler(svc *owner.Service, resolver *access.Resolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin", access.Middleware(h.resolver, access.RequireRole(model.RoleOwner)))
	{
		admin.GET("/therapists/pending", h.ListPendingTherapists)
		admin.PUT("/therapists/:id/status", h.ConfirmTherapist)
	}
}

func (h *Handler) context(c *gin.Context) (*owner.Context, bool) {
	ac, err := access.FromGin(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	oc, err := h.svc.For(c.Request.Context(), ac)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	return oc, true
}

func (h *Handler) ListPendingTherapists(c *gin.Context) {
	oc, ok := h.context(c)
	if !ok {
		return
	}

	therapists, err := oc.PendingTherapists(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(therapists))
}

func (h *Handler) ConfirmTherapist(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.ConfirmTherapistRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	oc, ok := h.context(c)
	if !ok {
		return
	}

	th, err := oc.ConfirmTherapist(c.Request.Context(), id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(th))
}
