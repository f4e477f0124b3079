package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/renova-api/internal/access"
	"github.com/jwalitptl/renova-api/internal/handler"
	"github.com/jwalitptl/renova-api/internal/middleware"
	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/service/auth"
	"github.com/jwalitptl/renova-api/pkg/httputil"
)

type Handler struct {
	svc          *auth.Service
	ttl          time.Duration
	secureCookie bool
}

func NewHandler(svc *auth.Service, ttl time.Duration, secureCookie bool) *Handler {
	return &Handler{svc: svc, ttl: ttl, secureCookie: secureCookie}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.login(model.RoleClient))
	r.POST("/dashboard/login", h.login(model.RoleTherapist))
	r.POST("/admin/login", h.login(model.RoleOwner))
	r.POST("/logout", h.Logout)

	signup := r.Group("/signup")
	{
		signup.POST("/client", h.SignupClient)
		signup.POST("/therapist", h.SignupTherapist)
	}
}

// login checks the credentials against the records of role and stores the
// signed credential in a cookie.
func (h *Handler) login(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.LoginRequest
		if !middleware.BindJSON(c, &req) {
			return
		}

		session, err := h.svc.Login(c.Request.Context(), role, req.Email, req.Password)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		access.SetCookie(c, session.Token, h.ttl, h.secureCookie)
		c.JSON(http.StatusOK, handler.NewSuccessResponse(session))
	}
}

func (h *Handler) Logout(c *gin.Context) {
	access.ClearCookie(c, h.secureCookie)
	c.JSON(http.StatusOK, handler.NewSuccessResponse("logged out successfully"))
}

func (h *Handler) SignupClient(c *gin.Context) {
	var req model.CreateClientRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	client, err := h.svc.RegisterClient(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(client))
}

func (h *Handler) SignupTherapist(c *gin.Context) {
	var req model.CreateTherapistRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	th, err := h.svc.RegisterTherapist(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(th))
}
