package client

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/renova-api/internal/access"
	"github.com/jwalitptl/renova-api/internal/handler"
	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/service/client"
	"github.com/jwalitptl/renova-api/internal/service/schedule"
	"github.com/jwalitptl/renova-api/pkg/httputil"
)

type Handler struct {
	svc      *client.Service
	resolver *access.Resolver
	loc      *time.Location
}

func NewHandler(svc *client.Service, resolver *access.Resolver, loc *time.Location) *Handler {
	return &Handler{svc: svc, resolver: resolver, loc: loc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	clients := r.Group("", access.Middleware(h.resolver, access.RequireRole(model.RoleClient)))
	{
		clients.GET("/home", h.Home)
		clients.GET("/booking", h.Booking)
		clients.GET("/booking/:therapist_id", h.BookingSchedule)
		clients.GET("/search_therapists", h.SearchTherapists)
		clients.GET("/open_blocks", h.OpenBlocks)
		clients.PUT("/appointments/:block_id", h.BookAppointment)
		clients.DELETE("/appointments/:block_id", h.DeleteAppointment)
		clients.POST("/appointments/:block_id/cancel", h.CancelAppointment)
	}
}

func (h *Handler) context(c *gin.Context) (*client.Context, bool) {
	ac, err := access.FromGin(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	cc, err := h.svc.For(c.Request.Context(), ac)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	return cc, true
}

type homeResponse struct {
	Client       *model.Client              `json:"client"`
	Appointments []*model.AppointmentDetail `json:"appointments"`
}

func (h *Handler) Home(c *gin.Context) {
	cc, ok := h.context(c)
	if !ok {
		return
	}

	appointments, err := cc.Appointments(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(homeResponse{
		Client:       cc.Client(),
		Appointments: appointments,
	}))
}

type bookingResponse struct {
	Client     *model.Client      `json:"client"`
	Therapists []*model.Therapist `json:"therapists"`
}

func (h *Handler) Booking(c *gin.Context) {
	cc, ok := h.context(c)
	if !ok {
		return
	}

	therapists, err := cc.FindTherapists(c.Request.Context(), "")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(bookingResponse{
		Client:     cc.Client(),
		Therapists: therapists,
	}))
}

func (h *Handler) SearchTherapists(c *gin.Context) {
	cc, ok := h.context(c)
	if !ok {
		return
	}

	therapists, err := cc.FindTherapists(c.Request.Context(), c.Query("search"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(therapists))
}

type scheduleResponse struct {
	Therapist *model.Therapist `json:"therapist"`
	Week      *schedule.Week   `json:"week"`
}

func (h *Handler) BookingSchedule(c *gin.Context) {
	therapistID, err := handler.ParamID(c, "therapist_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	day, err := handler.QueryDate(c, "date", h.loc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cc, ok := h.context(c)
	if !ok {
		return
	}

	th, err := cc.GetTherapist(c.Request.Context(), therapistID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	week, err := cc.WeekBlocks(c.Request.Context(), therapistID, day)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(scheduleResponse{Therapist: th, Week: week}))
}

func (h *Handler) OpenBlocks(c *gin.Context) {
	therapistID, err := handler.QueryID(c, "therapist_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cc, ok := h.context(c)
	if !ok {
		return
	}

	blocks, err := cc.OpenBlocks(c.Request.Context(), therapistID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(blocks))
}

func (h *Handler) BookAppointment(c *gin.Context) {
	blockID, err := handler.ParamID(c, "block_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cc, ok := h.context(c)
	if !ok {
		return
	}

	appt, err := cc.BookAppointment(c.Request.Context(), blockID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appt))
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	blockID, err := handler.ParamID(c, "block_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cc, ok := h.context(c)
	if !ok {
		return
	}

	appt, err := cc.CancelBlockAppointment(c.Request.Context(), blockID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	blockID, err := handler.ParamID(c, "block_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cc, ok := h.context(c)
	if !ok {
		return
	}

	if err := cc.DeleteAppointment(c.Request.Context(), blockID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
