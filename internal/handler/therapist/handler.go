package therapist

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/renova-api/internal/access"
	"github.com/jwalitptl/renova-api/internal/handler"
	"github.com/jwalitptl/renova-api/internal/middleware"
	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/service/schedule"
	"github.com/jwalitptl/renova-api/internal/service/therapist"
	"github.com/jwalitptl/renova-api/pkg/errors"
	"github.com/jwalitptl/renova-api/pkg/httputil"
)

// LoginPath is returned to unauthenticated dashboard visitors
const LoginPath = "/dashboard/login"

type Handler struct {
	svc      *therapist.Service
	resolver *access.Resolver
	loc      *time.Location
}

func NewHandler(svc *therapist.Service, resolver *access.Resolver, loc *time.Location) *Handler {
	return &Handler{svc: svc, resolver: resolver, loc: loc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", access.Middleware(h.resolver, access.Optional), h.Dashboard)

	therapists := r.Group("", access.Middleware(h.resolver, access.RequireRole(model.RoleTherapist)))
	{
		therapists.POST("/schedule", h.CreateScheduleBlock)
		therapists.PUT("/schedule/:block_id", h.UpdateScheduleBlock)
		therapists.PUT("/schedule/:block_id/confirm", h.ConfirmAppointment)
		therapists.DELETE("/schedule/:block_id", h.DeleteScheduleBlock)
		therapists.POST("/schedule/:block_id/appointment", h.CreateAppointment)
		therapists.GET("/appointments", h.ListAppointments)
	}

	// Any signed-in user reaches the handler; the therapist check happens
	// when the context is bound.
	r.PUT("/clients/:client_id/patient_file",
		access.Middleware(h.resolver, access.Authenticated), h.UpdatePatientFile)
}

func (h *Handler) context(c *gin.Context) (*therapist.Context, bool) {
	ac, err := access.FromGin(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	tc, err := h.svc.For(c.Request.Context(), ac)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	return tc, true
}

type dashboardResponse struct {
	Therapist *model.Therapist `json:"therapist"`
	Week      *schedule.Week   `json:"week"`
}

// Dashboard renders the therapist's week. Visitors without a credential
// get a 401 pointing at the login endpoint.
func (h *Handler) Dashboard(c *gin.Context) {
	ac, err := access.FromGin(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !ac.Authenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, handler.Response{
			Status:  httputil.StatusError,
			Message: "login required",
			Data:    gin.H{"login": LoginPath},
		})
		return
	}

	day, err := handler.QueryDate(c, "date", h.loc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	tc, ok := h.context(c)
	if !ok {
		return
	}

	week, err := tc.WeekBlocks(c.Request.Context(), day)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(dashboardResponse{
		Therapist: tc.Therapist(),
		Week:      week,
	}))
}

func (h *Handler) CreateScheduleBlock(c *gin.Context) {
	var req model.CreateScheduleBlockRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	tc, ok := h.context(c)
	if !ok {
		return
	}

	var (
		block *model.ScheduleBlock
		err   error
	)
	switch {
	case req.StartAt != nil:
		block, err = tc.CreateScheduleBlock(c.Request.Context(), *req.StartAt)
	case req.Weekday != nil && req.Hour != nil:
		block, err = tc.CreateScheduleBlockAt(c.Request.Context(), time.Weekday(*req.Weekday), *req.Hour, req.Date)
	default:
		err = errors.BadRequest("either start_at or weekday and hour are required", nil)
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(block))
}

func (h *Handler) UpdateScheduleBlock(c *gin.Context) {
	blockID, err := handler.ParamID(c, "block_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.UpdateScheduleBlockRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	tc, ok := h.context(c)
	if !ok {
		return
	}

	block, err := tc.UpdateScheduleBlock(c.Request.Context(), blockID, req.StartAt, req.EndAt)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(block))
}

func (h *Handler) ConfirmAppointment(c *gin.Context) {
	blockID, err := handler.ParamID(c, "block_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	tc, ok := h.context(c)
	if !ok {
		return
	}

	appt, err := tc.ConfirmBlockAppointment(c.Request.Context(), blockID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) DeleteScheduleBlock(c *gin.Context) {
	blockID, err := handler.ParamID(c, "block_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	tc, ok := h.context(c)
	if !ok {
		return
	}

	if err := tc.DeleteScheduleBlock(c.Request.Context(), blockID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	blockID, err := handler.ParamID(c, "block_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreateAppointmentRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	tc, ok := h.context(c)
	if !ok {
		return
	}

	appt, err := tc.CreateAppointment(c.Request.Context(), blockID, req.ClientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appt))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	tc, ok := h.context(c)
	if !ok {
		return
	}

	appointments, err := tc.Appointments(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) UpdatePatientFile(c *gin.Context) {
	clientID, err := handler.ParamID(c, "client_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.PatientFileInput
	if !middleware.BindJSON(c, &req) {
		return
	}

	tc, ok := h.context(c)
	if !ok {
		return
	}

	file, err := tc.UpdatePatientFile(c.Request.Context(), clientID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(file))
}
