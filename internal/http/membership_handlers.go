package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-builders/sponsor-points-backend/internal/common/errors"
	"github.com/open-builders/sponsor-points-backend/internal/common/middleware"
	"github.com/open-builders/sponsor-points-backend/internal/service/sponsors"
)

type MembershipHandlers struct {
	users     UserService
	sponsors  SponsorService
	scheduler MembershipScheduler
}

func NewMembershipHandlers(users UserService, sponsors SponsorService, scheduler MembershipScheduler) *MembershipHandlers {
	return &MembershipHandlers{users: users, sponsors: sponsors, scheduler: scheduler}
}

func (h *MembershipHandlers) Register(r *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	r.GET("/users/me/memberships", h.getMyMemberships)

	admin := r.Group("/admin/membership", requireAdmin)
	admin.GET("/status", h.getStatus)
	admin.POST("/check", h.triggerCheck)
}

type MyMembershipsResponse struct {
	UserID      int64                     `json:"user_id"`
	Points      int64                     `json:"points"`
	Level       int                       `json:"level"`
	Memberships []sponsors.MembershipView `json:"memberships"`
}

// @Summary List my sponsor memberships
// @Description Sponsor channel memberships recorded for the caller, with the current point balance
// @Tags memberships
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} MyMembershipsResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /users/me/memberships [get]
func (h *MembershipHandlers) getMyMemberships(c *gin.Context) {
	userID := c.GetInt64(middleware.UserIDKey)
	if userID == 0 {
		middleware.Abort(c, errors.NewUnauthorizedError("Telegram init data required"))
		return
	}

	u, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		middleware.Abort(c, errors.NewDatabaseError("get user", err))
		return
	}
	if u == nil {
		middleware.Abort(c, errors.NewUserNotFoundError(userID))
		return
	}

	views, err := h.sponsors.UserMemberships(c.Request.Context(), userID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MyMembershipsResponse{
		UserID:      u.ID,
		Points:      u.Points,
		Level:       u.Level,
		Memberships: views,
	})
}

// @Summary Membership scheduler status
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} scheduler.Status
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 503 {object} middleware.ErrorResponse "Scheduler disabled"
// @Router /admin/membership/status [get]
func (h *MembershipHandlers) getStatus(c *gin.Context) {
	if h.scheduler == nil {
		middleware.Abort(c, errors.NewSchedulerDisabledError())
		return
	}
	c.JSON(http.StatusOK, h.scheduler.Status())
}

// @Summary Run a membership check now
// @Description Runs one reconciliation tick synchronously and returns its report
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} scheduler.TickReport
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse "A tick is already running"
// @Failure 503 {object} middleware.ErrorResponse "Scheduler disabled"
// @Router /admin/membership/check [post]
func (h *MembershipHandlers) triggerCheck(c *gin.Context) {
	if h.scheduler == nil {
		middleware.Abort(c, errors.NewSchedulerDisabledError())
		return
	}
	// The tick runs to completion even if the admin disconnects.
	report, err := h.scheduler.TriggerImmediateCheck(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
