package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/open-builders/sponsor-points-backend/internal/common/errors"
	"github.com/open-builders/sponsor-points-backend/internal/common/middleware"
	"github.com/open-builders/sponsor-points-backend/internal/service/sponsors"
)

type SponsorHandlers struct {
	sponsors SponsorService
}

func NewSponsorHandlers(sponsors SponsorService) *SponsorHandlers {
	return &SponsorHandlers{sponsors: sponsors}
}

func (h *SponsorHandlers) Register(r *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	admin := r.Group("/admin/sponsors", requireAdmin)
	admin.GET("", h.list)
	admin.POST("", h.create)
	admin.DELETE("/:id", h.deactivate)
	admin.POST("/:id/audit", h.audit)
}

// @Summary List sponsor channels
// @Tags sponsors
// @Produce json
// @Security TelegramInitData
// @Param limit query int false "Page size" default(100)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} sponsor.Channel
// @Failure 403 {object} middleware.ErrorResponse
// @Router /admin/sponsors [get]
func (h *SponsorHandlers) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.sponsors.List(c.Request.Context(), limit, offset)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Register a sponsor channel
// @Description Title and username are taken from Telegram when the bot can read the channel
// @Tags sponsors
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param channel body sponsors.CreateInput true "Channel"
// @Success 201 {object} sponsor.Channel
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse "Already registered"
// @Router /admin/sponsors [post]
func (h *SponsorHandlers) create(c *gin.Context) {
	var in sponsors.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Abort(c, errors.Wrap(err, errors.ErrCodeBadRequest, "Invalid request body"))
		return
	}

	ch, err := h.sponsors.Create(c.Request.Context(), in)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// @Summary Deactivate a sponsor channel
// @Description Soft delete: the channel stops being checked, recorded memberships are kept
// @Tags sponsors
// @Security TelegramInitData
// @Param id path int true "Sponsor channel ID"
// @Success 204
// @Failure 404 {object} middleware.ErrorResponse
// @Router /admin/sponsors/{id} [delete]
func (h *SponsorHandlers) deactivate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.sponsors.Deactivate(c.Request.Context(), id); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Audit bot access to a sponsor channel
// @Tags sponsors
// @Produce json
// @Security TelegramInitData
// @Param id path int true "Sponsor channel ID"
// @Success 200 {object} sponsor.Channel
// @Failure 404 {object} middleware.ErrorResponse
// @Router /admin/sponsors/{id}/audit [post]
func (h *SponsorHandlers) audit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ch, err := h.sponsors.Audit(c.Request.Context(), id)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.Abort(c, errors.NewValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}
