package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/open-builders/sponsor-points-backend/internal/common/errors"
)

// RequireAdmin lets through only Telegram users listed in adminIDs. Must run after InitData.
func RequireAdmin(adminIDs []int64) gin.HandlerFunc {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}

	return func(c *gin.Context) {
		tgUser, ok := TelegramUser(c)
		if !ok {
			Abort(c, errors.NewUnauthorizedError("Telegram init data required"))
			return
		}
		if _, ok := admins[tgUser.ID]; !ok {
			Abort(c, errors.NewForbiddenError("admin access required"))
			return
		}
		c.Next()
	}
}
