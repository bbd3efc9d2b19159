package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/open-builders/sponsor-points-backend/internal/common/errors"
	"github.com/open-builders/sponsor-points-backend/internal/domain/user"
)

const UserIDKey = "user_id"

type UserEnsurer interface {
	EnsureTelegramUser(ctx context.Context, telegramID int64, username string) (*user.User, error)
}

// AutoCreateUser binds the Telegram caller to a platform user, creating it on first visit,
// and stores the internal id under UserIDKey.
func AutoCreateUser(users UserEnsurer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tgUser, ok := TelegramUser(c)
		if !ok {
			c.Next()
			return
		}

		u, err := users.EnsureTelegramUser(c.Request.Context(), tgUser.ID, tgUser.Username)
		if err != nil {
			Abort(c, errors.NewDatabaseError("ensure telegram user", err))
			return
		}

		c.Set(UserIDKey, u.ID)
		c.Next()
	}
}
