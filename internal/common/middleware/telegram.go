package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/open-builders/sponsor-points-backend/internal/common/errors"
)

const (
	InitDataHeader = "X-Telegram-Init-Data"
	InitDataQuery  = "init_data"

	TelegramUserKey = "tg_user"
)

// InitData validates Telegram Mini Apps init-data signed with the bot token and stores the
// parsed initdata.User under TelegramUserKey. expIn of 0 disables the age check.
func InitData(token string, expIn time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			Abort(c, errors.New(errors.ErrCodeInternal, "init-data validation is not configured"))
			return
		}

		raw := c.GetHeader(InitDataHeader)
		if raw == "" {
			raw = c.Query(InitDataQuery)
		}
		if raw == "" {
			Abort(c, errors.NewUnauthorizedError("Telegram init data required"))
			return
		}

		if err := initdata.Validate(raw, token, expIn); err != nil {
			Abort(c, errors.Wrap(err, errors.ErrCodeUnauthorized, "Invalid init data"))
			return
		}

		parsed, err := initdata.Parse(raw)
		if err != nil {
			Abort(c, errors.Wrap(err, errors.ErrCodeBadRequest, "Invalid init data format"))
			return
		}
		if parsed.User.ID == 0 {
			Abort(c, errors.NewUnauthorizedError("init data carries no user"))
			return
		}

		c.Set(TelegramUserKey, parsed.User)
		c.Next()
	}
}

// TelegramUser returns the user stored by InitData.
func TelegramUser(c *gin.Context) (initdata.User, bool) {
	v, ok := c.Get(TelegramUserKey)
	if !ok {
		return initdata.User{}, false
	}
	u, ok := v.(initdata.User)
	return u, ok
}
