package middleware

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"control-advisor/internal/models"
)

const (
	SessionUserID = "user_id"
	SessionRole   = "role"

	currentUserKey = "CurrentUser"
)

type UserFinder interface {
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
}

// InjectUser подгружает пользователя из сессии; удалённый пользователь
// просто не попадает в контекст.
func InjectUser(users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if uidRaw := sess.Get(SessionUserID); uidRaw != nil {
			if uid, ok := uidRaw.(uint); ok && uid > 0 {
				if user, err := users.FindUserByID(c.Request.Context(), uid); err == nil {
					c.Set(currentUserKey, *user)
				}
			}
		}

		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
