package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/utils"
)

// SessionMiddleware resolves the opaque session token issued at login. The
// token maps to a Redis entry "Token:<token>" holding the session payload.
// Requests without a token header pass through untouched so the JWT
// middleware can have a go at them.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		var session utils.SessionData
		exists, err := config.GetRedisObject("Token:"+token, &session)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUserIdInContext(ctx, session.UserId)
		ctx = utils.SetUserNameInContext(ctx, session.UserName)
		ctx = utils.SetIsAdminInContext(ctx, session.IsAdmin)
		ctx = utils.SetPackageTypeInContext(ctx, session.PackageType)
		ctx = utils.SetSessionSourceInContext(ctx, "session")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
