package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openshelf/library_backend/utils"
)

// AuthMiddleware resolves stateless JWT credentials from the Authorization
// header or the access_token cookie. A session already resolved by
// SessionMiddleware wins; requests carrying neither credential pass through
// anonymously and are rejected per-route.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetSessionSourceFromContext(c.Request.Context()); ok {
			c.Next()
			return
		}

		auth := c.Request.Header.Get("Authorization")
		token := ""
		if strings.HasPrefix(auth, "Bearer ") {
			token = auth[len("Bearer "):]
		} else if cookie, err := c.Cookie("access_token"); err == nil {
			token = cookie
		}
		if token == "" {
			c.Next()
			return
		}

		validate, err := utils.JwtValidate(token)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), claim.UserId)
		ctx = utils.SetIsAdminInContext(ctx, claim.IsAdmin)
		ctx = utils.SetPackageTypeInContext(ctx, claim.PackageType)
		ctx = utils.SetSessionSourceInContext(ctx, "jwt")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
