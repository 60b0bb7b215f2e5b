package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/MrEthical07/medconfirm/internal/repositories"
	"github.com/MrEthical07/medconfirm/jwt"
	"github.com/gin-gonic/gin"
)

const adminContextKey = "admin"

// AdminAuth verifies the provider bearer token and resolves the caller's
// admin row by the token's email claim.
func AdminAuth(verifier *jwt.Verifier, admins AdminAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("unauthorized", "Missing or invalid Authorization header"))
			return
		}

		claims, err := verifier.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("unauthorized", "Invalid or expired token"))
			return
		}

		admin, err := admins.Resolve(c.Request.Context(), claims.Email)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, errorBody("forbidden", "Not an administrator"))
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal_error", "Internal server error"))
			return
		}

		c.Set(adminContextKey, *admin)
		c.Next()
	}
}

// RequireSuperAdmin must run after AdminAuth.
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := currentAdmin(c)
		if !ok || !admin.IsSuperAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody("forbidden", "Super admin role required"))
			return
		}
		c.Next()
	}
}

func currentAdmin(c *gin.Context) (models.Admin, bool) {
	v, ok := c.Get(adminContextKey)
	if !ok {
		return models.Admin{}, false
	}
	admin, ok := v.(models.Admin)
	return admin, ok
}
