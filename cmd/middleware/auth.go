package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"

	"regportal/internal/auth"
	"regportal/internal/dto"
	"regportal/internal/model"
)

// AdminOnly lets a request through only with a valid bearer token whose role
// is admin.
func AdminOnly(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *ginext.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(tokenStr) == "" {
			dto.ErrorResponse(c, http.StatusUnauthorized, dto.Unauthenticated, "Authentication required")
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(tokenStr))
		if err != nil {
			dto.ErrorResponse(c, http.StatusUnauthorized, dto.Unauthenticated, "Invalid or expired token")
			return
		}
		if claims.Role != model.RoleAdmin {
			dto.ErrorResponse(c, http.StatusForbidden, dto.Forbidden, "Unauthorized access")
			return
		}

		auth.WithClaims(c, claims)
		c.Next()
	}
}
