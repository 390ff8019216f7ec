package auth

import "github.com/gin-gonic/gin"

const claimsKey = "auth.claims"

// WithClaims stores verified token claims on the request context.
func WithClaims(c *gin.Context, claims *Claims) {
	c.Set(claimsKey, claims)
}

func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok && claims != nil
}
