package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/persona-chat/internal/auth"
	"github.com/suPer8Hu/persona-chat/internal/common"
)

const (
	APIKeyHeader = "X-API-Key"
	SubjectKey   = "auth_subject"
)

// AuthRequired accepts either the shared API key or a bearer token signed with
// it. jwtSecret may be empty, which disables bearer tokens.
func AuthRequired(keys *auth.KeyChecker, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(APIKeyHeader); key != "" {
			if err := keys.Check(key); err != nil {
				common.Fail(c, http.StatusUnauthorized, "invalid credential")
				return
			}
			c.Set(SubjectKey, "api-key")
			c.Next()
			return
		}

		h := c.GetHeader("Authorization")
		if jwtSecret == "" || !strings.HasPrefix(h, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, "missing credential")
			return
		}
		claims, err := auth.ParseJWT(strings.TrimPrefix(h, "Bearer "), jwtSecret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, "invalid credential")
			return
		}
		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}
