// internal/api/middleware/auth.go
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"sped-service/internal/api/responses"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextUserKey holds the authenticated username in the gin context.
const ContextUserKey = "username"

// Claims mirrors the tokens issued by the auth service.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

var errMissingBearer = errors.New("token de acesso ausente")

// RequireJWT validates HS256 bearer tokens signed with secret. An empty secret
// disables the check.
func RequireJWT(secret []byte) gin.HandlerFunc {
	if len(secret) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(c *gin.Context) {
		claims, err := parseBearer(parser, c.GetHeader("Authorization"), secret)
		if err != nil {
			responses.Error(c, http.StatusUnauthorized, "Não autorizado", err.Error())
			c.Abort()
			return
		}
		c.Set(ContextUserKey, claims.Username)
		c.Next()
	}
}

func parseBearer(parser *jwt.Parser, header string, secret []byte) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errMissingBearer
	}

	claims := &Claims{}
	_, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
