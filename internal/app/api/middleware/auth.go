package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"

	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/response"
)

const (
	GinUserIDKey = "user_id"
	GinRoleKey   = "role"
)

// Claims are the bearer token claims. Subject is the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.StandardClaims
}

var errNoBearer = errors.New("missing bearer token")

func parseBearer(header string, secret []byte) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errNoBearer
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse bearer token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("bearer token has no subject")
	}
	return claims, nil
}

// AuthMiddleware requires an HS256 bearer token and stores its subject and
// role in gin.Context and the request context.
func AuthMiddleware(cfg *config.Config, log *zap.SugaredLogger) gin.HandlerFunc {
	secret := []byte(cfg.Auth.JWTSecret)
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
			return
		}
		claims, err := parseBearer(c.GetHeader("Authorization"), secret)
		if err != nil {
			logctx.FromGin(c, log).Infow("bearer rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
			return
		}
		c.Set(GinUserIDKey, claims.Subject)
		c.Set(GinRoleKey, claims.Role)
		c.Request = c.Request.WithContext(logctx.WithUserID(c.Request.Context(), claims.Subject))
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role is not role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(GinRoleKey) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorT[any](response.APIResponseCodeForbidden, nil))
			return
		}
		c.Next()
	}
}

// Token signs an HS256 token for subject. Used by tests and local tooling.
func Token(secret, subject, role string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role:           role,
		StandardClaims: jwt.StandardClaims{Subject: subject},
	}).SignedString([]byte(secret))
}
