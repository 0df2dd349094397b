package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cate-nduta/Lash-Business-sub002/services/common/auth"
	apperrors "github.com/cate-nduta/Lash-Business-sub002/services/common/errors"
)

const (
	OperatorContextKey = "operator"
	RoleContextKey     = "role"
	AdminRole          = "admin"
)

// AdminAuth accepts a bearer access token (or the access_token cookie) whose
// role claim is admin.
func AdminAuth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(apperrors.ErrUnauthorized.Code, apperrors.ErrUnauthorized)
			return
		}

		claims, err := verifier.ParseAndValidateToken(token, "access")
		if err != nil {
			appErr := apperrors.ErrInvalidToken.Wrap(err)
			c.AbortWithStatusJSON(appErr.Code, appErr)
			return
		}

		role, _ := claims["role"].(string)
		if role != AdminRole {
			c.AbortWithStatusJSON(apperrors.ErrForbidden.Code, apperrors.New(apperrors.ErrForbidden.Code, "admin role required", nil))
			return
		}

		sub, _ := claims["sub"].(string)
		c.Set(OperatorContextKey, sub)
		c.Set(RoleContextKey, role)
		c.Next()
	}
}

// GetOperator returns the subject of the admin token, or "".
func GetOperator(c *gin.Context) string {
	if val, ok := c.Get(OperatorContextKey); ok {
		if sub, ok := val.(string); ok {
			return sub
		}
	}
	return ""
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if v, err := c.Cookie("access_token"); err == nil {
		return v
	}
	return ""
}
