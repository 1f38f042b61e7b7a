// internal/middleware/auth.go
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"github.com/tarksober/license-backend/internal/i18n"
	"github.com/tarksober/license-backend/internal/utils"
)

// AuthRequired admits requests bearing a valid identity provider token and
// exposes the caller's id and email to handlers.
func AuthRequired(verifier *utils.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		identity, err := verifier.Verify(parts[1])
		if err != nil {
			if !errors.Is(err, utils.ErrInvalidToken) && !isExpired(err) {
				logrus.WithError(err).Debug("Rejected access token")
			}
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
			c.Abort()
			return
		}

		c.Set(utils.ContextKeyUserID, identity.UserID)
		c.Set(utils.ContextKeyUserEmail, identity.Email)
		c.Next()
	}
}

func isExpired(err error) bool {
	var validationErr *jwt.ValidationError
	return errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0
}
