package service

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

// AuthService gates mutating admin endpoints (the manual run trigger) behind
// a TOTP code. An empty secret disables the check, which is the expected
// state for local single-operator setups.
type AuthService struct {
	logger     *zap.Logger
	totpSecret string
}

func NewAuthService(logger *zap.Logger, totpSecret string) *AuthService {
	return &AuthService{
		logger:     logger,
		totpSecret: totpSecret,
	}
}

// GenerateSecret produces a fresh TOTP secret for operator enrollment.
func (a *AuthService) GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Reelcast Admin",
		AccountName: "admin",
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	return key.Secret(), nil
}

func (a *AuthService) ValidateToken(token string) bool {
	valid := totp.Validate(token, a.totpSecret)
	if !valid {
		a.logger.Warn("TOTP token validation failed")
	}
	return valid
}

// Middleware rejects requests without a valid X-Auth-Token header. No-op
// when no secret is configured.
func (a *AuthService) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.totpSecret == "" {
			c.Next()
			return
		}

		if !a.ValidateToken(c.GetHeader("X-Auth-Token")) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		c.Next()
	}
}
