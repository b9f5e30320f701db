package middleware

import (
	jwtPkg "DriverWatch/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type tokenMiddleware struct {
	enabled bool
	secret  string
}

func newTokenMiddleware(enabled bool, secret string) *tokenMiddleware {
	return &tokenMiddleware{enabled: enabled, secret: secret}
}

// NewTokenMiddleware requires a bearer token carrying a driver_id claim
// when authentication is enabled, and is a no-op otherwise.
func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	if !m.token.enabled {
		return ctx.Next()
	}

	userToken, err := jwtPkg.VerifyTokenHeader(ctx, m.token.secret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"path":      ctx.Path(),
			"client_ip": ctx.IP(),
			"error":     err.Error(),
		}).Warn("Token verification failed")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, access token invalid or expired",
			"code":  "UNAUTHORIZED",
		})
	}

	driver, err := jwtPkg.DriverFromClaims(userToken)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"path":  ctx.Path(),
			"error": err.Error(),
		}).Warn("Token claims check")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, access token invalid or expired",
			"code":  "UNAUTHORIZED",
		})
	}

	ctx.Locals(jwtPkg.DriverLocalsKey, driver)
	return ctx.Next()
}
