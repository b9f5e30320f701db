package jwtPkg

import (
	"DriverWatch/internal/entity"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const DriverLocalsKey = "driver"

func Sign(secret string, data map[string]interface{}, expiresIn time.Duration) (string, int64, error) {
	if secret == "" {
		return "", 0, errors.New("JWT secret not configured")
	}

	expiredAt := time.Now().Add(expiresIn).Unix()

	claims := jwt.MapClaims{}
	for k, v := range data {
		claims[k] = v
	}
	claims["exp"] = expiredAt

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString([]byte(secret))
	if err != nil {
		logrus.WithError(err).Error("Failed to sign token")
		return "", 0, err
	}

	return accessToken, expiredAt, nil
}

func VerifyTokenHeader(c *fiber.Ctx, secret string) (*jwt.Token, error) {
	header := c.Get("Authorization")
	if header == "" {
		return nil, errors.New("empty Authorization header")
	}

	accessToken, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return nil, errors.New("invalid Authorization format")
	}

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, errors.New("empty token")
	}

	if secret == "" {
		return nil, errors.New("JWT secret not configured")
	}

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	return token, nil
}

// DriverFromClaims requires a non-empty driver_id claim.
func DriverFromClaims(token *jwt.Token) (entity.DriverIdentity, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return entity.DriverIdentity{}, errors.New("invalid token claims")
	}

	driverID, _ := claims["driver_id"].(string)
	if driverID == "" {
		return entity.DriverIdentity{}, errors.New("token is missing driver_id")
	}
	vehicleID, _ := claims["vehicle_id"].(string)

	return entity.DriverIdentity{DriverID: driverID, VehicleID: vehicleID}, nil
}

func GetDriver(c *fiber.Ctx) (entity.DriverIdentity, error) {
	driver, ok := c.Locals(DriverLocalsKey).(entity.DriverIdentity)
	if !ok {
		return entity.DriverIdentity{}, fiber.ErrUnauthorized
	}
	return driver, nil
}
