package lib

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// MessageResponse returns a map with a message key for API responses
func MessageResponse(message string) fiber.Map {
	return fiber.Map{
		"message": message,
	}
}

// DataResponse wraps a payload in the {"data": ...} envelope
func DataResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"data": data,
	}
}

// GenerateJWT signs a token for the given account. Issuance belongs to the auth
// service; this is used by tests and the local tooling.
func GenerateJWT(secret string, userID uint, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"userId": userID,
		"exp":    time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyJWT checks the signature and expiry and returns the account id claim
func VerifyJWT(secret, tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token")
	}

	// JSON numbers decode as float64
	raw, ok := claims["userId"].(float64)
	if !ok || raw < 1 {
		return 0, errors.New("token has no userId")
	}
	return uint(raw), nil
}
