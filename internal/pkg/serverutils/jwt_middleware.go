package serverutils

import (
	"fmt"
	"strings"

	"marketplace-chat-be/internal/entity"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const LocalsUserID = "user_id"

// BearerToken reads the token from the Authorization header, falling back to
// the "token" query parameter (browsers cannot set headers on a websocket handshake).
func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

// ParseUserToken validates an HMAC-signed token and returns its user_id claim.
func ParseUserToken(tokenStr, secret string) (uuid.UUID, error) {
	if tokenStr == "" {
		return uuid.Nil, fmt.Errorf("%w: missing token", entity.ErrUnauthorized)
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		// Ensure Signing Method is HMAC
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: invalid token", entity.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: invalid claims", entity.ErrUnauthorized)
	}
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: token missing user_id", entity.ErrUnauthorized)
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: invalid user id in token", entity.ErrUnauthorized)
	}
	return userID, nil
}

func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		userID, err := ParseUserToken(BearerToken(ctx), secret)
		if err != nil {
			return err
		}
		ctx.Locals(LocalsUserID, userID)
		return ctx.Next()
	}
}

// CurrentUserID is the identity set by JwtMiddleware.
func CurrentUserID(ctx *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := ctx.Locals(LocalsUserID).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, entity.ErrUnauthorized
	}
	return userID, nil
}
