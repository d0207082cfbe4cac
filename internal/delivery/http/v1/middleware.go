package v1

import (
	"fmt"
	"net/http"
	"strings"

	"tasktimer/internal/db/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const actorCtxKey = "actor"

// Claims carry the acting user. Subject is the user UUID.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (h *Handler) HandleAuthMiddleware(c *gin.Context) {
	const authHeader = "Authorization"
	header := c.GetHeader(authHeader)
	if header == "" {
		h.logger.Warn().Msg("authorization header required")
		abort(c, newUnauthorizedError("authorization header required"))
		return
	}

	const bearerPrefix = "Bearer"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != bearerPrefix {
		h.logger.Warn().Msg("invalid authorization header")
		abort(c, newUnauthorizedError("invalid authorization header"))
		return
	}

	claims, err := h.parseJWTToken(parts[1])
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to parse token")
		abort(c, newUnauthorizedError("invalid token"))
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		h.logger.Warn().
			Str("sub", claims.Subject).
			Msg("token subject is not a user id")
		abort(c, newUnauthorizedError("invalid token"))
		return
	}

	c.Set(actorCtxKey, models.Actor{
		UserID: userID,
		Role:   models.ParseRole(claims.Role),
		Name:   claims.Name,
	})
	c.Next()
}

func (h *Handler) parseJWTToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return h.jwtSigningKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.jwtIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("failed to parse token claims")
	}
	return claims, nil
}

func actorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorCtxKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

func (h *Handler) mustActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		h.logger.Error().Msg("no actor found in context")
		c.AbortWithStatus(http.StatusUnauthorized)
	}
	return actor, ok
}
