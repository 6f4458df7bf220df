package httpapi

import (
	"github.com/gofiber/fiber/v3"

	"github.com/clarimed/auditchain/internal/domain"
)

// Header set by the platform's authenticating gateway. Requests reach this
// service only after authentication; the middleware lifts the identity
// into the request context.
const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// PrincipalMiddleware extracts the authenticated principal and stores it
// in the request context. Mutating endpoints reject requests without one.
func PrincipalMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		actorID := c.Get(headerActorID)
		if actorID != "" {
			ctx := domain.WithPrincipal(c.Context(), domain.Principal{
				ID:   actorID,
				Role: c.Get(headerActorRole),
			})
			c.SetContext(ctx)
		}
		return c.Next()
	}
}

// RequirePrincipal rejects requests that carry no authenticated identity.
func RequirePrincipal() fiber.Handler {
	return func(c fiber.Ctx) error {
		if _, ok := domain.PrincipalFromContext(c.Context()); !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authenticated principal required",
			})
		}
		return c.Next()
	}
}
