package middleware

import (
	"net/url"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"socialfeed/internal/models"
)

// SameOrigin rejects state-changing requests sent from another site. The UI
// holds the only session on the machine, so a foreign page must not be able
// to post forms to it. Paths in exempt do their own verification.
func SameOrigin(exempt ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		if slices.Contains(exempt, c.Path()) {
			return c.Next()
		}

		if site := c.Get("Sec-Fetch-Site"); site == "cross-site" || site == "same-site" {
			return forbidden(c)
		}
		if origin := c.Get(fiber.HeaderOrigin); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || !strings.EqualFold(u.Host, string(c.Request().Host())) {
				return forbidden(c)
			}
		}
		return c.Next()
	}
}

func forbidden(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusForbidden, models.CodeUnauthorized, "Cross-site request rejected")
}
