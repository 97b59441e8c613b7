package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"socialfeed/internal/errmsg"
	"socialfeed/internal/models"
	"socialfeed/internal/toggle"
)

const flashCookie = "socialfeed_flash"

// flash is a one-shot toast carried across a redirect.
type flash struct {
	Kind    string `json:"k"`
	Message string `json:"m"`
}

func setFlash(c *fiber.Ctx, kind, message string) {
	raw, err := json.Marshal(flash{Kind: kind, Message: message})
	if err != nil {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// takeFlash returns the pending flash, if any, and clears it.
func takeFlash(c *fiber.Ctx) *flash {
	value := c.Cookies(flashCookie)
	if value == "" {
		return nil
	}
	c.ClearCookie(flashCookie)

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var f flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return nil
	}
	return &f
}

func wantsJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}

// back redirects to the page the form was posted from. Only the path of a
// same-host referer is honoured.
func back(c *fiber.Ctx, fallback string) error {
	target := fallback
	if ref := c.Get(fiber.HeaderReferer); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Host == string(c.Request().Host()) && strings.HasPrefix(u.Path, "/") {
			target = u.Path
			if u.RawQuery != "" {
				target += "?" + u.RawQuery
			}
		}
	}
	return c.Redirect(target, fiber.StatusSeeOther)
}

// statusFor maps an error to the HTTP status of the page or JSON reply.
func statusFor(err error) int {
	switch {
	case errors.Is(err, toggle.ErrPending):
		return fiber.StatusConflict
	case models.IsCode(err, models.CodeValidation):
		return fiber.StatusBadRequest
	case models.IsCode(err, models.CodeUnauthorized):
		return fiber.StatusUnauthorized
	case models.IsCode(err, models.CodeNotFound):
		return fiber.StatusNotFound
	case models.IsCode(err, models.CodeOperation):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusBadGateway
	}
}

func codeFor(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return models.CodeValidation
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		return models.CodeUnauthorized
	case fiber.StatusNotFound:
		return models.CodeNotFound
	case fiber.StatusConflict:
		return models.CodeConflict
	case fiber.StatusUnprocessableEntity:
		return models.CodeOperation
	default:
		return models.CodeInternal
	}
}

// userMessage is the toast text for a failed action.
func userMessage(err error) string {
	if errors.Is(err, toggle.ErrPending) {
		return "Please wait for the previous request to finish"
	}
	return errmsg.Message(err)
}

// respondError answers a failed action: JSON for scripts, otherwise a flash
// toast and a redirect back.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	status := statusFor(err)
	if wantsJSON(c) {
		return models.RespondWithError(c, status, codeFor(status), userMessage(err))
	}
	setFlash(c, "error", userMessage(err))
	return back(c, fallback)
}

// respondOK answers a successful action the same way.
func respondOK(c *fiber.Ctx, message, fallback string, payload any) error {
	if wantsJSON(c) {
		if payload == nil {
			payload = fiber.Map{"message": message}
		}
		return c.JSON(payload)
	}
	if message != "" {
		setFlash(c, "success", message)
	}
	return back(c, fallback)
}
