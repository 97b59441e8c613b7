package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"socialfeed/internal/api"
	"socialfeed/internal/errmsg"
	"socialfeed/internal/featureflags"
	"socialfeed/internal/observability"
	"socialfeed/internal/validation"
)

func (s *Server) LoginPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "login", s.page(c, "Log in"))
}

// Login handles the sign-in form.
func (s *Server) Login(c *fiber.Ctx) error {
	var form validation.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}

	data := s.page(c, "Log in")
	data.Form["username"] = form.Username
	if errs := form.Validate(); !errs.OK() {
		data.Errors = errs
		return s.render(c, fiber.StatusUnprocessableEntity, "login", data)
	}

	ctx := c.UserContext()
	res, err := s.api.Login(ctx, strings.TrimSpace(form.Username), form.Password)
	if err != nil {
		data.Error = errmsg.Message(err)
		return s.render(c, statusFor(err), "login", data)
	}

	s.openSession(ctx, res, false)
	setFlash(c, "success", "Welcome back, "+res.User.Username+"!")
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *Server) RegisterPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "register", s.page(c, "Sign up"))
}

// Register handles the sign-up form. A successful registration signs the
// user in.
func (s *Server) Register(c *fiber.Ctx) error {
	var form validation.RegisterForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}

	data := s.page(c, "Sign up")
	data.Form["username"] = form.Username
	data.Form["email"] = form.Email
	if errs := form.Validate(); !errs.OK() {
		data.Errors = errs
		return s.render(c, fiber.StatusUnprocessableEntity, "register", data)
	}

	ctx := c.UserContext()
	res, err := s.api.Register(ctx, strings.TrimSpace(form.Username), strings.TrimSpace(form.Email), form.Password)
	if err != nil {
		data.Error = errmsg.Message(err)
		return s.render(c, statusFor(err), "register", data)
	}

	s.openSession(ctx, res, true)
	setFlash(c, "success", "Account created successfully!")
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *Server) ForgotPasswordPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "forgot_password", s.page(c, "Forgot password"))
}

func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var form validation.ForgotPasswordForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}

	data := s.page(c, "Forgot password")
	data.Form["email"] = form.Email
	if errs := form.Validate(); !errs.OK() {
		data.Errors = errs
		return s.render(c, fiber.StatusUnprocessableEntity, "forgot_password", data)
	}

	msg, err := s.api.RequestPasswordReset(c.UserContext(), strings.TrimSpace(form.Email))
	if err != nil {
		data.Error = errmsg.Message(err)
		return s.render(c, statusFor(err), "forgot_password", data)
	}
	if msg == "" {
		msg = "If an account exists for that email, a reset link has been sent."
	}
	setFlash(c, "success", msg)
	return c.Redirect("/login", fiber.StatusSeeOther)
}

func (s *Server) ResetPasswordPage(c *fiber.Ctx) error {
	data := s.page(c, "Reset password")
	data.Form["token"] = c.Query("token")
	if data.Form["token"] == "" {
		data.Errors.Add(validation.GeneralField, "Invalid or missing reset token")
	}
	return s.render(c, fiber.StatusOK, "reset_password", data)
}

func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var form validation.ResetPasswordForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}

	data := s.page(c, "Reset password")
	data.Form["token"] = form.Token
	if errs := form.Validate(); !errs.OK() {
		data.Errors = errs
		return s.render(c, fiber.StatusUnprocessableEntity, "reset_password", data)
	}

	msg, err := s.api.ResetPassword(c.UserContext(), form.Token, form.Password)
	if err != nil {
		data.Error = errmsg.Message(err)
		return s.render(c, statusFor(err), "reset_password", data)
	}
	if msg == "" {
		msg = "Password reset successfully. Please log in."
	}
	setFlash(c, "success", msg)
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// GoogleSignIn receives the ID token posted by Google's sign-in button in
// redirect mode. Google posts cross-site, so the request is verified with
// the double-submit g_csrf_token cookie instead of the origin check.
func (s *Server) GoogleSignIn(c *fiber.Ctx) error {
	if s.config.GoogleClientID == "" || !s.flagEnabled(featureflags.GoogleSignIn) {
		return fiber.ErrNotFound
	}

	cookieToken := c.Cookies("g_csrf_token")
	bodyToken := c.FormValue("g_csrf_token")
	if cookieToken == "" || subtle.ConstantTimeCompare([]byte(cookieToken), []byte(bodyToken)) != 1 {
		return fiber.NewError(fiber.StatusForbidden, "Failed to verify sign-in request")
	}

	credential := c.FormValue("credential")
	if credential == "" {
		setFlash(c, "error", "Google sign-in failed")
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	ctx := c.UserContext()
	res, err := s.api.GoogleSignIn(ctx, credential)
	if err != nil {
		setFlash(c, "error", errmsg.Message(err))
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	s.openSession(ctx, res, false)
	setFlash(c, "success", "Welcome, "+res.User.Username+"!")
	return c.Redirect("/", fiber.StatusSeeOther)
}

// Logout ends the session and forgets everything cached for it.
func (s *Server) Logout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := s.session.Logout(ctx); err != nil {
		observability.Logger.WarnContext(ctx, "logout could not clear storage", slog.String("error", err.Error()))
	}
	s.resetViewState()
	setFlash(c, "success", "You have been logged out.")
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// openSession stores the new identity. A storage failure leaves the session
// usable in memory, so it is only logged.
func (s *Server) openSession(ctx context.Context, res api.AuthResult, registered bool) {
	s.resetViewState()

	store := s.session.Login
	if registered {
		store = s.session.Register
	}
	if err := store(ctx, res.Token, res.RefreshToken, res.User); err != nil {
		observability.Logger.WarnContext(ctx, "persisting session failed", slog.String("error", err.Error()))
	}
}

// resetViewState drops data that belonged to the previous user.
func (s *Server) resetViewState() {
	s.feed.Reset()
	s.likes.Reset()
	s.follows.Reset()
	s.api.GraphQL().Cache().Clear()
}
