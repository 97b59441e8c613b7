// Package server is the local web UI: server-rendered pages for the feed,
// posts, profiles and the auth flows, backed by the GraphQL API client.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"socialfeed/internal/api"
	"socialfeed/internal/config"
	"socialfeed/internal/errmsg"
	"socialfeed/internal/featureflags"
	"socialfeed/internal/feed"
	"socialfeed/internal/graphql"
	"socialfeed/internal/middleware"
	"socialfeed/internal/models"
	"socialfeed/internal/observability"
	"socialfeed/internal/session"
	"socialfeed/internal/toggle"
)

const googleCallbackPath = "/auth/google"

// Server holds the page handlers and everything they share.
type Server struct {
	config         *config.Config
	api            *api.Client
	session        *session.Store
	feed           *feed.Feed
	likes          *toggle.Registry
	follows        *toggle.Registry
	featureFlags   *featureflags.Manager
	promMiddleware *fiberprometheus.FiberPrometheus
	views          *views
	app            *fiber.App
	now            func() time.Time
}

// NewServer wires the UI around an API client, the session and the feed.
func NewServer(cfg *config.Config, client *api.Client, sess *session.Store, f *feed.Feed) (*Server, error) {
	s := &Server{
		config:         cfg,
		api:            client,
		session:        sess,
		feed:           f,
		likes:          toggle.NewRegistry("like"),
		follows:        toggle.NewRegistry("follow"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		promMiddleware: middleware.InitMetrics("socialfeed"),
		now:            time.Now,
	}

	v, err := loadViews(s.templateFuncs())
	if err != nil {
		return nil, err
	}
	s.views = v

	s.app = fiber.New(fiber.Config{
		AppName:      "socialfeed",
		ErrorHandler: s.errorHandler,
		BodyLimit:    (cfg.AvatarMaxUploadMB + 1) << 20,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)
	return s, nil
}

// App returns the fiber app, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	return s.app.Listen(s.config.Addr())
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}
	app.Use(helmet.New(helmet.Config{
		CrossOriginEmbedderPolicy: "unsafe-none",
		CrossOriginOpenerPolicy:   "same-origin-allow-popups",
		ReferrerPolicy:            "same-origin",
	}))
	app.Use(middleware.StructuredLogger())
	app.Use(middleware.SameOrigin(googleCallbackPath))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Public auth pages
	app.Get("/login", s.guestOnly, s.LoginPage)
	app.Post("/login", s.Login)
	app.Get("/register", s.guestOnly, s.RegisterPage)
	app.Post("/register", s.Register)
	app.Get("/forgot-password", s.ForgotPasswordPage)
	app.Post("/forgot-password", s.ForgotPassword)
	app.Get("/reset-password", s.ResetPasswordPage)
	app.Post("/reset-password", s.ResetPassword)
	app.Post(googleCallbackPath, s.GoogleSignIn)
	app.Post("/logout", s.Logout)

	protected := app.Group("", s.requireSession)

	protected.Get("/", s.FeedPage)
	protected.Post("/feed/more", s.LoadMore)

	posts := protected.Group("/posts")
	posts.Post("/", s.CreatePost)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Post("/:id/like", s.LikePost)
	posts.Post("/:id/share", s.SharePost)
	posts.Post("/:id/repost", s.RepostPost)
	posts.Post("/:id/quote", s.QuotePost)
	posts.Post("/:id/comments", s.CreateComment)
	posts.Get("/:id", s.freshReads, s.PostPage)

	protected.Get("/profile", s.freshReads, s.ProfilePage)
	protected.Post("/profile", s.UpdateProfile)

	users := protected.Group("/user")
	users.Post("/:username/follow", s.FollowUser)
	users.Post("/:username/unfollow", s.UnfollowUser)
	users.Get("/:username", s.freshReads, s.UserPage)
}

// HealthCheck reports liveness and whether a session is active.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":        "up",
		"time":          s.now(),
		"authenticated": s.session.IsAuthenticated(),
	})
}

// requireSession sends visitors without a session to the login page. An
// expired access token is refreshed first; a failed refresh is only logged
// and the server's answer decides.
func (s *Server) requireSession(c *fiber.Ctx) error {
	if s.session.IsAuthenticated() {
		ctx := c.UserContext()
		if _, err := s.session.RefreshIfExpired(ctx, s.now(), s.api.RefreshToken); err != nil {
			observability.Logger.WarnContext(ctx, "token refresh failed", slog.String("error", err.Error()))
		}
		return c.Next()
	}
	if wantsJSON(c) {
		return models.RespondWithError(c, fiber.StatusUnauthorized, models.CodeUnauthorized, "Please log in")
	}
	return c.Redirect("/login", fiber.StatusSeeOther)
}

func (s *Server) guestOnly(c *fiber.Ctx) error {
	if s.session.IsAuthenticated() {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Next()
}

// freshReads makes a page load ask the server instead of answering from the
// response cache.
func (s *Server) freshReads(c *fiber.Ctx) error {
	c.SetUserContext(graphql.WithNetworkOnly(c.UserContext()))
	return c.Next()
}

// errorHandler renders unhandled errors as the error page, or JSON for
// script requests.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status, message := statusFor(err), errmsg.Message(err)

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status, message = fe.Code, fe.Message
	}

	if wantsJSON(c) {
		return models.RespondWithError(c, status, codeFor(status), message)
	}
	data := s.page(c, "Error")
	data.Error = message
	return s.render(c, status, "error", data)
}
