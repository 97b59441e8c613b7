package server

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"socialfeed/internal/api"
	"socialfeed/internal/avatar"
	"socialfeed/internal/errmsg"
	"socialfeed/internal/models"
	"socialfeed/internal/observability"
	"socialfeed/internal/toggle"
	"socialfeed/internal/validation"
)

type profileView struct {
	User *models.User
}

type userView struct {
	User      *models.User
	IsSelf    bool
	Follow    toggle.Value
	Pending   bool
	Followers []models.User
	Following []models.User
	Cards     []postCard
}

// ProfilePage shows the viewer's own profile with the edit form.
func (s *Server) ProfilePage(c *fiber.Ctx) error {
	data := s.page(c, "Profile")
	u := s.profileUser(c.UserContext(), data)
	if p := u.Profile; p != nil {
		data.Form["bio"] = p.Bio
		data.Form["location"] = p.Location
		data.Form["date_of_birth"] = p.DateOfBirth
	}
	data.Data = profileView{User: u}
	return s.render(c, fiber.StatusOK, "profile", data)
}

// profileUser fetches the viewer's profile, falling back to the session
// copy when the server cannot be reached.
func (s *Server) profileUser(ctx context.Context, data *pageData) *models.User {
	u, err := s.api.MyProfile(ctx)
	if err == nil {
		return u
	}
	data.Error = errmsg.Message(err)
	if viewer := s.session.CurrentUser(); viewer != nil {
		return viewer
	}
	return &models.User{}
}

// UpdateProfile saves the text fields and, if one was chosen, a new
// picture. The picture is cropped and re-encoded before upload.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var form validation.ProfileForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}
	ctx := c.UserContext()

	errs := form.Validate(s.now())
	picture, err := s.readPicture(c)
	errs.AddError("profile_picture", err)
	if !errs.OK() {
		data := s.page(c, "Profile")
		data.Errors = errs
		data.Form["bio"] = form.Bio
		data.Form["location"] = form.Location
		data.Form["date_of_birth"] = form.DateOfBirth
		data.Data = profileView{User: s.profileUser(ctx, data)}
		return s.render(c, fiber.StatusUnprocessableEntity, "profile", data)
	}

	profile, err := s.api.UpdateProfile(ctx, api.ProfileUpdate{
		Bio:            strings.TrimSpace(form.Bio),
		Location:       strings.TrimSpace(form.Location),
		DateOfBirth:    strings.TrimSpace(form.DateOfBirth),
		ProfilePicture: picture,
	})
	if err != nil {
		return respondError(c, err, "/profile")
	}

	if viewer := s.session.CurrentUser(); viewer != nil && profile != nil {
		viewer.Profile = profile
		if err := s.session.UpdateUser(ctx, *viewer); err != nil {
			observability.Logger.WarnContext(ctx, "persisting updated user failed", slog.String("error", err.Error()))
		}
	}
	setFlash(c, "success", "Profile updated successfully!")
	return c.Redirect("/profile", fiber.StatusSeeOther)
}

// readPicture returns the uploaded picture as a data URL, or "" when no
// file was chosen.
func (s *Server) readPicture(c *fiber.Ctx) (string, error) {
	fh, err := c.FormFile("profile_picture")
	if err != nil || fh.Size == 0 {
		return "", nil
	}

	maxBytes := int64(avatar.DefaultMaxUploadBytes)
	if s.config.AvatarMaxUploadMB > 0 {
		maxBytes = int64(s.config.AvatarMaxUploadMB) << 20
	}

	f, err := fh.Open()
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	return avatar.Prepare(content, maxBytes)
}

// UserPage shows another user's profile, posts and connections.
func (s *Server) UserPage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	u, err := s.api.UserProfile(ctx, c.Params("username"))
	if err != nil {
		return err
	}

	data := s.page(c, u.Username)
	view := userView{User: u}
	if viewer := data.Viewer; viewer != nil {
		view.IsSelf = viewer.ID == u.ID
	}

	posts, err := s.api.UserPosts(ctx, u.ID)
	if err != nil {
		data.Error = errmsg.Message(err)
	}
	view.Cards = cards(posts, data.Flags)

	// Connections are secondary; a failure leaves the lists empty.
	if view.Followers, err = s.api.Followers(ctx, u.ID); err != nil {
		observability.Logger.WarnContext(ctx, "loading followers failed", slog.String("error", err.Error()))
	}
	if view.Following, err = s.api.Following(ctx, u.ID); err != nil {
		observability.Logger.WarnContext(ctx, "loading following failed", slog.String("error", err.Error()))
	}

	if !view.IsSelf {
		view.Follow = followSeed(u)
		if t, ok := s.follows.Lookup(u.Username); ok {
			t.Seed(view.Follow)
			view.Follow = t.Value()
			view.Pending = t.State() == toggle.Pending
		}
	}

	data.Data = view
	return s.render(c, fiber.StatusOK, "user", data)
}

func (s *Server) FollowUser(c *fiber.Ctx) error {
	return s.setFollowing(c, true)
}

func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	return s.setFollowing(c, false)
}

// setFollowing drives the follow control of a profile. Asking for the
// state the control already shows is a no-op.
func (s *Server) setFollowing(c *fiber.Ctx, follow bool) error {
	ctx := c.UserContext()
	username := c.Params("username")
	target := "/user/" + username

	if viewer := s.session.CurrentUser(); viewer != nil && viewer.Username == username {
		return respondError(c, models.NewValidationError("You cannot follow yourself"), target)
	}

	u, err := s.api.UserProfile(ctx, username)
	if err != nil {
		return respondError(c, err, target)
	}

	seed := followSeed(u)
	t := s.follows.Get(username, seed)
	if current := t.Value(); current.Active == follow && t.State() == toggle.Idle {
		return respondOK(c, "", target, current)
	}

	v, err := t.Click(ctx, func(ctx context.Context, want toggle.Value) (toggle.Value, error) {
		call := s.api.UnfollowUser
		if want.Active {
			call = s.api.FollowUser
		}
		following, err := call(ctx, u.ID)
		if err != nil {
			return toggle.Value{}, err
		}
		if following == want.Active {
			return want, nil
		}
		return toggle.Value{Active: following, Count: seed.Count}, nil
	})
	if err != nil {
		return respondError(c, err, target)
	}

	msg := "Unfollowed " + username
	if v.Active {
		msg = "Following " + username
	}
	return respondOK(c, msg, target, v)
}

func followSeed(u *models.User) toggle.Value {
	v := toggle.Value{Active: u.IsFollowing}
	if u.Profile != nil {
		v.Count = u.Profile.FollowersCount
	}
	return v
}
