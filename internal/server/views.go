package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"socialfeed/internal/avatar"
	"socialfeed/internal/featureflags"
	"socialfeed/internal/format"
	"socialfeed/internal/models"
	"socialfeed/internal/toggle"
	"socialfeed/internal/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

// views holds one template set per page, each parsed together with the
// shared layout and partials.
type views struct {
	pages map[string]*template.Template
}

func loadViews(funcs template.FuncMap) (*views, error) {
	shared := []string{"templates/layout.html", "templates/partials.html"}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	v := &views{pages: make(map[string]*template.Template)}
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		if name == "layout" || name == "partials" {
			continue
		}
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, append(shared, file)...)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

// pageData is what every page template receives.
type pageData struct {
	Title          string
	Viewer         *models.User
	Flash          *flash
	Flags          map[string]bool
	GoogleClientID string
	Error          string
	Errors         validation.FieldErrors
	Form           map[string]string
	Data           any
}

func (s *Server) page(c *fiber.Ctx, title string) *pageData {
	viewer := s.session.CurrentUser()
	viewerID := ""
	if viewer != nil {
		viewerID = viewer.ID
	}
	data := &pageData{
		Title:  title,
		Viewer: viewer,
		Flash:  takeFlash(c),
		Flags:  s.featureFlags.Snapshot(viewerID),
		Errors: validation.FieldErrors{},
		Form:   map[string]string{},
	}
	if data.Flags[featureflags.GoogleSignIn] {
		data.GoogleClientID = s.config.GoogleClientID
	}
	return data
}

// postCard is the input of the "post" partial.
type postCard struct {
	Post  *models.Post
	Flags map[string]bool
}

func cards(posts []models.Post, flags map[string]bool) []postCard {
	out := make([]postCard, len(posts))
	for i := range posts {
		out[i] = postCard{Post: &posts[i], Flags: flags}
	}
	return out
}

// avatarView is an avatar ready for the templates. Uploaded pictures are
// image data URLs, which html/template would otherwise filter out.
type avatarView struct {
	Picture  template.URL
	Initials string
	Color    string
}

func newAvatarView(a avatar.Avatar) avatarView {
	v := avatarView{Initials: a.Initials, Color: a.Color}
	switch {
	case strings.HasPrefix(a.Picture, "data:image/"),
		strings.HasPrefix(a.Picture, "https://"),
		strings.HasPrefix(a.Picture, "http://"),
		strings.HasPrefix(a.Picture, "/"):
		v.Picture = template.URL(a.Picture)
	}
	return v
}

func (s *Server) render(c *fiber.Ctx, status int, name string, data *pageData) error {
	t, ok := s.views.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"relTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return format.RelativeTime(t, s.now())
		},
		"date":     format.Date,
		"number":   format.Number,
		"truncate": format.TruncateText,
		"avatar": func(username, picture string) avatarView {
			return newAvatarView(avatar.For(context.Background(), username, picture, s.session))
		},
		"userAvatar": func(u models.User) avatarView {
			return newAvatarView(avatar.For(context.Background(), u.Username, u.ProfilePicture(), s.session))
		},
		// like returns what the like control shows: the server's state, or
		// the optimistic one while a request is in flight. Controls are only
		// created by a click.
		"like": func(p *models.Post) toggle.Value {
			v := toggle.Value{Active: p.IsLiked, Count: p.LikesCount}
			if t, ok := s.likes.Lookup(p.ID); ok {
				t.Seed(v)
				return t.Value()
			}
			return v
		},
		"isPending": func(reg string, key string) bool {
			r := s.likes
			if reg == "follow" {
				r = s.follows
			}
			t, ok := r.Lookup(key)
			return ok && t.State() == toggle.Pending
		},
	}
}
