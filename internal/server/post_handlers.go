package server

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"socialfeed/internal/errmsg"
	"socialfeed/internal/featureflags"
	"socialfeed/internal/feed"
	"socialfeed/internal/models"
	"socialfeed/internal/observability"
	"socialfeed/internal/toggle"
	"socialfeed/internal/validation"
)

type feedView struct {
	Search  string
	Cards   []postCard
	HasMore bool
}

type postView struct {
	Card     postCard
	Comments []models.Comment
}

// FeedPage renders the home feed. ?q= switches the search term.
func (s *Server) FeedPage(c *fiber.Ctx) error {
	data := s.page(c, "Home")
	if err := s.feed.SetSearch(c.UserContext(), c.Query("q")); err != nil && !errors.Is(err, feed.ErrSuperseded) {
		data.Error = errmsg.Message(err)
	}
	return s.renderFeed(c, fiber.StatusOK, data)
}

func (s *Server) renderFeed(c *fiber.Ctx, status int, data *pageData) error {
	snap := s.feed.Snapshot()
	if data.Error == "" && snap.Err != nil {
		data.Error = errmsg.Message(snap.Err)
	}
	data.Data = feedView{
		Search:  snap.Search,
		Cards:   cards(snap.Posts, data.Flags),
		HasMore: snap.HasMore,
	}
	return s.render(c, status, "feed", data)
}

// LoadMore appends the next page and goes back to the feed.
func (s *Server) LoadMore(c *fiber.Ctx) error {
	err := s.feed.LoadMore(c.UserContext())
	if err != nil && !errors.Is(err, feed.ErrSuperseded) {
		setFlash(c, "error", errmsg.Message(err))
	}
	return c.Redirect(s.feedURL(), fiber.StatusSeeOther)
}

// feedURL keeps the current search when returning to the feed.
func (s *Server) feedURL() string {
	if term := s.feed.Snapshot().Search; term != "" {
		return "/?q=" + url.QueryEscape(term)
	}
	return "/"
}

func (s *Server) CreatePost(c *fiber.Ctx) error {
	content := c.FormValue("content")
	if err := validation.ValidatePostContent(content); err != nil {
		if wantsJSON(c) {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.CodeValidation, err.Error())
		}
		data := s.page(c, "Home")
		data.Form["content"] = content
		data.Errors.AddError("content", err)
		return s.renderFeed(c, fiber.StatusUnprocessableEntity, data)
	}

	post, err := s.api.CreatePost(c.UserContext(), content)
	if err != nil {
		return respondError(c, err, "/")
	}
	return respondOK(c, "Post created!", "/", post)
}

// PostPage shows one post with its comments.
func (s *Server) PostPage(c *fiber.Ctx) error {
	post, err := s.api.Post(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	data := s.page(c, "Post by "+post.Author.Username)
	data.Data = postView{
		Card:     postCard{Post: post, Flags: data.Flags},
		Comments: post.Comments,
	}
	return s.render(c, fiber.StatusOK, "post", data)
}

// LikePost toggles the viewer's like. The control shows the flipped state
// while the request is in flight and reverts if it fails.
func (s *Server) LikePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")

	t, err := s.likeToggle(ctx, id)
	if err != nil {
		return respondError(c, err, "/")
	}

	v, err := t.Click(ctx, func(ctx context.Context, _ toggle.Value) (toggle.Value, error) {
		res, err := s.api.ToggleLike(ctx, id)
		if err != nil {
			return toggle.Value{}, err
		}
		return toggle.Value{Active: res.Liked, Count: res.LikesCount}, nil
	})
	if err != nil {
		observability.Logger.InfoContext(ctx, "like rejected",
			slog.String("post_id", id),
			slog.String("error", err.Error()),
		)
		return respondError(c, err, "/")
	}

	s.feed.PatchPost(id, func(p *models.Post) {
		p.IsLiked = v.Active
		p.LikesCount = v.Count
	})
	return respondOK(c, "", "/", v)
}

// likeToggle finds the control for a post, seeding it from the loaded feed
// or, for posts outside the feed, from the server.
func (s *Server) likeToggle(ctx context.Context, id string) (*toggle.Toggle, error) {
	if p, ok := s.feed.Post(id); ok {
		return s.likes.Get(id, toggle.Value{Active: p.IsLiked, Count: p.LikesCount}), nil
	}
	if t, ok := s.likes.Lookup(id); ok {
		return t, nil
	}
	p, err := s.api.Post(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.likes.Get(id, toggle.Value{Active: p.IsLiked, Count: p.LikesCount}), nil
}

func (s *Server) SharePost(c *fiber.Ctx) error {
	id := c.Params("id")
	count, err := s.api.SharePost(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "/")
	}
	s.feed.PatchPost(id, func(p *models.Post) { p.SharesCount = count })
	return respondOK(c, "Post shared!", "/", fiber.Map{"count": count})
}

func (s *Server) RepostPost(c *fiber.Ctx) error {
	if !s.flagEnabled(featureflags.Reposts) {
		return fiber.ErrNotFound
	}
	id := c.Params("id")
	count, err := s.api.RepostPost(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "/")
	}
	s.feed.PatchPost(id, func(p *models.Post) { p.RepostsCount = count })
	return respondOK(c, "Reposted!", "/", fiber.Map{"count": count})
}

func (s *Server) QuotePost(c *fiber.Ctx) error {
	if !s.flagEnabled(featureflags.QuotePosts) {
		return fiber.ErrNotFound
	}
	content := c.FormValue("content")
	if err := validation.ValidateQuote(content); err != nil {
		return respondError(c, models.NewValidationError(err.Error()), "/")
	}

	id := c.Params("id")
	post, err := s.api.QuotePost(c.UserContext(), id, content)
	if err != nil {
		return respondError(c, err, "/")
	}
	s.feed.PatchPost(id, func(p *models.Post) { p.QuotesCount++ })
	return respondOK(c, "Quote posted!", "/", post)
}

func (s *Server) CreateComment(c *fiber.Ctx) error {
	id := c.Params("id")
	target := "/posts/" + id

	content := c.FormValue("content")
	if err := validation.ValidateComment(content); err != nil {
		return respondError(c, models.NewValidationError(err.Error()), target)
	}

	comment, err := s.api.CreateComment(c.UserContext(), id, content)
	if err != nil {
		return respondError(c, err, target)
	}
	s.feed.PatchPost(id, func(p *models.Post) { p.CommentsCount++ })
	if wantsJSON(c) {
		return c.JSON(comment)
	}
	setFlash(c, "success", "Comment added!")
	return c.Redirect(target, fiber.StatusSeeOther)
}

func (s *Server) flagEnabled(name string) bool {
	viewerID := ""
	if u := s.session.CurrentUser(); u != nil {
		viewerID = u.ID
	}
	return s.featureFlags.Enabled(name, viewerID)
}
