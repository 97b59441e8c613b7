// Package api exposes one typed function per server operation on top of the
// GraphQL transport. Mutations evict the cached queries listed in
// Invalidations once the server has answered.
package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"socialfeed/internal/graphql"
	"socialfeed/internal/models"
)

// Client is the typed API used by the views.
type Client struct {
	gql *graphql.Client
}

func New(gql *graphql.Client) *Client {
	return &Client{gql: gql}
}

// GraphQL returns the underlying transport.
func (c *Client) GraphQL() *graphql.Client {
	return c.gql
}

// result is the success/errors pair most mutation payloads carry.
type result struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

func (r result) err() error {
	if r.Success {
		return nil
	}
	return models.NewOperationError(r.Errors)
}

// AuthResult is what a successful sign-in returns.
type AuthResult struct {
	Token        string
	RefreshToken string
	User         models.User
}

// LikeResult is the server state after ToggleLike.
type LikeResult struct {
	Liked      bool
	LikesCount int
}

// ProfileUpdate holds the editable profile fields. Empty DateOfBirth and
// ProfilePicture are sent as null so the server keeps what it has.
type ProfileUpdate struct {
	Bio            string
	Location       string
	DateOfBirth    string
	ProfilePicture string
}

// mutate runs a mutation and, once the server has answered, evicts the
// queries the mutation is declared to affect.
func (c *Client) mutate(ctx context.Context, op graphql.Operation, vars map[string]any, out any) error {
	if err := c.gql.Mutate(ctx, op, vars, out); err != nil {
		return err
	}
	if queries := Invalidations[op.Name]; len(queries) > 0 {
		c.gql.Invalidate(queries...)
	}
	return nil
}

// intID converts a string id to the Int the mutations expect.
func intID(field, id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || n <= 0 {
		return 0, models.NewValidationError(fmt.Sprintf("invalid %s", field))
	}
	return n, nil
}

func (c *Client) Register(ctx context.Context, username, email, password string) (AuthResult, error) {
	var out struct {
		Register struct {
			result
			User         *models.User `json:"user"`
			Token        string       `json:"token"`
			RefreshToken string       `json:"refreshToken"`
		} `json:"register"`
	}
	err := c.mutate(ctx, OpRegister, map[string]any{
		"username": username,
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return AuthResult{}, err
	}
	p := out.Register
	if err := p.err(); err != nil {
		return AuthResult{}, err
	}
	if p.Token == "" || p.User == nil {
		return AuthResult{}, models.NewOperationError(nil)
	}
	return AuthResult{Token: p.Token, RefreshToken: p.RefreshToken, User: *p.User}, nil
}

// Login runs tokenAuth. The payload has no success flag: a token means success.
func (c *Client) Login(ctx context.Context, username, password string) (AuthResult, error) {
	var out struct {
		TokenAuth struct {
			Token        string       `json:"token"`
			RefreshToken string       `json:"refreshToken"`
			User         *models.User `json:"user"`
		} `json:"tokenAuth"`
	}
	err := c.mutate(ctx, OpLogin, map[string]any{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return AuthResult{}, err
	}
	p := out.TokenAuth
	if p.Token == "" || p.User == nil {
		return AuthResult{}, models.NewUnauthorizedError("Invalid username or password")
	}
	return AuthResult{Token: p.Token, RefreshToken: p.RefreshToken, User: *p.User}, nil
}

func (c *Client) GoogleSignIn(ctx context.Context, idToken string) (AuthResult, error) {
	var out struct {
		GoogleSignIn struct {
			result
			Token        string       `json:"token"`
			RefreshToken string       `json:"refreshToken"`
			User         *models.User `json:"user"`
		} `json:"googleSignIn"`
	}
	if err := c.mutate(ctx, OpGoogleSignIn, map[string]any{"idToken": idToken}, &out); err != nil {
		return AuthResult{}, err
	}
	p := out.GoogleSignIn
	if err := p.err(); err != nil {
		return AuthResult{}, err
	}
	if p.Token == "" || p.User == nil {
		return AuthResult{}, models.NewOperationError(nil)
	}
	return AuthResult{Token: p.Token, RefreshToken: p.RefreshToken, User: *p.User}, nil
}

// RefreshToken exchanges a refresh token for a new access token. The returned
// refresh token is empty when the server does not rotate it.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (string, string, error) {
	var out struct {
		RefreshToken struct {
			Token        string `json:"token"`
			RefreshToken string `json:"refreshToken"`
		} `json:"refreshToken"`
	}
	if err := c.mutate(ctx, OpRefreshToken, map[string]any{"refreshToken": refreshToken}, &out); err != nil {
		return "", "", err
	}
	if out.RefreshToken.Token == "" {
		return "", "", models.NewUnauthorizedError("token refresh returned no token")
	}
	return out.RefreshToken.Token, out.RefreshToken.RefreshToken, nil
}

// RequestPasswordReset returns the server's confirmation message.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var out struct {
		RequestPasswordReset struct {
			result
			Message string `json:"message"`
		} `json:"requestPasswordReset"`
	}
	if err := c.mutate(ctx, OpRequestPasswordReset, map[string]any{"email": email}, &out); err != nil {
		return "", err
	}
	if err := out.RequestPasswordReset.err(); err != nil {
		return "", err
	}
	return out.RequestPasswordReset.Message, nil
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	var out struct {
		ResetPassword struct {
			result
			Message string `json:"message"`
		} `json:"resetPassword"`
	}
	err := c.mutate(ctx, OpResetPassword, map[string]any{
		"token":    token,
		"password": password,
	}, &out)
	if err != nil {
		return "", err
	}
	if err := out.ResetPassword.err(); err != nil {
		return "", err
	}
	return out.ResetPassword.Message, nil
}

// Me always asks the server; it backs session reconciliation.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out struct {
		Me *models.User `json:"me"`
	}
	if err := c.gql.Query(ctx, OpGetMe, nil, &out, graphql.NetworkOnly); err != nil {
		return nil, err
	}
	if out.Me == nil {
		return nil, models.NewUnauthorizedError("not signed in")
	}
	return out.Me, nil
}

func (c *Client) MyProfile(ctx context.Context) (*models.User, error) {
	var out struct {
		Me *models.User `json:"me"`
	}
	if err := c.gql.Query(ctx, OpGetMyProfile, nil, &out, graphql.CacheFirst); err != nil {
		return nil, err
	}
	if out.Me == nil {
		return nil, models.NewUnauthorizedError("not signed in")
	}
	return out.Me, nil
}

// ListPosts fetches one feed page. It never returns a nil slice on success.
func (c *Client) ListPosts(ctx context.Context, first, skip int, search string) ([]models.Post, error) {
	vars := map[string]any{"first": first, "skip": skip}
	if search != "" {
		vars["search"] = search
	}
	var out struct {
		Posts []models.Post `json:"posts"`
	}
	if err := c.gql.Query(ctx, OpGetPosts, vars, &out, graphql.NetworkOnly); err != nil {
		return nil, err
	}
	if out.Posts == nil {
		return []models.Post{}, nil
	}
	return out.Posts, nil
}

func (c *Client) Post(ctx context.Context, id string) (*models.Post, error) {
	postID, err := intID("post id", id)
	if err != nil {
		return nil, err
	}
	var out struct {
		Post *models.Post `json:"post"`
	}
	if err := c.gql.Query(ctx, OpGetPost, map[string]any{"id": postID}, &out, graphql.CacheFirst); err != nil {
		return nil, err
	}
	if out.Post == nil {
		return nil, models.NewNotFoundError("post", id)
	}
	return out.Post, nil
}

func (c *Client) UserPosts(ctx context.Context, userID string) ([]models.Post, error) {
	var out struct {
		UserPosts []models.Post `json:"userPosts"`
	}
	if err := c.gql.Query(ctx, OpGetUserPosts, map[string]any{"userId": userID}, &out, graphql.CacheFirst); err != nil {
		return nil, err
	}
	if out.UserPosts == nil {
		return []models.Post{}, nil
	}
	return out.UserPosts, nil
}

func (c *Client) UserProfile(ctx context.Context, username string) (*models.User, error) {
	var out struct {
		User *models.User `json:"user"`
	}
	if err := c.gql.Query(ctx, OpGetUserProfile, map[string]any{"username": username}, &out, graphql.CacheFirst); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, models.NewNotFoundError("user", username)
	}
	return out.User, nil
}

func (c *Client) Followers(ctx context.Context, userID string) ([]models.User, error) {
	id, err := intID("user id", userID)
	if err != nil {
		return nil, err
	}
	var out struct {
		Followers []models.User `json:"followers"`
	}
	if err := c.gql.Query(ctx, OpGetUserFollowers, map[string]any{"userId": id}, &out, graphql.CacheFirst); err != nil {
		return nil, err
	}
	if out.Followers == nil {
		return []models.User{}, nil
	}
	return out.Followers, nil
}

func (c *Client) Following(ctx context.Context, userID string) ([]models.User, error) {
	id, err := intID("user id", userID)
	if err != nil {
		return nil, err
	}
	var out struct {
		Following []models.User `json:"following"`
	}
	if err := c.gql.Query(ctx, OpGetUserFollowing, map[string]any{"userId": id}, &out, graphql.CacheFirst); err != nil {
		return nil, err
	}
	if out.Following == nil {
		return []models.User{}, nil
	}
	return out.Following, nil
}

func (c *Client) CreatePost(ctx context.Context, content string) (*models.Post, error) {
	var out struct {
		CreatePost struct {
			result
			Post *models.Post `json:"post"`
		} `json:"createPost"`
	}
	if err := c.mutate(ctx, OpCreatePost, map[string]any{"content": content}, &out); err != nil {
		return nil, err
	}
	if err := out.CreatePost.err(); err != nil {
		return nil, err
	}
	return out.CreatePost.Post, nil
}

func (c *Client) QuotePost(ctx context.Context, postID, content string) (*models.Post, error) {
	id, err := intID("post id", postID)
	if err != nil {
		return nil, err
	}
	var out struct {
		QuotePost struct {
			result
			Post *models.Post `json:"post"`
		} `json:"quotePost"`
	}
	if err := c.mutate(ctx, OpQuotePost, map[string]any{"postId": id, "content": content}, &out); err != nil {
		return nil, err
	}
	if err := out.QuotePost.err(); err != nil {
		return nil, err
	}
	return out.QuotePost.Post, nil
}

// RepostPost returns the post's new repost count.
func (c *Client) RepostPost(ctx context.Context, postID string) (int, error) {
	id, err := intID("post id", postID)
	if err != nil {
		return 0, err
	}
	var out struct {
		RepostPost struct {
			result
			Post *models.Post `json:"post"`
		} `json:"repostPost"`
	}
	if err := c.mutate(ctx, OpRepostPost, map[string]any{"postId": id}, &out); err != nil {
		return 0, err
	}
	if err := out.RepostPost.err(); err != nil {
		return 0, err
	}
	if out.RepostPost.Post == nil {
		return 0, nil
	}
	return out.RepostPost.Post.RepostsCount, nil
}

func (c *Client) ToggleLike(ctx context.Context, postID string) (LikeResult, error) {
	id, err := intID("post id", postID)
	if err != nil {
		return LikeResult{}, err
	}
	var out struct {
		ToggleLike struct {
			result
			Post  *models.Post `json:"post"`
			Liked bool         `json:"liked"`
		} `json:"toggleLike"`
	}
	if err := c.mutate(ctx, OpToggleLike, map[string]any{"postId": id}, &out); err != nil {
		return LikeResult{}, err
	}
	p := out.ToggleLike
	if err := p.err(); err != nil {
		return LikeResult{}, err
	}
	res := LikeResult{Liked: p.Liked}
	if p.Post != nil {
		res.LikesCount = p.Post.LikesCount
	}
	return res, nil
}

// SharePost returns the post's new share count.
func (c *Client) SharePost(ctx context.Context, postID string) (int, error) {
	id, err := intID("post id", postID)
	if err != nil {
		return 0, err
	}
	var out struct {
		SharePost struct {
			result
			Post *models.Post `json:"post"`
		} `json:"sharePost"`
	}
	if err := c.mutate(ctx, OpSharePost, map[string]any{"postId": id}, &out); err != nil {
		return 0, err
	}
	if err := out.SharePost.err(); err != nil {
		return 0, err
	}
	if out.SharePost.Post == nil {
		return 0, nil
	}
	return out.SharePost.Post.SharesCount, nil
}

func (c *Client) CreateComment(ctx context.Context, postID, content string) (*models.Comment, error) {
	id, err := intID("post id", postID)
	if err != nil {
		return nil, err
	}
	var out struct {
		CreateComment struct {
			result
			Comment *models.Comment `json:"comment"`
		} `json:"createComment"`
	}
	if err := c.mutate(ctx, OpCreateComment, map[string]any{"postId": id, "content": content}, &out); err != nil {
		return nil, err
	}
	if err := out.CreateComment.err(); err != nil {
		return nil, err
	}
	if out.CreateComment.Comment != nil {
		out.CreateComment.Comment.PostID = postID
	}
	return out.CreateComment.Comment, nil
}

// FollowUser returns whether the viewer now follows the user.
func (c *Client) FollowUser(ctx context.Context, userID string) (bool, error) {
	return c.follow(ctx, OpFollowUser, "followUser", userID)
}

func (c *Client) UnfollowUser(ctx context.Context, userID string) (bool, error) {
	return c.follow(ctx, OpUnfollowUser, "unfollowUser", userID)
}

func (c *Client) follow(ctx context.Context, op graphql.Operation, field, userID string) (bool, error) {
	id, err := intID("user id", userID)
	if err != nil {
		return false, err
	}
	var out map[string]struct {
		result
		IsFollowing bool `json:"isFollowing"`
	}
	if err := c.mutate(ctx, op, map[string]any{"userId": id}, &out); err != nil {
		return false, err
	}
	p, ok := out[field]
	if !ok {
		return false, models.NewOperationError(nil)
	}
	if err := p.err(); err != nil {
		return false, err
	}
	return p.IsFollowing, nil
}

func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*models.Profile, error) {
	vars := map[string]any{
		"bio":             upd.Bio,
		"location":        upd.Location,
		"date_of_birth":   nil,
		"profile_picture": nil,
	}
	if upd.DateOfBirth != "" {
		vars["date_of_birth"] = upd.DateOfBirth
	}
	if upd.ProfilePicture != "" {
		vars["profile_picture"] = upd.ProfilePicture
	}

	var out struct {
		UpdateProfile struct {
			result
			Profile *models.Profile `json:"profile"`
		} `json:"updateProfile"`
	}
	if err := c.mutate(ctx, OpUpdateProfile, vars, &out); err != nil {
		return nil, err
	}
	if err := out.UpdateProfile.err(); err != nil {
		return nil, err
	}
	return out.UpdateProfile.Profile, nil
}
