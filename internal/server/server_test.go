package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialfeed/internal/api"
	"socialfeed/internal/config"
	"socialfeed/internal/feed"
	"socialfeed/internal/graphql"
	"socialfeed/internal/models"
	"socialfeed/internal/session"
	"socialfeed/internal/storage"
	"socialfeed/internal/toggle"
)

const postsReply = `{"posts":[{"id":"7","content":"hello world","createdAt":"2026-01-01T00:00:00Z","author":{"id":"2","username":"bob"},"likesCount":2}]}`

// gqlStub answers GraphQL operations with canned data payloads.
type gqlStub struct {
	mu      sync.Mutex
	replies map[string]string
	calls   map[string]int
}

func (g *gqlStub) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *gqlStub) setReply(op, data string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies[op] = data
}

type testEnv struct {
	server *Server
	store  *session.Store
	gql    *gqlStub
}

func newTestEnv(t *testing.T, flags string, replies map[string]string) *testEnv {
	t.Helper()

	stub := &gqlStub{replies: replies, calls: map[string]int{}}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphql.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		stub.mu.Lock()
		stub.calls[req.OperationName]++
		data, ok := stub.replies[req.OperationName]
		stub.mu.Unlock()
		if !ok {
			_, _ = w.Write([]byte(`{"errors":[{"message":"unknown operation"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":` + data + `}`))
	}))
	t.Cleanup(upstream.Close)

	st, err := storage.NewFileStorage(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	store := session.NewStore(st)

	client := api.New(graphql.NewClient(upstream.URL, graphql.WithTokenSource(store)))
	cfg := &config.Config{AvatarMaxUploadMB: 2, FeatureFlags: flags, GoogleClientID: "client-id"}

	s, err := NewServer(cfg, client, store, feed.New(client, 10))
	require.NoError(t, err)
	return &testEnv{server: s, store: store, gql: stub}
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	require.NoError(t, e.store.Login(context.Background(), "tok", "ref", models.User{ID: "1", Username: "alice"}))
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := e.server.App().Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonPost(path string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Accept", "application/json")
	return req
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, "up", payload["status"])
	assert.Equal(t, false, payload["authenticated"])
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	env := newTestEnv(t, "", nil)

	t.Run("page redirects to login", func(t *testing.T) {
		resp, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})

	t.Run("script gets 401", func(t *testing.T) {
		resp, body := env.do(t, jsonPost("/posts/7/like"))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, body, `"code":"UNAUTHORIZED"`)
	})

	assert.Zero(t, env.gql.count("ToggleLike"))
}

func TestLogin(t *testing.T) {
	t.Run("missing fields re-render the form", func(t *testing.T) {
		env := newTestEnv(t, "", nil)
		resp, body := env.do(t, formRequest("/login", url.Values{"username": {"alice"}}))
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, body, "Password is required")
		assert.Contains(t, body, `value="alice"`)
		assert.Zero(t, env.gql.count("Login"))
	})

	t.Run("rejected credentials", func(t *testing.T) {
		env := newTestEnv(t, "", map[string]string{"Login": `{"tokenAuth":null}`})
		resp, body := env.do(t, formRequest("/login", url.Values{"username": {"alice"}, "password": {"wrong"}}))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, body, "Invalid username or password")
		assert.False(t, env.store.IsAuthenticated())
	})

	t.Run("success opens a session and shows the feed", func(t *testing.T) {
		env := newTestEnv(t, "", map[string]string{
			"Login":    `{"tokenAuth":{"token":"tok","refreshToken":"ref","user":{"id":"1","username":"alice"}}}`,
			"GetPosts": postsReply,
		})
		resp, _ := env.do(t, formRequest("/login", url.Values{"username": {"alice"}, "password": {"secret"}}))
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
		assert.True(t, env.store.IsAuthenticated())
		assert.Equal(t, "tok", env.store.AccessToken())

		resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "hello world")
		assert.Contains(t, body, "bob")
		assert.Equal(t, 1, env.gql.count("GetPosts"))
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.login(t)

	resp, _ := env.do(t, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.False(t, env.store.IsAuthenticated())
}

func TestCrossSitePostIsRejected(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.login(t)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, _ := env.do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.True(t, env.store.IsAuthenticated())
}

func TestCreatePost_EmptyContent(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.login(t)

	resp, body := env.do(t, formRequest("/posts", url.Values{"content": {"   "}}))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Post content cannot be empty")
	assert.Zero(t, env.gql.count("CreatePost"))
}

func TestLikePost(t *testing.T) {
	const postReply = `{"post":{"id":"7","content":"hello","author":{"id":"2","username":"bob"},"isLiked":false,"likesCount":2}}`

	t.Run("returns the server state", func(t *testing.T) {
		env := newTestEnv(t, "", map[string]string{
			"GetPost":    postReply,
			"ToggleLike": `{"toggleLike":{"success":true,"errors":[],"liked":true,"post":{"id":"7","likesCount":3}}}`,
		})
		env.login(t)

		resp, body := env.do(t, jsonPost("/posts/7/like"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"active":true,"count":3}`, body)
		assert.Equal(t, 1, env.gql.count("ToggleLike"))
	})

	t.Run("failure restores the previous value", func(t *testing.T) {
		env := newTestEnv(t, "", map[string]string{
			"GetPost":    postReply,
			"ToggleLike": `{"toggleLike":{"success":false,"errors":["Post is locked"]}}`,
		})
		env.login(t)

		resp, body := env.do(t, jsonPost("/posts/7/like"))
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, body, "Post is locked")

		tg, ok := env.server.likes.Lookup("7")
		require.True(t, ok)
		assert.Equal(t, toggle.Value{Active: false, Count: 2}, tg.Value())
		assert.Equal(t, toggle.Idle, tg.State())
	})

	t.Run("form post redirects back", func(t *testing.T) {
		env := newTestEnv(t, "", map[string]string{
			"GetPost":    postReply,
			"ToggleLike": `{"toggleLike":{"success":true,"errors":[],"liked":true,"post":{"id":"7","likesCount":3}}}`,
		})
		env.login(t)

		req := httptest.NewRequest(http.MethodPost, "/posts/7/like", nil)
		req.Header.Set("Referer", "http://example.com/posts/7")
		resp, _ := env.do(t, req)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/posts/7", resp.Header.Get("Location"))
	})
}

func TestFollowUser(t *testing.T) {
	env := newTestEnv(t, "", map[string]string{
		"GetUserProfile": `{"user":{"id":"5","username":"carol","isFollowing":false,"profile":{"followersCount":3,"followingCount":1}}}`,
		"FollowUser":     `{"followUser":{"success":true,"errors":[],"isFollowing":true}}`,
	})
	env.login(t)

	resp, body := env.do(t, jsonPost("/user/carol/follow"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"active":true,"count":4}`, body)
	assert.Equal(t, 1, env.gql.count("FollowUser"))

	t.Run("following yourself is rejected", func(t *testing.T) {
		resp, body := env.do(t, jsonPost("/user/alice/follow"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "You cannot follow yourself")
	})
}

func TestFeatureFlaggedRoutes(t *testing.T) {
	t.Run("repost is hidden when the flag is off", func(t *testing.T) {
		env := newTestEnv(t, "", nil)
		env.login(t)
		resp, _ := env.do(t, jsonPost("/posts/7/repost"))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Zero(t, env.gql.count("RepostPost"))
	})

	t.Run("repost when the flag is on", func(t *testing.T) {
		env := newTestEnv(t, "reposts=on", map[string]string{
			"RepostPost": `{"repostPost":{"success":true,"errors":[],"post":{"id":"7","repostsCount":4}}}`,
		})
		env.login(t)
		resp, body := env.do(t, jsonPost("/posts/7/repost"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"count":4}`, body)
	})

	t.Run("google sign-in checks the csrf cookie", func(t *testing.T) {
		env := newTestEnv(t, "google_signin=on", nil)
		req := formRequest("/auth/google", url.Values{"credential": {"id-token"}, "g_csrf_token": {"abc"}})
		resp, _ := env.do(t, req)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Zero(t, env.gql.count("GoogleSignIn"))
	})
}

func TestPostPageReloadShowsServerChanges(t *testing.T) {
	env := newTestEnv(t, "", map[string]string{
		"GetPost": `{"post":{"id":"7","content":"first draft","author":{"id":"2","username":"bob"},"isLiked":false,"likesCount":2}}`,
	})
	env.login(t)

	resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/posts/7", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "first draft")

	env.gql.setReply("GetPost", `{"post":{"id":"7","content":"edited elsewhere","author":{"id":"2","username":"bob"},"isLiked":true,"likesCount":5}}`)

	resp, body = env.do(t, httptest.NewRequest(http.MethodGet, "/posts/7", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "edited elsewhere")
	assert.Equal(t, 2, env.gql.count("GetPost"))
}

func TestRenderingDoesNotCreateControls(t *testing.T) {
	env := newTestEnv(t, "", map[string]string{
		"GetPosts":       postsReply,
		"GetUserProfile": `{"user":{"id":"5","username":"carol","isFollowing":false,"profile":{"followersCount":3,"followingCount":1}}}`,
		"GetUserPosts":   `{"userPosts":[]}`,
	})
	env.login(t)

	resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "hello world")
	_, ok := env.server.likes.Lookup("7")
	assert.False(t, ok)

	resp, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/user/carol", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, ok = env.server.follows.Lookup("carol")
	assert.False(t, ok)
}
