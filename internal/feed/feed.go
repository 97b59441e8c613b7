// Package feed keeps the post listing shown on the home page: offset
// pagination, a search term, a background poll and ordering of responses.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"socialfeed/internal/models"
	"socialfeed/internal/observability"
)

// DefaultPageSize is the number of posts requested per page.
const DefaultPageSize = 20

// ErrSuperseded is returned when a response arrived after a newer request
// was dispatched, or after the search term changed. The response is dropped.
var ErrSuperseded = errors.New("feed: response superseded by a newer request")

// Lister fetches one page of posts. It must return an empty, non-nil slice
// when skip is at or beyond the end.
type Lister interface {
	ListPosts(ctx context.Context, first, skip int, search string) ([]models.Post, error)
}

// Snapshot is a consistent copy of the feed for rendering.
type Snapshot struct {
	Posts     []models.Post
	Search    string
	HasMore   bool
	Loaded    bool
	Err       error
	UpdatedAt time.Time
}

type fetchMode int

const (
	replace fetchMode = iota
	appendPage
)

// Feed is safe for concurrent use.
type Feed struct {
	lister   Lister
	pageSize int

	mu          sync.Mutex
	posts       []models.Post
	search      string
	hasMore     bool
	loaded      bool
	stale       bool
	loadingMore bool
	lastErr     error
	updatedAt   time.Time
	generation  uint64
	dispatched  uint64
	applied     uint64
}

func New(lister Lister, pageSize int) *Feed {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Feed{lister: lister, pageSize: pageSize, posts: []models.Post{}}
}

func (f *Feed) PageSize() int {
	return f.pageSize
}

func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	posts := make([]models.Post, len(f.posts))
	copy(posts, f.posts)
	return Snapshot{
		Posts:     posts,
		Search:    f.search,
		HasMore:   f.hasMore,
		Loaded:    f.loaded,
		Err:       f.lastErr,
		UpdatedAt: f.updatedAt,
	}
}

// Ensure loads the first page if nothing is loaded yet, or refreshes the
// listing if a mutation marked it stale.
func (f *Feed) Ensure(ctx context.Context) error {
	f.mu.Lock()
	needed := !f.loaded || f.stale
	f.mu.Unlock()
	if !needed {
		return nil
	}
	return f.Refresh(ctx)
}

// Refresh refetches from offset 0, covering everything currently loaded.
func (f *Feed) Refresh(ctx context.Context) error {
	f.mu.Lock()
	first := max(f.pageSize, len(f.posts))
	f.mu.Unlock()
	return f.fetch(ctx, first, 0, replace)
}

// SetSearch changes the search term and reloads from offset 0. Setting the
// current term again only ensures the feed is loaded.
func (f *Feed) SetSearch(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)

	f.mu.Lock()
	if term == f.search {
		f.mu.Unlock()
		return f.Ensure(ctx)
	}
	f.search = term
	f.generation++
	f.mu.Unlock()

	return f.fetch(ctx, f.pageSize, 0, replace)
}

// LoadMore appends the next page, requested at offset len(loaded). A call
// made while another page is still loading returns nil without a request.
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if f.loadingMore || (f.loaded && !f.hasMore) {
		f.mu.Unlock()
		return nil
	}
	f.loadingMore = true
	skip := len(f.posts)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.loadingMore = false
		f.mu.Unlock()
	}()
	return f.fetch(ctx, f.pageSize, skip, appendPage)
}

// MarkStale flags the listing for refetch on the next Ensure or poll.
func (f *Feed) MarkStale() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stale = true
}

// PatchPost applies fn to the loaded copy of post id, if present. Used to
// show a mutation's returned counters before the next refetch.
func (f *Feed) PatchPost(id string, fn func(p *models.Post)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.posts {
		if f.posts[i].ID == id {
			fn(&f.posts[i])
			return true
		}
	}
	return false
}

// Post returns the loaded copy of post id.
func (f *Feed) Post(id string) (models.Post, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == id {
			return p, true
		}
	}
	return models.Post{}, false
}

// Reset drops everything, including in-flight responses. Used on logout.
func (f *Feed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = []models.Post{}
	f.search = ""
	f.hasMore = false
	f.loaded = false
	f.stale = false
	f.lastErr = nil
	f.updatedAt = time.Time{}
	f.generation++
}

// Run refreshes the feed every interval until ctx is cancelled. Ticks are
// skipped while the feed has never been loaded (nobody is looking at it).
func (f *Feed) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.poll(ctx)
		}
	}
}

func (f *Feed) poll(ctx context.Context) {
	f.mu.Lock()
	loaded := f.loaded
	f.mu.Unlock()
	if !loaded {
		return
	}

	err := f.Refresh(ctx)
	switch {
	case err == nil:
		observability.FeedPolls.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrSuperseded):
		observability.FeedPolls.WithLabelValues("superseded").Inc()
	case ctx.Err() != nil:
		// shutting down
	default:
		observability.FeedPolls.WithLabelValues("error").Inc()
		observability.Logger.WarnContext(ctx, "feed poll failed", slog.String("error", err.Error()))
	}
}

// fetch dispatches one request and applies its response only if no newer
// request was dispatched since and the search term is unchanged.
func (f *Feed) fetch(ctx context.Context, first, skip int, mode fetchMode) error {
	f.mu.Lock()
	f.dispatched++
	seq := f.dispatched
	gen := f.generation
	search := f.search
	f.mu.Unlock()

	posts, err := f.lister.ListPosts(ctx, first, skip, search)

	f.mu.Lock()
	defer f.mu.Unlock()

	// A page is only appended at the offset it was requested for.
	if seq <= f.applied || gen != f.generation || (mode == appendPage && skip != len(f.posts)) {
		observability.FeedStaleResponses.Inc()
		return ErrSuperseded
	}
	f.applied = seq

	if err != nil {
		f.lastErr = err
		return err
	}
	if posts == nil {
		posts = []models.Post{}
	}

	full := len(posts) >= first
	switch {
	case mode == appendPage:
		f.posts = append(f.posts, posts...)
		f.hasMore = full
	case first > f.pageSize:
		// Refetching a window past the first page cannot reveal more posts
		// than LoadMore already found.
		f.posts = posts
		f.stale = false
		f.hasMore = f.hasMore && full
	default:
		f.posts = posts
		f.stale = false
		f.hasMore = full
	}
	f.loaded = true
	f.lastErr = nil
	f.updatedAt = time.Now()
	return nil
}
