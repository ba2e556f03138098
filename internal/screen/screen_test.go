package screen

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeline-service/internal/event"
	"timeline-service/internal/feedstate"
	"timeline-service/internal/model"
	"timeline-service/internal/optimistic"
	"timeline-service/internal/reconcile"
	"timeline-service/internal/store"
)

const viewer = "viewer"

var errDown = errors.New("down")

// flakySource fails every mutation while failing is set.
type flakySource struct {
	*store.Store
	mu      sync.Mutex
	failing bool
}

func (f *flakySource) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakySource) Mutator(v string) optimistic.Mutator {
	inner := f.Store.Mutator(v)
	return optimistic.MutateFunc(func(ctx context.Context, a optimistic.Action, id string) error {
		f.mu.Lock()
		failing := f.failing
		f.mu.Unlock()
		if failing {
			return errDown
		}
		return inner.Mutate(ctx, a, id)
	})
}

type env struct {
	hub   *event.Hub
	store *store.Store
	src   *flakySource
}

func newEnv(t *testing.T) *env {
	t.Helper()
	hub := event.NewHub(nil)
	st := store.New(store.Options{Seed: 11, PageSize: 50}, hub, nil)
	return &env{hub: hub, store: st, src: &flakySource{Store: st}}
}

func (e *env) config(v string) Config {
	return Config{Viewer: v, Source: e.src, Events: e.hub.For(v)}
}

func loadedPage[T any](t *testing.T, s *Screen[T]) []T {
	t.Helper()
	p, ok := s.State().Page()
	require.True(t, ok, "state is %s", s.State().Status())
	return p.Page
}

func find(t *testing.T, s *Screen[model.Tweet], id string) model.Tweet {
	t.Helper()
	p, _ := s.State().Page()
	tw, _, ok := reconcile.Find(p, id)
	require.True(t, ok, "tweet %s not on %s", id, s.Kind())
	return tw
}

func TestLikeOnFeedReachesOtherScreensOfViewer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	feed := NewFeed(e.config(viewer))
	defer feed.Close()
	require.NoError(t, feed.Load(ctx))

	target := loadedPage(t, feed)[0]
	author := target.OwnerID()
	profile := NewProfile(e.config(viewer), author)
	defer profile.Close()
	require.NoError(t, profile.Load(ctx))
	before := find(t, profile, target.ID)

	require.NoError(t, feed.Perform(ctx, optimistic.ActionLike, target.ID))

	assert.True(t, find(t, feed, target.ID).Liked())
	got := find(t, profile, target.ID)
	assert.True(t, got.Liked())
	assert.Equal(t, before.LikesCount()+1, got.LikesCount(), "event applied once despite optimistic patch on the other screen")
	assert.Equal(t, before.LikesCount()+1, find(t, feed, target.ID).LikesCount())
}

func TestOtherViewersDoNotSeeViewerFlags(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	mine := NewFeed(e.config(viewer))
	defer mine.Close()
	require.NoError(t, mine.Load(ctx))
	target := loadedPage(t, mine)[0]

	theirs := NewProfile(e.config("someone-else"), target.OwnerID())
	defer theirs.Close()
	require.NoError(t, theirs.Load(ctx))
	was := find(t, theirs, target.ID).Liked()

	require.NoError(t, mine.Perform(ctx, optimistic.ActionLike, target.ID))

	assert.Equal(t, was, find(t, theirs, target.ID).Liked())
}

func TestFailedLikeRollsBackAndSignals(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var transient []error
	cfg := e.config(viewer)
	cfg.OnTransient = func(_ feedstate.Operation, err error) { transient = append(transient, err) }
	feed := NewFeed(cfg)
	defer feed.Close()
	require.NoError(t, feed.Load(ctx))
	target := loadedPage(t, feed)[0]

	e.src.setFailing(true)
	err := feed.Perform(ctx, optimistic.ActionLike, target.ID)

	require.ErrorIs(t, err, errDown)
	got := find(t, feed, target.ID)
	assert.Equal(t, target.Liked(), got.Liked())
	assert.Equal(t, target.LikesCount(), got.LikesCount())
	require.Len(t, transient, 1)
}

func TestSelfPrependsCreatedTweetsButFeedDoesNot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	self := NewSelf(e.config(viewer))
	defer self.Close()
	feed := NewFeed(e.config(viewer))
	defer feed.Close()
	require.NoError(t, self.Load(ctx))
	require.NoError(t, feed.Load(ctx))
	assert.Equal(t, KindSelf, self.Kind())
	require.Empty(t, loadedPage(t, self), "new viewer has no tweets")
	feedLen := len(loadedPage(t, feed))

	tw, err := e.store.CreateTweet(ctx, viewer, "first!")
	require.NoError(t, err)

	require.Len(t, loadedPage(t, self), 1)
	assert.Equal(t, tw.ID, loadedPage(t, self)[0].ID)
	assert.Len(t, loadedPage(t, feed), feedLen)

	require.NoError(t, feed.Refresh(ctx))
	assert.Equal(t, tw.ID, loadedPage(t, feed)[0].ID, "shows up after refresh")
}

func TestDeleteOnSelfRemovesEverywhere(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tw, err := e.store.CreateTweet(ctx, viewer, "short lived")
	require.NoError(t, err)

	self := NewSelf(e.config(viewer))
	defer self.Close()
	feed := NewFeed(e.config(viewer))
	defer feed.Close()
	require.NoError(t, self.Load(ctx))
	require.NoError(t, feed.Load(ctx))
	require.Equal(t, tw.ID, loadedPage(t, feed)[0].ID)

	require.NoError(t, self.Perform(ctx, optimistic.ActionDelete, tw.ID))

	assert.Empty(t, loadedPage(t, self))
	assert.NotEqual(t, tw.ID, loadedPage(t, feed)[0].ID)
}

func TestFailedDeleteRestoresPosition(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := e.store.CreateTweet(ctx, viewer, text)
		require.NoError(t, err)
	}
	self := NewSelf(e.config(viewer))
	defer self.Close()
	require.NoError(t, self.Load(ctx))
	before := loadedPage(t, self)

	e.src.setFailing(true)
	require.Error(t, self.Perform(ctx, optimistic.ActionDelete, before[1].ID))

	assert.Equal(t, before, loadedPage(t, self))
}

func TestBookmarksScreen(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	feed := NewFeed(e.config(viewer))
	defer feed.Close()
	require.NoError(t, feed.Load(ctx))
	page := loadedPage(t, feed)
	a, b := page[0].ID, page[1].ID
	require.NoError(t, feed.Perform(ctx, optimistic.ActionBookmark, a))

	marks := NewBookmarks(e.config(viewer))
	defer marks.Close()
	require.NoError(t, marks.Load(ctx))
	require.Len(t, loadedPage(t, marks), 1)

	require.NoError(t, feed.Perform(ctx, optimistic.ActionBookmark, b))
	assert.Len(t, loadedPage(t, marks), 1, "new bookmarks wait for the next load")

	require.NoError(t, feed.Perform(ctx, optimistic.ActionUnbookmark, a))
	got := loadedPage(t, marks)
	assert.Empty(t, got)
	assert.False(t, find(t, feed, a).Bookmarked())
}

func TestFollowFromFeedUpdatesFollowees(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	followees := NewFollowees(e.config(viewer), viewer)
	defer followees.Close()
	require.NoError(t, followees.Load(ctx))
	rows := loadedPage(t, followees)
	require.NotEmpty(t, rows)
	row := rows[0]
	require.True(t, row.Following())

	feed := NewProfile(e.config(viewer), row.User.ID)
	defer feed.Close()
	require.NoError(t, feed.Load(ctx))
	tw := loadedPage(t, feed)[0]

	require.NoError(t, feed.Perform(ctx, optimistic.ActionUnfollow, tw.ID))

	assert.False(t, find(t, feed, tw.ID).Following())
	assert.False(t, loadedPage(t, followees)[0].Following())

	require.NoError(t, followees.Perform(ctx, optimistic.ActionFollow, row.User.ID))
	assert.True(t, loadedPage(t, followees)[0].Following())
	assert.True(t, find(t, feed, tw.ID).Following())
}

func TestUnsupportedActions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	followers := NewFollowers(e.config(viewer), viewer)
	defer followers.Close()
	require.NoError(t, followers.Load(ctx))
	assert.ErrorIs(t, followers.Perform(ctx, optimistic.ActionLike, "x"), ErrUnsupported)

	feed := NewFeed(e.config(viewer))
	defer feed.Close()
	require.NoError(t, feed.Load(ctx))
	assert.ErrorIs(t, feed.Perform(ctx, optimistic.ActionFollow, "not-there"), ErrNoSuchItem)
}

func TestOwnerRefreshedUpdatesSelf(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.store.CreateTweet(ctx, viewer, "hi")
	require.NoError(t, err)
	self := NewSelf(e.config(viewer))
	defer self.Close()
	require.NoError(t, self.Load(ctx))

	_, err = e.store.UpdateProfile(ctx, viewer, "Renamed", "")
	require.NoError(t, err)

	assert.Equal(t, "Renamed", loadedPage(t, self)[0].Author.Name)
}

func TestCloseReleasesSubscriptions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	feed := NewFeed(e.config(viewer))
	require.NoError(t, feed.Load(ctx))
	require.Equal(t, 1, e.hub.Viewers())

	feed.Close()
	feed.Close()

	assert.Equal(t, 0, e.hub.Viewers())
	assert.ErrorIs(t, feed.Load(ctx), feedstate.ErrClosed)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("bookmarks")
	assert.True(t, ok)
	assert.Equal(t, KindBookmarks, k)
	k, ok = ParseKind("search")
	assert.True(t, ok)
	assert.Equal(t, KindSearch, k)
	_, ok = ParseKind("explore")
	assert.False(t, ok)
}

func TestCommentsScreenFollowsItsTweet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tw, err := e.store.CreateTweet(ctx, viewer, "ask me anything")
	require.NoError(t, err)
	other, err := e.store.CreateTweet(ctx, viewer, "unrelated")
	require.NoError(t, err)

	comments := NewComments(e.config(viewer), tw.ID)
	defer comments.Close()
	require.NoError(t, comments.Load(ctx))
	require.Empty(t, loadedPage(t, comments))

	c, err := e.store.Comment(ctx, "someone-else", tw.ID, "why?")
	require.NoError(t, err)
	_, err = e.store.Comment(ctx, "someone-else", other.ID, "elsewhere")
	require.NoError(t, err)

	page := loadedPage(t, comments)
	require.Len(t, page, 1)
	assert.Equal(t, c.ID, page[0].ID)

	mine, err := e.store.Comment(ctx, viewer, tw.ID, "because")
	require.NoError(t, err)
	_, err = e.store.UpdateProfile(ctx, viewer, "Answerer", "")
	require.NoError(t, err)
	page = loadedPage(t, comments)
	require.Len(t, page, 2)
	assert.Equal(t, mine.ID, page[0].ID)
	assert.Equal(t, "Answerer", page[0].Author.Name)
	assert.NotEqual(t, "Answerer", page[1].Author.Name)

	assert.ErrorIs(t, comments.Perform(ctx, optimistic.ActionLike, c.ID), ErrUnsupported)

	self := NewSelf(e.config(viewer))
	defer self.Close()
	require.NoError(t, self.Load(ctx))
	require.NoError(t, self.Perform(ctx, optimistic.ActionDelete, tw.ID))

	st := comments.State()
	p, ok := st.Page()
	require.True(t, ok)
	assert.Empty(t, p.Page)
	assert.False(t, p.HasMore(), "thread of a deleted tweet is terminal")
}

func TestCommentOnOtherScreenBumpsCount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	feed := NewFeed(e.config(viewer))
	defer feed.Close()
	require.NoError(t, feed.Load(ctx))
	target := loadedPage(t, feed)[0]

	_, err := e.store.Comment(ctx, "someone-else", target.ID, "+1")
	require.NoError(t, err)

	assert.Equal(t, target.CommentsCount()+1, find(t, feed, target.ID).CommentsCount())
}

func TestSearchScreenFollowsMatches(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var target model.User
	for _, id := range e.store.SampleUsers() {
		u, err := e.store.User(ctx, viewer, id)
		require.NoError(t, err)
		if !u.Following() {
			target = u
			break
		}
	}
	require.NotEmpty(t, target.ID)

	search := NewSearch(e.config(viewer), target.Username)
	defer search.Close()
	require.NoError(t, search.Load(ctx))
	assert.Equal(t, KindSearch, search.Kind())
	hit := func() model.User {
		p, _ := search.State().Page()
		u, _, ok := reconcile.Find(p, target.ID)
		require.True(t, ok, "user %s not in results", target.ID)
		return u
	}
	require.False(t, hit().Following())

	require.NoError(t, search.Perform(ctx, optimistic.ActionFollow, target.ID))
	assert.True(t, hit().Following())
	assert.Equal(t, target.Social.FollowersCount+1, hit().Social.FollowersCount)

	e.src.setFailing(true)
	require.Error(t, search.Perform(ctx, optimistic.ActionUnfollow, target.ID))
	assert.True(t, hit().Following(), "failed unfollow rolled back")
	e.src.setFailing(false)

	assert.ErrorIs(t, search.Perform(ctx, optimistic.ActionBookmark, target.ID), ErrUnsupported)
}
