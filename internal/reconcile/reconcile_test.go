package reconcile

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeline-service/internal/model"
	"timeline-service/internal/paginated"
)

func tweet(id string, liked bool, likes int) model.Tweet {
	return model.Tweet{
		ID:        id,
		Author:    model.User{ID: "author-" + id},
		Meta:      model.TweetMeta{LikesCount: likes},
		Viewables: model.TweetViewables{Liked: liked},
	}
}

func page(items ...model.Tweet) paginated.Paginated[model.Tweet] {
	return paginated.New(items, "t1")
}

func ids(p paginated.Paginated[model.Tweet]) []string {
	out := make([]string, 0, p.Len())
	for _, t := range p.Page {
		out = append(out, t.ID)
	}
	return out
}

func TestLikeCreated(t *testing.T) {
	p := page(tweet("A", false, 3))

	once := LikeCreated(p, "A")
	require.Len(t, once.Page, 1)
	assert.True(t, once.Page[0].Liked())
	assert.Equal(t, 4, once.Page[0].LikesCount())

	twice := LikeCreated(once, "A")
	assert.Equal(t, once, twice)
	assert.Equal(t, "t1", twice.Token(), "token survives patches")

	assert.False(t, p.Page[0].Liked(), "input page stays untouched")
}

func TestLikeDeleted(t *testing.T) {
	p := page(tweet("A", true, 4))

	once := LikeDeleted(p, "A")
	assert.False(t, once.Page[0].Liked())
	assert.Equal(t, 3, once.Page[0].LikesCount())
	assert.Equal(t, once, LikeDeleted(once, "A"))
}

func TestLikeDeletedNeverNegative(t *testing.T) {
	got := LikeDeleted(page(tweet("A", true, 0)), "A")
	assert.Equal(t, 0, got.Page[0].LikesCount())
}

func TestLikeSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		initial := rng.Intn(10)
		p := page(tweet("A", false, initial))
		creates, deletes := 0, 0

		n := rng.Intn(20)
		for i := 0; i < n; i++ {
			if i%2 == 0 {
				p = LikeCreated(p, "A")
				creates++
			} else {
				p = LikeDeleted(p, "A")
				deletes++
			}
		}

		got := p.Page[0]
		assert.Equal(t, creates%2 == 1, got.Liked())
		assert.Equal(t, initial+creates-deletes, got.LikesCount())
		assert.GreaterOrEqual(t, got.LikesCount(), 0)
	}
}

func TestUnmatchedEventsReturnSamePage(t *testing.T) {
	p := page(tweet("A", false, 1), tweet("B", true, 2))

	tests := []struct {
		name string
		fn   func(paginated.Paginated[model.Tweet]) paginated.Paginated[model.Tweet]
	}{
		{"like unknown", func(p paginated.Paginated[model.Tweet]) paginated.Paginated[model.Tweet] { return LikeCreated(p, "Z") }},
		{"unlike unknown", func(p paginated.Paginated[model.Tweet]) paginated.Paginated[model.Tweet] { return LikeDeleted(p, "Z") }},
		{"bookmark unknown", func(p paginated.Paginated[model.Tweet]) paginated.Paginated[model.Tweet] { return BookmarkCreated(p, "Z") }},
		{"unbookmark unknown", func(p paginated.Paginated[model.Tweet]) paginated.Paginated[model.Tweet] { return BookmarkDeleted(p, "Z") }},
		{"delete unknown", func(p paginated.Paginated[model.Tweet]) paginated.Paginated[model.Tweet] { return Remove(p, "Z") }},
		{"like the liked", func(p paginated.Paginated[model.Tweet]) paginated.Paginated[model.Tweet] { return LikeCreated(p, "B") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(p)
			assert.Same(t, &p.Page[0], &got.Page[0], "page slice is reused")
		})
	}
}

func TestBookmarks(t *testing.T) {
	p := page(tweet("A", false, 0))

	on := BookmarkCreated(p, "A")
	assert.True(t, on.Page[0].Bookmarked())
	assert.Equal(t, on, BookmarkCreated(on, "A"))

	off := BookmarkDeleted(on, "A")
	assert.False(t, off.Page[0].Bookmarked())
	assert.Equal(t, off, BookmarkDeleted(off, "A"))
}

func TestRemove(t *testing.T) {
	p := page(tweet("A", false, 0), tweet("B", false, 0), tweet("C", false, 0))

	got := Remove(p, "B")
	assert.Equal(t, []string{"A", "C"}, ids(got))
	assert.Equal(t, "t1", got.Token())

	again := Remove(got, "B")
	assert.Equal(t, got, again)
	assert.Equal(t, []string{"A", "B", "C"}, ids(p))
}

func TestPrependAndInsert(t *testing.T) {
	p := page(tweet("B", false, 0), tweet("C", false, 0))

	assert.Equal(t, []string{"A", "B", "C"}, ids(Prepend(p, tweet("A", false, 0))))
	assert.Equal(t, []string{"B", "X", "C"}, ids(InsertAt(p, 1, tweet("X", false, 0))))
	assert.Equal(t, []string{"B", "C", "X"}, ids(InsertAt(p, 10, tweet("X", false, 0))))
	assert.Equal(t, []string{"X", "B", "C"}, ids(InsertAt(p, -1, tweet("X", false, 0))))
}

func TestReplace(t *testing.T) {
	p := page(tweet("A", false, 0), tweet("B", false, 0))
	edited := tweet("B", false, 0)
	edited.Text = "edited"

	got := Replace(p, edited)
	assert.Equal(t, "edited", got.Page[1].Text)
	assert.Equal(t, "", p.Page[1].Text)
}

func TestOwnerRefreshed(t *testing.T) {
	mine := tweet("A", false, 0)
	mine.Author = model.User{ID: "me", Name: "Old"}
	other := tweet("B", false, 0)
	p := page(mine, other)

	got := OwnerRefreshed(p, model.User{ID: "me", Name: "New", Bio: "bio"})

	assert.Equal(t, "New", got.Page[0].Author.Name)
	assert.Equal(t, "bio", got.Page[0].Author.Bio)
	assert.Equal(t, other, got.Page[1])
}

func TestFollows(t *testing.T) {
	p := paginated.New([]model.Follower{
		{User: model.User{ID: "u1"}},
		{User: model.User{ID: "u2", Viewables: model.UserViewables{Following: true}, Social: model.UserSocialDetails{FollowersCount: 1}}},
	}, "")

	on := FollowCreated(p, "u1")
	assert.True(t, on.Page[0].Following())
	assert.Equal(t, 1, on.Page[0].User.Social.FollowersCount)
	assert.Equal(t, on, FollowCreated(on, "u1"))

	off := FollowDeleted(on, "u2")
	assert.False(t, off.Page[1].Following())
	assert.Equal(t, 0, off.Page[1].User.Social.FollowersCount)
}

func TestCommentCreated(t *testing.T) {
	got := CommentCreated(page(tweet("A", false, 0)), "A")
	assert.Equal(t, 1, got.Page[0].CommentsCount())
}

func TestFind(t *testing.T) {
	p := page(tweet("A", false, 0), tweet("B", false, 0))

	it, idx, ok := Find(p, "B")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "B", it.ID)

	_, idx, ok = Find(p, "Z")
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
	assert.True(t, Contains(p, "A"))
}
