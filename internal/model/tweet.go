// Package model defines the entity snapshots shown by the screens.
package model

import "time"

type TweetMeta struct {
	LikesCount    int `json:"likes_count"`
	CommentsCount int `json:"comments_count"`
}

// TweetViewables are flags relative to the viewer.
type TweetViewables struct {
	Liked      bool `json:"liked"`
	Bookmarked bool `json:"bookmarked"`
}

// Tweet is a value snapshot. The With* methods return modified copies and
// never touch the receiver.
type Tweet struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	CreatedAt time.Time      `json:"created_at"`
	Meta      TweetMeta      `json:"meta"`
	Author    User           `json:"author"`
	Viewables TweetViewables `json:"viewables"`
}

func (t Tweet) EntityID() string { return t.ID }
func (t Tweet) OwnerID() string  { return t.Author.ID }

func (t Tweet) Liked() bool     { return t.Viewables.Liked }
func (t Tweet) LikesCount() int { return t.Meta.LikesCount }

func (t Tweet) WithLike(liked bool, count int) Tweet {
	t.Viewables.Liked = liked
	t.Meta.LikesCount = count
	return t
}

func (t Tweet) Bookmarked() bool { return t.Viewables.Bookmarked }

func (t Tweet) WithBookmark(bookmarked bool) Tweet {
	t.Viewables.Bookmarked = bookmarked
	return t
}

func (t Tweet) WithOwner(owner User) Tweet {
	t.Author = owner
	return t
}

func (t Tweet) Following() bool { return t.Author.Viewables.Following }

func (t Tweet) WithFollowing(following bool) Tweet {
	t.Author = t.Author.WithFollowing(following)
	return t
}

func (t Tweet) CommentsCount() int { return t.Meta.CommentsCount }

func (t Tweet) WithComments(count int) Tweet {
	t.Meta.CommentsCount = count
	return t
}
