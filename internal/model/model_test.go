package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTweetCopiesAreIndependent(t *testing.T) {
	orig := Tweet{ID: "a", Meta: TweetMeta{LikesCount: 3}}

	liked := orig.WithLike(true, 4)

	assert.False(t, orig.Liked())
	assert.Equal(t, 3, orig.LikesCount())
	assert.True(t, liked.Liked())
	assert.Equal(t, 4, liked.LikesCount())
}

func TestUserWithFollowing(t *testing.T) {
	u := User{ID: "u1", Social: UserSocialDetails{FollowersCount: 1}}

	followed := u.WithFollowing(true)
	assert.True(t, followed.Following())
	assert.Equal(t, 2, followed.Social.FollowersCount)

	assert.Equal(t, followed, followed.WithFollowing(true), "already following")

	unfollowed := followed.WithFollowing(false)
	assert.Equal(t, u, unfollowed)
}

func TestUserFollowerCountNeverNegative(t *testing.T) {
	u := User{ID: "u1", Viewables: UserViewables{Following: true}}
	assert.Equal(t, 0, u.WithFollowing(false).Social.FollowersCount)
}

func TestTweetWithOwner(t *testing.T) {
	tw := Tweet{ID: "a", Author: User{ID: "u1", Name: "old"}}
	got := tw.WithOwner(User{ID: "u1", Name: "new"})
	assert.Equal(t, "new", got.Author.Name)
	assert.Equal(t, "old", tw.Author.Name)
}

func TestCommentWithOwner(t *testing.T) {
	c := Comment{ID: "c1", TweetID: "t1", Author: User{ID: "u1", Name: "old"}}
	got := c.WithOwner(User{ID: "u1", Name: "new"})
	assert.Equal(t, "new", got.Author.Name)
	assert.Equal(t, "u1", got.OwnerID())
	assert.Equal(t, "old", c.Author.Name)
}
