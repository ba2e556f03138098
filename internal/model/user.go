package model

import "time"

type UserSocialDetails struct {
	FollowersCount  int `json:"followers_count"`
	FollowingsCount int `json:"followings_count"`
}

type UserActivityDetails struct {
	TweetsCount int `json:"tweets_count"`
}

// UserViewables are flags relative to the viewer.
type UserViewables struct {
	Following bool `json:"following"`
	Follower  bool `json:"follower"`
}

type User struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Username  string              `json:"username"`
	Image     string              `json:"image"`
	Bio       string              `json:"bio"`
	CreatedAt time.Time           `json:"created_at"`
	Social    UserSocialDetails   `json:"social"`
	Activity  UserActivityDetails `json:"activity"`
	Viewables UserViewables       `json:"viewables"`
}

func (u User) EntityID() string { return u.ID }
func (u User) OwnerID() string  { return u.ID }
func (u User) Following() bool  { return u.Viewables.Following }

// WithFollowing flips the viewer's following flag and adjusts the follower count.
func (u User) WithFollowing(following bool) User {
	if u.Viewables.Following == following {
		return u
	}
	u.Viewables.Following = following
	if following {
		u.Social.FollowersCount++
	} else if u.Social.FollowersCount > 0 {
		u.Social.FollowersCount--
	}
	return u
}

func (u User) WithOwner(owner User) User { return owner }
