package model

import "time"

// Follower is one row of a followers or followees list.
type Follower struct {
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

func (f Follower) EntityID() string { return f.User.ID }
func (f Follower) OwnerID() string  { return f.User.ID }
func (f Follower) Following() bool  { return f.User.Viewables.Following }

func (f Follower) WithFollowing(following bool) Follower {
	f.User = f.User.WithFollowing(following)
	return f
}

func (f Follower) WithOwner(owner User) Follower {
	f.User = owner
	return f
}
