package model

import "time"

// Comment is a reply to a tweet.
type Comment struct {
	ID        string    `json:"id"`
	TweetID   string    `json:"tweet_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Author    User      `json:"author"`
}

func (c Comment) EntityID() string { return c.ID }
func (c Comment) OwnerID() string  { return c.Author.ID }

func (c Comment) WithOwner(owner User) Comment {
	c.Author = owner
	return c
}
