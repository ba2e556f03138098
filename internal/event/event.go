// Package event defines the side-effect notifications exchanged between
// screens and the bus that delivers them.
package event

import "timeline-service/internal/model"

// Kind identifies an event type on the bus and on the wire.
type Kind string

const (
	KindEntityCreated   Kind = "EntityCreated"
	KindEntityDeleted   Kind = "EntityDeleted"
	KindEntityUpdated   Kind = "EntityUpdated"
	KindLikeCreated     Kind = "LikeCreated"
	KindLikeDeleted     Kind = "LikeDeleted"
	KindBookmarkCreated Kind = "BookmarkCreated"
	KindBookmarkDeleted Kind = "BookmarkDeleted"
	KindOwnerRefreshed  Kind = "OwnerRefreshed"
	KindFollowCreated   Kind = "FollowCreated"
	KindFollowDeleted   Kind = "FollowDeleted"
	KindCommentCreated  Kind = "CommentCreated"
)

// Event carries ids and the smallest delta needed to patch a page.
type Event interface {
	Kind() Kind
}

type EntityCreated struct {
	Tweet model.Tweet `json:"tweet"`
}

type EntityDeleted struct {
	ID string `json:"id"`
}

type EntityUpdated struct {
	Tweet model.Tweet `json:"tweet"`
}

type LikeCreated struct {
	ID string `json:"id"`
}

type LikeDeleted struct {
	ID string `json:"id"`
}

type BookmarkCreated struct {
	ID string `json:"id"`
}

type BookmarkDeleted struct {
	ID string `json:"id"`
}

type OwnerRefreshed struct {
	Owner model.User `json:"owner"`
}

type FollowCreated struct {
	UserID string `json:"user_id"`
}

type FollowDeleted struct {
	UserID string `json:"user_id"`
}

// CommentCreated carries the new comment with its author as seen by nobody in
// particular.
type CommentCreated struct {
	TweetID string        `json:"tweet_id"`
	Comment model.Comment `json:"comment"`
}

func (EntityCreated) Kind() Kind   { return KindEntityCreated }
func (EntityDeleted) Kind() Kind   { return KindEntityDeleted }
func (EntityUpdated) Kind() Kind   { return KindEntityUpdated }
func (LikeCreated) Kind() Kind     { return KindLikeCreated }
func (LikeDeleted) Kind() Kind     { return KindLikeDeleted }
func (BookmarkCreated) Kind() Kind { return KindBookmarkCreated }
func (BookmarkDeleted) Kind() Kind { return KindBookmarkDeleted }
func (OwnerRefreshed) Kind() Kind  { return KindOwnerRefreshed }
func (FollowCreated) Kind() Kind   { return KindFollowCreated }
func (FollowDeleted) Kind() Kind   { return KindFollowDeleted }
func (CommentCreated) Kind() Kind  { return KindCommentCreated }
