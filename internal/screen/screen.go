// Package screen assembles the paginated screens of the client: a state slot,
// the event rules that keep its page current, and the user actions it offers.
package screen

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"timeline-service/internal/event"
	"timeline-service/internal/feedstate"
	"timeline-service/internal/metrics"
	"timeline-service/internal/model"
	"timeline-service/internal/optimistic"
	"timeline-service/internal/paginated"
	"timeline-service/internal/shared/logx"
)

type Kind string

const (
	KindFeed      Kind = "feed"
	KindSelf      Kind = "self"
	KindProfile   Kind = "profile"
	KindFollowers Kind = "followers"
	KindFollowees Kind = "followees"
	KindBookmarks Kind = "bookmarks"
	KindComments  Kind = "comments"
	KindSearch    Kind = "search"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindFeed, KindSelf, KindProfile, KindFollowers, KindFollowees, KindBookmarks, KindComments, KindSearch:
		return k, true
	}
	return "", false
}

var (
	ErrUnsupported = errors.New("action not supported on this screen")
	ErrNoSuchItem  = errors.New("item not on screen")
)

// TweetSource serves the tweet lists.
type TweetSource interface {
	Feed(ctx context.Context, viewer string, cursor *string) (paginated.Paginated[model.Tweet], error)
	UserTweets(ctx context.Context, viewer, userID string, cursor *string) (paginated.Paginated[model.Tweet], error)
	Bookmarks(ctx context.Context, viewer string, cursor *string) (paginated.Paginated[model.Tweet], error)
}

// UserSource serves the relation lists.
type UserSource interface {
	Followers(ctx context.Context, viewer, userID string, cursor *string) (paginated.Paginated[model.Follower], error)
	Followees(ctx context.Context, viewer, userID string, cursor *string) (paginated.Paginated[model.Follower], error)
	Search(ctx context.Context, viewer, keyword string, cursor *string) (paginated.Paginated[model.User], error)
}

type CommentSource interface {
	Comments(ctx context.Context, viewer, tweetID string, cursor *string) (paginated.Paginated[model.Comment], error)
}

type Source interface {
	TweetSource
	UserSource
	CommentSource
	Mutator(viewer string) optimistic.Mutator
}

// Config is shared by every screen constructor.
type Config struct {
	Viewer string
	Source Source
	Events event.Subscriber
	Log    *zap.Logger

	OnChange    func(feedstate.Status)
	OnTransient func(feedstate.Operation, error)
}

// rule folds one kind of event into a page.
type rule[T any] func(paginated.Paginated[T], event.Event) paginated.Paginated[T]

func on[E event.Event, T any](fn func(paginated.Paginated[T], E) paginated.Paginated[T]) rule[T] {
	return func(p paginated.Paginated[T], ev event.Event) paginated.Paginated[T] {
		e, ok := ev.(E)
		if !ok {
			return p
		}
		return fn(p, e)
	}
}

// Screen is one open screen. It is safe for concurrent use.
type Screen[T any] struct {
	kind   Kind
	viewer string
	feed   *feedstate.Feed[T]
	mut    optimistic.Mutator
	change func(s *Screen[T], action optimistic.Action, id string) (optimistic.Change[T], error)
	sub    *event.Subscription
	log    *zap.Logger
}

func build[T any](
	kind Kind,
	cfg Config,
	fetch feedstate.FetchFunc[T],
	rules map[event.Kind]rule[T],
	change func(*Screen[T], optimistic.Action, string) (optimistic.Change[T], error),
) *Screen[T] {
	log := logx.OrNop(cfg.Log).With(zap.String("viewer", cfg.Viewer))

	hooks := feedstate.Hooks[T]{OnTransient: cfg.OnTransient}
	if cfg.OnChange != nil {
		hooks.OnChange = func(st feedstate.State[T]) { cfg.OnChange(st.Status()) }
	}

	s := &Screen[T]{
		kind:   kind,
		viewer: cfg.Viewer,
		feed:   feedstate.New(string(kind), fetch, hooks, log),
		mut:    cfg.Source.Mutator(cfg.Viewer),
		change: change,
		log:    log,
	}

	kinds := make([]event.Kind, 0, len(rules))
	for k := range rules {
		kinds = append(kinds, k)
	}
	if cfg.Events != nil && len(kinds) > 0 {
		s.sub = cfg.Events.Subscribe(func(ev event.Event) {
			apply, ok := rules[ev.Kind()]
			if !ok {
				return
			}
			if s.feed.Patch(func(p paginated.Paginated[T]) paginated.Paginated[T] { return apply(p, ev) }) {
				metrics.RecordReconciled(string(kind), string(ev.Kind()))
			}
		}, kinds...)
	}
	return s
}

func (s *Screen[T]) Kind() Kind     { return s.kind }
func (s *Screen[T]) Viewer() string { return s.viewer }

func (s *Screen[T]) State() feedstate.State[T] { return s.feed.State() }

// Snapshot returns the current state in a form ready for encoding.
func (s *Screen[T]) Snapshot() any { return s.feed.State() }

func (s *Screen[T]) Load(ctx context.Context) error    { return s.feed.Load(ctx) }
func (s *Screen[T]) Refresh(ctx context.Context) error { return s.feed.Refresh(ctx) }
func (s *Screen[T]) Extend(ctx context.Context) error  { return s.feed.Extend(ctx) }

// Perform runs action on the item id optimistically.
func (s *Screen[T]) Perform(ctx context.Context, action optimistic.Action, id string) error {
	c, err := s.change(s, action, id)
	if err != nil {
		return fmt.Errorf("%s on %s: %w", action, s.kind, err)
	}
	return optimistic.Run(ctx, s.feed, s.mut, c)
}

// Close unsubscribes from the bus and drops results still in flight.
func (s *Screen[T]) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	s.feed.Close()
	s.log.Debug("screen closed", zap.String("screen", string(s.kind)))
}
