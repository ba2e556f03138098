package screen

import (
	"context"

	"timeline-service/internal/event"
	"timeline-service/internal/feedstate"
	"timeline-service/internal/model"
	"timeline-service/internal/optimistic"
	"timeline-service/internal/paginated"
	"timeline-service/internal/reconcile"
)

type tweetPage = paginated.Paginated[model.Tweet]

// tweetRules are shared by every tweet list.
func tweetRules() map[event.Kind]rule[model.Tweet] {
	return map[event.Kind]rule[model.Tweet]{
		event.KindEntityDeleted: on(func(p tweetPage, e event.EntityDeleted) tweetPage {
			return reconcile.Remove(p, e.ID)
		}),
		event.KindEntityUpdated: on(func(p tweetPage, e event.EntityUpdated) tweetPage {
			return reconcile.Replace(p, e.Tweet)
		}),
		event.KindLikeCreated: on(func(p tweetPage, e event.LikeCreated) tweetPage {
			return reconcile.LikeCreated(p, e.ID)
		}),
		event.KindLikeDeleted: on(func(p tweetPage, e event.LikeDeleted) tweetPage {
			return reconcile.LikeDeleted(p, e.ID)
		}),
		event.KindBookmarkCreated: on(func(p tweetPage, e event.BookmarkCreated) tweetPage {
			return reconcile.BookmarkCreated(p, e.ID)
		}),
		event.KindBookmarkDeleted: on(func(p tweetPage, e event.BookmarkDeleted) tweetPage {
			return reconcile.BookmarkDeleted(p, e.ID)
		}),
		event.KindOwnerRefreshed: on(func(p tweetPage, e event.OwnerRefreshed) tweetPage {
			return reconcile.OwnerRefreshed(p, e.Owner)
		}),
		event.KindFollowCreated: on(func(p tweetPage, e event.FollowCreated) tweetPage {
			return reconcile.FollowCreated(p, e.UserID)
		}),
		event.KindFollowDeleted: on(func(p tweetPage, e event.FollowDeleted) tweetPage {
			return reconcile.FollowDeleted(p, e.UserID)
		}),
		event.KindCommentCreated: on(func(p tweetPage, e event.CommentCreated) tweetPage {
			return reconcile.CommentCreated(p, e.TweetID)
		}),
	}
}

// tweetChange maps an action on a tweet to its optimistic change. Follow and
// unfollow act on the tweet's author, so the tweet has to be on screen.
func tweetChange(s *Screen[model.Tweet], action optimistic.Action, id string) (optimistic.Change[model.Tweet], error) {
	switch action {
	case optimistic.ActionLike:
		return optimistic.Like[model.Tweet](id), nil
	case optimistic.ActionUnlike:
		return optimistic.Unlike[model.Tweet](id), nil
	case optimistic.ActionBookmark:
		return optimistic.Bookmark[model.Tweet](id), nil
	case optimistic.ActionUnbookmark:
		return optimistic.Unbookmark[model.Tweet](id), nil
	case optimistic.ActionDelete:
		return optimistic.Delete[model.Tweet](id), nil
	case optimistic.ActionFollow, optimistic.ActionUnfollow:
		p, _ := s.State().Page()
		tw, _, ok := reconcile.Find(p, id)
		if !ok {
			return optimistic.Change[model.Tweet]{}, ErrNoSuchItem
		}
		if action == optimistic.ActionFollow {
			return optimistic.Follow[model.Tweet](tw.OwnerID()), nil
		}
		return optimistic.Unfollow[model.Tweet](tw.OwnerID()), nil
	}
	return optimistic.Change[model.Tweet]{}, ErrUnsupported
}

// NewFeed opens the viewer's home timeline. Tweets created elsewhere are not
// prepended; they appear on the next load.
func NewFeed(cfg Config) *Screen[model.Tweet] {
	fetch := func(ctx context.Context, cursor *string) (tweetPage, error) {
		return cfg.Source.Feed(ctx, cfg.Viewer, cursor)
	}
	return build(KindFeed, cfg, feedstate.FetchFunc[model.Tweet](fetch), tweetRules(), tweetChange)
}

// NewProfile opens the tweets of userID. Tweets that userID creates while the
// screen is open are prepended.
func NewProfile(cfg Config, userID string) *Screen[model.Tweet] {
	kind := KindProfile
	if userID == cfg.Viewer {
		kind = KindSelf
	}
	fetch := func(ctx context.Context, cursor *string) (tweetPage, error) {
		return cfg.Source.UserTweets(ctx, cfg.Viewer, userID, cursor)
	}
	rules := tweetRules()
	rules[event.KindEntityCreated] = on(func(p tweetPage, e event.EntityCreated) tweetPage {
		if e.Tweet.OwnerID() != userID || reconcile.Contains(p, e.Tweet.ID) {
			return p
		}
		return reconcile.Prepend(p, e.Tweet)
	})
	return build(kind, cfg, feedstate.FetchFunc[model.Tweet](fetch), rules, tweetChange)
}

// NewSelf opens the viewer's own profile.
func NewSelf(cfg Config) *Screen[model.Tweet] {
	return NewProfile(cfg, cfg.Viewer)
}

// NewBookmarks opens the viewer's bookmarks. Unbookmarked tweets leave the
// list at once; new bookmarks show up on the next load.
func NewBookmarks(cfg Config) *Screen[model.Tweet] {
	fetch := func(ctx context.Context, cursor *string) (tweetPage, error) {
		return cfg.Source.Bookmarks(ctx, cfg.Viewer, cursor)
	}
	rules := tweetRules()
	delete(rules, event.KindBookmarkCreated)
	rules[event.KindBookmarkDeleted] = on(func(p tweetPage, e event.BookmarkDeleted) tweetPage {
		return reconcile.Remove(p, e.ID)
	})
	return build(KindBookmarks, cfg, feedstate.FetchFunc[model.Tweet](fetch), rules, tweetChange)
}
