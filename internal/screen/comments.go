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

type commentPage = paginated.Paginated[model.Comment]

func commentRules(tweetID string) map[event.Kind]rule[model.Comment] {
	return map[event.Kind]rule[model.Comment]{
		event.KindCommentCreated: on(func(p commentPage, e event.CommentCreated) commentPage {
			if e.TweetID != tweetID || reconcile.Contains(p, e.Comment.ID) {
				return p
			}
			return reconcile.Prepend(p, e.Comment)
		}),
		// The thread goes away with its tweet.
		event.KindEntityDeleted: on(func(p commentPage, e event.EntityDeleted) commentPage {
			if e.ID == tweetID {
				if len(p.Page) == 0 && !p.HasMore() {
					return p
				}
				return paginated.Empty[model.Comment]()
			}
			return reconcile.Remove(p, e.ID)
		}),
		event.KindOwnerRefreshed: on(func(p commentPage, e event.OwnerRefreshed) commentPage {
			return reconcile.OwnerRefreshed(p, e.Owner)
		}),
	}
}

func commentChange(*Screen[model.Comment], optimistic.Action, string) (optimistic.Change[model.Comment], error) {
	return optimistic.Change[model.Comment]{}, ErrUnsupported
}

// NewComments opens the comments on tweetID. New comments are prepended as
// they arrive.
func NewComments(cfg Config, tweetID string) *Screen[model.Comment] {
	fetch := func(ctx context.Context, cursor *string) (commentPage, error) {
		return cfg.Source.Comments(ctx, cfg.Viewer, tweetID, cursor)
	}
	return build(KindComments, cfg, feedstate.FetchFunc[model.Comment](fetch), commentRules(tweetID), commentChange)
}
