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

type followerPage = paginated.Paginated[model.Follower]

func followerRules() map[event.Kind]rule[model.Follower] {
	return map[event.Kind]rule[model.Follower]{
		event.KindFollowCreated: on(func(p followerPage, e event.FollowCreated) followerPage {
			return reconcile.FollowCreated(p, e.UserID)
		}),
		event.KindFollowDeleted: on(func(p followerPage, e event.FollowDeleted) followerPage {
			return reconcile.FollowDeleted(p, e.UserID)
		}),
		event.KindOwnerRefreshed: on(func(p followerPage, e event.OwnerRefreshed) followerPage {
			return reconcile.OwnerRefreshed(p, e.Owner)
		}),
	}
}

func followerChange(_ *Screen[model.Follower], action optimistic.Action, id string) (optimistic.Change[model.Follower], error) {
	switch action {
	case optimistic.ActionFollow:
		return optimistic.Follow[model.Follower](id), nil
	case optimistic.ActionUnfollow:
		return optimistic.Unfollow[model.Follower](id), nil
	}
	return optimistic.Change[model.Follower]{}, ErrUnsupported
}

// NewFollowers opens the list of users following userID.
func NewFollowers(cfg Config, userID string) *Screen[model.Follower] {
	fetch := func(ctx context.Context, cursor *string) (followerPage, error) {
		return cfg.Source.Followers(ctx, cfg.Viewer, userID, cursor)
	}
	return build(KindFollowers, cfg, feedstate.FetchFunc[model.Follower](fetch), followerRules(), followerChange)
}

// NewFollowees opens the list of users userID follows.
func NewFollowees(cfg Config, userID string) *Screen[model.Follower] {
	fetch := func(ctx context.Context, cursor *string) (followerPage, error) {
		return cfg.Source.Followees(ctx, cfg.Viewer, userID, cursor)
	}
	return build(KindFollowees, cfg, feedstate.FetchFunc[model.Follower](fetch), followerRules(), followerChange)
}

type userPage = paginated.Paginated[model.User]

func userRules() map[event.Kind]rule[model.User] {
	return map[event.Kind]rule[model.User]{
		event.KindFollowCreated: on(func(p userPage, e event.FollowCreated) userPage {
			return reconcile.FollowCreated(p, e.UserID)
		}),
		event.KindFollowDeleted: on(func(p userPage, e event.FollowDeleted) userPage {
			return reconcile.FollowDeleted(p, e.UserID)
		}),
		event.KindOwnerRefreshed: on(func(p userPage, e event.OwnerRefreshed) userPage {
			return reconcile.OwnerRefreshed(p, e.Owner)
		}),
	}
}

func userChange(_ *Screen[model.User], action optimistic.Action, id string) (optimistic.Change[model.User], error) {
	switch action {
	case optimistic.ActionFollow:
		return optimistic.Follow[model.User](id), nil
	case optimistic.ActionUnfollow:
		return optimistic.Unfollow[model.User](id), nil
	}
	return optimistic.Change[model.User]{}, ErrUnsupported
}

// NewSearch opens the users matching keyword.
func NewSearch(cfg Config, keyword string) *Screen[model.User] {
	fetch := func(ctx context.Context, cursor *string) (userPage, error) {
		return cfg.Source.Search(ctx, cfg.Viewer, keyword, cursor)
	}
	return build(KindSearch, cfg, feedstate.FetchFunc[model.User](fetch), userRules(), userChange)
}
