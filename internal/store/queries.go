package store

import (
	"context"
	"strings"
	"time"

	"timeline-service/internal/model"
	"timeline-service/internal/paginated"
)

// Feed returns the viewer's home timeline: their own tweets and those of the
// users they follow.
func (s *Store) Feed(ctx context.Context, viewer string, cursor *string) (paginated.Paginated[model.Tweet], error) {
	if err := s.transport(ctx, "feed"); err != nil {
		return paginated.Paginated[model.Tweet]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureViewerLocked(viewer)

	rows := make([]row[model.Tweet], 0, len(s.tweets))
	for _, t := range s.tweets {
		_, followed := s.following[viewer][t.authorID]
		if t.authorID == viewer || followed {
			rows = append(rows, row[model.Tweet]{at: t.createdAt, id: t.id, item: s.tweetViewLocked(viewer, t)})
		}
	}
	sortRows(rows)
	return pageOf(rows, cursor, s.opts.PageSize)
}

// UserTweets returns the tweets authored by userID as seen by viewer.
func (s *Store) UserTweets(ctx context.Context, viewer, userID string, cursor *string) (paginated.Paginated[model.Tweet], error) {
	if err := s.transport(ctx, "user_tweets"); err != nil {
		return paginated.Paginated[model.Tweet]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureViewerLocked(viewer)
	if _, ok := s.users[userID]; !ok {
		return paginated.Paginated[model.Tweet]{}, ErrNotFound
	}

	var rows []row[model.Tweet]
	for _, t := range s.tweets {
		if t.authorID == userID {
			rows = append(rows, row[model.Tweet]{at: t.createdAt, id: t.id, item: s.tweetViewLocked(viewer, t)})
		}
	}
	sortRows(rows)
	return pageOf(rows, cursor, s.opts.PageSize)
}

// Followers lists the users following userID, most recent first.
func (s *Store) Followers(ctx context.Context, viewer, userID string, cursor *string) (paginated.Paginated[model.Follower], error) {
	if err := s.transport(ctx, "followers"); err != nil {
		return paginated.Paginated[model.Follower]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureViewerLocked(viewer)
	if _, ok := s.users[userID]; !ok {
		return paginated.Paginated[model.Follower]{}, ErrNotFound
	}
	return pageOf(s.relationRowsLocked(viewer, s.followers[userID]), cursor, s.opts.PageSize)
}

// Followees lists the users userID follows, most recent first.
func (s *Store) Followees(ctx context.Context, viewer, userID string, cursor *string) (paginated.Paginated[model.Follower], error) {
	if err := s.transport(ctx, "followees"); err != nil {
		return paginated.Paginated[model.Follower]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureViewerLocked(viewer)
	if _, ok := s.users[userID]; !ok {
		return paginated.Paginated[model.Follower]{}, ErrNotFound
	}
	return pageOf(s.relationRowsLocked(viewer, s.following[userID]), cursor, s.opts.PageSize)
}

func (s *Store) relationRowsLocked(viewer string, rel map[string]time.Time) []row[model.Follower] {
	rows := make([]row[model.Follower], 0, len(rel))
	for id, since := range rel {
		rows = append(rows, row[model.Follower]{
			at:   since,
			id:   id,
			item: model.Follower{User: s.userViewLocked(viewer, s.users[id]), CreatedAt: since},
		})
	}
	sortRows(rows)
	return rows
}

// Bookmarks lists the viewer's bookmarked tweets, most recently bookmarked
// first.
func (s *Store) Bookmarks(ctx context.Context, viewer string, cursor *string) (paginated.Paginated[model.Tweet], error) {
	if err := s.transport(ctx, "bookmarks"); err != nil {
		return paginated.Paginated[model.Tweet]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureViewerLocked(viewer)

	var rows []row[model.Tweet]
	for _, t := range s.tweets {
		if at, ok := t.bookmarks[viewer]; ok {
			rows = append(rows, row[model.Tweet]{at: at, id: t.id, item: s.tweetViewLocked(viewer, t)})
		}
	}
	sortRows(rows)
	return pageOf(rows, cursor, s.opts.PageSize)
}

// User returns userID as seen by viewer.
func (s *Store) User(ctx context.Context, viewer, userID string) (model.User, error) {
	if err := s.transport(ctx, "user"); err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureViewerLocked(viewer)
	u, ok := s.users[userID]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return s.userViewLocked(viewer, u), nil
}

// Comments lists the comments on tweetID, newest first.
func (s *Store) Comments(ctx context.Context, viewer, tweetID string, cursor *string) (paginated.Paginated[model.Comment], error) {
	if err := s.transport(ctx, "comments"); err != nil {
		return paginated.Paginated[model.Comment]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureViewerLocked(viewer)
	t, ok := s.tweets[tweetID]
	if !ok {
		return paginated.Paginated[model.Comment]{}, ErrNotFound
	}

	rows := make([]row[model.Comment], 0, len(t.comments))
	for _, c := range t.comments {
		rows = append(rows, row[model.Comment]{at: c.createdAt, id: c.id, item: s.commentViewLocked(viewer, t.id, c)})
	}
	sortRows(rows)
	return pageOf(rows, cursor, s.opts.PageSize)
}

// Search finds users whose name or username contains keyword, ignoring case.
// Newer accounts come first.
func (s *Store) Search(ctx context.Context, viewer, keyword string, cursor *string) (paginated.Paginated[model.User], error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return paginated.Paginated[model.User]{}, ErrEmptyKeyword
	}
	if err := s.transport(ctx, "search"); err != nil {
		return paginated.Paginated[model.User]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureViewerLocked(viewer)

	var rows []row[model.User]
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.name), keyword) || strings.Contains(strings.ToLower(u.username), keyword) {
			rows = append(rows, row[model.User]{at: u.createdAt, id: u.id, item: s.userViewLocked(viewer, u)})
		}
	}
	sortRows(rows)
	return pageOf(rows, cursor, s.opts.PageSize)
}
