package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timeline-service/internal/event"
	"timeline-service/internal/model"
	"timeline-service/internal/optimistic"
)

var ErrEmptyText = errors.New("text is required")

// Mutator binds Mutate to a viewer.
func (s *Store) Mutator(viewer string) optimistic.Mutator {
	return optimistic.MutateFunc(func(ctx context.Context, action optimistic.Action, id string) error {
		return s.Mutate(ctx, viewer, action, id)
	})
}

// Mutate performs action on behalf of viewer. For follow and unfollow id is a
// user id, otherwise a tweet id. An action that is already in effect succeeds
// without publishing anything.
func (s *Store) Mutate(ctx context.Context, viewer string, action optimistic.Action, id string) error {
	if err := s.transport(ctx, string(action)); err != nil {
		return err
	}

	s.mu.Lock()
	s.ensureViewerLocked(viewer)
	to, ev, err := s.applyLocked(viewer, action, id)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, id, err)
	}
	if ev != nil {
		s.log.Debug("mutation applied",
			zap.String("viewer", viewer),
			zap.String("action", string(action)),
			zap.String("id", id),
		)
		s.publish(to, ev)
	}
	return nil
}

func (s *Store) applyLocked(viewer string, action optimistic.Action, id string) (string, event.Event, error) {
	switch action {
	case optimistic.ActionFollow, optimistic.ActionUnfollow:
		if _, ok := s.users[id]; !ok {
			return "", nil, ErrNotFound
		}
		if id == viewer {
			return "", nil, ErrForbidden
		}
		if action == optimistic.ActionFollow {
			if s.follow(viewer, id, s.now()) {
				return viewer, event.FollowCreated{UserID: id}, nil
			}
		} else if s.unfollow(viewer, id) {
			return viewer, event.FollowDeleted{UserID: id}, nil
		}
		return "", nil, nil
	}

	t, ok := s.tweets[id]
	if !ok {
		return "", nil, ErrNotFound
	}
	switch action {
	case optimistic.ActionLike:
		if _, liked := t.likes[viewer]; !liked {
			t.likes[viewer] = struct{}{}
			return viewer, event.LikeCreated{ID: id}, nil
		}
	case optimistic.ActionUnlike:
		if _, liked := t.likes[viewer]; liked {
			delete(t.likes, viewer)
			return viewer, event.LikeDeleted{ID: id}, nil
		}
	case optimistic.ActionBookmark:
		if _, marked := t.bookmarks[viewer]; !marked {
			t.bookmarks[viewer] = s.now()
			return viewer, event.BookmarkCreated{ID: id}, nil
		}
	case optimistic.ActionUnbookmark:
		if _, marked := t.bookmarks[viewer]; marked {
			delete(t.bookmarks, viewer)
			return viewer, event.BookmarkDeleted{ID: id}, nil
		}
	case optimistic.ActionDelete:
		if t.authorID != viewer {
			return "", nil, ErrForbidden
		}
		delete(s.tweets, id)
		return event.Everyone, event.EntityDeleted{ID: id}, nil
	default:
		return "", nil, fmt.Errorf("%w: action %q", ErrUnknown, action)
	}
	return "", nil, nil
}

// CreateTweet posts a new tweet as viewer.
func (s *Store) CreateTweet(ctx context.Context, viewer, text string) (model.Tweet, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Tweet{}, ErrEmptyText
	}
	if err := s.transport(ctx, "create_tweet"); err != nil {
		return model.Tweet{}, err
	}

	s.mu.Lock()
	s.ensureViewerLocked(viewer)
	t := &tweetRec{
		id:        uuid.NewString(),
		authorID:  viewer,
		text:      text,
		createdAt: s.now().UTC(),
		likes:     make(map[string]struct{}),
		bookmarks: make(map[string]time.Time),
	}
	s.tweets[t.id] = t
	view := s.tweetViewLocked(viewer, t)
	s.mu.Unlock()

	s.publish(viewer, event.EntityCreated{Tweet: view})
	return view, nil
}

// EditTweet replaces the text of one of viewer's tweets.
func (s *Store) EditTweet(ctx context.Context, viewer, id, text string) (model.Tweet, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Tweet{}, ErrEmptyText
	}
	if err := s.transport(ctx, "edit_tweet"); err != nil {
		return model.Tweet{}, err
	}

	s.mu.Lock()
	t, ok := s.tweets[id]
	if !ok {
		s.mu.Unlock()
		return model.Tweet{}, ErrNotFound
	}
	if t.authorID != viewer {
		s.mu.Unlock()
		return model.Tweet{}, ErrForbidden
	}
	t.text = text
	view := s.tweetViewLocked(viewer, t)
	s.mu.Unlock()

	s.publish(viewer, event.EntityUpdated{Tweet: view})
	return view, nil
}

// Comment adds a comment by viewer to a tweet. Every viewer is told, so the
// author in the event carries no viewer relative flags.
func (s *Store) Comment(ctx context.Context, viewer, tweetID, text string) (model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Comment{}, ErrEmptyText
	}
	if err := s.transport(ctx, "comment"); err != nil {
		return model.Comment{}, err
	}

	s.mu.Lock()
	s.ensureViewerLocked(viewer)
	t, ok := s.tweets[tweetID]
	if !ok {
		s.mu.Unlock()
		return model.Comment{}, ErrNotFound
	}
	c := commentRec{id: uuid.NewString(), authorID: viewer, text: text, createdAt: s.now().UTC()}
	t.comments = append(t.comments, c)
	view := s.commentViewLocked(viewer, tweetID, c)
	shared := s.commentViewLocked(event.Everyone, tweetID, c)
	s.mu.Unlock()

	s.publish(event.Everyone, event.CommentCreated{TweetID: tweetID, Comment: shared})
	return view, nil
}

// UpdateProfile changes viewer's display name and bio. Empty values are left
// unchanged.
func (s *Store) UpdateProfile(ctx context.Context, viewer, name, bio string) (model.User, error) {
	if err := s.transport(ctx, "update_profile"); err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	s.ensureViewerLocked(viewer)
	u := s.users[viewer]
	if name = strings.TrimSpace(name); name != "" {
		u.name = name
	}
	if bio = strings.TrimSpace(bio); bio != "" {
		u.bio = bio
	}
	view := s.userViewLocked(viewer, u)
	s.mu.Unlock()

	s.publish(viewer, event.OwnerRefreshed{Owner: view})
	return view, nil
}
