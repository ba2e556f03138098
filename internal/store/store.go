// Package store is an in-memory stand-in for the remote data stores behind
// the screens. It serves canned sample data after an artificial delay, can be
// told to fail a share of calls, and publishes an event after every
// successful mutation.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"timeline-service/internal/event"
	"timeline-service/internal/model"
	"timeline-service/internal/shared/logx"
)

// Publisher receives the events produced by successful mutations.
type Publisher interface {
	Publish(viewer string, ev event.Event)
}

type Options struct {
	Delay         time.Duration
	PageSize      int
	FailureRate   float64
	Seed          int64
	Users         int
	TweetsPerUser int
	// AutoFollow is how many sample users a viewer seen for the first time
	// starts out following.
	AutoFollow int
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 10
	}
	if o.Users <= 0 {
		o.Users = 12
	}
	if o.TweetsPerUser <= 0 {
		o.TweetsPerUser = 8
	}
	if o.AutoFollow <= 0 {
		o.AutoFollow = 5
	}
	if o.FailureRate < 0 {
		o.FailureRate = 0
	}
	return o
}

type userRec struct {
	id        string
	name      string
	username  string
	image     string
	bio       string
	createdAt time.Time
}

type tweetRec struct {
	id        string
	authorID  string
	text      string
	createdAt time.Time
	likes     map[string]struct{}
	bookmarks map[string]time.Time
	comments  []commentRec
}

type commentRec struct {
	id        string
	authorID  string
	text      string
	createdAt time.Time
}

type Store struct {
	opts Options
	pub  Publisher
	log  *zap.Logger

	fakeMu sync.Mutex
	faker  *gofakeit.Faker

	mu        sync.Mutex
	users     map[string]*userRec
	sample    []string
	tweets    map[string]*tweetRec
	following map[string]map[string]time.Time // follower -> followee -> since
	followers map[string]map[string]time.Time // followee -> follower -> since
	now       func() time.Time
}

func New(opts Options, pub Publisher, log *zap.Logger) *Store {
	log = logx.OrNop(log)
	opts = opts.withDefaults()
	s := &Store{
		opts:      opts,
		pub:       pub,
		log:       log,
		faker:     gofakeit.New(opts.Seed),
		users:     make(map[string]*userRec),
		tweets:    make(map[string]*tweetRec),
		following: make(map[string]map[string]time.Time),
		followers: make(map[string]map[string]time.Time),
		now:       time.Now,
	}
	s.seed()
	log.Info("sample data ready",
		zap.Int("users", len(s.users)),
		zap.Int("tweets", len(s.tweets)),
	)
	return s
}

// SampleUsers returns the ids of the generated users.
func (s *Store) SampleUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sample...)
}

func (s *Store) seed() {
	now := s.now()
	var seeded []*tweetRec
	for i := 0; i < s.opts.Users; i++ {
		u := s.fakeUser(s.faker.UUID(), now)
		s.users[u.id] = u
		s.sample = append(s.sample, u.id)
		for j := 0; j < s.opts.TweetsPerUser; j++ {
			t := &tweetRec{
				id:        s.faker.UUID(),
				authorID:  u.id,
				text:      s.faker.Sentence(s.faker.Number(4, 16)),
				createdAt: s.faker.DateRange(now.AddDate(0, 0, -30), now),
				likes:     make(map[string]struct{}),
				bookmarks: make(map[string]time.Time),
			}
			s.tweets[t.id] = t
			seeded = append(seeded, t)
		}
	}
	for _, a := range s.sample {
		for _, b := range s.sample {
			if a != b && s.faker.Float64() < 0.3 {
				s.follow(a, b, s.faker.DateRange(now.AddDate(0, 0, -60), now))
			}
		}
	}
	for _, t := range seeded {
		for _, u := range s.sample {
			if s.faker.Float64() < 0.2 {
				t.likes[u] = struct{}{}
			}
		}
		for n := s.faker.Number(0, 4); n > 0; n-- {
			t.comments = append(t.comments, commentRec{
				id:        s.faker.UUID(),
				authorID:  s.sample[s.faker.Number(0, len(s.sample)-1)],
				text:      s.faker.Sentence(s.faker.Number(2, 10)),
				createdAt: s.faker.DateRange(t.createdAt, now),
			})
		}
	}
}

func (s *Store) fakeUser(id string, now time.Time) *userRec {
	return &userRec{
		id:        id,
		name:      s.faker.Name(),
		username:  s.faker.Username(),
		image:     s.faker.ImageURL(200, 200),
		bio:       s.faker.HipsterSentence(8),
		createdAt: s.faker.DateRange(now.AddDate(-3, 0, 0), now.AddDate(0, -1, 0)),
	}
}

// ensureViewerLocked registers a viewer seen for the first time and has them
// follow a few sample users so their feed is not empty.
func (s *Store) ensureViewerLocked(viewer string) {
	if _, ok := s.users[viewer]; ok {
		return
	}
	now := s.now()
	s.fakeMu.Lock()
	u := s.fakeUser(viewer, now)
	picks := s.faker.Number(0, len(s.sample))
	s.fakeMu.Unlock()
	s.users[viewer] = u
	for i := 0; i < s.opts.AutoFollow && i < len(s.sample); i++ {
		s.follow(viewer, s.sample[(picks+i)%len(s.sample)], now)
	}
	s.log.Debug("registered viewer", zap.String("viewer", viewer))
}

func (s *Store) follow(follower, followee string, at time.Time) bool {
	if _, ok := s.following[follower][followee]; ok {
		return false
	}
	if s.following[follower] == nil {
		s.following[follower] = make(map[string]time.Time)
	}
	if s.followers[followee] == nil {
		s.followers[followee] = make(map[string]time.Time)
	}
	s.following[follower][followee] = at
	s.followers[followee][follower] = at
	return true
}

func (s *Store) unfollow(follower, followee string) bool {
	if _, ok := s.following[follower][followee]; !ok {
		return false
	}
	delete(s.following[follower], followee)
	delete(s.followers[followee], follower)
	return true
}

// transport simulates the network: it waits for the configured delay and
// fails a share of calls.
func (s *Store) transport(ctx context.Context, op string) error {
	if s.opts.Delay > 0 {
		t := time.NewTimer(s.opts.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrTransport, op, ctx.Err())
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
	}
	if s.opts.FailureRate > 0 {
		s.fakeMu.Lock()
		roll := s.faker.Float64()
		s.fakeMu.Unlock()
		if roll < s.opts.FailureRate {
			return fmt.Errorf("%w: %s: injected fault", ErrTransport, op)
		}
	}
	return nil
}

func (s *Store) publish(viewer string, ev event.Event) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(viewer, ev)
}

func (s *Store) userViewLocked(viewer string, u *userRec) model.User {
	_, following := s.following[viewer][u.id]
	_, follower := s.following[u.id][viewer]
	tweets := 0
	for _, t := range s.tweets {
		if t.authorID == u.id {
			tweets++
		}
	}
	return model.User{
		ID:        u.id,
		Name:      u.name,
		Username:  u.username,
		Image:     u.image,
		Bio:       u.bio,
		CreatedAt: u.createdAt,
		Social: model.UserSocialDetails{
			FollowersCount:  len(s.followers[u.id]),
			FollowingsCount: len(s.following[u.id]),
		},
		Activity:  model.UserActivityDetails{TweetsCount: tweets},
		Viewables: model.UserViewables{Following: following, Follower: follower},
	}
}

func (s *Store) tweetViewLocked(viewer string, t *tweetRec) model.Tweet {
	_, liked := t.likes[viewer]
	_, bookmarked := t.bookmarks[viewer]
	return model.Tweet{
		ID:        t.id,
		Text:      t.text,
		CreatedAt: t.createdAt,
		Meta: model.TweetMeta{
			LikesCount:    len(t.likes),
			CommentsCount: len(t.comments),
		},
		Author:    s.userViewLocked(viewer, s.users[t.authorID]),
		Viewables: model.TweetViewables{Liked: liked, Bookmarked: bookmarked},
	}
}

func (s *Store) commentViewLocked(viewer, tweetID string, c commentRec) model.Comment {
	return model.Comment{
		ID:        c.id,
		TweetID:   tweetID,
		Text:      c.text,
		CreatedAt: c.createdAt,
		Author:    s.userViewLocked(viewer, s.users[c.authorID]),
	}
}
