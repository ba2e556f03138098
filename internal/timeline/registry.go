// Package timeline exposes screen sessions over HTTP so a host UI can open,
// page through and act on screens.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timeline-service/internal/event"
	"timeline-service/internal/feedstate"
	"timeline-service/internal/optimistic"
	"timeline-service/internal/screen"
	"timeline-service/internal/shared/logx"
)

const DefaultMaxSessions = 16

var (
	ErrNoSession    = errors.New("no such screen")
	ErrTooMany      = errors.New("too many open screens")
	ErrMissingParam = errors.New("missing screen parameter")
)

// Params select what a screen shows. UserID defaults to the viewer; TweetID
// is required by comments and Keyword by search.
type Params struct {
	UserID  string
	TweetID string
	Keyword string
}

func (p Params) check(kind screen.Kind) error {
	switch {
	case kind == screen.KindComments && p.TweetID == "":
		return fmt.Errorf("%w: tweet_id", ErrMissingParam)
	case kind == screen.KindSearch && strings.TrimSpace(p.Keyword) == "":
		return fmt.Errorf("%w: keyword", ErrMissingParam)
	}
	return nil
}

// Session is the type-erased view of a screen.Screen.
type Session interface {
	Kind() screen.Kind
	Viewer() string
	Load(ctx context.Context) error
	Refresh(ctx context.Context) error
	Extend(ctx context.Context) error
	Perform(ctx context.Context, action optimistic.Action, id string) error
	Snapshot() any
	Close()
}

// Notice is a transient failure the UI has not shown yet.
type Notice struct {
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

// Entry is one open screen.
type Entry struct {
	id      string
	session Session

	mu     sync.Mutex
	notice *Notice
}

func (e *Entry) ID() string       { return e.id }
func (e *Entry) Session() Session { return e.session }

func (e *Entry) setNotice(op feedstate.Operation, err error) {
	e.mu.Lock()
	e.notice = &Notice{Operation: string(op), Error: err.Error(), At: time.Now().UTC()}
	e.mu.Unlock()
}

// takeNotice returns the pending notice and clears it.
func (e *Entry) takeNotice() *Notice {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.notice
	e.notice = nil
	return n
}

type Registry struct {
	source screen.Source
	hub    *event.Hub
	log    *zap.Logger
	max    int

	mu       sync.Mutex
	sessions map[string]*Entry
	perUser  map[string]int
}

func NewRegistry(source screen.Source, hub *event.Hub, maxPerViewer int, log *zap.Logger) *Registry {
	if maxPerViewer <= 0 {
		maxPerViewer = DefaultMaxSessions
	}
	return &Registry{
		source:   source,
		hub:      hub,
		log:      logx.OrNop(log),
		max:      maxPerViewer,
		sessions: make(map[string]*Entry),
		perUser:  make(map[string]int),
	}
}

// Open creates a screen of kind for viewer.
func (r *Registry) Open(viewer string, kind screen.Kind, p Params) (*Entry, error) {
	if err := p.check(kind); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		p.UserID = viewer
	}
	r.mu.Lock()
	if r.perUser[viewer] >= r.max {
		r.mu.Unlock()
		return nil, ErrTooMany
	}
	r.perUser[viewer]++
	r.mu.Unlock()

	e := &Entry{id: uuid.NewString()}
	cfg := screen.Config{
		Viewer:      viewer,
		Source:      r.source,
		Events:      r.hub.For(viewer),
		Log:         r.log,
		OnTransient: e.setNotice,
	}
	switch kind {
	case screen.KindFeed:
		e.session = screen.NewFeed(cfg)
	case screen.KindSelf:
		e.session = screen.NewSelf(cfg)
	case screen.KindProfile:
		e.session = screen.NewProfile(cfg, p.UserID)
	case screen.KindFollowers:
		e.session = screen.NewFollowers(cfg, p.UserID)
	case screen.KindFollowees:
		e.session = screen.NewFollowees(cfg, p.UserID)
	case screen.KindBookmarks:
		e.session = screen.NewBookmarks(cfg)
	case screen.KindComments:
		e.session = screen.NewComments(cfg, p.TweetID)
	case screen.KindSearch:
		e.session = screen.NewSearch(cfg, strings.TrimSpace(p.Keyword))
	default:
		r.release(viewer)
		return nil, screen.ErrUnsupported
	}

	r.mu.Lock()
	r.sessions[e.id] = e
	r.mu.Unlock()
	r.log.Debug("screen opened",
		zap.String("id", e.id),
		zap.String("viewer", viewer),
		zap.String("screen", string(kind)),
	)
	return e, nil
}

// Get returns the session id of viewer. Sessions of other viewers are reported as
// missing.
func (r *Registry) Get(viewer, id string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.session.Viewer() != viewer {
		return nil, ErrNoSession
	}
	return e, nil
}

func (r *Registry) Close(viewer, id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok || e.session.Viewer() != viewer {
		r.mu.Unlock()
		return ErrNoSession
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	e.session.Close()
	r.release(viewer)
	return nil
}

// CloseAll discards every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Entry)
	r.perUser = make(map[string]int)
	r.mu.Unlock()
	for _, e := range all {
		e.session.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) release(viewer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.perUser[viewer] <= 1 {
		delete(r.perUser, viewer)
		return
	}
	r.perUser[viewer]--
}
