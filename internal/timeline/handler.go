package timeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"timeline-service/internal/feedstate"
	"timeline-service/internal/model"
	"timeline-service/internal/optimistic"
	"timeline-service/internal/screen"
	"timeline-service/internal/shared/httpx"
	"timeline-service/internal/shared/logx"
	"timeline-service/internal/store"
)

const fetchTimeout = 15 * time.Second

// Authoring is the write side that is not an optimistic action.
type Authoring interface {
	CreateTweet(ctx context.Context, viewer, text string) (model.Tweet, error)
	EditTweet(ctx context.Context, viewer, id, text string) (model.Tweet, error)
	Comment(ctx context.Context, viewer, tweetID, text string) (model.Comment, error)
	UpdateProfile(ctx context.Context, viewer, name, bio string) (model.User, error)
}

// Backend serves everything outside the screens.
type Backend interface {
	Authoring
	User(ctx context.Context, viewer, userID string) (model.User, error)
}

type Handler struct {
	reg     *Registry
	backend Backend
	log     *zap.Logger
}

func NewHandler(reg *Registry, backend Backend, log *zap.Logger) *Handler {
	return &Handler{reg: reg, backend: backend, log: logx.OrNop(log)}
}

// Limits throttle writes. Action wraps item actions on screens and Authoring
// wraps the content writes. Nil means unlimited.
type Limits struct {
	Action    func(http.Handler) http.Handler
	Authoring func(http.Handler) http.Handler
}

func passthrough(next http.Handler) http.Handler { return next }

// Register mounts the routes on mux. protect wraps every route with
// authentication.
func (h *Handler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler, limits Limits) {
	if limits.Action == nil {
		limits.Action = passthrough
	}
	if limits.Authoring == nil {
		limits.Authoring = passthrough
	}
	route := func(pattern string, fn httpx.HandlerFunc) {
		mux.Handle(pattern, protect(httpx.Wrap(fn)))
	}
	action := func(pattern string, fn httpx.HandlerFunc) {
		mux.Handle(pattern, protect(limits.Action(httpx.Wrap(fn))))
	}
	authoring := func(pattern string, fn httpx.HandlerFunc) {
		mux.Handle(pattern, protect(limits.Authoring(httpx.Wrap(fn))))
	}

	route("POST /screens/{kind}", h.OpenScreen)
	route("GET /screens/{id}", h.GetScreen)
	route("POST /screens/{id}/refresh", h.RefreshScreen)
	route("POST /screens/{id}/extend", h.ExtendScreen)
	route("DELETE /screens/{id}", h.CloseScreen)
	action("POST /screens/{id}/items/{item_id}/{action}", h.Act)

	route("GET /users/{id}", h.GetUser)
	authoring("POST /tweets", h.CreateTweet)
	authoring("PATCH /tweets/{id}", h.EditTweet)
	authoring("POST /tweets/{id}/comments", h.Comment)
	authoring("PATCH /me", h.UpdateProfile)
}

type screenView struct {
	ID     string      `json:"id"`
	Kind   screen.Kind `json:"kind"`
	State  any         `json:"state"`
	Notice *Notice     `json:"notice,omitempty"`
}

func view(e *Entry) screenView {
	return screenView{
		ID:     e.id,
		Kind:   e.session.Kind(),
		State:  e.session.Snapshot(),
		Notice: e.takeNotice(),
	}
}

// detached keeps fetches alive when the client goes away; the result lands in
// the session either way.
func detached(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), fetchTimeout)
}

func (h *Handler) OpenScreen(w http.ResponseWriter, r *http.Request) error {
	viewer, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	kind, ok := screen.ParseKind(r.PathValue("kind"))
	if !ok {
		return httpx.WithStatus(http.StatusNotFound, "unknown_screen", screen.ErrUnsupported)
	}
	q := r.URL.Query()
	e, err := h.reg.Open(viewer, kind, Params{
		UserID:  q.Get("user_id"),
		TweetID: q.Get("tweet_id"),
		Keyword: q.Get("keyword"),
	})
	switch {
	case errors.Is(err, ErrTooMany):
		return httpx.WithStatus(http.StatusTooManyRequests, "too_many_screens", err)
	case errors.Is(err, ErrMissingParam):
		return httpx.WithStatus(http.StatusBadRequest, "missing_param", err)
	case err != nil:
		return err
	}

	ctx, cancel := detached(r)
	defer cancel()
	if err := e.session.Load(ctx); err != nil {
		h.log.Info("initial load failed", zap.String("id", e.id), zap.Error(err))
	}
	httpx.WriteJSON(w, view(e), http.StatusCreated)
	return nil
}

func (h *Handler) session(r *http.Request) (*Entry, error) {
	viewer, err := httpx.UserFromCtx(r)
	if err != nil {
		return nil, err
	}
	e, err := h.reg.Get(viewer, r.PathValue("id"))
	if err != nil {
		return nil, httpx.WithStatus(http.StatusNotFound, "no_screen", err)
	}
	return e, nil
}

func (h *Handler) GetScreen(w http.ResponseWriter, r *http.Request) error {
	e, err := h.session(r)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, view(e), http.StatusOK)
	return nil
}

// RefreshScreen answers with the new state. A failed refresh is a Failure
// state, not an HTTP error.
func (h *Handler) RefreshScreen(w http.ResponseWriter, r *http.Request) error {
	e, err := h.session(r)
	if err != nil {
		return err
	}
	ctx, cancel := detached(r)
	defer cancel()
	if err := e.session.Refresh(ctx); errors.Is(err, feedstate.ErrClosed) {
		return httpx.WithStatus(http.StatusNotFound, "no_screen", err)
	}
	httpx.WriteJSON(w, view(e), http.StatusOK)
	return nil
}

// ExtendScreen fetches the next page. Failed fetches leave the state as it was
// and come back as a notice.
func (h *Handler) ExtendScreen(w http.ResponseWriter, r *http.Request) error {
	e, err := h.session(r)
	if err != nil {
		return err
	}
	ctx, cancel := detached(r)
	defer cancel()
	switch err := e.session.Extend(ctx); {
	case errors.Is(err, feedstate.ErrNotExtendable):
		return httpx.WithStatus(http.StatusConflict, "not_extendable", err)
	case errors.Is(err, feedstate.ErrExtendInFlight):
		return httpx.WithStatus(http.StatusConflict, "extend_in_flight", err)
	case errors.Is(err, feedstate.ErrClosed):
		return httpx.WithStatus(http.StatusNotFound, "no_screen", err)
	}
	httpx.WriteJSON(w, view(e), http.StatusOK)
	return nil
}

func (h *Handler) CloseScreen(w http.ResponseWriter, r *http.Request) error {
	viewer, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	if err := h.reg.Close(viewer, r.PathValue("id")); err != nil {
		return httpx.WithStatus(http.StatusNotFound, "no_screen", err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Act runs an optimistic action on an item of the screen. A rejected action
// is rolled back and reported as a notice next to the restored state.
func (h *Handler) Act(w http.ResponseWriter, r *http.Request) error {
	e, err := h.session(r)
	if err != nil {
		return err
	}
	action, ok := optimistic.ParseAction(r.PathValue("action"))
	if !ok {
		return httpx.WithStatus(http.StatusBadRequest, "unknown_action", errors.New("unknown action"))
	}
	ctx, cancel := detached(r)
	defer cancel()
	switch err := e.session.Perform(ctx, action, r.PathValue("item_id")); {
	case errors.Is(err, screen.ErrUnsupported):
		return httpx.WithStatus(http.StatusBadRequest, "unsupported_action", err)
	case errors.Is(err, screen.ErrNoSuchItem):
		return httpx.WithStatus(http.StatusNotFound, "no_item", err)
	}
	httpx.WriteJSON(w, view(e), http.StatusOK)
	return nil
}

type tweetRequest struct {
	Text string `json:"text"`
}

type profileRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

func (h *Handler) CreateTweet(w http.ResponseWriter, r *http.Request) error {
	viewer, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	req, err := httpx.Decode[tweetRequest](r)
	if err != nil {
		return httpx.WithStatus(http.StatusBadRequest, "bad_body", err)
	}
	tw, err := h.backend.CreateTweet(r.Context(), viewer, req.Text)
	if err != nil {
		return storeError(err)
	}
	httpx.WriteJSON(w, tw, http.StatusCreated)
	return nil
}

func (h *Handler) EditTweet(w http.ResponseWriter, r *http.Request) error {
	viewer, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	req, err := httpx.Decode[tweetRequest](r)
	if err != nil {
		return httpx.WithStatus(http.StatusBadRequest, "bad_body", err)
	}
	tw, err := h.backend.EditTweet(r.Context(), viewer, r.PathValue("id"), req.Text)
	if err != nil {
		return storeError(err)
	}
	httpx.WriteJSON(w, tw, http.StatusOK)
	return nil
}

func (h *Handler) Comment(w http.ResponseWriter, r *http.Request) error {
	viewer, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	req, err := httpx.Decode[tweetRequest](r)
	if err != nil {
		return httpx.WithStatus(http.StatusBadRequest, "bad_body", err)
	}
	c, err := h.backend.Comment(r.Context(), viewer, r.PathValue("id"), req.Text)
	if err != nil {
		return storeError(err)
	}
	httpx.WriteJSON(w, c, http.StatusCreated)
	return nil
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) error {
	viewer, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	u, err := h.backend.User(r.Context(), viewer, r.PathValue("id"))
	if err != nil {
		return storeError(err)
	}
	httpx.WriteJSON(w, u, http.StatusOK)
	return nil
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) error {
	viewer, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	req, err := httpx.Decode[profileRequest](r)
	if err != nil {
		return httpx.WithStatus(http.StatusBadRequest, "bad_body", err)
	}
	u, err := h.backend.UpdateProfile(r.Context(), viewer, req.Name, req.Bio)
	if err != nil {
		return storeError(err)
	}
	httpx.WriteJSON(w, u, http.StatusOK)
	return nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return httpx.WithStatus(http.StatusNotFound, "not_found", err)
	case errors.Is(err, store.ErrForbidden):
		return httpx.WithStatus(http.StatusForbidden, "forbidden", err)
	case errors.Is(err, store.ErrEmptyText):
		return httpx.WithStatus(http.StatusBadRequest, "empty_text", err)
	case errors.Is(store.Classify(err), store.ErrTransport):
		return httpx.WithStatus(http.StatusBadGateway, "transport_failure", err)
	}
	return httpx.WithStatus(http.StatusInternalServerError, "unknown_failure", err)
}
