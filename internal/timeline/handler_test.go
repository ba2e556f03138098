package timeline

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	jw "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeline-service/internal/event"
	"timeline-service/internal/shared/httpx"
	"timeline-service/internal/shared/jwt"
	"timeline-service/internal/store"
)

const secret = "test-secret"

type apiState struct {
	Status    string            `json:"status"`
	Page      []json.RawMessage `json:"page"`
	NextToken *string           `json:"next_token"`
	Error     string            `json:"error"`
}

type apiScreen struct {
	ID     string   `json:"id"`
	Kind   string   `json:"kind"`
	State  apiState `json:"state"`
	Notice *Notice  `json:"notice"`
}

type apiTweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Meta struct {
		LikesCount int `json:"likes_count"`
	} `json:"meta"`
	Author struct {
		ID string `json:"id"`
	} `json:"author"`
	Viewables struct {
		Liked bool `json:"liked"`
	} `json:"viewables"`
}

type apiComment struct {
	ID      string `json:"id"`
	TweetID string `json:"tweet_id"`
	Text    string `json:"text"`
}

type fixture struct {
	t     *testing.T
	srv   *httptest.Server
	store *store.Store
	reg   *Registry
}

func newFixture(t *testing.T, maxSessions int) *fixture {
	t.Helper()
	hub := event.NewHub(nil)
	st := store.New(store.Options{Seed: 3, PageSize: 5}, hub, nil)
	reg := NewRegistry(st, hub, maxSessions, nil)
	mux := http.NewServeMux()
	NewHandler(reg, st, nil).Register(mux, httpx.AuthMiddleware(jwt.NewVerifier(secret)), Limits{})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(reg.CloseAll)
	return &fixture{t: t, srv: srv, store: st, reg: reg}
}

func token(t *testing.T, sub string) string {
	t.Helper()
	s, err := jw.NewWithClaims(jw.SigningMethodHS256, jw.MapClaims{"sub": sub}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func (f *fixture) do(viewer, method, path string, body any) *http.Response {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(f.t, err)
	if viewer != "" {
		req.Header.Set("Authorization", "Bearer "+token(f.t, viewer))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func tweets(t *testing.T, s apiState) []apiTweet {
	t.Helper()
	out := make([]apiTweet, 0, len(s.Page))
	for _, raw := range s.Page {
		var tw apiTweet
		require.NoError(t, json.Unmarshal(raw, &tw))
		out = append(out, tw)
	}
	return out
}

func (f *fixture) open(viewer, kind string) apiScreen {
	f.t.Helper()
	resp := f.do(viewer, http.MethodPost, "/screens/"+kind, nil)
	require.Equal(f.t, http.StatusCreated, resp.StatusCode)
	return decode[apiScreen](f.t, resp)
}

func TestRequiresBearer(t *testing.T) {
	f := newFixture(t, 0)
	resp := f.do("", http.MethodPost, "/screens/feed", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOpenAndPageThroughFeed(t *testing.T) {
	f := newFixture(t, 0)
	s := f.open("alice", "feed")

	assert.Equal(t, "feed", s.Kind)
	assert.Equal(t, "success", s.State.Status)
	require.Len(t, s.State.Page, 5)
	require.NotNil(t, s.State.NextToken)

	total := len(s.State.Page)
	for i := 0; ; i++ {
		require.Less(t, i, 50)
		resp := f.do("alice", http.MethodPost, "/screens/"+s.ID+"/extend", nil)
		if resp.StatusCode == http.StatusConflict {
			body := decode[httpx.APIError](t, resp)
			assert.Equal(t, "not_extendable", body.Reason)
			break
		}
		require.Equal(t, http.StatusOK, resp.StatusCode)
		next := decode[apiScreen](t, resp)
		assert.Greater(t, len(next.State.Page), total)
		total = len(next.State.Page)
	}
	assert.Equal(t, 5*8, total, "five followed users with eight tweets each")
}

func TestScreensArePrivate(t *testing.T) {
	f := newFixture(t, 0)
	s := f.open("alice", "feed")

	resp := f.do("bob", http.MethodGet, "/screens/"+s.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do("alice", http.MethodGet, "/screens/"+s.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLikeThroughHTTP(t *testing.T) {
	f := newFixture(t, 0)
	s := f.open("alice", "feed")
	first := tweets(t, s.State)[0]

	resp := f.do("alice", http.MethodPost, "/screens/"+s.ID+"/items/"+first.ID+"/like", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := tweets(t, decode[apiScreen](t, resp).State)[0]

	assert.True(t, got.Viewables.Liked)
	assert.Equal(t, first.Meta.LikesCount+1, got.Meta.LikesCount)
}

func TestRejectedActionIsRolledBackWithNotice(t *testing.T) {
	f := newFixture(t, 0)
	s := f.open("alice", "feed")
	before := tweets(t, s.State)

	resp := f.do("alice", http.MethodPost, "/screens/"+s.ID+"/items/"+before[0].ID+"/delete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[apiScreen](t, resp)

	require.NotNil(t, got.Notice)
	assert.Equal(t, "mutate", got.Notice.Operation)
	assert.Contains(t, got.Notice.Error, "forbidden")
	assert.Equal(t, before, tweets(t, got.State))

	again := decode[apiScreen](t, f.do("alice", http.MethodGet, "/screens/"+s.ID, nil))
	assert.Nil(t, again.Notice, "notices are shown once")
}

func TestCreatedTweetAppearsOnSelf(t *testing.T) {
	f := newFixture(t, 0)
	self := f.open("alice", "self")
	assert.Empty(t, self.State.Page)
	assert.Equal(t, "success", self.State.Status)

	resp := f.do("alice", http.MethodPost, "/tweets", map[string]string{"text": "hello world"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[apiTweet](t, resp)

	got := decode[apiScreen](t, f.do("alice", http.MethodGet, "/screens/"+self.ID, nil))
	require.Len(t, got.State.Page, 1)
	assert.Equal(t, created.ID, tweets(t, got.State)[0].ID)

	resp = f.do("alice", http.MethodPost, "/tweets", map[string]string{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, 0)
	s := f.open("alice", "followers")

	comment := map[string]string{"text": "hi"}
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"unknown screen", http.MethodPost, "/screens/explore", nil, http.StatusNotFound},
		{"search without keyword", http.MethodPost, "/screens/search?keyword=%20", nil, http.StatusBadRequest},
		{"comments without tweet", http.MethodPost, "/screens/comments", nil, http.StatusBadRequest},
		{"unknown action", http.MethodPost, "/screens/" + s.ID + "/items/x/retweet", nil, http.StatusBadRequest},
		{"unsupported action", http.MethodPost, "/screens/" + s.ID + "/items/x/like", nil, http.StatusBadRequest},
		{"missing screen", http.MethodGet, "/screens/nope", nil, http.StatusNotFound},
		{"comment on missing tweet", http.MethodPost, "/tweets/nope/comments", comment, http.StatusNotFound},
		{"empty comment", http.MethodPost, "/tweets/nope/comments", map[string]string{"text": " "}, http.StatusBadRequest},
		{"missing user", http.MethodGet, "/users/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do("alice", tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
	assert.Equal(t, 1, f.reg.Len(), "rejected opens hold no session")
}

func TestCloseScreen(t *testing.T) {
	f := newFixture(t, 0)
	s := f.open("alice", "bookmarks")
	require.Equal(t, 1, f.reg.Len())

	resp := f.do("alice", http.MethodDelete, "/screens/"+s.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, f.reg.Len())

	resp = f.do("alice", http.MethodDelete, "/screens/"+s.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionLimit(t *testing.T) {
	f := newFixture(t, 1)
	s := f.open("alice", "feed")

	resp := f.do("alice", http.MethodPost, "/screens/self", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	f.open("bob", "feed")

	f.do("alice", http.MethodDelete, "/screens/"+s.ID, nil)
	f.open("alice", "self")
}

func TestProfileUpdateReachesOpenScreens(t *testing.T) {
	f := newFixture(t, 0)
	resp := f.do("alice", http.MethodPost, "/tweets", map[string]string{"text": "mine"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	self := f.open("alice", "self")

	resp = f.do("alice", http.MethodPatch, "/me", map[string]string{"name": "Alice Liddell"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[apiScreen](t, f.do("alice", http.MethodGet, "/screens/"+self.ID, nil))
	var tw struct {
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
	}
	require.Len(t, got.State.Page, 1)
	require.NoError(t, json.Unmarshal(got.State.Page[0], &tw))
	assert.Equal(t, "Alice Liddell", tw.Author.Name)
}

func TestCommentsScreenThroughHTTP(t *testing.T) {
	f := newFixture(t, 0)
	resp := f.do("alice", http.MethodPost, "/tweets", map[string]string{"text": "thoughts?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tw := decode[apiTweet](t, resp)

	resp = f.do("alice", http.MethodPost, "/screens/comments?tweet_id="+tw.ID, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	s := decode[apiScreen](t, resp)
	assert.Equal(t, "comments", s.Kind)
	assert.Equal(t, "success", s.State.Status)
	assert.Empty(t, s.State.Page)

	resp = f.do("bob", http.MethodPost, "/tweets/"+tw.ID+"/comments", map[string]string{"text": "agreed"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c := decode[apiComment](t, resp)
	assert.Equal(t, tw.ID, c.TweetID)
	assert.Equal(t, "agreed", c.Text)

	got := decode[apiScreen](t, f.do("alice", http.MethodGet, "/screens/"+s.ID, nil))
	require.Len(t, got.State.Page, 1)
	assert.Contains(t, string(got.State.Page[0]), c.ID)

	resp = f.do("alice", http.MethodPost, "/screens/comments?tweet_id=nope", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	missing := decode[apiScreen](t, resp)
	assert.Equal(t, "failure", missing.State.Status)
}

func TestSearchScreenThroughHTTP(t *testing.T) {
	f := newFixture(t, 0)
	resp := f.do("bob", http.MethodPatch, "/me", map[string]string{"name": "Bob Findable"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do("alice", http.MethodPost, "/screens/search?keyword=findable", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	s := decode[apiScreen](t, resp)
	assert.Equal(t, "search", s.Kind)
	require.Len(t, s.State.Page, 1)

	resp = f.do("alice", http.MethodPost, "/screens/"+s.ID+"/items/bob/follow", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var u struct {
		ID        string `json:"id"`
		Viewables struct {
			Following bool `json:"following"`
		} `json:"viewables"`
	}
	got := decode[apiScreen](t, resp)
	require.Len(t, got.State.Page, 1)
	require.NoError(t, json.Unmarshal(got.State.Page[0], &u))
	assert.Equal(t, "bob", u.ID)
	assert.True(t, u.Viewables.Following)
}

func TestGetUser(t *testing.T) {
	f := newFixture(t, 0)
	resp := f.do("alice", http.MethodPatch, "/me", map[string]string{"bio": "down the rabbit hole"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do("bob", http.MethodGet, "/users/alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	u := decode[struct {
		ID  string `json:"id"`
		Bio string `json:"bio"`
	}](t, resp)
	assert.Equal(t, "alice", u.ID)
	assert.Equal(t, "down the rabbit hole", u.Bio)
}

func TestRegisterAppliesLimitsPerClass(t *testing.T) {
	hub := event.NewHub(nil)
	st := store.New(store.Options{Seed: 3, PageSize: 5}, hub, nil)
	reg := NewRegistry(st, hub, 0, nil)
	t.Cleanup(reg.CloseAll)

	var actions, writes atomic.Int32
	counting := func(n *atomic.Int32) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n.Add(1)
				next.ServeHTTP(w, r)
			})
		}
	}
	mux := http.NewServeMux()
	NewHandler(reg, st, nil).Register(mux, httpx.AuthMiddleware(jwt.NewVerifier(secret)), Limits{
		Action:    counting(&actions),
		Authoring: counting(&writes),
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	f := &fixture{t: t, srv: srv, store: st, reg: reg}

	s := f.open("alice", "feed")
	f.do("alice", http.MethodPost, "/screens/"+s.ID+"/items/"+tweets(t, s.State)[0].ID+"/like", nil)
	f.do("alice", http.MethodPost, "/tweets", map[string]string{"text": "hi"})
	f.do("alice", http.MethodPatch, "/me", map[string]string{"bio": "b"})
	f.do("alice", http.MethodGet, "/users/alice", nil)

	assert.EqualValues(t, 1, actions.Load())
	assert.EqualValues(t, 2, writes.Load())
}
