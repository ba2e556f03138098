package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type HandlerFunc func(http.ResponseWriter, *http.Request) error

type APIError struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Status int    `json:"status"`
}

type ctxKey struct{}

var (
	ctxUserIDKey    = ctxKey{}
	ErrUnauthorized = errors.New("unauthorized")
)

// TokenParser turns a bearer token into a user id.
type TokenParser interface {
	Parse(tok string) (string, error)
}

// StatusError carries the status code and reason to answer with.
type StatusError struct {
	Code   int
	Reason string
	Err    error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// WithStatus tags err with an HTTP status code.
func WithStatus(code int, reason string, err error) error {
	if err == nil {
		return nil
	}
	return &StatusError{Code: code, Reason: reason, Err: err}
}

func WriteJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, err error, reason string) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	WriteJSON(w, APIError{Error: err.Error(), Reason: reason, Status: status}, status)
}

func Wrap(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		code, reason := http.StatusBadRequest, ""
		var se *StatusError
		switch {
		case errors.As(err, &se):
			code, reason = se.Code, se.Reason
		case errors.Is(err, ErrUnauthorized):
			code = http.StatusUnauthorized
		}
		WriteError(w, code, err, reason)
	})
}

func Decode[T any](r *http.Request) (T, error) {
	var t T
	err := json.NewDecoder(r.Body).Decode(&t)
	return t, err
}

func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func AuthMiddleware(p TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "missing_bearer")
				return
			}
			uid, err := p.Parse(tok)
			if err != nil || uid == "" {
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "invalid_token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), uid)))
		})
	}
}

func WithUser(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, uid)
}

func UserFromCtx(r *http.Request) (string, error) {
	uid, _ := r.Context().Value(ctxUserIDKey).(string)
	if uid == "" {
		return "", ErrUnauthorized
	}
	return uid, nil
}
