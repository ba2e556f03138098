package jwt

import (
	"errors"
	"time"

	jw "github.com/golang-jwt/jwt/v5"
)

// DevSecret is used when no secret is configured.
const DevSecret = "replace-this-with-a-strong-secret"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSubject    = errors.New("no subject")
)

// Verifier checks HS256 tokens issued by the auth service.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	if secret == "" {
		secret = DevSecret
	}
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Parse validates tok and returns the user id from the "sub" claim.
func (v *Verifier) Parse(tok string) (string, error) {
	t, err := jw.Parse(tok, func(*jw.Token) (any, error) {
		return v.secret, nil
	}, jw.WithValidMethods([]string{jw.SigningMethodHS256.Alg()}), jw.WithTimeFunc(v.now))
	if err != nil || !t.Valid {
		return "", ErrInvalidToken
	}
	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrNoSubject
	}
	return sub, nil
}
