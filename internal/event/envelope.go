package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownKind = errors.New("unknown event kind")

// Envelope is the wire form used by the kafka and redis bridges.
type Envelope struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Source    string          `json:"source"`
	Viewer    string          `json:"viewer,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Wrap encodes ev into a new envelope with a fresh id. An empty viewer means
// the event is addressed to Everyone.
func Wrap(source, viewer string, ev Event) (Envelope, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", ev.Kind(), err)
	}
	env := Envelope{
		ID:        uuid.NewString(),
		Kind:      ev.Kind(),
		Source:    source,
		Viewer:    viewer,
		CreatedAt: time.Now().UTC(),
		Payload:   b,
	}
	return env, env.Validate()
}

func (e Envelope) Validate() error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.Kind == "" {
		return errors.New("kind is required")
	}
	if e.Source == "" {
		return errors.New("source is required")
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at is required")
	}
	return nil
}

// Decode returns the typed event carried by the envelope.
func (e Envelope) Decode() (Event, error) {
	switch e.Kind {
	case KindEntityCreated:
		return decode[EntityCreated](e.Payload)
	case KindEntityDeleted:
		return decode[EntityDeleted](e.Payload)
	case KindEntityUpdated:
		return decode[EntityUpdated](e.Payload)
	case KindLikeCreated:
		return decode[LikeCreated](e.Payload)
	case KindLikeDeleted:
		return decode[LikeDeleted](e.Payload)
	case KindBookmarkCreated:
		return decode[BookmarkCreated](e.Payload)
	case KindBookmarkDeleted:
		return decode[BookmarkDeleted](e.Payload)
	case KindOwnerRefreshed:
		return decode[OwnerRefreshed](e.Payload)
	case KindFollowCreated:
		return decode[FollowCreated](e.Payload)
	case KindFollowDeleted:
		return decode[FollowDeleted](e.Payload)
	case KindCommentCreated:
		return decode[CommentCreated](e.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}

func decode[T Event](raw json.RawMessage) (Event, error) {
	var ev T
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", ev.Kind(), err)
	}
	return ev, nil
}

// Marshal and Unmarshal move envelopes to and from bytes.
func Marshal(e Envelope) ([]byte, error) { return json.Marshal(e) }

func Unmarshal(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, err
	}
	return e, e.Validate()
}
