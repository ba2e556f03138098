// Package optimistic applies a user action to a held page before the transport
// confirms it and undoes the change when the transport call fails.
package optimistic

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"timeline-service/internal/feedstate"
	"timeline-service/internal/metrics"
	"timeline-service/internal/paginated"
	"timeline-service/internal/reconcile"
)

type Action string

const (
	ActionLike       Action = "like"
	ActionUnlike     Action = "unlike"
	ActionBookmark   Action = "bookmark"
	ActionUnbookmark Action = "unbookmark"
	ActionDelete     Action = "delete"
	ActionFollow     Action = "follow"
	ActionUnfollow   Action = "unfollow"
)

func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionLike, ActionUnlike, ActionBookmark, ActionUnbookmark, ActionDelete, ActionFollow, ActionUnfollow:
		return a, true
	}
	return "", false
}

// Mutator is the transport side of a user action.
type Mutator interface {
	Mutate(ctx context.Context, action Action, id string) error
}

type MutateFunc func(ctx context.Context, action Action, id string) error

func (fn MutateFunc) Mutate(ctx context.Context, action Action, id string) error {
	return fn(ctx, action, id)
}

// Target is the state slot a change is applied to. *feedstate.Feed satisfies it.
type Target[T any] interface {
	Patch(fn func(paginated.Paginated[T]) paginated.Paginated[T]) bool
	Transient(op feedstate.Operation, err error)
}

// Change pairs an optimistic patch with its inverse. Revert must be safe to
// apply to a page that moved on since Apply ran.
type Change[T any] struct {
	Action Action
	ID     string
	Apply  func(paginated.Paginated[T]) paginated.Paginated[T]
	Revert func(paginated.Paginated[T]) paginated.Paginated[T]
}

// Run applies c, calls the transport and reverts on failure. The revert is
// skipped when Apply changed nothing, so a no-op action never rolls back
// someone else's state. Failures are surfaced through Target.Transient.
func Run[T any](ctx context.Context, target Target[T], m Mutator, c Change[T]) error {
	ctx, span := otel.Tracer("timeline-service/optimistic").Start(ctx, "mutate."+string(c.Action),
		trace.WithAttributes(attribute.String("item_id", c.ID)))
	defer span.End()

	applied := target.Patch(c.Apply)

	err := m.Mutate(ctx, c.Action, c.ID)
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if applied {
		target.Patch(c.Revert)
		metrics.RecordRollback(string(c.Action))
	}
	err = fmt.Errorf("%s %s: %w", c.Action, c.ID, err)
	target.Transient(feedstate.OpMutate, err)
	return err
}

// Snapshotted entities can be compared to tell whether a rollback target still
// looks the way the optimistic patch left it.
type Snapshotted interface {
	comparable
	reconcile.Entity
}

// restoring wraps apply so that Revert puts back the exact items apply
// replaced. Items that moved on since Apply ran are left to inverse, which is
// guarded and does nothing when the item is already in the reverted state.
func restoring[T Snapshotted](action Action, id string, apply, inverse func(paginated.Paginated[T]) paginated.Paginated[T]) Change[T] {
	var before, after map[string]T
	return Change[T]{
		Action: action,
		ID:     id,
		Apply: func(p paginated.Paginated[T]) paginated.Paginated[T] {
			next := apply(p)
			prev := make(map[string]T, len(p.Page))
			for _, it := range p.Page {
				if _, ok := prev[it.EntityID()]; !ok {
					prev[it.EntityID()] = it
				}
			}
			before, after = make(map[string]T), make(map[string]T)
			for _, it := range next.Page {
				if old, ok := prev[it.EntityID()]; ok && old != it {
					before[it.EntityID()] = old
					after[it.EntityID()] = it
				}
			}
			return next
		},
		Revert: func(p paginated.Paginated[T]) paginated.Paginated[T] {
			var page []T
			diverged := false
			for i, it := range p.Page {
				patched, ok := after[it.EntityID()]
				switch {
				case ok && it == patched:
					if page == nil {
						page = make([]T, i, len(p.Page))
						copy(page, p.Page[:i])
					}
					page = append(page, before[it.EntityID()])
					continue
				case ok:
					diverged = true
				}
				if page != nil {
					page = append(page, it)
				}
			}
			out := p
			if page != nil {
				out = p.WithPage(page)
			}
			if diverged {
				out = inverse(out)
			}
			return out
		},
	}
}

type likeable[T any] interface {
	Snapshotted
	reconcile.Likeable[T]
}

type bookmarkable[T any] interface {
	Snapshotted
	reconcile.Bookmarkable[T]
}

type followable[T any] interface {
	Snapshotted
	reconcile.Followable[T]
}

func Like[T likeable[T]](id string) Change[T] {
	return restoring(ActionLike, id,
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.LikeCreated(p, id) },
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.LikeDeleted(p, id) },
	)
}

func Unlike[T likeable[T]](id string) Change[T] {
	return restoring(ActionUnlike, id,
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.LikeDeleted(p, id) },
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.LikeCreated(p, id) },
	)
}

func Bookmark[T bookmarkable[T]](id string) Change[T] {
	return restoring(ActionBookmark, id,
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.BookmarkCreated(p, id) },
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.BookmarkDeleted(p, id) },
	)
}

func Unbookmark[T bookmarkable[T]](id string) Change[T] {
	return restoring(ActionUnbookmark, id,
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.BookmarkDeleted(p, id) },
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.BookmarkCreated(p, id) },
	)
}

// Follow and Unfollow take the id of the user being followed.
func Follow[T followable[T]](userID string) Change[T] {
	return restoring(ActionFollow, userID,
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.FollowCreated(p, userID) },
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.FollowDeleted(p, userID) },
	)
}

func Unfollow[T followable[T]](userID string) Change[T] {
	return restoring(ActionUnfollow, userID,
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.FollowDeleted(p, userID) },
		func(p paginated.Paginated[T]) paginated.Paginated[T] { return reconcile.FollowCreated(p, userID) },
	)
}

// Delete removes the item and, on revert, puts it back where it was unless an
// item with the same id has reappeared in the meantime.
func Delete[T reconcile.Entity](id string) Change[T] {
	var (
		removed T
		index   int
		found   bool
	)
	return Change[T]{
		Action: ActionDelete,
		ID:     id,
		Apply: func(p paginated.Paginated[T]) paginated.Paginated[T] {
			removed, index, found = reconcile.Find(p, id)
			return reconcile.Remove(p, id)
		},
		Revert: func(p paginated.Paginated[T]) paginated.Paginated[T] {
			if !found || reconcile.Contains(p, id) {
				return p
			}
			return reconcile.InsertAt(p, index, removed)
		},
	}
}
