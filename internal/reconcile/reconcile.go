// Package reconcile folds out-of-band events into a held page without a
// refetch. Every function is pure: it returns a new page when an item changed
// and the input page itself when nothing matched.
package reconcile

import "timeline-service/internal/paginated"

type Entity interface {
	EntityID() string
}

type Likeable[T any] interface {
	Entity
	Liked() bool
	LikesCount() int
	WithLike(liked bool, count int) T
}

type Bookmarkable[T any] interface {
	Entity
	Bookmarked() bool
	WithBookmark(bookmarked bool) T
}

// Owned entities embed a snapshot of their owner of type O.
type Owned[T, O any] interface {
	Entity
	OwnerID() string
	WithOwner(owner O) T
}

type Owner interface {
	OwnerID() string
}

type Followable[T any] interface {
	Entity
	OwnerID() string
	Following() bool
	WithFollowing(following bool) T
}

type Commentable[T any] interface {
	Entity
	CommentsCount() int
	WithComments(count int) T
}

// Prepend puts item in front of the page.
func Prepend[T any](p paginated.Paginated[T], item T) paginated.Paginated[T] {
	page := make([]T, 0, len(p.Page)+1)
	page = append(page, item)
	page = append(page, p.Page...)
	return p.WithPage(page)
}

// InsertAt puts item at index, clamped to the page bounds.
func InsertAt[T any](p paginated.Paginated[T], index int, item T) paginated.Paginated[T] {
	if index < 0 {
		index = 0
	}
	if index > len(p.Page) {
		index = len(p.Page)
	}
	page := make([]T, 0, len(p.Page)+1)
	page = append(page, p.Page[:index]...)
	page = append(page, item)
	page = append(page, p.Page[index:]...)
	return p.WithPage(page)
}

// Remove drops every item with the given id.
func Remove[T Entity](p paginated.Paginated[T], id string) paginated.Paginated[T] {
	idx := -1
	for i, it := range p.Page {
		if it.EntityID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return p
	}
	page := make([]T, 0, len(p.Page)-1)
	page = append(page, p.Page[:idx]...)
	for _, it := range p.Page[idx+1:] {
		if it.EntityID() != id {
			page = append(page, it)
		}
	}
	return p.WithPage(page)
}

// Find returns the first item with the given id and its index.
func Find[T Entity](p paginated.Paginated[T], id string) (T, int, bool) {
	for i, it := range p.Page {
		if it.EntityID() == id {
			return it, i, true
		}
	}
	var zero T
	return zero, -1, false
}

// Contains reports whether an item with the given id is on the page.
func Contains[T Entity](p paginated.Paginated[T], id string) bool {
	_, _, ok := Find(p, id)
	return ok
}

// Replace swaps every item sharing item's id for item.
func Replace[T Entity](p paginated.Paginated[T], item T) paginated.Paginated[T] {
	id := item.EntityID()
	return update(p, func(it T) (T, bool) {
		if it.EntityID() != id {
			return it, false
		}
		return item, true
	})
}

func LikeCreated[T Likeable[T]](p paginated.Paginated[T], id string) paginated.Paginated[T] {
	return update(p, func(it T) (T, bool) {
		if it.EntityID() != id || it.Liked() {
			return it, false
		}
		return it.WithLike(true, it.LikesCount()+1), true
	})
}

func LikeDeleted[T Likeable[T]](p paginated.Paginated[T], id string) paginated.Paginated[T] {
	return update(p, func(it T) (T, bool) {
		if it.EntityID() != id || !it.Liked() {
			return it, false
		}
		return it.WithLike(false, max(it.LikesCount()-1, 0)), true
	})
}

func BookmarkCreated[T Bookmarkable[T]](p paginated.Paginated[T], id string) paginated.Paginated[T] {
	return update(p, func(it T) (T, bool) {
		if it.EntityID() != id || it.Bookmarked() {
			return it, false
		}
		return it.WithBookmark(true), true
	})
}

func BookmarkDeleted[T Bookmarkable[T]](p paginated.Paginated[T], id string) paginated.Paginated[T] {
	return update(p, func(it T) (T, bool) {
		if it.EntityID() != id || !it.Bookmarked() {
			return it, false
		}
		return it.WithBookmark(false), true
	})
}

// OwnerRefreshed replaces the embedded owner of every item owned by owner.
func OwnerRefreshed[T Owned[T, O], O Owner](p paginated.Paginated[T], owner O) paginated.Paginated[T] {
	id := owner.OwnerID()
	return update(p, func(it T) (T, bool) {
		if it.OwnerID() != id {
			return it, false
		}
		return it.WithOwner(owner), true
	})
}

// FollowCreated marks every item owned by userID as followed by the viewer.
func FollowCreated[T Followable[T]](p paginated.Paginated[T], userID string) paginated.Paginated[T] {
	return setFollowing(p, userID, true)
}

func FollowDeleted[T Followable[T]](p paginated.Paginated[T], userID string) paginated.Paginated[T] {
	return setFollowing(p, userID, false)
}

func setFollowing[T Followable[T]](p paginated.Paginated[T], userID string, following bool) paginated.Paginated[T] {
	return update(p, func(it T) (T, bool) {
		if it.OwnerID() != userID || it.Following() == following {
			return it, false
		}
		return it.WithFollowing(following), true
	})
}

func CommentCreated[T Commentable[T]](p paginated.Paginated[T], id string) paginated.Paginated[T] {
	return update(p, func(it T) (T, bool) {
		if it.EntityID() != id {
			return it, false
		}
		return it.WithComments(it.CommentsCount() + 1), true
	})
}

// update copies the page lazily: the first changed item triggers the copy, so
// an untouched page comes back as the same value.
func update[T any](p paginated.Paginated[T], fn func(T) (T, bool)) paginated.Paginated[T] {
	var page []T
	for i, it := range p.Page {
		next, changed := fn(it)
		if !changed {
			if page != nil {
				page = append(page, it)
			}
			continue
		}
		if page == nil {
			page = make([]T, i, len(p.Page))
			copy(page, p.Page[:i])
		}
		page = append(page, next)
	}
	if page == nil {
		return p
	}
	return p.WithPage(page)
}
