// Package paginated holds one materialized page of a collection together with
// the cursor needed to fetch the page after it.
package paginated

// Paginated is an immutable page of items. A nil NextToken means the end of the
// collection has been reached; a non-nil token must be sent back verbatim to
// fetch the following page.
type Paginated[T any] struct {
	Page      []T     `json:"page"`
	NextToken *string `json:"next_token,omitempty"`
}

// Empty returns a page with no items and no token.
func Empty[T any]() Paginated[T] {
	return Paginated[T]{}
}

// New builds a page. An empty token is treated as "no more pages".
func New[T any](items []T, next string) Paginated[T] {
	p := Paginated[T]{Page: items}
	if next != "" {
		p.NextToken = &next
	}
	return p
}

// Concat appends b after a and takes b's token. b is expected to have been
// fetched with a's token; that is not checked here.
func Concat[T any](a, b Paginated[T]) Paginated[T] {
	page := make([]T, 0, len(a.Page)+len(b.Page))
	page = append(page, a.Page...)
	page = append(page, b.Page...)
	return Paginated[T]{Page: page, NextToken: cloneToken(b.NextToken)}
}

// HasMore reports whether another page can be requested.
func (p Paginated[T]) HasMore() bool { return p.NextToken != nil }

// Token returns the continuation token, or "" at the end of the collection.
func (p Paginated[T]) Token() string {
	if p.NextToken == nil {
		return ""
	}
	return *p.NextToken
}

func (p Paginated[T]) Len() int { return len(p.Page) }

// WithPage returns a copy of p holding items and the same token.
func (p Paginated[T]) WithPage(items []T) Paginated[T] {
	return Paginated[T]{Page: items, NextToken: cloneToken(p.NextToken)}
}

func cloneToken(t *string) *string {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
