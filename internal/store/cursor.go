package store

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"timeline-service/internal/paginated"
)

// row is one item of a list together with its sort key. Lists are ordered
// newest first, ties broken by id descending.
type row[T any] struct {
	at   time.Time
	id   string
	item T
}

func (r row[T]) before(at time.Time, id string) bool {
	if !r.at.Equal(at) {
		return r.at.After(at)
	}
	return r.id > id
}

func sortRows[T any](rows []row[T]) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].before(rows[j].at, rows[j].id) })
}

func encodeCursor(at time.Time, id string) string {
	raw := strconv.FormatInt(at.UnixNano(), 10) + ":" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(tok string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return time.Time{}, "", ErrBadCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	return time.Unix(0, n), id, nil
}

// pageOf cuts the page after cursor out of sorted rows. Keyset cursors keep
// pages stable when items are inserted at the head of the list.
func pageOf[T any](rows []row[T], cursor *string, size int) (paginated.Paginated[T], error) {
	start := 0
	if cursor != nil {
		at, id, err := decodeCursor(*cursor)
		if err != nil {
			return paginated.Paginated[T]{}, err
		}
		start = sort.Search(len(rows), func(i int) bool { return !rows[i].before(at, id) })
		if start < len(rows) && rows[start].at.Equal(at) && rows[start].id == id {
			start++
		}
	}
	end := min(start+size, len(rows))
	items := make([]T, 0, end-start)
	for _, r := range rows[start:end] {
		items = append(items, r.item)
	}
	next := ""
	if end < len(rows) {
		last := rows[end-1]
		next = encodeCursor(last.at, last.id)
	}
	return paginated.New(items, next), nil
}
