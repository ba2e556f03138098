package feedstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"timeline-service/internal/metrics"
	"timeline-service/internal/paginated"
	"timeline-service/internal/shared/logx"
)

var (
	ErrNotExtendable  = errors.New("feed is not extendable")
	ErrExtendInFlight = errors.New("extend already in flight")
	ErrClosed         = errors.New("feed closed")
	ErrStale          = errors.New("result superseded")
)

type Operation string

const (
	OpLoad    Operation = "load"
	OpRefresh Operation = "refresh"
	OpExtend  Operation = "extend"
	OpMutate  Operation = "mutate"
)

// Fetcher is the transport side of a feed. A nil cursor asks for the first page.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, cursor *string) (paginated.Paginated[T], error)
}

type FetchFunc[T any] func(ctx context.Context, cursor *string) (paginated.Paginated[T], error)

func (fn FetchFunc[T]) FetchPage(ctx context.Context, cursor *string) (paginated.Paginated[T], error) {
	return fn(ctx, cursor)
}

// Hooks are how a feed talks to its renderer. OnChange gets every new state
// value; OnTransient gets failures that did not change the state. Hooks run
// one at a time in transition order. They may read State but must not call
// Load, Refresh, Extend, Patch or Transient, which wait for the running hook.
type Hooks[T any] struct {
	OnChange    func(State[T])
	OnTransient func(Operation, error)
}

// Feed is one screen's state slot. All reads and writes of the slot are
// serialized; fetches run outside the lock and their results are applied only
// if nothing superseded them in the meantime.
type Feed[T any] struct {
	name  string
	fetch Fetcher[T]
	hooks Hooks[T]
	log   *zap.Logger

	mu       sync.Mutex
	state    State[T]
	gen      uint64
	extendID uint64
	nextExt  uint64
	closed   bool
	snap     atomic.Pointer[State[T]]

	notifyMu sync.Mutex
}

func New[T any](name string, fetch Fetcher[T], hooks Hooks[T], log *zap.Logger) *Feed[T] {
	log = logx.OrNop(log)
	return &Feed[T]{
		name:  name,
		fetch: fetch,
		hooks: hooks,
		log:   log.With(zap.String("screen", name)),
	}
}

func (f *Feed[T]) Name() string { return f.name }

// State returns the latest state. It never waits on a running fetch or hook.
func (f *Feed[T]) State() State[T] {
	if s := f.snap.Load(); s != nil {
		return *s
	}
	return Pending[T]()
}

// Load moves the feed to Pending and then to the fetch result.
func (f *Feed[T]) Load(ctx context.Context) error {
	return f.load(ctx, OpLoad, true)
}

// Refresh fetches the first page again but keeps the current state visible
// until the result lands.
func (f *Feed[T]) Refresh(ctx context.Context) error {
	return f.load(ctx, OpRefresh, false)
}

func (f *Feed[T]) load(ctx context.Context, op Operation, showPending bool) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.gen++
	gen := f.gen
	f.extendID = 0
	if showPending {
		f.setLocked(Pending[T]())
	} else {
		f.mu.Unlock()
	}

	page, err := f.doFetch(ctx, op, nil)

	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		f.log.Debug("dropping stale result", zap.String("operation", string(op)))
		return ErrStale
	}
	if err != nil {
		f.setLocked(Failure[T](err))
		return err
	}
	f.setLocked(Success(page))
	return nil
}

// Extend fetches the page after the held one and appends it. It refuses to
// run unless the state is Success with a token and no other extend is in
// flight. A failed extend leaves the state alone and is reported through
// OnTransient.
func (f *Feed[T]) Extend(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	held, ok := f.state.Page()
	if !ok || !held.HasMore() {
		f.mu.Unlock()
		return ErrNotExtendable
	}
	if f.extendID != 0 {
		f.mu.Unlock()
		return ErrExtendInFlight
	}
	f.nextExt++
	id := f.nextExt
	f.extendID = id
	gen := f.gen
	token := held.Token()
	f.mu.Unlock()

	fetched, err := f.doFetch(ctx, OpExtend, &token)

	f.mu.Lock()
	if f.extendID == id {
		f.extendID = 0
	}
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		f.mu.Unlock()
		f.Transient(OpExtend, err)
		return err
	}
	cur, ok := f.state.Page()
	if !ok || cur.Token() != token {
		f.mu.Unlock()
		return ErrStale
	}
	f.setLocked(Success(paginated.Concat(cur, fetched)))
	return nil
}

// Patch applies fn to the held page. It does nothing unless the state is
// Success. It reports whether the page changed.
func (f *Feed[T]) Patch(fn func(paginated.Paginated[T]) paginated.Paginated[T]) bool {
	f.mu.Lock()
	cur, ok := f.state.Page()
	if f.closed || !ok {
		f.mu.Unlock()
		return false
	}
	next := fn(cur)
	if samePage(cur, next) {
		f.mu.Unlock()
		return false
	}
	f.setLocked(Success(next))
	return true
}

// Transient reports a failure that did not change the state.
func (f *Feed[T]) Transient(op Operation, err error) {
	if f.isClosed() {
		return
	}
	metrics.RecordTransient(f.name, string(op))
	f.log.Warn("transient failure", zap.String("operation", string(op)), zap.Error(err))
	if f.hooks.OnTransient == nil {
		return
	}
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()
	f.hooks.OnTransient(op, err)
}

// Close discards the feed. Results of calls still in flight are dropped.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *Feed[T]) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// setLocked stores s and notifies the renderer. It must be called with mu
// held and releases it; notifyMu is taken before mu is released so hooks see
// transitions in order.
func (f *Feed[T]) setLocked(s State[T]) {
	f.state = s
	f.snap.Store(&s)
	metrics.RecordTransition(f.name, s.Status().String())
	f.notifyMu.Lock()
	f.mu.Unlock()
	defer f.notifyMu.Unlock()
	if f.hooks.OnChange != nil {
		f.hooks.OnChange(s)
	}
}

func (f *Feed[T]) doFetch(ctx context.Context, op Operation, cursor *string) (paginated.Paginated[T], error) {
	ctx, span := otel.Tracer("timeline-service/feedstate").Start(ctx, "feed."+string(op),
		trace.WithAttributes(attribute.String("screen", f.name)))
	defer span.End()

	start := time.Now()
	page, err := f.fetch.FetchPage(ctx, cursor)
	metrics.RecordFetch(f.name, string(op), time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return page, fmt.Errorf("%s %s: %w", f.name, op, err)
	}
	return page, nil
}

func samePage[T any](a, b paginated.Paginated[T]) bool {
	if len(a.Page) != len(b.Page) || a.Token() != b.Token() || a.HasMore() != b.HasMore() {
		return false
	}
	return len(a.Page) == 0 || &a.Page[0] == &b.Page[0]
}
