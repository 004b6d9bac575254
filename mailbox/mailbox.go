// Package mailbox provides a serialized work queue: a FIFO of closures
// serviced by at most one worker goroutine at a time, guaranteeing that
// enqueued work runs sequentially in enqueue order. It is the "serialized
// execution" primitive the actor package builds on to turn every actor into
// a logical single-threaded island.
package mailbox

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/xerrors"
)

// WorkFunc is one unit of work run on the mailbox's worker.
type WorkFunc func(ctx context.Context) error

// DefaultIdleTimeout is how long an idle worker waits for new work before
// exiting and releasing its goroutine.
const DefaultIdleTimeout = 20 * time.Second

type workerContextKey struct{}

type item struct {
	ctx  context.Context
	work WorkFunc
	done chan error // nil for fire-and-forget items
}

// Mailbox is a FIFO queue of WorkFunc closures serviced by a single
// background worker goroutine. The worker spawns lazily on the first
// Enqueue/Execute and exits after sitting idle for IdleTimeout; a
// subsequent call re-spawns it.
type Mailbox struct {
	IdleTimeout time.Duration
	Logger      *slog.Logger

	mu      sync.Mutex
	queue   []*item
	running bool
	wake    chan struct{}
}

// Option configures a Mailbox at construction.
type Option func(*Mailbox)

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Mailbox) { m.IdleTimeout = d }
}

// WithLogger overrides the mailbox's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mailbox) { m.Logger = logger }
}

// New creates a Mailbox. The worker is not started until the first item is
// enqueued.
func New(opts ...Option) *Mailbox {
	m := &Mailbox{
		IdleTimeout: DefaultIdleTimeout,
		Logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue appends work to the queue. It never runs work synchronously on
// the calling goroutine, and starts the worker if none is live.
func (m *Mailbox) Enqueue(ctx context.Context, work WorkFunc) {
	m.push(&item{ctx: ctx, work: work})
}

// Execute enqueues work and blocks the caller until it completes,
// propagating any error the work returns.
func (m *Mailbox) Execute(ctx context.Context, work WorkFunc) error {
	done := make(chan error, 1)
	m.push(&item{ctx: ctx, work: work, done: done})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear discards all items not yet started. The item currently executing,
// if any, is not interrupted.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.queue {
		if it.done != nil {
			it.done <- xerrors.New("mailbox: cleared before execution")
		}
	}
	m.queue = nil
}

// Count returns the number of items currently queued, not including one
// in flight on the worker.
func (m *Mailbox) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Wait blocks until the queue drains, by enqueuing a sentinel and awaiting
// it.
func (m *Mailbox) Wait(ctx context.Context) error {
	return m.Execute(ctx, func(context.Context) error { return nil })
}

// IsWorkerContext reports whether ctx was handed to a WorkFunc currently
// running on this mailbox's worker — the context-propagation stand-in for
// "is the caller already on my worker thread" (Go has no supported way to
// compare goroutine identities, so the worker marks the context it passes
// downstream instead; callers must thread that same ctx through to get
// credit for already being on the worker).
func (m *Mailbox) IsWorkerContext(ctx context.Context) bool {
	mb, _ := ctx.Value(workerContextKey{}).(*Mailbox)
	return mb == m
}

func (m *Mailbox) push(it *item) {
	m.mu.Lock()
	m.queue = append(m.queue, it)
	needsWorker := !m.running
	if needsWorker {
		m.running = true
	}
	var wake chan struct{}
	if !needsWorker {
		wake = m.wake
	}
	m.mu.Unlock()

	if needsWorker {
		go m.runWorker()
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

func (m *Mailbox) runWorker() {
	idle := time.NewTimer(m.IdleTimeout)
	defer idle.Stop()

	for {
		it, ok := m.dequeue()
		if ok {
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			m.runItem(it)
			idle.Reset(m.IdleTimeout)
			continue
		}

		m.mu.Lock()
		wake := make(chan struct{}, 1)
		m.wake = wake
		m.mu.Unlock()

		select {
		case <-wake:
			idle.Reset(m.IdleTimeout)
			continue
		case <-idle.C:
			m.mu.Lock()
			// Another push raced us between dequeue and this lock: don't
			// exit with queued work stranded.
			if len(m.queue) > 0 {
				m.mu.Unlock()
				idle.Reset(m.IdleTimeout)
				continue
			}
			m.running = false
			m.wake = nil
			m.mu.Unlock()
			return
		}
	}
}

func (m *Mailbox) dequeue() (*item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	it := m.queue[0]
	m.queue = m.queue[1:]
	return it, true
}

// runItem executes one item with panic recovery: per §4.1, a failing work
// item must never escape the worker. Execute-style callers get the error
// delivered back through their done channel; fire-and-forget callers only
// get it logged.
func (m *Mailbox) runItem(it *item) {
	err := m.runProtected(it)
	if it.done != nil {
		it.done <- err
		return
	}
	if err != nil {
		m.Logger.Error("mailbox: work item failed", "error", err)
	}
}

func (m *Mailbox) runProtected(it *item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("mailbox: work item panicked: %v\n%s", r, debug.Stack())
		}
	}()
	ctx := context.WithValue(it.ctx, workerContextKey{}, m)
	return it.work(ctx)
}
