// Package pool provides a fixed-size pool of pre-opened SQLite handles.
// Handles are leased to one worker at a time and always returned, never
// destroyed; a broken handle is reopened transparently on the next acquire.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrExhausted is returned when no handle becomes available within the
// acquire timeout.
var ErrExhausted = errors.New("pool exhausted")

// ErrClosed is returned when acquiring from a closed pool.
var ErrClosed = errors.New("pool closed")

// Handle is a leased connection to the backing store. It is owned by exactly
// one worker between Acquire and Release.
type Handle struct {
	db     *sql.DB
	broken bool
}

// DB exposes the underlying database handle.
func (h *Handle) DB() *sql.DB { return h.db }

// MarkBroken flags the handle so the pool reopens it before the next lease.
func (h *Handle) MarkBroken() { h.broken = true }

// Pool hands out up to size handles to a single SQLite database. The store
// is opened in WAL mode so readers run concurrently while writes serialize
// on the store's own single-writer lock.
type Pool struct {
	path           string
	size           int
	acquireTimeout time.Duration

	handles chan *Handle

	mu     sync.Mutex
	closed bool
}

// Open creates a pool of size pre-opened handles for the database at path.
func Open(path string, size int, acquireTimeout time.Duration) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size must be >= 1, got %d", size)
	}

	p := &Pool{
		path:           path,
		size:           size,
		acquireTimeout: acquireTimeout,
		handles:        make(chan *Handle, size),
	}

	for i := 0; i < size; i++ {
		h, err := p.openHandle()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("open pool handle: %w", err)
		}
		p.handles <- h
	}
	return p, nil
}

func (p *Pool) openHandle() (*Handle, error) {
	dsn := p.path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One real connection per handle; the pool, not database/sql, decides
	// how many exist.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return &Handle{db: db}, nil
}

// Acquire leases a handle, blocking up to the configured acquire timeout.
// It returns ErrExhausted if every handle stays leased for that long.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case h := <-p.handles:
		if h.broken {
			return p.replace(h)
		}
		return h, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire handle: %w", ctx.Err())
	case <-timer.C:
		return nil, fmt.Errorf("no handle available after %v: %w", p.acquireTimeout, ErrExhausted)
	}
}

// replace closes a broken handle and opens a fresh one in its place. The
// broken handle goes back to the pool only if reopening fails, so the pool
// never shrinks.
func (p *Pool) replace(h *Handle) (*Handle, error) {
	fresh, err := p.openHandle()
	if err != nil {
		p.handles <- h
		return nil, fmt.Errorf("reopen broken handle: %w", err)
	}
	_ = h.db.Close()
	return fresh, nil
}

// Release returns a handle to the pool. It must be called on every exit
// path of an operation that acquired the handle.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		_ = h.db.Close()
		return
	}
	select {
	case p.handles <- h:
	default:
		// More releases than leases is a caller bug; drop the surplus
		// handle rather than block.
		_ = h.db.Close()
	}
}

// Do runs fn with a leased handle and guarantees release on all exit paths.
func (p *Pool) Do(ctx context.Context, fn func(db *sql.DB) error) error {
	h, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(h)
	return fn(h.db)
}

// Available reports how many handles are currently un-leased.
func (p *Pool) Available() int { return len(p.handles) }

// Size reports the fixed pool size.
func (p *Pool) Size() int { return p.size }

// Close closes all idle handles and marks the pool closed. Leased handles
// are closed as they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var firstErr error
	for {
		select {
		case h := <-p.handles:
			if err := h.db.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		default:
			return firstErr
		}
	}
}
