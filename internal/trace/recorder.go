// Package trace records scheduler task events in a SQLite database.
//
// Recorder implements sched.Hook. Hook calls happen on the scheduler's
// goroutine, so they only enqueue; a background writer batches the inserts.
package trace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/warpdl/warpsched/pkg/logger"
	"github.com/warpdl/warpsched/pkg/sched"
)

// Kind is the lifecycle event a row describes.
type Kind string

const (
	KindScheduled Kind = "scheduled"
	KindCanceled  Kind = "canceled"
	KindStarted   Kind = "started"
	KindCompleted Kind = "completed"
	KindYielded   Kind = "yielded"
	KindFailed    Kind = "failed"
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("trace: recorder closed")

// Event is one recorded row.
type Event struct {
	Seq        int64          `json:"seq"`
	TaskID     uint64         `json:"taskId"`
	Name       string         `json:"name,omitempty"`
	Kind       Kind           `json:"kind"`
	Priority   sched.Priority `json:"priority"`
	Expiration time.Time      `json:"expiration"`
	At         time.Time      `json:"at"`
	Elapsed    time.Duration  `json:"elapsed"`
	DidTimeout bool           `json:"didTimeout"`
	Continued  bool           `json:"continued"`
	Error      string         `json:"error,omitempty"`
}

// Options configures a Recorder.
type Options struct {
	// Logger receives write failures.
	Logger logger.Logger
	// Names maps task ids to display names. It is called on the
	// scheduler's goroutine.
	Names func(id uint64) string
	// Now stamps events. It defaults to time.Now.
	Now func() time.Time
	// Buffer is the capacity of the queue between hooks and the writer.
	Buffer int
}

const (
	defaultBuffer = 1024
	maxBatch      = 128
)

type item struct {
	ev   Event
	done chan struct{}
}

// Recorder persists task events.
type Recorder struct {
	db    *sql.DB
	log   logger.Logger
	names func(uint64) string
	now   func() time.Time

	ch      chan item
	quit    chan struct{}
	stopped chan struct{}
	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// Open opens (or creates) the database at dsn and starts the writer. Use
// ":memory:" for a throwaway database.
func Open(ctx context.Context, dsn string, opts Options) (*Recorder, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writes.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return newRecorder(db, opts), nil
}

func newRecorder(db *sql.DB, opts Options) *Recorder {
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	r := &Recorder{
		db:      db,
		log:     opts.Logger,
		names:   opts.Names,
		now:     opts.Now,
		ch:      make(chan item, opts.Buffer),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go r.writer()
	return r
}

func (r *Recorder) event(t *sched.Task, kind Kind) Event {
	ev := Event{
		TaskID:     t.ID(),
		Kind:       kind,
		Priority:   t.Priority(),
		Expiration: t.Expiration(),
		At:         r.now(),
	}
	if r.names != nil {
		ev.Name = r.names(t.ID())
	}
	return ev
}

// enqueue never blocks the scheduler. Events are dropped when the writer
// falls behind.
func (r *Recorder) enqueue(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- item{ev: ev}:
	default:
		r.dropped++
	}
}

func (r *Recorder) OnSchedule(t *sched.Task) {
	r.enqueue(r.event(t, KindScheduled))
}

func (r *Recorder) OnCancel(t *sched.Task) {
	r.enqueue(r.event(t, KindCanceled))
}

func (r *Recorder) OnRun(t *sched.Task, didTimeout bool) {
	ev := r.event(t, KindStarted)
	ev.DidTimeout = didTimeout
	r.enqueue(ev)
}

func (r *Recorder) OnComplete(t *sched.Task, elapsed time.Duration, continued bool, err error) {
	kind := KindCompleted
	switch {
	case err != nil:
		kind = KindFailed
	case continued:
		kind = KindYielded
	}
	ev := r.event(t, kind)
	ev.Elapsed = elapsed
	ev.Continued = continued
	if err != nil {
		ev.Error = err.Error()
	}
	r.enqueue(ev)
}

// Dropped returns how many events were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Flush waits until every event enqueued so far is written.
func (r *Recorder) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case r.ch <- item{done: done}:
	case <-r.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-r.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) writer() {
	defer close(r.stopped)
	batch := make([]Event, 0, maxBatch)
	var waiters []chan struct{}
	collect := func(it item) {
		if it.done != nil {
			waiters = append(waiters, it.done)
			return
		}
		batch = append(batch, it.ev)
	}
	write := func() {
		if len(batch) > 0 {
			if err := r.insert(batch); err != nil {
				r.log.Error("trace: failed to write %d event(s): %v", len(batch), err)
			}
			batch = batch[:0]
		}
		for _, w := range waiters {
			close(w)
		}
		waiters = waiters[:0]
	}
	for {
		select {
		case it := <-r.ch:
			collect(it)
		case <-r.quit:
			// Drain what was queued before Close.
			for {
				select {
				case it := <-r.ch:
					collect(it)
					if len(batch) == maxBatch {
						write()
					}
				default:
					write()
					return
				}
			}
		}
	fill:
		for len(batch) < maxBatch {
			select {
			case it := <-r.ch:
				collect(it)
			default:
				break fill
			}
		}
		write()
	}
}

func (r *Recorder) insert(batch []Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO task_events
		(task_id, name, kind, priority, expiration, at, elapsed_us, did_timeout, continued, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, ev := range batch {
		_, err := stmt.Exec(
			int64(ev.TaskID), ev.Name, string(ev.Kind), ev.Priority.String(),
			ev.Expiration.Format(time.RFC3339Nano), ev.At.Format(time.RFC3339Nano),
			ev.Elapsed.Microseconds(), boolInt(ev.DidTimeout), boolInt(ev.Continued), ev.Error,
		)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Recent returns up to limit events, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, task_id, name, kind, priority, expiration, at, elapsed_us, did_timeout, continued, error
		 FROM task_events ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev                    Event
			taskID                int64
			kind, prio, exp, at   string
			elapsedUs             int64
			didTimeout, continued int
		)
		if err := rows.Scan(&ev.Seq, &taskID, &ev.Name, &kind, &prio, &exp, &at,
			&elapsedUs, &didTimeout, &continued, &ev.Error); err != nil {
			return nil, err
		}
		ev.TaskID = uint64(taskID)
		ev.Kind = Kind(kind)
		ev.Priority, _ = sched.ParsePriority(prio)
		ev.Expiration, _ = time.Parse(time.RFC3339Nano, exp)
		ev.At, _ = time.Parse(time.RFC3339Nano, at)
		ev.Elapsed = time.Duration(elapsedUs) * time.Microsecond
		ev.DidTimeout = didTimeout != 0
		ev.Continued = continued != 0
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close stops the writer after it drained the queue, then closes the
// database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.quit)
	r.mu.Unlock()
	<-r.stopped
	return r.db.Close()
}

var _ sched.Hook = (*Recorder)(nil)
