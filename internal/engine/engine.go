// Package engine runs scripts on a scheduler driven by a goja event loop.
//
// The event loop goroutine owns the JS runtime, the host and the scheduler.
// Engine methods may be called from any goroutine: each call is posted to
// the loop and waits for its result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/warpdl/warpsched/internal/config"
	"github.com/warpdl/warpsched/internal/frameloop"
	"github.com/warpdl/warpsched/internal/jsbind"
	"github.com/warpdl/warpsched/pkg/logger"
	"github.com/warpdl/warpsched/pkg/sched"
)

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("engine: closed")
	// ErrTaskNotFound is returned when canceling an unknown or finished task.
	ErrTaskNotFound = errors.New("engine: task not found")
	// ErrNoScript is returned by Submit when neither source nor path is set.
	ErrNoScript = errors.New("engine: no script given")
)

// Options configures an Engine.
type Options struct {
	// Fs resolves script paths and require() calls. It defaults to the OS
	// filesystem.
	Fs     afero.Fs
	Logger logger.Logger
	Host   config.Host
	// Timeouts defaults to sched.DefaultTimeouts when zero.
	Timeouts sched.Timeouts
	// Hooks observe every task, including ones scheduled by scripts.
	Hooks []sched.Hook
	// OnEvent receives lifecycle events of submitted tasks. It is called on
	// the loop goroutine and must not block.
	OnEvent func(Event)
}

// Submission describes a script to run as a task.
type Submission struct {
	// Source is the script text. When empty, Path is read from the
	// engine's filesystem.
	Source string
	Path   string
	Name   string
	// Priority defaults to Normal when unset or unknown.
	Priority sched.Priority
	// Timeout overrides the priority's timeout when set.
	Timeout *time.Duration
}

// entry tracks a submitted task across its continuations.
type entry struct {
	id   string
	name string
	task *sched.Task
}

// Engine is a scheduler with a JS runtime on its own event loop.
type Engine struct {
	fs   afero.Fs
	log  logger.Logger
	loop *eventloop.EventLoop

	// Confined to the loop goroutine.
	sched      *sched.Scheduler
	binding    *jsbind.Binding
	host       sched.Host
	tasks      map[string]*entry
	byTask     map[uint64]*entry
	pending    *entry
	continuing *entry
	onEvent    func(Event)

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// New starts the event loop and sets up the scheduler on it.
func New(opts Options) (*Engine, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Timeouts == (sched.Timeouts{}) {
		opts.Timeouts = sched.DefaultTimeouts
	}
	if err := opts.Timeouts.Validate(); err != nil {
		return nil, err
	}

	reg := jsbind.NewRegistry(opts.Fs, opts.Logger)
	e := &Engine{
		fs:      opts.Fs,
		log:     opts.Logger,
		loop:    eventloop.NewEventLoop(eventloop.WithRegistry(reg), eventloop.EnableConsole(false)),
		tasks:   make(map[string]*entry),
		byTask:  make(map[uint64]*entry),
		onEvent: opts.OnEvent,
		done:    make(chan struct{}),
	}
	e.loop.Start()

	err := e.do(context.Background(), func(vm *goja.Runtime) error {
		jsbind.EnableConsole(vm)
		e.host = newHost(e.loop, opts.Host, opts.Logger)
		schedOpts := []sched.Option{
			sched.WithHost(e.host),
			sched.WithLogger(opts.Logger),
			sched.WithTimeouts(opts.Timeouts),
			sched.WithHook(tracker{e}),
		}
		for _, h := range opts.Hooks {
			schedOpts = append(schedOpts, sched.WithHook(h))
		}
		schedOpts = append(schedOpts, sched.WithHook(sweeper{e: e}))
		e.sched = sched.New(schedOpts...)
		e.binding = jsbind.New(vm, e.sched, opts.Logger)
		return e.binding.Install()
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func newHost(loop *eventloop.EventLoop, h config.Host, l logger.Logger) sched.Host {
	cfg := frameloop.Config{
		RefreshHz:    h.RefreshHz,
		BudgetSeed:   h.BudgetSeed,
		BudgetFloor:  h.BudgetFloor,
		FrameTimeout: h.FrameTimeout,
		Logger:       l,
	}
	if h.Kind == config.HostTimer {
		return frameloop.NewTimerHost(loop, cfg)
	}
	return frameloop.NewFrameHost(loop, cfg)
}

// do runs fn on the loop goroutine and waits for it.
func (e *Engine) do(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	if e.isClosed() {
		return ErrClosed
	}
	res := make(chan error, 1)
	e.loop.RunOnLoop(func(vm *goja.Runtime) {
		res <- fn(vm)
	})
	select {
	case err := <-res:
		return err
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Submit compiles the script and schedules it. The returned id names the
// task in events and in Cancel.
func (e *Engine) Submit(ctx context.Context, sub Submission) (string, error) {
	prog, err := e.compile(sub)
	if err != nil {
		return "", err
	}
	priority := sub.Priority
	if !priority.IsValid() {
		priority = sched.PriorityNormal
	}
	opts := []sched.ScheduleOption{sched.WithPriority(priority)}
	if sub.Timeout != nil {
		opts = append(opts, sched.WithTimeout(*sub.Timeout))
	}

	ent := &entry{id: uuid.NewString(), name: sub.Name}
	err = e.do(ctx, func(*goja.Runtime) error {
		e.pending = ent
		defer func() { e.pending = nil }()
		_, err := e.sched.Schedule(e.binding.ProgramCallback(prog), opts...)
		return err
	})
	if err != nil {
		return "", err
	}
	e.log.Debug("engine: submitted task %s (%s)", ent.id, ent.name)
	return ent.id, nil
}

// SubmitJob submits a configured job's script.
func (e *Engine) SubmitJob(ctx context.Context, j config.Job) (string, error) {
	return e.Submit(ctx, Submission{
		Path:     j.Script,
		Name:     j.Name,
		Priority: j.Priority,
		Timeout:  j.Timeout,
	})
}

func (e *Engine) compile(sub Submission) (*goja.Program, error) {
	switch {
	case sub.Source != "":
		name := sub.Name
		if name == "" {
			name = "<submitted>"
		}
		prog, err := goja.Compile(name, sub.Source, false)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		return prog, nil
	case sub.Path != "":
		prog, err := jsbind.LoadProgram(e.fs, sub.Path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", sub.Path, err)
		}
		return prog, nil
	}
	return nil, ErrNoScript
}

// Cancel removes a submitted task, or its pending continuation.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	return e.do(ctx, func(*goja.Runtime) error {
		ent, ok := e.tasks[id]
		if !ok || !ent.task.Pending() {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		e.sched.Cancel(ent.task)
		return nil
	})
}

// Stats returns the scheduler counters.
func (e *Engine) Stats(ctx context.Context) (sched.Stats, error) {
	var st sched.Stats
	err := e.do(ctx, func(*goja.Runtime) error {
		st = e.sched.Stats()
		return nil
	})
	return st, err
}

// Status is a snapshot of the scheduler state.
type Status struct {
	Stats  sched.Stats `json:"stats"`
	Paused bool        `json:"paused"`
	// Budget is the frame budget of a frame host, zero otherwise.
	Budget time.Duration `json:"budget"`
	Frames int           `json:"frames"`
	Host   string        `json:"host"`
}

// Status returns the scheduler state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	err := e.do(ctx, func(*goja.Runtime) error {
		st.Stats = e.sched.Stats()
		st.Paused = e.sched.Paused()
		st.Host = config.HostTimer
		if fh, ok := e.host.(*frameloop.FrameHost); ok {
			st.Host = config.HostFrame
			st.Budget = fh.Budget()
			st.Frames = fh.Frames()
		}
		return nil
	})
	return st, err
}

// Pause stops flushing without dropping queued tasks.
func (e *Engine) Pause(ctx context.Context) error {
	return e.do(ctx, func(*goja.Runtime) error {
		e.sched.Pause()
		return nil
	})
}

// Resume undoes Pause.
func (e *Engine) Resume(ctx context.Context) error {
	return e.do(ctx, func(*goja.Runtime) error {
		e.sched.Continue()
		return nil
	})
}

// Eval runs src on the loop outside of the scheduler, typically to let a
// script schedule work through the scheduler global.
func (e *Engine) Eval(ctx context.Context, name, src string) error {
	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}
	return e.do(ctx, func(vm *goja.Runtime) error {
		_, err := vm.RunProgram(prog)
		return err
	})
}

// Idle blocks until no task is pending, polling every interval.
func (e *Engine) Idle(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		st, err := e.Stats(ctx)
		if err != nil {
			return err
		}
		if st.Pending == 0 {
			return nil
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TaskName returns the submission name of the scheduler task with the given
// id. It must be called on the loop goroutine, which is where hooks run.
func (e *Engine) TaskName(id uint64) string {
	if ent, ok := e.byTask[id]; ok {
		return ent.name
	}
	return ""
}

// Close stops the event loop. Timers still pending are abandoned.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.done)
	e.mu.Unlock()
	e.loop.Stop()
	return nil
}
