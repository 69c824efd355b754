// Package daemon runs the scheduler as a long-lived service.
// It owns the RPC listener and the cron clock and shuts both down
// gracefully.
package daemon

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/warpdl/warpsched/internal/config"
	"github.com/warpdl/warpsched/internal/cron"
	"github.com/warpdl/warpsched/pkg/logger"
)

// Sentinel errors for the daemon runner.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running daemon.
	ErrAlreadyRunning = errors.New("daemon is already running")

	// ErrNotRunning is returned when Shutdown() is called on a stopped daemon.
	ErrNotRunning = errors.New("daemon is not running")

	// ErrShutdownTimeout is returned when shutdown exceeds the configured timeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

// DefaultShutdownTimeout bounds the RPC server drain when Config leaves it unset.
const DefaultShutdownTimeout = 5 * time.Second

// MaxJobFailures is how many consecutive failed submissions unschedule a job
// until the daemon restarts.
const MaxJobFailures = 3

// Config holds the configuration for the daemon runner.
type Config struct {
	// Listen is the TCP address of the RPC endpoint. Use port 0 for an
	// ephemeral port.
	Listen string

	// Jobs are submitted on their cron schedules while the daemon runs.
	Jobs []config.Job

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// Service is the RPC front end the runner serves.
type Service interface {
	Serve(ctx context.Context, l net.Listener) error
	Shutdown(ctx context.Context) error
}

// JobSubmitter submits cron jobs. *engine.Engine implements it.
type JobSubmitter interface {
	SubmitJob(ctx context.Context, j config.Job) (string, error)
}

// Dependencies holds the external dependencies for the daemon runner.
type Dependencies struct {
	// Service serves RPC on the runner's listener. Required.
	Service Service

	// Jobs receives cron firings. Required when Config.Jobs is not empty.
	Jobs JobSubmitter

	// ListenerFactory creates network listeners.
	// If nil, net.Listen is used.
	ListenerFactory func(network, address string) (net.Listener, error)

	// ShutdownFunc is called during shutdown to clean up resources.
	// If nil, no cleanup function is called.
	ShutdownFunc func() error

	Logger logger.Logger
}

// Runner manages the daemon lifecycle.
type Runner struct {
	config   *Config
	deps     *Dependencies
	log      logger.Logger
	running  bool
	mu       sync.Mutex
	cancel   context.CancelFunc
	listener net.Listener
	done     chan struct{}
	shutdown bool

	jobsMu   sync.Mutex
	cron     *cron.Cron
	failures map[string]int
}

// New creates a new daemon runner with the given configuration and dependencies.
// If config is nil, default values are used.
func New(config *Config, deps *Dependencies) *Runner {
	cfg := applyConfigDefaults(config)
	d := applyDependencyDefaults(deps)

	return &Runner{
		config: cfg,
		deps:   d,
		log:    d.Logger,
	}
}

func applyConfigDefaults(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	if c.Listen == "" {
		c.Listen = config.DefaultListen
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	return c
}

func applyDependencyDefaults(deps *Dependencies) *Dependencies {
	if deps == nil {
		deps = &Dependencies{}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	return deps
}

// Config returns the runner's configuration.
func (r *Runner) Config() *Config {
	return r.config
}

// Addr returns the bound listener address, or nil when not running.
func (r *Runner) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Start serves RPC and fires cron jobs until ctx is canceled, Shutdown is
// called or the service fails. It returns ctx.Err() after a cancellation and
// nil after Shutdown.
func (r *Runner) Start(ctx context.Context) error {
	if r.deps.Service == nil {
		return errors.New("daemon: no service configured")
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}

	ctx, r.cancel = context.WithCancel(ctx)

	// Listen before running=true so a failed bind leaves the runner stopped.
	listener, err := r.deps.ListenerFactory("tcp", r.config.Listen)
	if err != nil {
		r.cancel()
		r.mu.Unlock()
		return err
	}
	r.listener = listener
	r.done = make(chan struct{})
	r.running = true
	r.shutdown = false
	r.mu.Unlock()
	defer close(r.done)

	r.startJobs(ctx)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- r.deps.Service.Serve(ctx, listener)
	}()

	var result error
	select {
	case <-ctx.Done():
		result = ctx.Err()
		r.shutdownService()
		<-serveErr
	case result = <-serveErr:
		if result != nil {
			r.log.Error("daemon: rpc server stopped: %v", result)
		}
	}

	r.cleanupOnStop()
	if errors.Is(result, context.Canceled) && r.stoppedByShutdown() {
		return nil
	}
	return result
}

// startJobs plans every configured job and arms the cron clock. Jobs whose
// expression never fires within a year are logged and skipped.
func (r *Runner) startJobs(ctx context.Context) {
	if len(r.config.Jobs) == 0 || r.deps.Jobs == nil {
		return
	}
	byName := make(map[string]config.Job, len(r.config.Jobs))
	exprs := make(map[string]string, len(r.config.Jobs))
	for _, j := range r.config.Jobs {
		byName[j.Name] = j
		exprs[j.Name] = j.Cron
	}

	c := cron.New(ctx, func(t cron.Trigger) {
		j, ok := byName[t.Job]
		if !ok {
			return
		}
		go r.fire(ctx, j)
	})
	r.jobsMu.Lock()
	r.cron = c
	r.failures = make(map[string]int)
	r.jobsMu.Unlock()

	triggers, rejected := cron.Plan(exprs, time.Now())
	sort.Strings(rejected)
	for _, name := range rejected {
		r.log.Warning("daemon: job %q never fires, skipping", name)
	}
	for _, t := range triggers {
		r.log.Info("daemon: job %q next at %s", t.Job, t.At.Format(time.RFC3339))
		c.Add(t)
	}
}

func (r *Runner) fire(ctx context.Context, j config.Job) {
	id, err := r.deps.Jobs.SubmitJob(ctx, j)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Error("daemon: job %q: %v", j.Name, err)
		r.jobFailed(j.Name)
		return
	}
	r.jobsMu.Lock()
	delete(r.failures, j.Name)
	r.jobsMu.Unlock()
	r.log.Debug("daemon: job %q submitted as %s", j.Name, id)
}

// jobFailed counts a failed submission and unschedules the job once it has
// failed MaxJobFailures times in a row.
func (r *Runner) jobFailed(name string) {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	if r.failures == nil {
		r.failures = make(map[string]int)
	}
	r.failures[name]++
	if r.failures[name] < MaxJobFailures || r.cron == nil {
		return
	}
	delete(r.failures, name)
	r.cron.Remove(name)
	r.log.Warning("daemon: job %q failed %d times in a row, unscheduled", name, MaxJobFailures)
}

func (r *Runner) shutdownService() {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.ShutdownTimeout)
	defer cancel()
	if err := r.deps.Service.Shutdown(ctx); err != nil {
		r.log.Warning("daemon: rpc shutdown: %v", err)
	}
}

// cleanupOnStop performs cleanup when the daemon stops.
func (r *Runner) cleanupOnStop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.running = false
	r.cancel()
	r.closeListener()
}

// closeListener closes the listener if it exists.
// Caller must hold the mutex.
func (r *Runner) closeListener() {
	if r.listener != nil {
		_ = r.listener.Close()
		r.listener = nil
	}
}

func (r *Runner) stoppedByShutdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdown
}

// Shutdown gracefully stops the daemon and waits for Start to return.
// Returns ErrNotRunning if the daemon is not running.
// Returns ErrShutdownTimeout if the shutdown function exceeds the configured timeout.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrNotRunning
	}
	r.shutdown = true
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(r.config.ShutdownTimeout):
		return ErrShutdownTimeout
	}

	return r.executeShutdownFunc()
}

// executeShutdownFunc runs the shutdown function with the configured timeout.
func (r *Runner) executeShutdownFunc() error {
	if r.deps.ShutdownFunc == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		done <- r.deps.ShutdownFunc()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.config.ShutdownTimeout):
		return ErrShutdownTimeout
	}
}

// IsRunning returns true if the daemon is currently running.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
