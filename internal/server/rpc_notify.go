package server

import (
	"context"
	"sync"

	"github.com/creachadair/jrpc2"

	"github.com/warpdl/warpsched/common"
	"github.com/warpdl/warpsched/internal/engine"
	"github.com/warpdl/warpsched/pkg/logger"
)

// Push notification methods.
const (
	NotifyTaskStarted   = common.NotifyTaskStarted
	NotifyTaskCompleted = common.NotifyTaskCompleted
	NotifyTaskFailed    = common.NotifyTaskFailed
	NotifyTaskCanceled  = common.NotifyTaskCanceled
)

// RPCNotifier maintains the set of connected jrpc2 WebSocket servers and
// broadcasts push notifications to all of them.
type RPCNotifier struct {
	mu      sync.RWMutex
	servers map[*jrpc2.Server]struct{}
	log     logger.Logger

	queue   chan engine.Event
	dropped uint64
}

// NewRPCNotifier creates a notifier. Call Run to deliver queued events.
func NewRPCNotifier(l logger.Logger) *RPCNotifier {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &RPCNotifier{
		servers: make(map[*jrpc2.Server]struct{}),
		log:     l,
		queue:   make(chan engine.Event, 256),
	}
}

func (n *RPCNotifier) Register(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.servers[srv] = struct{}{}
}

func (n *RPCNotifier) Unregister(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.servers, srv)
}

// Broadcast sends a push notification to all registered servers. Servers
// that fail to receive it are unregistered.
func (n *RPCNotifier) Broadcast(method string, params any) {
	n.mu.RLock()
	servers := make([]*jrpc2.Server, 0, len(n.servers))
	for srv := range n.servers {
		servers = append(servers, srv)
	}
	n.mu.RUnlock()

	var failed []*jrpc2.Server
	for _, srv := range servers {
		if err := srv.Notify(context.Background(), method, params); err != nil {
			n.log.Warning("rpc: push %s failed: %v", method, err)
			failed = append(failed, srv)
		}
	}

	if len(failed) > 0 {
		n.mu.Lock()
		for _, srv := range failed {
			delete(n.servers, srv)
		}
		n.mu.Unlock()
	}
}

// Publish queues a task event without blocking. It is meant to be the
// engine's OnEvent callback. Events are dropped when the queue is full.
func (n *RPCNotifier) Publish(ev engine.Event) {
	select {
	case n.queue <- ev:
	default:
		n.mu.Lock()
		n.dropped++
		n.mu.Unlock()
	}
}

// Run broadcasts published events until ctx is done.
func (n *RPCNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			n.Broadcast(notifyMethod(ev.Kind), TaskNotification(ev))
		}
	}
}

func notifyMethod(k engine.EventKind) string {
	switch k {
	case engine.EventStarted:
		return NotifyTaskStarted
	case engine.EventFailed:
		return NotifyTaskFailed
	case engine.EventCanceled:
		return NotifyTaskCanceled
	default:
		return NotifyTaskCompleted
	}
}

// Count returns the number of registered servers.
func (n *RPCNotifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.servers)
}

// Dropped returns how many events Publish discarded.
func (n *RPCNotifier) Dropped() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dropped
}

// TaskNotification is the params object of every task.* notification.
type TaskNotification engine.Event
