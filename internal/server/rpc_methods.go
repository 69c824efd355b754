package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/warpdl/warpsched/common"
	"github.com/warpdl/warpsched/internal/engine"
	"github.com/warpdl/warpsched/internal/trace"
	"github.com/warpdl/warpsched/pkg/logger"
	"github.com/warpdl/warpsched/pkg/sched"
)

// Custom JSON-RPC error codes.
const (
	codeTaskNotFound  = jrpc2.Code(-32001)
	codeEngineClosed  = jrpc2.Code(-32002)
	codeTraceDisabled = jrpc2.Code(-32003)
	codeUnauthorized  = jrpc2.Code(-32600)
	codeInvalidParams = jrpc2.Code(-32602)
)

const (
	defaultTraceLimit = 50
	maxTraceLimit     = 1000
	defaultReadLimit  = 1 << 20
)

// Scheduler is the part of the engine the RPC methods drive.
type Scheduler interface {
	Submit(ctx context.Context, sub engine.Submission) (string, error)
	Cancel(ctx context.Context, id string) error
	Status(ctx context.Context) (engine.Status, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// TraceSource serves trace.recent.
type TraceSource interface {
	Recent(ctx context.Context, limit int) ([]trace.Event, error)
}

// RPCConfig holds configuration for the JSON-RPC endpoint.
type RPCConfig struct {
	Secret    string // Auth token (required -- empty means every request is rejected)
	Version   string
	Commit    string
	BuildType string
	// InsecureOrigins disables the WebSocket origin check.
	InsecureOrigins bool
}

// RPCServer holds the method table and serves it over HTTP and WebSocket.
type RPCServer struct {
	methods  handler.Map
	bridge   jhttp.Bridge
	notifier *RPCNotifier
	log      logger.Logger

	secret          string
	version         string
	commit          string
	buildType       string
	insecureOrigins bool
	readLimit       int64

	sched Scheduler
	trace TraceSource
}

// NewRPCServer creates the method table. tr may be nil when tracing is off.
func NewRPCServer(cfg *RPCConfig, s Scheduler, tr TraceSource, l logger.Logger) *RPCServer {
	if l == nil {
		l = logger.NewNopLogger()
	}
	rs := &RPCServer{
		notifier:        NewRPCNotifier(l),
		log:             l,
		secret:          cfg.Secret,
		version:         cfg.Version,
		commit:          cfg.Commit,
		buildType:       cfg.BuildType,
		insecureOrigins: cfg.InsecureOrigins,
		readLimit:       defaultReadLimit,
		sched:           s,
		trace:           tr,
	}

	rs.methods = handler.Map{
		common.MethodGetVersion:      handler.New(rs.systemGetVersion),
		common.MethodTaskSubmit:      handler.New(rs.taskSubmit),
		common.MethodTaskCancel:      handler.New(rs.taskCancel),
		common.MethodSchedulerStats:  handler.New(rs.schedulerStats),
		common.MethodSchedulerPause:  handler.New(rs.schedulerPause),
		common.MethodSchedulerResume: handler.New(rs.schedulerResume),
		common.MethodTraceRecent:     handler.New(rs.traceRecent),
	}
	rs.bridge = jhttp.NewBridge(rs.methods, nil)
	return rs
}

// Handler serves the HTTP bridge and the WebSocket endpoint behind the
// bearer token check.
func (rs *RPCServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(common.RPCPath, requireToken(rs.secret, rs.bridge))
	mux.Handle(common.RPCWebSocketPath, requireToken(rs.secret, http.HandlerFunc(rs.serveWS)))
	return mux
}

// Notifier returns the broadcaster of WebSocket push notifications.
func (rs *RPCServer) Notifier() *RPCNotifier {
	return rs.notifier
}

func (rs *RPCServer) Close() error {
	return rs.bridge.Close()
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*common.VersionResult, error) {
	return &common.VersionResult{
		Version:   rs.version,
		Commit:    rs.commit,
		BuildType: rs.buildType,
	}, nil
}

func (rs *RPCServer) taskSubmit(ctx context.Context, p *common.SubmitParams) (*common.SubmitResult, error) {
	if (p.Script == "") == (p.Path == "") {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "exactly one of script and path is required"}
	}
	sub := engine.Submission{
		Source:   p.Script,
		Path:     p.Path,
		Name:     p.Name,
		Priority: sched.PriorityNormal,
	}
	if p.Priority != "" {
		prio, err := sched.ParsePriority(p.Priority)
		if err != nil {
			return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
		}
		sub.Priority = prio
	}
	if p.TimeoutMs != nil {
		d := time.Duration(*p.TimeoutMs) * time.Millisecond
		sub.Timeout = &d
	}
	id, err := rs.sched.Submit(ctx, sub)
	if err != nil {
		return nil, rs.mapError(err, codeInvalidParams)
	}
	return &common.SubmitResult{ID: id}, nil
}

func (rs *RPCServer) taskCancel(ctx context.Context, p *common.TaskIDParam) (*common.EmptyResult, error) {
	if p.ID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: id"}
	}
	if err := rs.sched.Cancel(ctx, p.ID); err != nil {
		return nil, rs.mapError(err, codeTaskNotFound)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) schedulerStats(ctx context.Context) (*common.StatusResult, error) {
	st, err := rs.sched.Status(ctx)
	if err != nil {
		return nil, rs.mapError(err, 0)
	}
	return &common.StatusResult{
		Stats:  st.Stats,
		Paused: st.Paused,
		Host:   st.Host,
		Budget: st.Budget,
		Frames: st.Frames,
	}, nil
}

func (rs *RPCServer) schedulerPause(ctx context.Context) (*common.EmptyResult, error) {
	if err := rs.sched.Pause(ctx); err != nil {
		return nil, rs.mapError(err, 0)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) schedulerResume(ctx context.Context) (*common.EmptyResult, error) {
	if err := rs.sched.Resume(ctx); err != nil {
		return nil, rs.mapError(err, 0)
	}
	return &common.EmptyResult{}, nil
}

func (rs *RPCServer) traceRecent(ctx context.Context, p *common.TraceParams) (*common.TraceResult, error) {
	if rs.trace == nil {
		return nil, &jrpc2.Error{Code: codeTraceDisabled, Message: "tracing is disabled"}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultTraceLimit
	}
	if limit > maxTraceLimit {
		limit = maxTraceLimit
	}
	events, err := rs.trace.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	res := &common.TraceResult{Events: make([]common.TraceEntry, 0, len(events))}
	for _, ev := range events {
		res.Events = append(res.Events, common.TraceEntry{
			Seq:        ev.Seq,
			TaskID:     ev.TaskID,
			Name:       ev.Name,
			Kind:       string(ev.Kind),
			Priority:   ev.Priority.String(),
			At:         ev.At,
			Elapsed:    ev.Elapsed,
			DidTimeout: ev.DidTimeout,
			Error:      ev.Error,
		})
	}
	return res, nil
}

// mapError converts engine errors to JSON-RPC errors. fallback is used for
// errors without a dedicated code; zero passes them through unchanged.
func (rs *RPCServer) mapError(err error, fallback jrpc2.Code) error {
	switch {
	case errors.Is(err, engine.ErrClosed):
		return &jrpc2.Error{Code: codeEngineClosed, Message: err.Error()}
	case errors.Is(err, engine.ErrTaskNotFound):
		return &jrpc2.Error{Code: codeTaskNotFound, Message: err.Error()}
	case fallback != 0:
		return &jrpc2.Error{Code: fallback, Message: err.Error()}
	}
	return err
}
