// Package schedcli is a typed JSON-RPC client for the warpsched daemon.
package schedcli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"

	"github.com/warpdl/warpsched/common"
)

// Errors mapped from daemon error codes.
var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrEngineClosed  = errors.New("engine closed")
	ErrTraceDisabled = errors.New("trace disabled")
)

const (
	codeTaskNotFound  = jrpc2.Code(-32001)
	codeEngineClosed  = jrpc2.Code(-32002)
	codeTraceDisabled = jrpc2.Code(-32003)
)

const defaultDialTimeout = 5 * time.Second

// Options configures Dial.
type Options struct {
	// Addr is the daemon's host:port, or a ws:// or http:// URL.
	Addr string
	// Secret is sent as a bearer token.
	Secret string
	// OnEvent receives task.* push notifications. It runs on the client's
	// read goroutine and must not call back into the Client.
	OnEvent func(method string, ev common.TaskEvent)
	// DialTimeout bounds the WebSocket handshake. Zero means 5s.
	DialTimeout time.Duration
}

type Client struct {
	rpc    *jrpc2.Client
	conn   *cws.Conn
	cancel context.CancelFunc
}

// Dial connects to the daemon's WebSocket endpoint.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Addr == "" {
		opts.Addr = common.DefaultAddr
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	dctx, dcancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer dcancel()

	header := http.Header{}
	if opts.Secret != "" {
		header.Set("Authorization", "Bearer "+opts.Secret)
	}
	conn, resp, err := cws.Dial(dctx, wsURL(opts.Addr), &cws.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("error connecting to daemon: unauthorized (check %s)", common.RPCSecretEnv)
		}
		return nil, fmt.Errorf("error connecting to daemon: %w", err)
	}

	// The channel outlives the dial context.
	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{conn: conn, cancel: cancel}
	c.rpc = jrpc2.NewClient(&wsChannel{conn: conn, ctx: cctx}, &jrpc2.ClientOptions{
		OnNotify: func(req *jrpc2.Request) {
			if opts.OnEvent == nil {
				return
			}
			var ev common.TaskEvent
			if err := req.UnmarshalParams(&ev); err != nil {
				return
			}
			opts.OnEvent(req.Method(), ev)
		},
	})
	return c, nil
}

func wsURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, "http://"):
		addr = "ws://" + strings.TrimPrefix(addr, "http://")
	case strings.HasPrefix(addr, "https://"):
		addr = "wss://" + strings.TrimPrefix(addr, "https://")
	case !strings.Contains(addr, "://"):
		addr = "ws://" + addr
	}
	if !strings.HasSuffix(addr, common.RPCWebSocketPath) {
		addr = strings.TrimSuffix(addr, "/") + common.RPCWebSocketPath
	}
	return addr
}

// Close ends the session.
func (c *Client) Close() error {
	err := c.rpc.Close()
	c.cancel()
	return err
}

func call[T any](ctx context.Context, c *Client, method string, params any) (*T, error) {
	var res T
	if err := c.rpc.CallResult(ctx, method, params, &res); err != nil {
		return nil, mapError(method, err)
	}
	return &res, nil
}

func mapError(method string, err error) error {
	var jerr *jrpc2.Error
	if !errors.As(err, &jerr) {
		return fmt.Errorf("failed to invoke %s: %w", method, err)
	}
	switch jerr.Code {
	case codeTaskNotFound:
		return fmt.Errorf("%w: %s", ErrTaskNotFound, jerr.Message)
	case codeEngineClosed:
		return ErrEngineClosed
	case codeTraceDisabled:
		return ErrTraceDisabled
	}
	return fmt.Errorf("%s: %w", method, err)
}
