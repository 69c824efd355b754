package schedcli

import (
	"context"
	"time"

	"github.com/warpdl/warpsched/common"
)

func (c *Client) Version(ctx context.Context) (*common.VersionResult, error) {
	return call[common.VersionResult](ctx, c, common.MethodGetVersion, nil)
}

// SubmitOpts are the optional fields of a submission.
type SubmitOpts struct {
	Name     string
	Priority string
	// Timeout overrides the priority's timeout when positive.
	Timeout time.Duration
}

// Submit sends script source to run as a task.
func (c *Client) Submit(ctx context.Context, script string, opts *SubmitOpts) (string, error) {
	return c.submit(ctx, common.SubmitParams{Script: script}, opts)
}

// SubmitPath runs a script from the daemon's script directory.
func (c *Client) SubmitPath(ctx context.Context, path string, opts *SubmitOpts) (string, error) {
	return c.submit(ctx, common.SubmitParams{Path: path}, opts)
}

func (c *Client) submit(ctx context.Context, p common.SubmitParams, opts *SubmitOpts) (string, error) {
	if opts != nil {
		p.Name = opts.Name
		p.Priority = opts.Priority
		if opts.Timeout > 0 {
			ms := opts.Timeout.Milliseconds()
			p.TimeoutMs = &ms
		}
	}
	res, err := call[common.SubmitResult](ctx, c, common.MethodTaskSubmit, &p)
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *Client) Cancel(ctx context.Context, id string) error {
	_, err := call[common.EmptyResult](ctx, c, common.MethodTaskCancel, &common.TaskIDParam{ID: id})
	return err
}

func (c *Client) Stats(ctx context.Context) (*common.StatusResult, error) {
	return call[common.StatusResult](ctx, c, common.MethodSchedulerStats, nil)
}

func (c *Client) Pause(ctx context.Context) error {
	_, err := call[common.EmptyResult](ctx, c, common.MethodSchedulerPause, nil)
	return err
}

func (c *Client) Resume(ctx context.Context) error {
	_, err := call[common.EmptyResult](ctx, c, common.MethodSchedulerResume, nil)
	return err
}

// Trace returns up to limit recent task events, newest first. A zero limit
// uses the daemon's default.
func (c *Client) Trace(ctx context.Context, limit int) ([]common.TraceEntry, error) {
	res, err := call[common.TraceResult](ctx, c, common.MethodTraceRecent, &common.TraceParams{Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Events, nil
}
