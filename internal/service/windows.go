//go:build windows

// Package service runs the warpsched daemon under the Windows Service
// Control Manager.
package service

import (
	"context"
	"time"

	"golang.org/x/sys/windows/svc"

	"github.com/warpdl/warpsched/pkg/logger"
)

const acceptedCommands = svc.AcceptStop | svc.AcceptShutdown | svc.AcceptPauseAndContinue

// Runner is the daemon lifecycle the handler drives. *daemon.Runner
// implements it.
type Runner interface {
	Start(ctx context.Context) error
	Shutdown() error
	IsRunning() bool
}

// Pauser maps SCM pause and continue onto the scheduler. *engine.Engine
// implements it.
type Pauser interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// WindowsHandler implements svc.Handler.
type WindowsHandler struct {
	runner Runner
	pauser Pauser
	log    logger.Logger
}

// NewWindowsHandler creates a handler. pauser may be nil, in which case
// pause requests are refused.
func NewWindowsHandler(runner Runner, pauser Pauser, l logger.Logger) *WindowsHandler {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &WindowsHandler{runner: runner, pauser: pauser, log: l}
}

// Run hands the process to the SCM until the service stops.
func Run(name string, h *WindowsHandler) error {
	return svc.Run(name, h)
}

// IsWindowsService reports whether the process was started by the SCM.
func IsWindowsService() (bool, error) {
	return svc.IsWindowsService()
}

// Execute drives StartPending -> Running <-> Paused -> StopPending -> Stopped.
// Start arguments are ignored; the daemon reads its config file.
func (h *WindowsHandler) Execute(_ []string, requests <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	status <- svc.Status{State: svc.StartPending}
	h.log.Info("service starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startErrCh := make(chan error, 1)
	go func() {
		startErrCh <- h.runner.Start(ctx)
	}()

	// Bind failures surface immediately.
	select {
	case err := <-startErrCh:
		if err != nil {
			h.log.Error("service failed to start: %v", err)
			status <- svc.Status{State: svc.Stopped}
			return false, 1
		}
	case <-time.After(50 * time.Millisecond):
	}

	status <- svc.Status{State: svc.Running, Accepts: acceptedCommands}
	h.log.Info("service running")
	return h.processControlRequests(ctx, requests, status)
}

func (h *WindowsHandler) processControlRequests(ctx context.Context, requests <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	state := svc.Running
	for req := range requests {
		switch req.Cmd {
		case svc.Interrogate:
			status <- svc.Status{State: state, Accepts: acceptedCommands}

		case svc.Pause:
			if h.pauser == nil {
				status <- svc.Status{State: state, Accepts: acceptedCommands}
				continue
			}
			status <- svc.Status{State: svc.PausePending, Accepts: acceptedCommands}
			if err := h.pauser.Pause(ctx); err != nil {
				h.log.Warning("service pause: %v", err)
			} else {
				state = svc.Paused
			}
			status <- svc.Status{State: state, Accepts: acceptedCommands}

		case svc.Continue:
			if h.pauser == nil {
				status <- svc.Status{State: state, Accepts: acceptedCommands}
				continue
			}
			status <- svc.Status{State: svc.ContinuePending, Accepts: acceptedCommands}
			if err := h.pauser.Resume(ctx); err != nil {
				h.log.Warning("service continue: %v", err)
			} else {
				state = svc.Running
			}
			status <- svc.Status{State: state, Accepts: acceptedCommands}

		case svc.Stop, svc.Shutdown:
			return h.handleStopRequest(status)
		}
	}
	return false, 0
}

func (h *WindowsHandler) handleStopRequest(status chan<- svc.Status) (bool, uint32) {
	h.log.Info("service stopping")
	status <- svc.Status{State: svc.StopPending}

	if err := h.runner.Shutdown(); err != nil {
		h.log.Error("service shutdown: %v", err)
		status <- svc.Status{State: svc.Stopped}
		return false, 1
	}

	h.log.Info("service stopped")
	status <- svc.Status{State: svc.Stopped}
	return false, 0
}

// AcceptedCommands returns the commands this handler accepts.
func (h *WindowsHandler) AcceptedCommands() svc.Accepted {
	return acceptedCommands
}
