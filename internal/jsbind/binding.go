// Package jsbind exposes a sched.Scheduler to JavaScript running in goja.
//
// Scripts see a global `scheduler` object:
//
//	const h = scheduler.scheduleCallback(scheduler.NormalPriority, function work() {
//		while (items.length > 0) {
//			process(items.shift());
//			if (scheduler.shouldYield()) return work;
//		}
//	}, {timeout: 1000});
//	scheduler.cancelCallback(h);
//
// A callback that returns a function asks for that function to run as its
// continuation. A thrown exception becomes the error of the failing task.
package jsbind

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/warpdl/warpsched/pkg/logger"
	"github.com/warpdl/warpsched/pkg/sched"
)

// ErrNotFunction is returned when a value that should be callable is not.
var ErrNotFunction = errors.New("jsbind: value is not a function")

// GlobalName is the name of the global scheduler object.
const GlobalName = "scheduler"

// Binding connects one goja runtime to one scheduler. Both must be used
// from the same goroutine.
type Binding struct {
	vm    *goja.Runtime
	s     *sched.Scheduler
	log   logger.Logger
	start time.Time

	taskSym *goja.Symbol
}

// New creates a binding. Call Install to make it visible to scripts.
func New(vm *goja.Runtime, s *sched.Scheduler, l logger.Logger) *Binding {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Binding{
		vm:      vm,
		s:       s,
		log:     l,
		start:   s.Now(),
		taskSym: goja.NewSymbol("scheduler.task"),
	}
}

// Install defines the global scheduler object on the runtime.
func (b *Binding) Install() error {
	obj := b.vm.NewObject()
	for _, p := range sched.Priorities {
		if err := obj.Set(priorityConstName(p), int(p)); err != nil {
			return err
		}
	}
	fns := map[string]func(goja.FunctionCall) goja.Value{
		"scheduleCallback":        b.jsScheduleCallback,
		"cancelCallback":          b.jsCancelCallback,
		"runWithPriority":         b.jsRunWithPriority,
		"next":                    b.jsNext,
		"wrapCallback":            b.jsWrapCallback,
		"getCurrentPriorityLevel": b.jsGetCurrentPriorityLevel,
		"shouldYield":             b.jsShouldYield,
		"now":                     b.jsNow,
		"pauseExecution":          b.jsPauseExecution,
		"continueExecution":       b.jsContinueExecution,
		"getFirstCallbackNode":    b.jsGetFirstCallbackNode,
	}
	for name, fn := range fns {
		if err := obj.Set(name, fn); err != nil {
			return err
		}
	}
	return b.vm.Set(GlobalName, obj)
}

func priorityConstName(p sched.Priority) string {
	switch p {
	case sched.PriorityImmediate:
		return "ImmediatePriority"
	case sched.PriorityUserBlocking:
		return "UserBlockingPriority"
	case sched.PriorityLow:
		return "LowPriority"
	case sched.PriorityIdle:
		return "IdlePriority"
	default:
		return "NormalPriority"
	}
}

// Callback adapts a JS function to a sched.Callback. A returned function
// becomes the continuation.
func (b *Binding) Callback(fn goja.Callable) sched.Callback {
	return func() (sched.Outcome, error) {
		ret, err := fn(goja.Undefined())
		if err != nil {
			return sched.Done(), err
		}
		return b.outcome(ret), nil
	}
}

// ProgramCallback runs a compiled script as a task. A script whose
// completion value is a function continues with it.
func (b *Binding) ProgramCallback(prog *goja.Program) sched.Callback {
	return func() (sched.Outcome, error) {
		ret, err := b.vm.RunProgram(prog)
		if err != nil {
			return sched.Done(), err
		}
		return b.outcome(ret), nil
	}
}

func (b *Binding) outcome(ret goja.Value) sched.Outcome {
	if next, ok := goja.AssertFunction(ret); ok {
		return sched.Continue(b.Callback(next))
	}
	return sched.Done()
}

// ScheduleValue schedules a JS value that must be a function.
func (b *Binding) ScheduleValue(v goja.Value, opts ...sched.ScheduleOption) (*sched.Task, error) {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotFunction, describe(v))
	}
	return b.s.Schedule(b.Callback(fn), opts...)
}

func describe(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	return v.ExportType().String()
}

// throw raises err as a JS exception. Exceptions coming back from JS keep
// their original value.
func (b *Binding) throw(err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex.Value())
	}
	if errors.Is(err, ErrNotFunction) {
		panic(b.vm.NewTypeError(err.Error()))
	}
	panic(b.vm.NewGoError(err))
}

func (b *Binding) mustFunction(v goja.Value) goja.Callable {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		b.throw(fmt.Errorf("%w: got %s", ErrNotFunction, describe(v)))
	}
	return fn
}

func (b *Binding) priorityArg(v goja.Value) sched.Priority {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return b.s.CurrentPriority()
	}
	return sched.Priority(v.ToInteger())
}

// scheduleCallback(priority, fn, {timeout})
func (b *Binding) jsScheduleCallback(call goja.FunctionCall) goja.Value {
	opts := []sched.ScheduleOption{sched.WithPriority(b.priorityArg(call.Argument(0)))}
	if o := call.Argument(2); !goja.IsUndefined(o) && !goja.IsNull(o) {
		if timeout := o.ToObject(b.vm).Get("timeout"); timeout != nil && !goja.IsUndefined(timeout) {
			ms := timeout.ToFloat()
			opts = append(opts, sched.WithTimeout(time.Duration(ms*float64(time.Millisecond))))
		}
	}
	task, err := b.ScheduleValue(call.Argument(1), opts...)
	if err != nil {
		b.throw(err)
	}
	return b.handle(task)
}

func (b *Binding) jsCancelCallback(call goja.FunctionCall) goja.Value {
	if task := b.taskOf(call.Argument(0)); task != nil {
		b.s.Cancel(task)
	}
	return goja.Undefined()
}

func (b *Binding) jsRunWithPriority(call goja.FunctionCall) goja.Value {
	p := sched.Priority(call.Argument(0).ToInteger())
	fn := b.mustFunction(call.Argument(1))
	var ret goja.Value
	err := b.s.RunWithPriority(p, func() error {
		v, err := fn(goja.Undefined())
		ret = v
		return err
	})
	if err != nil {
		b.throw(err)
	}
	return ret
}

func (b *Binding) jsNext(call goja.FunctionCall) goja.Value {
	fn := b.mustFunction(call.Argument(0))
	var ret goja.Value
	err := b.s.Next(func() error {
		v, err := fn(goja.Undefined())
		ret = v
		return err
	})
	if err != nil {
		b.throw(err)
	}
	return ret
}

func (b *Binding) jsWrapCallback(call goja.FunctionCall) goja.Value {
	fn := b.mustFunction(call.Argument(0))
	var (
		this goja.Value
		args []goja.Value
		ret  goja.Value
	)
	run := b.s.WrapCallback(func() error {
		v, err := fn(this, args...)
		ret = v
		return err
	})
	return b.vm.ToValue(func(c goja.FunctionCall) goja.Value {
		prevThis, prevArgs := this, args
		this, args = c.This, c.Arguments
		defer func() { this, args = prevThis, prevArgs }()
		if err := run(); err != nil {
			b.throw(err)
		}
		return ret
	})
}

func (b *Binding) jsGetCurrentPriorityLevel(goja.FunctionCall) goja.Value {
	return b.vm.ToValue(int(b.s.CurrentPriority()))
}

func (b *Binding) jsShouldYield(goja.FunctionCall) goja.Value {
	return b.vm.ToValue(b.s.ShouldYield())
}

func (b *Binding) jsNow(goja.FunctionCall) goja.Value {
	return b.vm.ToValue(b.millis(b.s.Now()))
}

func (b *Binding) jsPauseExecution(goja.FunctionCall) goja.Value {
	b.s.Pause()
	return goja.Undefined()
}

func (b *Binding) jsContinueExecution(goja.FunctionCall) goja.Value {
	b.s.Continue()
	return goja.Undefined()
}

func (b *Binding) jsGetFirstCallbackNode(goja.FunctionCall) goja.Value {
	task := b.s.FirstTask()
	if task == nil {
		return goja.Null()
	}
	return b.handle(task)
}

// millis converts t to milliseconds since the binding was created.
func (b *Binding) millis(t time.Time) float64 {
	return float64(t.Sub(b.start)) / float64(time.Millisecond)
}

// handle builds the JS object returned for a task. The task itself is kept
// under a private symbol.
func (b *Binding) handle(task *sched.Task) goja.Value {
	obj := b.vm.NewObject()
	_ = obj.Set("id", task.ID())
	_ = obj.Set("priorityLevel", int(task.Priority()))
	_ = obj.Set("expirationTime", b.millis(task.Expiration()))
	_ = obj.SetSymbol(b.taskSym, b.vm.ToValue(task))
	return obj
}

func (b *Binding) taskOf(v goja.Value) *sched.Task {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	inner := obj.GetSymbol(b.taskSym)
	if inner == nil || goja.IsUndefined(inner) {
		return nil
	}
	task, _ := inner.Export().(*sched.Task)
	return task
}
