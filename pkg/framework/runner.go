package framework

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// Runner runs multiple Runnables and collect errors.
type Runner struct {
	Context context.Context

	cancel  func()
	count   int
	wg      sync.WaitGroup
	errs    AggregatedError
	errLock sync.Mutex
	exitCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
	exitOne sync.Once
}

// ErrForcedExit is returned by Wait when exit was forced before all
// Runnables stopped.
var ErrForcedExit = errors.New("forced exit")

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a context derived from ctx.
// Cancel stops all Runnables spawned by the runner.
func NewRunnerWith(ctx context.Context) *Runner {
	r := &Runner{
		exitCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	r.Context, r.cancel = context.WithCancel(ctx)
	return r
}

// HandleSignals handles CtrlC and SIGTERM from the system.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		r.cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		r.Exit()
	}()
	return r
}

// Exit cancels the Runnables and makes Wait return ErrForcedExit without
// waiting for them.
func (r *Runner) Exit() {
	r.cancel()
	r.exitOne.Do(func() {
		close(r.exitCh)
	})
}

// Go spawns Runnables with the runner context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		var name string
		if named, ok := runner.(Named); ok {
			name = named.Name()
		} else {
			name = strconv.Itoa(r.count)
		}
		r.count++
		r.wg.Add(1)
		glog.V(4).Infof("start Runner[%s]", name)
		go func(runner Runnable, name string) {
			defer r.wg.Done()
			glog.V(4).Infof("Runner[%s] started", name)
			err := runner.Run(r.Context)
			glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.errLock.Lock()
				r.errs.Add(err)
				r.errLock.Unlock()
			}
		}(runner, name)
	}
	return r
}

// Cancel cancels the context shared by all Runnables.
func (r *Runner) Cancel() {
	r.cancel()
}

// Done is closed once all spawned Runnables have returned.
// It must be used after all Go calls.
func (r *Runner) Done() <-chan struct{} {
	r.once.Do(func() {
		go func() {
			r.wg.Wait()
			close(r.doneCh)
		}()
	})
	return r.doneCh
}

// Wait waits until all Runnables stops and aggregate errors.
func (r *Runner) Wait() error {
	select {
	case <-r.exitCh:
		return ErrForcedExit
	case <-r.Done():
	}
	return r.Err()
}

// Err returns the aggregated errors of Runnables stopped so far.
func (r *Runner) Err() error {
	r.errLock.Lock()
	defer r.errLock.Unlock()
	if len(r.errs.Errors) == 0 {
		return nil
	}
	return &AggregatedError{Errors: append([]error(nil), r.errs.Errors...)}
}

// RunWithContextCancel runs a func with doesn't accept a context.
// cancel is called only when the context is canceled, and it must make fn
// return, as RunWithContextCancel waits for it.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	return RunWithContextAbort(ctx, func() bool {
		if onCancel != nil {
			onCancel()
		}
		return true
	}, fn)
}

// RunWithContextAbort is like RunWithContextCancel, but onAbort reports
// whether fn was interrupted. If not, fn is left running in background and
// the context error is returned right away.
func RunWithContextAbort(ctx context.Context, onAbort func() bool, fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onAbort() {
			<-errCh
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// RunWithContext is simplified form with no cancel callback.
func RunWithContext(ctx context.Context, fn func() error) error {
	return RunWithContextCancel(ctx, nil, fn)
}
