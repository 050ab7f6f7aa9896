package inscription

import (
	"context"
	"sync"
)

// Attempt is an inscription running as its own task. Polling may take
// minutes; callers keep serving other requests and collect the outcome with
// Wait or Done.
type Attempt struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	state  State
	result *Result
	err    error
}

// Start launches an inscription attempt in a new goroutine. Cancelling ctx
// or calling Cancel aborts polling with common.ErrCancelled.
func (s *Service) Start(ctx context.Context, req Request) *Attempt {
	ctx, cancel := context.WithCancel(ctx)
	a := &Attempt{
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateInit,
	}

	go func() {
		defer close(a.done)
		defer cancel()

		res, err := s.run(ctx, req, a.setState)

		a.mu.Lock()
		a.result, a.err = res, err
		a.mu.Unlock()
	}()

	return a
}

func (a *Attempt) setState(st State) {
	a.mu.Lock()
	a.state = st
	a.mu.Unlock()
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) Cancel() {
	a.cancel()
}

func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the attempt finishes or ctx is done. Giving up on ctx
// does not cancel the attempt.
func (a *Attempt) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-a.done:
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.result, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
