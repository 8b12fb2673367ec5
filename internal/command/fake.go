package command

import (
	"context"
	"sync"
)

// Call records one invocation seen by a Recorder.
type Call struct {
	Name string
	Args []string
}

// Recorder is a Runner for tests. It records calls and delegates to Func
// when set, so a test can write the files the real tool would produce.
type Recorder struct {
	Func func(ctx context.Context, name string, args []string) (Result, error)

	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Run(ctx context.Context, name string, args ...string) (Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Name: name, Args: append([]string(nil), args...)})
	r.mu.Unlock()

	if r.Func == nil {
		return Result{}, nil
	}
	return r.Func(ctx, name, args)
}

// Calls returns the invocations recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}
