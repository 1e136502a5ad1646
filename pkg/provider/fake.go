package provider

import (
	"context"
	"sync"
	"time"
)

// FakeResult scripts one outcome of a Fake caller.
type FakeResult struct {
	Resp *Response
	Err  error
}

// Fake is a scripted Caller for tests. Each Call consumes the next scripted
// result; the last result repeats once the script is exhausted. Safe for
// concurrent use.
type Fake struct {
	name  string
	Delay time.Duration

	mu     sync.Mutex
	script []FakeResult
	calls  int
}

// NewFake creates a Fake caller with the given script.
func NewFake(name string, script ...FakeResult) *Fake {
	return &Fake{name: name, script: script}
}

func (f *Fake) Name() string { return f.name }

// Calls returns how many times Call has been invoked.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Call(ctx context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	var res FakeResult
	if idx >= 0 {
		res = f.script[idx]
	}
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, errFromTransport(f.name, ctx.Err())
		}
	}

	if res.Err != nil {
		return nil, res.Err
	}
	if res.Resp == nil {
		return &Response{Content: []byte(`{}`), Model: req.Model}, nil
	}
	resp := *res.Resp
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return &resp, nil
}
