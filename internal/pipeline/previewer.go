package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Previewer keeps the latest composite for a changing input. Each Submit
// bumps a generation counter and restarts a debounce timer; when a run
// finishes its result is applied only if no newer Submit happened meanwhile.
// Runs are never cancelled, stale results are dropped instead.
type Previewer struct {
	runner Runner
	delay  time.Duration
	log    *slog.Logger

	// gen is the generation of the most recent Submit.
	gen atomic.Uint64

	mu       sync.Mutex
	timer    *time.Timer
	latest   *Result
	lastErr  error
	closed   bool
	onResult func(*Result)
	inflight sync.WaitGroup
}

// PreviewOption configures a Previewer.
type PreviewOption func(*Previewer)

// OnResult registers fn to be called after a fresh result is applied.
func OnResult(fn func(*Result)) PreviewOption {
	return func(p *Previewer) { p.onResult = fn }
}

// WithPreviewLogger sets the logger.
func WithPreviewLogger(log *slog.Logger) PreviewOption {
	return func(p *Previewer) { p.log = log }
}

// NewPreviewer returns a Previewer that waits delay after the last Submit
// before running.
func NewPreviewer(r Runner, delay time.Duration, opts ...PreviewOption) *Previewer {
	p := &Previewer{runner: r, delay: delay, log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit schedules req and returns its generation. A pending, not yet
// started request is replaced.
func (p *Previewer) Submit(req Request) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	gen := p.gen.Add(1)
	if p.closed {
		return gen
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.delay, func() { p.run(gen, req) })
	return gen
}

func (p *Previewer) run(gen uint64, req Request) {
	p.mu.Lock()
	if p.closed || p.gen.Load() != gen {
		p.mu.Unlock()
		return
	}
	p.inflight.Add(1)
	p.mu.Unlock()
	defer p.inflight.Done()

	res, err := p.runSafe(req)

	p.mu.Lock()
	if p.gen.Load() != gen {
		p.mu.Unlock()
		p.log.Debug("discarding stale preview", "generation", gen, "current", p.gen.Load())
		return
	}
	if err != nil {
		// The last good result stays in place.
		p.lastErr = err
		p.mu.Unlock()
		p.log.Warn("preview run failed", "generation", gen, "error", err)
		return
	}
	p.latest = res
	p.lastErr = nil
	cb := p.onResult
	p.mu.Unlock()

	if cb != nil {
		cb(res)
	}
}

// runSafe turns a panic inside the runner into an error. Runs happen on
// timer goroutines where an unrecovered panic would end the process.
func (p *Previewer) runSafe(req Request) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("preview run panic", "panic", r, "stack", string(debug.Stack()))
			res, err = nil, fmt.Errorf("preview run panicked: %v", r)
		}
	}()
	return p.runner.Run(context.Background(), req)
}

// Latest returns the most recent applied result, or nil.
func (p *Previewer) Latest() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// LastError returns the error of the most recent current-generation run, or
// nil if it succeeded.
func (p *Previewer) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Generation returns the generation of the most recent Submit.
func (p *Previewer) Generation() uint64 {
	return p.gen.Load()
}

// Close drops any pending request and waits for a running one to finish.
func (p *Previewer) Close() {
	p.mu.Lock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
	p.inflight.Wait()
}
