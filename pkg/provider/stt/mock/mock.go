// Package mock provides a scripted stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Call records one Recognize invocation.
type Call struct {
	Audio []byte
	Cfg   stt.RecognizeConfig
}

// Provider is a scripted STT provider. Each Recognize call consumes the next
// queued result (or error); when the script is exhausted the final entry
// repeats. Safe for concurrent use.
type Provider struct {
	mu      sync.Mutex
	results []stt.Result
	errs    []error
	next    int
	calls   []Call
}

// New returns a Provider scripted to return the given results in order.
func New(results ...stt.Result) *Provider {
	p := &Provider{results: results}
	p.errs = make([]error, len(results))
	return p
}

// NewError returns a Provider whose every call fails with err.
func NewError(err error) *Provider {
	return &Provider{results: []stt.Result{{}}, errs: []error{err}}
}

// Recognize returns the next scripted result.
func (p *Provider) Recognize(_ context.Context, audio []byte, cfg stt.RecognizeConfig) (stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{Audio: audio, Cfg: cfg})

	if len(p.results) == 0 {
		return stt.Result{}, nil
	}
	i := p.next
	if i >= len(p.results) {
		i = len(p.results) - 1
	} else {
		p.next++
	}
	return p.results[i], p.errs[i]
}

// Calls returns a copy of all recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}
