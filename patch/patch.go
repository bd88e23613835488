package patch

import (
	"runtime"
	"sync"
	"weak"

	"go.uber.org/zap"

	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/errors"
	"github.com/wippyai/bytegoto/internal/engine"
	"github.com/wippyai/bytegoto/vm"
)

// Report describes what patching one routine did.
type Report = engine.Report

// Option configures a Patcher.
type Option func(*Patcher)

// WithLogger routes block accounting warnings and pipeline events to l.
func WithLogger(l *zap.Logger) Option {
	return func(p *Patcher) {
		p.log = l
	}
}

// WithoutCache disables result caching; every Apply runs the pipeline.
func WithoutCache() Option {
	return func(p *Patcher) {
		p.nocache = true
	}
}

// Patcher patches routines and caches the results by routine identity.
// A cached result lives as long as the original routine is reachable.
// It is safe for concurrent use.
type Patcher struct {
	log     *zap.Logger
	eng     *engine.Engine
	entries map[weak.Pointer[code.Routine]]*entry
	mu      sync.Mutex
	nocache bool
}

type entry struct {
	out *code.Routine
	rep *Report
	mu  sync.Mutex
}

// New creates a Patcher with its own cache.
func New(opts ...Option) *Patcher {
	p := &Patcher{entries: make(map[weak.Pointer[code.Routine]]*entry)}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	p.eng = engine.New(engine.Config{Logger: p.log})
	return p
}

var defaultPatcher = New()

// Default returns the process-wide patcher used by Apply and Function.
func Default() *Patcher {
	return defaultPatcher
}

// Apply patches r with the default patcher.
func Apply(r *code.Routine) (*code.Routine, error) {
	return defaultPatcher.Apply(r)
}

// Function patches fn's routine with the default patcher.
func Function(fn *vm.Function) (*vm.Function, error) {
	return defaultPatcher.Function(fn)
}

// Apply returns the patched counterpart of r. Repeated calls with the
// same routine return the same result; failures are not cached.
func (p *Patcher) Apply(r *code.Routine) (*code.Routine, error) {
	out, _, err := p.ApplyReport(r)
	return out, err
}

// ApplyReport is Apply that also returns the report of the run that
// produced the result.
func (p *Patcher) ApplyReport(r *code.Routine) (*code.Routine, *Report, error) {
	if r == nil {
		return nil, nil, errors.InvalidInput(errors.PhaseLoad, "nil routine")
	}
	if p.nocache {
		return p.eng.Transform(r)
	}

	e := p.lookup(r)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out != nil {
		return e.out, e.rep, nil
	}
	out, rep, err := p.eng.Transform(r)
	if err != nil {
		return nil, nil, err
	}
	e.out, e.rep = out, rep
	return out, rep, nil
}

// Function returns a copy of fn running the patched routine. Name, doc,
// defaults and attributes carry over.
func (p *Patcher) Function(fn *vm.Function) (*vm.Function, error) {
	if fn == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "nil function")
	}
	out, err := p.Apply(fn.Code)
	if err != nil {
		return nil, err
	}
	return fn.WithCode(out), nil
}

// Len returns the number of cached results. It waits for patches in
// progress.
func (p *Patcher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		e.mu.Lock()
		if e.out != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

func (p *Patcher) lookup(r *code.Routine) *entry {
	key := weak.Make(r)
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		e = &entry{}
		p.entries[key] = e
		runtime.AddCleanup(r, p.evict, key)
	}
	return e
}

func (p *Patcher) evict(key weak.Pointer[code.Routine]) {
	p.mu.Lock()
	delete(p.entries, key)
	p.mu.Unlock()
	p.log.Debug("evicted patched routine")
}
