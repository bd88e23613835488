// Package engine runs the scan, resolve and rewrite pipeline over one
// routine.
package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/internal/resolve"
	"github.com/wippyai/bytegoto/internal/rewrite"
	"github.com/wippyai/bytegoto/internal/scan"
)

// State is the progress of one routine through the pipeline.
type State uint8

const (
	StateUnpatched State = iota
	StateScanned
	StateResolved
	StateRewritten
)

func (s State) String() string {
	switch s {
	case StateUnpatched:
		return "unpatched"
	case StateScanned:
		return "scanned"
	case StateResolved:
		return "resolved"
	case StateRewritten:
		return "rewritten"
	}
	return "unknown"
}

// Config configures the transformation engine.
type Config struct {
	// Logger receives warnings and state transitions. Nil uses the
	// package logger.
	Logger *zap.Logger

	// SkipValidate trusts the input routine's tables and jump targets.
	SkipValidate bool
}

// Report describes what a transform did.
type Report struct {
	Routine     string
	Warnings    []scan.Warning
	Labels      int
	Gotos       int
	Exits       int
	Entries     int
	Inline      int
	Trampolines int
	Grown       int
	AddedConsts int
	TempSlot    bool
	State       State
}

// Engine orchestrates the pipeline. It holds no per-routine state and is
// safe for concurrent use.
type Engine struct {
	log          *zap.Logger
	skipValidate bool
}

// New creates a new engine with the given config.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Engine{log: log, skipValidate: cfg.SkipValidate}
}

// Transform returns a patched copy of r. The input is never modified.
func (e *Engine) Transform(r *code.Routine) (*code.Routine, *Report, error) {
	if !e.skipValidate {
		if err := r.Validate(); err != nil {
			return nil, nil, err
		}
	}
	out := r.Clone()
	rep := &Report{Routine: r.Name}

	res, err := scan.Scan(out, e.log)
	if err != nil {
		return nil, nil, err
	}
	rep.State = StateScanned
	rep.Labels = len(res.Labels)
	rep.Gotos = len(res.Gotos)
	rep.Warnings = res.Warnings
	e.log.Debug("scanned",
		zap.String("routine", r.Name),
		zap.Int("labels", rep.Labels),
		zap.Int("gotos", rep.Gotos),
		zap.Int("blocks", res.Len()))

	if rep.Labels == 0 && rep.Gotos == 0 {
		rep.State = StateRewritten
		return out, rep, nil
	}

	p := newPool(out)
	patches, err := resolve.Resolve(out, res, p)
	if err != nil {
		return nil, nil, err
	}
	rep.State = StateResolved
	for _, patch := range patches {
		rep.Exits += patch.Exits
		rep.Entries += patch.Entries
	}
	rep.AddedConsts = p.added
	rep.TempSlot = p.hasTmp

	buf, st, err := rewrite.Rewrite(out, res.Labels, patches)
	if err != nil {
		return nil, nil, err
	}
	out.Code = buf
	rep.State = StateRewritten
	rep.Inline = st.Inline
	rep.Trampolines = st.Trampolines
	rep.Grown = st.Grown
	e.log.Debug("rewritten",
		zap.String("routine", r.Name),
		zap.Int("inline", st.Inline),
		zap.Int("trampolines", st.Trampolines),
		zap.Int("grown", st.Grown),
		zap.Int("added_consts", p.added),
		zap.Bool("temp_slot", p.hasTmp))
	return out, rep, nil
}

// Transform runs a default engine over r.
func Transform(r *code.Routine, cfg Config) (*code.Routine, *Report, error) {
	return New(cfg).Transform(r)
}
