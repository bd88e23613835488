package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/bytegoto/asm"
	"github.com/wippyai/bytegoto/code"
	"github.com/wippyai/bytegoto/errors"
	"github.com/wippyai/bytegoto/patch"
	"github.com/wippyai/bytegoto/vm"
)

func main() {
	var (
		configPath  = flag.String("config", "", "TOML file with default settings")
		dialect     = flag.String("dialect", "", "dialect for .gasm sources (wordcode, legacy, compact)")
		output      = flag.String("o", "", "write patched routines as CBOR; a directory when patching several files")
		dis         = flag.Bool("dis", false, "print the patched listing")
		run         = flag.Bool("run", false, "execute patched routines that take no arguments")
		jobs        = flag.Int("j", 0, "files patched in parallel")
		verbose     = flag.Bool("v", false, "development logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: bytegoto [-config file.toml] [-dialect name] [-o out.rtn] [-dis] [-run] [-j N] [-v] file...")
		fmt.Fprintln(os.Stderr, "       bytegoto -i file...  (interactive mode)")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dialect":
			cfg.Dialect = *dialect
		case "o":
			cfg.Output = *output
		case "dis":
			cfg.Disassemble = *dis
		case "run":
			cfg.Run = *run
		case "j":
			cfg.Jobs = *jobs
		case "v":
			cfg.Verbose = *verbose
		}
	})
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if *interactive {
		if err := runInteractive(log, cfg, flag.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := execute(context.Background(), log, cfg, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// result is one patched input file.
type result struct {
	in   *code.Routine
	out  *code.Routine
	rep  *patch.Report
	path string
}

// execute patches every file, then writes, lists and runs the results
// in input order. Failures are collected rather than stopping the batch.
func execute(ctx context.Context, log *zap.Logger, cfg Config, paths []string, w io.Writer) error {
	results, err := patchFiles(log, cfg, paths)
	var merr *multierror.Error
	if err != nil {
		merr = multierror.Append(merr, err)
	}

	for _, res := range results {
		if res.out == nil {
			continue
		}
		printReport(w, res)
		if cfg.Output != "" {
			if err := writeOutput(cfg.Output, res, len(paths) > 1); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		if cfg.Disassemble {
			if err := code.Fprint(w, res.out); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		if cfg.Run {
			if err := runRoutine(ctx, w, res); err != nil {
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", res.path, err))
			}
		}
	}
	return merr.ErrorOrNil()
}

// patchFiles loads and patches paths with at most cfg.Jobs files in
// flight. The returned slice is indexed like paths; failed entries have
// a nil output.
func patchFiles(log *zap.Logger, cfg Config, paths []string) ([]result, error) {
	p := patch.New(patch.WithLogger(log))
	d := cfg.dialect()
	results := make([]result, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(cfg.Jobs)
	for i, path := range paths {
		g.Go(func() error {
			in, err := loadRoutine(path, d)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", path, err)
				return nil
			}
			out, rep, err := p.ApplyReport(in)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", path, err)
				return nil
			}
			results[i] = result{path: path, in: in, out: out, rep: rep}
			log.Debug("patched",
				zap.String("file", path),
				zap.String("routine", rep.Routine),
				zap.Int("gotos", rep.Gotos))
			return nil
		})
	}
	_ = g.Wait()

	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return results, merr.ErrorOrNil()
}

// loadRoutine reads a .gasm source in dialect d, or a .rtn CBOR routine.
func loadRoutine(path string, d code.Dialect) (*code.Routine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".gasm":
		r, err := asm.Assemble(string(data), d)
		if err != nil {
			return nil, err
		}
		if r.Name == "" {
			r.Name = strings.TrimSuffix(filepath.Base(path), ext)
		}
		return r, nil
	case ".rtn":
		return code.Unmarshal(data)
	default:
		return nil, errors.Unsupported(errors.PhaseLoad, fmt.Sprintf("input extension %q", ext))
	}
}

// outputPath names the file res is written to. With several inputs out
// is a directory holding one .rtn per input.
func outputPath(out string, res result, many bool) string {
	if !many {
		return out
	}
	base := filepath.Base(res.path)
	return filepath.Join(out, strings.TrimSuffix(base, filepath.Ext(base))+".rtn")
}

func writeOutput(out string, res result, many bool) error {
	data, err := code.Marshal(res.out)
	if err != nil {
		return err
	}
	path := outputPath(out, res, many)
	if many {
		if err := os.MkdirAll(out, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func printReport(w io.Writer, res result) {
	rep := res.rep
	fmt.Fprintf(w, "%s: %s: %d labels, %d gotos, %d exits, %d entries",
		res.path, rep.Routine, rep.Labels, rep.Gotos, rep.Exits, rep.Entries)
	if rep.Trampolines > 0 {
		fmt.Fprintf(w, ", %d trampolines (+%d bytes)", rep.Trampolines, rep.Grown)
	}
	fmt.Fprintln(w)
	for _, warn := range rep.Warnings {
		fmt.Fprintf(w, "  warning %s\n", warn)
	}
}

func runRoutine(ctx context.Context, w io.Writer, res result) error {
	if res.out.ArgCount > 0 {
		fmt.Fprintf(w, "  skipped run: %s takes %d arguments\n", res.rep.Routine, res.out.ArgCount)
		return nil
	}
	v, err := vm.New(nil).Run(ctx, res.out)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  result: %s\n", vm.Repr(v))
	return nil
}
