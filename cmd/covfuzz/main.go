package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aledsdavies/covfuzz/internal/config"
	"github.com/aledsdavies/covfuzz/internal/crashlog"
	"github.com/aledsdavies/covfuzz/internal/dashboard"
	"github.com/aledsdavies/covfuzz/internal/elfinfo"
	"github.com/aledsdavies/covfuzz/internal/fuzzer"
	"github.com/aledsdavies/covfuzz/internal/generator"
	"github.com/aledsdavies/covfuzz/internal/grammar"
	"github.com/aledsdavies/covfuzz/internal/library"
	"github.com/aledsdavies/covfuzz/internal/mutate"
	"github.com/aledsdavies/covfuzz/internal/obslog"
	"github.com/aledsdavies/covfuzz/internal/sampletree"
	"github.com/aledsdavies/covfuzz/internal/seedwatch"
	"github.com/aledsdavies/covfuzz/internal/state"
	"github.com/aledsdavies/covfuzz/internal/tracer"
)

// exitCoder is implemented by every package's typed error, mapping it to a
// BSD sysexits.h-style process exit code.
type exitCoder interface {
	ExitCode() int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "covfuzz:", err)

		code := 70 // EX_SOFTWARE, the default for an unclassified failure
		var ec exitCoder
		if errors.As(err, &ec) {
			code = ec.ExitCode()
		}
		os.Exit(code)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		dashHz     float64
	)

	cmd := &cobra.Command{
		Use:           "covfuzz",
		Short:         "coverage-guided, grammar-aware fuzzer for ELF executables",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := newCancellableContext()
			defer cancel()
			return run(ctx, configPath, dashHz)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "fuzz.toml", "path to the fuzz.toml configuration file")
	cmd.PersistentFlags().Float64Var(&dashHz, "dashboard-hz", 30, "dashboard refresh rate in frames/sec (0 disables it)")

	return cmd
}

// newCancellableContext returns a context canceled on SIGINT/SIGTERM, so
// Ctrl+C stops the fuzz loop at the next iteration boundary instead of
// killing the process mid-trace.
func newCancellableContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}

func run(ctx context.Context, configPath string, dashHz float64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, ring := obslog.Default(cfg.Output.Debug)
	slog.SetDefault(logger)

	info, err := elfinfo.Analyze(cfg.Binary.Path)
	if err != nil {
		return fmt.Errorf("analyzing target binary: %w", err)
	}
	logger.Info("analyzed target", "binary", cfg.Binary.Path, "functions", len(info.Functions))

	mode := tracer.InputStdin
	if cfg.Binary.PassStyle == config.PassFile {
		mode = tracer.InputFile
	}
	tr := tracer.New(cfg.Binary.Path, mode, info)

	lib := library.New()
	if len(cfg.Binary.InterestingCodes) > 0 {
		// binary.interesting_codes switches the library to the non-coverage
		// evaluator variant: exemplars collapse by exit code, not by the
		// functions exercised to reach it.
		lib = library.NewExitCodeClassified()
	}
	st := state.New(time.Now())

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var gen *generator.Generator
	if cfg.UsesGrammar() {
		src, err := os.ReadFile(cfg.Input.Grammar)
		if err != nil {
			return fmt.Errorf("reading grammar file: %w", err)
		}
		g, err := grammar.ParseAndValidate(string(src))
		if err != nil {
			return fmt.Errorf("parsing grammar: %w", err)
		}
		gen = generator.New(g, rng, 100)
	}

	chooser := mutate.New(gen)
	fz := fuzzer.New(lib, chooser, tr, st)

	persistor, err := crashlog.New(cfg.Output.Directory, time.Now())
	if err != nil {
		return fmt.Errorf("opening crash log: %w", err)
	}
	defer persistor.Close()

	var newSeeds <-chan *sampletree.Sample
	if cfg.UsesGrammar() {
		tree, err := gen.Generate()
		if err != nil {
			return fmt.Errorf("generating initial seed: %w", err)
		}
		result, err := fz.PutSeed(sampletree.NewSample(tree))
		if err != nil {
			return fmt.Errorf("running initial seed: %w", err)
		}
		if err := persistResult(persistor, lib, result); err != nil {
			return fmt.Errorf("persisting initial seed result: %w", err)
		}
	} else {
		watcher, err := seedwatch.New(cfg.Input.Seeds, logger)
		if err != nil {
			return fmt.Errorf("watching seed directory: %w", err)
		}
		defer watcher.Close()

		seeds, err := watcher.LoadExisting()
		if err != nil {
			return fmt.Errorf("loading existing seeds: %w", err)
		}
		for _, seed := range seeds {
			result, err := fz.PutSeed(seed)
			if err != nil {
				return fmt.Errorf("running seed: %w", err)
			}
			if err := persistResult(persistor, lib, result); err != nil {
				return fmt.Errorf("persisting seed result: %w", err)
			}
		}

		stop := make(chan struct{})
		defer close(stop)
		go watcher.Run(stop)
		newSeeds = watcher.Samples()
	}

	dash := dashboard.New(st, lib, ring)

	var dashTick <-chan time.Time
	if dashHz > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / dashHz))
		defer ticker.Stop()
		dashTick = ticker.C
	}

	for st.Running() {
		select {
		case <-ctx.Done():
			st.Stop()
			continue
		case <-dashTick:
			dash.Render(os.Stdout, time.Now())
			continue
		case seed := <-newSeeds:
			result, err := fz.PutSeed(seed)
			if err != nil {
				return fmt.Errorf("running seed: %w", err)
			}
			if err := persistResult(persistor, lib, result); err != nil {
				return fmt.Errorf("persisting seed result: %w", err)
			}
			continue
		default:
		}

		result, err := fz.RunOnce(rng)
		if err != nil {
			if errors.Is(err, fuzzer.ErrEmptyLibrary) {
				// A seeds-mode run with no files loaded yet; wait for the
				// watcher to deliver one instead of busy-spinning on error.
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("fuzz run failed: %w", err)
		}

		if err := persistResult(persistor, lib, result); err != nil {
			return fmt.Errorf("persisting fuzz result: %w", err)
		}
	}

	dash.Render(os.Stdout, time.Now())
	return nil
}

// persistResult writes crash artifacts and appends event-log entries for
// a classified fuzzer.Result. StatusNothing results need no action.
func persistResult(persistor *crashlog.Persistor, lib *library.Library, result *fuzzer.Result) error {
	switch result.Status {
	case fuzzer.StatusNew:
		name, err := crashlog.NewCrashName()
		if err != nil {
			return err
		}
		if err := lib.AddName(result.Trace, name); err != nil {
			return err
		}
		return persistor.RecordNew(result.Trace.Result, result.Sample.Bytes(), name, time.Now())

	case fuzzer.StatusSizeImprovement:
		if result.Trace.Result.Kind != tracer.ResultSignal {
			// Only crash artifacts are persisted to disk; a smaller
			// reproducer for a merely-interesting exit code has nothing
			// to overwrite.
			return nil
		}
		entry := lib.Find(result.Trace)
		if entry == nil || entry.UniqueName == "" {
			return fmt.Errorf("size improvement on an unnamed crash trace: library invariant violated")
		}
		return persistor.RecordSizeImprovement(entry.UniqueName, result.Sample.Bytes(), result.Delta)

	default:
		return nil
	}
}
