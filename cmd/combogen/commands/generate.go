package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/combogen/pkg/checkpoint"
	"github.com/Sumatoshi-tech/combogen/pkg/config"
	"github.com/Sumatoshi-tech/combogen/pkg/engine"
	"github.com/Sumatoshi-tech/combogen/pkg/observability"
	"github.com/Sumatoshi-tech/combogen/pkg/profiling"
	"github.com/Sumatoshi-tech/combogen/pkg/sink"
	"github.com/Sumatoshi-tech/combogen/pkg/version"
)

const sampleRecords = 5

// ErrRunFailed is returned when the engine reports a failed run.
var ErrRunFailed = errors.New("generation failed")

var errRunFinished = errors.New("run finished")

// GenerateCommand holds dependencies for the generate command.
type GenerateCommand struct {
	opts *GlobalOptions

	// signals cancel the run; overridden in tests.
	signals []os.Signal
	// isTerminal decides between a live bar and periodic log lines.
	isTerminal func(w io.Writer) bool

	cpuProfile  string
	heapProfile string
}

// NewGenerateCommand creates the generate subcommand.
func NewGenerateCommand(opts *GlobalOptions) *cobra.Command {
	return newGenerateCommandWithDeps(opts, []os.Signal{os.Interrupt, syscall.SIGTERM}, isTerminal)
}

func newGenerateCommandWithDeps(opts *GlobalOptions, signals []os.Signal, term func(io.Writer) bool) *cobra.Command {
	gc := &GenerateCommand{opts: opts, signals: signals, isTerminal: term}

	cmd := &cobra.Command{
		Use:   "generate [length]",
		Short: "Generate every combination of the given length",
		Long: `Generate every combination of the given length over the alphabet.

Records are newline-terminated. Each worker writes its own rank range in
order; batches from different workers interleave, so the file as a whole is
not sorted. Interrupting a run with a resume file set lets a later run
continue where this one stopped.`,
		Example: `  combogen generate 4 --charset abc -o -
  combogen generate 8 --limit 1000000 --compress lz4 -o combos.txt.lz4
  combogen generate 6 --preset hex --resume state.txt --mode null
  combogen generate 7 --preset lower --mode null --cpuprofile cpu.pprof`,
		Args: cobra.MaximumNArgs(1),
		RunE: gc.run,
	}

	registerSpaceFlags(cmd.Flags())
	registerGenerateFlags(cmd.Flags())

	cmd.Flags().StringVar(&gc.cpuProfile, "cpuprofile", "", "write a CPU profile to this file")
	cmd.Flags().StringVar(&gc.heapProfile, "heapprofile", "", "write a heap profile to this file after the run")

	return cmd
}

func (gc *GenerateCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, gc.opts, args)
	if err != nil {
		return err
	}

	err = cfg.RequireLength()
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()

	if limit, limited := cfg.Limit(); limited && limit == 0 {
		if !gc.opts.Quiet {
			fmt.Fprintln(out, "Nothing to do (limit=0).")
		}

		return nil
	}

	providers, err := observability.Init(gc.observabilityConfig(cfg, out))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown", "error", shutdownErr)
		}
	}()

	runID := uuid.NewString()
	logger := observability.WithRunID(providers.Logger, runID)

	metrics, err := observability.NewGenerationMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	plan, sinkOpts, err := gc.buildPlan(cmd, cfg, runID, logger)
	if err != nil {
		return err
	}

	plan.Tracer = providers.Tracer
	plan.Metrics = metrics

	start, end, err := planBounds(plan)
	if err != nil {
		return err
	}

	sinkOpts.Append = start > 0

	plan.Sink, err = sink.Open(sinkOpts)
	if err != nil {
		return err
	}

	closeSink := plan.Sink.Close

	eng, err := engine.New(plan)
	if err != nil {
		return errors.Join(err, closeSink())
	}

	var running atomic.Bool

	running.Store(true)

	if cfg.Telemetry.MetricsAddr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(cfg.Telemetry.MetricsAddr,
			observability.WithMetrics(providers.MetricsHandler),
			observability.WithProgress(observability.SnapshotHandler(eng.Progress)),
			observability.WithReadyCheck(func(context.Context) error {
				if !running.Load() {
					return errRunFinished
				}

				return nil
			}),
			observability.WithDiagnosticsLogger(logger),
		)
		if diagErr != nil {
			return errors.Join(diagErr, closeSink())
		}

		logger.Info("diagnostics server listening", "addr", diag.Addr())

		defer func() {
			closeErr := diag.Close(context.Background())
			if closeErr != nil {
				logger.Warn("diagnostics server close", "error", closeErr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), gc.signals...)
	defer stop()

	if cfg.Generation.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cfg.Generation.Timeout)
		defer cancel()
	}

	if !gc.opts.Quiet {
		renderHeader(out, headerInfo{
			alphabet: plan.Alphabet,
			space:    eng.Space(),
			workers:  plan.Workers,
			start:    start,
			end:      end,
			output:   describeOutput(cfg),
		})
	}

	stopProfile, err := profiling.StartCPU(gc.cpuProfile)
	if err != nil {
		return errors.Join(err, closeSink())
	}

	reporter := gc.newReporter(out, eng, logger)
	reporter.Start()

	res, runErr := eng.Run(ctx)

	running.Store(false)
	reporter.Stop()

	profErr := errors.Join(stopProfile(), profiling.WriteHeap(gc.heapProfile))
	if profErr != nil {
		logger.Warn("profiling", "error", profErr)
	}

	closeErr := closeSink()
	if closeErr != nil && runErr == nil {
		runErr = fmt.Errorf("close output: %w", closeErr)
		res.Status = engine.StatusFailed
		res.Err = runErr
	}

	if res.Started.IsZero() {
		return runErr
	}

	if !gc.opts.Quiet {
		estimate := eng.Space().Bytes(res.Generated, plan.Alphabet.MaxWidth())
		renderSummary(out, res, plan.Sink, estimate, !gc.isTerminal(out))

		if gc.opts.Verbose {
			if mem, ok := plan.Sink.(*sink.Memory); ok {
				renderSamples(out, mem.Head(sampleRecords), mem.Len())
			}
		}
	}

	if res.Status == engine.StatusFailed {
		return fmt.Errorf("%w: %w", ErrRunFailed, runErr)
	}

	return nil
}

// buildPlan assembles the engine plan and the sink options. The sink is
// opened by the caller once the resume rank is known.
func (gc *GenerateCommand) buildPlan(
	cmd *cobra.Command, cfg *config.Config, runID string, logger *slog.Logger,
) (engine.Plan, sink.Options, error) {
	alpha, err := cfg.BuildAlphabet()
	if err != nil {
		return engine.Plan{}, sink.Options{}, err
	}

	flushBytes, err := cfg.FlushBytes()
	if err != nil {
		return engine.Plan{}, sink.Options{}, err
	}

	sinkOpts, err := cfg.SinkOptions()
	if err != nil {
		return engine.Plan{}, sink.Options{}, err
	}

	sinkOpts.Stdout = cmd.OutOrStdout()

	limit, _ := cfg.Limit()

	plan := engine.Plan{
		Alphabet:           alpha,
		Length:             cfg.Generation.Length,
		Workers:            cfg.Generation.Workers,
		Limit:              limit,
		FlushBytes:         flushBytes,
		CheckpointInterval: cfg.Checkpoint.Interval,
		RunID:              runID,
		Logger:             logger,
	}

	if plan.Workers == 0 {
		plan.Workers = defaultWorkers()
	}

	if cfg.Checkpoint.Path != "" {
		plan.Checkpoint = checkpoint.NewManager(cfg.Checkpoint.Path)
	}

	return plan, sinkOpts, nil
}

// planBounds reports the interval plan would cover without touching its
// output, so a resumed run appends to the file the earlier run wrote instead
// of truncating it.
func planBounds(plan engine.Plan) (start, end uint64, err error) {
	plan.Sink = sink.NewNull()

	eng, err := engine.New(plan)
	if err != nil {
		return 0, 0, err
	}

	return eng.Bounds()
}

func (gc *GenerateCommand) observabilityConfig(cfg *config.Config, logOutput io.Writer) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Get().Version
	obsCfg.LogLevel = logLevel(cfg, gc.opts)
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.LogOutput = logOutput
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.Prometheus = cfg.Telemetry.MetricsAddr != ""

	return obsCfg
}

func (gc *GenerateCommand) newReporter(out io.Writer, eng *engine.Engine, logger *slog.Logger) reporter {
	switch {
	case gc.opts.Quiet:
		return nopReporter{}
	case gc.isTerminal(out):
		return newBarReporter(out, eng)
	default:
		return newLogReporter(eng, logger, logReportInterval)
	}
}

func describeOutput(cfg *config.Config) string {
	opts, err := cfg.SinkOptions()
	if err != nil {
		return cfg.Output.Mode
	}

	switch opts.Mode {
	case sink.ModeMemory:
		return "(memory)"
	case sink.ModeNull:
		return "(none)"
	case sink.ModeFile:
		if opts.Path == sink.StdoutPath {
			return "stdout"
		}

		if opts.Compression != sink.CompressionNone {
			return fmt.Sprintf("%s (%s)", opts.Path, opts.Compression)
		}

		return opts.Path
	default:
		return string(opts.Mode)
	}
}
