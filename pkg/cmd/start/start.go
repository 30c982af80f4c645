package start

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maxgio92/stackprof/internal/metrics"
	"github.com/maxgio92/stackprof/internal/output"
	"github.com/maxgio92/stackprof/internal/settings"
	"github.com/maxgio92/stackprof/pkg/cmd/common"
	"github.com/maxgio92/stackprof/pkg/cmd/options"
	"github.com/maxgio92/stackprof/pkg/healthcheck"
	"github.com/maxgio92/stackprof/pkg/probe"
	"github.com/maxgio92/stackprof/pkg/profile"
)

const CmdName = "start"

type Options struct {
	frequency   int
	duration    time.Duration
	pid         int
	resolvePids bool

	foldedPath  string
	profilePath string
	reportPath  string
	metricsAddr string

	status bool
	detach bool

	*options.Options
}

func NewCommand(opts *options.Options) *cobra.Command {
	o := new(Options)
	o.Options = opts

	cmd := &cobra.Command{
		Use:   CmdName,
		Short: "Start sampling the process stacks",
		Long: fmt.Sprintf(`
%s attaches the sampling handlers to a per-execution-unit trigger and runs the
two data paths: stack counting into the aggregation table and raw sample
streaming through the events channel. At the end of the run the aggregated
stacks are written out in collapsed format and optionally as a pprof profile.
`, CmdName),
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}

	cmd.Flags().IntVarP(&o.frequency, "frequency", "F", probe.DefaultFrequency, "Sampling frequency per execution unit (Hz)")
	cmd.Flags().DurationVarP(&o.duration, "duration", "d", 10*time.Second, "Profiling duration (0 runs until interrupted)")
	cmd.Flags().IntVar(&o.pid, "pid", 0, "Target process ID written to the arguments slot")
	cmd.Flags().BoolVar(&o.resolvePids, "resolve-pids", false, "Key aggregated samples by the resolved process ID instead of a single bucket")

	cmd.Flags().StringVar(&o.foldedPath, "folded", profile.FoldedFileName, "Collapsed-stack output file")
	cmd.Flags().StringVar(&o.profilePath, "pprof", "", "pprof profile output file")
	cmd.Flags().StringVar(&o.reportPath, "report", profile.ReportFileName, "Run report output file")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-address", "", "Address to expose Prometheus metrics on (empty disables)")

	cmd.Flags().BoolVar(&o.status, "status", true, "Periodically print a status of the sampling run")
	cmd.Flags().BoolVarP(&o.detach, "detach", "D", false, fmt.Sprintf("Run %s as daemon", settings.CmdName))

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	if o.detach {
		return common.Daemonize(o.Logger, o.daemonArgs())
	}

	logLevel, err := log.ParseLevel(o.LogLevel)
	if err != nil {
		o.Logger.Fatal().Err(err).Msg("invalid log level")
	}
	o.Logger = o.Logger.Level(logLevel)

	os.WriteFile(settings.PidFile, []byte(strconv.Itoa(os.Getpid())), 0644)
	defer os.Remove(settings.PidFile)

	ctx := o.Ctx
	if o.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.duration)
		defer cancel()
	}

	reg := prometheus.NewRegistry()
	mtr := metrics.New(reg)
	if o.metricsAddr != "" {
		go o.serveMetrics(ctx, reg)
	}

	profiler, err := profile.NewProfiler(
		profile.WithLogger(&o.Logger),
		profile.WithMetrics(mtr),
		profile.WithResolvePids(o.resolvePids),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create profiler")
	}

	if o.pid > 0 {
		profiler.Configure(profile.Arguments{Pid: uint32(o.pid)})
	}

	if inode, err := profiler.Namespace(); err == nil {
		o.Logger.Info().Uint64("inode", inode).Msg("pid namespace resolved")
	} else {
		o.Logger.Debug().Err(err).Msg("pid namespace not resolved")
	}

	trigger := probe.NewProbe(
		probe.WithFrequency(o.frequency),
		probe.WithLogger(o.Logger),
	)

	var sampled, consumed atomic.Uint64
	trigger.Attach(func() error {
		sampled.Add(1)
		return profiler.HandleCountEvent()
	})
	trigger.Attach(profiler.HandleStreamEvent)

	if err := trigger.Init(ctx); err != nil {
		return errors.Wrap(err, "failed to init the sampling trigger")
	}

	health := healthcheck.NewServer(settings.SockPath, o.Logger)
	if err := health.Listen(ctx); err != nil {
		return errors.Wrap(err, "failed to start the readiness endpoint")
	}
	defer health.Shutdown()
	health.NotifyReadiness()

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return trigger.Run(ctx)
	})
	wg.Go(func() error {
		profiler.DrainEvents(ctx, func(event *profile.StacktraceEvent) {
			consumed.Add(1)
			o.Logger.Trace().
				Uint32("pid", event.Pid).
				Uint32("cpu", event.CPUID).
				Int32("ustack_sz", event.UstackSz).
				Int32("kstack_sz", event.KstackSz).
				Msg("stack trace event")
		})
		return nil
	})
	if o.status {
		wg.Go(func() error {
			o.printStatusBar(ctx, profiler, &sampled)
			return nil
		})
	}

	o.Logger.Info().Int("frequency", o.frequency).Dur("duration", o.duration).Msg("sampling started")

	if err := wg.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, "sampling run failed")
	}
	if o.status {
		fmt.Println()
	}

	return o.writeOutputs(profiler, sampled.Load())
}

func (o *Options) printStatusBar(ctx context.Context, profiler *profile.Profiler, sampled *atomic.Uint64) {
	var last uint64
	output.StatusBar(ctx,
		1*time.Second, // bar refresh interval.
		func() {
			total := sampled.Load()
			rate := total - last
			last = total
			output.PrintLeft(output.PrettySampleStatus(
				rate,
				profiler.Counts().Len(),
				profiler.Stacks().Len(),
				profiler.Events().Len()*100/profiler.Events().Cap(),
			))
		},
	)
}

func (o *Options) writeOutputs(profiler *profile.Profiler, sampled uint64) error {
	samples := profiler.Collect()

	if o.foldedPath != "" {
		f, err := os.Create(o.foldedPath)
		if err != nil {
			return errors.Wrap(err, "failed to create folded output file")
		}
		defer f.Close()
		if err := profile.WriteFolded(f, samples); err != nil {
			return errors.Wrap(err, "failed to write folded stacks")
		}
		o.Logger.Info().Str("path", o.foldedPath).Int("stacks", len(samples)).Msg("collapsed stacks written")
	}

	if o.profilePath != "" {
		f, err := os.Create(o.profilePath)
		if err != nil {
			return errors.Wrap(err, "failed to create pprof output file")
		}
		defer f.Close()
		period := time.Second / time.Duration(o.frequency)
		if err := profile.WriteProfile(f, samples, period); err != nil {
			return errors.Wrap(err, "failed to write pprof profile")
		}
		o.Logger.Info().Str("path", o.profilePath).Msg("pprof profile written")
	}

	if o.reportPath != "" {
		inode, _ := profiler.Namespace()
		report := profile.NewRunReport(
			profile.WithReportTotalSamples(sampled),
			profile.WithReportDistinctStacks(profiler.Stacks().Len()),
			profile.WithReportDistinctKeys(profiler.Counts().Len()),
			profile.WithReportSamplingHz(o.frequency),
			profile.WithReportNamespaceInode(inode),
		)
		f, err := os.Create(o.reportPath)
		if err != nil {
			return errors.Wrap(err, "failed to create report file")
		}
		defer f.Close()
		if err := report.WriteReport(f); err != nil {
			return errors.Wrap(err, "failed to write run report")
		}
		o.Logger.Info().Str("path", o.reportPath).Msg("run report written")
	}

	return nil
}

func (o *Options) serveMetrics(ctx context.Context, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: o.metricsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	o.Logger.Info().Str("address", o.metricsAddr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		o.Logger.Warn().Err(err).Msg("metrics server failed")
	}
}

func (o *Options) daemonArgs() []string {
	args := []string{CmdName}
	args = append(args, fmt.Sprintf("--frequency=%d", o.frequency))
	args = append(args, fmt.Sprintf("--duration=%s", o.duration))
	args = append(args, fmt.Sprintf("--pid=%d", o.pid))
	args = append(args, fmt.Sprintf("--resolve-pids=%s", strconv.FormatBool(o.resolvePids)))
	args = append(args, fmt.Sprintf("--folded=%s", o.foldedPath))
	args = append(args, fmt.Sprintf("--report=%s", o.reportPath))
	args = append(args, fmt.Sprintf("--status=%s", strconv.FormatBool(o.status)))
	if o.profilePath != "" {
		args = append(args, fmt.Sprintf("--pprof=%s", o.profilePath))
	}
	if o.metricsAddr != "" {
		args = append(args, fmt.Sprintf("--metrics-address=%s", o.metricsAddr))
	}

	return args
}
