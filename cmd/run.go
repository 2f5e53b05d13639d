package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/traysim/traysim/sim"
	"github.com/traysim/traysim/sim/eventlog"
	"github.com/traysim/traysim/sim/mes"
	"github.com/traysim/traysim/sim/metrics"
	"github.com/traysim/traysim/sim/topology"
	"github.com/traysim/traysim/sim/trace"
	"github.com/traysim/traysim/sim/transport"
)

// mesDialTimeout bounds the initial TCP connect to the MES.
const mesDialTimeout = 5 * time.Second

// runOptions carries the run command flags.
type runOptions struct {
	topologyPath       string
	horizon            float64
	seed               int64
	realtimeFactor     float64
	strict             bool
	mesAddr            string
	mesTimeout         float64
	pumpInterval       float64
	noDecision         string
	injections         []string
	eventsPath         string
	sqlitePath         string
	metricsAddr        string
	maxInFlightPerLink int
	slots              int
	maxSteps           uint64
	monitorInterval    float64
	traceLevel         string
}

var runOpts runOptions

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tray simulation",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		startTime := time.Now()
		if err := runSimulation(ctx, runOpts, os.Stdout); err != nil {
			logrus.Fatalf("simulation failed: %v", err)
		}
		logrus.Infof("Simulation complete in %v.", time.Since(startTime).Round(time.Millisecond))
	},
}

// pacingFactor returns the wall-clock factor for the run. An MES answers in
// wall time, so a run against one is paced at 1x unless a factor was given.
func pacingFactor(opts runOptions) float64 {
	if opts.mesAddr != "" && opts.realtimeFactor == 0 {
		logrus.Warnf("--mes given without --realtime-factor; pacing at 1x wall clock")
		return 1
	}
	return opts.realtimeFactor
}

// runSimulation builds the network, sinks and authority from opts, runs the
// simulation, and prints the end-of-run statistics to out.
func runSimulation(ctx context.Context, opts runOptions, out io.Writer) error {
	if !sim.ValidNoDecisionPolicies[opts.noDecision] {
		return fmt.Errorf("unknown --no-decision %q (retry, local, fail)", opts.noDecision)
	}
	if !trace.IsValidTraceLevel(opts.traceLevel) {
		return fmt.Errorf("unknown --trace-level %q (none, decisions)", opts.traceLevel)
	}
	if opts.realtimeFactor < 0 {
		return fmt.Errorf("--realtime-factor must be >= 0, got %v", opts.realtimeFactor)
	}
	injections := make([]topology.InjectionSpec, 0, len(opts.injections))
	for _, s := range opts.injections {
		inj, err := parseInjection(s)
		if err != nil {
			return err
		}
		injections = append(injections, inj)
	}

	g, err := topology.Load(opts.topologyPath)
	if err != nil {
		return err
	}
	network, err := g.Build(sim.NewPartitionedRNG(sim.NewSimulationKey(opts.seed)))
	if err != nil {
		return fmt.Errorf("topology %s: %w", opts.topologyPath, err)
	}
	logrus.Infof("Loaded topology %q: %d stations, %d links, seed=%d",
		g.Name, len(network.Stations()), network.NumLinks(), opts.seed)

	sched := sim.NewScheduler()
	if factor := pacingFactor(opts); factor > 0 {
		sched = sim.NewRealtimeScheduler(factor, opts.strict)
		logrus.Infof("Pacing at %gx wall clock (strict=%v)", factor, opts.strict)
	}

	sinks, closeSinks, err := openSinks(opts)
	if err != nil {
		return err
	}
	defer closeSinks()

	var authority sim.RoutingAuthority
	var client *mes.CorrelationClient
	if opts.mesAddr != "" {
		conn := transport.NewTCPConn(opts.mesAddr, mesDialTimeout)
		client = mes.NewCorrelationClient(sched, conn, mes.Config{
			Timeout:      sim.Time(opts.mesTimeout),
			PumpInterval: sim.Time(opts.pumpInterval),
		})
		if err := client.Start(ctx); err != nil {
			logrus.Warnf("MES at %s unreachable (%v); running degraded, every decision will time out", opts.mesAddr, err)
		}
		defer client.Close()
		authority = mes.NewRemoteAuthority(client)
	} else {
		authority = sim.NewLocalDefaultPolicy(sched)
	}

	var tr *trace.SimulationTrace
	if trace.TraceLevel(opts.traceLevel) == trace.TraceLevelDecisions {
		tr = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	}
	cfg := sim.Config{
		ServiceSlots:       opts.slots,
		MaxInFlightPerLink: opts.maxInFlightPerLink,
		NoDecision:         sim.NoDecisionPolicy(opts.noDecision),
		MaxSteps:           opts.maxSteps,
		MonitorInterval:    sim.Time(opts.monitorInterval),
		Trace:              tr,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctrl := sim.NewController(sched, network, authority, sinks, cfg)

	injected := g.Inject(ctrl)
	for _, inj := range injections {
		injected += len(ctrl.InjectTrays(sim.StationID(inj.Station), sim.Time(inj.At), inj.Count, sim.Time(inj.Interval)))
	}
	if injected == 0 {
		logrus.Warn("No trays injected; use --inject or an injections section in the topology")
	}

	horizon := sim.Forever
	if opts.horizon > 0 {
		horizon = sim.Time(opts.horizon)
	}
	runErr := ctrl.Run(ctx, horizon)
	switch {
	case runErr == nil:
	case errors.Is(runErr, sim.ErrStepLimit):
		logrus.Warnf("Stopped after %d steps at t=%v", sched.Steps(), sched.Now())
		runErr = nil
	case errors.Is(runErr, context.Canceled):
		logrus.Warn("Interrupted")
		runErr = nil
	}

	if err := ctrl.Stats().Print(out); err != nil {
		return err
	}
	if client != nil {
		st := client.Stats()
		logrus.Infof("MES: sent=%d matched=%d timed_out=%d stale=%d rejected=%d malformed=%d send_errors=%d",
			st.Sent, st.Matched, st.TimedOut, st.Stale, st.Rejected, st.Malformed, st.SendErrors)
	}
	if tr != nil {
		printTraceSummary(out, trace.Summarize(tr))
	}
	return runErr
}

// openSinks assembles the event sinks selected by opts. The returned func
// flushes and closes them.
func openSinks(opts runOptions) (sim.EventSink, func(), error) {
	var sinks eventlog.Multi
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		sinks = append(sinks, eventlog.NewLogSink(logrus.TraceLevel))
	}
	if opts.eventsPath != "" {
		f, err := os.Create(opts.eventsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("creating event log: %w", err)
		}
		w := bufio.NewWriter(f)
		sinks = append(sinks, eventlog.NewJSONLSink(w))
		closers = append(closers, func() {
			if err := w.Flush(); err != nil {
				logrus.WithError(err).Warn("flushing event log")
			}
			f.Close()
		})
	}
	if opts.sqlitePath != "" {
		store, err := eventlog.OpenSQLite(opts.sqlitePath, uuid.NewString())
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		logrus.Infof("Recording events to %s (run_id=%s)", opts.sqlitePath, store.RunID())
		sinks = append(sinks, store)
		closers = append(closers, func() { store.Close() })
	}
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		sinks = append(sinks, metrics.NewCollector(reg))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: opts.metricsAddr, Handler: mux}
		go func() {
			logrus.Infof("Serving metrics on %s/metrics", opts.metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Error("metrics server")
			}
		}()
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		})
	}
	return sinks, closeAll, nil
}

func printTraceSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Decision Trace ===")
	fmt.Fprintf(w, "decisions: %d (action %d, routing %d)\n", s.TotalDecisions, s.ActionQueries, s.RoutingQueries)
	fmt.Fprintf(w, "execute: %d  release: %d  none: %d  fallback: %d\n", s.ExecuteCount, s.ReleaseCount, s.NoDecisionCount, s.FallbackCount)
	fmt.Fprintf(w, "wait: mean %.4f max %.4f\n", s.MeanWait, s.MaxWait)
	fmt.Fprintf(w, "targets: %d distinct %v\n", s.UniqueTargets, s.TargetDistribution)
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.topologyPath, "topology", "", "Topology file (.yaml or .json)")
	f.Float64Var(&runOpts.horizon, "horizon", 0, "Simulation horizon in simulated seconds (0 = run until idle)")
	f.Int64Var(&runOpts.seed, "seed", 42, "Seed for service and transfer time sampling")
	f.Float64Var(&runOpts.realtimeFactor, "realtime-factor", 0, "Pace simulated time against the wall clock (0 = as fast as possible, or 1x with --mes)")
	f.BoolVar(&runOpts.strict, "strict", false, "Fail when the realtime pace falls behind")

	// MES configs
	f.StringVar(&runOpts.mesAddr, "mes", "", "MES host:port (empty = local alternating policy)")
	f.Float64Var(&runOpts.mesTimeout, "mes-timeout", float64(mes.DefaultTimeout), "Decision timeout in simulated seconds")
	f.Float64Var(&runOpts.pumpInterval, "pump-interval", float64(mes.DefaultPumpInterval), "Interval at which MES answers are matched, in simulated seconds")
	f.StringVar(&runOpts.noDecision, "no-decision", string(sim.NoDecisionRetry), "Reaction to a decision timeout (retry, local, fail)")

	// Workload and outputs
	f.StringArrayVar(&runOpts.injections, "inject", nil, "Inject trays: station:at[:count[:interval]] (repeatable)")
	f.StringVar(&runOpts.eventsPath, "events", "", "Write events as JSON lines to this file")
	f.StringVar(&runOpts.sqlitePath, "sqlite", "", "Append events to this SQLite database")
	f.StringVar(&runOpts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.StringVar(&runOpts.traceLevel, "trace-level", "none", "Decision trace level (none, decisions)")

	// Engine configs
	f.IntVar(&runOpts.maxInFlightPerLink, "max-inflight-per-link", 0, "Concurrent transfers per link (0 = unbounded)")
	f.IntVar(&runOpts.slots, "slots", sim.DefaultServiceSlots, "Service slots per station")
	f.Uint64Var(&runOpts.maxSteps, "max-steps", 0, "Stop after this many scheduler steps (0 = unlimited)")
	f.Float64Var(&runOpts.monitorInterval, "monitor-interval", 0, "Log progress every N simulated seconds (0 = off)")

	_ = runCmd.MarkFlagRequired("topology")
	rootCmd.AddCommand(runCmd)
}
