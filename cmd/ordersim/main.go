// Command ordersim replays a preprocessed exchange message feed through the
// matching engine while a trading agent injects its own synthetic orders,
// and reports the resulting position and P&L.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ordersim/internal/domain"
	"ordersim/internal/eventlog"
	"ordersim/internal/ingest"
	"ordersim/internal/sim"
)

// randomAgent is a placeholder for the external tile-coding value function /
// trading policy, which is out of scope here; it exercises the runner with
// uniformly random actions over 0..9.
type randomAgent struct {
	rng *rand.Rand
}

func (a randomAgent) Act(map[string]float64) int {
	return a.rng.Intn(10)
}

func main() {
	feedPath := flag.String("feed", "", "path to the preprocessed message CSV (compulsory)")
	eventLogPath := flag.String("eventlog", "", "path to write a JSON-lines audit trail (optional)")
	cutoff := flag.Int64("cutoff", 0, "build-phase cutoff timestamp")
	targetSize := flag.Int64("target-size", 100, "per-side standing inventory the router maintains")
	skipSize := flag.Int64("skip-size", 500, "tick distance beyond which a resting order is re-pegged")
	liquidationRate := flag.Float64("liquidation-rate", 0.3, "fraction of position liquidated on action 9")
	delayLB := flag.Int64("delay-lb", 15000, "lower bound of agent transmission delay, ticks")
	delayUB := flag.Int64("delay-ub", 25000, "upper bound of agent transmission delay, ticks")
	rngSeed := flag.Int64("rng-seed", 1, "seed for the agent transmission-delay RNG")
	logEvery := flag.Uint64("log-every", 100000, "messages between progress logs")
	verbose := flag.Bool("verbose", false, "debug-level logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if *feedPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -feed is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, runConfig{
		feedPath:     *feedPath,
		eventLogPath: *eventLogPath,
		logEvery:     *logEvery,
		cfg: domain.Config{
			LiquidationRate: *liquidationRate,
			TargetSize:      *targetSize,
			SkipSize:        *skipSize,
			Features:        []string{"SPRD", "AVOL", "BVOL"},
			DelayLB:         *delayLB,
			DelayUB:         *delayUB,
			RNGSeed:         *rngSeed,
			CutoffTimestamp: *cutoff,
		},
	}); err != nil {
		log.Fatal().Err(err).Msg("ordersim failed")
	}
}

type runConfig struct {
	feedPath     string
	eventLogPath string
	logEvery     uint64
	cfg          domain.Config
}

func run(ctx context.Context, rc runConfig) error {
	messages, err := ingest.LoadFile(rc.feedPath)
	if err != nil {
		return fmt.Errorf("loading feed: %w", err)
	}

	agent := randomAgent{rng: rand.New(rand.NewSource(rc.cfg.RNGSeed))}
	runner := sim.New(messages, rc.cfg, agent)
	runner.SetLogEvery(rc.logEvery)

	log.Info().Str("run_id", runner.RunID()).Str("feed", rc.feedPath).Msg("starting run")

	if rc.eventLogPath != "" {
		w, err := eventlog.NewWriter(rc.eventLogPath)
		if err != nil {
			return fmt.Errorf("opening event log: %w", err)
		}
		defer w.Close()
		runner.SetEventLog(w)
	}

	if err := runner.BuildBook(); err != nil {
		return fmt.Errorf("build phase: %w", err)
	}

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	metrics := runner.Metrics()
	log.Info().
		Str("run_id", runner.RunID()).
		Uint64("messages", metrics.MessagesProcessed).
		Uint64("agent_fills", metrics.AgentFills).
		Int64("position", metrics.Position).
		Float64("pnl", metrics.PnL).
		Msg("run finished")
	return nil
}
