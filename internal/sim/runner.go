// Package sim ties the Feed, matched book, and smart order router together
// into the end-to-end simulation: the build phase, the per-message main
// loop, feature computation, and run metrics.
package sim

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"ordersim/internal/domain"
	"ordersim/internal/eventlog"
	"ordersim/internal/feed"
	"ordersim/internal/matchbook"
	"ordersim/internal/router"
)

// Agent picks a discrete action from the current feature snapshot. The
// concrete policy (tile-coding value function, or anything else) is an
// external collaborator; the runner only needs this interface.
type Agent interface {
	Act(features map[string]float64) int
}

// Metrics is the read-only run snapshot exposed mid-run and at completion.
type Metrics struct {
	MessagesProcessed uint64
	AgentFills        uint64
	Position          int64
	PnL               float64
}

// rollingMean is an exponential moving average, ungrounded until the first add.
type rollingMean struct {
	alpha float64
	value float64
	has   bool
}

func (r *rollingMean) add(v float64) float64 {
	if !r.has {
		r.value, r.has = v, true
		return r.value
	}
	r.value = r.alpha*r.value + (1-r.alpha)*v
	return r.value
}

// featureDelta tracks the last n values and reports the delta between the
// oldest and newest.
type featureDelta struct {
	n       int
	records []float64
	delta   float64
}

func (f *featureDelta) add(v float64) float64 {
	f.records = append(f.records, v)
	if len(f.records) > f.n {
		f.records = f.records[1:]
	}
	f.delta = f.records[len(f.records)-1] - f.records[0]
	return f.delta
}

// Runner drives one simulation run.
type Runner struct {
	runID string
	cfg   domain.Config

	feed   *feed.Feed
	book   *matchbook.OrderBook
	router *router.Router
	agent  Agent

	metrics Metrics

	rollingMeans  map[string]*rollingMean
	featureDeltas map[string]*featureDelta

	logEvery uint64
	events   *eventlog.Writer
}

// New builds a runner over a pre-parsed historical stream, ready to build
// its book and then run the main action loop.
func New(historical []domain.Message, cfg domain.Config, agent Agent) *Runner {
	return &Runner{
		runID:         uuid.New().String(),
		cfg:           cfg,
		feed:          feed.New(historical, cfg),
		book:          matchbook.New(),
		agent:         agent,
		rollingMeans:  make(map[string]*rollingMean),
		featureDeltas: make(map[string]*featureDelta),
		logEvery:      100000,
	}
}

// RunID is the uuid stamped on this run, used to tag metrics/eventlog output.
func (r *Runner) RunID() string { return r.runID }

// SetLogEvery overrides how many processed messages elapse between progress
// logs (default 100000).
func (r *Runner) SetLogEvery(n uint64) { r.logEvery = n }

// SetEventLog attaches a writer that records one eventlog.Event per
// processed step for offline audit. Ownership (and closing it) stays with
// the caller.
func (r *Runner) SetEventLog(w *eventlog.Writer) { r.events = w }

// Metrics returns the current run snapshot.
func (r *Runner) Metrics() Metrics { return r.metrics }

// BuildBook consumes real messages up to cfg.CutoffTimestamp with the agent
// disabled, representing the pre-market book-building phase.
func (r *Runner) BuildBook() error {
	log.Info().Str("run_id", r.runID).Msg("build: start building book")
	for {
		msg, ok := r.feed.Peek()
		if !ok || msg.Timestamp >= r.cfg.CutoffTimestamp {
			break
		}
		msg, _ = r.feed.Next()
		if _, _, err := r.book.Process(msg); err != nil {
			return fmt.Errorf("build phase: %w", err)
		}
		r.metrics.MessagesProcessed++
	}
	r.router = router.New(r.feed, r.book, r.cfg)
	log.Info().Str("run_id", r.runID).Uint64("messages", r.metrics.MessagesProcessed).
		Msg("build: finished building book")
	return nil
}

// Features computes the configured feature snapshot from current book state.
func (r *Runner) Features() map[string]float64 {
	out := make(map[string]float64, len(r.cfg.Features))
	for _, name := range r.cfg.Features {
		out[name] = r.computeFeature(name)
	}
	return out
}

func (r *Runner) computeFeature(name string) float64 {
	switch {
	case name == "SPRD":
		return float64(r.book.Spread())
	case name == "AVOL":
		return float64(r.book.AskQuoteVolume())
	case name == "BVOL":
		return float64(r.book.BidQuoteVolume())
	case strings.HasPrefix(name, "MPMV"):
		lag, _ := strconv.Atoi(name[4:])
		fd, ok := r.featureDeltas[name]
		if !ok {
			fd = &featureDelta{n: lag}
			r.featureDeltas[name] = fd
		}
		return fd.add(float64(r.book.Mid()))
	case strings.HasPrefix(name, "MSPD"):
		pct, _ := strconv.Atoi(name[4:])
		rm, ok := r.rollingMeans[name]
		if !ok {
			rm = &rollingMean{alpha: float64(pct) / 100}
			r.rollingMeans[name] = rm
		}
		return rm.add(float64(r.book.Spread()))
	default:
		return 0
	}
}

// Run drives the main action loop under a tomb.Tomb so it can be cancelled
// via ctx the way the teacher's server lifecycle is. One simulation is
// single-threaded per step, but the tomb still gives callers a uniform
// start/stop/error-propagation contract with the rest of the stack.
func (r *Runner) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		return r.loop(ctx, t)
	})
	return t.Wait()
}

func (r *Runner) loop(ctx context.Context, t *tomb.Tomb) error {
	for r.feed.HasNext() {
		select {
		case <-t.Dying():
			return tomb.ErrDying
		default:
		}

		action := r.agent.Act(r.Features())
		if err := r.router.Execute(action); err != nil {
			return fmt.Errorf("router execute: %w", err)
		}

		msg, ok := r.feed.Next()
		if !ok {
			break
		}
		tag, fills, err := r.book.Process(msg)
		if err != nil {
			log.Error().Str("run_id", r.runID).Err(err).Stringer("message", msg).Msg("process_message failed")
			return fmt.Errorf("process message %s: %w", msg, err)
		}
		r.metrics.MessagesProcessed++

		if tag != domain.TagNone {
			r.router.Reconcile(tag, fills)
			r.metrics.AgentFills += uint64(len(fills))
			r.metrics.Position = r.router.Position()
			r.metrics.PnL = r.router.PnL()
		}

		if r.events != nil {
			if err := r.events.Write(&eventlog.Event{
				RunID:     r.runID,
				Step:      r.metrics.MessagesProcessed,
				Timestamp: msg.Timestamp,
				Action:    action,
				Tag:       string(tag),
				Fills:     toFillViews(fills),
				Position:  r.metrics.Position,
				PnL:       r.metrics.PnL,
			}); err != nil {
				return fmt.Errorf("event log: %w", err)
			}
		}

		if r.logEvery > 0 && r.metrics.MessagesProcessed%r.logEvery == 0 {
			log.Info().Str("run_id", r.runID).
				Uint64("messages", r.metrics.MessagesProcessed).
				Int64("position", r.metrics.Position).
				Float64("pnl", r.metrics.PnL).
				Msg("progress")
		}
	}
	log.Info().Str("run_id", r.runID).
		Uint64("messages", r.metrics.MessagesProcessed).
		Uint64("agent_fills", r.metrics.AgentFills).
		Int64("position", r.metrics.Position).
		Float64("pnl", r.metrics.PnL).
		Msg("run complete")
	return nil
}

func toFillViews(fills []domain.Fill) []eventlog.FillView {
	if len(fills) == 0 {
		return nil
	}
	views := make([]eventlog.FillView, len(fills))
	for i, f := range fills {
		views[i] = eventlog.FillView{Ref: f.Ref, Price: f.Price, Shares: f.Shares}
	}
	return views
}
