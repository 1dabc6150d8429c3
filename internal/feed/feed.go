// Package feed merges a read-once historical message stream with an agent's
// pending (delayed) message queue into a single time-ordered source, and
// builds the concrete add/delete messages the router submits through it.
package feed

import (
	"math/rand"

	"ordersim/internal/domain"
)

// Feed is the time-ordered message source consumed by the simulation loop.
type Feed struct {
	historical []domain.Message
	pointer    int

	pending []domain.Message

	wallTime     int64
	lastWallTime int64
	lastDelayed  int64

	nextRef int64

	rng              *rand.Rand
	delayLB, delayUB int64
}

// New wraps a pre-parsed, ascending-timestamp historical stream. The RNG
// used to draw transmission delays is seeded from cfg.RNGSeed so a run is
// reproducible.
func New(historical []domain.Message, cfg domain.Config) *Feed {
	return &Feed{
		historical: historical,
		nextRef:    -1,
		rng:        rand.New(rand.NewSource(cfg.RNGSeed)),
		delayLB:    cfg.DelayLB,
		delayUB:    cfg.DelayUB,
	}
}

// HasNext reports whether either stream still has a message to emit.
func (f *Feed) HasNext() bool {
	return f.pointer < len(f.historical) || len(f.pending) > 0
}

// Peek returns the next historical message without consuming it or the
// pending queue; used only during the build phase, before the agent can
// have submitted anything.
func (f *Feed) Peek() (domain.Message, bool) {
	if f.pointer >= len(f.historical) {
		return domain.Message{}, false
	}
	return f.historical[f.pointer], true
}

// Next emits whichever stream has the smaller head timestamp. Pending wins
// ties, so an agent order submitted at time t takes effect before a
// historical message at the same or a later timestamp.
func (f *Feed) Next() (domain.Message, bool) {
	hasHist := f.pointer < len(f.historical)
	hasPending := len(f.pending) > 0
	if !hasHist && !hasPending {
		return domain.Message{}, false
	}

	var msg domain.Message
	if hasPending && (!hasHist || f.pending[0].Timestamp <= f.historical[f.pointer].Timestamp) {
		msg = f.pending[0]
		f.pending = f.pending[1:]
	} else {
		msg = f.historical[f.pointer]
		f.pointer++
	}
	f.wallTime = msg.Timestamp
	return msg, true
}

// delayedTimestamp draws the logical timestamp for the next agent message:
// max(last_delayed_time, current_wall_time + U), U ~ Uniform[delayLB,
// delayUB]. When the wall clock has not advanced since the previous agent
// submission (several router actions landing on the same historical tick),
// the draw is skipped and the timestamp simply advances by a fixed step, so
// repeated submissions within one tick still get strictly increasing
// timestamps without re-rolling the RNG.
func (f *Feed) delayedTimestamp() int64 {
	const sameTickStep = 500

	if f.lastWallTime < f.wallTime {
		u := f.delayLB
		if f.delayUB > f.delayLB {
			u += f.rng.Int63n(f.delayUB - f.delayLB + 1)
		}
		if candidate := f.wallTime + u; candidate > f.lastDelayed {
			f.lastDelayed = candidate
		}
		f.lastWallTime = f.wallTime
	} else {
		f.lastDelayed += sameTickStep
	}
	return f.lastDelayed
}

func (f *Feed) nextAgentRef() int64 {
	ref := f.nextRef
	f.nextRef--
	return ref
}

// AddLimit enqueues an agent limit order and returns the ref assigned.
func (f *Feed) AddLimit(price, shares int64, side domain.Side) int64 {
	ref := f.nextAgentRef()
	kind := domain.AddAskAgent
	if side == domain.Bid {
		kind = domain.AddBidAgent
	}
	f.pending = append(f.pending, domain.Message{
		Kind: kind, Ref: ref, Timestamp: f.delayedTimestamp(), Price: price, Shares: shares,
	})
	return ref
}

// AddMarket enqueues an agent market order against side (Ask => buys by
// sweeping the ask book, Bid => sells by sweeping the bid book) and returns
// the ref assigned.
func (f *Feed) AddMarket(shares int64, side domain.Side) int64 {
	ref := f.nextAgentRef()
	kind := domain.MarketBuy
	if side == domain.Bid {
		kind = domain.MarketSell
	}
	f.pending = append(f.pending, domain.Message{
		Kind: kind, Ref: ref, Timestamp: f.delayedTimestamp(), Shares: shares,
	})
	return ref
}

// Delete enqueues a cancellation of ref on the given side.
func (f *Feed) Delete(ref int64, side domain.Side) {
	kind := domain.DeleteAsk
	if side == domain.Bid {
		kind = domain.DeleteBid
	}
	f.pending = append(f.pending, domain.Message{Kind: kind, Ref: ref, Timestamp: f.delayedTimestamp()})
}
