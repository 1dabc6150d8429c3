// Package domain holds the data types shared across the book, matchbook,
// feed, and router packages: orders, fills, the message union, and the run
// configuration.
package domain

import "fmt"

// Side identifies which half of the book an order or message belongs to.
type Side int8

const (
	Ask Side = iota
	Bid
)

func (s Side) String() string {
	if s == Ask {
		return "ASK"
	}
	return "BID"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Ask {
		return Bid
	}
	return Ask
}

// Tag is the compact side indicator a matched book returns alongside agent
// fills: "B" when the agent bought, "S" when the agent sold, "" when no
// agent-visible fill occurred on a message.
type Tag string

const (
	TagNone Tag = ""
	TagBuy  Tag = "B"
	TagSell Tag = "S"
)

// IsAgentRef reports whether ref identifies an agent-generated order.
// Agent refs are strictly negative; real feed refs are non-negative.
func IsAgentRef(ref int64) bool {
	return ref < 0
}

// Kind discriminates the preprocessed message union (spec §6).
type Kind uint8

const (
	AddAsk Kind = iota
	AddBid
	AddAskAgent
	AddBidAgent
	ExecuteAsk
	ExecuteBid
	MarketBuy
	MarketSell
	CancelAsk
	CancelBid
	DeleteAsk
	DeleteBid
	ReplaceAsk
	ReplaceBid
)

func (k Kind) String() string {
	switch k {
	case AddAsk:
		return "AddAsk"
	case AddBid:
		return "AddBid"
	case AddAskAgent:
		return "AddAskAgent"
	case AddBidAgent:
		return "AddBidAgent"
	case ExecuteAsk:
		return "ExecuteAsk"
	case ExecuteBid:
		return "ExecuteBid"
	case MarketBuy:
		return "MarketBuy"
	case MarketSell:
		return "MarketSell"
	case CancelAsk:
		return "CancelAsk"
	case CancelBid:
		return "CancelBid"
	case DeleteAsk:
		return "DeleteAsk"
	case DeleteBid:
		return "DeleteBid"
	case ReplaceAsk:
		return "ReplaceAsk"
	case ReplaceBid:
		return "ReplaceBid"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Message is the preprocessed exchange record consumed by the matched book
// and produced by the Feed. Only the fields relevant to Kind are populated;
// the rest are left at their zero value.
type Message struct {
	Kind      Kind
	Ref       int64
	Timestamp int64
	Price     int64
	Shares    int64
	NewRef    int64 // ReplaceAsk / ReplaceBid only
}

func (m Message) String() string {
	return fmt.Sprintf("%s ref=%d ts=%d price=%d shares=%d newRef=%d",
		m.Kind, m.Ref, m.Timestamp, m.Price, m.Shares, m.NewRef)
}

// Config carries the tunables from spec §6. Defaults mirror the source.
type Config struct {
	LiquidationRate float64  // alpha, fraction of position liquidated on action 9
	TargetSize      int64    // per-side standing inventory the router maintains
	SkipSize        int64    // ticks beyond which a resting order is re-pegged
	Features        []string // subset of {SPRD, AVOL, BVOL, MPMV<n>, MSPD<n>}
	DelayLB         int64    // ticks, lower bound of agent transmission delay
	DelayUB         int64    // ticks, upper bound of agent transmission delay
	RNGSeed         int64
	CutoffTimestamp int64 // build-phase boundary; real messages before this run with the agent disabled
}

// DefaultConfig returns the configuration defaults named in spec §6.
func DefaultConfig() Config {
	return Config{
		LiquidationRate: 0.3,
		TargetSize:      100,
		SkipSize:        500,
		Features:        []string{"SPRD", "AVOL", "BVOL"},
		DelayLB:         15000,
		DelayUB:         25000,
		RNGSeed:         1,
	}
}
