// Package matchbook pairs an ask-side and bid-side book.Book, dispatches the
// preprocessed message union, handles crossing adds, and exposes spread/mid
// derived queries. It is the only package aware of both sides at once.
package matchbook

import (
	"fmt"

	"ordersim/internal/book"
	"ordersim/internal/domain"
)

// OrderBook is the matched book: one ask book, one bid book.
type OrderBook struct {
	Asks *book.Book
	Bids *book.Book
}

// New returns an empty matched book.
func New() *OrderBook {
	return &OrderBook{
		Asks: book.New(book.Ask),
		Bids: book.New(book.Bid),
	}
}

// Spread is ask_best - bid_best.
func (ob *OrderBook) Spread() int64 {
	return ob.Asks.Best() - ob.Bids.Best()
}

// Mid is (ask_best + bid_best) / 2.
func (ob *OrderBook) Mid() int64 {
	return (ob.Asks.Best() + ob.Bids.Best()) / 2
}

// AskQuoteVolume returns the resting shares at the best ask.
func (ob *OrderBook) AskQuoteVolume() int64 { return ob.Asks.QuoteVolume() }

// BidQuoteVolume returns the resting shares at the best bid.
func (ob *OrderBook) BidQuoteVolume() int64 { return ob.Bids.QuoteVolume() }

// Process dispatches msg per spec §4.2 and returns the side tag and any
// agent-visible fills the router must reconcile.
func (ob *OrderBook) Process(msg domain.Message) (domain.Tag, []domain.Fill, error) {
	switch msg.Kind {
	case domain.AddAsk:
		return ob.addAsk(msg.Ref, msg.Price, msg.Shares, true)
	case domain.AddAskAgent:
		return ob.addAsk(msg.Ref, msg.Price, msg.Shares, false)
	case domain.AddBid:
		return ob.addBid(msg.Ref, msg.Price, msg.Shares, true)
	case domain.AddBidAgent:
		return ob.addBid(msg.Ref, msg.Price, msg.Shares, false)

	case domain.ExecuteAsk:
		fills, err := ob.Asks.ExecuteOrder(msg.Ref, msg.Shares)
		return tagFor(fills, domain.TagSell), fills, err
	case domain.ExecuteBid:
		fills, err := ob.Bids.ExecuteOrder(msg.Ref, msg.Shares)
		return tagFor(fills, domain.TagBuy), fills, err

	case domain.MarketBuy:
		// A market buy sweeps the ask side. For the agent's own market buy
		// every fill is a purchase; for a real one, any agent ask orders
		// consumed were sold.
		fills := ob.Asks.ExecuteMarket(msg.Ref, msg.Shares)
		tag := domain.TagSell
		if domain.IsAgentRef(msg.Ref) {
			tag = domain.TagBuy
		}
		return tagFor(fills, tag), fills, nil
	case domain.MarketSell:
		// A market sell sweeps the bid side. For the agent's own market sell
		// every fill is a sale; for a real one, any agent bid orders
		// consumed were bought.
		fills := ob.Bids.ExecuteMarket(msg.Ref, msg.Shares)
		tag := domain.TagBuy
		if domain.IsAgentRef(msg.Ref) {
			tag = domain.TagSell
		}
		return tagFor(fills, tag), fills, nil

	case domain.CancelAsk:
		return domain.TagNone, nil, ob.Asks.CancelOrder(msg.Ref, msg.Shares)
	case domain.CancelBid:
		return domain.TagNone, nil, ob.Bids.CancelOrder(msg.Ref, msg.Shares)

	case domain.DeleteAsk:
		return domain.TagNone, nil, ob.Asks.DeleteOrder(msg.Ref)
	case domain.DeleteBid:
		return domain.TagNone, nil, ob.Bids.DeleteOrder(msg.Ref)

	case domain.ReplaceAsk:
		return domain.TagNone, nil, ob.Asks.ReplaceOrder(msg.Ref, msg.NewRef, msg.Price, msg.Shares)
	case domain.ReplaceBid:
		return domain.TagNone, nil, ob.Bids.ReplaceOrder(msg.Ref, msg.NewRef, msg.Price, msg.Shares)

	default:
		return domain.TagNone, nil, fmt.Errorf("%w: kind=%v", domain.ErrInvalidMessageTag, msg.Kind)
	}
}

// addAsk places a non-crossing ask on the book; a crossing ask (price <=
// current best bid) is treated as a market order against the bid side.
func (ob *OrderBook) addAsk(ref, price, shares int64, real bool) (domain.Tag, []domain.Fill, error) {
	if price > ob.Bids.Best() {
		return domain.TagNone, nil, ob.Asks.AddOrder(ref, price, shares, real)
	}
	// Crosses: the incoming ask sweeps the bid side. Any agent bid orders
	// consumed were bought; if the incoming ask is the agent's own, every
	// fill is a sale by the agent.
	fills := ob.Bids.ExecuteMarket(ref, shares)
	tag := domain.TagBuy
	if !real {
		tag = domain.TagSell
	}
	return tagFor(fills, tag), fills, nil
}

// addBid places a non-crossing bid; a crossing bid (price >= current best
// ask) is treated as a market order against the ask side.
func (ob *OrderBook) addBid(ref, price, shares int64, real bool) (domain.Tag, []domain.Fill, error) {
	if price < ob.Asks.Best() {
		return domain.TagNone, nil, ob.Bids.AddOrder(ref, price, shares, real)
	}
	// Crosses: the incoming bid sweeps the ask side. Any agent ask orders
	// consumed were sold; if the incoming bid is the agent's own, every
	// fill is a purchase by the agent.
	fills := ob.Asks.ExecuteMarket(ref, shares)
	tag := domain.TagSell
	if !real {
		tag = domain.TagBuy
	}
	return tagFor(fills, tag), fills, nil
}

// tagFor returns tag when fills is non-empty, TagNone otherwise: "no agent
// interaction on this message" per the §4.2 return contract.
func tagFor(fills []domain.Fill, tag domain.Tag) domain.Tag {
	if len(fills) == 0 {
		return domain.TagNone
	}
	return tag
}

// AssertInvariants checks the cross-side invariants from spec §8 (ask best
// >= bid best) in addition to each side's own.
func (ob *OrderBook) AssertInvariants() error {
	if err := ob.Asks.AssertInvariants(); err != nil {
		return fmt.Errorf("asks: %w", err)
	}
	if err := ob.Bids.AssertInvariants(); err != nil {
		return fmt.Errorf("bids: %w", err)
	}
	askBest, bidBest := ob.Asks.Best(), ob.Bids.Best()
	if ob.Asks.QuoteVolume() > 0 && ob.Bids.QuoteVolume() > 0 && askBest < bidBest {
		return fmt.Errorf("crossed book: ask best %d < bid best %d", askBest, bidBest)
	}
	return nil
}
