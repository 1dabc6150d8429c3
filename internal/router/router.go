// Package router implements the smart order router: it translates a
// discrete agent action into concrete order placements submitted through a
// feed.Feed, reconciles the fills a matchbook.OrderBook reports back against
// its own submission ledger, and nets completed fills into a running
// position and P&L.
package router

import (
	"fmt"

	"ordersim/internal/domain"
	"ordersim/internal/feed"
	"ordersim/internal/matchbook"
)

// LiquidateAction is the reserved action index that flattens the router's
// position instead of re-pegging quotes.
const LiquidateAction = 9

// actionMap mirrors the source's quote-depth pairs: action -> (ask depth,
// bid depth), both 1-indexed (depth 1 is the best price).
var actionMap = map[int][2]int64{
	0: {1, 1}, 1: {2, 2}, 2: {3, 3}, 3: {4, 4}, 4: {5, 5},
	5: {1, 3}, 6: {3, 1}, 7: {2, 5}, 8: {5, 2},
}

type openOrder struct {
	price, shares int64
}

// profile is the router's view of its own standing orders on one side.
type profile struct {
	side      domain.Side
	submitted int64
	orders    map[int64]*openOrder
}

func newProfile(side domain.Side) *profile {
	return &profile{side: side, orders: make(map[int64]*openOrder)}
}

// Router is the smart order router.
type Router struct {
	feed *feed.Feed
	book *matchbook.OrderBook
	cfg  domain.Config

	ask, bid *profile

	position int64
	pnl      float64

	openBuys, openSells []domain.Fill
}

// New builds a router bound to feed (for submitting orders) and book (for
// reading current quotes). book is read-only from the router's perspective;
// all mutation happens through the feed -> matchbook.Process path the
// simulation loop drives.
func New(f *feed.Feed, book *matchbook.OrderBook, cfg domain.Config) *Router {
	return &Router{
		feed: f,
		book: book,
		cfg:  cfg,
		ask:  newProfile(domain.Ask),
		bid:  newProfile(domain.Bid),
	}
}

// Position is the router's net signed inventory: positive is long.
func (r *Router) Position() int64 { return r.position }

// PnL is the router's realized profit and loss from netted fills.
func (r *Router) PnL() float64 { return r.pnl }

// Execute translates action into order placements on the feed. Actions 0-8
// re-peg both sides to the quote depths named in actionMap; action 9
// liquidates.
func (r *Router) Execute(action int) error {
	if action == LiquidateAction {
		r.liquidate()
		return nil
	}
	depths, ok := actionMap[action]
	if !ok {
		return fmt.Errorf("router: unknown action %d", action)
	}
	r.executeSingleBook(depths[0], r.ask)
	r.executeSingleBook(depths[1], r.bid)
	return nil
}

// liquidate cancels every standing order on the position-heavy side and
// submits a market order for liquidationRate of the current position against
// the opposite side.
func (r *Router) liquidate() {
	var prof, queue *profile
	var queueSide domain.Side
	if r.position > 0 {
		prof, queue, queueSide = r.bid, r.ask, domain.Bid
	} else {
		prof, queue, queueSide = r.ask, r.bid, domain.Ask
	}
	for ref := range prof.orders {
		r.feed.Delete(ref, prof.side)
	}
	prof.orders = make(map[int64]*openOrder)
	prof.submitted = 0

	shares := int64(r.cfg.LiquidationRate * float64(r.position))
	if shares < 0 {
		shares = -shares
	}
	if shares == 0 {
		return
	}
	ref := r.feed.AddMarket(shares, queueSide)
	queue.orders[ref] = &openOrder{shares: shares}
	queue.submitted += shares
}

// executeSingleBook re-pegs one side to the price at the given quote depth:
// orders that have drifted more than skipSize ticks from the target are
// cancelled, then the side is topped back up to targetSize.
func (r *Router) executeSingleBook(depth int64, prof *profile) {
	target, ok := r.priceAtDepth(prof.side, depth)
	if !ok {
		return
	}

	for ref, o := range prof.orders {
		diff := o.price - target
		if diff < 0 {
			diff = -diff
		}
		if diff > r.cfg.SkipSize {
			r.feed.Delete(ref, prof.side)
			prof.submitted -= o.shares
			delete(prof.orders, ref)
		}
	}

	if prof.submitted < r.cfg.TargetSize {
		shares := r.cfg.TargetSize - prof.submitted
		ref := r.feed.AddLimit(target, shares, prof.side)
		prof.orders[ref] = &openOrder{price: target, shares: shares}
		prof.submitted = r.cfg.TargetSize
	}
}

func (r *Router) priceAtDepth(side domain.Side, depth int64) (int64, bool) {
	if side == domain.Ask {
		return r.book.Asks.PriceAtDepth(depth - 1)
	}
	return r.book.Bids.PriceAtDepth(depth - 1)
}

// Reconcile is called once per simulation step with the tag and fills a
// matchbook.Process call returned. It folds those fills into the submission
// ledger for the named side, nets completed buy/sell pairs into P&L, and
// updates the running position.
func (r *Router) Reconcile(tag domain.Tag, fills []domain.Fill) {
	if tag == domain.TagNone {
		return
	}
	prof := r.ask
	if tag == domain.TagBuy {
		prof = r.bid
	}

	netted := r.updateSubmission(prof, fills)

	if tag == domain.TagBuy {
		r.openBuys = append(r.openBuys, fills...)
	} else {
		r.openSells = append(r.openSells, fills...)
	}
	r.net()

	if tag == domain.TagBuy {
		r.position += netted
	} else {
		r.position -= netted
	}
}

// updateSubmission reconciles fills against prof's ledger, shrinking or
// removing the matching standing order, and returns the total shares
// involved (whether they matched a known order or not) so the caller can
// fold them into position.
func (r *Router) updateSubmission(prof *profile, fills []domain.Fill) int64 {
	var queueShares, deleteShares int64
	for _, f := range fills {
		if o, ok := prof.orders[f.Ref]; ok {
			if o.shares == f.Shares {
				delete(prof.orders, f.Ref)
			} else {
				o.shares -= f.Shares
			}
			queueShares += f.Shares
		} else {
			deleteShares += f.Shares
		}
	}
	prof.submitted -= queueShares
	return queueShares + deleteShares
}

// net matches the head of openBuys against the head of openSells,
// repeatedly, realizing P&L for whatever quantity they share.
func (r *Router) net() {
	for len(r.openBuys) > 0 && len(r.openSells) > 0 {
		buy, sell := r.openBuys[0], r.openSells[0]
		switch {
		case buy.Shares == sell.Shares:
			r.pnl += float64(buy.Shares) * float64(sell.Price-buy.Price)
			r.openBuys = r.openBuys[1:]
			r.openSells = r.openSells[1:]
		case buy.Shares > sell.Shares:
			r.pnl += float64(sell.Shares) * float64(sell.Price-buy.Price)
			r.openBuys[0].Shares -= sell.Shares
			r.openSells = r.openSells[1:]
		default:
			r.pnl += float64(buy.Shares) * float64(sell.Price-buy.Price)
			r.openSells[0].Shares -= buy.Shares
			r.openBuys = r.openBuys[1:]
		}
	}
}
