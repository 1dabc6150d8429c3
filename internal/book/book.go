// Package book implements one side of a price-time-priority limit order
// book: a price-indexed set of FIFO queues, a volume ledger, and the lazy
// deletion / shadow-execution machinery needed to interleave real feed
// orders with agent-generated ones.
package book

import (
	"fmt"
	"math"

	"github.com/tidwall/btree"

	"ordersim/internal/domain"
)

// MaxLevels is the sanity guard against runaway inputs (spec §7
// VolumeLevelExplosion).
const MaxLevels = 20000

// level holds every resting order at a single price, in FIFO order. Orders[0]
// is always next to match once update() has run; tombstoned (invalid)
// entries elsewhere in the slice are skipped in place and evicted lazily.
type level struct {
	price  int64
	orders []*domain.Order
}

// Book is one side (ask or bid) of the market.
type Book struct {
	side Side

	levels  *btree.BTreeG[*level]
	byPrice map[int64]*level

	pool    map[int64]*domain.Order // ref -> live order
	refPool map[int64]struct{}      // ref -> shadow-consumed marker

	volumes map[int64]int64 // price -> cumulative valid shares
}

// Side is re-exported so callers importing book don't also need domain for
// the two constants most relevant to this package.
type Side = domain.Side

const (
	Ask = domain.Ask
	Bid = domain.Bid
)

// New creates an empty half-book for the given side.
func New(side Side) *Book {
	var less func(a, b *level) bool
	if side == Ask {
		less = func(a, b *level) bool { return a.price < b.price }
	} else {
		less = func(a, b *level) bool { return a.price > b.price }
	}
	return &Book{
		side:    side,
		levels:  btree.NewBTreeG(less),
		byPrice: make(map[int64]*level),
		pool:    make(map[int64]*domain.Order),
		refPool: make(map[int64]struct{}),
		volumes: make(map[int64]int64),
	}
}

// defaultQuote is the sentinel returned when a side is empty: +inf for asks
// so a bid never crosses an empty ask book, 0 for bids symmetrically.
func (b *Book) defaultQuote() int64 {
	if b.side == Ask {
		return math.MaxInt64
	}
	return 0
}

// Best returns the front price on this side, or the empty-side sentinel.
func (b *Book) Best() int64 {
	lvl, ok := b.levels.Min()
	if !ok {
		return b.defaultQuote()
	}
	return lvl.price
}

// QuoteVolume returns the cumulative shares resting at the best price.
func (b *Book) QuoteVolume() int64 {
	lvl, ok := b.levels.Min()
	if !ok {
		return 0
	}
	return b.volumes[lvl.price]
}

// Contains reports whether ref is a live order or a shadow-consumed one on
// this side.
func (b *Book) Contains(ref int64) bool {
	if _, ok := b.pool[ref]; ok {
		return true
	}
	_, ok := b.refPool[ref]
	return ok
}

// PriceOf returns the resting price of ref and whether it is currently live.
func (b *Book) PriceOf(ref int64) (int64, bool) {
	o, ok := b.pool[ref]
	if !ok {
		return 0, false
	}
	return o.Price, true
}

// PriceAtDepth returns the price of the depth-th level from the best (0 is
// the best price itself). If the side has fewer levels than requested, it
// returns the worst known level and false, so callers can still quote
// something sane against a thin book.
func (b *Book) PriceAtDepth(depth int64) (int64, bool) {
	b.update()
	if b.levels.Len() == 0 {
		return b.defaultQuote(), false
	}
	var price int64
	var i int64
	found := false
	b.levels.Scan(func(lvl *level) bool {
		price = lvl.price
		if i == depth {
			found = true
			return false
		}
		i++
		return true
	})
	return price, found
}

// update pops invalid orders from the front of the best level and drops
// fully-drained levels. Must run before any front-dependent operation.
func (b *Book) update() {
	for {
		lvl, ok := b.levels.Min()
		if !ok {
			return
		}
		for len(lvl.orders) > 0 && !lvl.orders[0].Valid {
			lvl.orders = lvl.orders[1:]
		}
		if len(lvl.orders) > 0 {
			return
		}
		b.levels.Delete(lvl)
		delete(b.byPrice, lvl.price)
	}
}

func (b *Book) frontOrder() (*domain.Order, bool) {
	lvl, ok := b.levels.Min()
	if !ok || len(lvl.orders) == 0 {
		return nil, false
	}
	return lvl.orders[0], true
}

// frontRealOrder returns the foremost live real order across the whole side,
// walking levels best-to-worst and each level front-to-back. Tombstones are
// skipped: update() only evicts them from the front of the best level, so an
// order cancelled or deleted from behind a level's front stays in the slice.
func (b *Book) frontRealOrder() *domain.Order {
	var found *domain.Order
	b.levels.Scan(func(lvl *level) bool {
		for _, o := range lvl.orders {
			if o.Valid && o.Real {
				found = o
				return false
			}
		}
		return true
	})
	return found
}

func (b *Book) removeFromPool(o *domain.Order) {
	o.Valid = false
	delete(b.pool, o.Ref)
}

// worseThanBest reports whether price is strictly behind the current best
// quote on this side (higher for asks, lower for bids).
func (b *Book) worseThanBest(price int64) bool {
	best := b.Best()
	if b.side == Ask {
		return price > best
	}
	return price < best
}

// AddOrder inserts ref at the tail of price's level, creating the level if
// absent. Precondition: ref not already present.
func (b *Book) AddOrder(ref, price, shares int64, real bool) error {
	if _, exists := b.pool[ref]; exists {
		return fmt.Errorf("%w: ref=%d", domain.ErrPrimaryKeyConflict, ref)
	}

	order := &domain.Order{Ref: ref, Price: price, Shares: shares, Valid: true, Real: real}
	b.pool[ref] = order

	lvl, ok := b.byPrice[price]
	if !ok {
		lvl = &level{price: price}
		b.byPrice[price] = lvl
		b.levels.Set(lvl)
		if b.levels.Len() > MaxLevels {
			return fmt.Errorf("%w: side=%v levels=%d", domain.ErrVolumeLevelExplosion, b.side, b.levels.Len())
		}
	}
	lvl.orders = append(lvl.orders, order)
	b.volumes[price] += shares
	return nil
}

// CancelOrder decrements shares (removing the order entirely if shares
// covers the remainder). Silently no-ops when ref is absent or shadowed.
func (b *Book) CancelOrder(ref, shares int64) error {
	if _, shadowed := b.refPool[ref]; shadowed {
		return nil
	}
	order, ok := b.pool[ref]
	if !ok {
		return nil
	}

	if shares >= order.Shares {
		b.volumes[order.Price] -= order.Shares
		b.removeFromPool(order)
		b.update()
	} else {
		order.Shares -= shares
		b.volumes[order.Price] -= shares
	}
	return nil
}

// DeleteOrder fully removes ref. Silently no-ops when ref is absent or
// shadowed.
func (b *Book) DeleteOrder(ref int64) error {
	if _, shadowed := b.refPool[ref]; shadowed {
		return nil
	}
	order, ok := b.pool[ref]
	if !ok {
		return nil
	}
	b.volumes[order.Price] -= order.Shares
	b.removeFromPool(order)
	b.update()
	return nil
}

// ReplaceOrder is delete(ref) followed by add(newRef, price, shares). A
// replace whose source was shadow-consumed is a no-op; a replace whose
// source is genuinely unknown is fatal (spec §7 ReplaceMissingSource).
func (b *Book) ReplaceOrder(ref, newRef, price, shares int64) error {
	if _, shadowed := b.refPool[ref]; shadowed {
		return nil
	}
	order, ok := b.pool[ref]
	if !ok {
		return fmt.Errorf("%w: ref=%d", domain.ErrReplaceMissingSource, ref)
	}
	b.volumes[order.Price] -= order.Shares
	b.removeFromPool(order)
	b.update()
	return b.AddOrder(newRef, price, shares, true)
}

// ExecuteOrder is the shadow-execution decision from spec §4.1: either the
// target order is decremented directly, or the book is walked from the
// front as a market order, shadow-consuming any agent orders standing ahead
// of the real target and parking any real orders implicitly consumed along
// the way into refPool.
func (b *Book) ExecuteOrder(ref, shares int64) ([]domain.Fill, error) {
	b.update()

	if _, shadowed := b.refPool[ref]; shadowed {
		return nil, nil
	}

	order, exists := b.pool[ref]
	frontReal := b.frontRealOrder()

	walk := domain.IsAgentRef(ref) ||
		!exists ||
		(exists && b.worseThanBest(order.Price)) ||
		(frontReal != nil && frontReal.Ref == ref)

	if walk {
		return b.executeMarketLocked(ref, shares, exists), nil
	}

	if shares > order.Shares {
		return nil, fmt.Errorf("%w: ref=%d requested=%d available=%d",
			domain.ErrExecutionExceeds, ref, shares, order.Shares)
	}
	order.Shares -= shares
	b.volumes[order.Price] -= shares
	if order.Shares == 0 {
		b.removeFromPool(order)
		b.update()
	}
	return nil, nil
}

// ExecuteMarket walks the book from the front, consuming shares units, and
// returns the fills the agent must be informed of.
func (b *Book) ExecuteMarket(ref, shares int64) []domain.Fill {
	b.update()
	return b.executeMarketLocked(ref, shares, false)
}

// executeMarketLocked walks the book from the front, consuming shares units.
// hasTarget is true when ref names an order resting somewhere in this book
// (the ExecuteOrder walk case): any order the walk passes before reaching
// ref is being shadow-cleared out of the way, not drawing on shares, and is
// swept in full regardless of how much of shares remains; only once the
// walk reaches ref itself does consumption count against the budget. When
// hasTarget is false (ExecuteMarket, crossing adds), ref never appears as a
// resting order and every unit consumed counts against shares from the
// first order onward.
func (b *Book) executeMarketLocked(ref, shares int64, hasTarget bool) []domain.Fill {
	var fills []domain.Fill
	passedTarget := !hasTarget
	for shares > 0 {
		front, ok := b.frontOrder()
		if !ok {
			break
		}
		if front.Ref == ref {
			passedTarget = true
		}

		var consumed int64
		if passedTarget {
			consumed = front.Shares
			if shares < consumed {
				consumed = shares
			}
			shares -= consumed
		} else {
			consumed = front.Shares
		}
		front.Shares -= consumed
		b.volumes[front.Price] -= consumed

		if front.Shares <= 0 {
			if front.Ref != ref {
				b.refPool[front.Ref] = struct{}{}
			}
			b.removeFromPool(front)
		}

		if domain.IsAgentRef(ref) || !front.Real {
			fills = append(fills, domain.Fill{Ref: front.Ref, Price: front.Price, Shares: consumed})
		}
		b.update()
	}
	delete(b.refPool, ref)
	return fills
}

// AssertInvariants checks the quantified invariants from spec §8. Intended
// for tests and debug runs, not the hot replay path.
func (b *Book) AssertInvariants() error {
	total := make(map[int64]int64)
	for ref, o := range b.pool {
		if !o.Valid || o.Shares <= 0 {
			return fmt.Errorf("pool invariant violated: ref=%d valid=%v shares=%d", ref, o.Valid, o.Shares)
		}
		if _, ok := b.byPrice[o.Price]; !ok {
			return fmt.Errorf("pool invariant violated: ref=%d price=%d has no level", ref, o.Price)
		}
		total[o.Price] += o.Shares
	}
	for ref := range b.refPool {
		if _, ok := b.pool[ref]; ok {
			return fmt.Errorf("ref %d present in both pool and refPool", ref)
		}
	}
	for price, vol := range b.volumes {
		if _, ok := b.byPrice[price]; ok && vol != total[price] {
			return fmt.Errorf("volume invariant violated: price=%d tracked=%d actual=%d", price, vol, total[price])
		}
	}
	return nil
}
