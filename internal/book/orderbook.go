package book

import (
	"errors"

	"github.com/tidwall/btree"

	"predictex/internal/types"
)

var (
	// ErrNotFound is returned by Cancel when the order_id is not
	// resting on this book — a consistency violation that is logged
	// and ignored by the caller, never propagated as a fault.
	ErrNotFound = errors.New("order not found")
	// ErrAlreadyActive is returned by InsertResting if the order_id is
	// already indexed on this book.
	ErrAlreadyActive = errors.New("order already active")
	// ErrBadOrder is returned by InsertResting for preconditions it
	// requires callers (internal/market) to have already checked.
	ErrBadOrder = errors.New("order precondition violated")
)

// Levels is the ordered price->PriceLevel map backing one side of a
// book: descending for bids, ascending for asks.
type Levels = btree.BTreeG[*PriceLevel]

// Fill is one resting order's contribution to a MatchAgainst call.
// Maker is the resting order itself, already mutated to reflect this
// fill (FilledQuantity increased) — callers read whatever fields they
// need from it rather than this struct duplicating them.
type Fill struct {
	Maker        *types.Order
	Quantity     uint64
	MakerRemoved bool // true if the maker order is now fully filled
}

// MatchResult is the outcome of walking the opposite side against an
// incoming order.
type MatchResult struct {
	Fills     []Fill
	Remainder *types.Order // nil if the incoming order fully matched
}

// CancelResult reports what was removed by Cancel.
type CancelResult struct {
	RemainingQuantity uint64
	FilledValue       string // USDC-equivalent of FilledQuantity at cancel time
	OwnerUserID       int64
	OwnerPrivyID      string
}

// OrderBook maintains price-time priority for a single symbol: two
// sorted price ladders (bids descending, asks ascending) plus an
// order_id index that locates an order's price level for cancellation.
// All operations are single-threaded, invoked only from the owning
// market's goroutine in market.Engine — no internal locking.
type OrderBook struct {
	Symbol types.Symbol
	Bids   *Levels
	Asks   *Levels

	index map[string]locator
}

type locator struct {
	side  types.Side
	price int32
}

// New creates an empty order book for symbol.
func New(symbol types.Symbol) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price > b.Price })
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price < b.Price })
	return &OrderBook{
		Symbol: symbol,
		Bids:   bids,
		Asks:   asks,
		index:  make(map[string]locator),
	}
}

func (b *OrderBook) levelsFor(side types.Side) *Levels {
	if side == types.Buy {
		return b.Bids
	}
	return b.Asks
}

// InsertResting appends order to the tail of its price level. Precondition:
// 0 <= FilledQuantity < Quantity and OrderType == LimitOrder.
func (b *OrderBook) InsertResting(order *types.Order) error {
	if order.FilledQuantity >= order.Quantity {
		return ErrBadOrder
	}
	if _, exists := b.index[order.OrderID]; exists {
		return ErrAlreadyActive
	}

	levels := b.levelsFor(order.Side)
	if level, ok := levels.GetMut(&PriceLevel{Price: order.Price}); ok {
		level.Orders = append(level.Orders, order)
	} else {
		levels.Set(&PriceLevel{Price: order.Price, Orders: []*types.Order{order}})
	}
	b.index[order.OrderID] = locator{side: order.Side, price: order.Price}
	return nil
}

// Cancel removes whatever remains of order_id from its resting level.
// No partial cancel: the entire remaining quantity is pulled.
func (b *OrderBook) Cancel(orderID string) (CancelResult, error) {
	loc, ok := b.index[orderID]
	if !ok {
		return CancelResult{}, ErrNotFound
	}
	levels := b.levelsFor(loc.side)
	level, ok := levels.GetMut(&PriceLevel{Price: loc.price})
	if !ok {
		delete(b.index, orderID)
		return CancelResult{}, ErrNotFound
	}

	for i, o := range level.Orders {
		if o.OrderID != orderID {
			continue
		}
		remaining := o.Remaining()
		filledValue := types.USDCAmount(loc.price, o.FilledQuantity)
		owner, ownerPrivy := o.UserID, o.PrivyID
		level.removeAt(i)
		if level.isEmpty() {
			levels.Delete(&PriceLevel{Price: loc.price})
		}
		delete(b.index, orderID)
		return CancelResult{
			RemainingQuantity: remaining,
			FilledValue:       filledValue,
			OwnerUserID:       owner,
			OwnerPrivyID:      ownerPrivy,
		}, nil
	}

	delete(b.index, orderID)
	return CancelResult{}, ErrNotFound
}

// MatchAgainst walks the opposite side of the book from the best
// price, filling incoming in FIFO order within each crossing level. A
// fully consumed resting order is removed from the index and the
// level; a partially filled resting order is left at the head of its
// queue. incoming is mutated in place (FilledQuantity increases) and
// is never itself inserted — callers decide whether to rest the
// remainder.
func (b *OrderBook) MatchAgainst(incoming *types.Order) MatchResult {
	opposite := types.Buy
	if incoming.Side == types.Buy {
		opposite = types.Sell
	}
	return matchWalk(b, b.levelsFor(opposite), incoming, func(levelPrice int32) bool {
		return b.crosses(incoming, levelPrice)
	})
}

// MatchCross walks this book's side identified by incoming.Side (the
// sibling-book cross rule matches Buy-vs-Buy and Sell-vs-Sell, not
// opposite sides) and fills against it wherever crossPredicate(level
// price) holds. Used by internal/market to drive the Yes/No
// price-sum cross rule without this package knowing about markets.
func (b *OrderBook) MatchCross(incoming *types.Order, crossPredicate func(levelPrice int32) bool) MatchResult {
	return matchWalk(b, b.levelsFor(incoming.Side), incoming, crossPredicate)
}

func matchWalk(b *OrderBook, levels *Levels, incoming *types.Order, crosses func(levelPrice int32) bool) MatchResult {
	var result MatchResult
	for incoming.Remaining() > 0 {
		level, ok := levels.MinMut()
		if !ok {
			break
		}
		if !crosses(level.Price) {
			break
		}

		for incoming.Remaining() > 0 && len(level.Orders) > 0 {
			maker := level.Orders[0]
			qty := min(incoming.Remaining(), maker.Remaining())

			incoming.Fill(qty)
			maker.Fill(qty)

			fill := Fill{Maker: maker, Quantity: qty}

			if maker.IsFilled() {
				fill.MakerRemoved = true
				level.removeAt(0)
				delete(b.index, maker.OrderID)
			}
			result.Fills = append(result.Fills, fill)
		}

		if level.isEmpty() {
			levels.Delete(&PriceLevel{Price: level.Price})
		}
	}

	if incoming.Remaining() > 0 {
		result.Remainder = incoming
	}
	return result
}

// crosses reports whether a level at levelPrice is marketable against
// incoming.
func (b *OrderBook) crosses(incoming *types.Order, levelPrice int32) bool {
	if incoming.OrderType == types.MarketOrder {
		return true
	}
	if incoming.Side == types.Buy {
		return incoming.Price >= levelPrice
	}
	return incoming.Price <= levelPrice
}

// WouldSelfMatch reports whether filling incoming via MatchAgainst
// would touch a resting order owned by incoming.UserID, without
// mutating the book. Read-only twin of MatchAgainst's opposite-side
// walk, used by internal/market to enforce the reject-on-self-match
// policy before committing a match.
func (b *OrderBook) WouldSelfMatch(incoming *types.Order) bool {
	opposite := types.Buy
	if incoming.Side == types.Buy {
		opposite = types.Sell
	}
	return wouldSelfMatchWalk(b.levelsFor(opposite), incoming, func(levelPrice int32) bool {
		return b.crosses(incoming, levelPrice)
	})
}

// WouldSelfMatchCross is WouldSelfMatch's twin for MatchCross: it
// scans this book's incoming.Side ladder (the sibling-book cross
// walk) under crossPredicate.
func (b *OrderBook) WouldSelfMatchCross(incoming *types.Order, crossPredicate func(levelPrice int32) bool) bool {
	return wouldSelfMatchWalk(b.levelsFor(incoming.Side), incoming, crossPredicate)
}

func wouldSelfMatchWalk(levels *Levels, incoming *types.Order, crosses func(levelPrice int32) bool) bool {
	remaining := incoming.Remaining()
	selfMatch := false
	levels.Scan(func(level *PriceLevel) bool {
		if remaining == 0 || !crosses(level.Price) {
			return false
		}
		for _, o := range level.Orders {
			if remaining == 0 {
				break
			}
			if o.UserID == incoming.UserID {
				selfMatch = true
				return false
			}
			if o.Remaining() >= remaining {
				remaining = 0
			} else {
				remaining -= o.Remaining()
			}
		}
		return remaining > 0
	})
	return selfMatch
}

// Depth returns the top nLevels on each side.
func (b *OrderBook) Depth(nLevels int) (bids, asks []types.PriceLevelView) {
	collect := func(levels *Levels) []types.PriceLevelView {
		out := make([]types.PriceLevelView, 0, nLevels)
		levels.Scan(func(level *PriceLevel) bool {
			if len(out) >= nLevels {
				return false
			}
			out = append(out, types.PriceLevelView{
				Price:         types.FormatPrice(level.Price),
				PriceScaled:   level.Price,
				TotalQuantity: types.FormatQuantity(level.TotalQuantity()),
				OrderCount:    level.OrderCount(),
			})
			return true
		})
		return out
	}
	return collect(b.Bids), collect(b.Asks)
}

// AllOrders returns every resting order on this book, bids then asks,
// each level in price-time priority — used via Market.RestingOrders by
// manager.Manager.Snapshot to persist recoverable state.
func (b *OrderBook) AllOrders() []types.Order {
	var out []types.Order
	collect := func(levels *Levels) {
		levels.Scan(func(level *PriceLevel) bool {
			for _, o := range level.Orders {
				out = append(out, *o)
			}
			return true
		})
	}
	collect(b.Bids)
	collect(b.Asks)
	return out
}

// Stats reports aggregate book sizes for observability.
type Stats struct {
	Symbol         types.Symbol
	BidLevels      int
	AskLevels      int
	TotalBidOrders int
	TotalAskOrders int
	TotalBidVolume uint64
	TotalAskVolume uint64
}

func (b *OrderBook) StatsSnapshot() Stats {
	s := Stats{Symbol: b.Symbol}
	b.Bids.Scan(func(level *PriceLevel) bool {
		s.BidLevels++
		s.TotalBidOrders += level.OrderCount()
		s.TotalBidVolume += level.TotalQuantity()
		return true
	})
	b.Asks.Scan(func(level *PriceLevel) bool {
		s.AskLevels++
		s.TotalAskOrders += level.OrderCount()
		s.TotalAskVolume += level.TotalQuantity()
		return true
	})
	return s
}

// BestPrice returns the top-of-book scaled price for side, and whether
// one exists.
func (b *OrderBook) BestPrice(side types.Side) (int32, bool) {
	level, ok := b.levelsFor(side).MinMut()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// BestBuyLevelsDescending scans the bid side from the highest price
// down, invoking fn with each level until fn returns false. Used by
// internal/market for cross-matching against a sibling book's bid
// side.
func (b *OrderBook) BestBuyLevelsDescending(fn func(level *PriceLevel) bool) {
	b.Bids.Scan(fn)
}

// BestSellLevelsAscending scans the ask side from the lowest price up.
func (b *OrderBook) BestSellLevelsAscending(fn func(level *PriceLevel) bool) {
	b.Asks.Scan(fn)
}

