// Package book implements the per-symbol limit order book: a
// price-time-priority ladder with FIFO queues at each price level,
// generalized to the two-sided Yes/No token book internal/market drives.
package book

import "predictex/internal/types"

// PriceLevel is a single price's FIFO queue of resting orders, plus
// its derived totals.
type PriceLevel struct {
	Price  int32
	Orders []*types.Order
}

// TotalQuantity is the sum of remaining quantity across every order
// resting at this level.
func (pl *PriceLevel) TotalQuantity() uint64 {
	var total uint64
	for _, o := range pl.Orders {
		total += o.Remaining()
	}
	return total
}

// OrderCount is the number of orders resting at this level.
func (pl *PriceLevel) OrderCount() int {
	return len(pl.Orders)
}

func (pl *PriceLevel) isEmpty() bool {
	return len(pl.Orders) == 0
}

// removeAt deletes the order at index i, preserving FIFO order of the
// remainder.
func (pl *PriceLevel) removeAt(i int) {
	pl.Orders = append(pl.Orders[:i], pl.Orders[i+1:]...)
}
