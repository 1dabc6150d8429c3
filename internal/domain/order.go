package domain

import "fmt"

// Order is a single resting or shadow-tracked order on one side of the book.
//
// Ref is the opaque identifier: non-negative for real (historical) orders,
// negative for agent-generated ones. Valid is flipped to false on logical
// removal; the order is evicted from its Level's queue lazily.
type Order struct {
	Ref    int64
	Price  int64
	Shares int64
	Valid  bool
	Real   bool
}

func (o *Order) String() string {
	return fmt.Sprintf(
		`Ref:    %d
Price:  %d
Shares: %d
Valid:  %v
Real:   %v`,
		o.Ref, o.Price, o.Shares, o.Valid, o.Real,
	)
}

// Fill is an agent-visible execution the SOR must reconcile: ref received a
// fill of Shares at Price.
type Fill struct {
	Ref    int64
	Price  int64
	Shares int64
}

func (f Fill) String() string {
	return fmt.Sprintf("Fill[ref=%d price=%d shares=%d]", f.Ref, f.Price, f.Shares)
}
