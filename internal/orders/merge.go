package orders

import (
	"sort"

	"github.com/baghaven/storefront/internal/model"
)

// Merge combines cached and remote orders by id. Cached orders are tagged
// local, remote ones remote, and a remote copy replaces a cached order with
// the same id. The result is sorted newest first; orders without a timestamp
// come last, ties are broken by id descending. Orders without an id are
// dropped. Merge does not modify its inputs.
func Merge(cached, remote []model.Order) []model.Order {
	byID := make(map[string]model.Order, len(cached)+len(remote))
	for _, o := range cached {
		if o.ID == "" {
			continue
		}
		o.Source = model.SourceLocal
		byID[o.ID] = o
	}
	for _, o := range remote {
		if o.ID == "" {
			continue
		}
		o.Source = model.SourceRemote
		byID[o.ID] = o
	}

	out := make([]model.Order, 0, len(byID))
	for _, o := range byID {
		out = append(out, o)
	}
	sortOrders(out)
	return out
}

func sortOrders(orders []model.Order) {
	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		aT, bT := !a.CreatedAt.IsZero(), !b.CreatedAt.IsZero()
		if aT != bT {
			return aT
		}
		if aT && !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
