package service

import (
	"context"

	"github.com/strafford/commissary/internal/core/domain"
	"github.com/strafford/commissary/internal/port"
)

// InventoryResolver maps requested (UPC, quantity) pairs to stocked items
// and their line costs. Read-only: stock is decremented only inside the
// storage adapter's atomic commit, after the whole withdrawal validates.
type InventoryResolver struct {
	db port.DatabaseRepository
}

func NewInventoryResolver(db port.DatabaseRepository) *InventoryResolver {
	return &InventoryResolver{db: db}
}

// Resolve looks up every requested item and computes the grand total.
// All-or-nothing: any unregistered UPC or stock shortfall fails the whole
// request, with no writes for the items that did resolve.
func (r *InventoryResolver) Resolve(ctx context.Context, requested []domain.RequestedItem) ([]domain.ResolvedLine, domain.Money, error) {
	// Merge duplicate UPCs first so sufficiency is checked against the
	// aggregate requested quantity, not line by line.
	merged := make([]domain.RequestedItem, 0, len(requested))
	index := make(map[string]int, len(requested))
	for _, req := range requested {
		if req.Quantity <= 0 {
			return nil, 0, domain.ErrInvalidAmount
		}
		if i, ok := index[req.UPC]; ok {
			merged[i].Quantity += req.Quantity
			continue
		}
		index[req.UPC] = len(merged)
		merged = append(merged, req)
	}

	lines := make([]domain.ResolvedLine, 0, len(merged))
	var total domain.Money

	for _, req := range merged {
		item, err := r.db.GetItemByUPC(ctx, req.UPC)
		if err != nil {
			return nil, 0, &domain.PersistenceError{Op: "item lookup", Err: err}
		}
		if item == nil {
			return nil, 0, &domain.ItemNotFoundError{UPC: req.UPC}
		}
		if item.QuantityOnHand < req.Quantity {
			return nil, 0, &domain.InsufficientStockError{
				UPC:       req.UPC,
				Available: item.QuantityOnHand,
				Requested: req.Quantity,
			}
		}

		cost := item.UnitPrice.MulQuantity(req.Quantity)
		lines = append(lines, domain.ResolvedLine{
			Item:     *item,
			Quantity: req.Quantity,
			Cost:     cost,
		})
		total = total.Add(cost)
	}

	return lines, total, nil
}
