package service

import (
	"context"
	"errors"
	"testing"

	"github.com/strafford/commissary/internal/core/domain"
)

func TestResolve_Totals(t *testing.T) {
	db := newMockDB()
	seedItem(db, 1, "111", 150, 10)
	seedItem(db, 2, "222", 250, 10)
	resolver := NewInventoryResolver(db)

	lines, total, err := resolver.Resolve(context.Background(), []domain.RequestedItem{
		{UPC: "111", Quantity: 3}, // 450
		{UPC: "222", Quantity: 2}, // 500
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if total != 950 {
		t.Errorf("expected total 950, got %d", total)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Cost != 450 || lines[1].Cost != 500 {
		t.Errorf("unexpected line costs: %d, %d", lines[0].Cost, lines[1].Cost)
	}
}

func TestResolve_AllOrNothing(t *testing.T) {
	db := newMockDB()
	seedItem(db, 1, "111", 150, 10)
	resolver := NewInventoryResolver(db)

	// Unknown UPC after a resolvable one still fails the whole request.
	_, _, err := resolver.Resolve(context.Background(), []domain.RequestedItem{
		{UPC: "111", Quantity: 1},
		{UPC: "missing", Quantity: 1},
	})

	var notFound *domain.ItemNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ItemNotFoundError, got: %v", err)
	}
}

func TestResolve_InsufficientStock(t *testing.T) {
	db := newMockDB()
	seedItem(db, 1, "111", 150, 2)
	resolver := NewInventoryResolver(db)

	_, _, err := resolver.Resolve(context.Background(), []domain.RequestedItem{
		{UPC: "111", Quantity: 3},
	})

	var noStock *domain.InsufficientStockError
	if !errors.As(err, &noStock) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if noStock.UPC != "111" || noStock.Available != 2 || noStock.Requested != 3 {
		t.Errorf("unexpected error details: %+v", noStock)
	}
}

func TestResolve_DuplicateUPCAggregated(t *testing.T) {
	db := newMockDB()
	seedItem(db, 1, "111", 300, 1)
	resolver := NewInventoryResolver(db)

	// Two lines of the same item must be checked as one aggregate
	// quantity, not line by line against the same stock.
	_, _, err := resolver.Resolve(context.Background(), []domain.RequestedItem{
		{UPC: "111", Quantity: 1},
		{UPC: "111", Quantity: 1},
	})

	var noStock *domain.InsufficientStockError
	if !errors.As(err, &noStock) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if noStock.Available != 1 || noStock.Requested != 2 {
		t.Errorf("expected available 1, requested 2, got %d/%d", noStock.Available, noStock.Requested)
	}
}

func TestResolve_DuplicateUPCMergesLines(t *testing.T) {
	db := newMockDB()
	seedItem(db, 1, "111", 150, 5)
	resolver := NewInventoryResolver(db)

	lines, total, err := resolver.Resolve(context.Background(), []domain.RequestedItem{
		{UPC: "111", Quantity: 2},
		{UPC: "111", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if len(lines) != 1 {
		t.Fatalf("expected duplicate UPCs merged into 1 line, got %d", len(lines))
	}
	if lines[0].Quantity != 3 {
		t.Errorf("expected merged quantity 3, got %d", lines[0].Quantity)
	}
	if total != 450 {
		t.Errorf("expected total 450, got %d", total)
	}
}

func TestResolve_NonPositiveQuantity(t *testing.T) {
	db := newMockDB()
	seedItem(db, 1, "111", 150, 10)
	resolver := NewInventoryResolver(db)

	_, _, err := resolver.Resolve(context.Background(), []domain.RequestedItem{
		{UPC: "111", Quantity: 0},
	})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got: %v", err)
	}
}

func TestResolve_ReadOnly(t *testing.T) {
	db := newMockDB()
	seedItem(db, 1, "111", 150, 10)
	resolver := NewInventoryResolver(db)

	if _, _, err := resolver.Resolve(context.Background(), []domain.RequestedItem{
		{UPC: "111", Quantity: 4},
	}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if db.items["111"].QuantityOnHand != 10 {
		t.Errorf("resolution must not decrement stock, got %d", db.items["111"].QuantityOnHand)
	}
	if len(db.movements) != 0 {
		t.Errorf("resolution must not record movements, got %d", len(db.movements))
	}
}
