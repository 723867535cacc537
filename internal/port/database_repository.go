package port

import (
	"context"
	"errors"

	"github.com/strafford/commissary/internal/core/domain"
)

// ErrConflict signals that a conditional update inside the atomic unit
// affected no rows: another writer got there first, or state changed
// between read and commit. The engine retries with fresh reads.
var ErrConflict = errors.New("optimistic lock conflict")

type DatabaseRepository interface {
	// GetAccount retrieves an account by ID, including soft-deleted ones.
	// Returns (nil, nil) when absent.
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)

	// GetItemByUPC retrieves a catalog item by its unique UPC.
	// Returns (nil, nil) when absent.
	GetItemByUPC(ctx context.Context, upc string) (*domain.Item, error)

	// CommitTransaction persists one posting's writes as a single atomic
	// unit: account balance, ledger entry, line items, and inventory
	// movements with item decrements. Returns ErrConflict when the account
	// balance or an item quantity no longer matches the unit's reads.
	CommitTransaction(ctx context.Context, unit domain.TransactionUnit) (*domain.LedgerEntry, error)

	// RestockItem adds quantity to an item's stock and records an Add
	// movement, atomically. Returns the updated item.
	RestockItem(ctx context.Context, upc string, quantity int) (*domain.Item, error)

	// ListEntriesByAccount returns an account's ledger entries, newest first.
	ListEntriesByAccount(ctx context.Context, accountID int64, limit int) ([]domain.LedgerEntry, error)

	// GetEntry returns one ledger entry with its line items.
	// Returns (nil, nil, nil) when absent.
	GetEntry(ctx context.Context, entryID int64) (*domain.LedgerEntry, []domain.LineItem, error)
}
