package domain

import "time"

type TransactionKind string

const (
	KindCredit     TransactionKind = "credit"
	KindWithdrawal TransactionKind = "withdrawal"
)

type MovementDirection string

const (
	MovementAdd    MovementDirection = "add"
	MovementRemove MovementDirection = "remove"
)

// LedgerEntry is the immutable record of one credit or withdrawal
// against an account. Amount is always the resolved total, never a
// client-supplied estimate.
type LedgerEntry struct {
	ID         int64
	AccountID  int64
	ResidentID int64
	Kind       TransactionKind
	Amount     Money
	CreatedAt  time.Time
}

// LineItem ties a withdrawal's ledger entry to one purchased item.
type LineItem struct {
	ID            int64
	LedgerEntryID int64
	ItemID        int64
	Quantity      int
}

// InventoryMovement is the immutable audit record of a stock change.
type InventoryMovement struct {
	ID        int64
	ItemID    int64
	Quantity  int
	Direction MovementDirection
}

// RequestedItem is one (catalog code, quantity) pair from a withdrawal
// request, before resolution against the catalog.
type RequestedItem struct {
	UPC      string
	Quantity int
}

// TransactionRequest is the engine's input for one posting.
// AmountEstimate is advisory for withdrawals; the resolved total governs.
type TransactionRequest struct {
	RequestID      string
	Kind           TransactionKind
	AmountEstimate Money
	Items          []RequestedItem
}

// ResolvedLine is one withdrawal line after catalog resolution.
type ResolvedLine struct {
	Item     Item
	Quantity int
	Cost     Money
}

// TransactionUnit is everything one posting writes. The storage adapter
// commits it atomically or not at all.
type TransactionUnit struct {
	AccountID  int64
	OldBalance Money
	NewBalance Money
	Entry      LedgerEntry
	Lines      []ResolvedLine
}

// TransactionResult is the success payload returned to the caller.
type TransactionResult struct {
	AccountID  int64
	Kind       TransactionKind
	Amount     Money
	NewBalance Money
}
