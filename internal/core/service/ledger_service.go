package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/strafford/commissary/internal/core/domain"
	"github.com/strafford/commissary/internal/port"
)

var ErrDuplicateRequest = errors.New("duplicate request")

// maxCommitAttempts bounds transparent retries after optimistic-lock
// conflicts. Each attempt re-reads account and items, so a retry that
// still cannot pass validation surfaces the real rejection instead.
const maxCommitAttempts = 3

// LedgerService executes credits and withdrawals against resident
// accounts: validates funds, resolves inventory, and commits ledger,
// line-item, and movement records through one atomic unit.
type LedgerService struct {
	db       port.DatabaseRepository
	cache    port.CacheRepository
	events   port.EventPublisher
	resolver *InventoryResolver
}

func NewLedgerService(db port.DatabaseRepository, cache port.CacheRepository, events port.EventPublisher) *LedgerService {
	return &LedgerService{
		db:       db,
		cache:    cache,
		events:   events,
		resolver: NewInventoryResolver(db),
	}
}

// Post runs one transaction through the engine:
// validate account, resolve items (withdrawals), commit atomically.
// A rejected posting leaves no observable state behind.
func (s *LedgerService) Post(ctx context.Context, accountID int64, req domain.TransactionRequest) (*domain.TransactionResult, error) {
	if req.RequestID != "" && s.cache != nil {
		key := fmt.Sprintf("txn:%d:%s", accountID, req.RequestID)

		ok, err := s.cache.SetIdempotency(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}

		result, err := s.post(ctx, accountID, req)
		if err != nil {
			// Release the request ID so the client can retry a rejection.
			if clearErr := s.cache.ClearIdempotency(ctx, key); clearErr != nil {
				log.Printf("failed to clear idempotency key %s: %v", key, clearErr)
			}
		}
		return result, err
	}

	return s.post(ctx, accountID, req)
}

func (s *LedgerService) post(ctx context.Context, accountID int64, req domain.TransactionRequest) (*domain.TransactionResult, error) {
	var lastErr error

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		result, err := s.attempt(ctx, accountID, req)
		if errors.Is(err, port.ErrConflict) {
			lastErr = err
			continue
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
		if err == nil {
			s.publishCompleted(ctx, req, result)
		}
		return result, err
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", domain.ErrConcurrencyConflict, maxCommitAttempts, lastErr)
}

// attempt is one Validating -> Resolving -> Committing pass. It reads
// fresh state every time so conflict retries re-validate from scratch.
func (s *LedgerService) attempt(ctx context.Context, accountID int64, req domain.TransactionRequest) (*domain.TransactionResult, error) {
	account, err := s.db.GetAccount(ctx, accountID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "account lookup", Err: err}
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	if account.IsDeleted {
		return nil, domain.ErrAccountDeleted
	}

	unit := domain.TransactionUnit{
		AccountID:  account.ID,
		OldBalance: account.Balance,
	}
	var amount domain.Money

	switch req.Kind {
	case domain.KindCredit:
		if req.AmountEstimate <= 0 {
			return nil, domain.ErrInvalidAmount
		}
		if len(req.Items) > 0 {
			return nil, domain.ErrUnexpectedItems
		}
		amount = req.AmountEstimate
		unit.NewBalance = account.Balance.Add(amount)

	case domain.KindWithdrawal:
		if len(req.Items) == 0 {
			return nil, domain.ErrMissingItems
		}

		lines, total, err := s.resolver.Resolve(ctx, req.Items)
		if err != nil {
			return nil, err
		}

		// The client's estimate is advisory; the resolved total governs.
		if account.Balance < total {
			return nil, &domain.InsufficientFundsError{
				Available: account.Balance,
				Required:  total,
			}
		}

		amount = total
		unit.NewBalance = account.Balance.Sub(total)
		unit.Lines = lines

	default:
		return nil, fmt.Errorf("unknown transaction kind %q", req.Kind)
	}

	unit.Entry = domain.LedgerEntry{
		AccountID:  account.ID,
		ResidentID: account.ResidentID,
		Kind:       req.Kind,
		Amount:     amount,
		CreatedAt:  time.Now(),
	}

	entry, err := s.db.CommitTransaction(ctx, unit)
	if err != nil {
		if errors.Is(err, port.ErrConflict) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: "commit", Err: err}
	}

	return &domain.TransactionResult{
		AccountID:  account.ID,
		Kind:       entry.Kind,
		Amount:     entry.Amount,
		NewBalance: unit.NewBalance,
	}, nil
}

func (s *LedgerService) publishCompleted(ctx context.Context, req domain.TransactionRequest, result *domain.TransactionResult) {
	if s.events == nil {
		return
	}

	event := domain.TransactionCompleted{
		RequestID:  req.RequestID,
		AccountID:  result.AccountID,
		Kind:       result.Kind,
		Amount:     result.Amount.String(),
		NewBalance: result.NewBalance.String(),
		OccurredAt: time.Now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("failed to publish transaction event for account %d: %v", result.AccountID, err)
	}
}

// Restock adds stock for an item and records an Add movement.
func (s *LedgerService) Restock(ctx context.Context, upc string, quantity int) (*domain.Item, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	item, err := s.db.RestockItem(ctx, upc, quantity)
	if err != nil {
		var notFound *domain.ItemNotFoundError
		if errors.As(err, &notFound) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: "restock", Err: err}
	}
	return item, nil
}

// Balance returns an account's current balance.
func (s *LedgerService) Balance(ctx context.Context, accountID int64) (domain.Money, error) {
	account, err := s.db.GetAccount(ctx, accountID)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "account lookup", Err: err}
	}
	if account == nil {
		return 0, domain.ErrAccountNotFound
	}
	if account.IsDeleted {
		return 0, domain.ErrAccountDeleted
	}
	return account.Balance, nil
}

// Entries lists an account's ledger history, newest first.
func (s *LedgerService) Entries(ctx context.Context, accountID int64, limit int) ([]domain.LedgerEntry, error) {
	entries, err := s.db.ListEntriesByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "entry listing", Err: err}
	}
	return entries, nil
}

// Entry fetches one ledger entry with its line items.
func (s *LedgerService) Entry(ctx context.Context, entryID int64) (*domain.LedgerEntry, []domain.LineItem, error) {
	entry, lines, err := s.db.GetEntry(ctx, entryID)
	if err != nil {
		return nil, nil, &domain.PersistenceError{Op: "entry lookup", Err: err}
	}
	return entry, lines, nil
}

// Item looks up a catalog item by UPC.
func (s *LedgerService) Item(ctx context.Context, upc string) (*domain.Item, error) {
	item, err := s.db.GetItemByUPC(ctx, upc)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "item lookup", Err: err}
	}
	if item == nil {
		return nil, &domain.ItemNotFoundError{UPC: upc}
	}
	return item, nil
}
