package tests

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/strafford/commissary/internal/adapter/storage"
	"github.com/strafford/commissary/internal/core/domain"
	"github.com/strafford/commissary/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	ledger  *service.LedgerService
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/commissary?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	ledger := service.NewLedgerService(storage.NewMySQLAdapter(db), storage.NewRedisAdapter(rdb), nil)

	return &testEnv{
		redis:  rdb,
		mysql:  db,
		ledger: ledger,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func (e *testEnv) seedAccount(t *testing.T, balance int64) int64 {
	t.Helper()
	result, err := e.mysql.Exec(`INSERT INTO accounts (resident_id, balance, is_deleted) VALUES (0, ?, 0)`, balance)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

func (e *testEnv) seedItem(t *testing.T, upc string, price int64, qty int) {
	t.Helper()
	_, err := e.mysql.Exec(`
		INSERT INTO items (upc, name, unit_price, quantity, version)
		VALUES (?, 'Integration Item', ?, ?, 0)
		ON DUPLICATE KEY UPDATE unit_price = ?, quantity = ?, version = 0`,
		upc, price, qty, price, qty)
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
}

func TestEndToEnd_CreditThenWithdrawal(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	accountID := env.seedAccount(t, 1200)
	env.seedItem(t, "e2e-soap", 300, 10)

	result, err := env.ledger.Post(ctx, accountID, domain.TransactionRequest{
		RequestID:      uuid.NewString(),
		Kind:           domain.KindCredit,
		AmountEstimate: 500,
	})
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if result.NewBalance != 1700 {
		t.Errorf("expected balance 1700, got %d", result.NewBalance)
	}

	result, err = env.ledger.Post(ctx, accountID, domain.TransactionRequest{
		RequestID: uuid.NewString(),
		Kind:      domain.KindWithdrawal,
		Items:     []domain.RequestedItem{{UPC: "e2e-soap", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("withdrawal failed: %v", err)
	}
	if result.Amount != 600 {
		t.Errorf("expected resolved amount 600, got %d", result.Amount)
	}
	if result.NewBalance != 1100 {
		t.Errorf("expected balance 1100, got %d", result.NewBalance)
	}

	entries, err := env.ledger.Entries(ctx, accountID, 10)
	if err != nil {
		t.Fatalf("entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	entry, lines, err := env.ledger.Entry(ctx, entries[0].ID)
	if err != nil || entry == nil {
		t.Fatalf("entry lookup failed: %v", err)
	}
	if entry.Kind == domain.KindWithdrawal && len(lines) != 1 {
		t.Errorf("expected 1 line item on withdrawal, got %d", len(lines))
	}
}

func TestEndToEnd_InsufficientFundsLeavesStateUntouched(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	accountID := env.seedAccount(t, 500)
	env.seedItem(t, "e2e-candy", 300, 10)

	_, err := env.ledger.Post(ctx, accountID, domain.TransactionRequest{
		RequestID: uuid.NewString(),
		Kind:      domain.KindWithdrawal,
		Items:     []domain.RequestedItem{{UPC: "e2e-candy", Quantity: 2}},
	})

	var noFunds *domain.InsufficientFundsError
	if !errors.As(err, &noFunds) {
		t.Fatalf("expected InsufficientFundsError, got: %v", err)
	}

	var balance int64
	env.mysql.QueryRow(`SELECT balance FROM accounts WHERE id = ?`, accountID).Scan(&balance)
	if balance != 500 {
		t.Errorf("balance changed on rejection: %d", balance)
	}

	var stock int
	env.mysql.QueryRow(`SELECT quantity FROM items WHERE upc = 'e2e-candy'`).Scan(&stock)
	if stock != 10 {
		t.Errorf("stock changed on rejection: %d", stock)
	}
}

func TestEndToEnd_ConcurrentWithdrawals(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	// Funds cover exactly 10 units; fire 25 concurrent single-unit
	// withdrawals and require exactly 10 winners.
	const unitPrice = 100
	const affordable = 10
	accountID := env.seedAccount(t, unitPrice*affordable)
	env.seedItem(t, "e2e-contended", unitPrice, 100)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Retry exhausted-conflict rejections: under this contention
			// the engine's bounded internal retries are not enough on
			// their own, and the caller-side retry is the documented
			// recovery for ErrConcurrencyConflict.
			for {
				_, err := env.ledger.Post(ctx, accountID, domain.TransactionRequest{
					RequestID: uuid.NewString(),
					Kind:      domain.KindWithdrawal,
					Items:     []domain.RequestedItem{{UPC: "e2e-contended", Quantity: 1}},
				})
				if errors.Is(err, domain.ErrConcurrencyConflict) {
					continue
				}
				if err == nil {
					successCount.Add(1)
				}
				return
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != affordable {
		t.Errorf("expected exactly %d successes, got %d", affordable, successCount.Load())
	}

	var balance int64
	env.mysql.QueryRow(`SELECT balance FROM accounts WHERE id = ?`, accountID).Scan(&balance)
	if balance != 0 {
		t.Errorf("expected final balance 0, got %d", balance)
	}
}
