// Command loadgen fires concurrent withdrawals at one account and one
// item to demonstrate that the ledger never double-spends balance or
// oversells stock under contention.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/strafford/commissary/internal/adapter/storage"
	"github.com/strafford/commissary/internal/core/domain"
	"github.com/strafford/commissary/internal/core/service"
)

const (
	itemUPC       = "loadgen-item"
	unitPrice     = 300 // cents
	initialStock  = 20
	startBalance  = 20 * unitPrice
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/commissary?parseTime=true"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	accountID := seed(ctx, db)

	ledger := service.NewLedgerService(storage.NewMySQLAdapter(db), storage.NewRedisAdapter(rdb), nil)

	var successCount atomic.Int32
	var failCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for {
				req := domain.TransactionRequest{
					RequestID: uuid.NewString(),
					Kind:      domain.KindWithdrawal,
					Items:     []domain.RequestedItem{{UPC: itemUPC, Quantity: 1}},
				}
				_, err := ledger.Post(ctx, accountID, req)
				if errors.Is(err, domain.ErrConcurrencyConflict) {
					continue
				}
				if err == nil {
					successCount.Add(1)
				} else {
					failCount.Add(1)
				}
				return
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	var balance int64
	var stock int
	db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, accountID).Scan(&balance)
	db.QueryRowContext(ctx, `SELECT quantity FROM items WHERE upc = ?`, itemUPC).Scan(&stock)

	fmt.Println("========== LOADGEN RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Final Balance:    %d cents\n", balance)
	fmt.Printf("Final Stock:      %d\n", stock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=====================================")

	if success == initialStock && balance == 0 && stock == 0 {
		fmt.Printf("PASS: exactly %d withdrawals succeeded, funds and stock fully consumed\n", initialStock)
	} else {
		fmt.Printf("FAIL: expected %d successes with zero balance and stock, got %d successes, balance %d, stock %d\n",
			initialStock, success, balance, stock)
	}
}

func seed(ctx context.Context, db *sql.DB) int64 {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO items (upc, name, unit_price, quantity, version)
		VALUES (?, 'Loadgen Snack', ?, ?, 0)
		ON DUPLICATE KEY UPDATE unit_price = ?, quantity = ?, version = 0`,
		itemUPC, unitPrice, initialStock, unitPrice, initialStock,
	); err != nil {
		log.Fatalf("failed to seed item: %v", err)
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO accounts (resident_id, balance, is_deleted) VALUES (0, ?, 0)`,
		startBalance,
	)
	if err != nil {
		log.Fatalf("failed to seed account: %v", err)
	}
	accountID, err := result.LastInsertId()
	if err != nil {
		log.Fatalf("failed to read account id: %v", err)
	}
	return accountID
}
