package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/strafford/commissary/internal/adapter/events"
	"github.com/strafford/commissary/internal/adapter/handler"
	"github.com/strafford/commissary/internal/adapter/storage"
	"github.com/strafford/commissary/internal/core/service"
	"github.com/strafford/commissary/internal/port"
)

const kafkaTopic = "transaction_completed"

func main() {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	httpAddr := getenv("HTTP_ADDR", ":8080")
	mysqlDSN := getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/commissary?parseTime=true")
	redisAddr := getenv("REDIS_ADDR", "localhost:6379")
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	var publisher port.EventPublisher
	var kafkaPublisher *events.KafkaPublisher
	if kafkaBrokers != "" {
		kafkaPublisher = events.NewKafkaPublisher(strings.Split(kafkaBrokers, ","), kafkaTopic)
		publisher = kafkaPublisher
		log.Printf("publishing %s events to %s", kafkaTopic, kafkaBrokers)
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	ledgerService := service.NewLedgerService(mysqlAdapter, redisAdapter, publisher)

	httpHandler := handler.NewHTTPHandler(ledgerService)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", httpHandler.HealthCheck)
	mux.HandleFunc("POST /api/accounts/{id}/transactions", httpHandler.PostTransaction)
	mux.HandleFunc("GET /api/accounts/{id}/transactions", httpHandler.ListTransactions)
	mux.HandleFunc("GET /api/accounts/{id}/balance", httpHandler.GetBalance)
	mux.HandleFunc("GET /api/transactions/{id}", httpHandler.GetTransaction)
	mux.HandleFunc("GET /api/items/{upc}", httpHandler.GetItem)
	mux.HandleFunc("POST /api/items/{upc}/restock", httpHandler.Restock)

	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	if kafkaPublisher != nil {
		kafkaPublisher.Close()
	}
	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
