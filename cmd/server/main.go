package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/andresvel/commerce-sync/internal/bus"
	"github.com/andresvel/commerce-sync/internal/config"
	"github.com/andresvel/commerce-sync/internal/httpx"
	"github.com/andresvel/commerce-sync/internal/inventory"
	kafkax "github.com/andresvel/commerce-sync/internal/kafka"
	"github.com/andresvel/commerce-sync/internal/orders"
	"github.com/andresvel/commerce-sync/internal/redisx"
	"github.com/andresvel/commerce-sync/internal/sales"
	"github.com/andresvel/commerce-sync/internal/store"
)

func newStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemory(), func() {}, nil
	case "file":
		st, err := store.NewFile(cfg.DataDir)
		return st, func() {}, err
	case "redis":
		rdb := redisx.New(cfg.RedisAddr)
		return store.NewRedis(rdb), func() { _ = rdb.Close() }, nil
	case "postgres":
		pool, err := store.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		st, err := store.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	b := bus.New()

	// Domains. Registration order matters only for fan-out order, not
	// correctness: a domain that comes up late is caught by reconciliation.
	inv := inventory.NewService(st, b)
	if err := inv.SeedIfEmpty(ctx); err != nil {
		log.Fatalf("inventory seed: %v", err)
	}
	ord := orders.NewService(st, b, inv)
	sal := sales.NewService(st, b, inv)
	sal.Start()
	ord.Start()
	defer ord.Stop()
	defer sal.Stop()

	rec := sales.NewReconciler(sal, ord, cfg.ReconcileInterval)

	// Kafka relay for external display consumers, only when configured.
	var prod *kafkax.Producer
	var relay *bus.Relay
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 1024)
		prod.Start(ctx)
		relay = bus.NewRelay(b, prod)
		log.Printf("kafka relay enabled: brokers=%v topic=%s", cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Orders: ord, Inventory: inv}).Register(router)
	(&httpx.SalesHandler{Sales: sal}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP listening at %s (store=%s, reconcile every %s)", cfg.HTTPAddr, cfg.StoreBackend, cfg.ReconcileInterval)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error { return rec.Run(gctx) })

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Println("shutting down...")
	case <-gctx.Done():
	}

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
	if relay != nil {
		relay.Stop()
	}
	cancel() // stops reconciler and producer loop
	<-rec.Done()
	if prod != nil {
		prod.WaitClosed() // drain
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("exit: %v", err)
	}
}
