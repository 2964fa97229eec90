package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Keksclan/goNutStash/catalog"
	"github.com/Keksclan/goNutStash/latency"
)

// Postgres is the durable catalog store. Every Get pays the injected delay
// before touching the pool, modeling a network-bound database round trip.
type Postgres struct {
	pool  *pgxpool.Pool
	delay latency.Delay
}

// NewPostgres connects a pgx pool, verifies connectivity and ensures the
// products schema exists. delay runs before each Get; pass nil for no delay.
func NewPostgres(ctx context.Context, dsn string, delay latency.Delay) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	if delay == nil {
		delay = latency.None
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &Postgres{pool: pool, delay: delay}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			sku TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			discount DOUBLE PRECISION NOT NULL DEFAULT 0,
			inventory INTEGER NOT NULL DEFAULT 0,
			variants JSONB,
			warehouse_stock JSONB,
			rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_history JSONB,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Get looks up a product by SKU. Returns ErrNotFound when no row matches.
func (s *Postgres) Get(ctx context.Context, key string) (*catalog.Product, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`SELECT sku, name, price, discount, inventory, variants, warehouse_stock, rating, price_history
		 FROM products WHERE sku = $1`, key)

	var (
		p        catalog.Product
		variants []byte
		stock    []byte
		history  []byte
	)
	err := row.Scan(&p.SKU, &p.Name, &p.Price, &p.Discount, &p.Inventory,
		&variants, &stock, &p.Rating, &history)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("query product %q: %w", key, err)
	}

	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &p.Variants); err != nil {
			return nil, fmt.Errorf("decode variants for %q: %w", key, err)
		}
	}
	if len(stock) > 0 {
		if err := json.Unmarshal(stock, &p.WarehouseStock); err != nil {
			return nil, fmt.Errorf("decode warehouse stock for %q: %w", key, err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &p.PriceHistory); err != nil {
			return nil, fmt.Errorf("decode price history for %q: %w", key, err)
		}
	}
	return &p, nil
}

// Seed inserts n demo products SKU-1..SKU-n, overwriting existing rows so the
// command is safe to rerun.
func (s *Postgres) Seed(ctx context.Context, n int) error {
	now := time.Now().UTC()
	for i := 1; i <= n; i++ {
		p := demoProduct(i, now)

		variants, err := json.Marshal(p.Variants)
		if err != nil {
			return fmt.Errorf("encode variants for %s: %w", p.SKU, err)
		}
		stock, err := json.Marshal(p.WarehouseStock)
		if err != nil {
			return fmt.Errorf("encode warehouse stock for %s: %w", p.SKU, err)
		}
		history, err := json.Marshal(p.PriceHistory)
		if err != nil {
			return fmt.Errorf("encode price history for %s: %w", p.SKU, err)
		}

		_, err = s.pool.Exec(ctx,
			`INSERT INTO products (sku, name, price, discount, inventory, variants, warehouse_stock, rating, price_history, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (sku) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				discount = EXCLUDED.discount,
				inventory = EXCLUDED.inventory,
				variants = EXCLUDED.variants,
				warehouse_stock = EXCLUDED.warehouse_stock,
				rating = EXCLUDED.rating,
				price_history = EXCLUDED.price_history,
				updated_at = EXCLUDED.updated_at`,
			p.SKU, p.Name, p.Price, p.Discount, p.Inventory,
			variants, stock, p.Rating, history, now)
		if err != nil {
			return fmt.Errorf("seed %s: %w", p.SKU, err)
		}
	}
	return nil
}

// demoProduct generates a deterministic product for index i so repeated
// seeds produce identical data.
func demoProduct(i int, now time.Time) *catalog.Product {
	price := float64(200 + i*35)
	return &catalog.Product{
		SKU:       fmt.Sprintf("SKU-%d", i),
		Name:      fmt.Sprintf("Acorn Gadget %d", i),
		Price:     price,
		Discount:  float64(i % 30),
		Inventory: 10 + i%90,
		Variants:  []string{"oak", "maple", "walnut"}[:1+i%3],
		WarehouseStock: map[string]int{
			"north": i % 50,
			"south": (i * 3) % 50,
		},
		Rating: 1 + float64(i%9)/2,
		PriceHistory: []catalog.PricePoint{
			{Price: price * 1.1, At: now.AddDate(0, -2, 0)},
			{Price: price, At: now.AddDate(0, -1, 0)},
		},
	}
}
