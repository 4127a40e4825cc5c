// Package main implements a standalone seed script that populates the
// catalog database with realistic test data: a two-level category tree,
// products with tags and per-size stock buckets, and image metadata. It
// writes direct SQL against the schema the service migrates on startup.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --------------------------------------------------------------------------
// Seed data definitions
// --------------------------------------------------------------------------

type categoryDef struct {
	name     string
	slug     string
	children []categoryDef
	id       string // populated after insert
}

type productDef struct {
	name        string
	productType string
	price       int64 // paise
	category    string
	subcategory string
	tags        []string
	featured    bool
}

var categories = []categoryDef{
	{name: "Anime", slug: "anime", children: []categoryDef{
		{name: "Shonen", slug: "anime-shonen"},
		{name: "Seinen", slug: "anime-seinen"},
		{name: "Isekai", slug: "anime-isekai"},
	}},
	{name: "Gaming", slug: "gaming", children: []categoryDef{
		{name: "Retro", slug: "gaming-retro"},
		{name: "RPG", slug: "gaming-rpg"},
	}},
	{name: "Streetwear", slug: "streetwear"},
}

var sizes = []string{"S", "M", "L", "XL", "XXL"}

var products = []productDef{
	{name: "Titan Slayer Tee", productType: "t-shirt", price: 59900, category: "Anime", subcategory: "Shonen", tags: []string{"action", "black"}, featured: true},
	{name: "Cursed Energy Oversized Tee", productType: "oversized-t-shirt", price: 69900, category: "Anime", subcategory: "Shonen", tags: []string{"action", "purple"}},
	{name: "Lone Wanderer Hoodie", productType: "hoodie", price: 129900, category: "Anime", subcategory: "Seinen", tags: []string{"minimal", "grey"}},
	{name: "Reborn Hero Tee", productType: "t-shirt", price: 54900, category: "Anime", subcategory: "Isekai", tags: []string{"fantasy", "white"}},
	{name: "Pixel Quest Tee", productType: "t-shirt", price: 49900, category: "Gaming", subcategory: "Retro", tags: []string{"pixel", "navy"}, featured: true},
	{name: "Dungeon Crawler Oversized Tee", productType: "oversized-t-shirt", price: 64900, category: "Gaming", subcategory: "RPG", tags: []string{"fantasy", "black"}},
	{name: "Midnight District Hoodie", productType: "hoodie", price: 119900, category: "Streetwear", tags: []string{"minimal", "black"}},
	{name: "Neon Alley Tee", productType: "t-shirt", price: 52900, category: "Streetwear", tags: []string{"neon", "graphic"}},
}

// --------------------------------------------------------------------------
// Seeding
// --------------------------------------------------------------------------

func seedCategories(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	ids := make(map[string]string)

	for i := range categories {
		root := &categories[i]
		err := pool.QueryRow(ctx, `
			INSERT INTO categories (name, slug, level, is_active)
			VALUES ($1, $2, 0, TRUE)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
			root.name, root.slug,
		).Scan(&root.id)
		if err != nil {
			return nil, fmt.Errorf("insert category %s: %w", root.name, err)
		}
		ids[root.name] = root.id

		for j := range root.children {
			child := &root.children[j]
			err := pool.QueryRow(ctx, `
				INSERT INTO categories (name, slug, parent_id, level, is_active)
				VALUES ($1, $2, $3, 1, TRUE)
				ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
				RETURNING id`,
				child.name, child.slug, root.id,
			).Scan(&child.id)
			if err != nil {
				return nil, fmt.Errorf("insert subcategory %s: %w", child.name, err)
			}
			ids[child.name] = child.id
		}
	}

	return ids, nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, categoryIDs map[string]string, rng *rand.Rand) error {
	for _, p := range products {
		var subcategoryID any
		if p.subcategory != "" {
			subcategoryID = categoryIDs[p.subcategory]
		}

		var productID string
		err := pool.QueryRow(ctx, `
			INSERT INTO products (name, description, price, category_id, subcategory_id,
			                      product_type, tags, low_stock_threshold, is_featured)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 5, $8)
			RETURNING id`,
			p.name,
			fmt.Sprintf("Premium %s from the %s collection.", p.productType, p.category),
			p.price, categoryIDs[p.category], subcategoryID, p.productType, p.tags, p.featured,
		).Scan(&productID)
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.name, err)
		}

		for _, size := range sizes {
			qty := rng.Intn(40) + 5
			if _, err := pool.Exec(ctx, `
				INSERT INTO product_stock (product_id, size, quantity)
				VALUES ($1, $2, $3)
				ON CONFLICT (product_id, size) DO UPDATE SET quantity = EXCLUDED.quantity`,
				productID, size, qty,
			); err != nil {
				return fmt.Errorf("insert stock %s/%s: %w", p.name, size, err)
			}
		}

		if _, err := pool.Exec(ctx, `
			UPDATE products
			SET total_stock = (SELECT COALESCE(SUM(quantity), 0) FROM product_stock WHERE product_id = $1)
			WHERE id = $1`,
			productID,
		); err != nil {
			return fmt.Errorf("sync total stock %s: %w", p.name, err)
		}

		for n := 0; n < 2; n++ {
			if _, err := pool.Exec(ctx, `
				INSERT INTO product_images (product_id, url, caption, is_primary, sort_order)
				VALUES ($1, $2, $3, $4, $5)`,
				productID,
				fmt.Sprintf("https://cdn.example.com/products/%s/%d.webp", productID, n),
				p.name, n == 0, n,
			); err != nil {
				return fmt.Errorf("insert image %s: %w", p.name, err)
			}
		}

		log.Printf("seeded product %q (%s)", p.name, productID)
	}

	return nil
}

func main() {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("POSTGRES_USER", "catalog"),
		getEnv("POSTGRES_PASSWORD", "catalog_secret"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("CATALOG_DB_NAME", "catalog_db"),
		getEnv("POSTGRES_SSL_MODE", "disable"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	categoryIDs, err := seedCategories(ctx, pool)
	if err != nil {
		log.Fatalf("seed categories: %v", err)
	}
	log.Printf("seeded %d categories", len(categoryIDs))

	if err := seedProducts(ctx, pool, categoryIDs, rng); err != nil {
		log.Fatalf("seed products: %v", err)
	}

	log.Println("seed complete")
}
