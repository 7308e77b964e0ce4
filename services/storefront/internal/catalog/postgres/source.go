// Package postgres loads the storefront catalog from PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/utafrali/lagosbazaar/pkg/database"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/catalog"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/domain"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	categoriesQuery = `
		SELECT name
		FROM storefront_categories
		ORDER BY sort_order, name`

	productsQuery = `
		SELECT id, name, price, category, image, rating, reviews,
		       short_description, full_description, is_new, is_best_seller
		FROM storefront_products
		ORDER BY sort_order, id`

	insertCategory = `
		INSERT INTO storefront_categories (name, sort_order)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`

	insertProduct = `
		INSERT INTO storefront_products (id, name, price, category, image, rating, reviews,
		                                 short_description, full_description, is_new, is_best_seller, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`
)

// Source reads the catalog tables. The sentinel category is not stored; Load
// prepends it.
type Source struct {
	db database.DBTX
}

// NewSource creates a catalog source over db.
func NewSource(db database.DBTX) *Source {
	return &Source{db: db}
}

// Load reads categories and products in sort order and builds a validated
// catalog.
func (s *Source) Load(ctx context.Context) (*catalog.Catalog, error) {
	categories, err := s.categories(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.products(ctx)
	if err != nil {
		return nil, err
	}
	c, err := catalog.New(products, categories)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	return c, nil
}

func (s *Source) categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, categoriesQuery)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := []string{domain.AllCategories}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (s *Source) products(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.Query(ctx, productsQuery)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var (
			p    domain.Product
			full *string
		)
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Price,
			&p.Category,
			&p.Image,
			&p.Rating,
			&p.Reviews,
			&p.ShortDescription,
			&full,
			&p.IsNew,
			&p.IsBestSeller,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if full != nil {
			p.FullDescription = *full
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// Migrate creates the catalog tables.
func Migrate(ctx context.Context, db database.TxBeginner, logger *slog.Logger) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	return database.RunMigrations(ctx, db, sub, logger)
}

// Seed inserts doc in one transaction. Rows that already exist are left
// untouched, so seeding is idempotent.
func Seed(ctx context.Context, db database.TxBeginner, doc catalog.Document) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}

	for i, name := range doc.Categories {
		if name == domain.AllCategories {
			continue
		}
		if _, err := tx.Exec(ctx, insertCategory, name, i); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("seed category %q: %w", name, err)
		}
	}

	for i, p := range doc.Products {
		var full *string
		if p.FullDescription != "" {
			full = &p.FullDescription
		}
		if _, err := tx.Exec(ctx, insertProduct,
			p.ID,
			p.Name,
			p.Price,
			p.Category,
			p.Image,
			p.Rating,
			p.Reviews,
			p.ShortDescription,
			full,
			p.IsNew,
			p.IsBestSeller,
			i,
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("seed product %q: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}
