// Package catalog holds the immutable product list and ordered category list
// the storefront browses.
package catalog

import (
	"fmt"

	apperrors "github.com/utafrali/lagosbazaar/pkg/errors"
	"github.com/utafrali/lagosbazaar/pkg/slug"
	"github.com/utafrali/lagosbazaar/pkg/validator"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/domain"
)

// Catalog is safe for concurrent use because it is never mutated after New.
type Catalog struct {
	products   []domain.Product
	categories []string
	byID       map[string]int
	names      map[string]struct{}
	bySlug     map[string]string
}

// New validates the given products and categories and builds a catalog.
// The first category must be domain.AllCategories, product IDs must be
// unique and every product's category must be listed.
func New(products []domain.Product, categories []string) (*Catalog, error) {
	if len(categories) == 0 || categories[0] != domain.AllCategories {
		return nil, apperrors.InvalidInput(fmt.Sprintf("first category must be %q", domain.AllCategories))
	}

	c := &Catalog{
		products:   make([]domain.Product, len(products)),
		categories: make([]string, len(categories)),
		byID:       make(map[string]int, len(products)),
		names:      make(map[string]struct{}, len(categories)),
		bySlug:     make(map[string]string, len(categories)),
	}
	copy(c.products, products)
	copy(c.categories, categories)

	for _, name := range categories[1:] {
		if name == domain.AllCategories {
			return nil, apperrors.InvalidInput("category list repeats the sentinel")
		}
		s := slug.Generate(name)
		if _, dup := c.bySlug[s]; dup {
			return nil, apperrors.InvalidInput(fmt.Sprintf("duplicate category %q", name))
		}
		c.bySlug[s] = name
		c.names[name] = struct{}{}
	}

	for i, p := range products {
		if err := validator.Validate(p); err != nil {
			return nil, fmt.Errorf("product %q: %w", p.ID, err)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, apperrors.InvalidInput(fmt.Sprintf("duplicate product id %q", p.ID))
		}
		if _, ok := c.names[p.Category]; !ok {
			return nil, apperrors.InvalidInput(fmt.Sprintf("product %q has unknown category %q", p.ID, p.Category))
		}
		c.byID[p.ID] = i
	}

	return c, nil
}

// Products returns every product in catalog order.
func (c *Catalog) Products() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Categories returns the ordered categories, sentinel first.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// Product looks up a product by ID.
func (c *Catalog) Product(id string) (domain.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, apperrors.NotFound("product", id)
	}
	return c.products[i], nil
}

// Filter returns the products in category, preserving catalog order.
// domain.AllCategories returns every product. A category with no products
// yields an empty, non-nil slice.
func (c *Catalog) Filter(category string) []domain.Product {
	if category == domain.AllCategories {
		return c.Products()
	}
	out := make([]domain.Product, 0)
	for _, p := range c.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// CategoryBySlug resolves a URL-friendly slug such as "phones-and-tablets"
// to its category name. "all-categories" resolves to the sentinel.
func (c *Catalog) CategoryBySlug(s string) (string, bool) {
	if s == slug.Generate(domain.AllCategories) {
		return domain.AllCategories, true
	}
	name, ok := c.bySlug[s]
	return name, ok
}

// ResolveCategory accepts either a category name or its slug.
func (c *Catalog) ResolveCategory(v string) (string, bool) {
	if v == domain.AllCategories {
		return v, true
	}
	if _, ok := c.names[v]; ok {
		return v, true
	}
	return c.CategoryBySlug(v)
}
