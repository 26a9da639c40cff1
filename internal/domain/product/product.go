// Package product defines the catalog product reference used by search
// results and recommendations. The product corpus itself is owned by the
// catalog; persona only reads it.
package product

// Product is a catalog product reference.
type Product struct {
	id          string
	name        string
	description string
	category    string
	priceCents  int64
}

// New creates a product reference.
func New(id, name, description, category string, priceCents int64) Product {
	return Product{
		id:          id,
		name:        name,
		description: description,
		category:    category,
		priceCents:  priceCents,
	}
}

// ID returns the product identifier.
func (p Product) ID() string { return p.id }

// Name returns the display name.
func (p Product) Name() string { return p.name }

// Description returns the product description.
func (p Product) Description() string { return p.description }

// Category returns the catalog category.
func (p Product) Category() string { return p.category }

// PriceCents returns the price in minor units.
func (p Product) PriceCents() int64 { return p.priceCents }
