// Package catalog holds the static product list and the read-only queries
// the storefront runs over it.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/currency"
)

// Product is a catalog entry. Price is in KSH.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       currency.Amount `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Rating      float64         `json:"rating"`
	ReviewCount int             `json:"reviewCount"`
	InStock     bool            `json:"inStock"`
	Featured    bool            `json:"featured"`
}

// Validate reports whether p can be listed.
func (p Product) Validate() error {
	var errs []error
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, errors.New("product id is required"))
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, fmt.Errorf("product %q: name is required", p.ID))
	}
	if p.Price < 0 {
		errs = append(errs, fmt.Errorf("product %q: price cannot be negative", p.ID))
	}
	if p.Rating < 0 || p.Rating > 5 {
		errs = append(errs, fmt.Errorf("product %q: rating %.1f out of range", p.ID, p.Rating))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// DefaultProducts returns the storefront's seed catalog.
func DefaultProducts() []Product {
	return []Product{
		{
			ID:          "1",
			Name:        "Modern Minimalist Chair",
			Description: "Clean lines meet exceptional comfort in this contemporary dining chair. Crafted from sustainable materials with ergonomic design principles.",
			Price:       currency.KSH(44850),
			Image:       "/modern-minimalist-furniture.jpg",
			Category:    "furniture",
			Rating:      4.9,
			ReviewCount: 127,
			InStock:     true,
			Featured:    true,
		},
		{
			ID:          "2",
			Name:        "Handcrafted Ceramic Vase",
			Description: "Artisan-made pottery with unique glazing techniques. Each piece is one-of-a-kind, featuring subtle variations that celebrate the handmade process.",
			Price:       currency.KSH(22350),
			Image:       "/handcrafted-artisan-pottery.jpg",
			Category:    "home-decor",
			Rating:      4.8,
			ReviewCount: 89,
			InStock:     true,
			Featured:    true,
		},
		{
			ID:          "3",
			Name:        "Sustainable Bamboo Storage Set",
			Description: "Eco-friendly storage solutions for modern living. Made from rapidly renewable bamboo with natural antimicrobial properties.",
			Price:       currency.KSH(13350),
			Image:       "/sustainable-eco-friendly-home-products.jpg",
			Category:    "storage",
			Rating:      4.9,
			ReviewCount: 203,
			InStock:     true,
			Featured:    true,
		},
		{
			ID:          "4",
			Name:        "Premium Wool Throw Blanket",
			Description: "Luxuriously soft merino wool blanket in neutral tones. Perfect for adding warmth and texture to any living space.",
			Price:       currency.KSH(28350),
			Image:       "/premium-wool-throw-blanket.jpg",
			Category:    "textiles",
			Rating:      4.7,
			ReviewCount: 156,
			InStock:     true,
			Featured:    false,
		},
		{
			ID:          "5",
			Name:        "Artisan Coffee Table",
			Description: "Solid wood coffee table with live edge design. Each piece showcases the natural beauty of the wood grain.",
			Price:       currency.KSH(89850),
			Image:       "/artisan-wood-coffee-table.jpg",
			Category:    "furniture",
			Rating:      4.9,
			ReviewCount: 78,
			InStock:     true,
			Featured:    false,
		},
		{
			ID:          "6",
			Name:        "Organic Cotton Bedding Set",
			Description: "Breathable organic cotton sheets in calming colors. Hypoallergenic and sustainably sourced for better sleep.",
			Price:       currency.KSH(34350),
			Image:       "/organic-cotton-bedding-set.jpg",
			Category:    "textiles",
			Rating:      4.8,
			ReviewCount: 234,
			InStock:     false,
			Featured:    false,
		},
	}
}
