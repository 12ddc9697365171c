package catalog

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/currency"
)

// Sort orders for Search.
const (
	SortFeatured  = "featured"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortRating    = "rating"
	SortName      = "name"
)

// AllCategories matches every category in a Query.
const AllCategories = "all"

// Category summarizes the products sharing a category slug.
type Category struct {
	Slug     string          `json:"slug"`
	Name     string          `json:"name"`
	Count    int             `json:"count"`
	MinPrice currency.Amount `json:"minPrice"`
	Image    string          `json:"image"`
}

// Query filters and orders Search results. Zero values match everything
// in featured order.
type Query struct {
	Text     string
	Category string
	Sort     string
}

// Catalog is an immutable, shareable product list.
type Catalog struct {
	products []Product
	byID     map[string]int
}

// New builds a catalog. Products must be valid and have unique ids.
func New(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q: %w", p.ID, core.ErrInvalidInput)
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

// Default returns the catalog of DefaultProducts.
func Default() *Catalog {
	c, err := New(DefaultProducts())
	if err != nil {
		panic(err)
	}
	return c
}

// ByID looks a product up by id.
func (c *Catalog) ByID(id string) (Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// All returns every product in catalog order.
func (c *Catalog) All() []Product {
	return slices.Clone(c.products)
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Featured returns the featured products.
func (c *Catalog) Featured() []Product {
	return c.filter(func(p Product) bool { return p.Featured })
}

// ByCategory returns the products in category slug.
func (c *Catalog) ByCategory(slug string) []Product {
	return c.filter(func(p Product) bool { return p.Category == slug })
}

// Related returns up to limit other products from p's category.
func (c *Catalog) Related(p Product, limit int) []Product {
	related := c.filter(func(o Product) bool {
		return o.Category == p.Category && o.ID != p.ID
	})
	if limit >= 0 && len(related) > limit {
		related = related[:limit]
	}
	return related
}

// Categories lists categories in first-seen order. The image is that of
// the first product in the category.
func (c *Catalog) Categories() []Category {
	var out []Category
	index := map[string]int{}
	for _, p := range c.products {
		i, ok := index[p.Category]
		if !ok {
			index[p.Category] = len(out)
			out = append(out, Category{
				Slug:     p.Category,
				Name:     CategoryName(p.Category),
				MinPrice: p.Price,
				Image:    p.Image,
			})
			i = len(out) - 1
		}
		out[i].Count++
		if p.Price < out[i].MinPrice {
			out[i].MinPrice = p.Price
		}
	}
	return out
}

var titleCaser = cases.Title(language.English)

// CategoryName turns a slug like "home-decor" into "Home Decor".
func CategoryName(slug string) string {
	return titleCaser.String(strings.ReplaceAll(slug, "-", " "))
}

// Search filters by text and category and orders by q.Sort. Text matches
// name or description case-insensitively. Unknown sorts fall back to
// featured.
func (c *Catalog) Search(q Query) []Product {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	category := q.Category
	if category == "" {
		category = AllCategories
	}

	results := c.filter(func(p Product) bool {
		if category != AllCategories && p.Category != category {
			return false
		}
		if text == "" {
			return true
		}
		return strings.Contains(strings.ToLower(p.Name), text) ||
			strings.Contains(strings.ToLower(p.Description), text)
	})

	switch q.Sort {
	case SortPriceLow:
		slices.SortStableFunc(results, func(a, b Product) int { return cmp.Compare(a.Price, b.Price) })
	case SortPriceHigh:
		slices.SortStableFunc(results, func(a, b Product) int { return cmp.Compare(b.Price, a.Price) })
	case SortRating:
		slices.SortStableFunc(results, func(a, b Product) int { return cmp.Compare(b.Rating, a.Rating) })
	case SortName:
		slices.SortStableFunc(results, func(a, b Product) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	default:
		slices.SortStableFunc(results, func(a, b Product) int { return cmp.Compare(boolRank(b.Featured), boolRank(a.Featured)) })
	}
	return results
}

func (c *Catalog) filter(keep func(Product) bool) []Product {
	var out []Product
	for _, p := range c.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
