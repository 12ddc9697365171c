package orders

import (
	"cmp"
	"context"
	"slices"

	"github.com/luxecommerce/storefront/pkg/catalog"
	"github.com/luxecommerce/storefront/pkg/currency"
)

const (
	recentOrderCount = 5
	topProductCount  = 5
)

// ProductSales is the quantity of one product sold across all orders.
type ProductSales struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Stats are the admin dashboard figures.
type Stats struct {
	TotalRevenue   currency.Amount `json:"totalRevenue"`
	TotalOrders    int             `json:"totalOrders"`
	TotalProducts  int             `json:"totalProducts"`
	TotalCustomers int             `json:"totalCustomers"`
	RecentOrders   []Order         `json:"recentOrders"`
	TopProducts    []ProductSales  `json:"topProducts"`
}

// ComputeStats summarises the orders. list must be newest first; products
// tied on quantity keep the order in which they were first seen.
func ComputeStats(list []Order, productCount, customerCount int) Stats {
	st := Stats{
		TotalOrders:    len(list),
		TotalProducts:  productCount,
		TotalCustomers: customerCount,
		RecentOrders:   slices.Clone(list[:min(recentOrderCount, len(list))]),
	}

	var sales []ProductSales
	index := map[string]int{}
	for _, o := range list {
		st.TotalRevenue += o.Total
		for _, l := range o.Items {
			if i, ok := index[l.ProductID]; ok {
				sales[i].Quantity += l.Quantity
				continue
			}
			index[l.ProductID] = len(sales)
			sales = append(sales, ProductSales{Product: l.Product, Quantity: l.Quantity})
		}
	}
	slices.SortStableFunc(sales, func(a, b ProductSales) int {
		return cmp.Compare(b.Quantity, a.Quantity)
	})
	st.TopProducts = sales[:min(topProductCount, len(sales))]
	if st.TopProducts == nil {
		st.TopProducts = []ProductSales{}
	}
	return st
}

// Stats loads the orders and summarises them.
func (s *Store) Stats(ctx context.Context, productCount, customerCount int) (Stats, error) {
	list, err := s.All(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(list, productCount, customerCount), nil
}
