package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/auth"
	"github.com/luxecommerce/storefront/pkg/catalog"
	"github.com/luxecommerce/storefront/pkg/currency"
	"github.com/luxecommerce/storefront/pkg/orders"
)

// oneShot opens the app without the realtime simulations, runs fn and
// closes everything.
func oneShot(ctx context.Context, flags *globalFlags, fn func(*app) error) (err error) {
	a, err := openApp(ctx, flags, core.WithRealtime(false))
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close(context.WithoutCancel(ctx))) }()
	return fn(a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newCatalogCmd(flags *globalFlags) *cobra.Command {
	var (
		q          catalog.Query
		categories bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List and search products",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := catalog.Default()
			out := cmd.OutOrStdout()

			if categories {
				list := cat.Categories()
				if asJSON {
					return printJSON(out, list)
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "SLUG\tNAME\tPRODUCTS\tFROM")
				for _, c := range list {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.Slug, c.Name, c.Count, currency.FormatPrice(c.MinPrice))
				}
				return tw.Flush()
			}

			if len(args) > 0 {
				q.Text = strings.Join(args, " ")
			}
			list := cat.Search(q)
			if asJSON {
				return printJSON(out, list)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tRATING")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f\n", p.ID, p.Name, p.Category, currency.FormatPrice(p.Price), p.Rating)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&q.Category, "category", "", "Only products in this category")
	cmd.Flags().StringVar(&q.Sort, "sort", catalog.SortFeatured, "Sort order (featured, price-low, price-high, rating, name)")
	cmd.Flags().BoolVar(&categories, "categories", false, "List categories instead of products")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newOrdersCmd(flags *globalFlags) *cobra.Command {
	var (
		filter orders.Filter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List the orders of a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return oneShot(cmd.Context(), flags, func(a *app) error {
				sess, err := a.session(cmd.Context())
				if err != nil {
					return err
				}
				list, err := sess.Orders().Filter(cmd.Context(), filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(out, "No orders found")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tCUSTOMER\tITEMS\tTOTAL\tSTATUS")
				for _, o := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
						o.ID, o.CreatedAt.Format("2006-01-02 15:04"), o.ShippingAddress.FullName(),
						o.ItemCount(), currency.FormatPrice(o.Total), o.Status)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "Match order id or customer name")
	cmd.Flags().StringVar(&filter.Status, "status", orders.StatusAll, "Only orders with this status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the admin dashboard figures of a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return oneShot(cmd.Context(), flags, func(a *app) error {
				sess, err := a.session(cmd.Context())
				if err != nil {
					return err
				}
				stats, err := sess.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, stats)
				}
				fmt.Fprintf(out, "Revenue:   %s\n", currency.FormatPrice(stats.TotalRevenue))
				fmt.Fprintf(out, "Orders:    %d\n", stats.TotalOrders)
				fmt.Fprintf(out, "Products:  %d\n", stats.TotalProducts)
				fmt.Fprintf(out, "Customers: %d\n", stats.TotalCustomers)
				if len(stats.TopProducts) > 0 {
					fmt.Fprintln(out, "\nTop products:")
					for i, ps := range stats.TopProducts {
						fmt.Fprintf(out, "  %d. %s (%d sold)\n", i+1, ps.Product.Name, ps.Quantity)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

var demoShipping = orders.ShippingInfo{
	FirstName: "Demo",
	LastName:  "Shopper",
	Phone:     "+254700000000",
	Address:   "1 Kenyatta Avenue",
	City:      "Nairobi",
	ZipCode:   "00100",
	Country:   "KE",
}

func newDemoCmd(flags *globalFlags) *cobra.Command {
	var (
		email    string
		products []string
		quantity int
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Register a shopper, fill the cart and check out",
		RunE: func(cmd *cobra.Command, args []string) error {
			return oneShot(cmd.Context(), flags, func(a *app) error {
				order, err := runDemo(cmd.Context(), a, email, products, quantity)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Order %s placed for %s\n", order.ID, order.ShippingAddress.FullName())
				for _, l := range order.Items {
					fmt.Fprintf(out, "  %d x %s  %s\n", l.Quantity, l.Product.Name, currency.FormatPrice(l.Subtotal()))
				}
				fmt.Fprintf(out, "Subtotal: %s\n", currency.FormatPrice(order.Subtotal))
				fmt.Fprintf(out, "Tax:      %s\n", currency.FormatPrice(order.Tax))
				fmt.Fprintf(out, "Shipping: %s\n", currency.FormatPrice(order.Shipping))
				fmt.Fprintf(out, "Total:    %s\n", currency.FormatPrice(order.Total))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "demo@luxecommerce.com", "Shopper email")
	cmd.Flags().StringSliceVar(&products, "product", []string{"1"}, "Product ids to buy")
	cmd.Flags().IntVar(&quantity, "quantity", 2, "Units of each product")
	return cmd
}

func runDemo(ctx context.Context, a *app, email string, products []string, quantity int) (orders.Order, error) {
	const password = "demo-password"

	sess, err := a.session(ctx)
	if err != nil {
		return orders.Order{}, err
	}

	users := sess.Auth()
	if _, err := users.Register(ctx, email, password, demoShipping.FullName()); err != nil && !errors.Is(err, auth.ErrDuplicateUser) {
		return orders.Order{}, err
	}
	if _, err := users.Login(ctx, email, password); err != nil {
		return orders.Order{}, err
	}

	for _, id := range products {
		if _, ok := sess.Catalog().ByID(id); !ok {
			return orders.Order{}, fmt.Errorf("product %q: %w", id, core.ErrNotFound)
		}
		if err := sess.Cart().AddQuantity(ctx, id, quantity); err != nil {
			return orders.Order{}, err
		}
	}

	shipping := demoShipping
	shipping.Email = email
	return sess.PlaceOrder(ctx, shipping, orders.PaymentInfo{
		CardNumber: "4242424242424242",
		ExpiryDate: "12/30",
		CVV:        "123",
		NameOnCard: shipping.FullName(),
	})
}
