package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/baghaven/storefront/internal/app"
	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/orders"
)

func scopeOrders(a *app.App, admin bool) *orders.Reconciler {
	if admin {
		return a.AdminOrders
	}
	return a.Orders
}

func (c *cli) ordersCmd() *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List, place and update orders",
	}
	cmd.PersistentFlags().BoolVar(&admin, "admin", false, "use the admin order list")

	list := &cobra.Command{
		Use:   "list",
		Short: "List server and locally kept orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				list, err := scopeOrders(a, admin).List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list orders: %w", err)
				}
				c.printOrders(list)
				return nil
			})
		},
	}

	status := &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Change the status of an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := model.ParseOrderStatus(args[1])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(a *app.App) error {
				r := scopeOrders(a, admin)
				if _, err := r.List(cmd.Context()); err != nil {
					return fmt.Errorf("failed to list orders: %w", err)
				}
				order, err := r.UpdateStatus(cmd.Context(), args[0], st)
				if err != nil {
					c.console.Notify(model.LevelError, "Failed to update order status")
					return err
				}
				c.console.Notify(model.LevelSuccess, "Order "+order.ID+" is now "+string(order.Status))
				return nil
			})
		},
	}

	var (
		addr     model.ShippingAddress
		method   string
		shipping float64
		tax      float64
	)
	place := &cobra.Command{
		Use:   "place",
		Short: "Check out the current cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				if err := a.Cart.Refresh(cmd.Context()); err != nil {
					return fmt.Errorf("failed to load cart: %w", err)
				}
				items := a.Cart.Items()
				if len(items) == 0 {
					return errors.New("cart is empty")
				}
				draft := model.OrderDraft{
					ShippingAddress: addr,
					PaymentInfo:     model.PaymentInfo{Method: method},
					Shipping:        shipping,
					Tax:             tax,
				}
				for _, it := range items {
					line := model.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity}
					if it.Product != nil {
						line.Name, line.Price = it.Product.Name, it.Product.Price
					}
					draft.Items = append(draft.Items, line)
				}

				order, err := a.Orders.Place(cmd.Context(), draft)
				if err != nil {
					return fmt.Errorf("failed to place order: %w", err)
				}
				if order.Source == model.SourceLocal {
					c.console.Notify(model.LevelInfo, "Server unavailable, order "+order.ID+" kept locally")
				} else {
					c.console.Notify(model.LevelSuccess, "Order "+order.ID+" placed")
				}
				c.printOrders([]model.Order{order})
				return nil
			})
		},
	}
	place.Flags().StringVar(&addr.FullName, "name", "", "recipient name")
	place.Flags().StringVar(&addr.Street, "street", "", "street address")
	place.Flags().StringVar(&addr.City, "city", "", "city")
	place.Flags().StringVar(&addr.PostalCode, "postal-code", "", "postal code")
	place.Flags().StringVar(&addr.Country, "country", "", "country")
	place.Flags().StringVar(&addr.Phone, "phone", "", "contact phone")
	place.Flags().StringVar(&method, "payment", "cod", "payment method")
	place.Flags().Float64Var(&shipping, "shipping", 0, "shipping cost")
	place.Flags().Float64Var(&tax, "tax", 0, "tax amount")
	_ = place.MarkFlagRequired("street")

	cmd.AddCommand(list, status, place)
	return cmd
}

func (c *cli) printOrders(list []model.Order) {
	t := c.table("ID", "SOURCE", "STATUS", "ITEMS", "TOTAL", "CREATED")
	for _, o := range list {
		created := ""
		if !o.CreatedAt.IsZero() {
			created = o.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		t.Row(o.ID, string(o.Source), string(o.Status), strconv.Itoa(len(o.Items)), money(o.Totals.Total), created)
	}
	c.printf("%s\n%d order(s)\n", t.String(), len(list))
}
