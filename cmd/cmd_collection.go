package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/baghaven/storefront/internal/app"
	"github.com/baghaven/storefront/internal/collection"
	"github.com/baghaven/storefront/internal/model"
)

func pick(a *app.App, kind collection.Kind) *collection.Reconciler {
	if kind == collection.KindWishlist {
		return a.Wishlist
	}
	return a.Cart
}

func (c *cli) cartCmd() *cobra.Command {
	cmd := c.collectionCmd(collection.KindCart)
	cmd.AddCommand(&cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Set the quantity of a cart line; zero removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			return c.withApp(cmd, func(a *app.App) error {
				if err := a.Cart.Refresh(cmd.Context()); err != nil {
					return fmt.Errorf("failed to load cart: %w", err)
				}
				if err := a.Cart.UpdateQuantity(cmd.Context(), args[0], qty); err != nil {
					return fmt.Errorf("failed to update cart: %w", err)
				}
				c.printItems(a.Cart.Snapshot())
				return nil
			})
		},
	})
	return cmd
}

func (c *cli) wishlistCmd() *cobra.Command {
	return c.collectionCmd(collection.KindWishlist)
}

func (c *cli) collectionCmd(kind collection.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: "Manage the " + string(kind),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the " + string(kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				r := pick(a, kind)
				if err := r.Refresh(cmd.Context()); err != nil {
					return fmt.Errorf("failed to load %s: %w", kind, err)
				}
				c.printItems(r.Snapshot())
				return nil
			})
		},
	}

	var qty int
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the " + string(kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				product, err := a.Client.Product(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to get product: %w", err)
				}
				r := pick(a, kind)
				if err := r.Refresh(cmd.Context()); err != nil {
					return fmt.Errorf("failed to load %s: %w", kind, err)
				}
				if err := r.Add(cmd.Context(), product, qty); err != nil {
					c.console.Notify(model.LevelError, "Failed to add "+product.Name)
					return err
				}
				c.console.Notify(model.LevelSuccess, fmt.Sprintf("Added %s to %s", product.Name, kind))
				c.printItems(r.Snapshot())
				return nil
			})
		},
	}
	if kind == collection.KindCart {
		add.Flags().IntVar(&qty, "qty", 1, "quantity to add")
	}

	remove := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the " + string(kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				r := pick(a, kind)
				if err := r.Refresh(cmd.Context()); err != nil {
					return fmt.Errorf("failed to load %s: %w", kind, err)
				}
				if err := r.Remove(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to remove: %w", err)
				}
				c.printItems(r.Snapshot())
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func (c *cli) printItems(snap collection.Snapshot) {
	t := c.table("PRODUCT", "NAME", "QTY", "PRICE")
	var total float64
	for _, it := range snap.Items {
		name, price := "", ""
		if it.Product != nil {
			name, price = it.Product.Name, money(it.Product.Price)
		}
		qty := ""
		if snap.Kind == collection.KindCart {
			qty = strconv.Itoa(it.Quantity)
			total += it.Subtotal()
		}
		t.Row(it.ProductID, name, qty, price)
	}
	c.printf("%s\n", t.String())
	if snap.Kind == collection.KindCart {
		c.printf("%d item(s), total %s\n", len(snap.Items), money(total))
	} else {
		c.printf("%d item(s)\n", len(snap.Items))
	}
}
