package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baghaven/storefront/internal/app"
	"github.com/baghaven/storefront/internal/collection"
	"github.com/baghaven/storefront/internal/guard"
	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/session"
)

func (c *cli) openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Show what navigating to a route would do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				d := a.Open(args[0])
				switch d.Kind {
				case guard.Redirect:
					c.printf("redirect %s\n", d.Target())
				default:
					c.printf("%s %s\n", d.Kind, args[0])
				}
				return nil
			})
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Mount every reconciler and print changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				offs := []func(){
					a.Session.Subscribe(func(st session.State) { c.printSession(model.UserScope.Name, st) }),
					a.AdminSession.Subscribe(func(st session.State) { c.printSession(model.AdminScope.Name, st) }),
					a.Cart.Subscribe(c.printSnapshot),
					a.Wishlist.Subscribe(c.printSnapshot),
					a.Orders.Subscribe(func(list []model.Order) {
						c.printf("orders: %d\n", len(list))
					}),
				}
				if admin {
					offs = append(offs, a.AdminOrders.Subscribe(func(list []model.Order) {
						c.printf("admin orders: %d\n", len(list))
					}))
				}
				defer func() {
					for _, off := range offs {
						off()
					}
				}()

				a.Mount(cmd.Context(), admin)
				<-cmd.Context().Done()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "also mount the admin order list")
	return cmd
}

func (c *cli) printSnapshot(s collection.Snapshot) {
	if s.Load != collection.LoadLoaded {
		return
	}
	c.printf("%s: %d item(s) phase=%s pending=%d\n", s.Kind, len(s.Items), s.Phase, s.Pending)
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the in-memory storefront API for development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dev, err := app.NewDevServer(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize dev server: %w", err)
			}
			c.logger.Info(appVersion())
			return dev.Run(cmd.Context())
		},
	}
}
