package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baghaven/storefront/internal/app"
	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/session"
)

type credentials struct {
	email    string
	password string
}

func (cr *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cr.email, "email", "", "account email")
	cmd.Flags().StringVar(&cr.password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
}

func (c *cli) registerCmd() *cobra.Command {
	var (
		cr   credentials
		name string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				sess, err := a.Session.Register(cmd.Context(), model.RegisterParams{Name: name, Email: cr.email, Password: cr.password})
				if err != nil {
					return fmt.Errorf("failed to register: %w", err)
				}
				c.console.Notify(model.LevelSuccess, "Account created")
				c.printSession(model.UserScope.Name, session.State{Resolved: true, Session: sess})
				return nil
			})
		},
	}
	cr.bind(cmd)
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var cr credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the storefront",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				return c.login(cmd, a.Session, cr)
			})
		},
	}
	cr.bind(cmd)
	return cmd
}

func (c *cli) adminCmd() *cobra.Command {
	var cr credentials
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the admin dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				return c.login(cmd, a.AdminSession, cr)
			})
		},
	}
	cr.bind(login)

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin dashboard session",
	}
	cmd.AddCommand(login)
	return cmd
}

func (c *cli) login(cmd *cobra.Command, r *session.Reconciler, cr credentials) error {
	sess, err := r.Login(cmd.Context(), cr.email, cr.password)
	switch {
	case errors.Is(err, model.ErrBlocked):
		c.console.Notify(model.LevelError, session.BlockedMessage)
		return err
	case errors.Is(err, model.ErrForbidden):
		c.console.Notify(model.LevelError, "Access denied. Admin account required.")
		return err
	case err != nil:
		return fmt.Errorf("failed to sign in: %w", err)
	}
	c.console.Notify(model.LevelSuccess, "Signed in")
	c.printSession(r.Scope().Name, session.State{Resolved: true, Session: sess})
	return nil
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of every scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				if err := a.Session.Logout(cmd.Context()); err != nil {
					return err
				}
				c.console.Notify(model.LevelInfo, "Signed out")
				return nil
			})
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the session of every scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				c.printSession(model.UserScope.Name, a.Session.State())
				c.printSession(model.AdminScope.Name, a.AdminSession.State())
				return nil
			})
		},
	}
}

func (c *cli) printSession(scope string, st session.State) {
	s := st.Session
	switch {
	case !st.Resolved:
		c.printf("%s: loading\n", scope)
	case !s.IsAuthenticated:
		c.printf("%s: signed out\n", scope)
	case s.User != nil:
		c.printf("%s: %s <%s> role=%s\n", scope, s.User.Name, s.User.Email, s.Claims.Role)
	default:
		c.printf("%s: %s role=%s\n", scope, s.Claims.Subject, s.Claims.Role)
	}
}
