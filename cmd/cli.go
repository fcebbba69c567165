package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/baghaven/storefront/internal/app"
	"github.com/baghaven/storefront/internal/config"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/notify"
)

// cli holds what every command needs once flags are parsed.
type cli struct {
	configPath string
	out        io.Writer
	errOut     io.Writer

	cfg     *config.Config
	logger  *logger.Logger
	console *notify.Console
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "baghaven",
		Short:         "BagHaven storefront client",
		Long:          "Drives the BagHaven client core from a terminal. Processes sharing one store behave like browser tabs.",
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetVersionTemplate(appVersion() + "\n")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a TOML config file (overrides "+config.ConfigFileEnv+")")

	root.AddCommand(
		c.serveCmd(),
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.adminCmd(),
		c.cartCmd(),
		c.wishlistCmd(),
		c.ordersCmd(),
		c.openCmd(),
		c.watchCmd(),
	)
	return root
}

func (c *cli) init() error {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.Load(c.configPath)
	} else {
		cfg, err = config.NewConfig()
	}
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	c.cfg = cfg
	c.logger = logger.NewWithWriter(c.errOut, cfg.LogLevel)
	c.console = notify.NewConsole(c.errOut)
	return nil
}

// withApp opens the client, loads both sessions and closes it after fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(a *app.App) error) (err error) {
	a, err := app.New(cmd.Context(), c.cfg, c.logger, c.console, c.console)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	a.Load(cmd.Context())
	return fn(a)
}

func (c *cli) table(headers ...string) *table.Table {
	r := lipgloss.NewRenderer(c.out)
	head := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return head
			}
			return cell
		})
}

func (c *cli) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
