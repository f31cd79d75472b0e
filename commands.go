package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"pagebuilder/internal/app"
	"pagebuilder/internal/config"
	"pagebuilder/internal/tenant"
)

// loadConfig reads the config named by the root flags and applies logging.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if err := config.LoadEnv(cmd.String("env-file")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if cmd.Bool("debug") {
		cfg.LogLevel = "debug"
	}
	cfg.ConfigureLogging()
	return cfg, nil
}

// withApp starts an App for the duration of fn.
func withApp(ctx context.Context, cmd *cli.Command, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg)
	if err := a.Startup(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("shutdown")
		}
	}()
	return fn(ctx, a)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP and websocket editor API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides http.addr)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				if err := a.StartBackground(ctx); err != nil {
					return err
				}
				addr := cmd.String("addr")
				if addr == "" {
					addr = a.Config().HTTP.Addr
				}
				return a.Server().ListenAndServe(ctx, addr)
			})
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run as an MCP server on stdin/stdout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				return a.ServeMCP(ctx)
			})
		},
	}
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Print a stored page as it would render",
		ArgsUsage: "<pageID>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			pageID := cmd.Args().First()
			if pageID == "" {
				return errors.New("preview: page ID is required")
			}
			return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				out, err := a.PreviewPage(ctx, pageID)
				if err != nil {
					return err
				}
				fmt.Print(out)
				return nil
			})
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Store the site API token and school for later commands",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token", Usage: "Bearer token (or PAGEBUILDER_TOKEN)", Sources: cli.EnvVars("PAGEBUILDER_TOKEN"), Required: true},
			&cli.StringFlag{Name: "subdomain", Usage: "School subdomain", Required: true},
			&cli.StringFlag{Name: "school-id", Usage: "School ID"},
			&cli.StringFlag{Name: "email", Usage: "User email"},
			&cli.DurationFlag{Name: "expires-in", Usage: "Token lifetime (0 for no expiry)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				sess := tenant.Session{
					Token:     cmd.String("token"),
					SchoolID:  cmd.String("school-id"),
					Subdomain: cmd.String("subdomain"),
					User:      tenant.User{Email: cmd.String("email")},
				}
				if d := cmd.Duration("expires-in"); d > 0 {
					sess.ExpiresAt = time.Now().Add(d).UTC()
				}
				if err := a.Tenant.Login(sess); err != nil {
					return err
				}
				fmt.Printf("Logged in to %s\n", sess.Subdomain)
				return nil
			})
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored site API token",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Tenant.Logout(); err != nil {
					return err
				}
				fmt.Println("Logged out")
				return nil
			})
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a default configuration file",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("config")
			if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			cfg, err := config.Default()
			if err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Printf("Configuration written to %s\n", path)
			return nil
		},
	}
}
