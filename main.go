package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"pagebuilder/internal/config"
)

func main() {
	root := &cli.Command{
		Name:  "pagebuilder",
		Usage: "Block editor backend for school website pages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: defaultConfigPathOrExit(),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Optional .env file with secrets",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			mcpCommand(),
			previewCommand(),
			loginCommand(),
			logoutCommand(),
			initCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func defaultConfigPathOrExit() string {
	path, err := config.DefaultConfigPath()
	if err != nil {
		logrus.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
