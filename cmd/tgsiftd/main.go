package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/tgsift/internal/config"
	"github.com/matheus3301/tgsift/internal/daemon"
	"github.com/matheus3301/tgsift/internal/profile"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	dotenvFlag := flag.String("env-file", ".env", "optional .env file loaded before the environment is read")
	flag.Parse()

	cfg, err := config.Effective(profile.ConfigPath(), *dotenvFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	profileName := profile.Resolve(*profileFlag, cfg)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.NopLogger,
		daemon.Module(daemon.Params{ProfileName: profileName, Config: cfg}),
	)
	if err := app.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app.Run()
}
