package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/mchat/internal/app"
	"github.com/matheus3301/mchat/internal/profile"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	demoFlag := flag.Bool("demo", false, "run a single loopback account without the cache")
	debugFlag := flag.Bool("debug", false, "log at debug level")
	configFlag := flag.String("config", "", "config file (default "+profile.ConfigPath()+")")
	flag.Parse()

	if *profileFlag != "" {
		if err := profile.ValidateName(*profileFlag); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	// The terminal belongs to the UI, so fx logs go to the profile log.
	a := fx.New(
		app.Module(app.Params{
			Profile:    *profileFlag,
			Demo:       *demoFlag,
			Debug:      *debugFlag,
			ConfigPath: *configFlag,
		}),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)
	if err := a.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	a.Run()
}
