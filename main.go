package main

import (
	"fmt"
	"os"

	"github.com/tkoskin/headsup/cmd"
	"github.com/tkoskin/headsup/internal/conf"
	"github.com/tkoskin/headsup/internal/logging"
)

// version and buildDate are populated at build time via ldflags.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version
	settings.BuildDate = buildDate

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
