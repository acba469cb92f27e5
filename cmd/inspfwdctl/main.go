// Command inspfwdctl is the thin executable wiring config, the
// websocket analyzer adapter, the forwarder core, persistence and the
// metrics HTTP server together — the cobra-ified replacement for the
// teacher's single flag.Parse-then-loop main().
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fventuri/inspfwd/internal/logging"
)

var debug bool

func main() {
	root := &cobra.Command{
		Use:   "inspfwdctl",
		Short: "Multi-channel inspector forwarder control",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if debug {
				level = zerolog.DebugLevel
			}
			logging.Init(level, false, os.Stderr)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCommand())
	root.AddCommand(newCheckCommand())
	root.AddCommand(newLoadCommand())
	root.AddCommand(newSaveCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
