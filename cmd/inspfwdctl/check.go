package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fventuri/inspfwd/internal/consumer"
	"github.com/fventuri/inspfwd/internal/forwarder"
	"github.com/fventuri/inspfwd/internal/persistence"
)

func newCheckCommand() *cobra.Command {
	var filePath string
	var maxBandwidth float64
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a persistence file without connecting to an analyzer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(filePath, maxBandwidth)
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "persistence file to validate")
	cmd.Flags().Float64Var(&maxBandwidth, "max-bandwidth", 192_000, "maximum channel bandwidth, Hz")
	cmd.MarkFlagRequired("file")
	return cmd
}

// runCheck exercises persistence.Load and every tree invariant
// makeMaster/makeChannel enforce, against a scratch Forwarder with no
// analyzer attached — useful in CI to validate a checked-in config
// without a live device.
func runCheck(filePath string, maxBandwidth float64) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("check: open %s: %w", filePath, err)
	}
	defer f.Close()

	snap, err := persistence.Load(f)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	fwd := forwarder.New(maxBandwidth)
	err = persistence.Apply(fwd, snap, func(m persistence.MasterSpec, c persistence.ChannelSpec) consumer.Consumer {
		return nil
	})
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	fmt.Printf("ok: %d master(s), span %.0f Hz\n", len(fwd.MasterOrder()), fwd.Span())
	return nil
}
