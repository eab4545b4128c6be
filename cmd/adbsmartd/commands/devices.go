package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adbsmartd/adbsmartd/internal/cli/output"
	"github.com/adbsmartd/adbsmartd/internal/config"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices configured for this server",
	Long: `Load the configuration file and render the static device list that
would be seeded into the registry at startup, without starting a listener.`,
	RunE: runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	devices := config.ToRegistryDevices(cfg.Devices)

	table := output.NewTableData("SERIAL", "STATE", "FEATURES")
	for _, d := range devices {
		table.AddRow(d.Serial, string(d.State), strings.Join(d.Features, ","))
	}

	if len(devices) == 0 {
		fmt.Fprintln(os.Stdout, "no devices configured")
		return nil
	}

	return output.PrintTable(os.Stdout, table)
}
