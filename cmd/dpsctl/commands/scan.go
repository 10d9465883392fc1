// cmd/dpsctl/commands/scan.go
package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"dpsctl/internal/discovery"
	"dpsctl/internal/format"
)

func init() {
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the local network for OpenDPS devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := discovery.NewScanner(&cfg.Discovery, logger)
		records, err := scanner.Scan(context.Background())
		if err != nil {
			return err
		}
		return format.PrintScanResult(os.Stdout, records, jsonFlag)
	},
}
