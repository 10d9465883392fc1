// cmd/dpsctl/commands/upgrade.go
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"dpsctl/internal/upgrade"
)

var forceFlag bool

func init() {
	upgradeCmd.Flags().BoolVar(&forceFlag, "force", false,
		"Force upgrade even if the firmware file looks invalid")
	rootCmd.AddCommand(upgradeCmd)
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <firmware file>",
	Short: "Upgrade the device firmware",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		session := upgrade.New(c, cfg.Upgrade.ChunkSize, logger)
		session.Progress = func(sent, total int64) {
			fmt.Printf("\rDownload progress: %d%% ", sent*100/total)
		}
		err = session.Run(args[0], forceFlag)
		fmt.Println()
		return err
	},
}
