// cmd/dpsctl/commands/calibrate.go
package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dpsctl/internal/calibrate"
	"dpsctl/internal/format"
	"dpsctl/pkg/protocol"
)

func init() {
	calCmd.AddCommand(calReportCmd)
	calCmd.AddCommand(calSetCmd)
	calCmd.AddCommand(calRunCmd)
	rootCmd.AddCommand(calCmd)
}

var calCmd = &cobra.Command{
	Use:   "cal",
	Short: "Calibration commands",
}

var calReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the device's calibration report",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		report, err := c.CalReport()
		if err != nil {
			return err
		}
		return format.PrintCalReport(os.Stdout, report, jsonFlag)
	},
}

var calSetCmd = &cobra.Command{
	Use:   "set <NAME>=<value> ...",
	Short: "Set calibration coefficients",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := make([]protocol.CalEntry, 0, len(args))
		for _, arg := range args {
			name, value, ok := strings.Cut(arg, "=")
			if !ok || name == "" {
				return fmt.Errorf("malformatted parameter %q", arg)
			}
			v, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return fmt.Errorf("malformatted parameter %q", arg)
			}
			entries = append(entries, protocol.CalEntry{Name: name, Value: float32(v)})
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		return c.SetCalibration(entries)
	},
}

var calRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interactive calibration workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return calibrate.New(c, os.Stdin, os.Stdout, logger).Run()
	},
}
