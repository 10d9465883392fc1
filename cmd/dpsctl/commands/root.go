// cmd/dpsctl/commands/root.go
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dpsctl/internal/client"
	"dpsctl/internal/config"
	"dpsctl/internal/transport"
	"dpsctl/internal/utils"
)

var (
	// Version is set at build time
	Version = "dev"

	cfg    *config.Config
	logger *zap.Logger

	deviceFlag  string
	jsonFlag    bool
	verboseFlag bool
	configFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "dpsctl",
	Short: "Control an OpenDPS power supply over serial or the network",
	Long: `dpsctl talks to an OpenDPS device over a serial interface or, for
WiFi enabled devices, over UDP. It can change every setting reachable with
the buttons and dial on the device itself, upgrade the firmware and scan
the local network for devices.

If you get tired of specifying the comms interface every time, set the
environment variable ` + config.InterfaceEnvVar + `.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFlag)
		if err != nil {
			return err
		}
		if verboseFlag {
			cfg.Logging.Level = "debug"
		}
		logger, err = utils.NewLogger(&cfg.Logging)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&deviceFlag, "device", "d", "",
		"Device to connect to: a /dev/tty path or an IP address (default: $"+config.InterfaceEnvVar+")")
	rootCmd.PersistentFlags().BoolVarP(&jsonFlag, "json", "j", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose communications")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./dpsctl.yaml)")

	rootCmd.AddCommand(versionCmd)
}

// newClient resolves the comms interface and builds a protocol client over
// the matching transport variant.
func newClient() (*client.Client, error) {
	name, err := config.InterfaceName(deviceFlag)
	if err != nil {
		return nil, err
	}
	t := transport.New(name, cfg, logger)
	return client.New(t, logger), nil
}

// versionCmd shows version info
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dpsctl %s\n", Version)
	},
}
