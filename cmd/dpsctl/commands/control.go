// cmd/dpsctl/commands/control.go
package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dpsctl/internal/format"
	"dpsctl/pkg/protocol"
)

func init() {
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(outputCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(functionsCmd)
	rootCmd.AddCommand(functionCmd)
	rootCmd.AddCommand(parametersCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(temperatureCmd)
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping the device (causes the screen to flash)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Ping(); err != nil {
			return err
		}
		fmt.Println("Got pong from device")
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query device settings and measurements",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		q, err := c.Query()
		if err != nil {
			return err
		}
		return format.PrintQuery(os.Stdout, q, jsonFlag)
	},
}

var outputCmd = &cobra.Command{
	Use:   "output on|off",
	Short: "Enable or disable the power output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var on bool
		switch args[0] {
		case "on":
			on = true
		case "off":
			on = false
		default:
			return fmt.Errorf("output is 'on' or 'off'")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		return c.EnableOutput(on)
	},
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock the device keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		_, err = c.Communicate(protocol.NewLock(true))
		return err
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock the device keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		_, err = c.Communicate(protocol.NewLock(false))
		return err
	},
}

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the functions the device supports",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Communicate(protocol.NewListFunctions())
		if err != nil {
			return err
		}
		list, ok := res.(*protocol.FunctionListResult)
		if !ok || !list.Success {
			return fmt.Errorf("failed to list available functions")
		}
		return format.PrintFunctions(os.Stdout, list, jsonFlag)
	},
}

var functionCmd = &cobra.Command{
	Use:   "function <name>",
	Short: "Set the active function",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.SetFunction(args[0]); err != nil {
			return err
		}
		fmt.Println("Changed function.")
		return nil
	},
}

var parametersCmd = &cobra.Command{
	Use:   "parameters",
	Short: "List the parameters of the active function",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Communicate(protocol.NewListParameters())
		if err != nil {
			return err
		}
		list, ok := res.(*protocol.ParameterListResult)
		if !ok || !list.Success {
			return fmt.Errorf("failed to list available parameters")
		}
		return format.PrintParameters(os.Stdout, list, jsonFlag)
	},
}

var setCmd = &cobra.Command{
	Use:   "set <name>=<value> ...",
	Short: "Set one or more parameters of the active function",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParameters(args)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.SetParameters(params)
		if err != nil {
			return err
		}
		format.PrintSetParameters(os.Stdout, params, res)
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Re-initialize the device's internal storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		_, err = c.Communicate(protocol.NewInit())
		return err
	},
}

var temperatureCmd = &cobra.Command{
	Use:    "temperature <deci-degrees>",
	Short:  "Send a temperature report (for testing)",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deci, err := strconv.ParseInt(args[0], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid temperature %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		_, err = c.Communicate(protocol.NewTemperatureReport(int16(deci)))
		return err
	},
}

// parseParameters turns name=value arguments into ordered parameters.
func parseParameters(args []string) ([]protocol.Parameter, error) {
	params := make([]protocol.Parameter, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformatted parameter %q", arg)
		}
		params = append(params, protocol.Parameter{Key: key, Value: value})
	}
	return params, nil
}
