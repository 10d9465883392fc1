// cmd/dpsctl/main.go
package main

import (
	"fmt"
	"os"

	"dpsctl/cmd/dpsctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s.\n", err)
		os.Exit(1)
	}
}
