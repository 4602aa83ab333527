// Command salahnow-status prints the next prayer on one line for tmux
// status bars. It accepts the same flags as 'salahnow status'.
package main

import (
	"fmt"
	"os"

	"github.com/smokyabdulrahman/salahnow/internal/cli"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	rootCmd := cli.NewRootCmd(version)
	rootCmd.SetArgs(cli.StatusArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
