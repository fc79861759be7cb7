package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "qi",
		Short: "qi messaging runtime - nodes, services, signals",
		Long: `qi is the messaging runtime of the robotics platform: nodes register
named services, other nodes discover and invoke them, and objects expose
methods and signals across process boundaries.`,
		Version: version,
	}

	rootCmd.AddCommand(newSigCommand())
	rootCmd.AddCommand(newNodeCommand())
	rootCmd.AddCommand(newDirectoryCommand())

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
}
