package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okx/aa-settlement/internal/config"
	"github.com/okx/aa-settlement/internal/start"
)

var rootCmd = &cobra.Command{
	Use:   "aa-settlement",
	Short: "A settlement engine for account abstraction operations",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the engine and its JSON-RPC server",
	Run: func(cmd *cobra.Command, args []string) {
		conf := config.GetValues()
		if err := start.PrivateMode(conf); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
