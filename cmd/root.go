// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "packetscope",
	Short: "Packetscope - network packet decoding and analysis engine",
	Long: `Packetscope decodes raw network frames (L2-L4), filters the decoded
records, aggregates traffic statistics, and flags security and performance
anomalies.

Frames come from an offline pcap file or a deterministic traffic generator;
results go to the console or a JSON/YAML capture file that can be reloaded
and re-analyzed later.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(loadCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
