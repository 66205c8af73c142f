// Command acctpolicyctl drives the accounting policy engine against a
// small in-memory demo world, for exercising and inspecting admission
// decisions without a full scheduler attached.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "acctpolicyctl",
	Short: "Accounting policy engine control CLI",
	Long:  "acctpolicyctl drives the accounting policy engine's admission, runnability, and usage operations against a demo world of QoS, association, and partition records.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("acctpolicyctl v0.1.0")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
