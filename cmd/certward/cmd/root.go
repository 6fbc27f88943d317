package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "certward",
	Short: "Certward issues short-lived instance identity certificates",
	Long: `Certward is an instance identity issuance service: it signs short-lived
X.509 and SSH certificates for workload instances, tracks issuance records to
block replayed refresh requests, and gates privileged requests by source IP.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
