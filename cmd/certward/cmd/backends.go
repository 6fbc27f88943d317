package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certward/certward/certrecord"
	_ "github.com/certward/certward/certrecord/boltstore"
	_ "github.com/certward/certward/certrecord/memstore"
	_ "github.com/certward/certward/certrecord/pgstore"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List available record store backends",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range certrecord.Backends() {
			fmt.Println(name)
		}
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}
