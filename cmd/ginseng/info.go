package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the local node identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore()
		if err != nil {
			return err
		}
		fmt.Printf("Node ID: %s\n", core.NodeInfo())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
