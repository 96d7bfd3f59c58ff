package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show plugins, capabilities, and MCP services",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		fmt.Print(a.Info())
		return nil
	},
}
