package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List discovered plugins",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		all := a.Plugins().Registry().All()
		if len(all) == 0 {
			fmt.Println("No plugins discovered. Drop plugin directories under ~/.shen/plugins.")
			return nil
		}
		fmt.Printf("%-16s %-40s %s\n", "Name", "Description", "Capabilities")
		fmt.Println(strings.Repeat("-", 80))
		for _, p := range all {
			fmt.Printf("%-16s %-40s %s\n", p.Name(), truncStr(p.Description(), 39), strings.Join(p.Capabilities(), ", "))
		}
		return nil
	},
}

func truncStr(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
