package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shen-assistant/shen/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show shen status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s shen Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:      %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Printf("Data dir:    %s\n", config.DataDir())
	fmt.Printf("Workspace:   %s\n", cfg.WorkspacePath())
	fmt.Printf("MCP enabled: %v\n", cfg.MCPEnabled)
	fmt.Printf("Debug:       %v\n\n", cfg.Debug)

	fmt.Println("Plugin dirs:")
	for _, dir := range cfg.ExpandedPluginDirs() {
		mark := "✗"
		if _, err := os.Stat(dir); err == nil {
			mark = "✓"
		}
		fmt.Printf("  %s %s\n", dir, mark)
	}

	a, err := loadApp()
	if err != nil {
		return nil
	}
	services := a.MCPStore().All()
	fmt.Printf("\nMCP services: %d configured\n", len(services))
	for _, svc := range services {
		state := "disabled"
		if svc.Enabled {
			state = "enabled"
		}
		fmt.Printf("  %-16s %-10s %s\n", svc.Name, state, svc.Transport)
	}
	return nil
}
