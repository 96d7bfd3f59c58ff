package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shen-assistant/shen/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Manage MCP services",
}

var errMCPDisabled = fmt.Errorf("MCP integration is disabled (mcp_enabled=false in config)")

func init() {
	mcpCmd.AddCommand(mcpListCmd)
	mcpCmd.AddCommand(mcpConnectCmd)
	mcpCmd.AddCommand(mcpDisconnectCmd)
	mcpCmd.AddCommand(mcpToolsCmd)
	mcpCmd.AddCommand(mcpCallCmd)
	mcpCmd.AddCommand(mcpAddCmd)
	mcpCmd.AddCommand(mcpRemoveCmd)
}

// ---- list ------------------------------------------------------------------

var mcpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured MCP services",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		statuses := a.MCPManager().List()
		if len(statuses) == 0 {
			fmt.Println("No MCP services configured.")
			return nil
		}
		fmt.Printf("%-18s %-10s %-12s %-8s %s\n", "Name", "Transport", "State", "Tools", "Endpoint")
		fmt.Println(strings.Repeat("-", 90))
		for _, st := range statuses {
			state := st.State.String()
			if !st.Config.Enabled {
				state = "disabled"
			}
			fmt.Printf("%-18s %-10s %-12s %-8d %s\n",
				st.Config.Name, st.Config.Transport, state, st.ToolCount, truncStr(st.Config.Endpoint, 40))
		}
		return nil
	},
}

// ---- connect / disconnect --------------------------------------------------

var mcpConnectAll bool

var mcpConnectCmd = &cobra.Command{
	Use:   "connect [service]",
	Short: "Connect to an MCP service (or --all enabled services)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if !mcpConnectAll && len(args) == 0 {
			return fmt.Errorf("specify a service name or --all")
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		if !a.Config().MCPEnabled {
			return errMCPDisabled
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		defer a.Close(context.Background())

		mgr := a.MCPManager()
		if mcpConnectAll {
			if err := mgr.ConnectEnabled(ctx); err != nil {
				return err
			}
		} else if err := mgr.Connect(ctx, args[0]); err != nil {
			return err
		}

		for _, st := range mgr.List() {
			if st.State == mcp.ConnConnected {
				fmt.Printf("✓ %s connected (%s %s, %d tools)\n",
					st.Config.Name, st.Server.Name, st.Server.Version, st.ToolCount)
			}
		}
		return nil
	},
}

func init() {
	mcpConnectCmd.Flags().BoolVar(&mcpConnectAll, "all", false, "Connect every enabled service")
}

var mcpDisconnectCmd = &cobra.Command{
	Use:   "disconnect <service>",
	Short: "Disconnect from an MCP service",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		a.MCPManager().Disconnect(ctx, args[0])
		fmt.Printf("✓ %s disconnected\n", args[0])
		return nil
	},
}

// ---- tools / call ----------------------------------------------------------

var mcpToolsService string

var mcpToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List tools exposed by connected MCP services",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if !a.Config().MCPEnabled {
			return errMCPDisabled
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		defer a.Close(context.Background())

		mgr := a.MCPManager()
		if mcpToolsService != "" {
			if err := mgr.Connect(ctx, mcpToolsService); err != nil {
				return err
			}
		} else if err := mgr.ConnectEnabled(ctx); err != nil {
			return err
		}

		tools, err := mgr.Tools(ctx, mcpToolsService)
		if err != nil {
			return err
		}
		if len(tools) == 0 {
			fmt.Println("No tools available.")
			return nil
		}
		for _, t := range tools {
			fmt.Printf("%-18s %-28s %s\n", t.Service, t.Name, truncStr(t.Description, 50))
		}
		return nil
	},
}

func init() {
	mcpToolsCmd.Flags().StringVarP(&mcpToolsService, "service", "s", "", "Only this service")
}

var mcpCallArgs string

var mcpCallCmd = &cobra.Command{
	Use:   "call <service> <tool>",
	Short: "Invoke a tool on an MCP service",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		var toolArgs map[string]any
		if mcpCallArgs != "" {
			if err := json.Unmarshal([]byte(mcpCallArgs), &toolArgs); err != nil {
				return fmt.Errorf("invalid --args JSON: %w", err)
			}
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		if !a.Config().MCPEnabled {
			return errMCPDisabled
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		defer a.Close(context.Background())

		mgr := a.MCPManager()
		if err := mgr.Connect(ctx, args[0]); err != nil {
			return err
		}
		out, err := mgr.CallTool(ctx, args[0], args[1], toolArgs)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	mcpCallCmd.Flags().StringVar(&mcpCallArgs, "args", "", "Tool arguments as a JSON object")
}

// ---- add / remove ----------------------------------------------------------

var (
	mcpAddTransport string
	mcpAddEndpoint  string
	mcpAddArgs      []string
	mcpAddEnv       []string
	mcpAddHeaders   []string
	mcpAddDesc      string
	mcpAddDisabled  bool
	mcpAddTimeout   int
)

var mcpAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an MCP service descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		env, err := parseKVs(mcpAddEnv, "--env")
		if err != nil {
			return err
		}
		headers, err := parseKVs(mcpAddHeaders, "--header")
		if err != nil {
			return err
		}

		cfg := mcp.ServiceConfig{
			Name:        args[0],
			Description: mcpAddDesc,
			Transport:   mcp.TransportKind(mcpAddTransport),
			Endpoint:    mcpAddEndpoint,
			Args:        mcpAddArgs,
			Env:         env,
			Headers:     headers,
			Enabled:     !mcpAddDisabled,
			TimeoutSec:  mcpAddTimeout,
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := a.MCPStore().Add(cfg); err != nil {
			return err
		}
		fmt.Printf("✓ Added MCP service '%s'\n", cfg.Name)
		return nil
	},
}

func init() {
	mcpAddCmd.Flags().StringVarP(&mcpAddTransport, "transport", "t", "stdio", "Transport: stdio, http, or websocket")
	mcpAddCmd.Flags().StringVarP(&mcpAddEndpoint, "endpoint", "e", "", "Command (stdio) or URL (http/websocket)")
	mcpAddCmd.Flags().StringArrayVar(&mcpAddArgs, "arg", nil, "Command argument (stdio, repeatable)")
	mcpAddCmd.Flags().StringArrayVar(&mcpAddEnv, "env", nil, "KEY=VALUE environment entry (stdio, repeatable)")
	mcpAddCmd.Flags().StringArrayVar(&mcpAddHeaders, "header", nil, "KEY=VALUE header (http/websocket, repeatable)")
	mcpAddCmd.Flags().StringVarP(&mcpAddDesc, "description", "d", "", "Human description")
	mcpAddCmd.Flags().BoolVar(&mcpAddDisabled, "disabled", false, "Create the service disabled")
	mcpAddCmd.Flags().IntVar(&mcpAddTimeout, "timeout", 0, "Request timeout in seconds (0 = default)")

	_ = mcpAddCmd.MarkFlagRequired("endpoint")
}

var mcpRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an MCP service descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if a.MCPManager().RemoveService(ctx, args[0]) {
			fmt.Printf("✓ Removed MCP service '%s'\n", args[0])
		} else {
			fmt.Printf("Service '%s' not found\n", args[0])
		}
		return nil
	},
}

func parseKVs(pairs []string, flag string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid %s %q, want KEY=VALUE", flag, kv)
		}
		out[k] = v
	}
	return out, nil
}
