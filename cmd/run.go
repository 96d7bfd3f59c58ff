package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	runArgs        []string
	runInteractive bool
)

var runCmd = &cobra.Command{
	Use:   "run <task...>",
	Short: "Run a task through the plugin layer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		extra := make(map[string]string)
		for _, kv := range runArgs {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid --arg %q, want key=value", kv)
			}
			extra[k] = v
		}

		taskText := strings.Join(args, " ")

		if runInteractive {
			matches := a.Plugins().Registry().FindForTask(taskText)
			if len(matches) == 0 {
				return fmt.Errorf("no plugin can handle %q; run 'shen plugins' to see what is available", taskText)
			}
			fmt.Printf("Plugin '%s' will handle this task. Proceed? [y/N] ", matches[0].Name())
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		out, err := a.RunTask(ctx, taskText, extra)
		if err != nil {
			return err
		}
		if out != "" {
			fmt.Println(out)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringArrayVar(&runArgs, "arg", nil, "Extra key=value argument passed to the plugin")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "Confirm the plugin choice before running")
}
