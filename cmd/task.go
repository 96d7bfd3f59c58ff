package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shen-assistant/shen/internal/task"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage scheduled tasks",
}

func init() {
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskRemoveCmd)
	taskCmd.AddCommand(taskEnableCmd)
	taskCmd.AddCommand(taskRunCmd)
	taskCmd.AddCommand(taskStartCmd)
}

// ---- list ------------------------------------------------------------------

var taskListAll bool

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		jobs := a.TaskService().List(taskListAll)
		if len(jobs) == 0 {
			fmt.Println("No scheduled jobs.")
			return nil
		}
		fmt.Printf("%-10s %-20s %-25s %-10s %-20s\n", "ID", "Name", "Schedule", "Status", "Next Run")
		fmt.Println(strings.Repeat("-", 88))
		for _, j := range jobs {
			status := "enabled"
			if !j.Enabled {
				status = "disabled"
			}
			nextRun := ""
			if j.State.NextRunAtMs != nil {
				nextRun = time.UnixMilli(*j.State.NextRunAtMs).Format("2006-01-02 15:04")
			}
			fmt.Printf("%-10s %-20s %-25s %-10s %-20s\n",
				j.ID, truncStr(j.Name, 19), truncStr(formatSchedule(j.Schedule), 24), status, nextRun)
		}
		return nil
	},
}

func init() {
	taskListCmd.Flags().BoolVarP(&taskListAll, "all", "a", false, "Include disabled jobs")
}

// ---- add -------------------------------------------------------------------

var (
	taskAddName  string
	taskAddTask  string
	taskAddEvery int
	taskAddCron  string
	taskAddTZ    string
	taskAddAt    string
)

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a scheduled job",
	RunE: func(_ *cobra.Command, _ []string) error {
		if taskAddTZ != "" && taskAddCron == "" {
			return fmt.Errorf("--tz can only be used with --cron")
		}

		var sched task.Schedule
		switch {
		case taskAddEvery > 0:
			everyMs := int64(taskAddEvery) * 1000
			sched = task.Schedule{Kind: task.KindEvery, EveryMs: &everyMs}
		case taskAddCron != "":
			sched = task.Schedule{Kind: task.KindCron, Expr: &taskAddCron}
			if taskAddTZ != "" {
				sched.TZ = &taskAddTZ
			}
		case taskAddAt != "":
			dt, err := time.ParseInLocation("2006-01-02T15:04:05", taskAddAt, time.Local)
			if err != nil {
				dt, err = time.Parse(time.RFC3339, taskAddAt)
				if err != nil {
					return fmt.Errorf("invalid --at value %q: %w", taskAddAt, err)
				}
			}
			atMs := dt.UnixMilli()
			sched = task.Schedule{Kind: task.KindAt, AtMs: &atMs}
		default:
			return fmt.Errorf("must specify --every, --cron, or --at")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		job, err := a.TaskService().Add(taskAddName, task.Payload{Task: taskAddTask}, sched, sched.Kind == task.KindAt)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Added job '%s' (%s)\n", job.Name, job.ID)
		return nil
	},
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskAddName, "name", "n", "", "Job name (required)")
	taskAddCmd.Flags().StringVarP(&taskAddTask, "task", "t", "", "Task to run (required)")
	taskAddCmd.Flags().IntVarP(&taskAddEvery, "every", "e", 0, "Run every N seconds")
	taskAddCmd.Flags().StringVarP(&taskAddCron, "cron", "c", "", "Cron expression (e.g. '0 9 * * *')")
	taskAddCmd.Flags().StringVar(&taskAddTZ, "tz", "", "IANA timezone for --cron")
	taskAddCmd.Flags().StringVar(&taskAddAt, "at", "", "Run once at ISO datetime")

	_ = taskAddCmd.MarkFlagRequired("name")
	_ = taskAddCmd.MarkFlagRequired("task")
}

// ---- remove / enable / run -------------------------------------------------

var taskRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if a.TaskService().Remove(args[0]) {
			fmt.Printf("✓ Removed job %s\n", args[0])
		} else {
			fmt.Printf("Job %s not found\n", args[0])
		}
		return nil
	},
}

var taskEnableDisable bool

var taskEnableCmd = &cobra.Command{
	Use:   "enable <job-id>",
	Short: "Enable (or disable) a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		job, ok := a.TaskService().Enable(args[0], !taskEnableDisable)
		if !ok {
			fmt.Printf("Job %s not found\n", args[0])
			return nil
		}
		action := "enabled"
		if taskEnableDisable {
			action = "disabled"
		}
		fmt.Printf("✓ Job '%s' %s\n", job.Name, action)
		return nil
	},
}

func init() {
	taskEnableCmd.Flags().BoolVar(&taskEnableDisable, "disable", false, "Disable instead of enable")
}

var taskRunForce bool

var taskRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Manually run a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if a.TaskService().Run(ctx, args[0], taskRunForce) {
			fmt.Println("✓ Job executed")
		} else {
			fmt.Printf("Failed to run job %s (not found or disabled; use --force)\n", args[0])
		}
		return nil
	},
}

func init() {
	taskRunCmd.Flags().BoolVarP(&taskRunForce, "force", "f", false, "Run even if disabled")
}

var taskStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the task scheduler in the foreground",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		fmt.Println("Scheduler running, Ctrl-C to stop.")
		if err := a.TaskService().Start(cmd.Context()); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

// ---- helpers ---------------------------------------------------------------

func formatSchedule(s task.Schedule) string {
	switch s.Kind {
	case task.KindEvery:
		if s.EveryMs != nil {
			return fmt.Sprintf("every %ds", *s.EveryMs/1000)
		}
	case task.KindCron:
		if s.Expr != nil {
			if s.TZ != nil {
				return *s.Expr + " (" + *s.TZ + ")"
			}
			return *s.Expr
		}
	case task.KindAt:
		return "one-time"
	}
	return s.Kind
}
