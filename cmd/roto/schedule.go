package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule [cron-expression]",
		Aliases: []string{"sch", "sche", "sched"},
		Short:   "Manage the automatic preheat schedule",
		Long: `Manage the automatic preheat schedule.

The schedule command can be used in multiple ways:
  roto schedule 'minute hour day month weekday' Set schedule with cron expression
  roto schedule disable                         Disable the schedule
  roto schedule postpone [duration]             Postpone next run
  roto schedule skip                            Skip next run
  roto schedule show                            Show current schedule`,
		Example: `  roto schedule '0 8 * * 6' (At 08:00 on Saturday)
  roto schedule '30 18 * * 1-5' (At 18:30 on weekdays)`,
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, args []string) error {
			// If no arguments, show the current schedule
			if len(args) == 0 {
				return runScheduleShow(cmd)
			}
			// Otherwise, treat as a cron expression to set
			return runScheduleSet(cmd, args[0])
		},
	}

	cmd.AddCommand(
		newScheduleDisableCommand(),
		newSchedulePostponeCommand(),
		newScheduleSkipCommand(),
		newScheduleShowCommand(),
	)

	return cmd
}

func newScheduleDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable the preheat schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := apiClient.SetPreheatSchedule(""); err != nil {
				return err
			}
			cmd.Println("Preheat schedule disabled.")
			return nil
		},
	}
}

func newSchedulePostponeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "postpone [duration]",
		Short: "Postpone the next scheduled preheat",
		Example: `  roto schedule postpone      (Postpone by 1 hour)
  roto schedule postpone 90m  (Postpone by 90 minutes)
  roto schedule postpone 2h   (Postpone by 2 hours)`,
		Long: `Postpone the next scheduled preheat by a specified duration.
If no duration is provided, defaults to 1 hour.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := time.Hour
			if len(args) > 0 {
				parsed, err := time.ParseDuration(args[0])
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", args[0], err)
				}
				d = parsed
			}
			if d < time.Minute {
				return fmt.Errorf("duration must be at least one minute")
			}

			if _, err := apiClient.PostponePreheat(int(d / time.Minute)); err != nil {
				return err
			}
			cmd.Printf("Next preheat postponed by %s.\n", d)
			return nil
		},
	}
}

func newScheduleSkipCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "skip",
		Short: "Skip the next scheduled preheat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := apiClient.SkipPreheat(); err != nil {
				return err
			}
			cmd.Println("Next scheduled preheat skipped.")
			return nil
		},
	}
}

func newScheduleShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current preheat schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduleShow(cmd)
		},
	}
}

func runScheduleSet(cmd *cobra.Command, cronExpr string) error {
	if cronExpr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}
	if _, err := apiClient.SetPreheatSchedule(cronExpr); err != nil {
		return err
	}

	sched, err := apiClient.GetPreheatSchedule()
	if err != nil {
		return err
	}
	cmd.Printf("Preheat scheduled. Next run: %s\n",
		sched.NextRun.Local().Format(time.DateTime))
	return nil
}

func runScheduleShow(cmd *cobra.Command) error {
	sched, err := apiClient.GetPreheatSchedule()
	if err != nil {
		return err
	}
	if sched.Expression == "" || sched.NextRun.IsZero() {
		cmd.Println("Preheat schedule is not set.")
		return nil
	}
	cmd.Printf("Expression: %s\n", sched.Expression)
	cmd.Printf("Next run:   %s\n", sched.NextRun.Local().Format(time.DateTime))
	return nil
}
