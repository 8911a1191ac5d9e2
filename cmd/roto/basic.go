package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rotolab/roto/pkg/events"
	"github.com/rotolab/roto/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Short:   "Start a timed development run",
		GroupID: gBasic,
		Long: `Start a timed development run with the programmed run time.

The drum ramps up, agitates with periodic direction reversals, and stops
on its own when the run time elapses. Use 'roto time' to change the run
time first, or 'roto stop' to abort a running cycle.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Start()
			if err != nil {
				return fmt.Errorf("failed to start run: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("development run started")

			return nil
		},
	}
}

func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Short:   "Stop the current run or preheat",
		GroupID: gBasic,
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Stop()
			if err != nil {
				return fmt.Errorf("failed to stop: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("machine stopped")

			return nil
		},
	}
}

func NewTimeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "time [m:ss]",
		Short:   "Set the development run time",
		GroupID: gBasic,
		Long: `Set the development run time.

The time is given as minutes and seconds, e.g. '7:30'. Minutes go up to
99, seconds up to 59. The value is persisted and survives restarts.`,
		Example: `  roto time 7:30
  roto time 12:00`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			minutes, seconds, err := parseTiming(args[0])
			if err != nil {
				return err
			}

			ret, err := apiClient.SetTime(minutes, seconds)
			if err != nil {
				return fmt.Errorf("failed to set run time: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set run time to %d:%02d", minutes, seconds)

			return nil
		},
	}
}

func NewPreheatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "preheat",
		Short:   "Control tempering-bath preheat",
		GroupID: gBasic,
		Long: `Control tempering-bath preheat.

Preheat circulates the bath until the active profile's target
temperature has been held long enough, then reports readiness.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "on",
			Short: "Start preheating",
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := apiClient.SetPreheat(true)
				if err != nil {
					return fmt.Errorf("failed to start preheat: %v", err)
				}

				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}

				logrus.Infof("preheat started")

				return nil
			},
		},
		&cobra.Command{
			Use:   "off",
			Short: "Stop preheating",
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := apiClient.SetPreheat(false)
				if err != nil {
					return fmt.Errorf("failed to stop preheat: %v", err)
				}

				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}

				logrus.Infof("preheat stopped")

				return nil
			},
		},
	)

	return cmd
}

func NewProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile [id]",
		Short:   "Select or list development profiles",
		GroupID: gBasic,
		Long: `Select the active development profile by its id, or list all
profiles when no id is given.`,
		Example: `  roto profile      (list profiles)
  roto profile 3    (activate C-41)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runProfileList(cmd)
			}

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid profile id: %v", err)
			}

			ret, err := apiClient.SelectProfile(id)
			if err != nil {
				return fmt.Errorf("failed to select profile: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully selected profile %d", id)

			return nil
		},
	}

	return cmd
}

func runProfileList(cmd *cobra.Command) error {
	profiles, err := apiClient.GetProfiles()
	if err != nil {
		return fmt.Errorf("failed to get profiles: %v", err)
	}

	st, err := apiClient.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get machine status: %v", err)
	}

	for _, p := range profiles {
		marker := " "
		if p.ID == st.Profile.ID {
			marker = "*"
		}
		cmd.Printf("%s %3d  %-18s %s  %s\n",
			marker, p.ID, p.Process, tenths2Text(p.TargetTenths), p.Tank)
	}

	return nil
}

func NewKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "key [symbol...]",
		Short:   "Press front-panel keys remotely",
		GroupID: gAdvanced,
		Long: `Press front-panel keys remotely.

Each argument is one keypad symbol (0-9, A-D, * or #), delivered to the
machine exactly as if it were pressed on the panel.`,
		Example: `  roto key '#'      (flip to the temperature page)
  roto key B 7 3 0 A  (edit minutes)`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			for _, k := range args {
				if _, err := apiClient.PressKey(k); err != nil {
					return fmt.Errorf("failed to press key %q: %v", k, err)
				}
			}

			logrus.Infof("pressed %d key(s)", len(args))

			return nil
		},
	}
}

func NewEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "events",
		Short:   "Stream machine events",
		GroupID: gAdvanced,
		Long: `Stream machine events (mode changes, run completions, preheat
readiness) until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			ch, err := apiClient.Events(ctx)
			if err != nil {
				return fmt.Errorf("failed to subscribe to events: %v", err)
			}

			for ev := range ch {
				cmd.Printf("%s %s\n", ev.Name, eventText(ev))
			}

			return nil
		},
	}
}

// eventText renders the payloads of the common events in a readable form,
// falling back to the raw JSON.
func eventText(ev events.Event) string {
	switch ev.Name {
	case events.ModeChange:
		if p, err := events.DecodeAs[events.ModeChangeEvent](ev); err == nil {
			return fmt.Sprintf("%s -> %s", p.From, p.To)
		}
	case events.RunCompleted:
		if p, err := events.DecodeAs[events.RunCompletedEvent](ev); err == nil {
			return (time.Duration(p.DurationMS) * time.Millisecond).String()
		}
	case events.PreheatReady:
		if p, err := events.DecodeAs[events.PreheatReadyEvent](ev); err == nil {
			if p.Fallback {
				return "(fallback timer, sensor invalid)"
			}
			return "(held at target)"
		}
	case events.ProfileChange:
		if p, err := events.DecodeAs[events.ProfileChangeEvent](ev); err == nil {
			return fmt.Sprintf("%d %s", p.ID, p.Process)
		}
	case events.PreheatUpcoming:
		if p, err := events.DecodeAs[events.PreheatUpcomingEvent](ev); err == nil {
			return time.Unix(p.RunAt, 0).Local().Format(time.DateTime)
		}
	case events.ScheduleError:
		if p, err := events.DecodeAs[events.ScheduleErrorEvent](ev); err == nil {
			return p.Message
		}
	}
	return string(ev.Data)
}
