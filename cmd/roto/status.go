package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rotolab/roto/pkg/thermal"
)

func NewStatusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of the machine",
		Long:    `Get machine status: run state, drum speed, temperatures, and the active profile.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetStatus()
			if err != nil {
				return fmt.Errorf("failed to get machine status: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			cmd.Println(bold("Machine:"))
			cmd.Printf("  Mode: %s (%s page, %s)\n", mode2Text(st.Mode), st.Page, st.State)
			cmd.Printf("  Uptime: %s\n", ms2Text(st.UptimeMS))

			cmd.Println()
			cmd.Println(bold("Development run:"))
			cmd.Printf("  Programmed time: %s\n", bold("%d:%02d", st.Minutes, st.Seconds))
			if st.Running {
				cmd.Printf("  Running: %s (%s, %s)\n", bool2Text(true), st.Phase, st.Direction)
				cmd.Printf("  Elapsed: %s\n", ms2Text(st.ElapsedMS))
				cmd.Printf("  Remaining: %s\n", bold("%s", ms2Text(st.RemainingMS)))
			} else {
				cmd.Printf("  Running: %s\n", bool2Text(false))
			}
			cmd.Printf("  Drum speed: %s (dial %d, averaged %d rpm)\n",
				bold("%d rpm", st.RPM), st.Dial, st.MeanRPM)

			cmd.Println()
			cmd.Println(bold("Temperatures:"))
			cmd.Printf("  Bath:   %s\n", reading2Text(st.Readings.Bath))
			cmd.Printf("  Tank:   %s\n", reading2Text(st.Readings.Tank))
			cmd.Printf("  Bottle: %s\n", reading2Text(st.Readings.Bottle))
			cmd.Printf("  Mean:   %s\n", reading2Text(st.MeanTenths))
			cmd.Printf("  Drum-interior estimate: %s\n", tenths2Text(st.EstimateTenths))
			cmd.Printf("  Suggested chemistry temperature: %s\n", tenths2Text(st.SuggestionTenths))

			cmd.Println()
			cmd.Println(bold("Preheat:"))
			cmd.Printf("  Ready: %s\n", bool2Text(st.PreheatReady))
			if st.PreheatElapsedMS > 0 {
				cmd.Printf("  Heating for: %s\n", ms2Text(st.PreheatElapsedMS))
			}

			cmd.Println()
			cmd.Println(bold("Active profile:"))
			cmd.Printf("  %d: %s\n", st.Profile.ID, bold("%s", st.Profile.Process))
			cmd.Printf("  Target: %s (%s tank", tenths2Text(st.Profile.TargetTenths), st.Profile.Tank)
			if st.Profile.VolumeML > 0 {
				cmd.Printf(", %d ml", st.Profile.VolumeML)
			}
			cmd.Println(")")
			if st.Profile.MinPreheatSec > 0 {
				cmd.Printf("  Minimum preheat hold: %s\n",
					(time.Duration(st.Profile.MinPreheatSec) * time.Second).String())
			}

			if st.Offsets.Heater != 0 || st.Offsets.Bath != 0 ||
				st.Offsets.Tank != 0 || st.Offsets.Bottle != 0 {
				cmd.Println()
				cmd.Println(bold("Calibration offsets (tenths):"))
				cmd.Printf("  heater %+d, bath %+d, tank %+d, bottle %+d\n",
					st.Offsets.Heater, st.Offsets.Bath, st.Offsets.Tank, st.Offsets.Bottle)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")

	return cmd
}

func mode2Text(mode string) string {
	switch mode {
	case "developing":
		return color.New(color.Bold, color.FgGreen).Sprint(mode)
	case "preheating":
		return color.New(color.Bold, color.FgYellow).Sprint(mode)
	default:
		return bold("%s", mode)
	}
}

func reading2Text(r thermal.Reading) string {
	if !r.Valid {
		return color.New(color.FgRed).Sprint("no probe")
	}
	return tenths2Text(r.Tenths)
}

func tenths2Text(tenths int) string {
	return bold("%.1f °C", float64(tenths)/10.0)
}

func ms2Text(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Truncate(time.Second).String()
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
