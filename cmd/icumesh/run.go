package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/careloop/icumesh"
	"github.com/careloop/icumesh/config"
	"github.com/careloop/icumesh/logging"
)

var (
	runConfigPath string
	runPatients   int
	runTick       time.Duration
	runDuration   time.Duration
	runLogLevel   string
	runLogFormat  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation to completion",
	Long:  "run starts the simulation clock, drives the synthetic patient feed and the clinical agents, and prints the final summary report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if runConfigPath != "" {
			loaded, err := config.Load(runConfigPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		// Flags override the file.
		if cmd.Flags().Changed("patients") {
			cfg.Patients = runPatients
		}
		if cmd.Flags().Changed("tick") {
			cfg.TickInterval = config.Duration(runTick)
		}
		if cmd.Flags().Changed("duration") {
			cfg.Duration = config.Duration(runDuration)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err := newLogger(runLogLevel, runLogFormat)
		if err != nil {
			return err
		}

		sim, err := icumesh.New(func(o *icumesh.Options) {
			o.Config = cfg
			o.Logger = logger
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := sim.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}

		printSummary(cmd, sim)
		return nil
	},
}

func newLogger(level, format string) (*logging.SimLogger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return logging.NewLogger(&logging.Config{
		Level:  lvl,
		Format: format,
		Output: os.Stderr,
	}), nil
}

func printSummary(cmd *cobra.Command, sim *icumesh.Simulation) {
	s := sim.Summary()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "simulation summary")
	fmt.Fprintf(out, "  state:                %s\n", sim.State())
	fmt.Fprintf(out, "  ticks:                %d\n", s.Ticks)
	fmt.Fprintf(out, "  elapsed:              %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "  vital updates:        %d\n", s.VitalUpdates)
	fmt.Fprintf(out, "  lab results:          %d\n", s.LabResults)
	fmt.Fprintf(out, "  medication changes:   %d\n", s.MedicationChanges)
	fmt.Fprintf(out, "  alerts:               %d\n", s.Alerts)
	fmt.Fprintf(out, "  messages:             %d\n", s.Messages)
	fmt.Fprintf(out, "  decisions:            %d\n", s.Decisions)
	fmt.Fprintf(out, "  decisions per minute: %.2f\n", s.DecisionsPerMinute)

	fmt.Fprintln(out, "agent roster")
	for _, status := range sim.Query().Roster() {
		fmt.Fprintf(out, "  %-10s decisions=%d messages=%d skipped=%d avg_confidence=%.2f\n",
			status.Role, status.Decisions, status.Messages, status.Skipped, status.AvgConfidence)
	}
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Path to simulation configuration YAML")
	runCmd.Flags().IntVarP(&runPatients, "patients", "p", 10, "Number of patients to admit")
	runCmd.Flags().DurationVarP(&runTick, "tick", "t", 5*time.Second, "Tick interval (e.g. 500ms, 5s)")
	runCmd.Flags().DurationVarP(&runDuration, "duration", "d", 2*time.Minute, "Total simulation duration")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runLogFormat, "log-format", "text", "Log format (text, json)")
}
