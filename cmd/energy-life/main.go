package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/awaistahir/energy-life/internal/config"
	"github.com/awaistahir/energy-life/internal/engine"
	"github.com/awaistahir/energy-life/internal/log"
	"github.com/awaistahir/energy-life/internal/store"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	dbPath   string
	logLevel string
	cfg      *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "energy-life",
		Short: "Energy Life - estimate household electricity use and compare tariffs",
		Long: `Energy Life estimates a household's daily and monthly electricity use from
its appliances, then prices it under the flat tiered and time-of-use tariffs.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.energylife/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default is $HOME/.energylife/energylife.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(householdCmd())
	rootCmd.AddCommand(layoutCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(tariffCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.SetDefaultLogLevel(level)

	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*store.Store, error) {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Energy Life with a default household",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := st.EnsureHousehold(store.DefaultHouseholdID); err != nil {
				return err
			}

			fmt.Println("✓ Initialized default household")
			fmt.Printf("Database: %s\n", dbPath)
			fmt.Println("\nNext steps:")
			fmt.Println("  1. Describe your rooms: energy-life layout --room bedroom=2 --room kitchen=1")
			fmt.Println("  2. Estimate usage: energy-life estimate --save")

			return nil
		},
	}
}

func householdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "household",
		Short: "Inspect the household",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored household as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			h, err := st.GetHousehold(store.DefaultHouseholdID)
			if err != nil {
				return fmt.Errorf("getting household: %w (run 'energy-life init' first)", err)
			}
			return printJSON(os.Stdout, h)
		},
	})

	return cmd
}

// parseRoomCounts parses repeated type=count flags
func parseRoomCounts(args []string) (map[engine.RoomType]int, error) {
	counts := make(map[engine.RoomType]int, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid room %q (use type=count)", arg)
		}
		t := engine.RoomType(strings.ToLower(strings.TrimSpace(name)))
		if !engine.ValidRoomType(t) {
			return nil, fmt.Errorf("unknown room type %q", name)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid count for %s: %q", t, value)
		}
		counts[t] += n
	}
	return counts, nil
}

func layoutCmd() *cobra.Command {
	var rooms []string

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Rebuild the house layout from room counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := parseRoomCounts(rooms)
			if err != nil {
				return err
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			h, err := st.EnsureHousehold(store.DefaultHouseholdID)
			if err != nil {
				return err
			}
			h.State.Rooms = engine.BuildLayout(counts)
			if err := st.SaveHousehold(h); err != nil {
				return err
			}

			fmt.Printf("✓ Layout saved with %d rooms\n", len(h.State.Rooms))
			for _, t := range engine.RoomTypes {
				if counts[t] > 0 {
					fmt.Printf("  %-10s %d\n", t, counts[t])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&rooms, "room", "r", nil, "Room count as type=count (repeatable)")
	cmd.MarkFlagRequired("room")

	return cmd
}

func readInput(path string) (*engine.Input, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var in engine.Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decoding input: %w", err)
	}
	return &in, nil
}

func estimateCmd() *cobra.Command {
	var inputPath string
	var save bool

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate today's usage and compare tariffs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var in *engine.Input
			if inputPath != "" {
				if in, err = readInput(inputPath); err != nil {
					return err
				}
			} else {
				h, err := st.GetHousehold(store.DefaultHouseholdID)
				if err != nil {
					return fmt.Errorf("getting household: %w (run 'energy-life init' first)", err)
				}
				in = h.Input()
			}

			tariff, err := st.GetTariffSettings()
			if err != nil {
				return fmt.Errorf("loading tariff: %w", err)
			}
			tariff = cfg.ApplyTariff(tariff)

			result, err := engine.NewEstimator(cfg.Heuristics).Estimate(in, tariff)
			if err != nil {
				return err
			}

			if save {
				rec, err := st.SaveEstimate(store.DefaultHouseholdID, time.Now(), result)
				if err != nil {
					return fmt.Errorf("saving estimate: %w", err)
				}
				log.Ctx(ctx).Info("estimate saved", slog.String("id", rec.ID), slog.String("day", rec.Day))
			}

			return printJSON(os.Stdout, result)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Household input JSON file ('-' for stdin) instead of the stored household")
	cmd.Flags().BoolVar(&save, "save", false, "Save the estimate to history")

	return cmd
}

// parseAssignments parses key=value tariff settings
func parseAssignments(args []string) (map[string]string, error) {
	known := make(map[string]bool, len(engine.SettingKeys))
	for _, k := range engine.SettingKeys {
		known[k] = true
	}

	out := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !ok || !known[k] {
			return nil, fmt.Errorf("invalid setting %q (known keys: %s)", arg, strings.Join(engine.SettingKeys, ", "))
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return nil, fmt.Errorf("setting %s must be numeric, got %q", k, v)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func tariffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tariff",
		Short: "Show or change tariff settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective tariff settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			t, err := st.GetTariffSettings()
			if err != nil {
				return err
			}
			t = cfg.ApplyTariff(t)

			m := t.Map()
			for _, k := range engine.SettingKeys {
				fmt.Printf("%-18s %s\n", k, m[k])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set key=value...",
		Short: "Update stored tariff settings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := parseAssignments(args)
			if err != nil {
				return err
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			t, err := st.GetTariffSettings()
			if err != nil {
				return err
			}
			t.Apply(updates)
			if err := st.SaveTariffSettings(t); err != nil {
				return err
			}

			fmt.Printf("✓ Updated %d tariff settings\n", len(updates))
			return nil
		},
	})

	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved estimates",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.ListEstimates(store.DefaultHouseholdID, limit)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Println("No estimates saved")
				return nil
			}

			fmt.Printf("%-12s %10s %10s %10s %12s %12s\n", "DAY", "KWH", "NET", "ON-PEAK", "COST/DAY", "BEST")
			fmt.Println("------------------------------------------------------------------------")

			for _, r := range records {
				fmt.Printf("%-12s %10.3f %10.3f %10.3f %12s %12s\n",
					r.Day, r.KWhTotal, r.KWhNet, r.KWhOn, r.CostToday.StringFixed(2), r.Recommended)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 30, "Number of estimates to show")

	return cmd
}
