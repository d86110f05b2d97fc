package main

import (
	"fmt"
	"os"

	"hoard/internal/app"
	"hoard/internal/config"
	"hoard/internal/index"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if index.IsFatal(err) {
			// A metadata index hit an unrecoverable store error. Nothing
			// here can be retried safely.
			fmt.Fprintf(os.Stderr, "fatal index failure: %v\n", err)
		}
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Latest", "Families").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "hoard",
	Short: "Metadata index core for the hoard backup engine",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:    %s\n", cfg.HostID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Index Type: %s\n", cfg.Index.Type)
		fmt.Printf("Index Dir:  %s\n", cfg.Index.DataDir)
		return nil
	},
}

// latest command
var latestCmd = &cobra.Command{
	Use:   "latest <family>",
	Short: "Show the latest snapshot recorded for a family",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Latest")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Snapshots.Latest(args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Printf("No snapshot recorded for family %q\n", args[0])
			return nil
		}

		fmt.Printf("Family:   %s\n", rec.Family)
		fmt.Printf("Root:     %s\n", rec.Hash)
		fmt.Printf("Sequence: %d\n", rec.ID)
		fmt.Printf("Tree ref: %d bytes\n", len(rec.TreeRef))
		return nil
	},
}

// families command
var familiesCmd = &cobra.Command{
	Use:   "families",
	Short: "List all families with recorded snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Families")
		if err != nil {
			return err
		}
		defer a.Close()

		families, err := a.Snapshots.Families()
		if err != nil {
			return err
		}
		if len(families) == 0 {
			fmt.Println("No snapshots recorded")
			return nil
		}

		for _, f := range families {
			fmt.Println(f)
		}
		return nil
	},
}

// history command
var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <family>",
	Short: "Show recent snapshots for a family, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Snapshots.History(args[0], historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No snapshot recorded for family %q\n", args[0])
			return nil
		}

		for _, rec := range records {
			fmt.Printf("%8d  %s\n", rec.ID, rec.Hash)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check index database schema versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		statuses, err := app.Status(cfg)
		if err != nil {
			return err
		}

		ok := true
		for _, s := range statuses {
			if s.Err != nil {
				ok = false
				fmt.Printf("%-8s  %s\n          %v\n", s.Name, s.Path, s.Err)
			} else {
				fmt.Printf("%-8s  %s\n          schema up to date\n", s.Name, s.Path)
			}
		}
		if !ok {
			return fmt.Errorf("one or more indices need attention")
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of snapshots to show")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(familiesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
}
