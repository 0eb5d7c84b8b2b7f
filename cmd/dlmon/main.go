package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/guijianchou/IDM-Download-Monitor/internal/analysis"
	"github.com/guijianchou/IDM-Download-Monitor/internal/app"
	"github.com/guijianchou/IDM-Download-Monitor/internal/config"
	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// exitCode is set by commands whose outcome maps to something other than
// success or a returned error.
var exitCode = app.ExitOK

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(app.ExitCodeForError(err))
	}
	os.Exit(exitCode)
}

// configPath returns --config or the default config location.
func configPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, nil
	}
	defaults, err := app.GetDefaults()
	if err != nil {
		return "", fmt.Errorf("getting defaults: %w", err)
	}
	return defaults["config_path"], nil
}

// loadConfig reads the config file and resolves the monitored root.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	if err := app.ResolveRoot(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// newApp reads the config, applies overrides and creates a MonitorApp. The
// caller must defer app.Close().
func newApp(cmd *cobra.Command, override func(*config.Config)) (*app.MonitorApp, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}

	a, err := app.NewMonitorApp(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "dlmon",
	Short:        "Downloads folder monitor and organizer",
	SilenceUsage: true,
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
		path, err := configPath(cmd)
		if err != nil {
			return err
		}

		// The root is left empty so it is detected on every run.
		cfg := config.NewConfig("", defaults["data_dir"])
		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", path)
		fmt.Printf("Data Dir: %s\n", defaults["data_dir"])
		if root, err := app.DetectRoot(); err == nil {
			fmt.Printf("Detected downloads folder: %s\n", root)
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Root:           %s\n", cfg.Root)
		fmt.Printf("Store:          %s\n", app.StorePath(cfg))
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Interval:       %ds\n", cfg.Monitoring.IntervalSeconds)
		fmt.Printf("Incremental:    %v\n", cfg.Monitoring.Incremental)
		fmt.Printf("Hash Files:     %v\n", cfg.Monitoring.HashFiles)
		fmt.Printf("Analysis:       %v\n", cfg.Monitoring.EnableAnalysis)
		fmt.Printf("Auto Organize:  %v\n", cfg.Organization.AutoOrganize)
		fmt.Printf("Dry Run:        %v\n", cfg.Organization.DryRun)
		fmt.Printf("Max Hash Size:  %s\n", humanize.IBytes(uint64(cfg.Performance.MaxHashSizeMB)*humanize.MiByte))
		fmt.Printf("History:        %s\n", cfg.Database.Type)
		fmt.Printf("Vault:          %s\n", cfg.Vault.Type)
		fmt.Printf("Encrypt:        %v\n", cfg.Encryption.Encrypt)
		fmt.Println("\nCategories:")
		for _, c := range cfg.Organization.Categories {
			fmt.Printf("  %-12s %s\n", c.Name, strings.Join(c.Extensions, " "))
		}
		for _, r := range cfg.Organization.Rules {
			fmt.Printf("  rule %q -> %s\n", r.Pattern, r.Category)
		}
		return nil
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan, organize and record the downloads folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		continuous, _ := flags.GetBool("continuous")
		intervalSec, _ := flags.GetInt("interval")
		dryRun, _ := flags.GetBool("dry-run")
		noOrganize, _ := flags.GetBool("no-organize")
		noAnalysis, _ := flags.GetBool("no-analysis")
		analysisOnly, _ := flags.GetBool("analysis-only")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		a, err := newApp(cmd, func(cfg *config.Config) {
			if dryRun {
				cfg.Organization.DryRun = true
			}
			if noOrganize {
				cfg.Organization.AutoOrganize = false
			}
			if intervalSec > 0 {
				cfg.Monitoring.IntervalSeconds = intervalSec
			}
		})
		if err != nil {
			return err
		}
		defer a.Close()

		if analysisOnly {
			reports, err := a.Analyze(ctx)
			printReports(reports)
			return err
		}

		if err := a.CheckArchiveVersion(ctx); err != nil {
			return err
		}

		analyze := a.Config().Monitoring.EnableAnalysis && !noAnalysis
		if !continuous {
			out, err := a.RunCycle(ctx, analyze)
			printOutcome(out)
			exitCode = app.ExitCode(out)
			return err
		}

		fmt.Printf("Monitoring %s every %s (Ctrl+C to stop)\n", a.Config().Root, a.Interval())
		err = a.Run(ctx, a.Interval(), analyze, func(out *app.CycleOutcome) {
			printOutcome(out)
		})
		if err != nil {
			return err
		}
		fmt.Println("Monitoring stopped.")
		return nil
	},
}

func printOutcome(out *app.CycleOutcome) {
	if out == nil || out.CycleResult == nil {
		return
	}
	prefix := ""
	if out.DryRun {
		prefix = "[dry run] "
	}

	switch out.Outcome {
	case monitor.OutcomeFatalConfig:
		fmt.Fprintf(os.Stderr, "%sconfiguration error: %v\n", prefix, out.Err)
		return
	case monitor.OutcomeFailed:
		fmt.Fprintf(os.Stderr, "%scycle failed: %v\n", prefix, out.Err)
		return
	}

	for _, mv := range out.Planned {
		fmt.Printf("%smove %s -> %s\n", prefix, mv.From, mv.To)
	}
	s := out.Summary
	fmt.Printf("%s%s: %d scanned, %d hashed, %d updated (%d new, %d modified, %d deleted, %d moved)\n",
		prefix,
		out.FinishedAt.Format("2006-01-02 15:04:05"),
		out.Scanned, out.Hashed, out.Updated(),
		len(s.New), len(s.Modified), len(s.Deleted), len(s.Moved),
	)
	for _, w := range out.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if out.Archived {
		fmt.Println("Store archived.")
	}
	printReports(out.Reports)
	if out.PostErr != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", out.PostErr)
	}
}

func printReports(reports []*analysis.Report) {
	for _, r := range reports {
		fmt.Printf("\n%s\n", r.Title)
		for _, line := range r.Lines {
			fmt.Printf("  %s\n", line)
		}
	}
}

// analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report on the saved record store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		reports, err := a.Analyze(cmd.Context())
		printReports(reports)
		return err
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recorded monitoring cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		showMoves, _ := cmd.Flags().GetBool("moves")

		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		cycles, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(cycles) == 0 {
			fmt.Println("No cycles recorded.")
			return nil
		}

		for _, c := range cycles {
			duration := ""
			if c.FinishedAt.Valid {
				duration = c.FinishedAt.Time.Sub(c.StartedAt).Truncate(time.Millisecond).String()
			}
			dry := ""
			if c.DryRun {
				dry = "  [dry run]"
			}
			fmt.Printf("#%d  %s  %-14s  %-9s  %8s  scanned:%d new:%d mod:%d del:%d moved:%d%s\n",
				c.ID,
				c.StartedAt.Local().Format("2006-01-02 15:04:05"),
				humanize.Time(c.StartedAt),
				c.Status,
				duration,
				c.Scanned, c.New, c.Modified, c.Deleted, c.Moved,
				dry,
			)
			if !showMoves || c.Moved == 0 {
				continue
			}
			moves, err := a.CycleMoves(c.CycleID)
			if err != nil {
				return err
			}
			for _, mv := range moves {
				fmt.Printf("      %s -> %s\n", mv.From, mv.To)
			}
		}
		return nil
	},
}

// clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Collapse duplicate rows in the record store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CheckArchiveVersion(cmd.Context()); err != nil {
			return err
		}

		summary, err := a.Clean(cmd.Context())
		if err != nil {
			return err
		}
		if len(summary.Collapsed) == 0 {
			fmt.Println("No duplicate rows found.")
			return nil
		}
		for _, c := range summary.Collapsed {
			fmt.Printf("collapsed %s into %s\n", c.Path, c.Into)
		}
		fmt.Printf("Removed %d duplicate row(s)\n", len(summary.Collapsed))
		return nil
	},
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show platform and resolved paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		info := app.GetSystemInfo(cfg, path)

		fmt.Printf("Platform:   %s/%s (%s)\n", info.OS, info.Arch, info.GoVersion)
		fmt.Printf("WSL:        %v\n", info.WSL)
		fmt.Printf("Config:     %s\n", info.ConfigPath)
		fmt.Printf("Root:       %s\n", info.Root)
		fmt.Printf("Store:      %s", info.StorePath)
		if st, err := os.Stat(info.StorePath); err == nil {
			fmt.Printf(" (%s, updated %s)", humanize.Bytes(uint64(st.Size())), humanize.Time(st.ModTime()))
		} else {
			fmt.Print(" (not created yet)")
		}
		fmt.Println()
		fmt.Printf("Log Dir:    %s\n", info.LogDir)
		fmt.Printf("History:    %s\n", info.History)
		fmt.Printf("Vault:      %s\n", info.Vault)
		fmt.Printf("Encrypted:  %v\n", info.Encrypted)
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage store archives",
}

var archiveSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate the archive encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return errors.New("passphrases do not match")
		}

		if err := a.SetupEncryption(pass); err != nil {
			return err
		}
		enc := a.Config().Encryption
		fmt.Printf("Public key:  %s\n", enc.PublicKeyPath)
		fmt.Printf("Private key: %s\n", enc.PrivateKeyPath)
		if !enc.Encrypt {
			fmt.Println("Set encrypt = true under [encryption] to encrypt archives.")
		}
		return nil
	},
}

var archiveValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the vault and encryption setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateArchive(cmd.Context()); err != nil {
			return err
		}
		if err := a.CheckArchiveVersion(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Vault %q is ready.\n", a.Config().Vault.Type)
		return nil
	},
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the local store with the newest archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.RestoreArchive(cmd.Context(), func() (string, error) {
			return readPassphrase("Passphrase: ")
		})
		if err != nil {
			return err
		}

		fmt.Printf("Restored %d record(s) from archive version %d to %s\n", res.Records, res.StoreVersion, a.StorePath())
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "skipped row: %s\n", w)
		}
		if res.HistoryRestored {
			fmt.Println("Cycle history restored.")
		}
		return nil
	},
}

// readPassphrase prompts on stderr and reads without echo when stdin is a
// terminal, or a single line otherwise.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default $DLMON_CONFIG_PATH or ~/.config/dlmon.toml)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// archive subcommands
	archiveCmd.AddCommand(archiveSetupCmd)
	archiveCmd.AddCommand(archiveValidateCmd)
	archiveCmd.AddCommand(archiveRestoreCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("continuous", "c", false, "Keep monitoring until interrupted")
	runCmd.Flags().Int("interval", 0, "Seconds between cycles (default from config)")
	runCmd.Flags().Bool("dry-run", false, "Plan moves without touching files or the store")
	runCmd.Flags().Bool("no-organize", false, "Record files without moving them")
	runCmd.Flags().Bool("no-analysis", false, "Skip the analyzers after each cycle")
	runCmd.Flags().Bool("analysis-only", false, "Only report on the saved store")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of cycles to show")
	historyCmd.Flags().BoolP("moves", "m", false, "List the moves of each cycle")
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(archiveCmd)
}
