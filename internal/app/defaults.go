package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/guijianchou/IDM-Download-Monitor/internal/config"
	"github.com/guijianchou/IDM-Download-Monitor/internal/recordstore"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DLMON_CONFIG_PATH: config file location (default: ~/.config/dlmon.toml)
//   - DLMON_HOME: base directory for dlmon data (default: ~/.local/share/dlmon)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	dataDir, err := getDataDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"data_dir":    dataDir,
		"log_dir":     filepath.Join(dataDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking DLMON_CONFIG_PATH env var first,
// then falling back to the default ~/.config/dlmon.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("DLMON_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "dlmon.toml"), nil
}

// getDataDir returns the base directory for dlmon data, checking DLMON_HOME env var first,
// then falling back to the XDG default ~/.local/share/dlmon.
func getDataDir() (string, error) {
	if path := os.Getenv("DLMON_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "dlmon"), nil
}

// windowsProfiles are /mnt/c/Users entries that never belong to a person.
var windowsProfiles = map[string]bool{
	"public":       true,
	"default":      true,
	"default user": true,
	"all users":    true,
}

// environment is what root detection reads from the host.
type environment struct {
	getenv   func(string) string
	readFile func(string) ([]byte, error)
	readDir  func(string) ([]os.DirEntry, error)
	isDir    func(string) bool
	homeDir  func() (string, error)
	usersDir string
}

func hostEnvironment() *environment {
	return &environment{
		getenv:   os.Getenv,
		readFile: os.ReadFile,
		readDir:  os.ReadDir,
		isDir: func(p string) bool {
			info, err := os.Stat(p)
			return err == nil && info.IsDir()
		},
		homeDir:  os.UserHomeDir,
		usersDir: "/mnt/c/Users",
	}
}

// IsWSL reports whether the process runs under Windows Subsystem for Linux.
func IsWSL() bool {
	return hostEnvironment().isWSL()
}

func (e *environment) isWSL() bool {
	if e.getenv("WSL_DISTRO_NAME") != "" {
		return true
	}
	data, err := e.readFile("/proc/version")
	if err != nil {
		return false
	}
	v := strings.ToLower(string(data))
	return strings.Contains(v, "microsoft") || strings.Contains(v, "wsl")
}

// DetectRoot finds the Downloads folder to monitor when the config leaves root
// empty. Order: MONITOR_DOWNLOADS_PATH, then on WSL the Windows profile named by
// MONITOR_WIN_USERNAME, then the first real Windows profile with a Downloads
// folder, then ~/Downloads.
func DetectRoot() (string, error) {
	return hostEnvironment().detectRoot()
}

func (e *environment) detectRoot() (string, error) {
	if p := e.getenv("MONITOR_DOWNLOADS_PATH"); p != "" {
		return filepath.Abs(p)
	}

	if e.isWSL() {
		if user := e.getenv("MONITOR_WIN_USERNAME"); user != "" {
			p := filepath.Join(e.usersDir, user, "Downloads")
			if e.isDir(p) {
				return p, nil
			}
		}
		if entries, err := e.readDir(e.usersDir); err == nil {
			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				if entry.IsDir() && !windowsProfiles[strings.ToLower(entry.Name())] {
					names = append(names, entry.Name())
				}
			}
			sort.Strings(names)
			for _, name := range names {
				p := filepath.Join(e.usersDir, name, "Downloads")
				if e.isDir(p) {
					return p, nil
				}
			}
		}
	}

	home, err := e.homeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, "Downloads"), nil
}

// SystemInfo describes the host and the resolved monitoring paths.
type SystemInfo struct {
	OS         string
	Arch       string
	GoVersion  string
	WSL        bool
	ConfigPath string
	Root       string
	StorePath  string
	LogDir     string
	History    string
	Vault      string
	Encrypted  bool
}

// GetSystemInfo reports the host platform and the paths dlmon would use for cfg.
// cfg.Root should already be resolved.
func GetSystemInfo(cfg *config.Config, configPath string) *SystemInfo {
	return &SystemInfo{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		GoVersion:  runtime.Version(),
		WSL:        IsWSL(),
		ConfigPath: configPath,
		Root:       cfg.Root,
		StorePath:  StorePath(cfg),
		LogDir:     cfg.LogDir,
		History:    cfg.Database.Type,
		Vault:      cfg.Vault.Type,
		Encrypted:  cfg.Encryption.Encrypt,
	}
}

// StorePath returns the configured record store path, defaulting to
// results.csv inside the root.
func StorePath(cfg *config.Config) string {
	if cfg.StorePath != "" {
		return cfg.StorePath
	}
	return filepath.Join(cfg.Root, recordstore.DefaultFileName)
}

// ResolveRoot fills in cfg.Root by detection when the config leaves it empty.
func ResolveRoot(cfg *config.Config) error {
	if cfg.Root != "" {
		return nil
	}
	root, err := DetectRoot()
	if err != nil {
		return fmt.Errorf("detecting downloads folder: %w", err)
	}
	cfg.Root = root
	return nil
}
