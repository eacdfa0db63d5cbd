package paths

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the application name used in XDG directories
	AppName = "jiraflow"
)

// DataDir returns the XDG data directory for jiraflow.
// Priority: $XDG_DATA_HOME/jiraflow -> ~/.local/share/jiraflow
func DataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", AppName)
}

// ConfigDir returns the XDG config directory for jiraflow.
// Priority: $XDG_CONFIG_HOME/jiraflow -> ~/.config/jiraflow
func ConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", AppName)
}

// DatabasePath returns the default results database path
func DatabasePath() string {
	return filepath.Join(DataDir(), "jiraflow.db")
}

// BackupDir returns the default backup directory
func BackupDir() string {
	return filepath.Join(DataDir(), "backups")
}

// ConfigFilePath returns the default config file path in XDG config dir
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DownloadDir resolves a configured data_dir. Relative paths are taken
// from the directory holding the config file.
func DownloadDir(configFile, dataDir string) string {
	if dataDir == "" {
		dataDir = "."
	}
	if filepath.IsAbs(dataDir) || configFile == "" {
		return filepath.Clean(dataDir)
	}
	return filepath.Join(filepath.Dir(configFile), dataDir)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0755)
}

// EnsureBackupDir creates the backup directory if it doesn't exist.
func EnsureBackupDir() error {
	return os.MkdirAll(BackupDir(), 0755)
}
