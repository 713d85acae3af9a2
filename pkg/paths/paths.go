// Package paths resolves the per-user directories of xploit.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "xploit"

// ConfigDir returns XDG_CONFIG_HOME/xploit or the platform default.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Xploit")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// ConfigFile returns the default configuration file path. It may not exist.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns XDG_DATA_HOME/xploit or the platform default.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Xploit")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

// CaptureDir is where traffic captures go when no directory is given.
func CaptureDir() string {
	return filepath.Join(DataDir(), "captures")
}
