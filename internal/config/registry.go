package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName      = "airtouch"
	registryFile = "gateways.yaml"
)

// Mutex for file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/airtouch or $HOME/.config/airtouch
//   - macOS: $HOME/.config/airtouch
//   - Windows: %LOCALAPPDATA%\airtouch
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetRegistryPath returns the full path of the saved-gateway file.
func GetRegistryPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, registryFile), nil
}

// LoadRegistry loads the saved-gateway file from the configuration
// directory. A missing file yields an empty registry.
func LoadRegistry() (*Registry, error) {
	path, err := GetRegistryPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get registry path: %w", err)
	}
	return LoadRegistryFile(path)
}

// LoadRegistryFile loads a saved-gateway file from path.
func LoadRegistryFile(path string) (*Registry, error) {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}
	if registry.Version != 1 {
		return nil, fmt.Errorf("unsupported registry version: %d (expected 1)", registry.Version)
	}
	if registry.Gateways == nil {
		registry.Gateways = make(map[string]*Gateway)
	}
	return &registry, nil
}

// Save writes the registry to the configuration directory.
func (r *Registry) Save() error {
	path, err := GetRegistryPath()
	if err != nil {
		return fmt.Errorf("failed to get registry path: %w", err)
	}
	return r.SaveFile(path)
}

// SaveFile writes the registry to path through a temporary file and a
// rename, so a crash never leaves a truncated file.
func (r *Registry) SaveFile(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	header := []byte("# AirTouch saved gateways, managed by \"airtouch gateways\".\n\n")
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary registry file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save registry file: %w", err)
	}
	return nil
}
