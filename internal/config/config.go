package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BaseDirEnv overrides workspace.base_dir when set (usually from .env).
const BaseDirEnv = "LABDATA_BASE_DIR"

// Config is the top-level configuration
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Tool      ToolConfig      `yaml:"tool"`
	Manifest  ManifestConfig  `yaml:"manifest"`
	Download  DownloadConfig  `yaml:"download"`
	Labs      []LabConfig     `yaml:"labs,omitempty"`
}

// WorkspaceConfig locates the course repository and the history database
type WorkspaceConfig struct {
	BaseDir string `yaml:"base_dir"`
	DBPath  string `yaml:"db_path"`
}

// ToolConfig describes the external dataset downloader
type ToolConfig struct {
	Binary          string `yaml:"binary"`
	CredentialsPath string `yaml:"credentials_path"`
}

// ManifestConfig controls where manifests are written and what they skip
type ManifestConfig struct {
	FileName string   `yaml:"file_name"`
	RawDir   string   `yaml:"raw_dir"`
	Exclude  []string `yaml:"exclude"`
}

// DownloadConfig holds download-time settings
type DownloadConfig struct {
	// AllLabsEstimate is shown when every lab is requested at once.
	AllLabsEstimate string `yaml:"all_labs_estimate"`
}

// LabConfig overrides one lab of the built-in dataset registry
type LabConfig struct {
	ID       int             `yaml:"id"`
	Name     string          `yaml:"name"`
	Datasets []DatasetConfig `yaml:"datasets"`
}

// DatasetConfig is a single dataset entry of a LabConfig
type DatasetConfig struct {
	Reference   string `yaml:"reference"`
	Destination string `yaml:"destination"`
	Description string `yaml:"description"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			BaseDir: ".",
			DBPath:  "",
		},
		Tool: ToolConfig{
			Binary:          "kaggle",
			CredentialsPath: "",
		},
		Manifest: ManifestConfig{
			FileName: "dataset_manifest.json",
			RawDir:   "data/raw",
			Exclude:  []string{"samples"},
		},
		Download: DownloadConfig{
			AllLabsEstimate: "50GB",
		},
	}
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{
		"labdata.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "labdata", "labdata.yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. An empty path means ".env",
// which is optional; an explicit path must exist.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment overrides onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(BaseDirEnv); v != "" {
		c.Workspace.BaseDir = v
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Tool.Binary == "" {
		return fmt.Errorf("tool.binary must not be empty")
	}
	if c.Manifest.FileName == "" {
		return fmt.Errorf("manifest.file_name must not be empty")
	}
	if filepath.Base(c.Manifest.FileName) != c.Manifest.FileName {
		return fmt.Errorf("manifest.file_name must be a bare file name: %q", c.Manifest.FileName)
	}
	if c.Manifest.RawDir == "" {
		return fmt.Errorf("manifest.raw_dir must not be empty")
	}
	if c.Download.AllLabsEstimate != "" {
		if _, err := humanize.ParseBytes(c.Download.AllLabsEstimate); err != nil {
			return fmt.Errorf("download.all_labs_estimate: %w", err)
		}
	}
	return nil
}

// LabRoot returns the directory of the named lab under the workspace.
func (c *Config) LabRoot(labName string) string {
	return filepath.Join(c.Workspace.BaseDir, labName)
}

// RawDataRoot returns the raw-data directory of the named lab.
func (c *Config) RawDataRoot(labName string) string {
	return filepath.Join(c.LabRoot(labName), filepath.FromSlash(c.Manifest.RawDir))
}

// ResolvedDBPath returns the history database path, defaulting to a hidden
// directory under the workspace.
func (c *Config) ResolvedDBPath() string {
	if c.Workspace.DBPath != "" {
		return c.Workspace.DBPath
	}
	return filepath.Join(c.Workspace.BaseDir, ".labdata", "labdata.db")
}

// AllLabsEstimateBytes parses download.all_labs_estimate. Zero means unknown.
func (c *Config) AllLabsEstimateBytes() uint64 {
	if c.Download.AllLabsEstimate == "" {
		return 0
	}
	n, err := humanize.ParseBytes(c.Download.AllLabsEstimate)
	if err != nil {
		return 0
	}
	return n
}
