package entities

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBranchPrefix     = "deps/auto-update-"
	DefaultRemoteName       = "origin"
	DefaultCommandTimeout   = 10 * time.Minute
	DefaultNetworkTimeout   = 60 * time.Second
	DefaultAuthorName       = "depflow[bot]"
	DefaultAuthorEmail      = "depflow[bot]@users.noreply.github.com"
	DefaultPrimaryEcosystem = EcosystemRust
)

// Settings is the optional on-disk configuration of a run.
type Settings struct {
	PrimaryEcosystem Ecosystem                    `yaml:"primary_ecosystem"`
	BranchPrefix     string                       `yaml:"branch_prefix"`
	Remote           string                       `yaml:"remote"`
	DefaultBranch    string                       `yaml:"default_branch"`
	Changelog        *bool                        `yaml:"changelog"`
	Token            string                       `yaml:"token"` // inline, ${ENV_VAR}, or file path
	Author           AuthorSettings               `yaml:"author"`
	Timeouts         TimeoutSettings              `yaml:"timeouts"`
	Ecosystems       map[string]EcosystemSettings `yaml:"ecosystems"`
}

// AuthorSettings is the identity used for the update commit.
type AuthorSettings struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// TimeoutSettings bounds external calls. Values use time.ParseDuration syntax.
type TimeoutSettings struct {
	Command string `yaml:"command"`
	Network string `yaml:"network"`

	command time.Duration
	network time.Duration
}

// EcosystemSettings holds per-ecosystem overrides.
type EcosystemSettings struct {
	Enabled  *bool  `yaml:"enabled"`
	Manifest string `yaml:"manifest"`
}

// envVarPattern matches ${VAR_NAME} placeholders.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// NewDefaultSettings returns the settings used when no config file exists.
func NewDefaultSettings() *Settings {
	settings := &Settings{}
	if err := settings.applyDefaults(); err != nil {
		// defaults are constants, parsing them cannot fail
		panic(err)
	}
	return settings
}

// NewSettings reads and parses a configuration file, expanding environment variables in the
// token and filling in defaults.
func NewSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var settings Settings
	if unmarshalErr := yaml.Unmarshal(data, &settings); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, unmarshalErr)
	}

	settings.Token = resolveToken(settings.Token)

	if defaultsErr := settings.applyDefaults(); defaultsErr != nil {
		return nil, defaultsErr
	}
	return &settings, nil
}

// FindConfigFile searches for a configuration file in standard locations.
func FindConfigFile() (string, error) {
	locations := []string{".", ".config", "configs"}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		locations = append(locations, homeDir, filepath.Join(homeDir, ".config"))
	}

	patterns := []string{".depflow.yaml", ".depflow.yml", "depflow.yaml", "depflow.yml"}

	for _, loc := range locations {
		for _, pat := range patterns {
			p := filepath.Join(loc, pat)
			if _, statErr := os.Stat(p); statErr == nil {
				return p, nil
			}
		}
	}

	return "", errors.New("config file not found in default locations")
}

// CommandTimeout bounds every external tool invocation.
func (s *Settings) CommandTimeout() time.Duration { return s.Timeouts.command }

// NetworkTimeout bounds every hosting API call and push.
func (s *Settings) NetworkTimeout() time.Duration { return s.Timeouts.network }

// ChangelogEnabled reports whether CHANGELOG.md should receive entries.
func (s *Settings) ChangelogEnabled() bool {
	return s.Changelog == nil || *s.Changelog
}

// EcosystemEnabled reports whether the ecosystem is enabled (default true).
func (s *Settings) EcosystemEnabled(ecosystem Ecosystem) bool {
	cfg, ok := s.Ecosystems[string(ecosystem)]
	return !ok || cfg.Enabled == nil || *cfg.Enabled
}

// ManifestFor returns the configured manifest path of an ecosystem, or fallback.
func (s *Settings) ManifestFor(ecosystem Ecosystem, fallback string) string {
	if cfg, ok := s.Ecosystems[string(ecosystem)]; ok && cfg.Manifest != "" {
		return cfg.Manifest
	}
	return fallback
}

func (s *Settings) applyDefaults() error {
	if s.PrimaryEcosystem == "" {
		s.PrimaryEcosystem = DefaultPrimaryEcosystem
	}
	if s.BranchPrefix == "" {
		s.BranchPrefix = DefaultBranchPrefix
	}
	if s.Remote == "" {
		s.Remote = DefaultRemoteName
	}
	if s.Author.Name == "" {
		s.Author.Name = DefaultAuthorName
	}
	if s.Author.Email == "" {
		s.Author.Email = DefaultAuthorEmail
	}

	var err error
	if s.Timeouts.command, err = parseTimeout(s.Timeouts.Command, DefaultCommandTimeout); err != nil {
		return fmt.Errorf("timeouts.command: %w", err)
	}
	if s.Timeouts.network, err = parseTimeout(s.Timeouts.Network, DefaultNetworkTimeout); err != nil {
		return fmt.Errorf("timeouts.network: %w", err)
	}
	return nil
}

func parseTimeout(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("must be positive, got %q", raw)
	}
	return value, nil
}

// resolveToken expands environment variable references (${VAR}) and, if the
// resulting string is a path to an existing file, reads the token from the file.
func resolveToken(raw string) string {
	if raw == "" {
		return raw
	}

	resolved := envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		logger.Warnf("Environment variable %q is not set", varName)
		return ""
	})

	if _, statErr := os.Stat(resolved); statErr == nil {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			logger.Warnf("Failed to read token file %q: %v", resolved, readErr)
			return resolved
		}
		logger.Debugf("Read token from file %q", resolved)
		return strings.TrimSpace(string(data))
	}

	return resolved
}
