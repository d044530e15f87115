package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/buildhive/buildhive/pkg/types"
)

const (
	// DefaultAPIBaseURL is the control-plane address used when no
	// override is present in the environment or profile file
	DefaultAPIBaseURL = "https://api.buildhive.dev"

	// DefaultTimeout bounds the whole provisioning run
	DefaultTimeout = 10 * time.Minute

	// Default certificate root, relative to the home directory
	defaultCertDir = ".buildhive/certs"

	// Environment variables, read exactly once at construction
	envAPIBaseURL  = "BUILDHIVE_API_URL"
	envRunnerToken = "RUNNER_VERIFICATION_TOKEN"
)

// Options are the caller-supplied inputs to Build, typically collected
// from CLI flags.
type Options struct {
	Profile     string
	Token       string
	Timeout     time.Duration
	ProfileFile string
}

// profileFile is the optional YAML pool profile. Timeout is a string so
// the file can say "5m" rather than nanoseconds.
type profileFile struct {
	Profile string `yaml:"profile"`
	Token   string `yaml:"token,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
	APIURL  string `yaml:"apiUrl,omitempty"`
}

// Build assembles the immutable run configuration. All environment lookups
// happen here; components never read the environment themselves.
func Build(opts Options) (types.Config, error) {
	cfg := types.Config{
		Profile: opts.Profile,
		Token:   opts.Token,
		Timeout: opts.Timeout,
	}

	if opts.ProfileFile != "" {
		pf, err := loadProfileFile(opts.ProfileFile)
		if err != nil {
			return types.Config{}, err
		}
		// Flags win over file values
		if cfg.Profile == "" {
			cfg.Profile = pf.Profile
		}
		if cfg.Token == "" {
			cfg.Token = pf.Token
		}
		if cfg.Timeout == 0 && pf.Timeout != "" {
			d, err := time.ParseDuration(pf.Timeout)
			if err != nil {
				return types.Config{}, &types.ConfigError{Reason: fmt.Sprintf("invalid timeout %q in profile file", pf.Timeout)}
			}
			cfg.Timeout = d
		}
		if pf.APIURL != "" {
			cfg.APIBaseURL = pf.APIURL
		}
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if v := os.Getenv(envAPIBaseURL); v != "" {
		cfg.APIBaseURL = v
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if v := os.Getenv(envRunnerToken); v != "" {
		cfg.TrustedRunner = true
		cfg.RunnerToken = v
	}

	certRoot, err := CertRoot()
	if err != nil {
		return types.Config{}, err
	}
	cfg.CertRoot = certRoot

	cfg.ClusterName = generateClusterName()

	if err := validate(cfg); err != nil {
		return types.Config{}, err
	}

	return cfg, nil
}

// CertRoot returns the local configuration root for credential material.
func CertRoot() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, defaultCertDir), nil
}

func loadProfileFile(path string) (*profileFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}
	return &pf, nil
}

func validate(cfg types.Config) error {
	if cfg.Profile == "" {
		return &types.ConfigError{Reason: "profile is required"}
	}
	if !cfg.TrustedRunner && cfg.Token == "" {
		return &types.ConfigError{Reason: "token is required outside a trusted runner context"}
	}
	return nil
}

func generateClusterName() string {
	return "buildhive-" + uuid.NewString()[:8]
}
