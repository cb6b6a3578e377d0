// Package config provides configuration for the migration verifier.
// It loads settings from CLI flags and environment variables, validates them,
// and falls back to defaults that reproduce the local post-migration check
// (http://localhost:3000, screenshots under jules-scratch/verification).
//
// Flags override environment variables. Secrets (S3 credentials) are only
// read from the environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/wealthlog-verify/internal/logutil"
	"github.com/kuitang/wealthlog-verify/internal/urlutil"
)

const (
	DefaultBaseURL          = "http://localhost:3000"
	DefaultScreenshotDir    = "jules-scratch/verification"
	DefaultAssertionTimeout = 5 * time.Second
	DefaultNavTimeout       = 30 * time.Second
	DefaultArtifactPrefix   = "verification"
	defaultArtifactRegion   = "auto"
)

// Config holds all verifier configuration.
type Config struct {
	// Target
	BaseURL string

	// Output
	ScreenshotDir string
	LogLevel      string

	// Browser
	AssertionTimeout time.Duration
	NavTimeout       time.Duration
	Headed           bool
	InstallBrowsers  bool
	ExecutablePath   string // PLAYWRIGHT_CHROMIUM_EXECUTABLE_PATH

	// Screenshot publication (disabled when ArtifactBucket is empty)
	ArtifactBucket     string // VERIFY_ARTIFACT_BUCKET
	ArtifactPrefix     string // VERIFY_ARTIFACT_PREFIX
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY

	// Malformed environment values, reported by Validate.
	envErrors []string
}

// Flags holds raw CLI flag values. Zero values mean "not set".
type Flags struct {
	BaseURL          string
	ScreenshotDir    string
	AssertionTimeout time.Duration
	NavTimeout       time.Duration
	Headed           bool
	InstallBrowsers  bool

	// Set when the boolean flag appeared on the command line, so that
	// -headed=false still overrides VERIFY_HEADED=true.
	HeadedSet          bool
	InstallBrowsersSet bool
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags registers and parses the verifier flags on fs.
func ParseFlags(fs *flag.FlagSet, args []string) (Flags, error) {
	var f Flags
	fs.StringVar(&f.BaseURL, "base-url", "", "Base URL of the migrated site (default "+DefaultBaseURL+", overrides VERIFY_BASE_URL)")
	fs.StringVar(&f.ScreenshotDir, "out", "", "Directory for screenshots (default "+DefaultScreenshotDir+", overrides VERIFY_SCREENSHOT_DIR)")
	fs.DurationVar(&f.AssertionTimeout, "timeout", 0, "How long to wait for each heading (default 5s, overrides VERIFY_TIMEOUT)")
	fs.DurationVar(&f.NavTimeout, "nav-timeout", 0, "Navigation timeout (default 30s, overrides VERIFY_NAV_TIMEOUT)")
	fs.BoolVar(&f.Headed, "headed", false, "Show the browser window")
	fs.BoolVar(&f.InstallBrowsers, "install", false, "Install the Playwright driver and Chromium before running")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "headed":
			f.HeadedSet = true
		case "install":
			f.InstallBrowsersSet = true
		}
	})
	return f, nil
}

// LoadConfig loads configuration from environment variables and CLI flag values.
func LoadConfig(f Flags) (*Config, error) {
	cfg := &Config{}

	cfg.BaseURL = urlutil.NormalizeBaseURL(getEnvOrDefault("VERIFY_BASE_URL", DefaultBaseURL))
	if f.BaseURL != "" {
		cfg.BaseURL = urlutil.NormalizeBaseURL(f.BaseURL)
	}

	cfg.ScreenshotDir = getEnvOrDefault("VERIFY_SCREENSHOT_DIR", DefaultScreenshotDir)
	if f.ScreenshotDir != "" {
		cfg.ScreenshotDir = f.ScreenshotDir
	}
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.AssertionTimeout = cfg.parseDurationOrDefault("VERIFY_TIMEOUT", DefaultAssertionTimeout)
	if f.AssertionTimeout != 0 {
		cfg.AssertionTimeout = f.AssertionTimeout
	}
	cfg.NavTimeout = cfg.parseDurationOrDefault("VERIFY_NAV_TIMEOUT", DefaultNavTimeout)
	if f.NavTimeout != 0 {
		cfg.NavTimeout = f.NavTimeout
	}
	cfg.Headed = cfg.parseBoolOrDefault("VERIFY_HEADED", false)
	if f.HeadedSet || f.Headed {
		cfg.Headed = f.Headed
	}
	cfg.InstallBrowsers = cfg.parseBoolOrDefault("VERIFY_INSTALL_BROWSERS", false)
	if f.InstallBrowsersSet || f.InstallBrowsers {
		cfg.InstallBrowsers = f.InstallBrowsers
	}
	cfg.ExecutablePath = strings.TrimSpace(os.Getenv("PLAYWRIGHT_CHROMIUM_EXECUTABLE_PATH"))

	cfg.ArtifactBucket = strings.TrimSpace(os.Getenv("VERIFY_ARTIFACT_BUCKET"))
	cfg.ArtifactPrefix = strings.Trim(getEnvOrDefault("VERIFY_ARTIFACT_PREFIX", DefaultArtifactPrefix), "/")
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultArtifactRegion)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable, reporting every problem at once.
func (c *Config) Validate() error {
	errs := append([]string(nil), c.envErrors...)

	if err := urlutil.ValidateBaseURL(c.BaseURL); err != nil {
		errs = append(errs, "VERIFY_BASE_URL: "+err.Error())
	}
	if strings.TrimSpace(c.ScreenshotDir) == "" {
		errs = append(errs, "VERIFY_SCREENSHOT_DIR must not be empty")
	}
	if c.AssertionTimeout <= 0 {
		errs = append(errs, "VERIFY_TIMEOUT must be positive")
	}
	if c.NavTimeout <= 0 {
		errs = append(errs, "VERIFY_NAV_TIMEOUT must be positive")
	}

	// S3 credentials are optional (default chain) but must come as a pair.
	if c.ArtifactBucket != "" {
		if (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
			errs = append(errs, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
		}
		if c.AWSEndpointS3 != "" {
			if err := urlutil.ValidateBaseURL(c.AWSEndpointS3); err != nil {
				errs = append(errs, "AWS_ENDPOINT_URL_S3: "+err.Error())
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// PublishArtifacts reports whether screenshots should also be uploaded to S3.
func (c *Config) PublishArtifacts() bool {
	return c.ArtifactBucket != ""
}

// PrintStartupSummary writes a human-readable summary of the configuration to w.
func (c *Config) PrintStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "migration verifier starting...")
	fmt.Fprintf(w, "  Target:  %s\n", logutil.RedactURL(c.BaseURL))
	fmt.Fprintf(w, "  Output:  %s\n", c.ScreenshotDir)

	mode := "headless"
	if c.Headed {
		mode = "headed"
	}
	fmt.Fprintf(w, "  Browser: Chromium (%s, assert %s, nav %s)\n", mode, c.AssertionTimeout, c.NavTimeout)

	if c.PublishArtifacts() {
		endpoint := c.AWSEndpointS3
		if endpoint == "" {
			endpoint = "aws default"
		}
		fmt.Fprintf(w, "  Upload:  s3://%s/%s (endpoint: %s, key: %s)\n",
			c.ArtifactBucket, c.ArtifactPrefix, endpoint,
			logutil.RedactValue("AWS_SECRET_ACCESS_KEY", c.AWSSecretAccessKey))
	} else {
		fmt.Fprintln(w, "  Upload:  disabled (set VERIFY_ARTIFACT_BUCKET)")
	}
	fmt.Fprintln(w, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func (c *Config) parseBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		c.envErrors = append(c.envErrors, fmt.Sprintf("%s: %q is not a boolean", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		c.envErrors = append(c.envErrors, fmt.Sprintf("%s: %q is not a duration (e.g. 5s)", key, value))
		return defaultValue
	}
	return parsed
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
