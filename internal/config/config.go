package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nholik/sail-sentinel/internal/logging"
)

const (
	envSettingsFile         = "SAIL_SETTINGS_FILE"
	envWorkspace            = "SAIL_WORKSPACE"
	envSailPath             = "SAIL_PATH"
	envArtisanPath          = "SAIL_ARTISAN_PATH"
	envComposerPath         = "SAIL_COMPOSER_PATH"
	envPHPPath              = "SAIL_PHP_PATH"
	envPollInterval         = "SAIL_POLL_INTERVAL"
	envStatusTimeout        = "SAIL_STATUS_TIMEOUT"
	envRouteRefreshInterval = "SAIL_ROUTE_REFRESH_INTERVAL"
	envLogLevel             = "SAIL_LOG_LEVEL"
	envListenHost           = "SAIL_LISTEN_HOST"
	envHealthPort           = "SAIL_HEALTH_PORT"
	envMetricsPort          = "SAIL_METRICS_PORT"
	envStateFile            = "SAIL_STATE_FILE"
	envProjectName          = "SAIL_PROJECT_NAME"
	envSlackWebhookURL      = "SAIL_SLACK_WEBHOOK_URL"
	envWebhookURL           = "SAIL_WEBHOOK_URL"
	envWebhookTemplate      = "SAIL_WEBHOOK_TEMPLATE"
	envDockerHost           = "SAIL_DOCKER_HOST"
	envDryRun               = "SAIL_DRY_RUN"
)

const (
	defaultSailPath             = "./vendor/bin/sail"
	defaultArtisanPath          = "artisan"
	defaultComposerPath         = "composer"
	defaultPHPPath              = "php"
	defaultPollInterval         = 5 * time.Second
	defaultStatusTimeout        = 15 * time.Second
	defaultRouteRefreshInterval = 10 * time.Second
	defaultLogLevel             = "info"
	defaultListenHost           = "127.0.0.1"
	defaultHealthPort           = 8787
	defaultMetricsPort          = 8787
	defaultStateFile            = ".sail-sentinel/state.json"
)

// Config describes runtime configuration.
type Config struct {
	Workspace            string
	SailPath             string
	ArtisanPath          string
	ComposerPath         string
	PHPPath              string
	PollInterval         time.Duration
	StatusTimeout        time.Duration
	RouteRefreshInterval time.Duration
	LogLevel             string
	ListenHost           string
	HealthPort           int
	MetricsPort          int
	StateFile            string
	ProjectName          string
	SlackWebhookURL      string
	WebhookURL           string
	WebhookTemplate      string
	DockerHost           string
	DryRun               bool
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Workspace:            ".",
		SailPath:             defaultSailPath,
		ArtisanPath:          defaultArtisanPath,
		ComposerPath:         defaultComposerPath,
		PHPPath:              defaultPHPPath,
		PollInterval:         defaultPollInterval,
		StatusTimeout:        defaultStatusTimeout,
		RouteRefreshInterval: defaultRouteRefreshInterval,
		LogLevel:             defaultLogLevel,
		ListenHost:           defaultListenHost,
		HealthPort:           defaultHealthPort,
		MetricsPort:          defaultMetricsPort,
		StateFile:            defaultStateFile,
	}
}

// Load reads configuration from defaults, the optional settings file named by
// SAIL_SETTINGS_FILE, and environment variables, in increasing precedence.
// A local .env file is loaded first; existing environment variables take
// precedence over values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Default()

	if path, ok := lookupTrimmed(envSettingsFile); ok && path != "" {
		settings, err := LoadSettingsFile(path)
		if err != nil {
			return Config{}, err
		}
		settings.apply(&cfg)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		envWorkspace:       &cfg.Workspace,
		envSailPath:        &cfg.SailPath,
		envArtisanPath:     &cfg.ArtisanPath,
		envComposerPath:    &cfg.ComposerPath,
		envPHPPath:         &cfg.PHPPath,
		envLogLevel:        &cfg.LogLevel,
		envListenHost:      &cfg.ListenHost,
		envStateFile:       &cfg.StateFile,
		envProjectName:     &cfg.ProjectName,
		envSlackWebhookURL: &cfg.SlackWebhookURL,
		envWebhookURL:      &cfg.WebhookURL,
		envWebhookTemplate: &cfg.WebhookTemplate,
		envDockerHost:      &cfg.DockerHost,
	}
	for key, target := range strs {
		if value, ok := lookupTrimmed(key); ok {
			*target = value
		}
	}

	durations := map[string]*time.Duration{
		envPollInterval:         &cfg.PollInterval,
		envStatusTimeout:        &cfg.StatusTimeout,
		envRouteRefreshInterval: &cfg.RouteRefreshInterval,
	}
	for key, target := range durations {
		value, ok := lookupTrimmed(key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = parsed
	}

	ports := map[string]*int{
		envHealthPort:  &cfg.HealthPort,
		envMetricsPort: &cfg.MetricsPort,
	}
	for key, target := range ports {
		value, ok := lookupTrimmed(key)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = parsed
	}

	if value, ok := lookupTrimmed(envDryRun); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envDryRun, err)
		}
		cfg.DryRun = parsed
	}
	return nil
}

// Validate checks the invariants every entry point relies on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Workspace) == "" {
		return errors.New("workspace is required")
	}
	for name, value := range map[string]string{
		"sail_path":     c.SailPath,
		"artisan_path":  c.ArtisanPath,
		"composer_path": c.ComposerPath,
		"php_path":      c.PHPPath,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	for name, value := range map[string]time.Duration{
		"poll_interval":          c.PollInterval,
		"status_timeout":         c.StatusTimeout,
		"route_refresh_interval": c.RouteRefreshInterval,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be greater than zero", name)
		}
	}
	if err := validateHost(c.ListenHost); err != nil {
		return err
	}
	for name, value := range map[string]int{
		"health_port":  c.HealthPort,
		"metrics_port": c.MetricsPort,
	} {
		if value < 0 || value > 65535 {
			return fmt.Errorf("%s must be between 0 and 65535", name)
		}
	}
	if c.SlackWebhookURL != "" {
		if err := validateURL(c.SlackWebhookURL, "slack_webhook_url"); err != nil {
			return err
		}
	}
	if c.WebhookURL != "" {
		if err := validateURL(c.WebhookURL, "webhook_url"); err != nil {
			return err
		}
	}
	return nil
}

// LocalHost returns the address local clients use to reach the HTTP
// servers. A wildcard listen host is reached through loopback.
func (c Config) LocalHost() string {
	ip := net.ParseIP(c.ListenHost)
	if c.ListenHost == "" || (ip != nil && ip.IsUnspecified()) {
		return defaultListenHost
	}
	return c.ListenHost
}

// WorkspaceDir returns the absolute workspace directory.
func (c Config) WorkspaceDir() (string, error) {
	return filepath.Abs(c.Workspace)
}

// StatePath resolves the state file against the workspace when relative.
func (c Config) StatePath() string {
	if filepath.IsAbs(c.StateFile) {
		return c.StateFile
	}
	dir, err := c.WorkspaceDir()
	if err != nil {
		dir = c.Workspace
	}
	return filepath.Join(dir, c.StateFile)
}

// Project returns the label used in notifications, defaulting to the
// workspace directory name.
func (c Config) Project() string {
	if c.ProjectName != "" {
		return c.ProjectName
	}
	dir, err := c.WorkspaceDir()
	if err != nil {
		return filepath.Base(c.Workspace)
	}
	return filepath.Base(dir)
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateHost(host string) error {
	if host == "" {
		return errors.New("listen_host must not be empty")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("invalid listen_host %q", host)
		}
		for _, r := range label {
			if !(r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				return fmt.Errorf("invalid listen_host %q", host)
			}
		}
	}
	return nil
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
