package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the YAML settings file. Unset keys leave defaults in place.
type Settings struct {
	Workspace            string        `yaml:"workspace"`
	SailPath             string        `yaml:"sail_path"`
	ArtisanPath          string        `yaml:"artisan_path"`
	ComposerPath         string        `yaml:"composer_path"`
	PHPPath              string        `yaml:"php_path"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	StatusTimeout        time.Duration `yaml:"status_timeout"`
	RouteRefreshInterval time.Duration `yaml:"route_refresh_interval"`
	LogLevel             string        `yaml:"log_level"`
	ListenHost           string        `yaml:"listen_host"`
	HealthPort           *int          `yaml:"health_port"`
	MetricsPort          *int          `yaml:"metrics_port"`
	StateFile            string        `yaml:"state_file"`
	ProjectName          string        `yaml:"project_name"`
	SlackWebhookURL      string        `yaml:"slack_webhook_url"`
	WebhookURL           string        `yaml:"webhook_url"`
	WebhookTemplate      string        `yaml:"webhook_template"`
	DockerHost           string        `yaml:"docker_host"`
	DryRun               *bool         `yaml:"dry_run"`
}

// LoadSettingsFile parses a YAML settings file from the given path.
func LoadSettingsFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings file: %w", err)
	}

	if settings.PollInterval < 0 || settings.StatusTimeout < 0 || settings.RouteRefreshInterval < 0 {
		return Settings{}, fmt.Errorf("settings file: durations cannot be negative")
	}

	return settings, nil
}

func (s Settings) apply(cfg *Config) {
	setString(&cfg.Workspace, s.Workspace)
	setString(&cfg.SailPath, s.SailPath)
	setString(&cfg.ArtisanPath, s.ArtisanPath)
	setString(&cfg.ComposerPath, s.ComposerPath)
	setString(&cfg.PHPPath, s.PHPPath)
	setString(&cfg.LogLevel, s.LogLevel)
	setString(&cfg.ListenHost, s.ListenHost)
	setString(&cfg.StateFile, s.StateFile)
	setString(&cfg.ProjectName, s.ProjectName)
	setString(&cfg.SlackWebhookURL, s.SlackWebhookURL)
	setString(&cfg.WebhookURL, s.WebhookURL)
	setString(&cfg.WebhookTemplate, s.WebhookTemplate)
	setString(&cfg.DockerHost, s.DockerHost)

	if s.PollInterval > 0 {
		cfg.PollInterval = s.PollInterval
	}
	if s.StatusTimeout > 0 {
		cfg.StatusTimeout = s.StatusTimeout
	}
	if s.RouteRefreshInterval > 0 {
		cfg.RouteRefreshInterval = s.RouteRefreshInterval
	}
	if s.HealthPort != nil {
		cfg.HealthPort = *s.HealthPort
	}
	if s.MetricsPort != nil {
		cfg.MetricsPort = *s.MetricsPort
	}
	if s.DryRun != nil {
		cfg.DryRun = *s.DryRun
	}
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}
