package config

import (
	"fmt"
	"os"
	"time"

	"github.com/scholaris-edu/scholaris/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all Scholaris configuration.
type Config struct {
	Listen    string                   `yaml:"listen"`
	DBPath    string                   `yaml:"db_path"`
	Providers []ProviderConfig         `yaml:"providers"`
	Models    []models.ModelDescriptor `yaml:"models"`
	Budget    models.BudgetLimits      `yaml:"budget"`
	Estimator EstimatorConfig          `yaml:"estimator"`
	Cache     CacheConfig              `yaml:"cache"`
	Audit     AuditConfig              `yaml:"audit"`
	Probe     ProbeConfig              `yaml:"probe"`
}

// ProviderConfig defines the backend serving one model tier.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	Tier    string        `yaml:"tier"`
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// EstimatorConfig overrides token estimation divisors per model family.
type EstimatorConfig struct {
	Divisors map[string]float64 `yaml:"divisors"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	DBPath  string        `yaml:"db_path"`
	TTL     time.Duration `yaml:"ttl"`
}

// AuditConfig controls the attempt-level audit log.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// ProbeConfig controls the per-tier connectivity probe. Endpoints maps a
// tier name to the URL checked for reachability; a tier with no endpoint
// counts as unreachable unless Assume lists it.
type ProbeConfig struct {
	Endpoints map[string]string `yaml:"endpoints"`
	Timeout   time.Duration     `yaml:"timeout"`
	// Assume marks tiers reachable without probing. The local tier
	// normally goes here.
	Assume []string `yaml:"assume"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "scholaris.db",
		Budget: models.BudgetLimits{
			PerRoleDailyCap: map[models.Role]float64{
				models.RoleStudent: 0.50,
				models.RoleTeacher: 2.00,
				models.RoleParent:  0.50,
				models.RoleAdmin:   5.00,
			},
			MonthlyOrgCap:          500,
			AlertThresholdFraction: 0.8,
			PremiumFloor:           50,
		},
		Cache: CacheConfig{
			Enabled: true,
			DBPath:  "scholaris-cache.db",
			TTL:     time.Hour,
		},
		Audit: AuditConfig{
			Enabled:       true,
			DBPath:        "scholaris-audit.db",
			RetentionDays: 90,
		},
		Probe: ProbeConfig{
			Timeout: 2 * time.Second,
			Assume:  []string{string(models.TierLocal)},
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Budget.AlertThresholdFraction < 0 || c.Budget.AlertThresholdFraction > 1 {
		return fmt.Errorf("config: alert_threshold_fraction must be in [0, 1]")
	}
	for _, p := range c.Providers {
		if _, err := models.ParseTier(p.Tier); err != nil {
			return fmt.Errorf("config: provider %s: %w", p.Name, err)
		}
	}
	for _, t := range c.Probe.Assume {
		if _, err := models.ParseTier(t); err != nil {
			return fmt.Errorf("config: probe assume: %w", err)
		}
	}
	return nil
}
