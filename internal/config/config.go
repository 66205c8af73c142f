// Package config holds the accounting policy engine's runtime
// configuration: the enforcement bitmask and audit/log settings a
// deployment loads from YAML at startup.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnforceFlag is a bit in the accounting_enforce mask (spec.md section
// 4, "ACCOUNTING_ENFORCE_*").
type EnforceFlag uint

const (
	// EnforceLimits turns on QoS/association limit checking at
	// admission and runnability checks. Without it the engine records
	// usage but never denies or holds a job.
	EnforceLimits EnforceFlag = 1 << iota
	// EnforceSafe requires post-select runnability to prove a job can
	// finish within its QoS's and association's remaining cpu-minute
	// budgets, and
	// suppresses ordinary runtime timeout enforcement (spec.md section
	// 4.5, "safe-limits mode").
	EnforceSafe
)

// Config is the engine's full runtime configuration.
type Config struct {
	// AccountingEnforceNames lists the ACCOUNTING_ENFORCE_* flags by
	// name ("limits", "safe") for readability in YAML; resolveEnforce
	// turns it into the accountingEnforce bitmask.
	AccountingEnforceNames []string `yaml:"accounting_enforce" validate:"dive,oneof=limits safe"`
	accountingEnforce      EnforceFlag

	// PriorityDecayHalfLifeMinutes is loaded and kept on the Config;
	// neither the engine nor internal/collab reads it, and no decay is
	// computed in this module.
	PriorityDecayHalfLifeMinutes uint64 `yaml:"priority_decay_half_life_minutes"`

	// AuditLogDir is the directory internal/audit rotates its dated
	// decision-log files into.
	AuditLogDir string `yaml:"audit_log_dir" validate:"required"`

	// LogLevel is a logrus level name ("debug", "info", "warn",
	// "error"), checked on Load; nothing in this module applies it to
	// the logger.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// New returns the engine's zero-configuration defaults: limits
// enforcement on, safe mode off, decision audit logs under
// ./log/acctpolicy, logging at info level.
func New() *Config {
	return &Config{
		AccountingEnforceNames: []string{"limits"},
		accountingEnforce:      EnforceLimits,
		AuditLogDir:            "./log/acctpolicy",
		LogLevel:               "info",
	}
}

// Load reads and validates a YAML config file at path, defaulting
// unset fields the way New does.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}
	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrapf(err, "config: validate %s", path)
	}
	cfg.resolveEnforce()
	return cfg, nil
}

// SetEnforce replaces the accounting_enforce mask from a list of flag
// names ("limits", "safe"), for programmatic construction (the CLI and
// tests build a Config this way instead of round-tripping through
// YAML).
func (c *Config) SetEnforce(names ...string) {
	c.AccountingEnforceNames = names
	c.resolveEnforce()
}

func (c *Config) resolveEnforce() {
	var mask EnforceFlag
	for _, name := range c.AccountingEnforceNames {
		switch name {
		case "limits":
			mask |= EnforceLimits
		case "safe":
			mask |= EnforceSafe
		}
	}
	c.accountingEnforce = mask
}

// Enforce reports whether every flag in want is set in the loaded
// accounting_enforce mask.
func (c *Config) Enforce(want EnforceFlag) bool {
	return c.accountingEnforce&want == want
}
