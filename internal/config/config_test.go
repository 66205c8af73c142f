package config

import "testing"

func TestNewDefaultsEnforceLimitsOnly(t *testing.T) {
	c := New()
	if !c.Enforce(EnforceLimits) {
		t.Error("default config should enforce limits")
	}
	if c.Enforce(EnforceSafe) {
		t.Error("default config should not enforce safe mode")
	}
}

func TestResolveEnforceBoth(t *testing.T) {
	c := New()
	c.AccountingEnforceNames = []string{"limits", "safe"}
	c.resolveEnforce()
	if !c.Enforce(EnforceLimits) || !c.Enforce(EnforceSafe) {
		t.Error("expected both flags set after resolving limits+safe")
	}
}

func TestResolveEnforceEmpty(t *testing.T) {
	c := New()
	c.AccountingEnforceNames = nil
	c.resolveEnforce()
	if c.Enforce(EnforceLimits) {
		t.Error("empty enforce list should disable all enforcement")
	}
}
