package config

import (
	"errors"
	"fmt"
	"strings"
)

type rule struct {
	broken bool
	err    error
}

func failIf(broken bool, format string, args ...any) rule {
	return rule{broken: broken, err: fmt.Errorf(format, args...)}
}

// validate reports every broken rule at once
func (c *Config) validate() error {
	db, ledger, tel := c.Database, c.Ledger, c.Telemetry

	rules := []rule{
		failIf(db.Driver != "postgres" && db.Driver != "sqlite",
			"database.driver must be postgres or sqlite, got %q", db.Driver),
		failIf(db.MaxOpenConns <= 0, "database.max_open_conns must be positive"),
		failIf(db.MaxIdleConns < 0, "database.max_idle_conns cannot be negative"),
		failIf(db.MaxIdleConns > db.MaxOpenConns,
			"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns),

		failIf(ledger.IDRetryAttempts < 1, "ledger.id_retry_attempts must be at least 1"),
		failIf(ledger.LockTimeout < 0, "ledger.lock_timeout cannot be negative"),
		failIf(!validOmissionPolicy(ledger.CountOmissionPolicy),
			"ledger.count_omission_policy must be unchanged or zero, got %q", ledger.CountOmissionPolicy),
		failIf(ledger.ExpiringWindowDays < 0 || ledger.CriticalWindowDays < 0, "ledger expiry windows cannot be negative"),
		failIf(ledger.CriticalWindowDays > ledger.ExpiringWindowDays,
			"ledger.critical_window_days (%d) cannot exceed ledger.expiring_window_days (%d)",
			ledger.CriticalWindowDays, ledger.ExpiringWindowDays),
		failIf(ledger.DefaultReorderThreshold < 0, "ledger.default_reorder_threshold cannot be negative"),

		failIf(tel.SamplingRatio < 0 || tel.SamplingRatio > 1,
			"telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", tel.SamplingRatio),
	}
	if c.App.IsProduction() {
		rules = append(rules, c.productionRules()...)
	}

	var errs []error
	for _, r := range rules {
		if r.broken {
			errs = append(errs, r.err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) productionRules() []rule {
	return []rule{
		failIf(c.JWT.Secret == "", "jwt.secret is required in production"),
		failIf(c.JWT.Secret != "" && len(c.JWT.Secret) < 32, "jwt.secret must be at least 32 characters in production"),
		failIf(c.Database.Driver != "postgres", "database.driver must be postgres in production"),
		failIf(c.Database.Password == "", "database.password is required in production"),
		failIf(c.Database.SSLMode == "disable", "database.sslmode cannot be 'disable' in production"),
		// statements carry lot codes and quantities into span attributes
		failIf(c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production"),
	}
}

func validOmissionPolicy(p string) bool {
	switch strings.ToLower(p) {
	case "unchanged", "zero":
		return true
	}
	return false
}
