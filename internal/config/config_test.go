package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Recognition.Tolerance != 0.6 {
		t.Errorf("expected default tolerance 0.6, got %v", cfg.Recognition.Tolerance)
	}
	if cfg.Recognition.AcceptConfidence != 0.6 {
		t.Errorf("expected default accept confidence 0.6, got %v", cfg.Recognition.AcceptConfidence)
	}
	if cfg.Enrollment.RequiredImages != 5 {
		t.Errorf("expected 5 required images, got %d", cfg.Enrollment.RequiredImages)
	}
	if cfg.Enrollment.RetentionCap != 10 {
		t.Errorf("expected retention cap 10, got %d", cfg.Enrollment.RetentionCap)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected 25 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Directory.Table != "employees" {
		t.Errorf("expected default directory table 'employees', got %q", cfg.Directory.Table)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RECOGNITION_TOLERANCE", "0.45")
	t.Setenv("ENROLLMENT_REQUIRED_IMAGES", "3")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "10")
	t.Setenv("DIRECTORY_MYSQL_DSN", "hr:hr@tcp(mysql:3306)/hr")
	t.Setenv("DIRECTORY_MYSQL_TABLE", "people")

	cfg := Load()

	if cfg.Recognition.Tolerance != 0.45 {
		t.Errorf("expected tolerance 0.45, got %v", cfg.Recognition.Tolerance)
	}
	if cfg.Enrollment.RequiredImages != 3 {
		t.Errorf("expected 3 required images, got %d", cfg.Enrollment.RequiredImages)
	}
	if cfg.Database.MaxOpenConns != 10 {
		t.Errorf("expected 10 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Directory.DSN != "hr:hr@tcp(mysql:3306)/hr" {
		t.Errorf("unexpected directory DSN %q", cfg.Directory.DSN)
	}
	if cfg.Directory.Table != "people" {
		t.Errorf("expected directory table 'people', got %q", cfg.Directory.Table)
	}
}

func TestEnvHelpersRejectInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		check func(*Config) bool
	}{
		{"non-numeric int", "ENROLLMENT_RETENTION_CAP", "lots", func(c *Config) bool { return c.Enrollment.RetentionCap == 10 }},
		{"negative int", "DATABASE_MAX_IDLE_CONNS", "-2", func(c *Config) bool { return c.Database.MaxIdleConns == 5 }},
		{"non-numeric float", "RECOGNITION_TOLERANCE", "loose", func(c *Config) bool { return c.Recognition.Tolerance == 0.6 }},
		{"negative float", "RECOGNITION_ACCEPT_CONFIDENCE", "-1", func(c *Config) bool { return c.Recognition.AcceptConfidence == 0.6 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if !tc.check(Load()) {
				t.Errorf("invalid %s=%q should fall back to default", tc.key, tc.value)
			}
		})
	}
}
