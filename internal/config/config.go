package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database    DatabaseConfig
	Directory   DirectoryConfig
	Web         WebConfig
	Recognition RecognitionConfig
	Enrollment  EnrollmentConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// DirectoryConfig points at an external HR/staff MySQL database used by the
// sync command to import people into the primary store.
type DirectoryConfig struct {
	DSN   string // MySQL DSN (e.g., hr:hr@tcp(mysql:3306)/hr)
	Table string // source table, defaults to "employees"
}

type WebConfig struct {
	Port          int    // HTTP listen port (default 8080)
	SessionSecret string // secret for signing session cookies
}

type RecognitionConfig struct {
	Tolerance        float64 `yaml:"tolerance"`
	AcceptConfidence float64 `yaml:"accept_confidence"`
}

type EnrollmentConfig struct {
	RequiredImages int `yaml:"required_images"`
	RetentionCap   int `yaml:"retention_cap"`
}

type defaults struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Enrollment  EnrollmentConfig  `yaml:"enrollment"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var def defaults
	if err := yaml.Unmarshal(defaultsYAML, &def); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Directory: DirectoryConfig{
			DSN:   os.Getenv("DIRECTORY_MYSQL_DSN"),
			Table: envString("DIRECTORY_MYSQL_TABLE", "employees"),
		},
		Web: WebConfig{
			Port:          envInt("WEB_PORT", 8080),
			SessionSecret: os.Getenv("WEB_SESSION_SECRET"),
		},
		Recognition: RecognitionConfig{
			Tolerance:        envFloat("RECOGNITION_TOLERANCE", def.Recognition.Tolerance),
			AcceptConfidence: envFloat("RECOGNITION_ACCEPT_CONFIDENCE", def.Recognition.AcceptConfidence),
		},
		Enrollment: EnrollmentConfig{
			RequiredImages: envInt("ENROLLMENT_REQUIRED_IMAGES", def.Enrollment.RequiredImages),
			RetentionCap:   envInt("ENROLLMENT_RETENTION_CAP", def.Enrollment.RetentionCap),
		},
	}
}
