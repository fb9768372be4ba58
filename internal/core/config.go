package core

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"latticecore/internal/artifact"
	"latticecore/pkg/filterapi"
)

// RunLogDriver identifies a run ledger backend.
type RunLogDriver string

const (
	RunLogMemory   RunLogDriver = "memory"   // in-memory only (tests / ephemeral)
	RunLogSQLite   RunLogDriver = "sqlite"   // embedded sqlite file
	RunLogPostgres RunLogDriver = "postgres" // PostgreSQL server
)

// RunLogConfig selects the run ledger backend.
type RunLogConfig struct {
	Driver      RunLogDriver `yaml:"driver"`
	SQLitePath  string       `yaml:"sqlite_path"`
	PostgresDSN string       `yaml:"postgres_dsn"`
}

// Config is the process configuration. Values come from an optional YAML
// file named by LATTICE_CONFIG, then LATTICE_* environment variables.
type Config struct {
	Artifact         artifact.Config `yaml:"artifact"`
	RunLog           RunLogConfig    `yaml:"runlog"`
	AtomicCommit     bool            `yaml:"atomic_commit"`
	ProgressInterval time.Duration   `yaml:"progress_interval"`
	LogLevel         string          `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Artifact:         artifact.Config{Driver: artifact.DriverFilesystem, FSRoot: "./artifacts"},
		RunLog:           RunLogConfig{Driver: RunLogSQLite, SQLitePath: "./lattice.db"},
		ProgressInterval: filterapi.DefaultProgressInterval,
		LogLevel:         "info",
	}
}

// LoadConfig reads the configuration from the environment.
//
//	LATTICE_CONFIG: optional YAML file applied over the defaults
//	LATTICE_ARTIFACT_DRIVER: fs|s3|memory (default fs)
//	LATTICE_ARTIFACT_FS_ROOT: filesystem artifact root
//	LATTICE_ARTIFACT_S3_{BUCKET,REGION,ENDPOINT,PREFIX,PATH_STYLE}
//	LATTICE_ARTIFACT_S3_{ACCESS_KEY_ID,SECRET_ACCESS_KEY,SESSION_TOKEN}
//	LATTICE_RUNLOG_DRIVER: memory|sqlite|postgres (default sqlite)
//	LATTICE_SQLITE_PATH, LATTICE_POSTGRES_DSN
//	LATTICE_ATOMIC_COMMIT: restore the graph when a commit fails
//	LATTICE_PROGRESS_INTERVAL: minimum gap between progress messages
//	LATTICE_LOG_LEVEL: debug|info|warn|error
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("LATTICE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LATTICE_ARTIFACT_FS_ROOT":              &cfg.Artifact.FSRoot,
		"LATTICE_ARTIFACT_S3_BUCKET":            &cfg.Artifact.S3.Bucket,
		"LATTICE_ARTIFACT_S3_REGION":            &cfg.Artifact.S3.Region,
		"LATTICE_ARTIFACT_S3_ENDPOINT":          &cfg.Artifact.S3.Endpoint,
		"LATTICE_ARTIFACT_S3_PREFIX":            &cfg.Artifact.S3.Prefix,
		"LATTICE_ARTIFACT_S3_ACCESS_KEY_ID":     &cfg.Artifact.S3.AccessKeyID,
		"LATTICE_ARTIFACT_S3_SECRET_ACCESS_KEY": &cfg.Artifact.S3.SecretAccessKey,
		"LATTICE_ARTIFACT_S3_SESSION_TOKEN":     &cfg.Artifact.S3.SessionToken,
		"LATTICE_SQLITE_PATH":                   &cfg.RunLog.SQLitePath,
		"LATTICE_POSTGRES_DSN":                  &cfg.RunLog.PostgresDSN,
		"LATTICE_LOG_LEVEL":                     &cfg.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("LATTICE_ARTIFACT_DRIVER"); ok {
		cfg.Artifact.Driver = artifact.Driver(v)
	}
	if v, ok := os.LookupEnv("LATTICE_RUNLOG_DRIVER"); ok {
		cfg.RunLog.Driver = RunLogDriver(v)
	}
	bools := map[string]*bool{
		"LATTICE_ARTIFACT_S3_PATH_STYLE": &cfg.Artifact.S3.PathStyle,
		"LATTICE_ATOMIC_COMMIT":          &cfg.AtomicCommit,
	}
	for key, dst := range bools {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	if v, ok := os.LookupEnv("LATTICE_PROGRESS_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LATTICE_PROGRESS_INTERVAL: %w", err)
		}
		cfg.ProgressInterval = d
	}
	return nil
}

// PipelineOptions returns the pipeline options cfg implies.
func (c Config) PipelineOptions() []Option {
	return []Option{WithAtomicCommit(c.AtomicCommit), WithProgressInterval(c.ProgressInterval)}
}
