package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Library
		Log
		Reading
		Tasks
		Integrity
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		CalibrePath  string
		TalebookPath string
		InitSchema   bool // Create missing database files and tables on startup
	}
	Library struct {
		Dir string // Calibre library root, book folders live under it
	}
	Log struct {
		Level   string
		Console bool
		File    string
		Dir     string
	}
	Reading struct {
		DefaultReaderID int64
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		MaxRetries      int
		RetryDelay      time.Duration
		TaskTimeout     time.Duration
		Retention       time.Duration
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Integrity struct {
		Enabled  bool
		Schedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
)

// Paths holds the resolved locations of both SQLite stores.
type Paths struct {
	Calibre  string
	Talebook string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("calibre_db_path", "")
	v.SetDefault("talebook_db_path", "")
	v.SetDefault("calibre_library_dir", "")
	v.SetDefault("init_schema", false)

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_console", true)
	v.SetDefault("log_file", "")
	v.SetDefault("log_dir", "./logs")

	v.SetDefault("default_reader_id", 0)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_max_retries", 5)
	v.SetDefault("task_retry_delay", "30s")
	v.SetDefault("task_timeout", "10m")
	v.SetDefault("task_retention", "24h")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Integrity scheduler defaults
	v.SetDefault("integrity_enabled", true)
	v.SetDefault("integrity_schedule", "0 3 * * *")
	return v
}

func NewConfig() *Config {
	v := newViper()
	paths := resolvePaths(v, Paths{})

	libraryDir := v.GetString("CALIBRE_LIBRARY_DIR")
	if libraryDir == "" {
		libraryDir = filepath.Dir(paths.Calibre)
	}

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			CalibrePath:  paths.Calibre,
			TalebookPath: paths.Talebook,
			InitSchema:   v.GetBool("INIT_SCHEMA"),
		},
		Library: Library{
			Dir: libraryDir,
		},
		Log: Log{
			Level:   v.GetString("LOG_LEVEL"),
			Console: v.GetBool("LOG_CONSOLE"),
			File:    v.GetString("LOG_FILE"),
			Dir:     v.GetString("LOG_DIR"),
		},
		Reading: Reading{
			DefaultReaderID: v.GetInt64("DEFAULT_READER_ID"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			MaxRetries:      v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:      v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:     v.GetDuration("TASK_TIMEOUT"),
			Retention:       v.GetDuration("TASK_RETENTION"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Integrity: Integrity{
			Enabled:  v.GetBool("INTEGRITY_ENABLED"),
			Schedule: v.GetString("INTEGRITY_SCHEDULE"),
		},
	}
}

// ResolvePaths reloads the store locations. Explicit values win over the
// environment, and the environment wins over defaults under the project root.
func ResolvePaths(explicit Paths) Paths {
	return resolvePaths(newViper(), explicit)
}

func resolvePaths(v *viper.Viper, explicit Paths) Paths {
	root := ProjectRoot()
	paths := explicit
	if paths.Calibre == "" {
		paths.Calibre = v.GetString("CALIBRE_DB_PATH")
	}
	if paths.Calibre == "" {
		paths.Calibre = filepath.Join(root, DefaultCalibreDBPath)
	}
	if paths.Talebook == "" {
		paths.Talebook = v.GetString("TALEBOOK_DB_PATH")
	}
	if paths.Talebook == "" {
		paths.Talebook = filepath.Join(root, DefaultTalebookDBPath)
	}
	return paths
}

// ProjectRoot returns the repository root, treating a "server" working
// directory as a subdirectory of it.
func ProjectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return projectRootFrom(wd)
}

func projectRootFrom(wd string) string {
	if filepath.Base(wd) == ServerDirName {
		return filepath.Dir(wd)
	}
	return wd
}
