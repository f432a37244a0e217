package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	SweepAPIKey     string  `yaml:"sweep_api_key"`
}

// AttendanceConfig holds the tunables of the attendance lifecycle: how long a
// session may go silent before it is force-closed, how often the server
// evaluates open sessions, and the end-of-day sweep rules.
type AttendanceConfig struct {
	InactivityMinutes   int           `yaml:"inactivity_minutes"`
	InactivityThreshold time.Duration `yaml:"-"` // Ignored by YAML parser
	EvalIntervalSeconds int           `yaml:"eval_interval_seconds"`
	EvalInterval        time.Duration `yaml:"-"`
	CutoffHourUTC       int           `yaml:"cutoff_hour_utc"`
	LateCheckInCapHours int           `yaml:"late_check_in_cap_hours"`
	MonitorEnabled      bool          `yaml:"monitor_enabled"`
	SweepEnabled        bool          `yaml:"sweep_enabled"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Attendance.InactivityMinutes <= 0 {
		cfg.Attendance.InactivityMinutes = 30
	}
	cfg.Attendance.InactivityThreshold = time.Duration(cfg.Attendance.InactivityMinutes) * time.Minute

	if cfg.Attendance.EvalIntervalSeconds <= 0 {
		cfg.Attendance.EvalIntervalSeconds = 60
	}
	cfg.Attendance.EvalInterval = time.Duration(cfg.Attendance.EvalIntervalSeconds) * time.Second

	if cfg.Attendance.CutoffHourUTC <= 0 || cfg.Attendance.CutoffHourUTC > 23 {
		cfg.Attendance.CutoffHourUTC = 18
	}

	if cfg.Attendance.LateCheckInCapHours <= 0 {
		cfg.Attendance.LateCheckInCapHours = 8
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
