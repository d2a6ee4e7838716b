// Package config loads taskgrid configuration from YAML files and
// TASKGRID_* environment variables via viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the externally supplied configuration for the daemons. Nothing
// here is hardcoded into the core packages; each component receives the
// values it needs at construction.
type Config struct {
	// Broker
	BrokerURL string `mapstructure:"broker_url"` // e.g. redis://localhost:6379/0; empty = in-process broker

	// Coordinator
	ListenAddr      string        `mapstructure:"listen_addr"`
	HeartbeatMaxAge time.Duration `mapstructure:"heartbeat_max_age"`
	MaxHistory      int           `mapstructure:"max_history"`
	AssignedTimeout time.Duration `mapstructure:"assigned_timeout"` // assigned-but-never-started deadline
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`   // stuck-task sweep cadence

	// Worker agent
	HeartbeatInterval time.Duration     `mapstructure:"heartbeat_interval"`
	MemoryPerTaskGB   float64           `mapstructure:"memory_per_task_gb"`
	Capabilities      []string          `mapstructure:"capabilities"`
	Queues            []string          `mapstructure:"queues"`
	Concurrency       int               `mapstructure:"concurrency"`
	CoordinatorURL    string            `mapstructure:"coordinator_url"`
	MetricsAddr       string            `mapstructure:"metrics_addr"` // agent /metrics listen address
	Handlers          map[string]string `mapstructure:"handlers"`     // task type → external handler command

	// Supervisor
	WorkerBinary         string        `mapstructure:"worker_binary"`
	MonitorInterval      time.Duration `mapstructure:"monitor_interval"`
	StopTimeout          time.Duration `mapstructure:"stop_timeout"`
	MaxRestarts          int           `mapstructure:"max_restarts"`
	MaxWorkersPerMachine int           `mapstructure:"max_workers_per_machine"`
	ScaleCooldown        time.Duration `mapstructure:"scale_cooldown"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
	LogDir   string `mapstructure:"log_dir"`
}

// Load reads configuration from the given file (optional) and environment
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("TASKGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("taskgrid")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.taskgrid")
		}
		// Missing default config is fine; env and defaults apply
		_ = v.ReadInConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default so environment overrides survive Unmarshal
	v.SetDefault("broker_url", "")
	v.SetDefault("concurrency", 0)
	v.SetDefault("capabilities", []string{})
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("coordinator_url", "http://localhost:8080")
	v.SetDefault("heartbeat_max_age", "2m")
	v.SetDefault("heartbeat_interval", "30s")
	v.SetDefault("max_history", 1000)
	v.SetDefault("assigned_timeout", "2m")
	v.SetDefault("sweep_interval", "30s")
	v.SetDefault("metrics_addr", ":9100")
	v.SetDefault("memory_per_task_gb", 4.0)
	v.SetDefault("queues", []string{"general"})
	v.SetDefault("worker_binary", "taskgrid-worker")
	v.SetDefault("monitor_interval", "30s")
	v.SetDefault("stop_timeout", "10s")
	v.SetDefault("max_restarts", 3)
	v.SetDefault("max_workers_per_machine", 0)
	v.SetDefault("scale_cooldown", "1m")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_json", false)
	v.SetDefault("log_dir", "./logs")
}

// ScaleTargets is a desired worker-count-per-queue map, typically kept in a
// small YAML file next to the agent config
type ScaleTargets map[string]int

// LoadScaleTargets parses a YAML file of queue: count pairs
func LoadScaleTargets(path string) (ScaleTargets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scale targets %s: %w", path, err)
	}

	targets := ScaleTargets{}
	if err := yaml.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("parse scale targets %s: %w", path, err)
	}
	for queue, count := range targets {
		if count < 0 {
			return nil, fmt.Errorf("scale targets %s: negative count %d for queue %s", path, count, queue)
		}
	}
	return targets, nil
}
