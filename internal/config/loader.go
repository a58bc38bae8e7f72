package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Security    SecurityConfig    `mapstructure:"security"`
	Manager     ManagerConfig     `mapstructure:"manager"`
	Tracker     TrackerConfig     `mapstructure:"tracker"`
	Wizard      WizardConfig      `mapstructure:"wizard"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Hosts       HostsConfig       `mapstructure:"hosts"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Features    FeaturesConfig    `mapstructure:"features"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

type SecurityConfig struct {
	// EncryptionKey seals secret property values inside stored snapshots.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ManagerConfig points at the cluster manager REST API (catalog, command and job endpoints).
type ManagerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TrackerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	DismissDelay time.Duration `mapstructure:"dismiss_delay"`
	Step         int           `mapstructure:"step"`
	Cap          int           `mapstructure:"cap"`
}

type WizardConfig struct {
	ClusterID    uint   `mapstructure:"cluster_id"`
	CreationMode string `mapstructure:"creation_mode"`
}

type CatalogConfig struct {
	// File, when set, serves the catalog from a local YAML file instead of the manager.
	File string `mapstructure:"file"`
}

type HostsConfig struct {
	SSHUser     string        `mapstructure:"ssh_user"`
	SSHPort     int           `mapstructure:"ssh_port"`
	SSHPassword string        `mapstructure:"ssh_password"`
	SSHKeyFile  string        `mapstructure:"ssh_key_file"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Parallelism int           `mapstructure:"parallelism"`
}

type MaintenanceConfig struct {
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
	Retention       time.Duration `mapstructure:"retention"`
}

type FeaturesConfig struct {
	EnableLocks          bool   `mapstructure:"enable_locks"`
	RequestIDHeader      string `mapstructure:"request_id_header"`
	EnableRequestLogging bool   `mapstructure:"enable_request_logging"`
	EnableMetrics        bool   `mapstructure:"enable_metrics"`
}

type AuthConfig struct {
	AdminAPIKey    string   `mapstructure:"admin_api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.output_paths", []string{"stdout"})
	v.SetDefault("logger.error_output_paths", []string{"stderr"})
	v.SetDefault("manager.token", "")
	v.SetDefault("manager.timeout", 30*time.Second)
	v.SetDefault("security.encryption_key", "")
	v.SetDefault("auth.admin_api_key", "")
	v.SetDefault("tracker.poll_interval", time.Second)
	v.SetDefault("tracker.dismiss_delay", 10*time.Second)
	v.SetDefault("tracker.step", 2)
	v.SetDefault("tracker.cap", 90)
	v.SetDefault("wizard.creation_mode", "internal")
	v.SetDefault("hosts.ssh_port", 22)
	v.SetDefault("hosts.timeout", 10*time.Second)
	v.SetDefault("hosts.parallelism", 8)
	v.SetDefault("maintenance.cleanup_schedule", "@daily")
	v.SetDefault("maintenance.retention", 30*24*time.Hour)
	v.SetDefault("features.enable_locks", true)
	v.SetDefault("features.request_id_header", "X-Request-ID")
	v.SetDefault("features.enable_metrics", true)
}

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Manager.BaseURL == "" && c.Catalog.File == "" {
		return fmt.Errorf("manager.base_url is required")
	}
	switch c.Wizard.CreationMode {
	case "internal", "public":
	default:
		return fmt.Errorf("wizard.creation_mode must be one of: internal, public")
	}
	if c.Tracker.Step <= 0 {
		return fmt.Errorf("tracker.step must be positive")
	}
	if c.Tracker.Cap <= 0 || c.Tracker.Cap >= 100 {
		return fmt.Errorf("tracker.cap must be between 1 and 99")
	}
	return nil
}
