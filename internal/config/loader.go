package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Tasks    TasksConfig    `mapstructure:"tasks"`
	Terminal TerminalConfig `mapstructure:"terminal"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Features FeaturesConfig `mapstructure:"features"`
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

	// TimelineRetention bounds how long finished-task events stay in the
	// timeline table before the cleanup pass prunes them.
	TimelineRetention time.Duration `mapstructure:"timeline_retention"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Enabled reports whether a database was configured at all. The timeline
// audit feed degrades to a log-only stub when it was not.
func (d *DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

type AuthConfig struct {
	AdminAPIKey    string        `mapstructure:"admin_api_key"`
	StreamToken    string        `mapstructure:"stream_token"`
	StreamTokenTTL time.Duration `mapstructure:"stream_token_ttl"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type TasksConfig struct {
	// ScriptDir holds one executable per operation, laid out as
	// <script_dir>/<kind>/<action>. The target is passed as argv[1].
	ScriptDir   string        `mapstructure:"script_dir"`
	RunTimeout  time.Duration `mapstructure:"run_timeout"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
	Remote      RemoteConfig  `mapstructure:"remote"`
}

// RemoteConfig points task execution at a managed host over SSH instead
// of the local machine. Scripts are uploaded per run.
type RemoteConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	PrivateKey string `mapstructure:"private_key"`
}

func (r *RemoteConfig) Enabled() bool {
	return r.Host != ""
}

type TerminalConfig struct {
	Shell       string `mapstructure:"shell"`
	DefaultRows int    `mapstructure:"default_rows"`
	DefaultCols int    `mapstructure:"default_cols"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type FeaturesConfig struct {
	RequestIDHeader      string `mapstructure:"request_id_header"`
	EnableRequestLogging bool   `mapstructure:"enable_request_logging"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("CRUX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("database.timeline_retention", 30*24*time.Hour)
	viper.SetDefault("tasks.run_timeout", 30*time.Minute)
	viper.SetDefault("tasks.grace_period", 5*time.Minute)
	viper.SetDefault("terminal.shell", "/bin/bash")
	viper.SetDefault("terminal.default_rows", 24)
	viper.SetDefault("terminal.default_cols", 80)
	viper.SetDefault("stream.heartbeat_interval", 30*time.Second)
	viper.SetDefault("stream.write_timeout", 10*time.Second)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
