package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// CurrentVersion is the expected version of the config file.
const CurrentVersion = 1

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Discord    Discord    `koanf:"discord"`
	Sync       Sync       `koanf:"sync"`
	API        API        `koanf:"api"`
}

// Debug contains debug settings.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Discord contains the bot token and the guild whose roles drive the
// whitelist.
type Discord struct {
	// Bot token.
	Token string `koanf:"token"`
	// Guild ID whose role membership is observed.
	GuildID uint64 `koanf:"guild_id"`
}

// RoleRule maps one Discord role to a whitelist grant.
type RoleRule struct {
	// Privilege tier granted by the role (staff or general).
	Tier string `koanf:"tier"`
	// Grant duration; omit both for a permanent grant.
	DurationValue int64  `koanf:"duration_value"`
	DurationUnit  string `koanf:"duration_unit"`
}

// Sync contains the security policy and reconciler tuning.
type Sync struct {
	// Roles maps Discord role IDs to grant rules.
	Roles map[string]RoleRule `koanf:"roles"`
	// Required link confidence per tier.
	StaffThreshold   float64 `koanf:"staff_threshold"`
	GeneralThreshold float64 `koanf:"general_threshold"`
	// Debounce window for duplicate observations in milliseconds.
	DebounceWindowMS int `koanf:"debounce_window_ms"`
	// Membership lookup timeout in milliseconds.
	MembershipTimeoutMS int `koanf:"membership_timeout_ms"`
}

// API contains read API server configuration.
type API struct {
	// Listen address, e.g. ":8080".
	ListenAddr string `koanf:"listen_addr"`
}

// LoadConfig loads the configuration from the first warden.toml found in
// the search paths and returns it with the directory it was loaded from.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".warden",
		homeDir + "/.warden/config",
		"/etc/warden/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := path + "/warden.toml"
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: warden.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Version == 0 {
		return nil, "", fmt.Errorf("%w: warden.toml", ErrConfigVersionMissing)
	}

	if config.Version != CurrentVersion {
		return nil, "", fmt.Errorf("%w: warden.toml (got: %d, expected: %d)",
			ErrConfigVersionMismatch, config.Version, CurrentVersion)
	}

	applyDefaults(&config)

	return &config, usedConfigPath, nil
}

func applyDefaults(config *Config) {
	if config.Sync.StaffThreshold == 0 {
		config.Sync.StaffThreshold = 1.0
	}

	if config.Sync.GeneralThreshold == 0 {
		config.Sync.GeneralThreshold = 0.7
	}

	if config.Sync.DebounceWindowMS == 0 {
		config.Sync.DebounceWindowMS = 5000
	}

	if config.Sync.MembershipTimeoutMS == 0 {
		config.Sync.MembershipTimeoutMS = 10000
	}

	if config.API.ListenAddr == "" {
		config.API.ListenAddr = ":8080"
	}
}
