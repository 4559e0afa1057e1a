// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Scanner ScannerConfig `mapstructure:"scanner"`
	App     AppConfig     `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ScannerConfig represents scan session and hardware configuration
type ScannerConfig struct {
	Cooldown       time.Duration    `mapstructure:"cooldown"`
	DefaultTimeout time.Duration    `mapstructure:"default_timeout"`
	MaxPayloadLen  int              `mapstructure:"max_payload_len"`
	Mode           string           `mapstructure:"mode"`
	Policy         string           `mapstructure:"policy"`
	BeepEnabled    bool             `mapstructure:"beep_enabled"`
	ToastEnabled   bool             `mapstructure:"toast_enabled"`
	USB            USBConfig        `mapstructure:"usb"`
	Serial         SerialPortConfig `mapstructure:"serial"`
}

// USBConfig represents USB enumeration configuration
type USBConfig struct {
	Debug bool `mapstructure:"debug"`
}

// SerialPortConfig represents the built-in scanner's serial port settings
type SerialPortConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Port     string        `mapstructure:"port"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	StopBits int           `mapstructure:"stop_bits"`
	Parity   string        `mapstructure:"parity"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/scanner-service")

	// Environment variable support
	viper.SetEnvPrefix("SCANNER_SERVICE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; defaults plus env cover everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8086")
	viper.SetDefault("server.read_timeout", "60s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Scanner defaults
	viper.SetDefault("scanner.cooldown", "2s")
	viper.SetDefault("scanner.default_timeout", "10s")
	viper.SetDefault("scanner.max_payload_len", 4296)
	viper.SetDefault("scanner.mode", "TRIGGERED")
	viper.SetDefault("scanner.policy", "PREFER_EXTERNAL")
	viper.SetDefault("scanner.beep_enabled", true)
	viper.SetDefault("scanner.toast_enabled", true)
	viper.SetDefault("scanner.usb.debug", false)
	viper.SetDefault("scanner.serial.enabled", false)
	viper.SetDefault("scanner.serial.port", "/dev/ttyS1")
	viper.SetDefault("scanner.serial.baud_rate", 9600)
	viper.SetDefault("scanner.serial.data_bits", 8)
	viper.SetDefault("scanner.serial.stop_bits", 1)
	viper.SetDefault("scanner.serial.parity", "none")
	viper.SetDefault("scanner.serial.timeout", "5s")

	// App defaults
	viper.SetDefault("app.name", "scanner-service")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Scanner.Cooldown < 0 {
		return fmt.Errorf("scanner.cooldown must not be negative")
	}
	if config.Scanner.DefaultTimeout <= 0 {
		return fmt.Errorf("scanner.default_timeout must be positive")
	}
	if config.Scanner.MaxPayloadLen <= 0 {
		return fmt.Errorf("scanner.max_payload_len must be positive")
	}

	validModes := []string{"TRIGGERED", "CONTINUOUS"}
	if !contains(validModes, config.Scanner.Mode) {
		return fmt.Errorf("scanner.mode must be one of: %v", validModes)
	}

	validPolicies := []string{"PREFER_EXTERNAL", "PREFER_BUILT_IN", "EXTERNAL_ONLY", "BUILT_IN_ONLY"}
	if !contains(validPolicies, config.Scanner.Policy) {
		return fmt.Errorf("scanner.policy must be one of: %v", validPolicies)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
