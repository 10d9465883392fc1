// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial"`
	UDP       UDPConfig       `mapstructure:"udp"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Upgrade   UpgradeConfig   `mapstructure:"upgrade"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SerialConfig represents serial transport configuration
type SerialConfig struct {
	BaudRate    int           `mapstructure:"baud_rate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// UDPConfig represents the UDP command transport configuration
type UDPConfig struct {
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DiscoveryConfig represents multicast discovery configuration
type DiscoveryConfig struct {
	Group         string        `mapstructure:"group"`
	Port          int           `mapstructure:"port"`
	ScanWindow    time.Duration `mapstructure:"scan_window"`
	QueryInterval time.Duration `mapstructure:"query_interval"`
	ServiceName   string        `mapstructure:"service_name"`
}

// UpgradeConfig represents firmware upgrade configuration
type UpgradeConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
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

// InterfaceEnvVar names the environment variable consulted for the comms
// interface when no device is given on the command line.
const InterfaceEnvVar = "DPSIF"

// Load reads configuration from an optional config file and the environment.
// Missing files are not an error; defaults cover every setting.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dpsctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.dpsctl")
		}
	}

	v.SetEnvPrefix("DPSCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.baud_rate", 115200)
	v.SetDefault("serial.read_timeout", time.Second)

	v.SetDefault("udp.port", 5005)
	v.SetDefault("udp.timeout", time.Second)

	v.SetDefault("discovery.group", "225.0.0.37")
	v.SetDefault("discovery.port", 4431)
	v.SetDefault("discovery.scan_window", 6*time.Second)
	v.SetDefault("discovery.query_interval", 2*time.Second)
	v.SetDefault("discovery.service_name", "opendps")

	v.SetDefault("upgrade.chunk_size", 1024)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", false)
}

// InterfaceName resolves the comms interface to use: the explicit value if
// given, otherwise the DPSIF environment variable.
func InterfaceName(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if name := os.Getenv(InterfaceEnvVar); name != "" {
		return name, nil
	}
	return "", fmt.Errorf("no communication interface specified")
}
