package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address" toml:"bind_address"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial_port" toml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `yaml:"baud_rate" toml:"baud_rate"`
	// TCPAddress reaches the modem through a serial-to-TCP bridge instead
	// of a local port when set (e.g. "esp-link.local:23")
	TCPAddress string `yaml:"tcp_address" toml:"tcp_address"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level" toml:"log_level"`
	// APName is the SSID of the access point to join
	APName string `yaml:"ap_name" toml:"ap_name"`
	// APPassword is the access point passphrase
	APPassword string `yaml:"ap_password" toml:"ap_password"`
	// Echo keeps command echo enabled on the modem
	Echo bool `yaml:"echo" toml:"echo"`
	// LinkReservation claims link ids when a connection is requested
	LinkReservation bool `yaml:"link_reservation" toml:"link_reservation"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		return nil
	}
}

// WithFile loads configuration from a YAML (.yaml, .yml) or TOML (.toml)
// file. Keys missing from the file keep their current values. An empty path
// is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}

		switch ext := filepath.Ext(path); ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, c); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
		case ".toml":
			if _, err := toml.Decode(string(data), c); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
		default:
			return fmt.Errorf("unsupported config file extension %q", ext)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if addr := os.Getenv("TCP_ADDRESS"); addr != "" {
			c.TCPAddress = addr
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if name := os.Getenv("AP_NAME"); name != "" {
			c.APName = name
		}

		if pass := os.Getenv("AP_PASSWORD"); pass != "" {
			c.APPassword = pass
		}

		if echo := os.Getenv("ECHO"); echo != "" {
			if b, err := strconv.ParseBool(echo); err == nil {
				c.Echo = b
			}
		}

		if reserve := os.Getenv("LINK_RESERVATION"); reserve != "" {
			if b, err := strconv.ParseBool(reserve); err == nil {
				c.LinkReservation = b
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "tcp-address":
				c.TCPAddress = f.Value.String()
			case "log-level":
				c.LogLevel = f.Value.String()
			case "ap-name":
				c.APName = f.Value.String()
			case "ap-password":
				c.APPassword = f.Value.String()
			case "echo":
				if b, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.Echo = b
				}
			case "link-reservation":
				if b, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.LinkReservation = b
				}
			}
		})
		return nil
	}
}
