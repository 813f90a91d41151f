package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// Storage
	DBDriver string // "sqlite" or "postgres"
	DBPath   string
	DBDSN    string

	// DHT22
	DHTGPIO     int // BCM number
	DHTSimulate bool

	// PZEM-004T
	PZEMPort       string
	PZEMSlaveID    int
	PZEMBaudRate   int
	PZEMTimeoutMS  int
	PZEMSimulate   bool
	PZEMEnergyUnit string // "Wh" or "kWh", depends on firmware

	// Fall back to simulation when hardware cannot be opened
	SimulationFallback bool

	// Timing
	SampleIntervalMS int

	// Web Server
	WebServerPort      int
	WebStaticDir       string
	WSUpdateIntervalMS int

	// MQTT (optional, empty broker disables publishing)
	MQTTBroker       string
	MQTTClientID     string
	TopicEnvironment string
	TopicElectrical  string

	// Display (0 address disables the OLED, the driver only knows 0x3C)
	DisplayI2CBus           string
	DisplayI2CAddr          uint16
	DisplayUpdateIntervalMS int

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	TerminalReport bool
}

// Default returns a configuration usable on a Raspberry Pi with the
// recommended wiring, without a config file.
func Default() *Config {
	return &Config{
		DBDriver:                "sqlite",
		DBPath:                  "surveillance.db",
		DHTGPIO:                 23,
		PZEMPort:                "/dev/ttyUSB0",
		PZEMSlaveID:             1,
		PZEMBaudRate:            9600,
		PZEMTimeoutMS:           1000,
		PZEMEnergyUnit:          "Wh",
		SimulationFallback:      true,
		SampleIntervalMS:        2000,
		WebServerPort:           5000,
		WebStaticDir:            "web",
		WSUpdateIntervalMS:      2000,
		MQTTClientID:            "surveillance",
		TopicEnvironment:        "surveillance/environment",
		TopicElectrical:         "surveillance/electrical",
		DisplayUpdateIntervalMS: 1000,
		LogLevel:                "info",
		LogFormat:               "text",
		TerminalReport:          true,
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys missing from the file keep their defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines from r on top of Default().
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Storage
	case "DB_DRIVER":
		c.DBDriver = strings.ToLower(value)
	case "DB_PATH":
		c.DBPath = value
	case "DB_DSN":
		c.DBDSN = value

	// DHT22
	case "DHT_GPIO":
		c.DHTGPIO, err = parseInt(key, value)
	case "DHT_SIMULATE":
		c.DHTSimulate, err = parseBool(key, value)

	// PZEM
	case "PZEM_PORT":
		c.PZEMPort = value
	case "PZEM_SLAVE_ID":
		c.PZEMSlaveID, err = parseInt(key, value)
		if err == nil && (c.PZEMSlaveID < 1 || c.PZEMSlaveID > 247) {
			return fmt.Errorf("PZEM_SLAVE_ID must be 1-247, got %d", c.PZEMSlaveID)
		}
	case "PZEM_BAUD_RATE":
		c.PZEMBaudRate, err = parseInt(key, value)
	case "PZEM_TIMEOUT_MS":
		c.PZEMTimeoutMS, err = parseInt(key, value)
	case "PZEM_SIMULATE":
		c.PZEMSimulate, err = parseBool(key, value)
	case "PZEM_ENERGY_UNIT":
		if value != "Wh" && value != "kWh" {
			return fmt.Errorf("PZEM_ENERGY_UNIT must be Wh or kWh, got %q", value)
		}
		c.PZEMEnergyUnit = value
	case "SIMULATION_FALLBACK":
		c.SimulationFallback, err = parseBool(key, value)

	// Timing
	case "SAMPLE_INTERVAL_MS":
		c.SampleIntervalMS, err = parseInt(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value
	case "WS_UPDATE_INTERVAL_MS":
		c.WSUpdateIntervalMS, err = parseInt(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_ENVIRONMENT":
		c.TopicEnvironment = value
	case "TOPIC_ELECTRICAL":
		c.TopicElectrical = value

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, perr)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL_MS":
		c.DisplayUpdateIntervalMS, err = parseInt(key, value)

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)
	case "LOG_FORMAT":
		c.LogFormat = strings.ToLower(value)
	case "TERMINAL_REPORT":
		c.TerminalReport, err = parseBool(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

// validate checks required and ranged fields.
func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required for postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if !c.PZEMSimulate && c.PZEMPort == "" {
		return fmt.Errorf("PZEM_PORT is required unless PZEM_SIMULATE is set")
	}
	if c.PZEMBaudRate <= 0 {
		return fmt.Errorf("PZEM_BAUD_RATE must be positive")
	}
	if c.PZEMTimeoutMS < 100 {
		return fmt.Errorf("PZEM_TIMEOUT_MS must be at least 100, got %d", c.PZEMTimeoutMS)
	}
	if c.SampleIntervalMS <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL_MS must be positive")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	if c.WSUpdateIntervalMS <= 0 {
		return fmt.Errorf("WS_UPDATE_INTERVAL_MS must be positive")
	}
	if c.DisplayI2CAddr != 0 && c.DisplayI2CAddr != 0x3C {
		return fmt.Errorf("DISPLAY_I2C_ADDR must be 0 (disabled) or 0x3C, got 0x%02X", c.DisplayI2CAddr)
	}
	if c.DisplayI2CAddr != 0 && c.DisplayUpdateIntervalMS <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL_MS must be positive when the display is enabled")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// SampleInterval is SAMPLE_INTERVAL_MS as a duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalMS) * time.Millisecond
}

// PZEMTimeout is PZEM_TIMEOUT_MS as a duration.
func (c *Config) PZEMTimeout() time.Duration {
	return time.Duration(c.PZEMTimeoutMS) * time.Millisecond
}

// WSUpdateInterval is WS_UPDATE_INTERVAL_MS as a duration.
func (c *Config) WSUpdateInterval() time.Duration {
	return time.Duration(c.WSUpdateIntervalMS) * time.Millisecond
}

// DisplayUpdateInterval is DISPLAY_UPDATE_INTERVAL_MS as a duration.
func (c *Config) DisplayUpdateInterval() time.Duration {
	return time.Duration(c.DisplayUpdateIntervalMS) * time.Millisecond
}
