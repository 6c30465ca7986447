// Package config loads and validates surveyd configuration. Candidate
// channel lists are injected configuration, not hardcoded constants:
// regulatory regions differ and 6 GHz availability depends on hardware.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/markus-lassfolk/wifisurvey/pkg/logx"
	"github.com/markus-lassfolk/wifisurvey/pkg/scan"
)

// ConfigError reports missing or invalid configuration. Fatal at startup:
// recommendations cannot be computed meaningfully without a valid
// candidate channel list.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// MQTTConfig holds the optional event publisher settings
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	Port        int    `json:"port"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         int    `json:"qos"`
}

// Config represents the surveyd configuration
type Config struct {
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	ListenAddr     string `json:"listen_addr"`
	APIKey         string `json:"api_key"` // optional, empty allows anonymous access
	MetricsEnabled bool   `json:"metrics_enabled"`

	Device      string `json:"device"`       // wireless interface, e.g. "wlan0"
	ScanBackend string `json:"scan_backend"` // "ubus" or "iwinfo"

	Region string `json:"region"` // "FCC", "ETSI" or "OTHER"
	UseDFS bool   `json:"use_dfs"`

	// ContentionThresholdDBm: two APs must both be observed at or above
	// this strength in a shared room to count as real contention
	ContentionThresholdDBm int `json:"contention_threshold_dbm"`

	// MinImprovement: minimum relative interference reduction before a
	// channel change is recommended; prevents churn for negligible gains
	MinImprovement float64 `json:"min_improvement"`

	// Channels maps region → band → candidate channel list. Empty falls
	// back to the built-in sets for the configured region.
	Channels map[string]map[string][]int `json:"channels,omitempty"`

	SessionDBPath string `json:"session_db_path"`
	PIDFilePath   string `json:"pid_file_path"` // empty disables the single-instance guard

	MQTT MQTTConfig `json:"mqtt"`
}

// DefaultConfig returns the default surveyd configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:               "info",
		ListenAddr:             "127.0.0.1:8088",
		MetricsEnabled:         true,
		Device:                 "wlan0",
		ScanBackend:            "ubus",
		Region:                 "FCC",
		UseDFS:                 true,
		ContentionThresholdDBm: -75,
		MinImprovement:         0.10,
		SessionDBPath:          "/var/lib/wifisurvey/sessions.db",
		PIDFilePath:            "/var/run/surveyd.pid",
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "localhost",
			Port:        1883,
			ClientID:    "surveyd",
			TopicPrefix: "wifisurvey",
			QoS:         1,
		},
	}
}

// LoadConfig reads a JSON config file, applying defaults for absent
// fields. A missing file yields the defaults.
func LoadConfig(path string, logger *logx.Logger) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Config file not found, using defaults", "path", path)
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Field: "file", Reason: fmt.Sprintf("%s: %v", path, err)}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		"path", path,
		"region", cfg.Region,
		"device", cfg.Device,
		"contention_threshold_dbm", cfg.ContentionThresholdDBm,
		"min_improvement", cfg.MinImprovement)

	return cfg, nil
}

// Validate checks ranges and that a usable candidate channel list exists
// for every band of the configured region
func (c *Config) Validate() error {
	if c.ContentionThresholdDBm < -100 || c.ContentionThresholdDBm > 0 {
		return &ConfigError{Field: "contention_threshold_dbm",
			Reason: fmt.Sprintf("%d outside [-100, 0]", c.ContentionThresholdDBm)}
	}
	if c.MinImprovement < 0 || c.MinImprovement >= 1 {
		return &ConfigError{Field: "min_improvement",
			Reason: fmt.Sprintf("%g outside [0, 1)", c.MinImprovement)}
	}
	if c.ScanBackend != "ubus" && c.ScanBackend != "iwinfo" {
		return &ConfigError{Field: "scan_backend",
			Reason: fmt.Sprintf("unknown backend %q", c.ScanBackend)}
	}

	channels, err := c.CandidateChannels()
	if err != nil {
		return err
	}
	for _, band := range scan.Bands {
		list := channels[band]
		if len(list) == 0 {
			return &ConfigError{Field: "channels",
				Reason: fmt.Sprintf("no candidate channels for %s in region %s", band, c.Region)}
		}
		for _, ch := range list {
			if scan.FrequencyFromChannel(band, ch) == 0 {
				return &ConfigError{Field: "channels",
					Reason: fmt.Sprintf("channel %d does not exist on %s", ch, band)}
			}
		}
	}
	return nil
}

// CandidateChannels resolves the per-band candidate lists for the
// configured region, preferring explicit configuration over the
// built-in regional sets.
func (c *Config) CandidateChannels() (map[scan.Band][]int, error) {
	out := regionChannels(c.Region, c.UseDFS)

	if override, ok := c.Channels[c.Region]; ok {
		for bandName, list := range override {
			band := scan.Band(bandName)
			switch band {
			case scan.Band24, scan.Band5, scan.Band6:
				out[band] = append([]int(nil), list...)
			default:
				return nil, &ConfigError{Field: "channels",
					Reason: fmt.Sprintf("unknown band %q", bandName)}
			}
		}
	}

	return out, nil
}

// regionChannels returns the built-in candidate sets per regulatory
// region. The 2.4 GHz sets are the standard non-overlapping channels;
// 6 GHz uses the preferred scanning channel (PSC) subset.
func regionChannels(region string, useDFS bool) map[scan.Band][]int {
	psc6 := []int{5, 21, 37, 53, 69, 85, 101, 117, 133, 149, 165, 181, 197, 213, 229}

	switch region {
	case "ETSI":
		channels5 := []int{36, 40, 44, 48}
		if useDFS {
			channels5 = append(channels5, 52, 56, 60, 64, 100, 104, 108, 112, 116, 120, 124, 128, 132, 136, 140)
		}
		return map[scan.Band][]int{
			scan.Band24: {1, 5, 9, 13},
			scan.Band5:  channels5,
			scan.Band6:  psc6,
		}
	case "FCC":
		channels5 := []int{36, 40, 44, 48, 149, 153, 157, 161}
		if useDFS {
			channels5 = append(channels5, 52, 56, 60, 64, 100, 104, 108, 112, 116, 120, 124, 128, 132, 136, 140)
		}
		channels5 = append(channels5, 165)
		return map[scan.Band][]int{
			scan.Band24: {1, 6, 11},
			scan.Band5:  channels5,
			scan.Band6:  psc6,
		}
	default:
		return map[scan.Band][]int{
			scan.Band24: {1, 6, 11},
			scan.Band5:  {36, 40, 44, 48},
			scan.Band6:  psc6,
		}
	}
}
