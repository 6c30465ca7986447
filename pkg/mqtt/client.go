// Package mqtt publishes survey events for home-automation consumers.
// Disabled by default; the core never depends on a broker being up.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/markus-lassfolk/wifisurvey/pkg/logx"
)

// Config holds MQTT publisher configuration
type Config struct {
	Broker      string `json:"broker"`
	Port        int    `json:"port"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         int    `json:"qos"`
	Enabled     bool   `json:"enabled"`
}

// DefaultConfig returns default MQTT configuration
func DefaultConfig() *Config {
	return &Config{
		Broker:      "localhost",
		Port:        1883,
		ClientID:    "surveyd",
		TopicPrefix: "wifisurvey",
		QoS:         1,
		Enabled:     false,
	}
}

// Client publishes JSON survey events to an MQTT broker
type Client struct {
	client MQTT.Client
	config *Config
	logger *logx.Logger
}

// NewClient creates a new MQTT publisher
func NewClient(config *Config, logger *logx.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{config: config, logger: logger}
}

// Connect establishes the broker connection. A no-op when disabled.
func (c *Client) Connect() error {
	if !c.config.Enabled {
		c.logger.Debug("MQTT publisher disabled")
		return nil
	}

	opts := MQTT.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)).
		SetClientID(c.config.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	c.client = MQTT.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return fmt.Errorf("mqtt connect timeout to %s:%d", c.config.Broker, c.config.Port)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}

	c.logger.Info("MQTT publisher connected",
		"broker", c.config.Broker,
		"port", c.config.Port,
		"topic_prefix", c.config.TopicPrefix)
	return nil
}

// Publish sends a JSON payload under the configured topic prefix.
// Publish failures are logged, not propagated: event publishing must
// never fail a survey operation.
func (c *Client) Publish(subtopic string, payload interface{}) {
	if !c.config.Enabled || c.client == nil || !c.client.IsConnected() {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("Failed to marshal mqtt payload", "topic", subtopic, "error", err)
		return
	}

	topic := fmt.Sprintf("%s/%s", c.config.TopicPrefix, subtopic)
	token := c.client.Publish(topic, byte(c.config.QoS), false, data)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		c.logger.Warn("MQTT publish failed", "topic", topic, "error", token.Error())
	}
}

// Close disconnects from the broker
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}
