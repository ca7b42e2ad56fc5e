package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/AdventureEngine/internal/config"
)

const opTimeout = 10 * time.Second

// Config holds broker connection settings, read from the environment.
type Config struct {
	URL         string        `env:"MQTT_URL" envDefault:"tcp://localhost:1883"`
	ClientID    string        `env:"MQTT_CLIENT_ID" envDefault:"adventure-engine"`
	TopicPrefix string        `env:"MQTT_TOPIC_PREFIX" envDefault:"adventure"`
	Username    string        `env:"MQTT_USERNAME"`
	Password    string        `env:"MQTT_PASSWORD"`
	AckTimeout  time.Duration `env:"MQTT_ACK_TIMEOUT" envDefault:"2s"`
}

// ConfigFromEnv parses Config from the environment.
// MQTT_PASSWORD_FILE takes precedence over MQTT_PASSWORD.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse mqtt env: %w", err)
	}
	password, err := config.ResolveSecret("MQTT_PASSWORD")
	if err != nil {
		return Config{}, err
	}
	cfg.Password = password
	return cfg, nil
}

// Topic joins the configured prefix and a suffix.
func (c Config) Topic(suffix string) string {
	if c.TopicPrefix == "" {
		return suffix
	}
	return c.TopicPrefix + "/" + suffix
}

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Subscriber routes messages on a topic to a handler.
type Subscriber interface {
	Subscribe(topic string, handler paho.MessageHandler) error
}

// Client wraps the Paho MQTT client for the adventure engine.
type Client struct {
	client paho.Client
	url    string
	mu     sync.Mutex

	cbMu      sync.Mutex
	onConnect []func()
}

// NewClient creates a new MQTT client but does not connect.
func NewClient(cfg Config) *Client {
	opts := paho.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := &Client{url: cfg.URL}
	// Subscriptions do not survive a clean-session reconnect.
	opts.SetOnConnectHandler(func(paho.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Printf("mqtt: connection lost: %v", err)
	})
	c.client = paho.NewClient(opts)
	return c
}

// OnConnect registers fn to run after every successful (re)connect.
// Use it to establish subscriptions.
func (c *Client) OnConnect(fn func()) {
	c.cbMu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.cbMu.Unlock()
}

func (c *Client) connected() {
	c.cbMu.Lock()
	fns := append([]func(){}, c.onConnect...)
	c.cbMu.Unlock()

	log.Printf("mqtt: connected to %s", c.url)
	for _, fn := range fns {
		fn()
	}
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(opTimeout) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(opTimeout) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Publish sends payload at QoS 1 and waits for the broker to accept it.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.client.IsConnected() {
		return &NotConnectedError{}
	}

	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(opTimeout) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// SubscribeTimeoutError indicates subscription timed out.
type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

// PublishTimeoutError indicates the broker did not acknowledge a publish in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}

// NotConnectedError is returned by Publish while the client is offline.
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string {
	return "mqtt not connected"
}
