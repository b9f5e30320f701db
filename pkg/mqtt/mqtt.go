package mqttPkg

import (
	"DriverWatch/internal/entity"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const defaultTopicPrefix = "driverwatch"

// topicReplacer neutralizes the level separator, wildcards and NUL so a
// driver id always stays a single topic level.
var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", "\x00", "_")

var ErrPublishTimeout = errors.New("mqtt publish timed out")

type IPublisher interface {
	PublishAlert(event entity.AlertEvent) error
	Close()
}

type Config struct {
	BrokerURL      string
	ClientID       string
	TopicPrefix    string
	PublishTimeout time.Duration
}

type publisher struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
	log     *logrus.Logger
}

func New(cfg Config, log *logrus.Logger) (IPublisher, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("mqtt broker URL is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("driverwatch-%d", time.Now().Unix())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Infof("Connected to MQTT broker %s", cfg.BrokerURL)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warnf("MQTT connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newPublisher(client, cfg, log), nil
}

func newPublisher(client mqtt.Client, cfg Config, log *logrus.Logger) *publisher {
	prefix := strings.Trim(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &publisher{client: client, prefix: prefix, timeout: timeout, log: log}
}

// Topic returns <prefix>/<driver>/alerts; anonymous requests share one topic.
func (p *publisher) Topic(event entity.AlertEvent) string {
	driver := topicReplacer.Replace(strings.TrimSpace(event.DriverID))
	if driver == "" {
		driver = "anonymous"
	}
	return fmt.Sprintf("%s/%s/alerts", p.prefix, driver)
}

func (p *publisher) PublishAlert(event entity.AlertEvent) error {
	payload, err := jsoniter.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode alert event: %w", err)
	}

	token := p.client.Publish(p.Topic(event), 1, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

func (p *publisher) Close() {
	p.client.Disconnect(250)
}
