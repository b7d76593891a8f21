package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vatsalyanallabothula/weather/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrStopped is returned once Disconnect has been called.
var ErrStopped = errors.New("mqtt publisher stopped")

const (
	publishQoS     = byte(1)
	publishTimeout = 5 * time.Second
)

// Publisher owns one paho client used only for outgoing messages.
type Publisher struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	p := &Publisher{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(BrokerURL(cfg))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// BrokerURL is the tcp:// address paho dials.
func BrokerURL(cfg config.Config) string {
	return fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort)
}

// Connect blocks until the broker accepts the connection, ctx is done or the
// publisher is stopped.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return ErrStopped
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			p.client.Disconnect(0)
			return ctx.Err()
		case <-p.stopCh:
			p.client.Disconnect(0)
			return ErrStopped
		default:
		}
	}
}

// Publish sends payload at QoS 1, not retained, and waits for the broker ack.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if !p.IsConnected() {
		return errors.New("mqtt client not connected")
	}

	token := p.client.Publish(topic, publishQoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("mqtt message published", "topic", topic, "size", len(payload))
	return nil
}

func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect is idempotent.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("mqtt publisher disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
