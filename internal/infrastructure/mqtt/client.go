package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/linepush/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for linepush.
//
// It carries the sensor subscriptions made by sensor.Binder, restores them
// after a reconnect, and publishes the daemon's retained status topics.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	// subscriptions tracks sensor topics for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	logger  Logger
	metrics *Metrics
	optMu   sync.RWMutex
}

// Logger is the logging surface the client needs.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on paho's delivery goroutine and should return quickly.
// A returned error is logged and counted; the message is still acknowledged.
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker.
//
// It builds options from config, registers the Last Will on the system
// status topic, enables auto-reconnect and waits for the first connection.
// On success the online status is published retained.
//
// Parameters:
//   - ctx: Context for cancelling the initial connection attempt
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed, wrapping the timeout, ctx or broker error
func Connect(ctx context.Context, cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	c := newClient(cfg)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, o *pahomqtt.ClientOptions) {
		c.getLogger().Warn("reconnecting to MQTT broker", "servers", len(o.Servers))
	})

	c.client = pahomqtt.NewClient(opts)
	if err := await(ctx, c.client.Connect(), defaultConnectTimeout); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously; mark the state here so
	// IsConnected is true as soon as Connect returns.
	c.setConnected(true)

	return c, nil
}

// newClient creates an unconnected client; Connect or tests set c.client.
func newClient(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}
}

func (c *Client) setConnected(up bool) {
	c.connMu.Lock()
	c.connected = up
	c.connMu.Unlock()
	c.getMetrics().setConnected(up)
}

// handleConnect runs on the initial connection and every reconnect.
func (c *Client) handleConnect() {
	c.setConnected(true)

	restored := c.restoreSubscriptions()
	c.getLogger().Info("connected to MQTT broker", "subscriptions", restored)

	c.publishSystemStatus(statusOnline, "")
}

// handleDisconnect runs when the connection is lost unexpectedly.
func (c *Client) handleDisconnect(err error) {
	c.setConnected(false)
	c.getMetrics().incLost()
	c.getLogger().Warn("MQTT connection lost", "error", err)
}

// restoreSubscriptions re-subscribes every tracked topic after a reconnect
// and returns how many were requested. Failures surface on the next
// reconnect, so tokens are not awaited.
func (c *Client) restoreSubscriptions() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	return len(c.subscriptions)
}

// publishSystemStatus writes the retained system status without waiting
// for the acknowledgement.
func (c *Client) publishSystemStatus(status, reason string) pahomqtt.Token {
	payload := buildStatusPayload(c.cfg.Broker.ClientID, status, reason, time.Now())
	return c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload) //nolint:gosec // qos validated 0..2
}

// Close publishes a graceful offline status, then disconnects. A status
// published this way differs from the LWT in its reason field.
//
// Returns:
//   - error: always nil; a broker that is already gone is not an error
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.publishSystemStatus(statusOffline, reasonGraceful)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)

	return nil
}

// HealthCheck verifies the MQTT connection is up.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetLogger sets the logger. Without one, nothing is logged.
func (c *Client) SetLogger(logger Logger) {
	c.optMu.Lock()
	c.logger = logger
	c.optMu.Unlock()
}

// SetMetrics attaches Prometheus collectors. The connection gauge is set
// to the current state immediately.
func (c *Client) SetMetrics(m *Metrics) {
	c.optMu.Lock()
	c.metrics = m
	c.optMu.Unlock()
	m.setConnected(c.IsConnected())
}

func (c *Client) getLogger() Logger {
	c.optMu.RLock()
	defer c.optMu.RUnlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

func (c *Client) getMetrics() *Metrics {
	c.optMu.RLock()
	defer c.optMu.RUnlock()
	return c.metrics
}

// wrapHandler adapts a MessageHandler to paho, recovering panics and
// counting each message by outcome.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.getMetrics().incMessage(resultPanic)
				c.getLogger().Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.getMetrics().incMessage(resultError)
			c.getLogger().Warn("sensor payload rejected",
				"topic", msg.Topic(),
				"error", err,
			)
			return
		}
		c.getMetrics().incMessage(resultOK)
	}
}
