package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hollowgate/irfleet-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for irfleetd's telemetry publishing:
// connect with a Last Will and Testament, announce online/offline
// status, and publish press-outcome and slot-health events. It never
// subscribes — the daemon announces outcomes, it never takes commands
// over MQTT — so there is no subscription table or restore-on-reconnect
// logic to carry.
//
// Safe for concurrent use from multiple goroutines.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	connected bool
	connMu    sync.RWMutex

	reconnects atomic.Int64

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the subset of logging.Logger (or slog.Logger) the client
// uses to report reconnects and errors it can't otherwise surface.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Connect builds broker options from cfg, wires the LWT and
// connect/disconnect handlers, and blocks until the initial connection
// succeeds or defaultConnectTimeout elapses. On success it announces
// online status on the system status topic.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:     cfg,
		options: opts,
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		n := c.reconnects.Add(1)
		if logger := c.getLogger(); logger != nil {
			logger.Warn("mqtt reconnecting", "attempt", n)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// OnConnectHandler fires asynchronously and may not have run by the
	// time Connect returns, so set connected here too — IsConnected must
	// be true for the caller as soon as Connect succeeds.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.publishOnlineStatus()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("mqtt connection lost", "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// publishOnlineStatus announces this daemon instance as online on the
// retained system status topic. Failures here are logged rather than
// propagated: they run off the paho connect callback, which has no
// caller to return an error to.
func (c *Client) publishOnlineStatus() {
	topic := Topics{}.SystemStatus()
	payload, err := buildStatusPayload(c.cfg.Broker.ClientID, "online", "")
	if err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Error("marshal online status", "error", err)
		}
		return
	}
	token := c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("online status publish timed out")
		}
	}
}

// Close announces graceful shutdown (distinct from the LWT's crash
// status), waits briefly for it to land, then disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		topic := Topics{}.SystemStatus()
		if payload, err := buildStatusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown"); err == nil {
			token := c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
			token.WaitTimeout(defaultPublishTimeout)
		}
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck reports whether the broker connection is currently up.
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

// IsConnected reports the last known connection state. Use HealthCheck
// for an active check tied to a context deadline.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// ReconnectCount reports how many times the underlying paho client has
// entered its reconnecting state since Connect, for startup/health logs.
func (c *Client) ReconnectCount() int64 {
	return c.reconnects.Load()
}

// SetOnConnect registers a callback fired on initial connect and every
// reconnect, after online status has been published.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect registers a callback fired when the connection is
// lost, with the error describing why.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger used for reconnect/disconnect/publish
// diagnostics. Without one, those events are silently dropped.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}
