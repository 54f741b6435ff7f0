package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/iot-operations-sdks/go/mqtt/retry"
	"github.com/eclipse/paho.golang/paho"

	"github.com/oshokin/telemetry-monitor/internal/logger"
)

const (
	defaultKeepAlive      = 20 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultReconnectMin   = time.Second
	defaultReconnectMax   = 30 * time.Second
	disconnectTimeout     = 2 * time.Second
)

var (
	// ErrNotConnected is returned by Publish while no session is established.
	ErrNotConnected = errors.New("mqtt client is not connected")

	errServerDisconnect = errors.New("server sent disconnect")
)

// Handler receives every message delivered on the client's subscriptions.
type Handler func(ctx context.Context, topic string, payload []byte)

// Config describes how to reach the broker.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	QoS       byte
	// KeepAlive is rounded down to whole seconds.
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
	// TLS is used for secure schemes; nil means the system defaults.
	TLS *tls.Config
}

// Option customizes a Client.
type Option func(*Client)

// WithSubscriptions sets the topic filters subscribed on every session.
func WithSubscriptions(topics ...string) Option {
	return func(c *Client) {
		c.topics = append(c.topics, topics...)
	}
}

// WithHandler sets the message handler.
func WithHandler(h Handler) Option {
	return func(c *Client) {
		c.handler = h
	}
}

// WithConnectionListener registers a callback invoked on every connect and disconnect.
func WithConnectionListener(fn func(connected bool)) Option {
	return func(c *Client) {
		c.listeners = append(c.listeners, fn)
	}
}

// WithRetryPolicy replaces the exponential backoff used to establish sessions.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// Client keeps one MQTT session alive until its context is cancelled.
type Client struct {
	cfg       Config
	ep        endpoint
	retry     retry.Policy
	topics    []string
	handler   Handler
	listeners []func(connected bool)

	mu      sync.RWMutex
	current *session
	ready   chan struct{}
	once    sync.Once
}

// session is one connected paho client.
type session struct {
	client *paho.Client
	lost   chan struct{}
	once   sync.Once
	err    error
}

func (s *session) markLost(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.lost)
	})
}

// New validates the broker URL and creates a client. Nothing is dialed until Run.
func New(cfg Config, opts ...Option) (*Client, error) {
	ep, err := parseBrokerURL(cfg.BrokerURL)
	if err != nil {
		return nil, err
	}

	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = defaultReconnectMin
	}

	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = max(defaultReconnectMax, cfg.ReconnectMin)
	}

	c := &Client{
		cfg: cfg,
		ep:  ep,
		retry: &retry.ExponentialBackoff{
			MinInterval: cfg.ReconnectMin,
			MaxInterval: cfg.ReconnectMax,
		},
		ready: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Run connects, subscribes and reconnects with the retry policy until ctx is done.
// It returns an error only when the policy gives up.
func (c *Client) Run(ctx context.Context) error {
	handlerCtx := ctx
	ctx = logger.WithName(ctx, "mqtt")

	for {
		s, err := c.establish(ctx, handlerCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("establish session with %s: %w", c.ep.address, err)
		}

		c.setSession(s)
		logger.InfoKV(ctx, "Connected to broker", "broker", c.ep.address, "client_id", c.cfg.ClientID)

		select {
		case <-ctx.Done():
			c.setSession(nil)
			c.disconnect(s)
			logger.Info(ctx, "Disconnected from broker")

			return nil
		case <-s.lost:
			c.setSession(nil)
			logger.WarnKV(ctx, "Broker connection lost", "error", s.err)
		}
	}
}

// establish runs connect under the retry policy. Every failure is retryable.
func (c *Client) establish(ctx, handlerCtx context.Context) (*session, error) {
	var s *session

	err := c.retry.Start(ctx, "connect", func(ctx context.Context) (bool, error) {
		var err error

		s, err = c.connect(ctx, handlerCtx)
		if err != nil && ctx.Err() == nil {
			logger.WarnKV(ctx, "Broker connection failed", "broker", c.ep.address, "error", err)
		}

		return true, err
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// connect dials, performs the MQTT handshake and restores subscriptions.
// Messages are handed to the handler with handlerCtx.
func (c *Client) connect(ctx, handlerCtx context.Context) (*session, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, err := dial(attemptCtx, c.ep, c.cfg.TLS)
	if err != nil {
		return nil, err
	}

	s := &session{lost: make(chan struct{})}

	s.client = paho.NewClient(paho.ClientConfig{
		ClientID: c.cfg.ClientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				if c.handler != nil {
					c.handler(handlerCtx, pr.Packet.Topic, pr.Packet.Payload)
				}

				return true, nil
			},
		},
		OnClientError: func(err error) {
			s.markLost(err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			var code byte
			if d != nil {
				code = d.ReasonCode
			}

			s.markLost(fmt.Errorf("%w: reason code %d", errServerDisconnect, code))
		},
	})

	connect := &paho.Connect{
		ClientID:   c.cfg.ClientID,
		KeepAlive:  uint16(c.cfg.KeepAlive / time.Second),
		CleanStart: true,
	}

	if c.cfg.Username != "" {
		connect.Username = c.cfg.Username
		connect.UsernameFlag = true
	}

	if c.cfg.Password != "" {
		connect.Password = []byte(c.cfg.Password)
		connect.PasswordFlag = true
	}

	if _, err := s.client.Connect(attemptCtx, connect); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("connect: %w", err)
	}

	if len(c.topics) > 0 {
		subscribe := &paho.Subscribe{Subscriptions: make([]paho.SubscribeOptions, 0, len(c.topics))}
		for _, topic := range c.topics {
			subscribe.Subscriptions = append(subscribe.Subscriptions, paho.SubscribeOptions{
				Topic: topic,
				QoS:   c.cfg.QoS,
			})
		}

		if _, err := s.client.Subscribe(attemptCtx, subscribe); err != nil {
			c.disconnect(s)

			return nil, fmt.Errorf("subscribe %v: %w", c.topics, err)
		}

		logger.DebugKV(ctx, "Subscribed", "topics", c.topics)
	}

	return s, nil
}

func (c *Client) disconnect(s *session) {
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = s.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	}()

	select {
	case <-done:
	case <-time.After(disconnectTimeout):
	}
}

func (c *Client) setSession(s *session) {
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	if s != nil {
		c.once.Do(func() { close(c.ready) })
	}

	for _, fn := range c.listeners {
		fn(s != nil)
	}
}

// Connected reports whether a session is currently established.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current != nil
}

// AwaitConnection blocks until the first session is established or ctx is done.
func (c *Client) AwaitConnection(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish sends payload to topic with the configured QoS.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.RLock()
	s := c.current
	c.mu.RUnlock()

	if s == nil {
		return ErrNotConnected
	}

	_, err := s.client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     c.cfg.QoS,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}
