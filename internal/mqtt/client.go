package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrConnectTimeout indicates the broker did not answer within the deadline.
	ErrConnectTimeout = errors.New("broker connection timeout")
	// ErrPublishFailed indicates the broker rejected or never acknowledged a publish.
	ErrPublishFailed = errors.New("publish failed")
)

const (
	defaultConnectTimeout = 5 * time.Second
	disconnectQuiesceMs   = 250
)

// Config carries broker endpoint settings and the operational credential used
// for publishing. The publish credential is deliberately configuration, not
// the caller's identity.
type Config struct {
	BrokerURL      string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// Client opens a new transient broker session per call. Sessions are never
// pooled; every session is closed on each exit path including timeout.
type Client struct {
	brokerURL string
	username  string
	password  string
	timeout   time.Duration
	log       *logrus.Logger
}

func NewClient(cfg Config, log *logrus.Logger) *Client {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	return &Client{
		brokerURL: cfg.BrokerURL,
		username:  cfg.Username,
		password:  cfg.Password,
		timeout:   timeout,
		log:       log,
	}
}

// IsAuthError reports whether err is a CONNACK credential refusal rather than
// a transport failure.
func IsAuthError(err error) bool {
	return errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) ||
		errors.Is(err, packets.ErrorRefusedNotAuthorised)
}

// TestConnection probes the broker with the supplied credentials. It returns
// nil when the broker accepts the session, ErrConnectTimeout when the deadline
// fires first, and the broker or transport error otherwise. The transient
// session is closed before returning in every case.
func (c *Client) TestConnection(ctx context.Context, username, password string) error {
	client := mqtt.NewClient(c.options("probe", username, password))
	defer client.Disconnect(disconnectQuiesceMs)

	token := client.Connect()
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	// Exactly one outcome per call; a CONNACK arriving after the timer has
	// fired is ignored and the deferred disconnect tears the session down.
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			c.log.WithField("username", username).Debugf("probe refused: %v", err)
			return err
		}
		return nil
	case <-timer.C:
		return ErrConnectTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish opens a transient session with the operational credential, publishes
// a single message and closes the session regardless of outcome.
func (c *Client) Publish(ctx context.Context, topic, payload string, qos byte, retain bool) error {
	client := mqtt.NewClient(c.options("pub", c.username, c.password))
	defer client.Disconnect(disconnectQuiesceMs)

	if err := c.wait(ctx, client.Connect()); err != nil {
		return fmt.Errorf("%w: connect: %v", ErrPublishFailed, err)
	}
	if err := c.wait(ctx, client.Publish(topic, qos, retain, payload)); err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	c.log.WithField("topic", topic).Debug("published")
	return nil
}

func (c *Client) wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrConnectTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) options(prefix, username, password string) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(c.brokerURL).
		SetClientID(fmt.Sprintf("%s-%s", prefix, uuid.NewString())).
		SetUsername(username).
		SetPassword(password).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		// the select in the callers owns the deadline; the wire-level
		// timeout is a backstop that closes a stalled socket afterwards
		SetConnectTimeout(c.timeout + time.Second)
}
