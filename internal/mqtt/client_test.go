package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, brokerURL string, timeout time.Duration) *Client {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewClient(Config{
		BrokerURL:      brokerURL,
		Username:       "service",
		Password:       "service-pw",
		ConnectTimeout: timeout,
	}, logger)
}

// silentListener accepts TCP connections but never answers, simulating an
// unresponsive broker.
func silentListener(t *testing.T) (net.Listener, chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	conns := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conns <- conn
	}()
	return ln, conns
}

func TestTestConnectionTimeout(t *testing.T) {
	ln, conns := silentListener(t)
	client := newTestClient(t, "tcp://"+ln.Addr().String(), 200*time.Millisecond)

	start := time.Now()
	err := client.TestConnection(context.Background(), "alice", "hunter2")
	assert.ErrorIs(t, err, ErrConnectTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	// the transient session must not leak: the accepted socket is torn down
	select {
	case conn := <-conns:
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
					t.Fatal("probe session still open after timeout outcome")
				}
				return
			}
		}
	case <-time.After(time.Second):
		t.Fatal("broker never saw a connection attempt")
	}
}

func TestTestConnectionTransportError(t *testing.T) {
	// grab a port with no listener behind it
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	client := newTestClient(t, "tcp://"+addr, 2*time.Second)

	err = client.TestConnection(context.Background(), "alice", "hunter2")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConnectTimeout)
	assert.False(t, IsAuthError(err))
}

func TestTestConnectionContextCancel(t *testing.T) {
	ln, _ := silentListener(t)
	client := newTestClient(t, "tcp://"+ln.Addr().String(), 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := client.TestConnection(ctx, "alice", "hunter2")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	client := newTestClient(t, "tcp://"+addr, 2*time.Second)

	err = client.Publish(context.Background(), "sensors/temp", "22.5", 0, false)
	assert.ErrorIs(t, err, ErrPublishFailed)
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, IsAuthError(packets.ErrorRefusedBadUsernameOrPassword))
	assert.True(t, IsAuthError(packets.ErrorRefusedNotAuthorised))
	assert.True(t, IsAuthError(fmt.Errorf("connect: %w", packets.ErrorRefusedNotAuthorised)))
	assert.False(t, IsAuthError(packets.ErrorRefusedServerUnavailable))
	assert.False(t, IsAuthError(errors.New("dial tcp: connection refused")))
	assert.False(t, IsAuthError(nil))
}

func TestDefaultConnectTimeout(t *testing.T) {
	client := newTestClient(t, "tcp://localhost:1883", 0)
	assert.Equal(t, defaultConnectTimeout, client.timeout)
}
