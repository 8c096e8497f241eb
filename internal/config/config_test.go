package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Addr)
	assert.Equal(t, "data/mqtt-auth.db", cfg.Database.Path)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, 5*time.Second, cfg.MQTT.ConnectTimeout)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MQTTAUTH_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("MQTTAUTH_AUTH_JWTSECRET", "super-secret")
	t.Setenv("MQTTAUTH_MQTT_BROKER", "tcp://broker.internal:1883")
	t.Setenv("MQTTAUTH_MQTT_CONNECTTIMEOUT", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, "super-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "tcp://broker.internal:1883", cfg.MQTT.Broker)
	assert.Equal(t, 10*time.Second, cfg.MQTT.ConnectTimeout)
}
