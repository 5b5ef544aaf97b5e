package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "10000", cfg.Port)
	assert.Equal(t, "Guest", cfg.DefaultName)
	assert.Equal(t, 60*time.Second, cfg.WS.ReadTimeout)
	assert.Equal(t, 256, cfg.WS.SendQueue)
	assert.False(t, cfg.Postgres.Enabled())
	assert.False(t, cfg.CoturnServer.Enabled())
	assert.Len(t, cfg.ICEServers(), 1)
}

func TestNewCoturnAndPostgres(t *testing.T) {
	t.Setenv("COTURN_HOST", "turn.example.org:3478")
	t.Setenv("COTURN_SECRET", "s3cret")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_NAME", "calls")

	cfg, err := New()
	require.NoError(t, err)

	require.True(t, cfg.CoturnServer.Enabled())
	assert.Equal(t, []string{"turn:turn.example.org:3478?transport=udp"}, cfg.TurnUDPServer.URLs)
	assert.Equal(t, []string{"turn:turn.example.org:3478?transport=tcp"}, cfg.TurnTCPServer.URLs)
	assert.Len(t, cfg.ICEServers(), 3)

	require.True(t, cfg.Postgres.Enabled())
	assert.Equal(t, "postgresql://postgres:postgres@db:5432/calls?sslmode=disable", cfg.Postgres.DSN())
}

func TestNewPostgresURLWins(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://u:p@host/db")
	t.Setenv("POSTGRES_HOST", "ignored")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@host/db", cfg.Postgres.DSN())
}

func TestNewRejectsBadSendQueue(t *testing.T) {
	t.Setenv("WS_SEND_QUEUE", "0")

	_, err := New()
	require.Error(t, err)

	t.Setenv("WS_SEND_QUEUE", "many")

	_, err = New()
	require.Error(t, err)
}

func TestNewEmbeddedTurn(t *testing.T) {
	t.Setenv("TURN_PORT", "3478")
	t.Setenv("TURN_PUBLIC_IP", "203.0.113.7")

	_, err := New()
	require.Error(t, err, "secret is required")

	t.Setenv("COTURN_SECRET", "s3cret")

	cfg, err := New()
	require.NoError(t, err)

	assert.True(t, cfg.Turn.Enabled())
	assert.Equal(t, "203.0.113.7:3478", cfg.CoturnServer.Host)
	assert.Equal(t, []string{"turn:203.0.113.7:3478?transport=udp"}, cfg.TurnUDPServer.URLs)
}
